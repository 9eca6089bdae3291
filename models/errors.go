package models

import "errors"

// ErrNotFound is returned by document stores when no document matches.
var ErrNotFound = errors.New("not found")
