package models

import "time"

// Tag is a label attached to recipes. Global tags are visible to every user,
// the rest only to UserID.
type Tag struct {
	ID        string     `json:"id" bson:"_id"`
	Name      string     `json:"name" bson:"name"`
	Color     string     `json:"color" bson:"color"`
	UserID    string     `json:"userId,omitempty" bson:"userId,omitempty"`
	IsGlobal  bool       `json:"isGlobal,omitempty" bson:"isGlobal"`
	CreatedAt *time.Time `json:"createdAt,omitempty" bson:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}
