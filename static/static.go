// Package static serves the compiled frontend.
package static

import (
	"errors"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"go.uber.org/zap"

	"recipebox/utils"
)

const (
	// ImmutablePrefix holds content-hashed build output.
	ImmutablePrefix = "/_app/immutable/"

	cacheFirst   = "public, max-age=31536000, immutable"
	networkFirst = "no-cache"
	indexFile    = "/index.html"
)

// PublicPrefixes are asset paths the login page itself needs.
var PublicPrefixes = []string{"/_app/"}

// Handler serves files from a directory. Hashed assets are cached for a year,
// everything else is revalidated on each request. Unknown paths outside /api/
// get index.html so client-side routes load.
type Handler struct {
	root http.FileSystem
	log  *zap.Logger
}

func New(dir string, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		root: http.Dir(dir),
		log:  log.With(zap.String("component", "static")),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := path.Clean("/" + r.URL.Path)
	if p == "/api" || strings.HasPrefix(p, "/api/") {
		utils.RespondWithError(w, http.StatusNotFound, "Not found")
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	immutable := strings.HasPrefix(p, ImmutablePrefix)
	if h.serveFile(w, r, p, immutable) {
		return
	}
	if immutable {
		http.NotFound(w, r)
		return
	}
	// prerendered pages are written as <route>.html or <route>/index.html
	if p != "/" && (h.serveFile(w, r, p+".html", false) || h.serveFile(w, r, p+indexFile, false)) {
		return
	}
	if !h.serveFile(w, r, indexFile, false) {
		http.NotFound(w, r)
	}
}

// serveFile writes name if it is a regular file and reports whether it did.
func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, name string, immutable bool) bool {
	f, err := h.root.Open(name)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			h.log.Warn("failed to open asset", zap.String("path", name), zap.Error(err))
		}
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return false
	}

	if immutable {
		w.Header().Set("Cache-Control", cacheFirst)
	} else {
		w.Header().Set("Cache-Control", networkFirst)
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	return true
}
