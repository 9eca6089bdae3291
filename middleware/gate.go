package middleware

import (
	"net/http"
	"net/url"
	"slices"
	"strings"
)

// GateConfig lists what the gate lets through without a session cookie.
type GateConfig struct {
	CookieName     string
	PublicPaths    []string
	PublicPrefixes []string
}

// DefaultPublicPaths are always reachable without a session.
var DefaultPublicPaths = []string{"/login", "/api/auth/session"}

// componentEscaper turns query escaping into what browsers produce for
// encodeURIComponent, so returnTo round-trips through the login page as is.
var componentEscaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!", "%27", "'", "%28", "(", "%29", ")", "%2A", "*",
)

func escapeComponent(s string) string {
	return componentEscaper.Replace(url.QueryEscape(s))
}

func (c GateConfig) public(path string) bool {
	if slices.Contains(DefaultPublicPaths, path) || slices.Contains(c.PublicPaths, path) {
		return true
	}
	for _, prefix := range c.PublicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Gate redirects requests without a session cookie to /login, remembering the
// original path in returnTo, and sends signed-in users away from /login.
// Only the presence of the cookie is checked here.
func Gate(cfg GateConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(cfg.CookieName)
			authenticated := err == nil && c.Value != ""
			path := r.URL.Path

			if !authenticated && !cfg.public(path) {
				http.Redirect(w, r, "/login?returnTo="+escapeComponent(path), http.StatusSeeOther)
				return
			}
			if authenticated && path == "/login" {
				http.Redirect(w, r, "/", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
