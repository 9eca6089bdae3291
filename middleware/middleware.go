// Package middleware holds the HTTP middleware: the session gate, user
// authentication, security headers and request logging.
package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"recipebox/auth"
	"recipebox/config"
	"recipebox/utils"
)

// Chain applies mws so that the first one runs outermost.
func Chain(mws ...func(httprouter.Handle) httprouter.Handle) func(httprouter.Handle) httprouter.Handle {
	return func(h httprouter.Handle) httprouter.Handle {
		for i := len(mws) - 1; i >= 0; i-- {
			h = mws[i](h)
		}
		return h
	}
}

// Authenticator resolves the caller from the session cookie or a bearer token.
type Authenticator struct {
	verifier   *auth.Verifier
	cookieName string
	log        *zap.Logger
}

func NewAuthenticator(cfg config.AuthConfig, log *zap.Logger) (*Authenticator, error) {
	if log == nil {
		log = zap.NewNop()
	}
	verifier, err := auth.NewVerifier([]byte(cfg.JWTSecret), cfg.JWTPublicKey)
	if err != nil {
		return nil, err
	}
	return &Authenticator{
		verifier:   verifier,
		cookieName: cfg.CookieName,
		log:        log.With(zap.String("component", "auth")),
	}, nil
}

func (a *Authenticator) tokenFrom(r *http.Request) string {
	if c, err := r.Cookie(a.cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return h[7:]
	}
	return ""
}

// Authenticate stores the verified user id in the request context and rejects
// the request with 401 otherwise.
func (a *Authenticator) Authenticate(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		tokenString := a.tokenFrom(r)
		if tokenString == "" {
			utils.RespondWithError(w, http.StatusUnauthorized, "Missing token")
			return
		}

		userID, err := a.verifier.Parse(tokenString)
		if err != nil {
			a.log.Debug("rejected token", zap.String("path", r.URL.Path), zap.Error(err))
			utils.RespondWithError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		next(w, r.WithContext(utils.WithUserID(r.Context(), userID)), ps)
	}
}

// Timeout bounds the request context handed to next. Long-lived handlers such
// as websockets must not be wrapped.
func Timeout(d time.Duration) func(httprouter.Handle) httprouter.Handle {
	return func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			if d <= 0 {
				next(w, r, ps)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next(w, r.WithContext(ctx), ps)
		}
	}
}
