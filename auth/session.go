package auth

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"recipebox/config"
	"recipebox/utils"
)

type sessionRequest struct {
	Token string `json:"token"`
}

type sessionResponse struct {
	Success bool `json:"success"`
}

// Session sets and clears the session cookie. The token is stored as given;
// it is verified when a request needs the user id.
type Session struct {
	cookieName string
	maxAge     int
	secure     bool
	log        *zap.Logger
}

func NewSession(cfg config.AuthConfig, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		cookieName: cfg.CookieName,
		maxAge:     int(cfg.SessionTTL.Seconds()),
		secure:     cfg.SecureCookie,
		log:        log.With(zap.String("component", "auth")),
	}
}

// Create handles POST /api/auth/session.
func (s *Session) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req sessionRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil || req.Token == "" {
		s.log.Debug("session request without token", zap.String("remote", r.RemoteAddr))
		utils.RespondWithJSON(w, http.StatusBadRequest, sessionResponse{Success: false})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    req.Token,
		Path:     "/",
		MaxAge:   s.maxAge,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	utils.RespondWithJSON(w, http.StatusOK, sessionResponse{Success: true})
}

// Delete handles DELETE /api/auth/session.
func (s *Session) Delete(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // expires immediately
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	utils.RespondWithJSON(w, http.StatusOK, sessionResponse{Success: true})
}
