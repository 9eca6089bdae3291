package routes

import (
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"recipebox/auth"
	"recipebox/drafts"
	"recipebox/export"
	"recipebox/live"
	"recipebox/middleware"
	"recipebox/ratelim"
	"recipebox/recipes"
	"recipebox/tags"
)

// Deps is everything the router serves.
type Deps struct {
	Authenticator  *middleware.Authenticator
	RateLimiter    *ratelim.RateLimiter
	RequestTimeout time.Duration
	AllowedOrigins []string

	Session *auth.Session
	Tags    *tags.Handlers
	Recipes *recipes.Handlers
	Export  *export.Handlers
	Drafts  *drafts.Handlers
	Hub     *live.Hub

	// Static answers every path no route matches.
	Static http.Handler
}

func RoutesWrapper(router *httprouter.Router, d Deps) {
	api := middleware.Chain(middleware.Timeout(d.RequestTimeout), d.Authenticator.Authenticate)

	router.GET("/health", Health)
	AddAuthRoutes(router, d.Session, d.RateLimiter)
	AddTagRoutes(router, d.Tags, api)
	AddRecipeRoutes(router, d.Recipes, d.Export, api)
	AddDraftRoutes(router, d.Drafts, api)
	AddLiveRoutes(router, d.Hub, d.AllowedOrigins, d.Authenticator)

	if d.Static != nil {
		router.NotFound = d.Static
	}
}
