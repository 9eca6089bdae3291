package routes

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"recipebox/auth"
	"recipebox/drafts"
	"recipebox/export"
	"recipebox/live"
	"recipebox/middleware"
	"recipebox/ratelim"
	"recipebox/recipes"
	"recipebox/tags"
	"recipebox/utils"
)

// Health is the liveness probe.
func Health(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"status": "ok"})
}

func AddAuthRoutes(router *httprouter.Router, session *auth.Session, rateLimiter *ratelim.RateLimiter) {
	router.POST("/api/auth/session", rateLimiter.Limit(session.Create))
	router.DELETE("/api/auth/session", session.Delete)
}

func AddTagRoutes(router *httprouter.Router, h *tags.Handlers, api func(httprouter.Handle) httprouter.Handle) {
	router.GET("/api/tags", api(h.GetTags))
	router.POST("/api/tags", api(h.CreateTag))
	router.GET("/api/tags/:id", api(h.GetTag))
}

func AddRecipeRoutes(router *httprouter.Router, h *recipes.Handlers, card *export.Handlers, api func(httprouter.Handle) httprouter.Handle) {
	router.GET("/api/recipes", api(h.GetRecipes))
	router.POST("/api/recipes", api(h.CreateRecipe))
	router.GET("/api/recipes/:id", api(h.GetRecipe))
	router.PUT("/api/recipes/:id", api(h.UpdateRecipe))
	router.GET("/api/recipes/:id/card.pdf", api(card.Card))
}

func AddDraftRoutes(router *httprouter.Router, h *drafts.Handlers, api func(httprouter.Handle) httprouter.Handle) {
	router.GET("/api/drafts/:key", api(h.GetDraft))
	router.PUT("/api/drafts/:key", api(h.PutDraft))
	router.DELETE("/api/drafts/:key", api(h.DeleteDraft))
	router.POST("/api/drafts/:key/ops", api(h.ApplyOp))
	router.POST("/api/drafts/:key/validate", api(h.Validate))
	router.POST("/api/drafts/:key/submit", api(h.Submit))
}

// AddLiveRoutes registers the websocket. It is authenticated but carries no
// request timeout, the connection outlives the handler.
func AddLiveRoutes(router *httprouter.Router, hub *live.Hub, allowedOrigins []string, authn *middleware.Authenticator) {
	router.GET("/api/live/recipes", authn.Authenticate(live.WebSocketHandler(hub, allowedOrigins)))
}
