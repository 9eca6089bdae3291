package recipes

import (
	"errors"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"recipebox/models"
	"recipebox/utils"
	"recipebox/validation"
)

const msgServingsMismatch = "Servings must be one of the ingredient serving sizes"

type Handlers struct {
	svc *Service
}

func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// checkInput does the presence checks a write needs. It returns "" when in is
// acceptable.
func checkInput(in models.RecipeInput) string {
	if strings.TrimSpace(in.Title) == "" {
		return validation.MsgTitleRequired
	}
	if len(in.Ingredients) == 0 {
		return validation.MsgNoIngredients
	}
	if _, ok := in.Ingredients[in.Servings]; !ok {
		return msgServingsMismatch
	}
	return ""
}

// GetRecipes lists the caller's recipes.
func (h *Handlers) GetRecipes(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID := utils.GetUserIDFromRequest(r)
	utils.RespondWithJSON(w, http.StatusOK, h.svc.ListUserRecipes(r.Context(), userID))
}

// GetRecipe returns one of the caller's recipes.
func (h *Handlers) GetRecipe(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	recipe, ok := h.svc.GetRecipeByID(r.Context(), ps.ByName("id"))
	if !ok || recipe.UserID != utils.GetUserIDFromRequest(r) {
		utils.RespondWithError(w, http.StatusNotFound, "Recipe not found")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, recipe)
}

func (h *Handlers) CreateRecipe(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID := utils.GetUserIDFromRequest(r)
	if userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var in models.RecipeInput
	if err := utils.DecodeJSON(w, r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if msg := checkInput(in); msg != "" {
		utils.RespondWithError(w, http.StatusBadRequest, msg)
		return
	}

	id, err := h.svc.CreateRecipe(r.Context(), in, userID)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create recipe")
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, utils.M{"id": id})
}

func (h *Handlers) UpdateRecipe(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID := utils.GetUserIDFromRequest(r)
	if userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var in models.RecipeInput
	if err := utils.DecodeJSON(w, r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if msg := checkInput(in); msg != "" {
		utils.RespondWithError(w, http.StatusBadRequest, msg)
		return
	}

	id := ps.ByName("id")
	err := h.svc.UpdateRecipe(r.Context(), id, in, userID)
	switch {
	case errors.Is(err, ErrNotFound):
		utils.RespondWithError(w, http.StatusNotFound, "Recipe not found")
	case err != nil:
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update recipe")
	default:
		utils.RespondWithJSON(w, http.StatusOK, utils.M{"id": id})
	}
}
