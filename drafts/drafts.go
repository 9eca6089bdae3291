// Package drafts exposes the recipe editor state over HTTP. A draft lives in
// a formstate.Store scoped to the user and a client-chosen key; every request
// opens the store, applies one change and returns the new snapshot.
// Requests for the same draft run one at a time within a process.
package drafts

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"recipebox/formstate"
	"recipebox/models"
	"recipebox/recipes"
	"recipebox/utils"
	"recipebox/validation"
)

var validKey = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Recipes is the part of the recipe service drafts depend on.
type Recipes interface {
	GetRecipeByID(ctx context.Context, id string) (models.RecipeWithTags, bool)
	CreateRecipe(ctx context.Context, in models.RecipeInput, userID string) (string, error)
	UpdateRecipe(ctx context.Context, id string, in models.RecipeInput, userID string) error
}

type Handlers struct {
	persister formstate.Persister
	recipes   Recipes
	log       *zap.Logger
	timeout   time.Duration
	locks     *keyLocks
}

func NewHandlers(p formstate.Persister, r Recipes, log *zap.Logger, timeout time.Duration) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{
		persister: p,
		recipes:   r,
		log:       log.With(zap.String("component", "drafts")),
		timeout:   timeout,
		locks:     newKeyLocks(),
	}
}

// StorageKey scopes a draft key to its owner.
func StorageKey(userID, key string) string {
	return userID + ":" + key
}

// withDraft opens the draft under its key lock and runs fn on it. When the
// stored draft cannot be read it answers 503 rather than letting fn work on
// defaults that would overwrite it.
func (h *Handlers) withDraft(w http.ResponseWriter, r *http.Request, userID, key string, initial *models.RecipeFormData, fn func(*formstate.Store)) {
	storageKey := StorageKey(userID, key)
	unlock := h.locks.lock(storageKey)
	defer unlock()

	opts := []formstate.Option{formstate.WithLogger(h.log)}
	if h.timeout > 0 {
		opts = append(opts, formstate.WithTimeout(h.timeout))
	}
	store, err := formstate.Open(r.Context(), storageKey, h.persister, initial, opts...)
	if err != nil {
		h.log.Error("failed to open draft", zap.String("storageKey", storageKey), zap.Error(err))
		utils.RespondWithError(w, http.StatusServiceUnavailable, "Draft storage unavailable")
		return
	}
	fn(store)
}

// draftParams extracts the caller and the draft key, writing the error
// response itself when either is unusable.
func draftParams(w http.ResponseWriter, r *http.Request, ps httprouter.Params) (userID, key string, ok bool) {
	userID = utils.GetUserIDFromRequest(r)
	if userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return "", "", false
	}
	key = ps.ByName("key")
	if !validKey.MatchString(key) {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid draft key")
		return "", "", false
	}
	return userID, key, true
}

// GetDraft returns the draft. With ?recipeId= a new draft is seeded from
// that recipe; state already stored under the key still wins.
func (h *Handlers) GetDraft(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, key, ok := draftParams(w, r, ps)
	if !ok {
		return
	}

	var initial *models.RecipeFormData
	if recipeID := r.URL.Query().Get("recipeId"); recipeID != "" {
		recipe, found := h.recipes.GetRecipeByID(r.Context(), recipeID)
		if !found || recipe.UserID != userID {
			utils.RespondWithError(w, http.StatusNotFound, "Recipe not found")
			return
		}
		seed := models.FormDataFromRecipe(recipe)
		initial = &seed
	}

	h.withDraft(w, r, userID, key, initial, func(store *formstate.Store) {
		utils.RespondWithJSON(w, http.StatusOK, store.Snapshot())
	})
}

// PutDraft replaces the whole draft.
func (h *Handlers) PutDraft(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, key, ok := draftParams(w, r, ps)
	if !ok {
		return
	}
	var data models.RecipeFormData
	if err := utils.DecodeJSON(w, r, &data); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	h.withDraft(w, r, userID, key, nil, func(store *formstate.Store) {
		utils.RespondWithJSON(w, http.StatusOK, store.Set(data))
	})
}

// DeleteDraft resets the draft to a blank editor and drops the stored copy.
func (h *Handlers) DeleteDraft(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, key, ok := draftParams(w, r, ps)
	if !ok {
		return
	}
	h.withDraft(w, r, userID, key, nil, func(store *formstate.Store) {
		utils.RespondWithJSON(w, http.StatusOK, store.Reset())
	})
}

// ApplyOp runs one named editor operation.
func (h *Handlers) ApplyOp(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, key, ok := draftParams(w, r, ps)
	if !ok {
		return
	}
	var req OpRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if !knownOp(req.Op) {
		utils.RespondWithError(w, http.StatusBadRequest, "Unknown operation")
		return
	}

	h.withDraft(w, r, userID, key, nil, func(store *formstate.Store) {
		snapshot, err := apply(store, req)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		utils.RespondWithJSON(w, http.StatusOK, snapshot)
	})
}

type validateResponse struct {
	Valid  bool              `json:"valid"`
	Errors validation.Errors `json:"errors"`
}

// Validate checks one editor step (?step=basic|ingredients|instructions).
func (h *Handlers) Validate(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, key, ok := draftParams(w, r, ps)
	if !ok {
		return
	}
	h.withDraft(w, r, userID, key, nil, func(store *formstate.Store) {
		errs, known := validation.ValidateStep(r.URL.Query().Get("step"), store.Snapshot())
		if !known {
			utils.RespondWithError(w, http.StatusBadRequest, "Unknown step")
			return
		}
		utils.RespondWithJSON(w, http.StatusOK, validateResponse{Valid: !validation.HasErrors(errs), Errors: errs})
	})
}

// Submit validates the whole draft and saves it as a new recipe, or as an
// update of ?recipeId=. The stored draft is cleared on success.
func (h *Handlers) Submit(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, key, ok := draftParams(w, r, ps)
	if !ok {
		return
	}
	h.withDraft(w, r, userID, key, nil, func(store *formstate.Store) {
		h.submit(w, r, userID, store)
	})
}

func (h *Handlers) submit(w http.ResponseWriter, r *http.Request, userID string, store *formstate.Store) {
	form := store.Snapshot()
	if errs := validation.ValidateCompleteForm(form); validation.HasErrors(errs) {
		utils.RespondWithJSON(w, http.StatusUnprocessableEntity, validateResponse{Valid: false, Errors: errs})
		return
	}
	input := models.RecipeInputFromForm(form)

	id := r.URL.Query().Get("recipeId")
	if id != "" {
		err := h.recipes.UpdateRecipe(r.Context(), id, input, userID)
		switch {
		case errors.Is(err, recipes.ErrNotFound):
			utils.RespondWithError(w, http.StatusNotFound, "Recipe not found")
			return
		case err != nil:
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update recipe")
			return
		}
	} else {
		var err error
		id, err = h.recipes.CreateRecipe(r.Context(), input, userID)
		if err != nil {
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create recipe")
			return
		}
	}

	store.ClearStorage()
	h.log.Info("draft submitted", zap.String("userId", userID), zap.String("recipeId", id))
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"id": id})
}
