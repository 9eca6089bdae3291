package drafts

import (
	"errors"

	"recipebox/formstate"
	"recipebox/models"
)

// Operation names accepted by ApplyOp.
const (
	OpSetBasicInfo     = "setBasicInfo"
	OpAddTag           = "addTag"
	OpRemoveTag        = "removeTag"
	OpChangeServing    = "changeServing"
	OpAddServing       = "addServing"
	OpRemoveServing    = "removeServing"
	OpAddIngredient    = "addIngredient"
	OpRemoveIngredient = "removeIngredient"
	OpSetIngredient    = "setIngredient"
	OpAddStep          = "addStep"
	OpRemoveStep       = "removeStep"
	OpSetStep          = "setStep"
	OpClearStorage     = "clearStorage"
)

// OpRequest is the body of POST /api/drafts/:key/ops. Only the fields the
// operation needs are read. CurrentServing and AllServings default to the
// draft's own values.
type OpRequest struct {
	Op             string               `json:"op"`
	BasicInfo      *formstate.BasicInfo `json:"basicInfo,omitempty"`
	Tag            *models.Tag          `json:"tag,omitempty"`
	Index          *int                 `json:"index,omitempty"`
	Serving        *int                 `json:"serving,omitempty"`
	CurrentServing *int                 `json:"currentServing,omitempty"`
	AllServings    []int                `json:"allServings,omitempty"`
	Ingredient     *models.Ingredient   `json:"ingredient,omitempty"`
	Text           *string              `json:"text,omitempty"`
}

func knownOp(op string) bool {
	switch op {
	case OpSetBasicInfo, OpAddTag, OpRemoveTag, OpChangeServing, OpAddServing,
		OpRemoveServing, OpAddIngredient, OpRemoveIngredient, OpSetIngredient,
		OpAddStep, OpRemoveStep, OpSetStep, OpClearStorage:
		return true
	}
	return false
}

var (
	errMissingIndex   = errors.New("index is required")
	errMissingServing = errors.New("serving is required")
	errMissingTag     = errors.New("tag is required")
	errMissingInfo    = errors.New("basicInfo is required")
	errMissingIngr    = errors.New("ingredient is required")
	errMissingText    = errors.New("text is required")
)

// apply runs req against store. Errors only report missing arguments; the
// operations themselves never fail.
func apply(store *formstate.Store, req OpRequest) (models.RecipeFormData, error) {
	current := func() (int, []int) {
		snap := store.Snapshot()
		cur, all := snap.CurrentServing, snap.Servings
		if req.CurrentServing != nil {
			cur = *req.CurrentServing
		}
		if req.AllServings != nil {
			all = req.AllServings
		}
		return cur, all
	}

	switch req.Op {
	case OpSetBasicInfo:
		if req.BasicInfo == nil {
			return models.RecipeFormData{}, errMissingInfo
		}
		return store.SetBasicInfo(*req.BasicInfo), nil
	case OpAddTag:
		if req.Tag == nil {
			return models.RecipeFormData{}, errMissingTag
		}
		return store.AddTag(*req.Tag), nil
	case OpRemoveTag:
		if req.Index == nil {
			return models.RecipeFormData{}, errMissingIndex
		}
		return store.RemoveTag(*req.Index), nil
	case OpChangeServing:
		if req.Serving == nil {
			return models.RecipeFormData{}, errMissingServing
		}
		return store.ChangeServing(*req.Serving), nil
	case OpAddServing:
		if req.Serving == nil {
			return models.RecipeFormData{}, errMissingServing
		}
		return store.AddServing(*req.Serving), nil
	case OpRemoveServing:
		if req.Serving == nil {
			return models.RecipeFormData{}, errMissingServing
		}
		return store.RemoveServing(*req.Serving), nil
	case OpAddIngredient:
		cur, all := current()
		return store.AddIngredient(cur, all), nil
	case OpRemoveIngredient:
		if req.Index == nil {
			return models.RecipeFormData{}, errMissingIndex
		}
		cur, all := current()
		return store.RemoveIngredient(*req.Index, cur, all), nil
	case OpSetIngredient:
		if req.Index == nil {
			return models.RecipeFormData{}, errMissingIndex
		}
		if req.Ingredient == nil {
			return models.RecipeFormData{}, errMissingIngr
		}
		serving, _ := current()
		if req.Serving != nil {
			serving = *req.Serving
		}
		return store.SetIngredient(serving, *req.Index, *req.Ingredient), nil
	case OpAddStep:
		return store.AddStep(), nil
	case OpRemoveStep:
		if req.Index == nil {
			return models.RecipeFormData{}, errMissingIndex
		}
		return store.RemoveStep(*req.Index), nil
	case OpSetStep:
		if req.Index == nil {
			return models.RecipeFormData{}, errMissingIndex
		}
		if req.Text == nil {
			return models.RecipeFormData{}, errMissingText
		}
		return store.SetStep(*req.Index, *req.Text), nil
	case OpClearStorage:
		store.ClearStorage()
		return store.Snapshot(), nil
	}
	return models.RecipeFormData{}, errors.New("unknown operation")
}
