package models

import "slices"

// RecipeFormData is the editor state for a recipe being created or edited.
// CurrentServing should be one of Servings and Ingredients holds one list per
// serving, all of the same length.
type RecipeFormData struct {
	Title          string             `json:"title"`
	Description    string             `json:"description"`
	Image          string             `json:"image"`
	PrepTime       string             `json:"prepTime"`
	CookTime       string             `json:"cookTime"`
	Tags           []Tag              `json:"tags"`
	Servings       []int              `json:"servings"`
	CurrentServing int                `json:"currentServing"`
	Ingredients    ServingIngredients `json:"ingredients"`
	Steps          []string           `json:"steps"`
}

// Clone returns a deep copy of d.
func (d RecipeFormData) Clone() RecipeFormData {
	out := d
	out.Tags = slices.Clone(d.Tags)
	out.Servings = slices.Clone(d.Servings)
	out.Ingredients = d.Ingredients.Clone()
	out.Steps = slices.Clone(d.Steps)
	return out
}

// FormDataFromRecipe seeds an editor with an existing recipe. Every serving
// size defined on the recipe becomes selectable.
func FormDataFromRecipe(r RecipeWithTags) RecipeFormData {
	servings := r.Ingredients.Servings()
	if len(servings) == 0 {
		servings = []int{r.Servings}
	}
	ingredients := r.Ingredients.Clone()
	if ingredients == nil {
		ingredients = ServingIngredients{}
	}
	for _, s := range servings {
		if _, ok := ingredients[s]; !ok {
			ingredients[s] = []Ingredient{}
		}
	}
	current := r.Servings
	if !slices.Contains(servings, current) {
		current = servings[0]
	}
	return RecipeFormData{
		Title:          r.Title,
		Description:    r.Description,
		Image:          r.Image,
		PrepTime:       r.PrepTime,
		CookTime:       r.CookTime,
		Tags:           slices.Clone(r.Tags),
		Servings:       servings,
		CurrentServing: current,
		Ingredients:    ingredients,
		Steps:          slices.Clone(r.Steps),
	}
}

// RecipeInputFromForm turns a finished draft into a write payload. The base
// serving count is CurrentServing, or the first serving when CurrentServing
// is not one of Servings. Ingredient lists for sizes not in Servings are left out.
func RecipeInputFromForm(d RecipeFormData) RecipeInput {
	base := d.CurrentServing
	if !slices.Contains(d.Servings, base) && len(d.Servings) > 0 {
		base = d.Servings[0]
	}
	ingredients := make(ServingIngredients, len(d.Servings))
	for _, s := range d.Servings {
		ingredients[s] = append([]Ingredient{}, d.Ingredients[s]...)
	}
	tags := slices.Clone(d.Tags)
	if tags == nil {
		tags = []Tag{}
	}
	return RecipeInput{
		Title:       d.Title,
		Description: d.Description,
		Image:       d.Image,
		Tags:        tags,
		PrepTime:    d.PrepTime,
		CookTime:    d.CookTime,
		Servings:    base,
		Ingredients: ingredients,
		Steps:       slices.Clone(d.Steps),
	}
}
