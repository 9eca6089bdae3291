package models

import (
	"sort"
	"time"
)

type Ingredient struct {
	Amount string `json:"amount" bson:"amount"`
	Name   string `json:"name" bson:"name"`
}

// ServingIngredients maps a serving count to its ingredient list. Index i of
// every list is the same ingredient slot; only the amount differs.
type ServingIngredients map[int][]Ingredient

// Clone returns a deep copy.
func (si ServingIngredients) Clone() ServingIngredients {
	if si == nil {
		return nil
	}
	out := make(ServingIngredients, len(si))
	for serving, list := range si {
		out[serving] = append([]Ingredient(nil), list...)
	}
	return out
}

// Servings returns the serving counts present, ascending.
func (si ServingIngredients) Servings() []int {
	keys := make([]int, 0, len(si))
	for serving := range si {
		keys = append(keys, serving)
	}
	sort.Ints(keys)
	return keys
}

// RecipeSummary is the list-view shape as stored in the recipes collection.
type RecipeSummary struct {
	ID          string     `json:"id" bson:"_id"`
	Title       string     `json:"title" bson:"title"`
	Description string     `json:"description" bson:"description"`
	Image       string     `json:"image" bson:"image"`
	TagIDs      []string   `json:"tagIds" bson:"tagIds"`
	CreatedAt   *time.Time `json:"createdAt,omitempty" bson:"createdAt,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
	UserID      string     `json:"userId,omitempty" bson:"userId,omitempty"`
}

// Recipe is the full recipes document. Servings is the base serving count and
// must be a key of Ingredients.
type Recipe struct {
	RecipeSummary `bson:",inline"`
	PrepTime      string             `json:"prepTime" bson:"prepTime"`
	CookTime      string             `json:"cookTime" bson:"cookTime"`
	Servings      int                `json:"servings" bson:"servings"`
	Ingredients   ServingIngredients `json:"ingredients" bson:"ingredients"`
	Steps         []string           `json:"steps" bson:"steps"`
}

// RecipeSummaryWithTags is RecipeSummary with tag references resolved.
type RecipeSummaryWithTags struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Image       string     `json:"image"`
	Tags        []Tag      `json:"tags"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
	UserID      string     `json:"userId,omitempty"`
}

// RecipeWithTags is Recipe with tag references resolved. Never persisted.
type RecipeWithTags struct {
	RecipeSummaryWithTags
	PrepTime    string             `json:"prepTime"`
	CookTime    string             `json:"cookTime"`
	Servings    int                `json:"servings"`
	Ingredients ServingIngredients `json:"ingredients"`
	Steps       []string           `json:"steps"`
}

// RecipeInput is the write payload for creating or updating a recipe.
type RecipeInput struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Image       string             `json:"image"`
	Tags        []Tag              `json:"tags"`
	PrepTime    string             `json:"prepTime"`
	CookTime    string             `json:"cookTime"`
	Servings    int                `json:"servings"`
	Ingredients ServingIngredients `json:"ingredients"`
	Steps       []string           `json:"steps"`
}

// TagIDs derives the reference list stored on the recipe document.
func (in RecipeInput) TagIDs() []string {
	ids := make([]string, 0, len(in.Tags))
	for _, t := range in.Tags {
		ids = append(ids, t.ID)
	}
	return ids
}

// ResolveSummary replaces the tag references of s with tags.
func ResolveSummary(s RecipeSummary, tags []Tag) RecipeSummaryWithTags {
	if tags == nil {
		tags = []Tag{}
	}
	return RecipeSummaryWithTags{
		ID:          s.ID,
		Title:       s.Title,
		Description: s.Description,
		Image:       s.Image,
		Tags:        tags,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		UserID:      s.UserID,
	}
}

// ResolveRecipe replaces the tag references of r with tags.
func ResolveRecipe(r Recipe, tags []Tag) RecipeWithTags {
	steps := r.Steps
	if steps == nil {
		steps = []string{}
	}
	return RecipeWithTags{
		RecipeSummaryWithTags: ResolveSummary(r.RecipeSummary, tags),
		PrepTime:              r.PrepTime,
		CookTime:              r.CookTime,
		Servings:              r.Servings,
		Ingredients:           r.Ingredients.Clone(),
		Steps:                 steps,
	}
}
