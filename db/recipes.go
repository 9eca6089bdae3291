package db

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"recipebox/models"
)

// summaryProjection limits list queries to the RecipeSummary fields.
var summaryProjection = bson.M{
	"title":       1,
	"description": 1,
	"image":       1,
	"tagIds":      1,
	"createdAt":   1,
	"updatedAt":   1,
	"userId":      1,
}

// RecipeStore reads and writes the recipes collection.
type RecipeStore struct {
	coll *mongo.Collection
}

func NewRecipeStore(coll *mongo.Collection) *RecipeStore {
	return &RecipeStore{coll: coll}
}

// FindByID returns models.ErrNotFound when no recipe has the id.
func (s *RecipeStore) FindByID(ctx context.Context, id string) (models.Recipe, error) {
	var recipe models.Recipe
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&recipe)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Recipe{}, models.ErrNotFound
	}
	if err != nil {
		return models.Recipe{}, fmt.Errorf("find recipe %s: %w", id, err)
	}
	return recipe, nil
}

// FindByUser lists the user's recipes, newest first.
func (s *RecipeStore) FindByUser(ctx context.Context, userID string) ([]models.RecipeSummary, error) {
	opts := options.Find().
		SetProjection(summaryProjection).
		SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := s.coll.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find recipes: %w", err)
	}
	defer cursor.Close(ctx)

	recipes := []models.RecipeSummary{}
	if err := cursor.All(ctx, &recipes); err != nil {
		return nil, fmt.Errorf("decode recipes: %w", err)
	}
	return recipes, nil
}

func (s *RecipeStore) Insert(ctx context.Context, recipe models.Recipe) error {
	if _, err := s.coll.InsertOne(ctx, recipe); err != nil {
		return fmt.Errorf("insert recipe: %w", err)
	}
	return nil
}

// Update replaces the editable fields of a recipe owned by recipe.UserID.
// CreatedAt and the owner are left untouched.
func (s *RecipeStore) Update(ctx context.Context, recipe models.Recipe) error {
	filter := bson.M{"_id": recipe.ID, "userId": recipe.UserID}
	update := bson.M{"$set": bson.M{
		"title":       recipe.Title,
		"description": recipe.Description,
		"image":       recipe.Image,
		"tagIds":      recipe.TagIDs,
		"prepTime":    recipe.PrepTime,
		"cookTime":    recipe.CookTime,
		"servings":    recipe.Servings,
		"ingredients": recipe.Ingredients,
		"steps":       recipe.Steps,
		"updatedAt":   recipe.UpdatedAt,
	}}

	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("update recipe %s: %w", recipe.ID, err)
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}
