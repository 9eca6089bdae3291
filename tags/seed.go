package tags

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"recipebox/models"
)

type TagSeed struct {
	Name  string
	Color string
}

// DefaultTags is the starter set offered in the recipe editor.
var DefaultTags = []TagSeed{
	{"Italian", "#008C45"},
	{"Pasta", "#F4A460"},
	{"Quick", "#FF6B6B"},
	{"Healthy", "#4CAF50"},
	{"Salad", "#8BC34A"},
	{"Protein", "#E91E63"},
	{"Dessert", "#FF69B4"},
	{"Chocolate", "#6F4E37"},
	{"Indulgent", "#9C27B0"},
	{"Vegetarian", "#4CAF50"},
	{"Vegan", "#8BC34A"},
	{"Gluten-Free", "#FFC107"},
	{"Dairy-Free", "#03A9F4"},
	{"Low-Carb", "#9E9E9E"},
	{"Breakfast", "#FF9800"},
	{"Lunch", "#2196F3"},
	{"Dinner", "#673AB7"},
	{"Snack", "#CDDC39"},
	{"Appetizer", "#00BCD4"},
	{"Main Course", "#E91E63"},
	{"Side Dish", "#9C27B0"},
	{"Soup", "#FF5722"},
	{"Seafood", "#00ACC1"},
	{"Chicken", "#F57C00"},
	{"Beef", "#D32F2F"},
	{"Pork", "#C2185B"},
	{"Asian", "#E64A19"},
	{"Mexican", "#D32F2F"},
	{"French", "#1976D2"},
	{"American", "#1565C0"},
	{"Mediterranean", "#0097A7"},
	{"Spicy", "#FF3D00"},
	{"Comfort Food", "#F57F17"},
	{"Easy", "#7CB342"},
	{"Gourmet", "#6A1B9A"},
}

// SeedGlobalTags inserts seeds as global tags unless a global tag already
// exists. It returns how many tags were inserted.
func (s *Service) SeedGlobalTags(ctx context.Context, seeds []TagSeed) (int, error) {
	n, err := s.store.CountGlobal(ctx)
	if err != nil {
		return 0, fmt.Errorf("seed tags: %w", err)
	}
	if n > 0 {
		s.log.Debug("global tags present, skipping seed", zap.Int64("count", n))
		return 0, nil
	}

	now := s.now()
	batch := make([]models.Tag, 0, len(seeds))
	for _, seed := range seeds {
		batch = append(batch, models.Tag{
			ID:        s.newID(),
			Name:      seed.Name,
			Color:     seed.Color,
			IsGlobal:  true,
			CreatedAt: &now,
			UpdatedAt: &now,
		})
	}
	if err := s.store.InsertMany(ctx, batch); err != nil {
		return 0, fmt.Errorf("seed tags: %w", err)
	}
	s.log.Info("seeded global tags", zap.Int("count", len(batch)))
	return len(batch), nil
}
