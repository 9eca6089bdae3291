// Package recipes reads and writes recipes, resolves their tags and streams a
// user's recipe list as it changes.
package recipes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"recipebox/models"
	"recipebox/mq"
	"recipebox/utils"
)

// ErrNotFound is returned by UpdateRecipe when the user owns no recipe with
// the id.
var ErrNotFound = models.ErrNotFound

// Store is the recipe document store.
type Store interface {
	FindByID(ctx context.Context, id string) (models.Recipe, error)
	FindByUser(ctx context.Context, userID string) ([]models.RecipeSummary, error)
	Insert(ctx context.Context, recipe models.Recipe) error
	Update(ctx context.Context, recipe models.Recipe) error
}

// ChangeFeed reports changes to a user's recipes. Watch blocks until ctx is
// done, calling notify once the feed is listening and again after every
// change.
type ChangeFeed interface {
	Watch(ctx context.Context, userID string, notify func()) error
}

// Notifier announces recipe writes to change feeds.
type Notifier interface {
	Publish(ctx context.Context, event mq.RecipeEvent) error
}

// TagResolver replaces tag references with tags.
type TagResolver interface {
	PopulateRecipeTags(ctx context.Context, r models.Recipe) models.RecipeWithTags
	PopulateRecipeSummaryTags(ctx context.Context, r models.RecipeSummary) models.RecipeSummaryWithTags
}

type Service struct {
	store    Store
	tags     TagResolver
	feed     ChangeFeed
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time
	newID    func() string
}

// NewService wires the recipe service. notifier may be nil when the feed
// observes writes by itself, as a MongoDB change stream does.
func NewService(store Store, tags TagResolver, feed ChangeFeed, notifier Notifier, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:    store,
		tags:     tags,
		feed:     feed,
		notifier: notifier,
		log:      log.With(zap.String("component", "recipes")),
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		newID:    utils.GetUUID,
	}
}

// GetRecipeByID reports false when the recipe is missing or could not be read.
func (s *Service) GetRecipeByID(ctx context.Context, id string) (models.RecipeWithTags, bool) {
	recipe, err := s.store.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Error("error fetching recipe", zap.String("recipeId", id), zap.Error(err))
		}
		return models.RecipeWithTags{}, false
	}
	return s.tags.PopulateRecipeTags(ctx, recipe), true
}

// ListUserRecipes returns the user's recipes with tags resolved, or an empty
// list when they could not be read.
func (s *Service) ListUserRecipes(ctx context.Context, userID string) []models.RecipeSummaryWithTags {
	list, err := s.fetch(ctx, userID)
	if err != nil {
		s.log.Error("error listing recipes", zap.String("userId", userID), zap.Error(err))
		return []models.RecipeSummaryWithTags{}
	}
	return list
}

func (s *Service) fetch(ctx context.Context, userID string) ([]models.RecipeSummaryWithTags, error) {
	summaries, err := s.store.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]models.RecipeSummaryWithTags, len(summaries))
	var g errgroup.Group
	for i, summary := range summaries {
		g.Go(func() error {
			out[i] = s.tags.PopulateRecipeSummaryTags(ctx, summary)
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}

// SubscribeToUserRecipes calls callback with the user's current recipe list
// and again whenever the list changes. Read or feed failures deliver an empty
// list. The returned function stops the subscription and waits until no
// further callback can happen; calling it more than once is safe.
func (s *Service) SubscribeToUserRecipes(ctx context.Context, userID string, callback func([]models.RecipeSummaryWithTags)) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	refresh := func() {
		list, err := s.fetch(ctx, userID)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.log.Error("error subscribing to recipes", zap.String("userId", userID), zap.Error(err))
			callback([]models.RecipeSummaryWithTags{})
			return
		}
		callback(list)
	}

	go func() {
		defer close(done)
		if s.feed == nil {
			refresh()
			<-ctx.Done()
			return
		}
		if err := s.feed.Watch(ctx, userID, refresh); err != nil && ctx.Err() == nil {
			s.log.Error("error subscribing to recipes", zap.String("userId", userID), zap.Error(err))
			callback([]models.RecipeSummaryWithTags{})
		}
	}()

	var once sync.Once
	return func() {
		once.Do(cancel)
		<-done
	}
}

func (s *Service) newRecipe(id, userID string, in models.RecipeInput, now time.Time) models.Recipe {
	steps := in.Steps
	if steps == nil {
		steps = []string{}
	}
	ingredients := in.Ingredients.Clone()
	if ingredients == nil {
		ingredients = models.ServingIngredients{}
	}
	return models.Recipe{
		RecipeSummary: models.RecipeSummary{
			ID:          id,
			Title:       strings.TrimSpace(in.Title),
			Description: in.Description,
			Image:       in.Image,
			TagIDs:      in.TagIDs(),
			CreatedAt:   &now,
			UpdatedAt:   &now,
			UserID:      userID,
		},
		PrepTime:    in.PrepTime,
		CookTime:    in.CookTime,
		Servings:    in.Servings,
		Ingredients: ingredients,
		Steps:       steps,
	}
}

// CreateRecipe stores a new recipe owned by userID and returns its id.
func (s *Service) CreateRecipe(ctx context.Context, in models.RecipeInput, userID string) (string, error) {
	recipe := s.newRecipe(s.newID(), userID, in, s.now())
	if err := s.store.Insert(ctx, recipe); err != nil {
		s.log.Error("error creating recipe", zap.String("userId", userID), zap.Error(err))
		return "", fmt.Errorf("create recipe: %w", err)
	}
	s.publish(ctx, mq.RecipeEvent{UserID: userID, RecipeID: recipe.ID, Action: "created"})
	return recipe.ID, nil
}

// UpdateRecipe overwrites the recipe id owned by userID. It returns
// ErrNotFound when there is no such recipe.
func (s *Service) UpdateRecipe(ctx context.Context, id string, in models.RecipeInput, userID string) error {
	recipe := s.newRecipe(id, userID, in, s.now())
	recipe.CreatedAt = nil
	if err := s.store.Update(ctx, recipe); err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Error("error updating recipe", zap.String("recipeId", id), zap.Error(err))
		}
		return fmt.Errorf("update recipe %s: %w", id, err)
	}
	s.publish(ctx, mq.RecipeEvent{UserID: userID, RecipeID: id, Action: "updated"})
	return nil
}

func (s *Service) publish(ctx context.Context, event mq.RecipeEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, event); err != nil {
		s.log.Warn("failed to publish recipe change", zap.String("recipeId", event.RecipeID), zap.Error(err))
	}
}
