// Package tags resolves recipe tags: the global set every user sees, each
// user's own tags, and tag references on recipes.
package tags

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"recipebox/models"
	"recipebox/utils"
)

// Store is the tag document store.
type Store interface {
	FindByID(ctx context.Context, id string) (models.Tag, error)
	FindGlobal(ctx context.Context) ([]models.Tag, error)
	FindByUser(ctx context.Context, userID string) ([]models.Tag, error)
	Insert(ctx context.Context, tag models.Tag) error
	InsertMany(ctx context.Context, tags []models.Tag) error
	CountGlobal(ctx context.Context) (int64, error)
}

type Service struct {
	store Store
	log   *zap.Logger
	now   func() time.Time
	newID func() string
}

func NewService(store Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store: store,
		log:   log.With(zap.String("component", "tags")),
		now:   time.Now,
		newID: utils.GetUUID,
	}
}

// GetAllTags returns the global tags followed by the user's own tags. An empty
// userID returns only global tags. Lookup failures yield an empty list.
func (s *Service) GetAllTags(ctx context.Context, userID string) []models.Tag {
	var global, own []models.Tag

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		global, err = s.store.FindGlobal(gctx)
		return err
	})
	if userID != "" {
		g.Go(func() error {
			var err error
			own, err = s.store.FindByUser(gctx, userID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		s.log.Error("error fetching tags", zap.String("userId", userID), zap.Error(err))
		return []models.Tag{}
	}

	all := make([]models.Tag, 0, len(global)+len(own))
	all = append(all, global...)
	return append(all, own...)
}

// GetTagByID reports false when the tag is missing or the lookup failed.
func (s *Service) GetTagByID(ctx context.Context, id string) (models.Tag, bool) {
	tag, err := s.store.FindByID(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return models.Tag{}, false
	}
	if err != nil {
		s.log.Error("error fetching tag", zap.String("tagId", id), zap.Error(err))
		return models.Tag{}, false
	}
	return tag, true
}

// PopulateTags looks every id up concurrently. The result keeps the order of
// ids and drops the ones that could not be resolved.
func (s *Service) PopulateTags(ctx context.Context, ids []string) []models.Tag {
	if len(ids) == 0 {
		return []models.Tag{}
	}

	found := make([]*models.Tag, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			if tag, ok := s.GetTagByID(ctx, id); ok {
				found[i] = &tag
			}
			return nil
		})
	}
	_ = g.Wait()

	tags := make([]models.Tag, 0, len(ids))
	for _, t := range found {
		if t != nil {
			tags = append(tags, *t)
		}
	}
	return tags
}

func (s *Service) PopulateRecipeSummaryTags(ctx context.Context, r models.RecipeSummary) models.RecipeSummaryWithTags {
	return models.ResolveSummary(r, s.PopulateTags(ctx, r.TagIDs))
}

func (s *Service) PopulateRecipeTags(ctx context.Context, r models.Recipe) models.RecipeWithTags {
	return models.ResolveRecipe(r, s.PopulateTags(ctx, r.TagIDs))
}

// CreateTag stores a new tag owned by userID.
func (s *Service) CreateTag(ctx context.Context, name, color, userID string) (models.Tag, error) {
	now := s.now()
	tag := models.Tag{
		ID:        s.newID(),
		Name:      name,
		Color:     color,
		UserID:    userID,
		IsGlobal:  false,
		CreatedAt: &now,
		UpdatedAt: &now,
	}
	if err := s.store.Insert(ctx, tag); err != nil {
		s.log.Error("error creating tag", zap.String("userId", userID), zap.Error(err))
		return models.Tag{}, fmt.Errorf("create tag: %w", err)
	}
	return tag, nil
}
