// Package formstate holds the state of an in-progress recipe edit and keeps
// it persisted after every change.
//
// Every operation works on a copy of the current snapshot, swaps it in and
// writes the whole snapshot to the Persister before returning. Operations
// never fail: invalid requests leave the state as it was, and persistence
// problems are logged. Opening a store only reads.
package formstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"recipebox/models"
)

const defaultServing = 4

// Defaults returns the state of a blank editor.
func Defaults() models.RecipeFormData {
	return models.RecipeFormData{
		Tags:           []models.Tag{},
		Servings:       []int{defaultServing},
		CurrentServing: defaultServing,
		Ingredients:    models.ServingIngredients{defaultServing: {{}}},
		Steps:          []string{""},
	}
}

type Store struct {
	mu        sync.Mutex
	key       string
	persister Persister
	log       *zap.Logger
	timeout   time.Duration
	state     models.RecipeFormData
}

type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithTimeout bounds every persistence call.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

// New builds a store for storageKey. The initial state is Defaults(),
// overridden by initial when non-nil, overridden field by field by whatever
// is persisted under storageKey. A failed load is logged and the store starts
// from the initial state; nothing is written until the first operation.
func New(ctx context.Context, storageKey string, p Persister, initial *models.RecipeFormData, opts ...Option) *Store {
	s, err := Open(ctx, storageKey, p, initial, opts...)
	if err != nil {
		s.log.Warn("failed to load stored form data", zap.Error(err))
	}
	return s
}

// Open is New for callers that must not overwrite a snapshot they could not
// read. When the persister fails with anything but ErrNotPersisted the store
// is still returned, together with the wrapped error. Malformed stored data
// is not an error: it is logged and ignored.
func Open(ctx context.Context, storageKey string, p Persister, initial *models.RecipeFormData, opts ...Option) (*Store, error) {
	s := &Store{
		key:       storageKey,
		persister: p,
		log:       zap.NewNop(),
		timeout:   2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(zap.String("storageKey", storageKey))

	state := Defaults()
	if initial != nil {
		state = initial.Clone()
	}

	lctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	raw, err := p.Load(lctx, storageKey)
	var loadErr error
	switch {
	case errors.Is(err, ErrNotPersisted):
	case err != nil:
		loadErr = fmt.Errorf("load %q: %w", storageKey, err)
	default:
		merged, err := overlay(state, raw)
		if err != nil {
			s.log.Warn("failed to parse stored form data", zap.Error(err))
		} else {
			state = merged
		}
	}

	s.state = normalize(state)
	return s, loadErr
}

// overlay applies the top-level fields present in raw on top of base.
func overlay(base models.RecipeFormData, raw []byte) (models.RecipeFormData, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return base, err
	}
	out := base.Clone()
	if _, ok := fields["ingredients"]; ok {
		// replace, don't merge serving keys
		out.Ingredients = nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return base, err
	}
	return out, nil
}

func normalize(d models.RecipeFormData) models.RecipeFormData {
	if d.Tags == nil {
		d.Tags = []models.Tag{}
	}
	if d.Servings == nil {
		d.Servings = []int{}
	}
	if d.Ingredients == nil {
		d.Ingredients = models.ServingIngredients{}
	}
	if d.Steps == nil {
		d.Steps = []string{}
	}
	return d
}

// persist must be called with s.mu held or before s is shared.
func (s *Store) persist() {
	raw, err := json.Marshal(s.state)
	if err != nil {
		s.log.Error("failed to encode form data", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.persister.Save(ctx, s.key, raw); err != nil {
		s.log.Warn("failed to save form data", zap.Error(err))
	}
}

func (s *Store) forget() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.persister.Delete(ctx, s.key); err != nil {
		s.log.Warn("failed to clear stored form data", zap.Error(err))
	}
}

func (s *Store) update(fn func(d *models.RecipeFormData)) models.RecipeFormData {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.state.Clone()
	fn(&next)
	s.state = normalize(next)
	s.persist()
	return s.state.Clone()
}

// Key returns the storage key.
func (s *Store) Key() string { return s.key }

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() models.RecipeFormData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Set replaces the whole state.
func (s *Store) Set(d models.RecipeFormData) models.RecipeFormData {
	return s.update(func(cur *models.RecipeFormData) { *cur = d.Clone() })
}

// Update applies fn to a copy of the current state and stores the result.
func (s *Store) Update(fn func(models.RecipeFormData) models.RecipeFormData) models.RecipeFormData {
	return s.update(func(cur *models.RecipeFormData) { *cur = fn(*cur) })
}

// BasicInfo is the first editor step.
type BasicInfo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	PrepTime    string `json:"prepTime"`
	CookTime    string `json:"cookTime"`
}

func (s *Store) SetBasicInfo(info BasicInfo) models.RecipeFormData {
	return s.update(func(d *models.RecipeFormData) {
		d.Title = info.Title
		d.Description = info.Description
		d.Image = info.Image
		d.PrepTime = info.PrepTime
		d.CookTime = info.CookTime
	})
}

// AddTag appends tag. Duplicates are kept.
func (s *Store) AddTag(tag models.Tag) models.RecipeFormData {
	return s.update(func(d *models.RecipeFormData) {
		d.Tags = append(d.Tags, tag)
	})
}

func (s *Store) RemoveTag(index int) models.RecipeFormData {
	return s.update(func(d *models.RecipeFormData) {
		if index < 0 || index >= len(d.Tags) {
			return
		}
		d.Tags = slices.Delete(d.Tags, index, index+1)
	})
}

// ChangeServing selects the serving size shown in the editor. n is not
// checked against Servings; callers pass one of them.
func (s *Store) ChangeServing(n int) models.RecipeFormData {
	return s.update(func(d *models.RecipeFormData) {
		d.CurrentServing = n
	})
}

// AddServing makes n selectable. The new list copies the ingredient names of
// the current serving with empty amounts so every list keeps the same slots.
func (s *Store) AddServing(n int) models.RecipeFormData {
	return s.update(func(d *models.RecipeFormData) {
		if n <= 0 || slices.Contains(d.Servings, n) {
			return
		}
		template, ok := d.Ingredients[d.CurrentServing]
		if !ok && len(d.Servings) > 0 {
			template = d.Ingredients[d.Servings[0]]
		}
		list := make([]models.Ingredient, len(template))
		for i, ing := range template {
			list[i] = models.Ingredient{Name: ing.Name}
		}
		d.Servings = append(d.Servings, n)
		d.Ingredients[n] = list
	})
}

// RemoveServing drops n and its ingredient list unless it is the last
// serving. If n was current, the first remaining serving becomes current.
func (s *Store) RemoveServing(n int) models.RecipeFormData {
	return s.update(func(d *models.RecipeFormData) {
		remaining := slices.DeleteFunc(slices.Clone(d.Servings), func(v int) bool { return v == n })
		if len(remaining) == 0 {
			return
		}
		delete(d.Ingredients, n)
		d.Servings = remaining
		if d.CurrentServing == n {
			d.CurrentServing = remaining[0]
		}
	})
}

// AddIngredient appends an empty slot to the list of currentServing and of
// every serving in allServings.
func (s *Store) AddIngredient(currentServing int, allServings []int) models.RecipeFormData {
	return s.update(func(d *models.RecipeFormData) {
		seen := map[int]bool{currentServing: true}
		d.Ingredients[currentServing] = append(d.Ingredients[currentServing], models.Ingredient{})
		for _, serving := range allServings {
			if seen[serving] {
				continue
			}
			seen[serving] = true
			d.Ingredients[serving] = append(d.Ingredients[serving], models.Ingredient{})
		}
	})
}

// RemoveIngredient removes slot index from every serving in allServings. The
// last ingredient of currentServing is never removed.
func (s *Store) RemoveIngredient(index, currentServing int, allServings []int) models.RecipeFormData {
	return s.update(func(d *models.RecipeFormData) {
		if len(d.Ingredients[currentServing]) <= 1 {
			return
		}
		for _, serving := range allServings {
			list, ok := d.Ingredients[serving]
			if !ok || index < 0 || index >= len(list) {
				continue
			}
			d.Ingredients[serving] = slices.Delete(list, index, index+1)
		}
	})
}

// SetIngredient overwrites one ingredient slot of serving.
func (s *Store) SetIngredient(serving, index int, ing models.Ingredient) models.RecipeFormData {
	return s.update(func(d *models.RecipeFormData) {
		list := d.Ingredients[serving]
		if index < 0 || index >= len(list) {
			return
		}
		list[index] = ing
	})
}

func (s *Store) AddStep() models.RecipeFormData {
	return s.update(func(d *models.RecipeFormData) {
		d.Steps = append(d.Steps, "")
	})
}

// RemoveStep removes step index unless it is the only step.
func (s *Store) RemoveStep(index int) models.RecipeFormData {
	return s.update(func(d *models.RecipeFormData) {
		if len(d.Steps) <= 1 || index < 0 || index >= len(d.Steps) {
			return
		}
		d.Steps = slices.Delete(d.Steps, index, index+1)
	})
}

func (s *Store) SetStep(index int, text string) models.RecipeFormData {
	return s.update(func(d *models.RecipeFormData) {
		if index < 0 || index >= len(d.Steps) {
			return
		}
		d.Steps[index] = text
	})
}

// ClearStorage deletes the persisted snapshot. The in-memory state is kept
// and is written again by the next operation.
func (s *Store) ClearStorage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forget()
}

// Reset restores Defaults() and deletes the persisted snapshot.
func (s *Store) Reset() models.RecipeFormData {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Defaults()
	s.forget()
	return s.state.Clone()
}

// Aligned reports whether every serving has an ingredient list and all of
// them have the same length.
func Aligned(d models.RecipeFormData) bool {
	want := -1
	for _, serving := range d.Servings {
		list, ok := d.Ingredients[serving]
		if !ok {
			return false
		}
		if want == -1 {
			want = len(list)
		} else if len(list) != want {
			return false
		}
	}
	return true
}
