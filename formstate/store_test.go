package formstate

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"recipebox/models"
)

func newStore(t *testing.T, p Persister, initial *models.RecipeFormData) *Store {
	t.Helper()
	return New(context.Background(), "recipe-form:new", p, initial)
}

func twoServings() *models.RecipeFormData {
	return &models.RecipeFormData{
		Title:          "Carbonara",
		Tags:           []models.Tag{},
		Servings:       []int{2, 4},
		CurrentServing: 4,
		Ingredients: models.ServingIngredients{
			2: {{Amount: "a", Name: "n"}},
			4: {{Amount: "a2", Name: "n2"}},
		},
		Steps: []string{"Boil"},
	}
}

func requireAligned(t *testing.T, d models.RecipeFormData) {
	t.Helper()
	require.True(t, Aligned(d), "ingredient lists out of alignment: %+v", d.Ingredients)
}

func TestNew_Defaults(t *testing.T) {
	s := newStore(t, NewMemoryPersister(), nil)

	if diff := cmp.Diff(Defaults(), s.Snapshot()); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestNew_PersistedOverridesInitial(t *testing.T) {
	p := NewMemoryPersister()
	require.NoError(t, p.Save(context.Background(), "recipe-form:new",
		[]byte(`{"title":"From storage","ingredients":{"6":[{"amount":"1","name":"Egg"}]}}`)))

	s := newStore(t, p, twoServings())
	got := s.Snapshot()

	assert.Equal(t, "From storage", got.Title)
	// fields missing from storage come from initial data
	assert.Equal(t, []int{2, 4}, got.Servings)
	assert.Equal(t, []string{"Boil"}, got.Steps)
	// the stored ingredients replace the initial ones wholesale
	assert.Equal(t, models.ServingIngredients{6: {{Amount: "1", Name: "Egg"}}}, got.Ingredients)
}

func TestNew_CorruptStorageFallsBack(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	p := NewMemoryPersister()
	require.NoError(t, p.Save(context.Background(), "k", []byte(`{"title":`)))

	s := New(context.Background(), "k", p, twoServings(), WithLogger(zap.New(core)))

	if diff := cmp.Diff(*twoServings(), s.Snapshot()); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, logs.FilterMessage("failed to parse stored form data").Len())
}

type failingPersister struct{}

func (failingPersister) Load(context.Context, string) ([]byte, error) {
	return nil, errors.New("quota exceeded")
}
func (failingPersister) Save(context.Context, string, []byte) error {
	return errors.New("quota exceeded")
}
func (failingPersister) Delete(context.Context, string) error { return errors.New("quota exceeded") }

func TestPersistenceFailuresAreSwallowed(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s := New(context.Background(), "k", failingPersister{}, nil, WithLogger(zap.New(core)))

	got := s.AddStep()
	assert.Len(t, got.Steps, 2)
	s.ClearStorage()
	s.Reset()

	assert.Equal(t, 1, logs.FilterMessage("failed to load stored form data").Len())
	assert.Equal(t, 1, logs.FilterMessage("failed to save form data").Len())
	assert.Equal(t, 2, logs.FilterMessage("failed to clear stored form data").Len())
}

func TestNew_DoesNotWrite(t *testing.T) {
	p := NewMemoryPersister()
	newStore(t, p, twoServings())

	_, err := p.Load(context.Background(), "recipe-form:new")
	assert.ErrorIs(t, err, ErrNotPersisted)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing stored", func(t *testing.T) {
		s, err := Open(ctx, "k", NewMemoryPersister(), nil)
		require.NoError(t, err)
		assert.Equal(t, Defaults(), s.Snapshot())
	})

	t.Run("corrupt data is not an error", func(t *testing.T) {
		p := NewMemoryPersister()
		require.NoError(t, p.Save(ctx, "k", []byte(`{"title":`)))
		s, err := Open(ctx, "k", p, twoServings())
		require.NoError(t, err)
		assert.Equal(t, "Carbonara", s.Snapshot().Title)
	})

	t.Run("load failure is reported", func(t *testing.T) {
		s, err := Open(ctx, "k", failingPersister{}, twoServings())
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotPersisted)
		assert.Contains(t, err.Error(), "quota exceeded")
		require.NotNil(t, s)
		assert.Equal(t, "Carbonara", s.Snapshot().Title)
	})
}

// flakyPersister fails the next Load when failNext is set.
type flakyPersister struct {
	*MemoryPersister
	failNext bool
}

func (f *flakyPersister) Load(ctx context.Context, key string) ([]byte, error) {
	if f.failNext {
		f.failNext = false
		return nil, errors.New("connection reset")
	}
	return f.MemoryPersister.Load(ctx, key)
}

func TestFailedLoadKeepsStoredSnapshot(t *testing.T) {
	p := &flakyPersister{MemoryPersister: NewMemoryPersister()}
	s := newStore(t, p, nil)
	s.SetBasicInfo(BasicInfo{Title: "Carbonara"})
	want := s.AddStep()

	p.failNext = true
	blank := newStore(t, p, nil)
	assert.Equal(t, Defaults(), blank.Snapshot())

	reopened := newStore(t, p, nil)
	if diff := cmp.Diff(want, reopened.Snapshot()); diff != "" {
		t.Fatalf("stored snapshot lost (-want +got):\n%s", diff)
	}
}

func TestAddIngredient_AppendsToEveryServing(t *testing.T) {
	s := newStore(t, NewMemoryPersister(), twoServings())

	got := s.AddIngredient(4, []int{2, 4})

	want := models.ServingIngredients{
		2: {{Amount: "a", Name: "n"}, {Amount: "", Name: ""}},
		4: {{Amount: "a2", Name: "n2"}, {Amount: "", Name: ""}},
	}
	if diff := cmp.Diff(want, got.Ingredients); diff != "" {
		t.Fatalf("ingredients mismatch (-want +got):\n%s", diff)
	}
}

func TestAddIngredient_CreatesMissingLists(t *testing.T) {
	s := newStore(t, NewMemoryPersister(), nil)

	got := s.AddIngredient(4, []int{4, 8, 8})
	assert.Len(t, got.Ingredients[4], 2)
	assert.Len(t, got.Ingredients[8], 1)
}

func TestRemoveIngredient(t *testing.T) {
	s := newStore(t, NewMemoryPersister(), twoServings())
	s.AddIngredient(4, []int{2, 4})
	s.SetIngredient(2, 1, models.Ingredient{Amount: "b", Name: "second"})

	got := s.RemoveIngredient(0, 4, []int{2, 4})
	assert.Equal(t, []models.Ingredient{{Amount: "b", Name: "second"}}, got.Ingredients[2])
	assert.Len(t, got.Ingredients[4], 1)
	requireAligned(t, got)

	// last ingredient stays
	got = s.RemoveIngredient(0, 4, []int{2, 4})
	assert.Len(t, got.Ingredients[2], 1)
	assert.Len(t, got.Ingredients[4], 1)
}

func TestRemoveIngredient_OutOfRangeIsNoop(t *testing.T) {
	s := newStore(t, NewMemoryPersister(), twoServings())
	before := s.AddIngredient(4, []int{2, 4})

	got := s.RemoveIngredient(7, 4, []int{2, 4})
	if diff := cmp.Diff(before, got); diff != "" {
		t.Fatalf("state changed (-before +after):\n%s", diff)
	}
}

func TestRemoveServing(t *testing.T) {
	s := newStore(t, NewMemoryPersister(), twoServings())

	got := s.RemoveServing(4)
	assert.Equal(t, []int{2}, got.Servings)
	assert.Equal(t, 2, got.CurrentServing)
	assert.NotContains(t, got.Ingredients, 4)

	// the last serving cannot go
	again := s.RemoveServing(2)
	if diff := cmp.Diff(got, again); diff != "" {
		t.Fatalf("state changed (-before +after):\n%s", diff)
	}
}

func TestRemoveServing_KeepsCurrentWhenOtherRemoved(t *testing.T) {
	s := newStore(t, NewMemoryPersister(), twoServings())

	got := s.RemoveServing(2)
	assert.Equal(t, []int{4}, got.Servings)
	assert.Equal(t, 4, got.CurrentServing)
}

func TestAddServing_CopiesSlots(t *testing.T) {
	s := newStore(t, NewMemoryPersister(), twoServings())

	got := s.AddServing(6)
	assert.Equal(t, []int{2, 4, 6}, got.Servings)
	assert.Equal(t, []models.Ingredient{{Name: "n2"}}, got.Ingredients[6])
	requireAligned(t, got)

	assert.Equal(t, got, s.AddServing(6))
	assert.Equal(t, got, s.AddServing(0))
}

func TestChangeServing_IsUnchecked(t *testing.T) {
	s := newStore(t, NewMemoryPersister(), twoServings())
	assert.Equal(t, 12, s.ChangeServing(12).CurrentServing)
}

func TestTags(t *testing.T) {
	s := newStore(t, NewMemoryPersister(), nil)
	italian := models.Tag{ID: "t1", Name: "Italian"}

	s.AddTag(italian)
	got := s.AddTag(italian)
	assert.Len(t, got.Tags, 2)

	got = s.RemoveTag(5)
	assert.Len(t, got.Tags, 2)
	got = s.RemoveTag(0)
	assert.Equal(t, []models.Tag{italian}, got.Tags)
}

func TestSteps(t *testing.T) {
	s := newStore(t, NewMemoryPersister(), nil)

	assert.Equal(t, []string{""}, s.RemoveStep(0).Steps)

	s.AddStep()
	s.SetStep(0, "Chop")
	s.SetStep(1, "Fry")
	got := s.RemoveStep(0)
	assert.Equal(t, []string{"Fry"}, got.Steps)
	assert.Equal(t, []string{"Fry"}, s.RemoveStep(0).Steps)
}

func TestInvariantsHoldAcrossOperations(t *testing.T) {
	s := newStore(t, NewMemoryPersister(), nil)
	ops := []func() models.RecipeFormData{
		func() models.RecipeFormData { return s.AddServing(2) },
		func() models.RecipeFormData { return s.AddIngredient(4, []int{2, 4}) },
		func() models.RecipeFormData { return s.AddServing(8) },
		func() models.RecipeFormData { return s.AddIngredient(2, []int{2, 4, 8}) },
		func() models.RecipeFormData { return s.RemoveIngredient(1, 8, []int{2, 4, 8}) },
		func() models.RecipeFormData { return s.RemoveServing(4) },
		func() models.RecipeFormData { return s.RemoveIngredient(0, 2, []int{2, 8}) },
		func() models.RecipeFormData { return s.RemoveIngredient(0, 2, []int{2, 8}) },
		func() models.RecipeFormData { return s.RemoveServing(8) },
		func() models.RecipeFormData { return s.RemoveServing(2) },
	}

	for i, op := range ops {
		got := op()
		requireAligned(t, got)
		require.NotEmpty(t, got.Servings, "op %d", i)
		require.Contains(t, got.Servings, got.CurrentServing, "op %d", i)
		for _, serving := range got.Servings {
			require.NotEmpty(t, got.Ingredients[serving], "op %d serving %d", i, serving)
		}
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	p := NewMemoryPersister()
	s := newStore(t, p, nil)
	s.SetBasicInfo(BasicInfo{Title: "Lava cake", CookTime: "12 minutes"})
	s.AddServing(2)
	s.AddIngredient(4, []int{2, 4})
	s.SetIngredient(2, 0, models.Ingredient{Amount: "50g", Name: "Chocolate"})
	s.AddTag(models.Tag{ID: "t9", Name: "Dessert", Color: "#FF69B4"})
	s.ChangeServing(2)
	want := s.AddStep()

	reopened := newStore(t, p, nil)
	if diff := cmp.Diff(want, reopened.Snapshot()); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestReset(t *testing.T) {
	p := NewMemoryPersister()
	s := newStore(t, p, twoServings())
	s.AddStep()

	got := s.Reset()
	assert.Equal(t, Defaults(), got)

	_, err := p.Load(context.Background(), "recipe-form:new")
	assert.ErrorIs(t, err, ErrNotPersisted)

	reopened := newStore(t, p, nil)
	assert.Equal(t, Defaults(), reopened.Snapshot())
}

func TestClearStorageKeepsMemoryState(t *testing.T) {
	p := NewMemoryPersister()
	s := newStore(t, p, twoServings())

	s.ClearStorage()
	assert.Equal(t, "Carbonara", s.Snapshot().Title)

	_, err := p.Load(context.Background(), "recipe-form:new")
	assert.ErrorIs(t, err, ErrNotPersisted)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := newStore(t, NewMemoryPersister(), twoServings())

	snap := s.Snapshot()
	snap.Ingredients[2][0].Name = "mutated"
	snap.Steps[0] = "mutated"

	assert.Equal(t, "n", s.Snapshot().Ingredients[2][0].Name)
	assert.Equal(t, "Boil", s.Snapshot().Steps[0])
}

func TestUpdateAndSet(t *testing.T) {
	s := newStore(t, NewMemoryPersister(), nil)

	got := s.Update(func(d models.RecipeFormData) models.RecipeFormData {
		d.Description = "Rich"
		return d
	})
	assert.Equal(t, "Rich", got.Description)

	got = s.Set(models.RecipeFormData{Title: "Only title"})
	assert.Equal(t, "Only title", got.Title)
	assert.NotNil(t, got.Ingredients)
	assert.NotNil(t, got.Steps)
}
