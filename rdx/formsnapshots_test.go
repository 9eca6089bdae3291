package rdx

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipebox/config"
	"recipebox/formstate"
	"recipebox/models"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestFormSnapshots_LoadMissing(t *testing.T) {
	_, client := newRedis(t)
	fs := NewFormSnapshots(client, "recipe-form", 0)

	_, err := fs.Load(context.Background(), "u1:new")
	assert.ErrorIs(t, err, formstate.ErrNotPersisted)
}

func TestFormSnapshots_SaveLoadDelete(t *testing.T) {
	mr, client := newRedis(t)
	fs := NewFormSnapshots(client, "recipe-form", time.Hour)
	ctx := context.Background()

	require.NoError(t, fs.Save(ctx, "u1:new", []byte(`{"title":"Soup"}`)))
	assert.True(t, mr.Exists("recipe-form:u1:new"))
	assert.Equal(t, time.Hour, mr.TTL("recipe-form:u1:new"))

	got, err := fs.Load(ctx, "u1:new")
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Soup"}`, string(got))

	require.NoError(t, fs.Delete(ctx, "u1:new"))
	assert.False(t, mr.Exists("recipe-form:u1:new"))
}

func TestFormSnapshots_BackRecipeFormStore(t *testing.T) {
	_, client := newRedis(t)
	fs := NewFormSnapshots(client, "recipe-form", 0)
	ctx := context.Background()

	s := formstate.New(ctx, "u1:new", fs, nil)
	s.SetBasicInfo(formstate.BasicInfo{Title: "Greek Salad"})
	want := s.AddIngredient(4, []int{4})

	reopened := formstate.New(ctx, "u1:new", fs, &models.RecipeFormData{Title: "ignored"})
	assert.Equal(t, want, reopened.Snapshot())
}

func TestNewClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewClient(context.Background(), config.RedisConfig{Addr: addr})
	assert.Error(t, err)
}
