package directory

import (
	"context"
	"testing"
	"time"

	"astroline/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*PresenceStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewPresenceStore(client, time.Minute), mr
}

func sampleProfile(id string) *model.AstrologerProfile {
	return &model.AstrologerProfile{
		ID:              id,
		IsOnline:        true,
		IsActive:        true,
		Specializations: []string{"vedic"},
		Languages:       []string{"hi", "en"},
		MaxConcurrent:   5,
	}
}

func TestPresenceStore_PublishAndGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Publish(ctx, sampleProfile("ast-1")))

	got, err := store.Get(ctx, "ast-1")
	require.NoError(t, err)
	assert.Equal(t, "ast-1", got.ID)
	assert.Equal(t, 5, got.MaxConcurrent)
	assert.Equal(t, []string{"hi", "en"}, got.Languages)
}

func TestPresenceStore_GetMissing(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "ghost")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestPresenceStore_GetAll(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Publish(ctx, sampleProfile("ast-1")))
	require.NoError(t, store.Publish(ctx, sampleProfile("ast-2")))
	require.NoError(t, store.Publish(ctx, sampleProfile("ast-3")))

	profiles, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, profiles, 3)
}

func TestPresenceStore_GetAllEmpty(t *testing.T) {
	store, _ := newTestStore(t)

	profiles, err := store.GetAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

func TestPresenceStore_ExpiredEntryAgesOut(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Publish(ctx, sampleProfile("ast-1")))
	require.NoError(t, store.Publish(ctx, sampleProfile("ast-2")))

	// The profile key expires before the id set does; GetAll must skip
	// the aged-out entry instead of failing.
	mr.FastForward(time.Minute + time.Second)
	require.NoError(t, store.Publish(ctx, sampleProfile("ast-2")))

	profiles, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "ast-2", profiles[0].ID)
}

func TestPresenceStore_Remove(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Publish(ctx, sampleProfile("ast-1")))
	require.NoError(t, store.Remove(ctx, "ast-1"))

	_, err := store.Get(ctx, "ast-1")
	assert.Error(t, err)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestPresenceStore_Count(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, store.Publish(ctx, sampleProfile("ast-1")))
	require.NoError(t, store.Publish(ctx, sampleProfile("ast-2")))

	count, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
