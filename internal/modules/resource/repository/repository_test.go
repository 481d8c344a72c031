package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorme.app/marketplace/internal/gateway/memdb"
)

func TestResourceRepository_Flatten(t *testing.T) {
	store := memdb.New(nil)
	defer store.Close()
	repo := NewResourceRepository(store)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "resources/mathematics/notes/r1", map[string]any{"title": "Algebra", "isPremium": false}))
	require.NoError(t, store.Set(ctx, "resources/mathematics/videos/r2", map[string]any{"title": "Calculus", "isPremium": true}))
	require.NoError(t, store.Set(ctx, "resources/physics/notes/r3", map[string]any{"title": "Motion"}))

	math, err := repo.GetResourcesBySubject(ctx, "mathematics")
	require.NoError(t, err)
	require.Len(t, math, 2)
	assert.Equal(t, "notes", math[0].Category)
	assert.Equal(t, "mathematics", math[1].Subject)
	assert.True(t, math[1].IsPremium)

	all, err := repo.GetAllResources(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	r, err := repo.GetResource(ctx, "physics", "notes", "r3")
	require.NoError(t, err)
	assert.Equal(t, "Motion", r.Title)

	missing, err := repo.GetResource(ctx, "physics", "notes", "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	empty, err := repo.GetResourcesBySubject(ctx, "history")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
