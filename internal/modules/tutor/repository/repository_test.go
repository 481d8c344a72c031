package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tutorme.app/marketplace/internal/entity"
	"tutorme.app/marketplace/internal/gateway/memdb"
)

func TestTutorRepository_BySubjectAndAvailability(t *testing.T) {
	store := memdb.New(nil)
	defer store.Close()
	repo := NewTutorRepository(store, zap.NewNop(), nil)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "users/tutors/t1", map[string]any{"fullName": "Zed", "subjects": []string{"physics", "mathematics"}}))
	require.NoError(t, store.Set(ctx, "users/tutors/t2", map[string]any{"fullName": "Amy", "subjects": []string{"mathematics"}}))
	require.NoError(t, store.Set(ctx, "users/tutors/t3", map[string]any{"fullName": "Bob", "subjects": []string{"chemistry"}}))

	math, err := repo.GetTutorsBySubject(ctx, "mathematics")
	require.NoError(t, err)
	require.Len(t, math, 2)
	assert.Equal(t, "Amy", math[0].FullName)
	assert.Equal(t, "Zed", math[1].FullName)

	none, err := repo.GetTutorsBySubject(ctx, "history")
	require.NoError(t, err)
	assert.Empty(t, none)

	avail := entity.NewAvailability()
	avail["monday"] = []string{"09:00-10:00"}
	require.NoError(t, repo.UpdateAvailability(ctx, "t2", avail))

	got, err := repo.GetTutor(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00-10:00"}, got.Availability["monday"])
	assert.False(t, got.UpdatedAt.IsZero())
}
