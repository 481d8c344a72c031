package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tutorme.app/marketplace/internal/entity"
	"tutorme.app/marketplace/internal/gateway/memdb"
	"tutorme.app/marketplace/internal/modules/subject/repository"
)

func TestSubjectService(t *testing.T) {
	store := memdb.New(nil)
	defer store.Close()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "subjects/physics", map[string]any{"name": "Physics"}))
	require.NoError(t, store.Set(ctx, "subjects/mathematics", map[string]any{"name": "Mathematics"}))

	svc := NewSubjectService(repository.NewSubjectRepository(store, zap.NewNop()))

	options, err := svc.GetSubjectOptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []entity.SubjectOption{
		{ID: "mathematics", Value: "mathematics", Label: "Mathematics"},
		{ID: "physics", Value: "physics", Label: "Physics"},
	}, options)

	unknown, err := svc.Unknown(ctx, []string{"physics", "alchemy", "mathematics", "astrology"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alchemy", "astrology"}, unknown)

	unknown, err = svc.Unknown(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, unknown)
}
