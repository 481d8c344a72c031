package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tutorme.app/marketplace/internal/gateway/memdb"
	"tutorme.app/marketplace/internal/modules/resource/dto"
	"tutorme.app/marketplace/internal/modules/resource/repository"
	studentRepo "tutorme.app/marketplace/internal/modules/student/repository"
	"tutorme.app/marketplace/pkg/apperror"
)

func newTestService(t *testing.T) (ResourceService, studentRepo.StudentRepository) {
	t.Helper()
	log := zap.NewNop()
	store := memdb.New(log)
	t.Cleanup(store.Close)

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "resources/mathematics/algebra/r1", map[string]any{"title": "Algebra basics", "isPremium": false}))
	require.NoError(t, store.Set(ctx, "resources/mathematics/algebra/r2", map[string]any{"title": "Advanced algebra", "isPremium": true}))
	require.NoError(t, store.Set(ctx, "users/students/free", map[string]any{"fullName": "Fay", "subscriptionPlan": "free"}))
	require.NoError(t, store.Set(ctx, "users/students/paid", map[string]any{"fullName": "Pat", "subscriptionPlan": "premium"}))

	students := studentRepo.NewStudentRepository(store, log, nil)
	return NewResourceService(repository.NewResourceRepository(store), students, log), students
}

func accessibleByTitle(items []dto.ResourceResponse) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, r := range items {
		out[r.Title] = r.Accessible
	}
	return out
}

func TestListResources_FreePlanDisablesPremium(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	free, err := svc.ListResources(ctx, "free", dto.ResourceFilter{Subject: "mathematics"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"Algebra basics": true, "Advanced algebra": false}, accessibleByTitle(free))

	paid, err := svc.ListResources(ctx, "paid", dto.ResourceFilter{})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"Algebra basics": true, "Advanced algebra": true}, accessibleByTitle(paid))

	tutor, err := svc.ListResources(ctx, "some-tutor", dto.ResourceFilter{})
	require.NoError(t, err)
	assert.Len(t, tutor, 2)

	empty, err := svc.ListResources(ctx, "free", dto.ResourceFilter{Subject: "physics"})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestAccess(t *testing.T) {
	svc, students := newTestService(t)
	ctx := context.Background()

	_, err := svc.Access(ctx, "free", "mathematics", "algebra", "r2")
	assert.True(t, errors.Is(err, apperror.ErrForbidden))

	res, err := svc.Access(ctx, "free", "mathematics", "algebra", "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.FreeResourcesAccessed)

	res, err = svc.Access(ctx, "free", "mathematics", "algebra", "r1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.FreeResourcesAccessed)

	st, err := students.GetStudent(ctx, "free")
	require.NoError(t, err)
	assert.Equal(t, 2, st.FreeResourcesAccessed)

	res, err = svc.Access(ctx, "paid", "mathematics", "algebra", "r2")
	require.NoError(t, err)
	assert.Equal(t, 0, res.FreeResourcesAccessed)

	_, err = svc.Access(ctx, "free", "mathematics", "algebra", "missing")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}
