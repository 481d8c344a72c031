package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tutorme.app/marketplace/internal/entity"
	"tutorme.app/marketplace/internal/gateway/memdb"
	"tutorme.app/marketplace/internal/modules/student/dto"
	"tutorme.app/marketplace/internal/modules/student/repository"
	planRepo "tutorme.app/marketplace/internal/modules/subscription/repository"
	"tutorme.app/marketplace/pkg/apperror"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (StudentService, repository.StudentRepository, *memdb.Store) {
	t.Helper()
	log := zap.NewNop()
	store := memdb.New(log)
	t.Cleanup(store.Close)

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "subscriptionPlans/premium", map[string]any{"name": "Premium", "price": 19.99, "premiumAccess": true}))
	require.NoError(t, store.Set(ctx, "users/students/s1", map[string]any{"fullName": "Bea", "subscriptionPlan": "free"}))

	now := func() time.Time { return fixedNow }
	repo := repository.NewStudentRepository(store, log, now)
	return NewStudentService(repo, planRepo.NewPlanRepository(store), log, now), repo, store
}

func TestChangePlan(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.ChangePlan(ctx, "s1", dto.ChangePlanInput{Plan: "premium"})
	require.NoError(t, err)
	assert.Equal(t, "premium", res.Plan)
	require.NotNil(t, res.EndDate)
	assert.True(t, fixedNow.AddDate(0, 1, 0).Equal(*res.EndDate))

	st, err := repo.GetStudent(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "premium", st.SubscriptionPlan)
	assert.False(t, st.OnFreePlan())

	res, err = svc.ChangePlan(ctx, "s1", dto.ChangePlanInput{Plan: entity.FreePlan})
	require.NoError(t, err)
	assert.Nil(t, res.EndDate)

	st, err = repo.GetStudent(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, st.OnFreePlan())
	assert.Nil(t, st.SubscriptionStartDate)
}

func TestChangePlan_Errors(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.ChangePlan(ctx, "s1", dto.ChangePlanInput{Plan: "platinum"})
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	_, err = svc.ChangePlan(ctx, "nobody", dto.ChangePlanInput{Plan: "premium"})
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	_, err = svc.ChangePlan(ctx, "s1", dto.ChangePlanInput{Plan: " "})
	assert.True(t, errors.Is(err, apperror.ErrInvalidInput))
}

func TestExpirePlans(t *testing.T) {
	svc, repo, store := newTestService(t)
	ctx := context.Background()

	past := fixedNow.Add(-time.Hour)
	future := fixedNow.Add(time.Hour)
	require.NoError(t, store.Set(ctx, "users/students/s2", map[string]any{"fullName": "Cy", "subscriptionPlan": "premium", "subscriptionEndDate": past}))
	require.NoError(t, store.Set(ctx, "users/students/s3", map[string]any{"fullName": "Di", "subscriptionPlan": "premium", "subscriptionEndDate": future}))

	n, err := svc.ExpirePlans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	s2, err := repo.GetStudent(ctx, "s2")
	require.NoError(t, err)
	assert.True(t, s2.OnFreePlan())

	s3, err := repo.GetStudent(ctx, "s3")
	require.NoError(t, err)
	assert.Equal(t, "premium", s3.SubscriptionPlan)
}

func TestMyStudents(t *testing.T) {
	svc, _, store := newTestService(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "sessions/a", map[string]any{"tutorId": "t1", "studentId": "s1"}))

	students, err := svc.MyStudents(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "Bea", students[0].FullName)
	assert.Equal(t, []string{}, students[0].Subjects)
}
