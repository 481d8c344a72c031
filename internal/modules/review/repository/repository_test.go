package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorme.app/marketplace/internal/entity"
	"tutorme.app/marketplace/internal/gateway/memdb"
)

func TestReviewRepository_NewestFirst(t *testing.T) {
	store := memdb.New(nil)
	defer store.Close()
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	repo := NewReviewRepository(store, func() time.Time { now = now.Add(time.Minute); return now })
	ctx := context.Background()

	_, err := repo.AddReview(ctx, &entity.Review{TutorID: "t1", StudentID: "s1", Rating: 4, Comment: "good"})
	require.NoError(t, err)
	_, err = repo.AddReview(ctx, &entity.Review{TutorID: "t1", StudentID: "s2", Rating: 5, Comment: "great"})
	require.NoError(t, err)
	_, err = repo.AddReview(ctx, &entity.Review{TutorID: "t2", StudentID: "s1", Rating: 3})
	require.NoError(t, err)

	reviews, err := repo.GetTutorReviews(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	assert.Equal(t, "great", reviews[0].Comment)
	assert.NotEmpty(t, reviews[0].ID)
}
