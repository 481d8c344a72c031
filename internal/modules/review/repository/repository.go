package repository

import (
	"context"
	"sort"
	"time"

	"tutorme.app/marketplace/internal/entity"
	"tutorme.app/marketplace/internal/gateway"
)

const reviewsPath = "reviews"

type ReviewRepository interface {
	AddReview(ctx context.Context, review *entity.Review) (string, error)
	// GetTutorReviews returns the newest review first.
	GetTutorReviews(ctx context.Context, tutorID string) ([]*entity.Review, error)
}

type reviewRepository struct {
	store gateway.Store
	now   func() time.Time
}

func NewReviewRepository(store gateway.Store, now func() time.Time) ReviewRepository {
	if now == nil {
		now = time.Now
	}
	return &reviewRepository{store: store, now: now}
}

func (r *reviewRepository) AddReview(ctx context.Context, review *entity.Review) (string, error) {
	review.CreatedAt = r.now()
	fields, err := gateway.Fields(review)
	if err != nil {
		return "", err
	}
	id, err := r.store.Push(ctx, reviewsPath, fields)
	if err != nil {
		return "", err
	}
	review.ID = id
	return id, nil
}

func (r *reviewRepository) GetTutorReviews(ctx context.Context, tutorID string) ([]*entity.Review, error) {
	var raw map[string]entity.Review
	q := gateway.Query{OrderByChild: "tutorId", EqualTo: tutorID}
	if err := r.store.GetQuery(ctx, reviewsPath, q, &raw); err != nil {
		return nil, err
	}

	reviews := make([]*entity.Review, 0, len(raw))
	for id, rv := range raw {
		rv := rv
		rv.ID = id
		reviews = append(reviews, &rv)
	}
	sort.Slice(reviews, func(i, j int) bool {
		return reviews[i].CreatedAt.After(reviews[j].CreatedAt)
	})
	return reviews, nil
}
