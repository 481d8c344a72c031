package repository

import (
	"context"
	"encoding/json"
	"slices"
	"sort"
	"time"

	"go.uber.org/zap"

	"tutorme.app/marketplace/internal/entity"
	"tutorme.app/marketplace/internal/gateway"
)

const tutorsPath = "users/tutors"

type TutorRepository interface {
	GetAllTutors(ctx context.Context) ([]*entity.TutorProfile, error)
	GetTutor(ctx context.Context, id string) (*entity.TutorProfile, error)
	// GetTutorsBySubject returns tutors whose subjects include subject.
	GetTutorsBySubject(ctx context.Context, subject string) ([]*entity.TutorProfile, error)
	UpdateAvailability(ctx context.Context, id string, availability entity.Availability) error
	UpdateStats(ctx context.Context, id string, rating float64, completedSessions int) error
	SubscribeTutors(onChange func([]*entity.TutorProfile)) gateway.CancelFunc
}

type tutorRepository struct {
	store gateway.Store
	log   *zap.Logger
	now   func() time.Time
}

func NewTutorRepository(store gateway.Store, log *zap.Logger, now func() time.Time) TutorRepository {
	if now == nil {
		now = time.Now
	}
	return &tutorRepository{store: store, log: log, now: now}
}

func (r *tutorRepository) GetAllTutors(ctx context.Context) ([]*entity.TutorProfile, error) {
	var raw map[string]json.RawMessage
	if _, err := r.store.Get(ctx, tutorsPath, &raw); err != nil {
		return nil, err
	}
	return r.decode(raw), nil
}

func (r *tutorRepository) GetTutor(ctx context.Context, id string) (*entity.TutorProfile, error) {
	var raw json.RawMessage
	ok, err := r.store.Get(ctx, gateway.Join(tutorsPath, id), &raw)
	if err != nil || !ok {
		return nil, err
	}
	p, err := entity.DecodeProfile(entity.RoleTutor, id, raw)
	if err != nil {
		return nil, err
	}
	return p.(*entity.TutorProfile), nil
}

func (r *tutorRepository) GetTutorsBySubject(ctx context.Context, subject string) ([]*entity.TutorProfile, error) {
	tutors, err := r.GetAllTutors(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]*entity.TutorProfile, 0, len(tutors))
	for _, t := range tutors {
		if slices.Contains(t.Subjects, subject) {
			matched = append(matched, t)
		}
	}
	return matched, nil
}

func (r *tutorRepository) UpdateAvailability(ctx context.Context, id string, availability entity.Availability) error {
	return r.store.Update(ctx, gateway.Join(tutorsPath, id), map[string]any{
		"availability": availability,
		"updatedAt":    r.now(),
	})
}

func (r *tutorRepository) UpdateStats(ctx context.Context, id string, rating float64, completedSessions int) error {
	return r.store.Update(ctx, gateway.Join(tutorsPath, id), map[string]any{
		"rating":            rating,
		"completedSessions": completedSessions,
		"updatedAt":         r.now(),
	})
}

func (r *tutorRepository) SubscribeTutors(onChange func([]*entity.TutorProfile)) gateway.CancelFunc {
	return r.store.Subscribe(tutorsPath, nil, func(snap gateway.Snapshot) {
		var raw map[string]json.RawMessage
		if err := snap.Decode(&raw); err != nil {
			r.log.Error("failed to decode tutors", zap.Error(err))
			return
		}
		onChange(r.decode(raw))
	}, func(err error) {
		r.log.Warn("tutors subscription error", zap.Error(err))
	})
}

func (r *tutorRepository) decode(raw map[string]json.RawMessage) []*entity.TutorProfile {
	tutors := make([]*entity.TutorProfile, 0, len(raw))
	for id, v := range raw {
		p, err := entity.DecodeProfile(entity.RoleTutor, id, v)
		if err != nil {
			r.log.Warn("skipping malformed tutor profile", zap.String("id", id), zap.Error(err))
			continue
		}
		tutors = append(tutors, p.(*entity.TutorProfile))
	}
	sort.Slice(tutors, func(i, j int) bool {
		if tutors[i].FullName == tutors[j].FullName {
			return tutors[i].ID < tutors[j].ID
		}
		return tutors[i].FullName < tutors[j].FullName
	})
	return tutors
}
