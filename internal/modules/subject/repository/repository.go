package repository

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"tutorme.app/marketplace/internal/entity"
	"tutorme.app/marketplace/internal/gateway"
)

const subjectsPath = "subjects"

type SubjectRepository interface {
	GetSubjects(ctx context.Context) ([]entity.Subject, error)
	GetSubject(ctx context.Context, id string) (*entity.Subject, error)
	SubscribeSubjects(onChange func([]entity.Subject)) gateway.CancelFunc
}

type subjectRepository struct {
	store gateway.Store
	log   *zap.Logger
}

func NewSubjectRepository(store gateway.Store, log *zap.Logger) SubjectRepository {
	return &subjectRepository{store: store, log: log}
}

func (r *subjectRepository) GetSubjects(ctx context.Context) ([]entity.Subject, error) {
	var raw map[string]entity.Subject
	if _, err := r.store.Get(ctx, subjectsPath, &raw); err != nil {
		return nil, err
	}
	return toSubjects(raw), nil
}

func (r *subjectRepository) GetSubject(ctx context.Context, id string) (*entity.Subject, error) {
	var subject entity.Subject
	ok, err := r.store.Get(ctx, gateway.Join(subjectsPath, id), &subject)
	if err != nil || !ok {
		return nil, err
	}
	subject.ID = id
	return &subject, nil
}

func (r *subjectRepository) SubscribeSubjects(onChange func([]entity.Subject)) gateway.CancelFunc {
	return r.store.Subscribe(subjectsPath, nil, func(snap gateway.Snapshot) {
		var raw map[string]entity.Subject
		if err := snap.Decode(&raw); err != nil {
			r.log.Error("failed to decode subjects", zap.Error(err))
			return
		}
		onChange(toSubjects(raw))
	}, func(err error) {
		r.log.Warn("subjects subscription error", zap.Error(err))
	})
}

func toSubjects(raw map[string]entity.Subject) []entity.Subject {
	subjects := make([]entity.Subject, 0, len(raw))
	for id, s := range raw {
		s.ID = id
		subjects = append(subjects, s)
	}
	sort.Slice(subjects, func(i, j int) bool {
		if subjects[i].Name == subjects[j].Name {
			return subjects[i].ID < subjects[j].ID
		}
		return subjects[i].Name < subjects[j].Name
	})
	return subjects
}
