package repository

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"go.uber.org/zap"

	"tutorme.app/marketplace/internal/entity"
	"tutorme.app/marketplace/internal/gateway"
)

const (
	studentsPath = "users/students"
	sessionsPath = "sessions"
)

type StudentRepository interface {
	GetAllStudents(ctx context.Context) ([]*entity.StudentProfile, error)
	GetStudent(ctx context.Context, id string) (*entity.StudentProfile, error)
	// GetTutorStudents derives the tutor's students from their sessions.
	// Each student appears once; ids without a profile are skipped.
	GetTutorStudents(ctx context.Context, tutorID string) ([]*entity.StudentProfile, error)
	UpdateSubscription(ctx context.Context, id, plan string, start, end *time.Time) error
	IncrementFreeResourcesAccessed(ctx context.Context, id string, current int) error
}

type studentRepository struct {
	store gateway.Store
	log   *zap.Logger
	now   func() time.Time
}

func NewStudentRepository(store gateway.Store, log *zap.Logger, now func() time.Time) StudentRepository {
	if now == nil {
		now = time.Now
	}
	return &studentRepository{store: store, log: log, now: now}
}

func (r *studentRepository) GetAllStudents(ctx context.Context) ([]*entity.StudentProfile, error) {
	var raw map[string]json.RawMessage
	if _, err := r.store.Get(ctx, studentsPath, &raw); err != nil {
		return nil, err
	}

	students := make([]*entity.StudentProfile, 0, len(raw))
	for _, id := range gateway.SortedKeys(raw) {
		p, err := entity.DecodeProfile(entity.RoleStudent, id, raw[id])
		if err != nil {
			r.log.Warn("skipping malformed student profile", zap.String("id", id), zap.Error(err))
			continue
		}
		students = append(students, p.(*entity.StudentProfile))
	}
	return students, nil
}

func (r *studentRepository) GetStudent(ctx context.Context, id string) (*entity.StudentProfile, error) {
	var raw json.RawMessage
	ok, err := r.store.Get(ctx, gateway.Join(studentsPath, id), &raw)
	if err != nil || !ok {
		return nil, err
	}
	p, err := entity.DecodeProfile(entity.RoleStudent, id, raw)
	if err != nil {
		return nil, err
	}
	return p.(*entity.StudentProfile), nil
}

func (r *studentRepository) GetTutorStudents(ctx context.Context, tutorID string) ([]*entity.StudentProfile, error) {
	var sessions map[string]entity.Session
	q := gateway.Query{OrderByChild: "tutorId", EqualTo: tutorID}
	if err := r.store.GetQuery(ctx, sessionsPath, q, &sessions); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	students := make([]*entity.StudentProfile, 0)
	for _, key := range gateway.SortedKeys(sessions) {
		id := sessions[key].StudentID
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		student, err := r.GetStudent(ctx, id)
		if err != nil {
			return nil, err
		}
		if student == nil {
			continue
		}
		students = append(students, student)
	}

	sort.SliceStable(students, func(i, j int) bool {
		return students[i].FullName < students[j].FullName
	})
	return students, nil
}

func (r *studentRepository) UpdateSubscription(ctx context.Context, id, plan string, start, end *time.Time) error {
	return r.store.Update(ctx, gateway.Join(studentsPath, id), map[string]any{
		"subscriptionPlan":      plan,
		"subscriptionStartDate": start,
		"subscriptionEndDate":   end,
		"updatedAt":             r.now(),
	})
}

func (r *studentRepository) IncrementFreeResourcesAccessed(ctx context.Context, id string, current int) error {
	return r.store.Update(ctx, gateway.Join(studentsPath, id), map[string]any{
		"freeResourcesAccessed": current + 1,
		"updatedAt":             r.now(),
	})
}
