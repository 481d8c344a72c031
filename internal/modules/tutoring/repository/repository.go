package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"tutorme.app/marketplace/internal/entity"
	"tutorme.app/marketplace/internal/gateway"
)

const sessionsPath = "sessions"

type SessionRepository interface {
	GetAllSessions(ctx context.Context) ([]*entity.Session, error)
	// GetSession returns nil, nil when the session does not exist.
	GetSession(ctx context.Context, id string) (*entity.Session, error)
	GetTutorSessions(ctx context.Context, tutorID string) ([]*entity.Session, error)
	GetStudentSessions(ctx context.Context, studentID string) ([]*entity.Session, error)
	CreateSession(ctx context.Context, session *entity.Session) (string, error)
	UpdateSession(ctx context.Context, id string, fields map[string]any) error
	UpdateStatus(ctx context.Context, id string, status entity.SessionStatus, feedback string) error
	SubscribeTutorSessions(tutorID string, onChange func([]*entity.Session)) gateway.CancelFunc
	SubscribeStudentSessions(studentID string, onChange func([]*entity.Session)) gateway.CancelFunc
}

type sessionRepository struct {
	store gateway.Store
	log   *zap.Logger
	now   func() time.Time
}

func NewSessionRepository(store gateway.Store, log *zap.Logger, now func() time.Time) SessionRepository {
	if now == nil {
		now = time.Now
	}
	return &sessionRepository{store: store, log: log, now: now}
}

func (r *sessionRepository) GetAllSessions(ctx context.Context) ([]*entity.Session, error) {
	var raw map[string]entity.Session
	if _, err := r.store.Get(ctx, sessionsPath, &raw); err != nil {
		return nil, err
	}
	return toSessions(raw), nil
}

func (r *sessionRepository) GetSession(ctx context.Context, id string) (*entity.Session, error) {
	var s entity.Session
	ok, err := r.store.Get(ctx, gateway.Join(sessionsPath, id), &s)
	if err != nil || !ok {
		return nil, err
	}
	s.ID = id
	return &s, nil
}

func (r *sessionRepository) GetTutorSessions(ctx context.Context, tutorID string) ([]*entity.Session, error) {
	return r.query(ctx, "tutorId", tutorID)
}

func (r *sessionRepository) GetStudentSessions(ctx context.Context, studentID string) ([]*entity.Session, error) {
	return r.query(ctx, "studentId", studentID)
}

func (r *sessionRepository) query(ctx context.Context, child, id string) ([]*entity.Session, error) {
	var raw map[string]entity.Session
	if err := r.store.GetQuery(ctx, sessionsPath, gateway.Query{OrderByChild: child, EqualTo: id}, &raw); err != nil {
		return nil, err
	}
	return toSessions(raw), nil
}

func (r *sessionRepository) CreateSession(ctx context.Context, session *entity.Session) (string, error) {
	now := r.now()
	session.CreatedAt = now
	session.UpdatedAt = now

	fields, err := gateway.Fields(session)
	if err != nil {
		return "", err
	}
	id, err := r.store.Push(ctx, sessionsPath, fields)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	session.ID = id
	return id, nil
}

func (r *sessionRepository) UpdateSession(ctx context.Context, id string, fields map[string]any) error {
	update := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		update[k] = v
	}
	update["updatedAt"] = r.now()
	return r.store.Update(ctx, gateway.Join(sessionsPath, id), update)
}

func (r *sessionRepository) UpdateStatus(ctx context.Context, id string, status entity.SessionStatus, feedback string) error {
	fields := map[string]any{"status": status}
	if feedback != "" {
		fields["feedback"] = feedback
	}
	return r.UpdateSession(ctx, id, fields)
}

func (r *sessionRepository) SubscribeTutorSessions(tutorID string, onChange func([]*entity.Session)) gateway.CancelFunc {
	return r.subscribe("tutorId", tutorID, onChange)
}

func (r *sessionRepository) SubscribeStudentSessions(studentID string, onChange func([]*entity.Session)) gateway.CancelFunc {
	return r.subscribe("studentId", studentID, onChange)
}

func (r *sessionRepository) subscribe(child, id string, onChange func([]*entity.Session)) gateway.CancelFunc {
	q := &gateway.Query{OrderByChild: child, EqualTo: id}
	return r.store.Subscribe(sessionsPath, q, func(snap gateway.Snapshot) {
		var raw map[string]entity.Session
		if err := snap.Decode(&raw); err != nil {
			r.log.Error("failed to decode sessions", zap.String(child, id), zap.Error(err))
			return
		}
		onChange(toSessions(raw))
	}, func(err error) {
		r.log.Warn("sessions subscription error", zap.String(child, id), zap.Error(err))
	})
}

// toSessions orders by date, oldest first.
func toSessions(raw map[string]entity.Session) []*entity.Session {
	sessions := make([]*entity.Session, 0, len(raw))
	for id, s := range raw {
		s := s
		s.ID = id
		sessions = append(sessions, &s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].Date.Equal(sessions[j].Date) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].Date.Before(sessions[j].Date)
	})
	return sessions
}
