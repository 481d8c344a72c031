package service

import (
	"context"
	"fmt"
	"html"
	"math"
	"net/http"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"tutorme.app/marketplace/internal/entity"
	reviewRepo "tutorme.app/marketplace/internal/modules/review/repository"
	studentRepo "tutorme.app/marketplace/internal/modules/student/repository"
	tutorRepo "tutorme.app/marketplace/internal/modules/tutor/repository"
	"tutorme.app/marketplace/internal/modules/tutoring/dto"
	"tutorme.app/marketplace/internal/modules/tutoring/repository"
	"tutorme.app/marketplace/pkg/apperror"
	"tutorme.app/marketplace/pkg/validator"
)

type SessionService interface {
	// Book is the student's entry point and creates a pending session.
	Book(ctx context.Context, studentID string, input dto.BookSessionInput) (*entity.Session, error)
	// Schedule is the tutor's entry point and creates a scheduled session.
	Schedule(ctx context.Context, tutorID string, input dto.ScheduleSessionInput) (*entity.Session, error)
	Confirm(ctx context.Context, userID, sessionID string) (*entity.Session, error)
	Cancel(ctx context.Context, userID, sessionID string) (*entity.Session, error)
	Complete(ctx context.Context, userID, sessionID string, input dto.CompleteSessionInput) (*entity.Session, error)
	ListSessions(ctx context.Context, userID string, role entity.Role) (*dto.SessionsResponse, error)
}

type sessionService struct {
	repo      repository.SessionRepository
	tutors    tutorRepo.TutorRepository
	students  studentRepo.StudentRepository
	reviews   reviewRepo.ReviewRepository
	sanitizer *bluemonday.Policy
	log       *zap.Logger
	now       func() time.Time
}

func NewSessionService(repo repository.SessionRepository, tutors tutorRepo.TutorRepository, students studentRepo.StudentRepository, reviews reviewRepo.ReviewRepository, log *zap.Logger, now func() time.Time) SessionService {
	if now == nil {
		now = time.Now
	}
	return &sessionService{
		repo:      repo,
		tutors:    tutors,
		students:  students,
		reviews:   reviews,
		sanitizer: bluemonday.StrictPolicy(),
		log:       log,
		now:       now,
	}
}

func (s *sessionService) Book(ctx context.Context, studentID string, input dto.BookSessionInput) (*entity.Session, error) {
	if err := validator.Struct(input); err != nil {
		return nil, err
	}
	session := &entity.Session{
		TutorID:   input.TutorID,
		StudentID: studentID,
		Subject:   input.Subject,
		Topic:     s.clean(input.Topic),
		Date:      input.Date.UTC(),
		Duration:  input.Duration,
		Status:    entity.StatusPending,
	}
	return s.create(ctx, session)
}

func (s *sessionService) Schedule(ctx context.Context, tutorID string, input dto.ScheduleSessionInput) (*entity.Session, error) {
	if err := validator.Struct(input); err != nil {
		return nil, err
	}
	session := &entity.Session{
		TutorID:   tutorID,
		StudentID: input.StudentID,
		Subject:   input.Subject,
		Topic:     s.clean(input.Topic),
		Date:      input.Date.UTC(),
		Duration:  input.Duration,
		Status:    entity.StatusScheduled,
	}
	return s.create(ctx, session)
}

func (s *sessionService) create(ctx context.Context, session *entity.Session) (*entity.Session, error) {
	v := apperror.NewValidationError()
	if !session.Date.After(s.now()) {
		v.Add("date", "Date must be in the future")
	}
	if session.TutorID == session.StudentID {
		v.Add("studentId", "A tutor cannot book a session with themselves")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	tutor, err := s.tutors.GetTutor(ctx, session.TutorID)
	if err != nil {
		return nil, err
	}
	if tutor == nil {
		return nil, fmt.Errorf("tutor %w", apperror.ErrNotFound)
	}
	if !slices.Contains(tutor.Subjects, session.Subject) {
		v.Add("subject", "The tutor does not teach this subject")
		return nil, v.Err()
	}

	student, err := s.students.GetStudent(ctx, session.StudentID)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, fmt.Errorf("student %w", apperror.ErrNotFound)
	}

	session.Rate = tutor.HourlyRate
	if _, err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	s.log.Info("session created",
		zap.String("session_id", session.ID),
		zap.String("tutor_id", session.TutorID),
		zap.String("student_id", session.StudentID),
		zap.String("status", string(session.Status)),
	)
	return session, nil
}

func (s *sessionService) Confirm(ctx context.Context, userID, sessionID string) (*entity.Session, error) {
	session, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.TutorID != userID {
		return nil, apperror.New(http.StatusForbidden, "only the tutor can confirm a session", apperror.ErrForbidden)
	}
	return s.transition(ctx, session, entity.StatusConfirmed, "")
}

func (s *sessionService) Cancel(ctx context.Context, userID, sessionID string) (*entity.Session, error) {
	session, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == entity.StatusCancelled {
		return session, nil
	}
	return s.transition(ctx, session, entity.StatusCancelled, "")
}

func (s *sessionService) Complete(ctx context.Context, userID, sessionID string, input dto.CompleteSessionInput) (*entity.Session, error) {
	if err := validator.Struct(input); err != nil {
		return nil, err
	}
	session, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if input.Rating != 0 && userID != session.StudentID {
		v := apperror.NewValidationError()
		v.Add("rating", "Only the student can rate a session")
		return nil, v.Err()
	}

	tutor, err := s.tutors.GetTutor(ctx, session.TutorID)
	if err != nil {
		return nil, err
	}

	session, err = s.transition(ctx, session, entity.StatusCompleted, s.clean(input.Feedback))
	if err != nil {
		return nil, err
	}
	if tutor == nil {
		s.log.Warn("completed session for missing tutor", zap.String("session_id", session.ID))
		return session, nil
	}

	rating := tutor.Rating
	if input.Rating != 0 {
		review := &entity.Review{
			TutorID:   session.TutorID,
			StudentID: session.StudentID,
			SessionID: session.ID,
			Rating:    input.Rating,
			Comment:   s.clean(input.Comment),
		}
		if _, err := s.reviews.AddReview(ctx, review); err != nil {
			return nil, err
		}
		if rating, err = s.averageRating(ctx, session.TutorID); err != nil {
			return nil, err
		}
	}

	if err := s.tutors.UpdateStats(ctx, tutor.ID, rating, tutor.CompletedSessions+1); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *sessionService) averageRating(ctx context.Context, tutorID string) (float64, error) {
	reviews, err := s.reviews.GetTutorReviews(ctx, tutorID)
	if err != nil {
		return 0, err
	}
	if len(reviews) == 0 {
		return 0, nil
	}
	total := 0
	for _, r := range reviews {
		total += r.Rating
	}
	return math.Round(float64(total)/float64(len(reviews))*10) / 10, nil
}

// load returns the session if userID takes part in it.
func (s *sessionService) load(ctx context.Context, userID, sessionID string) (*entity.Session, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("session %w", apperror.ErrNotFound)
	}
	if !session.Involves(userID) {
		return nil, apperror.ErrForbidden
	}
	return session, nil
}

func (s *sessionService) transition(ctx context.Context, session *entity.Session, next entity.SessionStatus, feedback string) (*entity.Session, error) {
	if !session.Status.CanTransitionTo(next) {
		msg := fmt.Sprintf("cannot move a %s session to %s", session.Status, next)
		return nil, apperror.New(http.StatusConflict, msg, apperror.ErrConflict)
	}
	if err := s.repo.UpdateStatus(ctx, session.ID, next, feedback); err != nil {
		return nil, err
	}

	updated, err := s.repo.GetSession(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, fmt.Errorf("session %w", apperror.ErrNotFound)
	}
	s.log.Info("session status changed", zap.String("session_id", session.ID), zap.String("status", string(next)))
	return updated, nil
}

func (s *sessionService) ListSessions(ctx context.Context, userID string, role entity.Role) (*dto.SessionsResponse, error) {
	var (
		sessions []*entity.Session
		err      error
	)
	switch role {
	case entity.RoleTutor:
		sessions, err = s.repo.GetTutorSessions(ctx, userID)
	case entity.RoleStudent:
		sessions, err = s.repo.GetStudentSessions(ctx, userID)
	default:
		return nil, apperror.ErrForbidden
	}
	if err != nil {
		return nil, err
	}
	upcoming, past := SplitSessions(sessions, s.now())
	return &dto.SessionsResponse{Upcoming: upcoming, Past: past, All: sessions}, nil
}

// SplitSessions returns live sessions still ahead of now, soonest first, and
// completed sessions, most recent first.
func SplitSessions(sessions []*entity.Session, now time.Time) (upcoming, past []*entity.Session) {
	upcoming = make([]*entity.Session, 0)
	past = make([]*entity.Session, 0)
	for _, session := range sessions {
		switch {
		case session.Upcoming(now):
			upcoming = append(upcoming, session)
		case session.Status == entity.StatusCompleted:
			past = append(past, session)
		}
	}
	sort.SliceStable(upcoming, func(i, j int) bool { return upcoming[i].Date.Before(upcoming[j].Date) })
	sort.SliceStable(past, func(i, j int) bool { return past[i].Date.After(past[j].Date) })
	return upcoming, past
}

func (s *sessionService) clean(text string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(text)))
}
