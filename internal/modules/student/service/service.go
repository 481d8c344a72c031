package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"tutorme.app/marketplace/internal/entity"
	"tutorme.app/marketplace/internal/modules/student/dto"
	"tutorme.app/marketplace/internal/modules/student/repository"
	planRepo "tutorme.app/marketplace/internal/modules/subscription/repository"
	"tutorme.app/marketplace/pkg/apperror"
)

type StudentService interface {
	MyStudents(ctx context.Context, tutorID string) ([]dto.StudentResponse, error)
	ChangePlan(ctx context.Context, studentID string, input dto.ChangePlanInput) (*dto.SubscriptionResponse, error)
	// ExpirePlans moves students whose paid period has ended back to the
	// free plan and returns how many were downgraded.
	ExpirePlans(ctx context.Context) (int, error)
}

type studentService struct {
	repo  repository.StudentRepository
	plans planRepo.PlanRepository
	log   *zap.Logger
	now   func() time.Time
}

func NewStudentService(repo repository.StudentRepository, plans planRepo.PlanRepository, log *zap.Logger, now func() time.Time) StudentService {
	if now == nil {
		now = time.Now
	}
	return &studentService{repo: repo, plans: plans, log: log, now: now}
}

func (s *studentService) MyStudents(ctx context.Context, tutorID string) ([]dto.StudentResponse, error) {
	students, err := s.repo.GetTutorStudents(ctx, tutorID)
	if err != nil {
		return nil, err
	}
	res := make([]dto.StudentResponse, 0, len(students))
	for _, st := range students {
		res = append(res, dto.NewStudentResponse(st))
	}
	return res, nil
}

func (s *studentService) ChangePlan(ctx context.Context, studentID string, input dto.ChangePlanInput) (*dto.SubscriptionResponse, error) {
	planID := strings.TrimSpace(input.Plan)
	if planID == "" {
		v := apperror.NewValidationError()
		v.Add("plan", "Plan is required")
		return nil, v.Err()
	}

	student, err := s.repo.GetStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, fmt.Errorf("student %w", apperror.ErrNotFound)
	}

	if planID == entity.FreePlan {
		if err := s.repo.UpdateSubscription(ctx, studentID, entity.FreePlan, nil, nil); err != nil {
			return nil, err
		}
		return &dto.SubscriptionResponse{Plan: entity.FreePlan}, nil
	}

	plan, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, fmt.Errorf("plan %q %w", planID, apperror.ErrNotFound)
	}

	start := s.now().UTC()
	end := start.AddDate(0, 1, 0)
	if err := s.repo.UpdateSubscription(ctx, studentID, plan.ID, &start, &end); err != nil {
		return nil, err
	}

	s.log.Info("subscription changed", zap.String("student_id", studentID), zap.String("plan", plan.ID))
	return &dto.SubscriptionResponse{Plan: plan.ID, StartDate: &start, EndDate: &end}, nil
}

func (s *studentService) ExpirePlans(ctx context.Context) (int, error) {
	students, err := s.repo.GetAllStudents(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	expired := 0
	for _, st := range students {
		if st.OnFreePlan() || st.SubscriptionEndDate == nil || st.SubscriptionEndDate.After(now) {
			continue
		}
		if err := s.repo.UpdateSubscription(ctx, st.ID, entity.FreePlan, nil, nil); err != nil {
			s.log.Warn("failed to expire subscription", zap.String("student_id", st.ID), zap.Error(err))
			continue
		}
		expired++
	}
	return expired, nil
}
