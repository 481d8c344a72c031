package service

import (
	"context"
	"fmt"

	"tutorme.app/marketplace/internal/entity"
	"tutorme.app/marketplace/internal/modules/subscription/repository"
	"tutorme.app/marketplace/pkg/apperror"
)

type PlanService interface {
	GetPlans(ctx context.Context) ([]*entity.Plan, error)
	GetPlan(ctx context.Context, id string) (*entity.Plan, error)
}

type planService struct {
	repo repository.PlanRepository
}

func NewPlanService(repo repository.PlanRepository) PlanService {
	return &planService{repo: repo}
}

func (s *planService) GetPlans(ctx context.Context) ([]*entity.Plan, error) {
	return s.repo.GetPlans(ctx)
}

func (s *planService) GetPlan(ctx context.Context, id string) (*entity.Plan, error) {
	p, err := s.repo.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("plan %q %w", id, apperror.ErrNotFound)
	}
	return p, nil
}
