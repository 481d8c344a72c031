package repository

import (
	"context"
	"sort"

	"tutorme.app/marketplace/internal/entity"
	"tutorme.app/marketplace/internal/gateway"
)

const plansPath = "subscriptionPlans"

type PlanRepository interface {
	GetPlans(ctx context.Context) ([]*entity.Plan, error)
	GetPlan(ctx context.Context, id string) (*entity.Plan, error)
}

type planRepository struct {
	store gateway.Store
}

func NewPlanRepository(store gateway.Store) PlanRepository {
	return &planRepository{store: store}
}

func (r *planRepository) GetPlans(ctx context.Context) ([]*entity.Plan, error) {
	var raw map[string]entity.Plan
	if _, err := r.store.Get(ctx, plansPath, &raw); err != nil {
		return nil, err
	}

	plans := make([]*entity.Plan, 0, len(raw))
	for id, p := range raw {
		p := p
		p.ID = id
		plans = append(plans, &p)
	}
	sort.Slice(plans, func(i, j int) bool {
		if plans[i].Price == plans[j].Price {
			return plans[i].ID < plans[j].ID
		}
		return plans[i].Price < plans[j].Price
	})
	return plans, nil
}

func (r *planRepository) GetPlan(ctx context.Context, id string) (*entity.Plan, error) {
	var p entity.Plan
	ok, err := r.store.Get(ctx, gateway.Join(plansPath, id), &p)
	if err != nil || !ok {
		return nil, err
	}
	p.ID = id
	return &p, nil
}
