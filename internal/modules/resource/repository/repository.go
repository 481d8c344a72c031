package repository

import (
	"context"
	"sort"

	"tutorme.app/marketplace/internal/entity"
	"tutorme.app/marketplace/internal/gateway"
)

const resourcesPath = "resources"

// categories maps category -> resource id -> resource.
type categories map[string]map[string]entity.Resource

type ResourceRepository interface {
	GetAllResources(ctx context.Context) ([]*entity.Resource, error)
	GetResourcesBySubject(ctx context.Context, subject string) ([]*entity.Resource, error)
	GetResource(ctx context.Context, subject, category, id string) (*entity.Resource, error)
}

type resourceRepository struct {
	store gateway.Store
}

func NewResourceRepository(store gateway.Store) ResourceRepository {
	return &resourceRepository{store: store}
}

func (r *resourceRepository) GetAllResources(ctx context.Context) ([]*entity.Resource, error) {
	var raw map[string]categories
	if _, err := r.store.Get(ctx, resourcesPath, &raw); err != nil {
		return nil, err
	}

	resources := make([]*entity.Resource, 0)
	for _, subject := range gateway.SortedKeys(raw) {
		resources = append(resources, flatten(subject, raw[subject])...)
	}
	return resources, nil
}

func (r *resourceRepository) GetResourcesBySubject(ctx context.Context, subject string) ([]*entity.Resource, error) {
	var raw categories
	if _, err := r.store.Get(ctx, gateway.Join(resourcesPath, subject), &raw); err != nil {
		return nil, err
	}
	return flatten(subject, raw), nil
}

func (r *resourceRepository) GetResource(ctx context.Context, subject, category, id string) (*entity.Resource, error) {
	var res entity.Resource
	ok, err := r.store.Get(ctx, gateway.Join(resourcesPath, subject, category, id), &res)
	if err != nil || !ok {
		return nil, err
	}
	res.ID, res.Subject, res.Category = id, subject, category
	return &res, nil
}

func flatten(subject string, raw categories) []*entity.Resource {
	resources := make([]*entity.Resource, 0)
	for _, category := range gateway.SortedKeys(raw) {
		items := raw[category]
		for id, res := range items {
			res := res
			res.ID, res.Subject, res.Category = id, subject, category
			resources = append(resources, &res)
		}
	}
	sort.SliceStable(resources, func(i, j int) bool {
		if resources[i].Category != resources[j].Category {
			return resources[i].Category < resources[j].Category
		}
		return resources[i].Title < resources[j].Title
	})
	return resources
}
