package dto

import "tutorme.app/marketplace/internal/entity"

type ResourceFilter struct {
	Subject string `form:"subject"`
}

type ResourceResponse struct {
	*entity.Resource
	Accessible bool `json:"accessible"`
}

type AccessResponse struct {
	Resource              *entity.Resource `json:"resource"`
	FreeResourcesAccessed int              `json:"freeResourcesAccessed"`
}
