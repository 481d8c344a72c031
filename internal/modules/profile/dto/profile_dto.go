package dto

import (
	"tutorme.app/marketplace/internal/entity"
)

// UpdateProfileInput carries only the fields the caller wants changed.
// Bio and HourlyRate are tutor fields; Grade and SchoolName belong to
// students.
type UpdateProfileInput struct {
	FullName   *string  `json:"fullName" form:"fullName" binding:"omitempty,min=1,max=100"`
	Phone      *string  `json:"phone" form:"phone" binding:"omitempty,max=30"`
	Subjects   []string `json:"subjects" form:"subjects" binding:"omitempty,min=1"`
	Bio        *string  `json:"bio" form:"bio"`
	HourlyRate *float64 `json:"hourlyRate" form:"hourlyRate" binding:"omitempty,gt=0"`
	Grade      *string  `json:"grade" form:"grade" binding:"omitempty,max=50"`
	SchoolName *string  `json:"schoolName" form:"schoolName" binding:"omitempty,max=100"`
}

type ProfileResponse struct {
	Role    entity.Role    `json:"role"`
	Profile entity.Profile `json:"profile"`
}
