package dto

import "tutorme.app/marketplace/internal/entity"

type TutorFilter struct {
	Subject string `form:"subject"`
}

// TutorResponse is the public view of a tutor; contact details stay private.
type TutorResponse struct {
	ID                string              `json:"id"`
	FullName          string              `json:"fullName"`
	PhotoURL          string              `json:"photoURL,omitempty"`
	Subjects          []string            `json:"subjects"`
	Bio               string              `json:"bio"`
	HourlyRate        float64             `json:"hourlyRate"`
	Rating            float64             `json:"rating"`
	CompletedSessions int                 `json:"completedSessions"`
	Availability      entity.Availability `json:"availability"`
}

func NewTutorResponse(t *entity.TutorProfile) TutorResponse {
	subjects := t.Subjects
	if subjects == nil {
		subjects = []string{}
	}
	return TutorResponse{
		ID:                t.ID,
		FullName:          t.FullName,
		PhotoURL:          t.PhotoURL,
		Subjects:          subjects,
		Bio:               t.Bio,
		HourlyRate:        t.HourlyRate,
		Rating:            t.Rating,
		CompletedSessions: t.CompletedSessions,
		Availability:      t.Availability,
	}
}

type AvailabilityInput struct {
	Availability map[string][]string `json:"availability" binding:"required"`
}

type SearchTokenResponse struct {
	Token string `json:"token"`
	Host  string `json:"host"`
	Index string `json:"index"`
}
