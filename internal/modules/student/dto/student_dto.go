package dto

import (
	"time"

	"tutorme.app/marketplace/internal/entity"
)

// StudentResponse is what a tutor sees about one of their students.
type StudentResponse struct {
	ID         string   `json:"id"`
	FullName   string   `json:"fullName"`
	Email      string   `json:"email"`
	PhotoURL   string   `json:"photoURL,omitempty"`
	Grade      string   `json:"grade,omitempty"`
	SchoolName string   `json:"schoolName,omitempty"`
	Subjects   []string `json:"subjects"`
}

func NewStudentResponse(s *entity.StudentProfile) StudentResponse {
	subjects := s.Subjects
	if subjects == nil {
		subjects = []string{}
	}
	return StudentResponse{
		ID:         s.ID,
		FullName:   s.FullName,
		Email:      s.Email,
		PhotoURL:   s.PhotoURL,
		Grade:      s.Grade,
		SchoolName: s.SchoolName,
		Subjects:   subjects,
	}
}

type ChangePlanInput struct {
	Plan string `json:"plan" binding:"required"`
}

type SubscriptionResponse struct {
	Plan      string     `json:"plan"`
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
}
