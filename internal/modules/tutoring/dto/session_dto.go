package dto

import (
	"time"

	"tutorme.app/marketplace/internal/entity"
)

type BookSessionInput struct {
	TutorID  string    `json:"tutorId" binding:"required"`
	Subject  string    `json:"subject" binding:"required"`
	Topic    string    `json:"topic" binding:"max=200"`
	Date     time.Time `json:"date" binding:"required"`
	Duration int       `json:"duration" binding:"required,min=15,max=240"`
}

type ScheduleSessionInput struct {
	StudentID string    `json:"studentId" binding:"required"`
	Subject   string    `json:"subject" binding:"required"`
	Topic     string    `json:"topic" binding:"max=200"`
	Date      time.Time `json:"date" binding:"required"`
	Duration  int       `json:"duration" binding:"required,min=15,max=240"`
}

// CompleteSessionInput optionally carries the student's review.
type CompleteSessionInput struct {
	Feedback string `json:"feedback" binding:"max=1000"`
	Rating   int    `json:"rating" binding:"omitempty,min=1,max=5"`
	Comment  string `json:"comment" binding:"max=1000"`
}

type SessionsResponse struct {
	Upcoming []*entity.Session `json:"upcoming"`
	Past     []*entity.Session `json:"past"`
	All      []*entity.Session `json:"all"`
}
