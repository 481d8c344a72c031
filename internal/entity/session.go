package entity

import "time"

type SessionStatus string

const (
	StatusPending   SessionStatus = "pending"
	StatusScheduled SessionStatus = "scheduled"
	StatusConfirmed SessionStatus = "confirmed"
	StatusCompleted SessionStatus = "completed"
	StatusCancelled SessionStatus = "cancelled"
)

var statusOrder = map[SessionStatus]int{
	StatusPending:   0,
	StatusScheduled: 1,
	StatusConfirmed: 2,
	StatusCompleted: 3,
}

func (s SessionStatus) Valid() bool {
	_, ok := statusOrder[s]
	return ok || s == StatusCancelled
}

func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo reports whether a session may move from s to next.
// Moves only go forward; completed needs at least scheduled and
// cancelled is reachable from any non-terminal status.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	if s.Terminal() || !s.Valid() {
		return false
	}
	switch next {
	case StatusCancelled:
		return true
	case StatusCompleted:
		return s == StatusScheduled || s == StatusConfirmed
	}
	to, ok := statusOrder[next]
	return ok && to > statusOrder[s]
}

type Session struct {
	ID        string        `json:"id,omitempty"`
	TutorID   string        `json:"tutorId"`
	StudentID string        `json:"studentId"`
	Subject   string        `json:"subject"`
	Topic     string        `json:"topic"`
	Date      time.Time     `json:"date"`
	Duration  int           `json:"duration"`
	Rate      float64       `json:"rate,omitempty"`
	Status    SessionStatus `json:"status"`
	Feedback  string        `json:"feedback,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Upcoming is any live session that has not started yet.
func (s *Session) Upcoming(now time.Time) bool {
	return !s.Status.Terminal() && s.Date.After(now)
}

// Earnings is the tutor's income for the session at its booked rate.
func (s *Session) Earnings() float64 {
	return s.Rate * float64(s.Duration) / 60
}

// Involves reports whether id is the session's tutor or student.
func (s *Session) Involves(id string) bool {
	return id != "" && (s.TutorID == id || s.StudentID == id)
}
