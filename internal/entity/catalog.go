package entity

import "time"

type Subject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SubjectOption is the shape form pickers consume.
type SubjectOption struct {
	ID    string `json:"id"`
	Value string `json:"value"`
	Label string `json:"label"`
}

func (s Subject) Option() SubjectOption {
	return SubjectOption{ID: s.ID, Value: s.ID, Label: s.Name}
}

type Resource struct {
	ID          string `json:"id,omitempty"`
	Subject     string `json:"subject,omitempty"`
	Category    string `json:"category,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	IsPremium   bool   `json:"isPremium"`
	Type        string `json:"type"`
	URL         string `json:"url,omitempty"`
}

type Plan struct {
	ID            string   `json:"id,omitempty"`
	Name          string   `json:"name"`
	Price         float64  `json:"price"`
	Interval      string   `json:"interval"`
	Features      []string `json:"features"`
	PremiumAccess bool     `json:"premiumAccess"`
}

type Review struct {
	ID        string    `json:"id,omitempty"`
	TutorID   string    `json:"tutorId"`
	StudentID string    `json:"studentId"`
	SessionID string    `json:"sessionId"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}
