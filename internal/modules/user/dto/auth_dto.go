package dto

import (
	"encoding/json"
	"time"

	"tutorme.app/marketplace/internal/entity"
	"tutorme.app/marketplace/internal/gateway"
	"tutorme.app/marketplace/internal/session"
)

type RegisterInput struct {
	FullName        string      `json:"fullName" binding:"required,max=100"`
	Email           string      `json:"email" binding:"required,email"`
	Phone           string      `json:"phone" binding:"max=30"`
	Password        string      `json:"password" binding:"required,min=6"`
	ConfirmPassword string      `json:"confirmPassword" binding:"required,eqfield=Password"`
	Role            entity.Role `json:"role" binding:"required,oneof=student tutor"`
	Subjects        []string    `json:"subjects" binding:"required,min=1"`

	// student only
	Grade      string `json:"grade" binding:"max=50"`
	SchoolName string `json:"schoolName" binding:"max=100"`

	// tutor only
	Bio        string      `json:"bio"`
	HourlyRate json.Number `json:"hourlyRate"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ForgotPasswordInput struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordInput struct {
	Code            string `json:"code" binding:"required"`
	Password        string `json:"password" binding:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" binding:"required,eqfield=Password"`
}

type AuthResponse struct {
	AccessToken string            `json:"access_token"`
	TokenType   string            `json:"token_type"`
	ExpiresAt   time.Time         `json:"expires_at"`
	User        *gateway.Identity `json:"user"`
	State       session.State     `json:"state"`
	Role        entity.Role       `json:"role,omitempty"`
	Profile     entity.Profile    `json:"profile,omitempty"`
	Dashboard   string            `json:"dashboard,omitempty"`
}

// MeResponse describes the resolved session of the caller.
type MeResponse struct {
	User      *gateway.Identity `json:"user"`
	State     session.State     `json:"state"`
	Role      entity.Role       `json:"role,omitempty"`
	Profile   entity.Profile    `json:"profile,omitempty"`
	Dashboard string            `json:"dashboard,omitempty"`
}

func NewMeResponse(snap session.Snapshot) *MeResponse {
	return &MeResponse{
		User:      snap.Identity,
		State:     snap.State,
		Role:      snap.Role,
		Profile:   snap.Profile,
		Dashboard: snap.Dashboard(),
	}
}
