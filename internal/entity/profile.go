package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleTutor   Role = "tutor"
)

func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleTutor
}

// Partition is the profile collection under users/ for the role.
func (r Role) Partition() string {
	switch r {
	case RoleTutor:
		return "tutors"
	case RoleStudent:
		return "students"
	default:
		return ""
	}
}

// Dashboard is the page path a user of this role lands on.
func (r Role) Dashboard() string {
	return "/" + string(r) + "-dashboard"
}

const FreePlan = "free"

var Weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// Availability maps a weekday to its bookable "HH:MM-HH:MM" slots.
type Availability map[string][]string

// NewAvailability returns a week with no open slots.
func NewAvailability() Availability {
	a := make(Availability, len(Weekdays))
	for _, day := range Weekdays {
		a[day] = []string{}
	}
	return a
}

// Profile is either a *StudentProfile or a *TutorProfile.
type Profile interface {
	Base() *ProfileBase
	ProfileRole() Role
	isProfile()
}

type ProfileBase struct {
	ID                    string    `json:"id,omitempty"`
	FullName              string    `json:"fullName"`
	Email                 string    `json:"email"`
	Phone                 string    `json:"phone"`
	Role                  Role      `json:"role"`
	Subjects              []string  `json:"subjects"`
	FreeResourcesAccessed int       `json:"freeResourcesAccessed"`
	ReferralCode          string    `json:"referralCode"`
	PhotoURL              string    `json:"photoURL,omitempty"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

func (b *ProfileBase) Base() *ProfileBase { return b }

type TutorProfile struct {
	ProfileBase
	Bio               string       `json:"bio"`
	HourlyRate        float64      `json:"hourlyRate"`
	Expertise         []string     `json:"expertise"`
	Rating            float64      `json:"rating"`
	CompletedSessions int          `json:"completedSessions"`
	Availability      Availability `json:"availability"`
}

func (*TutorProfile) ProfileRole() Role { return RoleTutor }
func (*TutorProfile) isProfile()        {}

type StudentProfile struct {
	ProfileBase
	Grade                 string     `json:"grade,omitempty"`
	SchoolName            string     `json:"schoolName,omitempty"`
	SubscriptionPlan      string     `json:"subscriptionPlan"`
	SubscriptionStartDate *time.Time `json:"subscriptionStartDate,omitempty"`
	SubscriptionEndDate   *time.Time `json:"subscriptionEndDate,omitempty"`
}

func (*StudentProfile) ProfileRole() Role { return RoleStudent }
func (*StudentProfile) isProfile()        {}

// OnFreePlan treats a missing plan as free.
func (p *StudentProfile) OnFreePlan() bool {
	return p.SubscriptionPlan == "" || p.SubscriptionPlan == FreePlan
}

// DecodeProfile builds the variant for role from raw stored JSON.
func DecodeProfile(role Role, id string, raw []byte) (Profile, error) {
	var p Profile
	switch role {
	case RoleTutor:
		p = &TutorProfile{}
	case RoleStudent:
		p = &StudentProfile{}
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, err
	}
	b := p.Base()
	b.ID = id
	b.Role = role
	if t, ok := p.(*TutorProfile); ok && t.Availability == nil {
		t.Availability = NewAvailability()
	}
	return p, nil
}
