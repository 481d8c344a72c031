package service

import (
	"time"

	"tutorme.app/marketplace/internal/entity"
	resourceDto "tutorme.app/marketplace/internal/modules/resource/dto"
	studentDto "tutorme.app/marketplace/internal/modules/student/dto"
	tutorDto "tutorme.app/marketplace/internal/modules/tutor/dto"
)

type Section string

const (
	SectionOverview  Section = "overview"
	SectionSessions  Section = "sessions"
	SectionResources Section = "resources"
	SectionTutors    Section = "tutors"
	SectionStudents  Section = "students"
	SectionEarnings  Section = "earnings"
	SectionProfile   Section = "profile"
)

var (
	studentSections = []Section{SectionOverview, SectionSessions, SectionResources, SectionTutors, SectionProfile}
	tutorSections   = []Section{SectionOverview, SectionSessions, SectionStudents, SectionEarnings, SectionProfile}
)

// FreeResourceLimit is the number of free resources advertised to students
// on the free plan.
const FreeResourceLimit = 2

// Sections lists the dashboard tabs for role in display order.
func Sections(role entity.Role) []Section {
	switch role {
	case entity.RoleStudent:
		return studentSections
	case entity.RoleTutor:
		return tutorSections
	default:
		return nil
	}
}

// ParseSection returns the section named s for role, or overview when s is
// empty. ok is false for a section the role does not have.
func ParseSection(role entity.Role, s string) (Section, bool) {
	if s == "" {
		return SectionOverview, true
	}
	for _, section := range Sections(role) {
		if string(section) == s {
			return section, true
		}
	}
	return "", false
}

// SessionView is a session with the other participant's name resolved.
type SessionView struct {
	*entity.Session
	SubjectLabel    string `json:"subjectLabel"`
	CounterpartID   string `json:"counterpartId"`
	CounterpartName string `json:"counterpartName"`
}

type StudentDashboard struct {
	Active                Section                        `json:"active"`
	Sections              []Section                      `json:"sections"`
	Profile               *entity.StudentProfile         `json:"profile"`
	Upcoming              []SessionView                  `json:"upcoming"`
	Past                  []SessionView                  `json:"past"`
	Resources             []resourceDto.ResourceResponse `json:"resources"`
	Tutors                []tutorDto.TutorResponse       `json:"tutors"`
	FreeResourcesAccessed int                            `json:"freeResourcesAccessed"`
	FreeResourceLimit     int                            `json:"freeResourceLimit,omitempty"`
	OnFreePlan            bool                           `json:"onFreePlan"`
}

type Earnings struct {
	Total             float64 `json:"total"`
	ThisMonth         float64 `json:"thisMonth"`
	CompletedSessions int     `json:"completedSessions"`
	Rating            float64 `json:"rating"`
}

type TutorDashboard struct {
	Active   Section                      `json:"active"`
	Sections []Section                    `json:"sections"`
	Profile  *entity.TutorProfile         `json:"profile"`
	Upcoming []SessionView                `json:"upcoming"`
	Past     []SessionView                `json:"past"`
	Students []studentDto.StudentResponse `json:"students"`
	Earnings Earnings                     `json:"earnings"`
}

type RoleOption struct {
	Value entity.Role `json:"value"`
	Label string      `json:"label"`
}

// RegisterOptions feeds the landing page and the registration wizard.
type RegisterOptions struct {
	Subjects []entity.SubjectOption `json:"subjects"`
	Plans    []*entity.Plan         `json:"plans"`
	Roles    []RoleOption           `json:"roles"`
}

var roleOptions = []RoleOption{
	{Value: entity.RoleStudent, Label: "I want to learn"},
	{Value: entity.RoleTutor, Label: "I want to teach"},
}

// summarizeEarnings totals completed sessions; ThisMonth uses now's calendar
// month in UTC.
func summarizeEarnings(sessions []*entity.Session, tutor *entity.TutorProfile, now time.Time) Earnings {
	e := Earnings{Rating: tutor.Rating, CompletedSessions: tutor.CompletedSessions}
	now = now.UTC()
	for _, s := range sessions {
		if s.Status != entity.StatusCompleted {
			continue
		}
		amount := s.Earnings()
		e.Total += amount
		d := s.Date.UTC()
		if d.Year() == now.Year() && d.Month() == now.Month() {
			e.ThisMonth += amount
		}
	}
	return e
}
