package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tutorme.app/marketplace/internal/entity"
	resourceDto "tutorme.app/marketplace/internal/modules/resource/dto"
	resource "tutorme.app/marketplace/internal/modules/resource/service"
	student "tutorme.app/marketplace/internal/modules/student/service"
	subject "tutorme.app/marketplace/internal/modules/subject/service"
	subscription "tutorme.app/marketplace/internal/modules/subscription/service"
	tutorDto "tutorme.app/marketplace/internal/modules/tutor/dto"
	tutor "tutorme.app/marketplace/internal/modules/tutor/service"
	tutoringRepo "tutorme.app/marketplace/internal/modules/tutoring/repository"
	tutoring "tutorme.app/marketplace/internal/modules/tutoring/service"
	userRepo "tutorme.app/marketplace/internal/modules/user/repository"
	"tutorme.app/marketplace/pkg/apperror"
)

type DashboardService interface {
	StudentDashboard(ctx context.Context, studentID string, active Section) (*StudentDashboard, error)
	TutorDashboard(ctx context.Context, tutorID string, active Section) (*TutorDashboard, error)
	RegisterOptions(ctx context.Context) (*RegisterOptions, error)
}

type dashboardService struct {
	users     userRepo.UserRepository
	sessions  tutoringRepo.SessionRepository
	subjects  subject.SubjectService
	plans     subscription.PlanService
	tutors    tutor.TutorService
	students  student.StudentService
	resources resource.ResourceService
	log       *zap.Logger
	now       func() time.Time
}

func NewDashboardService(
	users userRepo.UserRepository,
	sessions tutoringRepo.SessionRepository,
	subjects subject.SubjectService,
	plans subscription.PlanService,
	tutors tutor.TutorService,
	students student.StudentService,
	resources resource.ResourceService,
	log *zap.Logger,
	now func() time.Time,
) DashboardService {
	if now == nil {
		now = time.Now
	}
	return &dashboardService{
		users:     users,
		sessions:  sessions,
		subjects:  subjects,
		plans:     plans,
		tutors:    tutors,
		students:  students,
		resources: resources,
		log:       log,
		now:       now,
	}
}

func (s *dashboardService) StudentDashboard(ctx context.Context, studentID string, active Section) (*StudentDashboard, error) {
	p, err := s.users.GetProfile(ctx, entity.RoleStudent, studentID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("student profile %w", apperror.ErrNotFound)
	}
	profile := p.(*entity.StudentProfile)

	sessions, err := s.sessions.GetStudentSessions(ctx, studentID)
	if err != nil {
		return nil, err
	}
	labels, err := s.subjectLabels(ctx)
	if err != nil {
		return nil, err
	}
	upcoming, past := tutoring.SplitSessions(sessions, s.now())

	resources, err := s.resources.ListResources(ctx, studentID, resourceDto.ResourceFilter{})
	if err != nil {
		return nil, err
	}
	tutors, err := s.tutors.ListTutors(ctx, tutorDto.TutorFilter{})
	if err != nil {
		return nil, err
	}

	names := s.nameResolver(ctx, entity.RoleTutor)
	d := &StudentDashboard{
		Active:                active,
		Sections:              Sections(entity.RoleStudent),
		Profile:               profile,
		Upcoming:              s.views(upcoming, labels, names, func(x *entity.Session) string { return x.TutorID }),
		Past:                  s.views(past, labels, names, func(x *entity.Session) string { return x.TutorID }),
		Resources:             resources,
		Tutors:                tutors,
		FreeResourcesAccessed: profile.FreeResourcesAccessed,
		OnFreePlan:            profile.OnFreePlan(),
	}
	if d.OnFreePlan {
		d.FreeResourceLimit = FreeResourceLimit
	}
	return d, nil
}

func (s *dashboardService) TutorDashboard(ctx context.Context, tutorID string, active Section) (*TutorDashboard, error) {
	p, err := s.users.GetProfile(ctx, entity.RoleTutor, tutorID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("tutor profile %w", apperror.ErrNotFound)
	}
	profile := p.(*entity.TutorProfile)

	sessions, err := s.sessions.GetTutorSessions(ctx, tutorID)
	if err != nil {
		return nil, err
	}
	labels, err := s.subjectLabels(ctx)
	if err != nil {
		return nil, err
	}
	students, err := s.students.MyStudents(ctx, tutorID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	upcoming, past := tutoring.SplitSessions(sessions, now)
	names := s.nameResolver(ctx, entity.RoleStudent)
	return &TutorDashboard{
		Active:   active,
		Sections: Sections(entity.RoleTutor),
		Profile:  profile,
		Upcoming: s.views(upcoming, labels, names, func(x *entity.Session) string { return x.StudentID }),
		Past:     s.views(past, labels, names, func(x *entity.Session) string { return x.StudentID }),
		Students: students,
		Earnings: summarizeEarnings(sessions, profile, now),
	}, nil
}

func (s *dashboardService) RegisterOptions(ctx context.Context) (*RegisterOptions, error) {
	subjects, err := s.subjects.GetSubjectOptions(ctx)
	if err != nil {
		return nil, err
	}
	plans, err := s.plans.GetPlans(ctx)
	if err != nil {
		return nil, err
	}
	return &RegisterOptions{Subjects: subjects, Plans: plans, Roles: roleOptions}, nil
}

func (s *dashboardService) subjectLabels(ctx context.Context) (map[string]string, error) {
	subjects, err := s.subjects.GetSubjects(ctx)
	if err != nil {
		return nil, err
	}
	labels := make(map[string]string, len(subjects))
	for _, sub := range subjects {
		labels[sub.ID] = sub.Name
	}
	return labels, nil
}

// nameResolver looks up full names of role profiles, once per id.
func (s *dashboardService) nameResolver(ctx context.Context, role entity.Role) func(id string) string {
	cache := make(map[string]string)
	return func(id string) string {
		if name, ok := cache[id]; ok {
			return name
		}
		name := ""
		p, err := s.users.GetProfile(ctx, role, id)
		if err != nil {
			s.log.Warn("failed to resolve participant name", zap.String("id", id), zap.Error(err))
		} else if p != nil {
			name = p.Base().FullName
		}
		cache[id] = name
		return name
	}
}

func (s *dashboardService) views(sessions []*entity.Session, labels map[string]string, name func(string) string, counterpart func(*entity.Session) string) []SessionView {
	out := make([]SessionView, 0, len(sessions))
	for _, session := range sessions {
		label := labels[session.Subject]
		if label == "" {
			label = session.Subject
		}
		id := counterpart(session)
		out = append(out, SessionView{
			Session:         session,
			SubjectLabel:    label,
			CounterpartID:   id,
			CounterpartName: name(id),
		})
	}
	return out
}
