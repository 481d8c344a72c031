package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"tutorme.app/marketplace/internal/entity"
	"tutorme.app/marketplace/internal/modules/resource/dto"
	"tutorme.app/marketplace/internal/modules/resource/repository"
	studentRepo "tutorme.app/marketplace/internal/modules/student/repository"
	"tutorme.app/marketplace/pkg/apperror"
)

// ErrPremiumRequired is returned when a free-plan student opens premium material.
var ErrPremiumRequired = apperror.New(http.StatusForbidden, "upgrade your plan to access premium resources", apperror.ErrForbidden)

type ResourceService interface {
	// ListResources marks what userID may open. Users without a student
	// profile (tutors) can open everything.
	ListResources(ctx context.Context, userID string, filter dto.ResourceFilter) ([]dto.ResourceResponse, error)
	Access(ctx context.Context, studentID, subject, category, id string) (*dto.AccessResponse, error)
}

type resourceService struct {
	repo     repository.ResourceRepository
	students studentRepo.StudentRepository
	log      *zap.Logger
}

func NewResourceService(repo repository.ResourceRepository, students studentRepo.StudentRepository, log *zap.Logger) ResourceService {
	return &resourceService{repo: repo, students: students, log: log}
}

func (s *resourceService) ListResources(ctx context.Context, userID string, filter dto.ResourceFilter) ([]dto.ResourceResponse, error) {
	student, err := s.students.GetStudent(ctx, userID)
	if err != nil {
		return nil, err
	}

	var resources []*entity.Resource
	if subject := strings.TrimSpace(filter.Subject); subject != "" {
		resources, err = s.repo.GetResourcesBySubject(ctx, subject)
	} else {
		resources, err = s.repo.GetAllResources(ctx)
	}
	if err != nil {
		return nil, err
	}

	res := make([]dto.ResourceResponse, 0, len(resources))
	for _, r := range resources {
		res = append(res, dto.ResourceResponse{Resource: r, Accessible: canAccess(student, r)})
	}
	return res, nil
}

func (s *resourceService) Access(ctx context.Context, studentID, subject, category, id string) (*dto.AccessResponse, error) {
	student, err := s.students.GetStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, fmt.Errorf("student %w", apperror.ErrNotFound)
	}

	resource, err := s.repo.GetResource(ctx, subject, category, id)
	if err != nil {
		return nil, err
	}
	if resource == nil {
		return nil, fmt.Errorf("resource %w", apperror.ErrNotFound)
	}

	if !canAccess(student, resource) {
		return nil, ErrPremiumRequired
	}

	count := student.FreeResourcesAccessed
	if student.OnFreePlan() {
		// TODO: move to a store transaction once Store exposes one; two
		// concurrent opens can both read the same count.
		if err := s.students.IncrementFreeResourcesAccessed(ctx, studentID, count); err != nil {
			return nil, err
		}
		count++
	}

	s.log.Debug("resource accessed", zap.String("student_id", studentID), zap.String("resource_id", id))
	return &dto.AccessResponse{Resource: resource, FreeResourcesAccessed: count}, nil
}

func canAccess(student *entity.StudentProfile, r *entity.Resource) bool {
	if student == nil || !r.IsPremium {
		return true
	}
	return !student.OnFreePlan()
}
