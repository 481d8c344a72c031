package service

import (
	"context"

	"tutorme.app/marketplace/internal/entity"
	"tutorme.app/marketplace/internal/modules/subject/repository"
)

type SubjectService interface {
	GetSubjects(ctx context.Context) ([]entity.Subject, error)
	GetSubjectOptions(ctx context.Context) ([]entity.SubjectOption, error)
	// Unknown returns the ids that are not in the catalog, in input order.
	Unknown(ctx context.Context, ids []string) ([]string, error)
}

type subjectService struct {
	repo repository.SubjectRepository
}

func NewSubjectService(repo repository.SubjectRepository) SubjectService {
	return &subjectService{repo: repo}
}

func (s *subjectService) GetSubjects(ctx context.Context) ([]entity.Subject, error) {
	return s.repo.GetSubjects(ctx)
}

func (s *subjectService) GetSubjectOptions(ctx context.Context) ([]entity.SubjectOption, error) {
	subjects, err := s.repo.GetSubjects(ctx)
	if err != nil {
		return nil, err
	}
	options := make([]entity.SubjectOption, 0, len(subjects))
	for _, subject := range subjects {
		options = append(options, subject.Option())
	}
	return options, nil
}

func (s *subjectService) Unknown(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	subjects, err := s.repo.GetSubjects(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(subjects))
	for _, subject := range subjects {
		known[subject.ID] = true
	}
	var unknown []string
	for _, id := range ids {
		if !known[id] {
			unknown = append(unknown, id)
		}
	}
	return unknown, nil
}
