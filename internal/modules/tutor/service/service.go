package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"tutorme.app/marketplace/internal/entity"
	reviewRepo "tutorme.app/marketplace/internal/modules/review/repository"
	search "tutorme.app/marketplace/internal/modules/search/service"
	"tutorme.app/marketplace/internal/modules/tutor/dto"
	"tutorme.app/marketplace/internal/modules/tutor/repository"
	"tutorme.app/marketplace/pkg/apperror"
)

const slotLayout = "15:04"

type TutorService interface {
	ListTutors(ctx context.Context, filter dto.TutorFilter) ([]dto.TutorResponse, error)
	GetTutor(ctx context.Context, id string) (*dto.TutorResponse, error)
	UpdateAvailability(ctx context.Context, tutorID string, input dto.AvailabilityInput) (entity.Availability, error)
	GetReviews(ctx context.Context, tutorID string) ([]*entity.Review, error)
	SearchToken(ctx context.Context, role entity.Role) (*dto.SearchTokenResponse, error)
	// Reindex pushes every tutor profile to the search index.
	Reindex(ctx context.Context) (int, error)
}

type tutorService struct {
	repo       repository.TutorRepository
	reviews    reviewRepo.ReviewRepository
	search     search.TutorSearch
	searchHost string
	log        *zap.Logger
}

func NewTutorService(repo repository.TutorRepository, reviews reviewRepo.ReviewRepository, tutorSearch search.TutorSearch, searchHost string, log *zap.Logger) TutorService {
	if tutorSearch == nil {
		tutorSearch = search.NewNopTutorSearch()
	}
	return &tutorService{
		repo:       repo,
		reviews:    reviews,
		search:     tutorSearch,
		searchHost: searchHost,
		log:        log,
	}
}

func (s *tutorService) ListTutors(ctx context.Context, filter dto.TutorFilter) ([]dto.TutorResponse, error) {
	var (
		tutors []*entity.TutorProfile
		err    error
	)
	if subject := strings.TrimSpace(filter.Subject); subject != "" {
		tutors, err = s.repo.GetTutorsBySubject(ctx, subject)
	} else {
		tutors, err = s.repo.GetAllTutors(ctx)
	}
	if err != nil {
		return nil, err
	}

	res := make([]dto.TutorResponse, 0, len(tutors))
	for _, t := range tutors {
		res = append(res, dto.NewTutorResponse(t))
	}
	return res, nil
}

func (s *tutorService) GetTutor(ctx context.Context, id string) (*dto.TutorResponse, error) {
	t, err := s.repo.GetTutor(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("tutor %w", apperror.ErrNotFound)
	}
	res := dto.NewTutorResponse(t)
	return &res, nil
}

func (s *tutorService) UpdateAvailability(ctx context.Context, tutorID string, input dto.AvailabilityInput) (entity.Availability, error) {
	t, err := s.repo.GetTutor(ctx, tutorID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("tutor %w", apperror.ErrNotFound)
	}

	availability, err := NormalizeAvailability(input.Availability)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateAvailability(ctx, tutorID, availability); err != nil {
		return nil, err
	}
	return availability, nil
}

// NormalizeAvailability checks every slot is a valid "HH:MM-HH:MM" range on a
// known weekday and returns a full week with slots sorted and deduplicated.
func NormalizeAvailability(in map[string][]string) (entity.Availability, error) {
	v := apperror.NewValidationError()
	out := entity.NewAvailability()

	for day, slots := range in {
		key := strings.ToLower(strings.TrimSpace(day))
		if _, ok := out[key]; !ok {
			v.Add("availability."+day, "unknown weekday")
			continue
		}

		seen := make(map[string]bool, len(slots))
		for _, slot := range slots {
			slot = strings.ReplaceAll(slot, " ", "")
			if err := validateSlot(slot); err != nil {
				v.Add("availability."+key, err.Error())
				continue
			}
			if !seen[slot] {
				seen[slot] = true
				out[key] = append(out[key], slot)
			}
		}
		sort.Strings(out[key])
	}

	if err := v.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func validateSlot(slot string) error {
	from, to, ok := strings.Cut(slot, "-")
	if !ok {
		return fmt.Errorf("slot %q must look like 09:00-10:00", slot)
	}
	start, err := time.Parse(slotLayout, from)
	if err != nil {
		return fmt.Errorf("slot %q has an invalid start time", slot)
	}
	end, err := time.Parse(slotLayout, to)
	if err != nil {
		return fmt.Errorf("slot %q has an invalid end time", slot)
	}
	if !end.After(start) {
		return fmt.Errorf("slot %q ends before it starts", slot)
	}
	return nil
}

func (s *tutorService) GetReviews(ctx context.Context, tutorID string) ([]*entity.Review, error) {
	return s.reviews.GetTutorReviews(ctx, tutorID)
}

func (s *tutorService) SearchToken(_ context.Context, role entity.Role) (*dto.SearchTokenResponse, error) {
	token, err := s.search.GenerateSearchToken(role)
	if err != nil {
		return nil, err
	}
	return &dto.SearchTokenResponse{Token: token, Host: s.searchHost, Index: "tutors"}, nil
}

func (s *tutorService) Reindex(ctx context.Context) (int, error) {
	tutors, err := s.repo.GetAllTutors(ctx)
	if err != nil {
		return 0, err
	}
	indexed := 0
	for _, t := range tutors {
		if err := s.search.IndexTutor(t); err != nil {
			s.log.Warn("failed to index tutor", zap.String("id", t.ID), zap.Error(err))
			continue
		}
		indexed++
	}
	return indexed, nil
}
