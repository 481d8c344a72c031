package profile

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"tutorme.app/marketplace/internal/entity"
	"tutorme.app/marketplace/internal/gateway"
	profileDto "tutorme.app/marketplace/internal/modules/profile/dto"
	search "tutorme.app/marketplace/internal/modules/search/service"
	subjectService "tutorme.app/marketplace/internal/modules/subject/service"
	userRepo "tutorme.app/marketplace/internal/modules/user/repository"
	commonDto "tutorme.app/marketplace/pkg/dto"
	"tutorme.app/marketplace/pkg/apperror"
	"tutorme.app/marketplace/pkg/storage"
	"tutorme.app/marketplace/pkg/validator"
)

const (
	minBioLength = 50
	maxBioLength = 500
	avatarFolder = "avatars"
)

type ProfileService interface {
	GetProfile(ctx context.Context, userID string) (*profileDto.ProfileResponse, error)
	UpdateProfile(ctx context.Context, identity *gateway.Identity, input profileDto.UpdateProfileInput, avatar *commonDto.AvatarFile) (*profileDto.ProfileResponse, error)
}

type profileService struct {
	repo         userRepo.UserRepository
	subjects     subjectService.SubjectService
	auth         gateway.Auth
	imageStorage storage.ImageStorage
	search       search.TutorSearch
	sanitizer    *bluemonday.Policy
	log          *zap.Logger
}

func NewProfileService(repo userRepo.UserRepository, subjects subjectService.SubjectService, auth gateway.Auth, imageStorage storage.ImageStorage, tutorSearch search.TutorSearch, log *zap.Logger) ProfileService {
	if tutorSearch == nil {
		tutorSearch = search.NewNopTutorSearch()
	}
	return &profileService{
		repo:         repo,
		subjects:     subjects,
		auth:         auth,
		imageStorage: imageStorage,
		search:       tutorSearch,
		sanitizer:    bluemonday.StrictPolicy(),
		log:          log,
	}
}

func (s *profileService) GetProfile(ctx context.Context, userID string) (*profileDto.ProfileResponse, error) {
	p, err := s.repo.FindProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("profile %w", apperror.ErrNotFound)
	}
	return &profileDto.ProfileResponse{Role: p.ProfileRole(), Profile: p}, nil
}

func (s *profileService) UpdateProfile(ctx context.Context, identity *gateway.Identity, input profileDto.UpdateProfileInput, avatar *commonDto.AvatarFile) (*profileDto.ProfileResponse, error) {
	if identity == nil {
		return nil, apperror.ErrUnauthorized
	}
	current, err := s.repo.FindProfile(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("profile %w", apperror.ErrNotFound)
	}
	role := current.ProfileRole()

	fields, err := s.buildUpdate(ctx, role, input)
	if err != nil {
		return nil, err
	}

	if avatar != nil && avatar.Reader != nil && s.imageStorage != nil {
		url, err := s.imageStorage.UploadImage(ctx, avatar.Reader, avatarFolder, avatar.FileName)
		if err != nil {
			return nil, fmt.Errorf("failed to upload avatar: %w", err)
		}
		if old := current.Base().PhotoURL; old != "" {
			if err := s.imageStorage.DeleteImage(ctx, old); err != nil {
				s.log.Warn("failed to delete old avatar", zap.String("url", old), zap.Error(err))
			}
		}
		fields["photoURL"] = url
	}

	if len(fields) > 0 {
		if err := s.repo.UpdateProfile(ctx, role, identity.ID, fields); err != nil {
			return nil, err
		}
	}

	if name, ok := fields["fullName"].(string); ok && name != identity.DisplayName {
		if err := s.auth.UpdateDisplayName(ctx, identity.ID, name); err != nil {
			s.log.Warn("failed to mirror display name", zap.String("id", identity.ID), zap.Error(err))
		}
	}

	updated, err := s.repo.GetProfile(ctx, role, identity.ID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, fmt.Errorf("profile %w", apperror.ErrNotFound)
	}

	if tutor, ok := updated.(*entity.TutorProfile); ok {
		if err := s.search.IndexTutor(tutor); err != nil {
			s.log.Warn("failed to reindex tutor", zap.String("id", tutor.ID), zap.Error(err))
		}
	}

	return &profileDto.ProfileResponse{Role: role, Profile: updated}, nil
}

// buildUpdate validates input against the caller's role and returns the
// fields to write.
func (s *profileService) buildUpdate(ctx context.Context, role entity.Role, input profileDto.UpdateProfileInput) (map[string]any, error) {
	v := apperror.NewValidationError()
	if err := validator.Struct(input); err != nil {
		var fieldErrs *apperror.ValidationError
		if !errors.As(err, &fieldErrs) {
			return nil, err
		}
		for field, msg := range fieldErrs.Fields {
			v.Add(field, msg)
		}
	}

	fields := make(map[string]any)
	if input.FullName != nil {
		name := strings.TrimSpace(*input.FullName)
		if name == "" {
			v.Add("fullName", "Full name is required")
		}
		fields["fullName"] = name
	}
	if input.Phone != nil {
		fields["phone"] = strings.TrimSpace(*input.Phone)
	}

	switch role {
	case entity.RoleTutor:
		if input.Grade != nil || input.SchoolName != nil {
			v.Add("grade", "Grade and school are only available for students")
		}
		if input.Bio != nil {
			bio := s.cleanBio(*input.Bio)
			n := utf8.RuneCountInString(bio)
			switch {
			case n < minBioLength:
				v.Add("bio", fmt.Sprintf("Bio must be at least %d characters", minBioLength))
			case n > maxBioLength:
				v.Add("bio", fmt.Sprintf("Bio must be at most %d characters", maxBioLength))
			}
			fields["bio"] = bio
		}
		if input.HourlyRate != nil {
			fields["hourlyRate"] = *input.HourlyRate
		}
	case entity.RoleStudent:
		if input.Bio != nil || input.HourlyRate != nil {
			v.Add("bio", "Bio and hourly rate are only available for tutors")
		}
		if input.Grade != nil {
			fields["grade"] = strings.TrimSpace(*input.Grade)
		}
		if input.SchoolName != nil {
			fields["schoolName"] = strings.TrimSpace(*input.SchoolName)
		}
	}

	if input.Subjects != nil && len(input.Subjects) == 0 {
		v.Add("subjects", "Select at least one subject")
	}

	if err := v.Err(); err != nil {
		return nil, err
	}

	if len(input.Subjects) > 0 {
		unknown, err := s.subjects.Unknown(ctx, input.Subjects)
		if err != nil {
			return nil, err
		}
		if len(unknown) > 0 {
			v.Add("subjects", fmt.Sprintf("unknown subjects: %s", strings.Join(unknown, ", ")))
		}
		fields["subjects"] = input.Subjects
		if role == entity.RoleTutor {
			fields["expertise"] = input.Subjects
		}
	}

	return fields, v.Err()
}

func (s *profileService) cleanBio(bio string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(bio)))
}
