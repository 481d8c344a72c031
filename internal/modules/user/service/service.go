package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"tutorme.app/marketplace/internal/entity"
	"tutorme.app/marketplace/internal/gateway"
	search "tutorme.app/marketplace/internal/modules/search/service"
	subjectService "tutorme.app/marketplace/internal/modules/subject/service"
	"tutorme.app/marketplace/internal/modules/user/dto"
	"tutorme.app/marketplace/internal/modules/user/repository"
	"tutorme.app/marketplace/internal/session"
	"tutorme.app/marketplace/pkg/apperror"
	"tutorme.app/marketplace/pkg/validator"
)

const (
	minBioLength = 50
	maxBioLength = 500
)

type AuthService interface {
	Register(ctx context.Context, input dto.RegisterInput) (*dto.AuthResponse, error)
	Login(ctx context.Context, input dto.LoginInput) (*dto.AuthResponse, error)
	Logout(ctx context.Context, token string) error
	ForgotPassword(ctx context.Context, input dto.ForgotPasswordInput) error
	ResetPassword(ctx context.Context, input dto.ResetPasswordInput) error
	Me(ctx context.Context, identity *gateway.Identity) (*dto.MeResponse, error)
}

type authService struct {
	auth     gateway.Auth
	users    repository.UserRepository
	subjects subjectService.SubjectService
	search   search.TutorSearch
	log      *zap.Logger
}

func NewAuthService(auth gateway.Auth, users repository.UserRepository, subjects subjectService.SubjectService, tutorSearch search.TutorSearch, log *zap.Logger) AuthService {
	if tutorSearch == nil {
		tutorSearch = search.NewNopTutorSearch()
	}
	return &authService{
		auth:     auth,
		users:    users,
		subjects: subjects,
		search:   tutorSearch,
		log:      log,
	}
}

func (s *authService) Register(ctx context.Context, input dto.RegisterInput) (*dto.AuthResponse, error) {
	input.Email = strings.TrimSpace(input.Email)
	input.FullName = strings.TrimSpace(input.FullName)

	rate, err := s.validateRegistration(ctx, input)
	if err != nil {
		return nil, err
	}

	identity, err := s.auth.CreateIdentity(ctx, input.Email, input.Password, input.FullName)
	if err != nil {
		return nil, err
	}

	profile := newProfile(identity, input, rate)
	if err := s.users.CreateProfile(ctx, profile); err != nil {
		s.log.Error("identity created without profile", zap.String("id", identity.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	if tutor, ok := profile.(*entity.TutorProfile); ok {
		if err := s.search.IndexTutor(tutor); err != nil {
			s.log.Warn("failed to index tutor", zap.String("id", tutor.ID), zap.Error(err))
		}
	}

	cred, err := s.auth.Authenticate(ctx, input.Email, input.Password)
	if err != nil {
		return nil, err
	}

	s.log.Info("user registered", zap.String("id", identity.ID), zap.String("role", string(input.Role)))
	return newAuthResponse(cred, session.Resolve(ctx, s.users, &cred.Identity)), nil
}

// validateRegistration rejects the form before anything is written and
// returns the parsed hourly rate for tutors.
func (s *authService) validateRegistration(ctx context.Context, input dto.RegisterInput) (float64, error) {
	v := apperror.NewValidationError()
	if err := validator.Struct(input); err != nil {
		var fieldErrs *apperror.ValidationError
		if !errors.As(err, &fieldErrs) {
			return 0, err
		}
		for field, msg := range fieldErrs.Fields {
			v.Add(field, msg)
		}
	}

	var rate float64
	if input.Role == entity.RoleTutor {
		bioLength := utf8.RuneCountInString(strings.TrimSpace(input.Bio))
		switch {
		case bioLength < minBioLength:
			v.Add("bio", fmt.Sprintf("Bio must be at least %d characters", minBioLength))
		case bioLength > maxBioLength:
			v.Add("bio", fmt.Sprintf("Bio must be at most %d characters", maxBioLength))
		}

		parsed, err := input.HourlyRate.Float64()
		switch {
		case input.HourlyRate == "" || err != nil:
			v.Add("hourlyRate", "Hourly rate must be a number")
		case parsed <= 0:
			v.Add("hourlyRate", "Hourly rate must be greater than 0")
		default:
			rate = parsed
		}
	}

	if err := v.Err(); err != nil {
		return 0, err
	}

	unknown, err := s.subjects.Unknown(ctx, input.Subjects)
	if err != nil {
		return 0, err
	}
	if len(unknown) > 0 {
		v.Add("subjects", fmt.Sprintf("unknown subjects: %s", strings.Join(unknown, ", ")))
	}
	return rate, v.Err()
}

func newProfile(identity *gateway.Identity, input dto.RegisterInput, rate float64) entity.Profile {
	base := entity.ProfileBase{
		ID:           identity.ID,
		FullName:     input.FullName,
		Email:        identity.Email,
		Phone:        strings.TrimSpace(input.Phone),
		Role:         input.Role,
		Subjects:     input.Subjects,
		ReferralCode: referralCode(input.FullName),
	}

	if input.Role == entity.RoleTutor {
		return &entity.TutorProfile{
			ProfileBase:  base,
			Bio:          strings.TrimSpace(input.Bio),
			HourlyRate:   rate,
			Expertise:    input.Subjects,
			Availability: entity.NewAvailability(),
		}
	}
	return &entity.StudentProfile{
		ProfileBase:      base,
		Grade:            strings.TrimSpace(input.Grade),
		SchoolName:       strings.TrimSpace(input.SchoolName),
		SubscriptionPlan: entity.FreePlan,
	}
}

// referralCode is up to four letters of the first name followed by four
// random digits, e.g. "ANNA4821".
func referralCode(fullName string) string {
	var prefix strings.Builder
	if fields := strings.Fields(fullName); len(fields) > 0 {
		for _, r := range fields[0] {
			if prefix.Len() >= 4 {
				break
			}
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				prefix.WriteRune(unicode.ToUpper(r))
			}
		}
	}
	return fmt.Sprintf("%s%d", prefix.String(), 1000+rand.IntN(9000))
}

func (s *authService) Login(ctx context.Context, input dto.LoginInput) (*dto.AuthResponse, error) {
	if err := validator.Struct(input); err != nil {
		return nil, err
	}

	cred, err := s.auth.Authenticate(ctx, strings.TrimSpace(input.Email), input.Password)
	if err != nil {
		return nil, err
	}

	snap := session.Resolve(ctx, s.users, &cred.Identity)
	if snap.State == session.Errored {
		return nil, snap.Err
	}
	if snap.State == session.Orphaned {
		s.log.Warn("login for identity without profile", zap.String("id", cred.Identity.ID))
	}
	return newAuthResponse(cred, snap), nil
}

func (s *authService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return apperror.ErrUnauthorized
	}
	return s.auth.Deauthenticate(ctx, token)
}

func (s *authService) ForgotPassword(ctx context.Context, input dto.ForgotPasswordInput) error {
	if err := validator.Struct(input); err != nil {
		return err
	}
	return s.auth.ResetCredential(ctx, strings.TrimSpace(input.Email))
}

func (s *authService) ResetPassword(ctx context.Context, input dto.ResetPasswordInput) error {
	if err := validator.Struct(input); err != nil {
		return err
	}
	return s.auth.ConfirmReset(ctx, input.Code, input.Password)
}

func (s *authService) Me(ctx context.Context, identity *gateway.Identity) (*dto.MeResponse, error) {
	if identity == nil {
		return nil, apperror.ErrUnauthorized
	}
	snap := session.Resolve(ctx, s.users, identity)
	if snap.State == session.Errored {
		return nil, snap.Err
	}
	return dto.NewMeResponse(snap), nil
}

func newAuthResponse(cred *gateway.Credential, snap session.Snapshot) *dto.AuthResponse {
	identity := cred.Identity
	return &dto.AuthResponse{
		AccessToken: cred.Token,
		TokenType:   "Bearer",
		ExpiresAt:   cred.ExpiresAt.UTC().Truncate(time.Second),
		User:        &identity,
		State:       snap.State,
		Role:        snap.Role,
		Profile:     snap.Profile,
		Dashboard:   snap.Dashboard(),
	}
}
