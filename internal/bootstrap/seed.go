package bootstrap

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"tutorme.app/marketplace/internal/entity"
	"tutorme.app/marketplace/internal/gateway"
	"tutorme.app/marketplace/internal/gateway/identity"
	userRepo "tutorme.app/marketplace/internal/modules/user/repository"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&identity.Account{},
	)
}

var defaultSubjects = map[string]string{
	"mathematics": "Mathematics",
	"physics":     "Physics",
	"chemistry":   "Chemistry",
	"biology":     "Biology",
	"english":     "English",
	"programming": "Programming",
}

var defaultPlans = map[string]entity.Plan{
	entity.FreePlan: {
		Name:     "Free",
		Interval: "month",
		Features: []string{"Browse tutors", "Book sessions", "Free learning resources"},
	},
	"premium": {
		Name:          "Premium",
		Price:         19.99,
		Interval:      "month",
		Features:      []string{"Everything in Free", "Premium learning resources", "Priority support"},
		PremiumAccess: true,
	},
}

var defaultResources = map[string]entity.Resource{
	"mathematics/notes/algebra-basics": {
		Title:       "Algebra basics",
		Description: "Linear equations and inequalities with worked examples.",
		Type:        "pdf",
	},
	"mathematics/videos/calculus-intro": {
		Title:       "Introduction to calculus",
		Description: "Limits, derivatives and the fundamental theorem.",
		Type:        "video",
		IsPremium:   true,
	},
	"physics/notes/kinematics": {
		Title:       "Kinematics",
		Description: "Motion in one and two dimensions.",
		Type:        "pdf",
	},
}

// SeedCatalog writes the subjects, plans and starter resources that are
// missing. Existing entries are left alone.
func SeedCatalog(ctx context.Context, store gateway.Store, log *zap.Logger) error {
	for id, name := range defaultSubjects {
		if err := seedIfMissing(ctx, store, gateway.Join("subjects", id), map[string]any{"name": name}); err != nil {
			return err
		}
	}
	for id, plan := range defaultPlans {
		if err := seedIfMissing(ctx, store, gateway.Join("subscriptionPlans", id), plan); err != nil {
			return err
		}
	}
	for path, res := range defaultResources {
		if err := seedIfMissing(ctx, store, gateway.Join("resources", path), res); err != nil {
			return err
		}
	}

	log.Info("catalog seeded",
		zap.Int("subjects", len(defaultSubjects)),
		zap.Int("plans", len(defaultPlans)),
		zap.Int("resources", len(defaultResources)),
	)
	return nil
}

func seedIfMissing(ctx context.Context, store gateway.Store, path string, value any) error {
	var existing map[string]any
	ok, err := store.Get(ctx, path, &existing)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return store.Set(ctx, path, value)
}

const (
	demoTutorEmail    = "tutor@tutorme.app"
	demoTutorPassword = "tutor123"
)

// SeedDemoTutor creates a listed tutor account for local development.
func SeedDemoTutor(ctx context.Context, auth gateway.Auth, users userRepo.UserRepository, log *zap.Logger) error {
	id, err := auth.CreateIdentity(ctx, demoTutorEmail, demoTutorPassword, "Demo Tutor")
	if err != nil {
		var authErr *gateway.AuthError
		if errors.As(err, &authErr) && authErr.Code == gateway.CodeEmailInUse {
			log.Debug("demo tutor already exists, skipping seed")
			return nil
		}
		return err
	}

	tutor := &entity.TutorProfile{
		ProfileBase: entity.ProfileBase{
			ID:           id.ID,
			FullName:     "Demo Tutor",
			Email:        demoTutorEmail,
			Role:         entity.RoleTutor,
			Subjects:     []string{"mathematics", "physics"},
			ReferralCode: "DEMO1000",
		},
		Bio:          "Demo tutor account with a few open slots so bookings can be tried out locally.",
		HourlyRate:   25,
		Expertise:    []string{"mathematics", "physics"},
		Availability: entity.NewAvailability(),
	}
	tutor.Availability["monday"] = []string{"09:00-10:00", "16:00-17:00"}

	if err := users.CreateProfile(ctx, tutor); err != nil {
		return err
	}

	log.Info("demo tutor seeded", zap.String("email", demoTutorEmail), zap.String("password", demoTutorPassword))
	return nil
}
