package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tutorme.app/marketplace/internal/entity"
	"tutorme.app/marketplace/internal/gateway"
)

// ProfilePath is where the profile of id lives for role.
func ProfilePath(role entity.Role, id string) string {
	return gateway.Join("users", role.Partition(), id)
}

type UserRepository interface {
	// GetProfile returns nil, nil when role has no profile for id.
	GetProfile(ctx context.Context, role entity.Role, id string) (entity.Profile, error)
	// FindProfile looks in the tutor partition first, then students.
	FindProfile(ctx context.Context, id string) (entity.Profile, error)
	CreateProfile(ctx context.Context, profile entity.Profile) error
	UpdateProfile(ctx context.Context, role entity.Role, id string, fields map[string]any) error
	// SubscribeProfile calls onChange with nil once the profile disappears.
	SubscribeProfile(role entity.Role, id string, onChange func(entity.Profile)) gateway.CancelFunc
}

type userRepository struct {
	store gateway.Store
	log   *zap.Logger
	now   func() time.Time
}

func NewUserRepository(store gateway.Store, log *zap.Logger, now func() time.Time) UserRepository {
	if now == nil {
		now = time.Now
	}
	return &userRepository{store: store, log: log, now: now}
}

func (r *userRepository) GetProfile(ctx context.Context, role entity.Role, id string) (entity.Profile, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}
	var raw json.RawMessage
	ok, err := r.store.Get(ctx, ProfilePath(role, id), &raw)
	if err != nil || !ok {
		return nil, err
	}
	return entity.DecodeProfile(role, id, raw)
}

func (r *userRepository) FindProfile(ctx context.Context, id string) (entity.Profile, error) {
	for _, role := range []entity.Role{entity.RoleTutor, entity.RoleStudent} {
		p, err := r.GetProfile(ctx, role, id)
		if err != nil || p != nil {
			return p, err
		}
	}
	return nil, nil
}

func (r *userRepository) CreateProfile(ctx context.Context, profile entity.Profile) error {
	b := profile.Base()
	if b.ID == "" {
		return fmt.Errorf("profile id is required")
	}
	now := r.now()
	b.Role = profile.ProfileRole()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now

	fields, err := gateway.Fields(profile)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, ProfilePath(b.Role, b.ID), fields)
}

func (r *userRepository) UpdateProfile(ctx context.Context, role entity.Role, id string, fields map[string]any) error {
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}
	update := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		update[k] = v
	}
	update["updatedAt"] = r.now()
	return r.store.Update(ctx, ProfilePath(role, id), update)
}

func (r *userRepository) SubscribeProfile(role entity.Role, id string, onChange func(entity.Profile)) gateway.CancelFunc {
	return r.store.Subscribe(ProfilePath(role, id), nil, func(snap gateway.Snapshot) {
		if !snap.Exists {
			onChange(nil)
			return
		}
		p, err := entity.DecodeProfile(role, id, snap.Value)
		if err != nil {
			r.log.Error("failed to decode profile", zap.String("id", id), zap.Error(err))
			return
		}
		onChange(p)
	}, func(err error) {
		r.log.Warn("profile subscription error", zap.String("id", id), zap.Error(err))
	})
}
