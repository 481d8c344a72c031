package identity

import (
	"context"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"
)

// Account is the credential record behind an Identity.
type Account struct {
	ID           string    `gorm:"type:varchar(64);primaryKey"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string    `gorm:"type:varchar(255);not null"`
	DisplayName  string    `gorm:"type:varchar(255)"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

type AccountRepository interface {
	Create(ctx context.Context, account *Account) error
	FindByID(ctx context.Context, id string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	UpdatePassword(ctx context.Context, id, hash string) error
	UpdateDisplayName(ctx context.Context, id, name string) error
}

var errDuplicateEmail = errors.New("email already registered")

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(ctx context.Context, account *Account) error {
	err := r.db.WithContext(ctx).Create(account).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errDuplicateEmail
	}
	return err
}

func (r *accountRepository) FindByID(ctx context.Context, id string) (*Account, error) {
	var account Account
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	var account Account
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	return r.db.WithContext(ctx).Model(&Account{}).Where("id = ?", id).Update("password_hash", hash).Error
}

func (r *accountRepository) UpdateDisplayName(ctx context.Context, id, name string) error {
	return r.db.WithContext(ctx).Model(&Account{}).Where("id = ?", id).Update("display_name", name).Error
}

type memoryAccountRepository struct {
	mu      sync.RWMutex
	byID    map[string]Account
	byEmail map[string]string
}

// NewMemoryAccountRepository keeps accounts in process memory; used when no
// DATABASE_URL is configured.
func NewMemoryAccountRepository() AccountRepository {
	return &memoryAccountRepository{
		byID:    make(map[string]Account),
		byEmail: make(map[string]string),
	}
}

func (r *memoryAccountRepository) Create(_ context.Context, account *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[account.Email]; exists {
		return errDuplicateEmail
	}
	now := time.Now()
	account.CreatedAt, account.UpdatedAt = now, now
	r.byID[account.ID] = *account
	r.byEmail[account.Email] = account.ID
	return nil
}

func (r *memoryAccountRepository) FindByID(_ context.Context, id string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *memoryAccountRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	r.mu.RLock()
	id, ok := r.byEmail[email]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return r.FindByID(ctx, id)
}

func (r *memoryAccountRepository) UpdatePassword(_ context.Context, id, hash string) error {
	return r.update(id, func(a *Account) { a.PasswordHash = hash })
}

func (r *memoryAccountRepository) UpdateDisplayName(_ context.Context, id, name string) error {
	return r.update(id, func(a *Account) { a.DisplayName = name })
}

func (r *memoryAccountRepository) update(id string, fn func(*Account)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	fn(&a)
	a.UpdatedAt = time.Now()
	r.byID[id] = a
	return nil
}
