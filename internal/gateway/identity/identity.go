// Package identity is the email/password auth gateway. Accounts live in
// Postgres, sessions are HS256 tokens backed by a revocable record in the
// token store, and auth-state changes travel through the notifier.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"tutorme.app/marketplace/internal/gateway"
	"tutorme.app/marketplace/internal/gateway/notifier"
	"tutorme.app/marketplace/pkg/mailer"
)

const (
	issuer            = "tutorme"
	minPasswordLength = 6

	sessionPrefix = "session:"
	resetPrefix   = "reset:"
	loginPrefix   = "auth_attempts:"
	resetLimitKey = "reset_attempts:"
)

type Config struct {
	Secret        string
	TokenTTL      time.Duration
	ResetTTL      time.Duration
	MaxAttempts   int
	AttemptWindow time.Duration
	// ResetURL receives the reset code appended as a query value.
	ResetURL string
}

type Service struct {
	accounts AccountRepository
	tokens   TokenStore
	notifier notifier.Notifier
	mailer   mailer.Mailer
	cfg      Config
	validate *validator.Validate
	hub      *gateway.Hub
	log      *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	stopFeed gateway.CancelFunc
}

var _ gateway.Auth = (*Service)(nil)

func NewService(accounts AccountRepository, tokens TokenStore, n notifier.Notifier, m mailer.Mailer, cfg Config, log *zap.Logger) *Service {
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.ResetTTL == 0 {
		cfg.ResetTTL = time.Hour
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.AttemptWindow == 0 {
		cfg.AttemptWindow = 15 * time.Minute
	}
	return &Service{
		accounts: accounts,
		tokens:   tokens,
		notifier: n,
		mailer:   m,
		cfg:      cfg,
		validate: validator.New(),
		hub:      gateway.NewHub(log),
		log:      log,
		now:      time.Now,
	}
}

// Start listens for session revocations from any instance.
func (s *Service) Start(ctx context.Context) error {
	stop, err := s.notifier.Subscribe(ctx, notifier.TopicAuthState, func(sessionID string) {
		s.hub.Notify(authPath(sessionID))
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.stopFeed = stop
	s.mu.Unlock()
	return nil
}

func (s *Service) Close() {
	s.mu.Lock()
	stop := s.stopFeed
	s.stopFeed = nil
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
	s.hub.Close()
}

func (s *Service) CreateIdentity(ctx context.Context, email, password, displayName string) (*gateway.Identity, error) {
	email = normalizeEmail(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, gateway.NewAuthError(gateway.CodeInvalidEmail)
	}
	if len(password) < minPasswordLength {
		return nil, gateway.NewAuthError(gateway.CodeWeakPassword)
	}

	existing, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gateway.ErrUnavailable, err)
	}
	if existing != nil {
		return nil, gateway.NewAuthError(gateway.CodeEmailInUse)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	account := &Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  displayName,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, errDuplicateEmail) {
			return nil, gateway.NewAuthError(gateway.CodeEmailInUse)
		}
		return nil, fmt.Errorf("%w: %v", gateway.ErrUnavailable, err)
	}

	return toIdentity(account), nil
}

func (s *Service) Authenticate(ctx context.Context, email, password string) (*gateway.Credential, error) {
	email = normalizeEmail(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, gateway.NewAuthError(gateway.CodeInvalidEmail)
	}

	limitKey := loginPrefix + email
	if attempts, ok, err := s.tokens.Get(ctx, limitKey); err == nil && ok && attemptCount(attempts) >= s.cfg.MaxAttempts {
		return nil, gateway.NewAuthError(gateway.CodeTooManyRequests)
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gateway.ErrUnavailable, err)
	}
	if account == nil || bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		if _, err := s.tokens.Incr(ctx, limitKey, s.cfg.AttemptWindow); err != nil {
			s.log.Warn("failed to record login attempt", zap.Error(err))
		}
		return nil, gateway.NewAuthError(gateway.CodeInvalidCredential)
	}
	_ = s.tokens.Delete(ctx, limitKey)

	return s.issue(ctx, account)
}

func (s *Service) issue(ctx context.Context, account *Account) (*gateway.Credential, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.TokenTTL)
	sessionID := uuid.NewString()

	claims := jwt.RegisteredClaims{
		Subject:   account.ID,
		ID:        sessionID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return nil, err
	}

	if err := s.tokens.Put(ctx, sessionPrefix+sessionID, account.ID, s.cfg.TokenTTL); err != nil {
		return nil, fmt.Errorf("%w: %v", gateway.ErrUnavailable, err)
	}

	return &gateway.Credential{
		Token:     signed,
		ExpiresAt: expiresAt,
		Identity:  *toIdentity(account),
	}, nil
}

func (s *Service) parse(tokenString string) (*jwt.RegisteredClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	}, jwt.WithTimeFunc(s.now), jwt.WithIssuer(issuer))
	if err != nil || !token.Valid {
		return nil, &gateway.AuthError{Code: gateway.CodeExpiredToken, Err: err}
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.ID == "" || claims.Subject == "" {
		return nil, gateway.NewAuthError(gateway.CodeExpiredToken)
	}
	return claims, nil
}

func (s *Service) Verify(ctx context.Context, token string) (*gateway.Identity, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}

	owner, ok, err := s.tokens.Get(ctx, sessionPrefix+claims.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gateway.ErrUnavailable, err)
	}
	if !ok || owner != claims.Subject {
		return nil, gateway.NewAuthError(gateway.CodeExpiredToken)
	}

	account, err := s.accounts.FindByID(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gateway.ErrUnavailable, err)
	}
	if account == nil {
		return nil, gateway.NewAuthError(gateway.CodeUserNotFound)
	}
	return toIdentity(account), nil
}

func (s *Service) Deauthenticate(ctx context.Context, token string) error {
	claims, err := s.parse(token)
	if err != nil {
		// Nothing left to revoke.
		return nil
	}
	if err := s.tokens.Delete(ctx, sessionPrefix+claims.ID); err != nil {
		return fmt.Errorf("%w: %v", gateway.ErrUnavailable, err)
	}
	if err := s.notifier.Publish(ctx, notifier.TopicAuthState, claims.ID); err != nil {
		s.log.Warn("failed to publish logout", zap.String("session_id", claims.ID), zap.Error(err))
	}
	return nil
}

func (s *Service) ResetCredential(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return gateway.NewAuthError(gateway.CodeInvalidEmail)
	}

	n, err := s.tokens.Incr(ctx, resetLimitKey+email, s.cfg.AttemptWindow)
	if err != nil {
		return fmt.Errorf("%w: %v", gateway.ErrUnavailable, err)
	}
	if n > int64(s.cfg.MaxAttempts) {
		return gateway.NewAuthError(gateway.CodeTooManyRequests)
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("%w: %v", gateway.ErrUnavailable, err)
	}
	if account == nil {
		return gateway.NewAuthError(gateway.CodeUserNotFound)
	}

	code := uuid.NewString()
	if err := s.tokens.Put(ctx, resetPrefix+code, account.ID, s.cfg.ResetTTL); err != nil {
		return fmt.Errorf("%w: %v", gateway.ErrUnavailable, err)
	}

	link := s.cfg.ResetURL + code
	msg := mailer.Message{
		ToName:  account.DisplayName,
		ToEmail: account.Email,
		Subject: "Reset your password",
		Text:    "Follow this link to reset your password: " + link,
		HTML:    `<p>Follow <a href="` + link + `">this link</a> to reset your password.</p>`,
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("%w: %v", gateway.ErrUnavailable, err)
	}
	return nil
}

func (s *Service) ConfirmReset(ctx context.Context, code, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return gateway.NewAuthError(gateway.CodeWeakPassword)
	}

	accountID, ok, err := s.tokens.Take(ctx, resetPrefix+code)
	if err != nil {
		return fmt.Errorf("%w: %v", gateway.ErrUnavailable, err)
	}
	if !ok {
		return gateway.NewAuthError(gateway.CodeExpiredToken)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.accounts.UpdatePassword(ctx, accountID, string(hash)); err != nil {
		return fmt.Errorf("%w: %v", gateway.ErrUnavailable, err)
	}
	return nil
}

func (s *Service) UpdateDisplayName(ctx context.Context, id, displayName string) error {
	if err := s.accounts.UpdateDisplayName(ctx, id, displayName); err != nil {
		return fmt.Errorf("%w: %v", gateway.ErrUnavailable, err)
	}
	return nil
}

// OnAuthStateChanged reports nil once the session behind token is revoked or
// expires. A token that never verified reports nil once and stays silent.
func (s *Service) OnAuthStateChanged(token string, fn func(*gateway.Identity)) gateway.CancelFunc {
	sessionID := "anonymous"
	var expiry *time.Timer
	path := authPath(sessionID)

	if claims, err := s.parse(token); err == nil {
		sessionID = claims.ID
		path = authPath(sessionID)
		if claims.ExpiresAt != nil {
			expiry = time.AfterFunc(claims.ExpiresAt.Sub(s.now()), func() { s.hub.Notify(path) })
		}
	}

	fetch := func(ctx context.Context) (gateway.Snapshot, error) {
		identity, err := s.Verify(ctx, token)
		if err != nil {
			var authErr *gateway.AuthError
			if errors.As(err, &authErr) {
				return gateway.Snapshot{Path: path}, nil
			}
			return gateway.Snapshot{}, err
		}
		raw, err := json.Marshal(identity)
		if err != nil {
			return gateway.Snapshot{}, err
		}
		return gateway.Snapshot{Path: path, Exists: true, Value: raw}, nil
	}

	onValue := func(snap gateway.Snapshot) {
		if !snap.Exists {
			fn(nil)
			return
		}
		var identity gateway.Identity
		if err := snap.Decode(&identity); err != nil {
			s.log.Error("failed to decode identity", zap.Error(err))
			fn(nil)
			return
		}
		fn(&identity)
	}

	cancel := s.hub.Subscribe(path, fetch, onValue, nil)
	return func() {
		if expiry != nil {
			expiry.Stop()
		}
		cancel()
	}
}

func authPath(sessionID string) string {
	return gateway.Join("auth", sessionID)
}

func toIdentity(a *Account) *gateway.Identity {
	return &gateway.Identity{ID: a.ID, Email: a.Email, DisplayName: a.DisplayName}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func attemptCount(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
