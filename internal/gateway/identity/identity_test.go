package identity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tutorme.app/marketplace/internal/gateway"
	"tutorme.app/marketplace/internal/gateway/notifier"
	"tutorme.app/marketplace/pkg/mailer"
)

type captureMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (m *captureMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func newTestService(t *testing.T) (*Service, *captureMailer) {
	t.Helper()
	m := &captureMailer{}
	svc := NewService(
		NewMemoryAccountRepository(),
		NewMemoryTokenStore(nil),
		notifier.NewLocal(),
		m,
		Config{Secret: "test-secret", MaxAttempts: 3, ResetURL: "http://localhost/reset?code="},
		zap.NewNop(),
	)
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(svc.Close)
	return svc, m
}

func TestCreateIdentity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	id, err := svc.CreateIdentity(ctx, " Ana@Example.com ", "secret1", "Ana Lee")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", id.Email)
	assert.Equal(t, "Ana Lee", id.DisplayName)

	_, err = svc.CreateIdentity(ctx, "ana@example.com", "secret1", "Ana")
	assert.True(t, gateway.IsAuthCode(err, gateway.CodeEmailInUse))

	_, err = svc.CreateIdentity(ctx, "not-an-email", "secret1", "X")
	assert.True(t, gateway.IsAuthCode(err, gateway.CodeInvalidEmail))

	_, err = svc.CreateIdentity(ctx, "b@example.com", "123", "B")
	assert.True(t, gateway.IsAuthCode(err, gateway.CodeWeakPassword))
}

func TestAuthenticateAndVerify(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateIdentity(ctx, "ana@example.com", "secret1", "Ana")
	require.NoError(t, err)

	cred, err := svc.Authenticate(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, cred.Identity.ID)

	got, err := svc.Verify(ctx, cred.Token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = svc.Authenticate(ctx, "ana@example.com", "wrong-pass")
	assert.True(t, gateway.IsAuthCode(err, gateway.CodeInvalidCredential))

	_, err = svc.Verify(ctx, "garbage")
	assert.True(t, gateway.IsAuthCode(err, gateway.CodeExpiredToken))
}

func TestAuthenticate_TooManyAttempts(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateIdentity(ctx, "ana@example.com", "secret1", "Ana")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = svc.Authenticate(ctx, "ana@example.com", "wrong-pass")
		assert.True(t, gateway.IsAuthCode(err, gateway.CodeInvalidCredential))
	}
	_, err = svc.Authenticate(ctx, "ana@example.com", "secret1")
	assert.True(t, gateway.IsAuthCode(err, gateway.CodeTooManyRequests))
}

func TestDeauthenticate_RevokesToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateIdentity(ctx, "ana@example.com", "secret1", "Ana")
	require.NoError(t, err)
	cred, err := svc.Authenticate(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, svc.Deauthenticate(ctx, cred.Token))
	_, err = svc.Verify(ctx, cred.Token)
	assert.True(t, gateway.IsAuthCode(err, gateway.CodeExpiredToken))

	assert.NoError(t, svc.Deauthenticate(ctx, cred.Token))
}

func TestOnAuthStateChanged_ReportsLogout(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateIdentity(ctx, "ana@example.com", "secret1", "Ana")
	require.NoError(t, err)
	cred, err := svc.Authenticate(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)

	states := make(chan *gateway.Identity, 4)
	cancel := svc.OnAuthStateChanged(cred.Token, func(id *gateway.Identity) { states <- id })
	defer cancel()

	first := waitState(t, states)
	require.NotNil(t, first)
	assert.Equal(t, "ana@example.com", first.Email)

	require.NoError(t, svc.Deauthenticate(ctx, cred.Token))
	assert.Nil(t, waitState(t, states))

	cancel()
	cancel()
}

func TestOnAuthStateChanged_InvalidToken(t *testing.T) {
	svc, _ := newTestService(t)

	states := make(chan *gateway.Identity, 1)
	cancel := svc.OnAuthStateChanged("", func(id *gateway.Identity) { states <- id })
	defer cancel()

	assert.Nil(t, waitState(t, states))
}

func TestResetFlow(t *testing.T) {
	svc, m := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateIdentity(ctx, "ana@example.com", "secret1", "Ana")
	require.NoError(t, err)

	err = svc.ResetCredential(ctx, "nobody@example.com")
	assert.True(t, gateway.IsAuthCode(err, gateway.CodeUserNotFound))

	err = svc.ResetCredential(ctx, "bad")
	assert.True(t, gateway.IsAuthCode(err, gateway.CodeInvalidEmail))

	require.NoError(t, svc.ResetCredential(ctx, "ana@example.com"))
	require.Len(t, m.sent, 1)
	assert.Contains(t, m.sent[0].Text, "http://localhost/reset?code=")

	code := m.sent[0].Text[len("Follow this link to reset your password: http://localhost/reset?code="):]
	require.NoError(t, svc.ConfirmReset(ctx, code, "newsecret"))

	err = svc.ConfirmReset(ctx, code, "newsecret")
	assert.True(t, gateway.IsAuthCode(err, gateway.CodeExpiredToken))

	_, err = svc.Authenticate(ctx, "ana@example.com", "newsecret")
	assert.NoError(t, err)
}

func TestMemoryTokenStore_Expiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryTokenStore(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "k", "v", time.Minute))
	v, ok, _ := store.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	now = now.Add(2 * time.Minute)
	_, ok, _ = store.Get(ctx, "k")
	assert.False(t, ok)

	n, _ := store.Incr(ctx, "c", time.Minute)
	assert.Equal(t, int64(1), n)
	n, _ = store.Incr(ctx, "c", time.Minute)
	assert.Equal(t, int64(2), n)
}

func waitState(t *testing.T, ch <-chan *gateway.Identity) *gateway.Identity {
	t.Helper()
	select {
	case id := <-ch:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("no auth state delivered")
	}
	return nil
}
