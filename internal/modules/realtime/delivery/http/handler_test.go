package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tutorme.app/marketplace/internal/entity"
	"tutorme.app/marketplace/internal/gateway/identity"
	"tutorme.app/marketplace/internal/gateway/memdb"
	"tutorme.app/marketplace/internal/gateway/notifier"
	"tutorme.app/marketplace/internal/middleware"
	subjectRepo "tutorme.app/marketplace/internal/modules/subject/repository"
	tutorRepo "tutorme.app/marketplace/internal/modules/tutor/repository"
	tutoringRepo "tutorme.app/marketplace/internal/modules/tutoring/repository"
	userRepo "tutorme.app/marketplace/internal/modules/user/repository"
	"tutorme.app/marketplace/internal/session"
	"tutorme.app/marketplace/pkg/mailer"
)

type frame struct {
	Type  string          `json:"type"`
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

type testEnv struct {
	server *httptest.Server
	auth   *identity.Service
	store  *memdb.Store
	token  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()
	ctx := context.Background()

	store := memdb.New(log)
	t.Cleanup(store.Close)
	require.NoError(t, store.Set(ctx, "subjects/mathematics", map[string]any{"name": "Mathematics"}))

	auth := identity.NewService(
		identity.NewMemoryAccountRepository(),
		identity.NewMemoryTokenStore(nil),
		notifier.NewLocal(),
		mailer.New(mailer.Config{}, log),
		identity.Config{Secret: "test-secret"},
		log,
	)
	require.NoError(t, auth.Start(ctx))
	t.Cleanup(auth.Close)

	users := userRepo.NewUserRepository(store, log, nil)
	id, err := auth.CreateIdentity(ctx, "anna@example.com", "secret1", "Anna Smith")
	require.NoError(t, err)
	require.NoError(t, users.CreateProfile(ctx, &entity.StudentProfile{
		ProfileBase: entity.ProfileBase{
			ID:       id.ID,
			FullName: "Anna Smith",
			Email:    "anna@example.com",
			Role:     entity.RoleStudent,
			Subjects: []string{"mathematics"},
		},
		SubscriptionPlan: entity.FreePlan,
	}))
	cred, err := auth.Authenticate(ctx, "anna@example.com", "secret1")
	require.NoError(t, err)

	h := NewRealtimeHandler(
		auth,
		users,
		subjectRepo.NewSubjectRepository(store, log),
		tutorRepo.NewTutorRepository(store, log, nil),
		tutoringRepo.NewSessionRepository(store, log, nil),
		nil,
		log,
		nil,
	)
	mw := middleware.NewAuthMiddleware(auth, users, nil, log)

	r := gin.New()
	r.GET("/ws", mw.RequireAuth(), h.HandleWebSocket)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	return &testEnv{server: server, auth: auth, store: store, token: cred.Token}
}

func (e *testEnv) dial(t *testing.T, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws"
	if token != "" {
		url += "?token=" + token
	}
	return websocket.DefaultDialer.Dial(url, nil)
}

func readUntil(t *testing.T, conn *websocket.Conn, match func(frame) bool) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		if match(f) {
			return f
		}
	}
}

func sessionState(f frame) sessionPayload {
	var p struct {
		State     string `json:"state"`
		Dashboard string `json:"dashboard"`
	}
	_ = json.Unmarshal(f.Data, &p)
	return sessionPayload{State: session.State(p.State), Dashboard: p.Dashboard}
}

func TestHandleWebSocket_RequiresToken(t *testing.T) {
	env := newTestEnv(t)

	_, resp, err := env.dial(t, "")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandleWebSocket_PushesResolvedSession(t *testing.T) {
	env := newTestEnv(t)
	conn, _, err := env.dial(t, env.token)
	require.NoError(t, err)
	defer conn.Close()

	f := readUntil(t, conn, func(f frame) bool {
		return f.Type == "session" && sessionState(f).State.Resolved()
	})
	p := sessionState(f)
	assert.Equal(t, "student_resolved", string(p.State))
	assert.Equal(t, "/student-dashboard", p.Dashboard)
}

func TestHandleWebSocket_SubscribeSubjects(t *testing.T) {
	env := newTestEnv(t)
	conn, _, err := env.dial(t, env.token)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(clientFrame{Action: "subscribe", Topic: TopicSubjects}))
	f := readUntil(t, conn, func(f frame) bool { return f.Type == "data" && f.Topic == TopicSubjects })

	var subjects []entity.Subject
	require.NoError(t, json.Unmarshal(f.Data, &subjects))
	require.Len(t, subjects, 1)
	assert.Equal(t, "Mathematics", subjects[0].Name)

	require.NoError(t, env.store.Set(context.Background(), "subjects/physics", map[string]any{"name": "Physics"}))
	f = readUntil(t, conn, func(f frame) bool {
		if f.Type != "data" || f.Topic != TopicSubjects {
			return false
		}
		subjects = nil
		_ = json.Unmarshal(f.Data, &subjects)
		return len(subjects) == 2
	})
	assert.Equal(t, TopicSubjects, f.Topic)
}

func TestHandleWebSocket_UnknownTopic(t *testing.T) {
	env := newTestEnv(t)
	conn, _, err := env.dial(t, env.token)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(clientFrame{Action: "subscribe", Topic: "leaderboard"}))
	f := readUntil(t, conn, func(f frame) bool { return f.Type == "error" })
	assert.Equal(t, "leaderboard", f.Topic)
	assert.Equal(t, errUnknownTopic.Error(), f.Error)
}

func TestHandleWebSocket_LogoutIsPushed(t *testing.T) {
	env := newTestEnv(t)
	conn, _, err := env.dial(t, env.token)
	require.NoError(t, err)
	defer conn.Close()

	readUntil(t, conn, func(f frame) bool {
		return f.Type == "session" && sessionState(f).State.Resolved()
	})

	require.NoError(t, env.auth.Deauthenticate(context.Background(), env.token))
	f := readUntil(t, conn, func(f frame) bool {
		return f.Type == "session" && !sessionState(f).State.Resolved()
	})
	assert.Equal(t, "logged_out", string(sessionState(f).State))
}
