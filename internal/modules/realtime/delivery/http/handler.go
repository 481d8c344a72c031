package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tutorme.app/marketplace/internal/entity"
	"tutorme.app/marketplace/internal/gateway"
	subjectRepo "tutorme.app/marketplace/internal/modules/subject/repository"
	tutorRepo "tutorme.app/marketplace/internal/modules/tutor/repository"
	tutoringRepo "tutorme.app/marketplace/internal/modules/tutoring/repository"
	userRepo "tutorme.app/marketplace/internal/modules/user/repository"
	"tutorme.app/marketplace/internal/session"
	"tutorme.app/marketplace/pkg/metrics"
	"tutorme.app/marketplace/pkg/response"
)

const (
	TopicSessions = "sessions"
	TopicSubjects = "subjects"
	TopicTutors   = "tutors"
	TopicProfile  = "profile"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 32
)

type clientFrame struct {
	Action string `json:"action"`
	Topic  string `json:"topic"`
}

type serverFrame struct {
	Type  string `json:"type"`
	Topic string `json:"topic,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

type sessionPayload struct {
	State     session.State     `json:"state"`
	Loading   bool              `json:"loading"`
	Identity  *gateway.Identity `json:"identity,omitempty"`
	Role      entity.Role       `json:"role,omitempty"`
	Profile   entity.Profile    `json:"profile,omitempty"`
	Dashboard string            `json:"dashboard,omitempty"`
	Error     string            `json:"error,omitempty"`
}

func newSessionPayload(s session.Snapshot) sessionPayload {
	p := sessionPayload{
		State:     s.State,
		Loading:   s.Loading,
		Identity:  s.Identity,
		Role:      s.Role,
		Profile:   s.Profile,
		Dashboard: s.Dashboard(),
	}
	if s.Err != nil {
		p.Error = "something went wrong talking to the server, please try again"
	}
	return p
}

// RealtimeHandler relays the caller's session state and live data over a
// WebSocket.
type RealtimeHandler struct {
	auth     gateway.Auth
	users    userRepo.UserRepository
	subjects subjectRepo.SubjectRepository
	tutors   tutorRepo.TutorRepository
	sessions tutoringRepo.SessionRepository
	metrics  *metrics.Metrics
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewRealtimeHandler(
	auth gateway.Auth,
	users userRepo.UserRepository,
	subjects subjectRepo.SubjectRepository,
	tutors tutorRepo.TutorRepository,
	sessions tutoringRepo.SessionRepository,
	m *metrics.Metrics,
	log *zap.Logger,
	allowedOrigins []string,
) *RealtimeHandler {
	return &RealtimeHandler{
		auth:     auth,
		users:    users,
		subjects: subjects,
		tutors:   tutors,
		sessions: sessions,
		metrics:  m,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
	}
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// HandleWebSocket must run behind RequireAuth, which accepts the token as a
// query parameter for browsers that cannot set headers on upgrade.
func (h *RealtimeHandler) HandleWebSocket(c *gin.Context) {
	token := c.GetString(response.ContextToken)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("failed to upgrade websocket", zap.Error(err))
		return
	}

	cl := &client{
		h:    h,
		conn: conn,
		out:  make(chan serverFrame, sendBuffer),
		done: make(chan struct{}),
		subs: make(map[string]gateway.CancelFunc),
	}
	cl.resolver = session.New(session.BindToken(h.auth, token), h.users, h.log,
		session.WithObserver(func(s session.State) { h.metrics.ObserveResolution(string(s)) }),
	)

	go cl.writeLoop()

	stopWatch := cl.resolver.Watch(cl.onSession)
	cl.resolver.Start()

	cl.readLoop()

	close(cl.done)
	stopWatch()
	cl.resolver.Stop()
	cl.unsubscribeAll()
	conn.Close()
}

type client struct {
	h        *RealtimeHandler
	conn     *websocket.Conn
	resolver *session.Resolver
	out      chan serverFrame
	done     chan struct{}

	mu   sync.Mutex
	subs map[string]gateway.CancelFunc
}

func (cl *client) send(f serverFrame) {
	select {
	case cl.out <- f:
	case <-cl.done:
	}
}

func (cl *client) onSession(s session.Snapshot) {
	if s.State == session.LoggedOut || s.State == session.Orphaned {
		cl.unsubscribe(TopicSessions)
		cl.unsubscribe(TopicProfile)
	}
	cl.send(serverFrame{Type: "session", Data: newSessionPayload(s)})
}

func (cl *client) readLoop() {
	cl.conn.SetReadLimit(4096)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame clientFrame
		if err := cl.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				cl.h.log.Debug("websocket closed", zap.Error(err))
			}
			return
		}

		switch frame.Action {
		case "subscribe":
			if err := cl.subscribe(frame.Topic); err != nil {
				cl.send(serverFrame{Type: "error", Topic: frame.Topic, Error: err.Error()})
			}
		case "unsubscribe":
			cl.unsubscribe(frame.Topic)
		default:
			cl.send(serverFrame{Type: "error", Error: "unknown action " + frame.Action})
		}
	}
}

func (cl *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case f := <-cl.out:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteJSON(f); err != nil {
				cl.h.log.Debug("failed to write websocket frame", zap.Error(err))
				cl.conn.Close()
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				cl.conn.Close()
				return
			}
		case <-cl.done:
			_ = cl.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}

type errTopic string

func (e errTopic) Error() string { return string(e) }

const (
	errUnknownTopic errTopic = "unknown topic"
	errNoProfile    errTopic = "topic needs a signed in user with a profile"
)

func (cl *client) subscribe(topic string) error {
	data := func(v any) {
		cl.send(serverFrame{Type: "data", Topic: topic, Data: v})
	}

	var cancel gateway.CancelFunc
	switch topic {
	case TopicSubjects:
		cancel = cl.h.subjects.SubscribeSubjects(func(subjects []entity.Subject) { data(subjects) })
	case TopicTutors:
		cancel = cl.h.tutors.SubscribeTutors(func(tutors []*entity.TutorProfile) { data(tutors) })
	case TopicSessions, TopicProfile:
		snap := cl.resolver.Snapshot()
		if !snap.State.Resolved() {
			return errNoProfile
		}
		id := snap.Identity.ID
		switch {
		case topic == TopicProfile:
			cancel = cl.h.users.SubscribeProfile(snap.Role, id, func(p entity.Profile) { data(p) })
		case snap.Role == entity.RoleTutor:
			cancel = cl.h.sessions.SubscribeTutorSessions(id, func(s []*entity.Session) { data(s) })
		default:
			cancel = cl.h.sessions.SubscribeStudentSessions(id, func(s []*entity.Session) { data(s) })
		}
	default:
		return errUnknownTopic
	}

	untrack := cl.h.metrics.TrackSubscription(topic)
	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			untrack()
		})
	}

	cl.mu.Lock()
	prev := cl.subs[topic]
	cl.subs[topic] = stop
	cl.mu.Unlock()

	if prev != nil {
		prev()
	}
	return nil
}

func (cl *client) unsubscribe(topic string) {
	cl.mu.Lock()
	stop := cl.subs[topic]
	delete(cl.subs, topic)
	cl.mu.Unlock()

	if stop != nil {
		stop()
	}
}

func (cl *client) unsubscribeAll() {
	cl.mu.Lock()
	subs := cl.subs
	cl.subs = make(map[string]gateway.CancelFunc)
	cl.mu.Unlock()

	for _, stop := range subs {
		stop()
	}
}
