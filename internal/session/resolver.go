// Package session resolves an authenticated identity to its role and
// profile and keeps that answer current while the session lives.
package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"tutorme.app/marketplace/internal/entity"
	"tutorme.app/marketplace/internal/gateway"
)

// AuthStateSource streams the identity of one session; nil means logged out.
type AuthStateSource interface {
	OnAuthStateChanged(fn func(*gateway.Identity)) gateway.CancelFunc
}

// AuthStateFunc adapts a function to AuthStateSource.
type AuthStateFunc func(fn func(*gateway.Identity)) gateway.CancelFunc

func (f AuthStateFunc) OnAuthStateChanged(fn func(*gateway.Identity)) gateway.CancelFunc {
	return f(fn)
}

// BindToken follows the auth state of the session behind token.
func BindToken(auth gateway.Auth, token string) AuthStateSource {
	return AuthStateFunc(func(fn func(*gateway.Identity)) gateway.CancelFunc {
		return auth.OnAuthStateChanged(token, fn)
	})
}

// ProfileSource reads and watches role-partitioned profiles.
type ProfileSource interface {
	GetProfile(ctx context.Context, role entity.Role, id string) (entity.Profile, error)
	SubscribeProfile(role entity.Role, id string, onChange func(entity.Profile)) gateway.CancelFunc
}

type Option func(*Resolver)

// WithObserver is called with every state the resolver settles in.
func WithObserver(fn func(State)) Option {
	return func(r *Resolver) { r.observe = fn }
}

type authEvent struct {
	identity *gateway.Identity
}

type probeEvent struct {
	gen     uint64
	role    entity.Role
	profile entity.Profile
	err     error
}

type profileEvent struct {
	gen     uint64
	profile entity.Profile
}

type watchEvent struct {
	id uint64
}

// Resolver owns the auth-state subscription, the two-step profile probe and
// the live profile subscription for one session. Its event loop is the only
// writer of the snapshot; watchers run on that loop in order.
type Resolver struct {
	auth     AuthStateSource
	profiles ProfileSource
	log      *zap.Logger
	observe  func(State)

	mu       sync.RWMutex
	snap     Snapshot
	watchers map[uint64]func(Snapshot)
	nextID   uint64

	events *queue
	quit   chan struct{}
	done   chan struct{}
	ready  chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	readyOnce sync.Once
	started   bool

	lifeMu     sync.Mutex
	cancelAuth gateway.CancelFunc

	// Owned by the loop goroutine.
	gen           uint64
	cancelProfile gateway.CancelFunc
	cancelProbe   context.CancelFunc
	lastObserved  State
}

func New(auth AuthStateSource, profiles ProfileSource, log *zap.Logger, opts ...Option) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Resolver{
		auth:     auth,
		profiles: profiles,
		log:      log,
		snap:     newSnapshot(Unresolved, nil, nil, nil),
		watchers: make(map[uint64]func(Snapshot)),
		events:   newQueue(),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start subscribes to the auth-state stream. It is safe to call twice.
func (r *Resolver) Start() {
	r.startOnce.Do(func() {
		select {
		case <-r.quit:
			return
		default:
		}

		r.lifeMu.Lock()
		r.started = true
		r.lifeMu.Unlock()

		go r.loop()

		cancel := r.auth.OnAuthStateChanged(func(identity *gateway.Identity) {
			r.events.push(authEvent{identity: identity})
		})

		r.lifeMu.Lock()
		r.cancelAuth = cancel
		r.lifeMu.Unlock()
	})
}

// Stop cancels the auth stream and any live profile subscription. No watcher
// runs after Stop returns. It must not be called from a watcher.
func (r *Resolver) Stop() {
	r.stopOnce.Do(func() {
		close(r.quit)

		r.lifeMu.Lock()
		started := r.started
		cancelAuth := r.cancelAuth
		r.cancelAuth = nil
		r.lifeMu.Unlock()

		if started {
			<-r.done
		}
		if cancelAuth != nil {
			cancelAuth()
		}
		r.clearProfile()
	})
}

func (r *Resolver) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

// Watch calls fn with the current snapshot and again after every change,
// on the resolver's loop. The returned CancelFunc is idempotent.
func (r *Resolver) Watch(fn func(Snapshot)) gateway.CancelFunc {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.watchers[id] = fn
	r.mu.Unlock()

	r.events.push(watchEvent{id: id})

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.watchers, id)
			r.mu.Unlock()
		})
	}
}

// Ready blocks until the first resolution finishes or ctx is done.
func (r *Resolver) Ready(ctx context.Context) (Snapshot, error) {
	select {
	case <-r.ready:
		return r.Snapshot(), nil
	case <-ctx.Done():
		return r.Snapshot(), ctx.Err()
	}
}

func (r *Resolver) loop() {
	defer close(r.done)
	for {
		select {
		case <-r.quit:
			return
		case <-r.events.signal:
		}

		for _, ev := range r.events.drain() {
			select {
			case <-r.quit:
				return
			default:
			}
			r.handle(ev)
		}
	}
}

func (r *Resolver) handle(ev any) {
	switch e := ev.(type) {
	case authEvent:
		r.onAuth(e.identity)
	case probeEvent:
		r.onProbe(e)
	case profileEvent:
		r.onProfile(e)
	case watchEvent:
		r.mu.RLock()
		fn, ok := r.watchers[e.id]
		snap := r.snap
		r.mu.RUnlock()
		if ok {
			fn(snap)
		}
	}
}

func (r *Resolver) onAuth(identity *gateway.Identity) {
	current := r.Snapshot()
	if identity != nil && current.Identity != nil && identity.ID == current.Identity.ID &&
		!current.Loading && current.State != Errored {
		// Same session re-reported; only the display attributes may differ.
		if *identity != *current.Identity {
			current.Identity = identity
			r.publish(current)
		}
		return
	}

	r.gen++
	r.clearProfile()

	if identity == nil {
		r.publish(newSnapshot(LoggedOut, nil, nil, nil))
		return
	}

	r.publish(newSnapshot(ProbingTutor, identity, nil, nil))
	r.probe(entity.RoleTutor, identity.ID)
}

func (r *Resolver) onProbe(e probeEvent) {
	if e.gen != r.gen {
		return
	}
	r.cancelProbe = nil
	identity := r.Snapshot().Identity

	switch {
	case e.err != nil:
		r.log.Warn("profile probe failed",
			zap.String("identity", identity.ID),
			zap.String("role", string(e.role)),
			zap.Error(e.err),
		)
		r.publish(newSnapshot(Errored, identity, nil, e.err))

	case e.profile != nil:
		gen := r.gen
		r.cancelProfile = r.profiles.SubscribeProfile(e.role, identity.ID, func(p entity.Profile) {
			r.events.push(profileEvent{gen: gen, profile: p})
		})
		r.publish(newSnapshot(resolvedState(e.role), identity, e.profile, nil))

	case e.role == entity.RoleTutor:
		r.publish(newSnapshot(ProbingStudent, identity, nil, nil))
		r.probe(entity.RoleStudent, identity.ID)

	default:
		r.publish(newSnapshot(Orphaned, identity, nil, nil))
	}
}

func (r *Resolver) onProfile(e profileEvent) {
	current := r.Snapshot()
	if e.gen != r.gen || !current.State.Resolved() {
		return
	}

	if e.profile == nil {
		r.clearProfile()
		r.publish(newSnapshot(Orphaned, current.Identity, nil, nil))
		return
	}
	if e.profile.ProfileRole() != current.Role {
		return
	}
	r.publish(newSnapshot(current.State, current.Identity, e.profile, nil))
}

func (r *Resolver) probe(role entity.Role, id string) {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancelProbe = cancel
	gen := r.gen

	go func() {
		defer cancel()
		p, err := r.profiles.GetProfile(ctx, role, id)
		if ctx.Err() != nil {
			return
		}
		r.events.push(probeEvent{gen: gen, role: role, profile: p, err: err})
	}()
}

// clearProfile drops the live profile subscription and any pending probe.
func (r *Resolver) clearProfile() {
	if r.cancelProfile != nil {
		r.cancelProfile()
		r.cancelProfile = nil
	}
	if r.cancelProbe != nil {
		r.cancelProbe()
		r.cancelProbe = nil
	}
}

func (r *Resolver) publish(s Snapshot) {
	r.mu.Lock()
	r.snap = s
	ids := make([]uint64, 0, len(r.watchers))
	for id := range r.watchers {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	if !s.Loading {
		r.readyOnce.Do(func() { close(r.ready) })
		if s.State != r.lastObserved && r.observe != nil {
			r.observe(s.State)
		}
		r.lastObserved = s.State
	}

	for _, id := range sortIDs(ids) {
		r.mu.RLock()
		fn, ok := r.watchers[id]
		r.mu.RUnlock()
		if ok {
			fn(s)
		}
	}
}

// Resolve runs the two-step probe once for identity.
func Resolve(ctx context.Context, profiles ProfileSource, identity *gateway.Identity) Snapshot {
	if identity == nil {
		return newSnapshot(LoggedOut, nil, nil, nil)
	}
	for _, role := range []entity.Role{entity.RoleTutor, entity.RoleStudent} {
		p, err := profiles.GetProfile(ctx, role, identity.ID)
		if err != nil {
			return newSnapshot(Errored, identity, nil, err)
		}
		if p != nil {
			return newSnapshot(resolvedState(role), identity, p, nil)
		}
	}
	return newSnapshot(Orphaned, identity, nil, nil)
}
