package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorme.app/marketplace/internal/entity"
	"tutorme.app/marketplace/internal/gateway"
)

type fakeAuth struct {
	mu        sync.Mutex
	fn        func(*gateway.Identity)
	initial   *gateway.Identity
	cancelled int
}

func (a *fakeAuth) OnAuthStateChanged(fn func(*gateway.Identity)) gateway.CancelFunc {
	a.mu.Lock()
	a.fn = fn
	initial := a.initial
	a.mu.Unlock()
	go fn(initial)

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			a.cancelled++
			a.fn = nil
			a.mu.Unlock()
		})
	}
}

func (a *fakeAuth) emit(id *gateway.Identity) {
	a.mu.Lock()
	fn := a.fn
	a.mu.Unlock()
	if fn != nil {
		fn(id)
	}
}

type profileKey struct {
	role entity.Role
	id   string
}

type fakeProfiles struct {
	mu        sync.Mutex
	profiles  map[profileKey]entity.Profile
	failRole  entity.Role
	probes    []profileKey
	subs      map[int]func(entity.Profile)
	subKeys   map[int]profileKey
	nextSub   int
	cancelled int
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{
		profiles: make(map[profileKey]entity.Profile),
		subs:     make(map[int]func(entity.Profile)),
		subKeys:  make(map[int]profileKey),
	}
}

func (f *fakeProfiles) put(p entity.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[profileKey{p.ProfileRole(), p.Base().ID}] = p
}

func (f *fakeProfiles) GetProfile(_ context.Context, role entity.Role, id string) (entity.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes = append(f.probes, profileKey{role, id})
	if role == f.failRole {
		return nil, gateway.ErrUnavailable
	}
	return f.profiles[profileKey{role, id}], nil
}

func (f *fakeProfiles) SubscribeProfile(role entity.Role, id string, onChange func(entity.Profile)) gateway.CancelFunc {
	f.mu.Lock()
	f.nextSub++
	n := f.nextSub
	f.subs[n] = onChange
	f.subKeys[n] = profileKey{role, id}
	p := f.profiles[profileKey{role, id}]
	f.mu.Unlock()
	go onChange(p)

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, n)
			f.cancelled++
			f.mu.Unlock()
		})
	}
}

// change updates the stored profile and notifies live subscribers.
func (f *fakeProfiles) change(role entity.Role, id string, p entity.Profile) {
	f.mu.Lock()
	key := profileKey{role, id}
	if p == nil {
		delete(f.profiles, key)
	} else {
		f.profiles[key] = p
	}
	var fns []func(entity.Profile)
	for n, fn := range f.subs {
		if f.subKeys[n] == key {
			fns = append(fns, fn)
		}
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(p)
	}
}

func (f *fakeProfiles) live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeProfiles) probeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.probes)
}

func tutor(id string) *entity.TutorProfile {
	return &entity.TutorProfile{ProfileBase: entity.ProfileBase{ID: id, FullName: "Tutor " + id}}
}

func student(id string, subjects ...string) *entity.StudentProfile {
	return &entity.StudentProfile{
		ProfileBase:      entity.ProfileBase{ID: id, FullName: "Student " + id, Subjects: subjects},
		SubscriptionPlan: entity.FreePlan,
	}
}

func waitFor(t *testing.T, r *Resolver, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s := r.Snapshot(); cond(s) {
			return s
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met, last snapshot: %+v", r.Snapshot())
	return Snapshot{}
}

func inState(state State) func(Snapshot) bool {
	return func(s Snapshot) bool { return s.State == state }
}

func TestResolver_StartsUnresolvedAndLoading(t *testing.T) {
	r := New(&fakeAuth{}, newFakeProfiles(), nil)
	s := r.Snapshot()
	assert.Equal(t, Unresolved, s.State)
	assert.True(t, s.Loading)
	r.Stop()
}

func TestResolver_TutorResolved(t *testing.T) {
	profiles := newFakeProfiles()
	profiles.put(tutor("u1"))
	auth := &fakeAuth{initial: &gateway.Identity{ID: "u1"}}

	r := New(auth, profiles, nil)
	r.Start()
	defer r.Stop()

	s, err := r.Ready(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TutorResolved, s.State)
	assert.Equal(t, entity.RoleTutor, s.Role)
	assert.False(t, s.Loading)
	assert.Equal(t, "/tutor-dashboard", s.Dashboard())
	assert.Equal(t, 1, profiles.probeCount())
}

func TestResolver_StudentNeverFlickersThroughTutor(t *testing.T) {
	profiles := newFakeProfiles()
	profiles.put(student("u1", "mathematics"))
	auth := &fakeAuth{initial: &gateway.Identity{ID: "u1"}}

	var mu sync.Mutex
	var seen []State
	r := New(auth, profiles, nil)
	r.Watch(func(s Snapshot) {
		mu.Lock()
		seen = append(seen, s.State)
		mu.Unlock()
	})
	r.Start()
	defer r.Stop()

	s := waitFor(t, r, inState(StudentResolved))
	assert.Equal(t, entity.RoleStudent, s.Role)
	got := s.Profile.(*entity.StudentProfile)
	assert.Equal(t, []string{"mathematics"}, got.Subjects)

	mu.Lock()
	defer mu.Unlock()
	assert.NotContains(t, seen, TutorResolved)
}

func TestResolver_OrphanedAfterTwoProbes(t *testing.T) {
	profiles := newFakeProfiles()
	auth := &fakeAuth{initial: &gateway.Identity{ID: "ghost"}}

	r := New(auth, profiles, nil)
	r.Start()
	defer r.Stop()

	s, err := r.Ready(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Orphaned, s.State)
	assert.False(t, s.Loading)
	assert.Equal(t, entity.Role(""), s.Role)
	assert.Nil(t, s.Profile)
	assert.NotNil(t, s.Identity)
	assert.Equal(t, 2, profiles.probeCount())
	assert.Equal(t, 0, profiles.live())
}

func TestResolver_ProbeFailureSettlesErrored(t *testing.T) {
	profiles := newFakeProfiles()
	profiles.failRole = entity.RoleTutor
	auth := &fakeAuth{initial: &gateway.Identity{ID: "u1"}}

	r := New(auth, profiles, nil)
	r.Start()
	defer r.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s, err := r.Ready(ctx)
	require.NoError(t, err)
	assert.Equal(t, Errored, s.State)
	assert.False(t, s.Loading)
	assert.Equal(t, entity.Role(""), s.Role)
	assert.True(t, errors.Is(s.Err, gateway.ErrUnavailable))
}

func TestResolver_LoggedOut(t *testing.T) {
	r := New(&fakeAuth{}, newFakeProfiles(), nil)
	r.Start()
	defer r.Stop()

	s, err := r.Ready(context.Background())
	require.NoError(t, err)
	assert.Equal(t, LoggedOut, s.State)
	assert.Nil(t, s.Identity)
}

func TestResolver_LogoutCancelsProfileSubscription(t *testing.T) {
	for _, p := range []entity.Profile{tutor("u1"), student("u1")} {
		profiles := newFakeProfiles()
		profiles.put(p)
		auth := &fakeAuth{initial: &gateway.Identity{ID: "u1"}}

		r := New(auth, profiles, nil)
		r.Start()

		waitFor(t, r, func(s Snapshot) bool { return s.State.Resolved() })
		require.Equal(t, 1, profiles.live())

		auth.emit(nil)
		s := waitFor(t, r, inState(LoggedOut))
		assert.Nil(t, s.Profile)
		assert.Equal(t, 0, profiles.live())
		assert.Equal(t, 1, profiles.cancelled)

		r.Stop()
	}
}

func TestResolver_IdentitySwitchReplacesSubscription(t *testing.T) {
	profiles := newFakeProfiles()
	profiles.put(tutor("u1"))
	profiles.put(student("u2"))
	auth := &fakeAuth{initial: &gateway.Identity{ID: "u1"}}

	r := New(auth, profiles, nil)
	r.Start()
	defer r.Stop()

	waitFor(t, r, inState(TutorResolved))
	auth.emit(&gateway.Identity{ID: "u2"})
	s := waitFor(t, r, inState(StudentResolved))
	assert.Equal(t, "u2", s.Identity.ID)
	assert.Equal(t, 1, profiles.live())
}

func TestResolver_LiveProfileUpdatesAndRemoval(t *testing.T) {
	profiles := newFakeProfiles()
	profiles.put(tutor("u1"))
	auth := &fakeAuth{initial: &gateway.Identity{ID: "u1"}}

	r := New(auth, profiles, nil)
	r.Start()
	defer r.Stop()

	waitFor(t, r, inState(TutorResolved))

	updated := tutor("u1")
	updated.Bio = "new bio"
	profiles.change(entity.RoleTutor, "u1", updated)
	waitFor(t, r, func(s Snapshot) bool {
		tp, ok := s.Profile.(*entity.TutorProfile)
		return ok && tp.Bio == "new bio"
	})

	profiles.change(entity.RoleTutor, "u1", nil)
	s := waitFor(t, r, inState(Orphaned))
	assert.False(t, s.Loading)
	assert.Equal(t, 0, profiles.live())
}

func TestResolver_StopSilencesWatchers(t *testing.T) {
	profiles := newFakeProfiles()
	profiles.put(tutor("u1"))
	auth := &fakeAuth{initial: &gateway.Identity{ID: "u1"}}

	r := New(auth, profiles, nil)
	var mu sync.Mutex
	calls := 0
	r.Watch(func(Snapshot) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	r.Start()
	waitFor(t, r, inState(TutorResolved))

	r.Stop()
	r.Stop()
	assert.Equal(t, 1, auth.cancelled)
	assert.Equal(t, 0, profiles.live())

	mu.Lock()
	before := calls
	mu.Unlock()

	auth.emit(nil)
	profiles.change(entity.RoleTutor, "u1", tutor("u1"))
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, before, calls)
}

func TestResolver_WatchCancelIsIdempotent(t *testing.T) {
	r := New(&fakeAuth{}, newFakeProfiles(), nil)
	cancel := r.Watch(func(Snapshot) {})
	cancel()
	cancel()
	r.Stop()
}

func TestResolver_ObserverSeesSettledStates(t *testing.T) {
	profiles := newFakeProfiles()
	profiles.put(student("u1"))

	var mu sync.Mutex
	var states []State
	r := New(&fakeAuth{initial: &gateway.Identity{ID: "u1"}}, profiles, nil, WithObserver(func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	}))
	r.Start()
	defer r.Stop()

	waitFor(t, r, inState(StudentResolved))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StudentResolved}, states)
}

func TestResolve_OneShot(t *testing.T) {
	profiles := newFakeProfiles()
	profiles.put(student("s1"))
	profiles.put(tutor("t1"))
	ctx := context.Background()

	assert.Equal(t, LoggedOut, Resolve(ctx, profiles, nil).State)
	assert.Equal(t, TutorResolved, Resolve(ctx, profiles, &gateway.Identity{ID: "t1"}).State)
	assert.Equal(t, StudentResolved, Resolve(ctx, profiles, &gateway.Identity{ID: "s1"}).State)
	assert.Equal(t, Orphaned, Resolve(ctx, profiles, &gateway.Identity{ID: "x"}).State)

	profiles.failRole = entity.RoleStudent
	s := Resolve(ctx, profiles, &gateway.Identity{ID: "x"})
	assert.Equal(t, Errored, s.State)
	assert.False(t, s.Loading)
}
