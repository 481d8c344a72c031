package session

import (
	"tutorme.app/marketplace/internal/entity"
	"tutorme.app/marketplace/internal/gateway"
)

type State string

const (
	Unresolved      State = "unresolved"
	LoggedOut       State = "logged_out"
	ProbingTutor    State = "probing_tutor"
	ProbingStudent  State = "probing_student"
	TutorResolved   State = "tutor_resolved"
	StudentResolved State = "student_resolved"
	// Orphaned is an authenticated identity with no profile in either
	// partition.
	Orphaned State = "orphaned"
	Errored  State = "errored"
)

// Loading reports whether the state is still waiting on the gateway.
func (s State) Loading() bool {
	return s == Unresolved || s == ProbingTutor || s == ProbingStudent
}

// Resolved reports whether the identity has a role.
func (s State) Resolved() bool {
	return s == TutorResolved || s == StudentResolved
}

func resolvedState(role entity.Role) State {
	if role == entity.RoleTutor {
		return TutorResolved
	}
	return StudentResolved
}

// Snapshot is an immutable view of the resolver.
type Snapshot struct {
	State    State
	Identity *gateway.Identity
	Role     entity.Role
	Profile  entity.Profile
	Loading  bool
	Err      error
}

func newSnapshot(state State, identity *gateway.Identity, profile entity.Profile, err error) Snapshot {
	s := Snapshot{
		State:    state,
		Identity: identity,
		Profile:  profile,
		Loading:  state.Loading(),
		Err:      err,
	}
	if profile != nil && state.Resolved() {
		s.Role = profile.ProfileRole()
	}
	return s
}

// Dashboard is the page the snapshot's user belongs on, or "" without a role.
func (s Snapshot) Dashboard() string {
	if s.Role == "" {
		return ""
	}
	return s.Role.Dashboard()
}
