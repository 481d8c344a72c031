// Package gateway defines the boundary to the backend that owns persistence,
// identities and change notifications. The rest of the service only talks to
// the Store and Auth interfaces declared here.
package gateway

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// CancelFunc stops a subscription. Calling it more than once is a no-op.
type CancelFunc func()

// Identity is the authenticated principal issued by the auth gateway.
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// Credential is returned by a successful authentication.
type Credential struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Identity  Identity  `json:"identity"`
}

// Query filters the direct children of a path on one child field.
type Query struct {
	OrderByChild string
	EqualTo      any
}

// Snapshot is the value at a path at one point in time.
type Snapshot struct {
	Path   string
	Exists bool
	Value  json.RawMessage
}

// Decode unmarshals the snapshot into dst. A missing value leaves dst untouched.
func (s Snapshot) Decode(dst any) error {
	if !s.Exists || len(s.Value) == 0 {
		return nil
	}
	return json.Unmarshal(s.Value, dst)
}

// Store is path-addressed read/write/subscribe access to the hierarchical
// keyspace. Paths are slash separated, e.g. "users/tutors/{id}".
type Store interface {
	// Get decodes the value at path into dst and reports whether it existed.
	Get(ctx context.Context, path string, dst any) (bool, error)
	// GetQuery decodes the matching children of path into dst, which should
	// be a map keyed by child id. No match leaves dst empty.
	GetQuery(ctx context.Context, path string, q Query, dst any) error
	Set(ctx context.Context, path string, value any) error
	// Update merges fields into the object at path. Keys may be relative
	// child paths.
	Update(ctx context.Context, path string, fields map[string]any) error
	// Push stores value under a new generated child key and returns the key.
	Push(ctx context.Context, path string, value any) (string, error)
	Delete(ctx context.Context, path string) error
	// Subscribe delivers the current value of path (filtered by q when not
	// nil) immediately and again after every change below it. Errors are
	// passed to onError and the subscription stays live.
	Subscribe(path string, q *Query, onValue func(Snapshot), onError func(error)) CancelFunc
}

// Auth is the identity side of the gateway.
type Auth interface {
	CreateIdentity(ctx context.Context, email, password, displayName string) (*Identity, error)
	Authenticate(ctx context.Context, email, password string) (*Credential, error)
	// Deauthenticate revokes the session behind token.
	Deauthenticate(ctx context.Context, token string) error
	// ResetCredential sends a password reset code to email.
	ResetCredential(ctx context.Context, email string) error
	ConfirmReset(ctx context.Context, code, newPassword string) error
	Verify(ctx context.Context, token string) (*Identity, error)
	UpdateDisplayName(ctx context.Context, id, displayName string) error
	// OnAuthStateChanged reports the identity behind token now and whenever
	// the session changes; nil means logged out.
	OnAuthStateChanged(token string, fn func(*Identity)) CancelFunc
}

// CleanPath trims surrounding slashes so "a/b", "/a/b/" compare equal.
func CleanPath(p string) string {
	return strings.Trim(p, "/")
}

// Join builds a path from segments.
func Join(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s = CleanPath(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "/")
}

// Overlaps reports whether a change at one path can affect a value read at
// the other: equal paths, or one is an ancestor of the other.
func Overlaps(a, b string) bool {
	a, b = CleanPath(a), CleanPath(b)
	if a == "" || b == "" || a == b {
		return true
	}
	return strings.HasPrefix(a, b+"/") || strings.HasPrefix(b, a+"/")
}
