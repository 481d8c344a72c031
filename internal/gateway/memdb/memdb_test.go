package memdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorme.app/marketplace/internal/gateway"
)

type session struct {
	TutorID   string `json:"tutorId"`
	StudentID string `json:"studentId"`
	Status    string `json:"status"`
}

func TestStore_SetGet(t *testing.T) {
	s := New(nil)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "sessions/a", session{TutorID: "t1", StudentID: "s1", Status: "pending"}))

	var got session
	ok, err := s.Get(ctx, "sessions/a", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "pending", got.Status)

	ok, err = s.Get(ctx, "sessions/missing", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_UpdateMerges(t *testing.T) {
	s := New(nil)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "sessions/a", session{TutorID: "t1", StudentID: "s1", Status: "pending"}))
	require.NoError(t, s.Update(ctx, "sessions/a", map[string]any{"status": "cancelled"}))

	var got session
	_, err := s.Get(ctx, "sessions/a", &got)
	require.NoError(t, err)
	assert.Equal(t, session{TutorID: "t1", StudentID: "s1", Status: "cancelled"}, got)
}

func TestStore_UpdateRelativePaths(t *testing.T) {
	s := New(nil)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, "users/tutors/t1", map[string]any{
		"availability/monday": []string{"09:00"},
		"bio":                 "hello",
	}))

	var got map[string]any
	ok, err := s.Get(ctx, "users/tutors/t1", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", got["bio"])
	assert.Equal(t, map[string]any{"monday": []any{"09:00"}}, got["availability"])
}

func TestStore_QueryFiltersByChild(t *testing.T) {
	s := New(nil)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "sessions/a", session{TutorID: "t1", StudentID: "s1"}))
	require.NoError(t, s.Set(ctx, "sessions/b", session{TutorID: "t2", StudentID: "s1"}))
	require.NoError(t, s.Set(ctx, "sessions/c", session{TutorID: "t1", StudentID: "s2"}))

	var byTutor map[string]session
	require.NoError(t, s.GetQuery(ctx, "sessions", gateway.Query{OrderByChild: "tutorId", EqualTo: "t1"}, &byTutor))
	assert.Len(t, byTutor, 2)
	assert.Contains(t, byTutor, "a")
	assert.Contains(t, byTutor, "c")

	var none map[string]session
	require.NoError(t, s.GetQuery(ctx, "sessions", gateway.Query{OrderByChild: "tutorId", EqualTo: "nobody"}, &none))
	assert.Empty(t, none)
}

func TestStore_DeletePrunesEmptyParents(t *testing.T) {
	s := New(nil)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "resources/math/notes/r1", map[string]any{"title": "Algebra"}))
	require.NoError(t, s.Delete(ctx, "resources/math/notes/r1"))

	var v any
	ok, err := s.Get(ctx, "resources", &v)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_PushGeneratesKeys(t *testing.T) {
	s := New(nil)
	defer s.Close()
	ctx := context.Background()

	k1, err := s.Push(ctx, "reviews", map[string]any{"rating": 5})
	require.NoError(t, err)
	k2, err := s.Push(ctx, "reviews", map[string]any{"rating": 4})
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)

	var all map[string]map[string]any
	_, err = s.Get(ctx, "reviews", &all)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStore_SubscribeSeesChanges(t *testing.T) {
	s := New(nil)
	defer s.Close()
	ctx := context.Background()

	updates := make(chan map[string]session, 8)
	cancel := s.Subscribe("sessions", &gateway.Query{OrderByChild: "studentId", EqualTo: "s1"}, func(snap gateway.Snapshot) {
		m := map[string]session{}
		assert.NoError(t, snap.Decode(&m))
		updates <- m
	}, nil)
	defer cancel()

	first := receive(t, updates)
	assert.Empty(t, first)

	require.NoError(t, s.Set(ctx, "sessions/a", session{StudentID: "s1", Status: "pending"}))
	for {
		m := receive(t, updates)
		if len(m) == 1 {
			assert.Equal(t, "pending", m["a"].Status)
			break
		}
	}
}

func TestStore_Failure(t *testing.T) {
	s := New(nil)
	defer s.Close()
	ctx := context.Background()

	s.SetFailure(gateway.ErrUnavailable)
	_, err := s.Get(ctx, "x", &struct{}{})
	assert.True(t, errors.Is(err, gateway.ErrUnavailable))
	assert.True(t, errors.Is(s.Set(ctx, "x", 1), gateway.ErrUnavailable))

	s.SetFailure(nil)
	assert.NoError(t, s.Set(ctx, "x", 1))
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscription")
	}
	var zero T
	return zero
}
