package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func counterFetch(n *atomic.Int64) FetchFunc {
	return func(ctx context.Context) (Snapshot, error) {
		v := n.Load()
		raw, _ := json.Marshal(v)
		return Snapshot{Exists: true, Value: raw}, nil
	}
}

func TestHub_DeliversInitialValue(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	var n atomic.Int64
	n.Store(7)
	got := make(chan int64, 1)

	cancel := h.Subscribe("sessions", counterFetch(&n), func(s Snapshot) {
		var v int64
		assert.NoError(t, s.Decode(&v))
		got <- v
	}, nil)
	defer cancel()

	select {
	case v := <-got:
		assert.Equal(t, int64(7), v)
	case <-time.After(time.Second):
		t.Fatal("no initial delivery")
	}
}

func TestHub_NotifyOnlyOverlappingPaths(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	var n atomic.Int64
	sessions := make(chan struct{}, 10)
	subjects := make(chan struct{}, 10)

	c1 := h.Subscribe("sessions", counterFetch(&n), func(Snapshot) { sessions <- struct{}{} }, nil)
	defer c1()
	c2 := h.Subscribe("subjects", counterFetch(&n), func(Snapshot) { subjects <- struct{}{} }, nil)
	defer c2()

	<-sessions
	<-subjects

	h.Notify("sessions/abc")

	select {
	case <-sessions:
	case <-time.After(time.Second):
		t.Fatal("sessions subscription not notified")
	}
	select {
	case <-subjects:
		t.Fatal("subjects subscription should not be notified")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_CancelIsIdempotentAndStopsDelivery(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	var n atomic.Int64
	var calls atomic.Int64
	first := make(chan struct{})
	var once sync.Once

	cancel := h.Subscribe("a", counterFetch(&n), func(Snapshot) {
		calls.Add(1)
		once.Do(func() { close(first) })
	}, nil)
	<-first

	cancel()
	cancel()
	assert.Equal(t, 0, h.Len())

	before := calls.Load()
	h.Notify("a")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, calls.Load())
}

func TestHub_ErrorsKeepSubscriptionLive(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	var fail atomic.Bool
	fail.Store(true)
	errs := make(chan error, 4)
	values := make(chan struct{}, 4)

	cancel := h.Subscribe("a", func(context.Context) (Snapshot, error) {
		if fail.Load() {
			return Snapshot{}, ErrUnavailable
		}
		return Snapshot{Exists: true, Value: json.RawMessage(`1`)}, nil
	}, func(Snapshot) { values <- struct{}{} }, func(err error) { errs <- err })
	defer cancel()

	err := <-errs
	assert.True(t, errors.Is(err, ErrUnavailable))

	fail.Store(false)
	h.Notify("a")

	select {
	case <-values:
	case <-time.After(time.Second):
		t.Fatal("subscription did not recover after error")
	}
}

func TestHub_CloseDisablesSubscribe(t *testing.T) {
	h := NewHub(nil)
	h.Close()

	var n atomic.Int64
	cancel := h.Subscribe("a", counterFetch(&n), func(Snapshot) { t.Error("unexpected delivery") }, nil)
	cancel()
	assert.Equal(t, 0, h.Len())
}

func TestOverlaps(t *testing.T) {
	assert.True(t, Overlaps("sessions", "sessions/1"))
	assert.True(t, Overlaps("sessions/1/status", "sessions"))
	assert.True(t, Overlaps("/users/tutors/", "users/tutors"))
	assert.True(t, Overlaps("", "anything"))
	assert.False(t, Overlaps("sessions", "sessions2"))
	assert.False(t, Overlaps("users/tutors/a", "users/students/a"))
}

func TestAuthMessage(t *testing.T) {
	assert.Equal(t, "Invalid email or password", AuthMessage(NewAuthError(CodeInvalidCredential)))
	assert.Equal(t, "Something went wrong. Please try again", AuthMessage(errors.New("boom")))
	assert.True(t, IsAuthCode(NewAuthError(CodeTooManyRequests), CodeTooManyRequests))
	assert.Equal(t, 429, NewAuthError(CodeTooManyRequests).Status())
}

func TestFields_DropsID(t *testing.T) {
	fields, err := Fields(struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}{ID: "x", Name: "Algebra"})
	assert.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Algebra"}, fields)
	assert.Equal(t, []string{"a", "b"}, SortedKeys(map[string]int{"b": 1, "a": 2}))
}
