package gateway

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// FetchFunc reads the current value a subscription is interested in.
type FetchFunc func(ctx context.Context) (Snapshot, error)

// Hub fans change signals out to subscriptions. Every subscription owns one
// goroutine that re-reads the full value on start and after each signal, so
// deliveries for one subscription are ordered and always carry current state.
// Signals that arrive while a read is pending are folded into the next read.
type Hub struct {
	mu     sync.Mutex
	subs   map[*subscription]struct{}
	closed bool
	log    *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		subs: make(map[*subscription]struct{}),
		log:  log,
	}
}

type subscription struct {
	path    string
	fetch   FetchFunc
	onValue func(Snapshot)
	onError func(error)

	ctx    context.Context
	cancel context.CancelFunc
	dirty  chan struct{}
	done   chan struct{}

	deliverMu sync.Mutex
	cancelled bool
	once      sync.Once
}

// Subscribe starts a subscription on path. The returned CancelFunc waits for
// a delivery in progress to return, after which no callback runs again.
// Callbacks must not call their own CancelFunc.
func (h *Hub) Subscribe(path string, fetch FetchFunc, onValue func(Snapshot), onError func(error)) CancelFunc {
	ctx, cancel := context.WithCancel(context.Background())
	s := &subscription{
		path:    CleanPath(path),
		fetch:   fetch,
		onValue: onValue,
		onError: onError,
		ctx:     ctx,
		cancel:  cancel,
		dirty:   make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	s.dirty <- struct{}{}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		cancel()
		close(s.done)
		return func() {}
	}
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	go h.run(s)

	return func() {
		s.once.Do(func() {
			h.mu.Lock()
			delete(h.subs, s)
			h.mu.Unlock()

			s.cancel()
			s.deliverMu.Lock()
			s.cancelled = true
			s.deliverMu.Unlock()
		})
	}
}

// Notify marks every subscription whose path overlaps path as dirty.
func (h *Hub) Notify(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		if !Overlaps(s.path, path) {
			continue
		}
		select {
		case s.dirty <- struct{}{}:
		default:
		}
	}
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close cancels every subscription. Later Subscribe calls return a no-op.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := h.subs
	h.subs = make(map[*subscription]struct{})
	h.mu.Unlock()

	for s := range subs {
		s.cancel()
		s.deliverMu.Lock()
		s.cancelled = true
		s.deliverMu.Unlock()
	}
}

func (h *Hub) run(s *subscription) {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.dirty:
		}

		snap, err := s.fetch(s.ctx)
		if s.ctx.Err() != nil {
			return
		}
		h.deliver(s, snap, err)
	}
}

func (h *Hub) deliver(s *subscription, snap Snapshot, err error) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if s.cancelled {
		return
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		h.log.Warn("subscription read failed", zap.String("path", s.path), zap.Error(err))
		if s.onError != nil {
			s.onError(err)
		}
		return
	}
	if s.onValue != nil {
		s.onValue(snap)
	}
}
