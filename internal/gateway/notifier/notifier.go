// Package notifier carries change and auth-state signals between processes.
package notifier

import (
	"context"
	"sync"

	"tutorme.app/marketplace/internal/gateway"
)

const (
	// TopicDataChanged carries the path of every successful store write.
	TopicDataChanged = "data_changes"
	// TopicAuthState carries the id of a session whose state changed.
	TopicAuthState = "auth_state"
)

type Notifier interface {
	Publish(ctx context.Context, topic, payload string) error
	// Subscribe calls fn for every payload published on topic until the
	// returned CancelFunc is called.
	Subscribe(ctx context.Context, topic string, fn func(payload string)) (gateway.CancelFunc, error)
}

// Local delivers within the process. Handlers run on the publisher's
// goroutine and must not block.
type Local struct {
	mu       sync.RWMutex
	next     uint64
	handlers map[string]map[uint64]func(string)
}

func NewLocal() *Local {
	return &Local{handlers: make(map[string]map[uint64]func(string))}
}

func (l *Local) Publish(_ context.Context, topic, payload string) error {
	l.mu.RLock()
	fns := make([]func(string), 0, len(l.handlers[topic]))
	for _, fn := range l.handlers[topic] {
		fns = append(fns, fn)
	}
	l.mu.RUnlock()

	for _, fn := range fns {
		fn(payload)
	}
	return nil
}

func (l *Local) Subscribe(_ context.Context, topic string, fn func(string)) (gateway.CancelFunc, error) {
	l.mu.Lock()
	l.next++
	id := l.next
	if l.handlers[topic] == nil {
		l.handlers[topic] = make(map[uint64]func(string))
	}
	l.handlers[topic][id] = fn
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.handlers[topic], id)
			if len(l.handlers[topic]) == 0 {
				delete(l.handlers, topic)
			}
			l.mu.Unlock()
		})
	}, nil
}
