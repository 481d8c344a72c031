// Package memdb is an in-process realtime tree store. It backs development
// runs and tests with the same semantics as the hosted database: JSON values
// addressed by slash paths, child queries and live subscriptions.
package memdb

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tutorme.app/marketplace/internal/gateway"
)

type Store struct {
	mu   sync.RWMutex
	root map[string]any
	fail error

	hub *gateway.Hub
}

var _ gateway.Store = (*Store)(nil)

func New(log *zap.Logger) *Store {
	return &Store{
		root: make(map[string]any),
		hub:  gateway.NewHub(log),
	}
}

// Close cancels every live subscription.
func (s *Store) Close() {
	s.hub.Close()
}

// SetFailure makes every operation fail with err until called with nil.
func (s *Store) SetFailure(err error) {
	s.mu.Lock()
	s.fail = err
	s.mu.Unlock()
}

func (s *Store) Get(ctx context.Context, path string, dst any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fail != nil {
		return false, s.fail
	}

	v, ok := s.lookup(path)
	if !ok {
		return false, nil
	}
	return true, decode(v, dst)
}

func (s *Store) GetQuery(ctx context.Context, path string, q gateway.Query, dst any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fail != nil {
		return s.fail
	}

	matches, err := s.query(path, q)
	if err != nil {
		return err
	}
	return decode(matches, dst)
}

func (s *Store) Set(ctx context.Context, path string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v, err := normalize(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.fail != nil {
		s.mu.Unlock()
		return s.fail
	}
	err = s.set(path, v)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.hub.Notify(path)
	return nil
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	values := make(map[string]any, len(fields))
	for k, f := range fields {
		v, err := normalize(f)
		if err != nil {
			return fmt.Errorf("field %s: %w", k, err)
		}
		values[k] = v
	}

	s.mu.Lock()
	if s.fail != nil {
		s.mu.Unlock()
		return s.fail
	}
	// Apply to a copy so a failing field leaves the tree untouched.
	backup := deepCopy(s.root).(map[string]any)
	for k, v := range values {
		if err := s.set(gateway.Join(path, k), v); err != nil {
			s.root = backup
			s.mu.Unlock()
			return err
		}
	}
	s.mu.Unlock()

	s.hub.Notify(path)
	return nil
}

func (s *Store) Push(ctx context.Context, path string, value any) (string, error) {
	key := uuid.Must(uuid.NewV7()).String()
	if err := s.Set(ctx, gateway.Join(path, key), value); err != nil {
		return "", err
	}
	return key, nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	return s.Set(ctx, path, nil)
}

func (s *Store) Subscribe(path string, q *gateway.Query, onValue func(gateway.Snapshot), onError func(error)) gateway.CancelFunc {
	path = gateway.CleanPath(path)
	fetch := func(ctx context.Context) (gateway.Snapshot, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		if s.fail != nil {
			return gateway.Snapshot{}, s.fail
		}

		var (
			v  any
			ok bool
		)
		if q != nil {
			m, err := s.query(path, *q)
			if err != nil {
				return gateway.Snapshot{}, err
			}
			v, ok = m, len(m) > 0
		} else {
			v, ok = s.lookup(path)
		}
		if !ok {
			return gateway.Snapshot{Path: path}, nil
		}

		raw, err := json.Marshal(v)
		if err != nil {
			return gateway.Snapshot{}, err
		}
		return gateway.Snapshot{Path: path, Exists: true, Value: raw}, nil
	}
	return s.hub.Subscribe(path, fetch, onValue, onError)
}

func segments(path string) []string {
	path = gateway.CleanPath(path)
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func (s *Store) lookup(path string) (any, bool) {
	var cur any = s.root
	for _, seg := range segments(path) {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[seg]; !ok {
			return nil, false
		}
	}
	if m, ok := cur.(map[string]any); ok && len(m) == 0 {
		return nil, false
	}
	return cur, true
}

func (s *Store) query(path string, q gateway.Query) (map[string]any, error) {
	want, err := normalize(q.EqualTo)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any)
	v, ok := s.lookup(path)
	if !ok {
		return out, nil
	}
	children, ok := v.(map[string]any)
	if !ok {
		return out, nil
	}
	for key, child := range children {
		fields, ok := child.(map[string]any)
		if !ok {
			continue
		}
		if reflect.DeepEqual(fields[q.OrderByChild], want) {
			out[key] = child
		}
	}
	return out, nil
}

func (s *Store) set(path string, value any) error {
	segs := segments(path)
	if m, ok := value.(map[string]any); ok && len(m) == 0 {
		value = nil
	}

	if len(segs) == 0 {
		if value == nil {
			s.root = make(map[string]any)
			return nil
		}
		m, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("root value must be an object")
		}
		s.root = m
		return nil
	}

	if value == nil {
		s.remove(segs)
		return nil
	}

	cur := s.root
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[seg] = next
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = value
	return nil
}

// remove deletes the node and prunes parents left empty.
func (s *Store) remove(segs []string) {
	parents := make([]map[string]any, 0, len(segs))
	cur := s.root
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			return
		}
		parents = append(parents, cur)
		cur = next
	}
	delete(cur, segs[len(segs)-1])

	for i := len(parents) - 1; i >= 0 && len(cur) == 0; i-- {
		delete(parents[i], segs[i])
		cur = parents[i]
	}
}

func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("value is not JSON encodable: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decode(v any, dst any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, c := range t {
			m[k] = deepCopy(c)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, c := range t {
			s[i] = deepCopy(c)
		}
		return s
	default:
		return v
	}
}
