// Package firebasedb implements gateway.Store on the Firebase Realtime
// Database. The admin SDK has no listener API, so successful writes publish
// their path through a notifier and subscriptions re-read on every signal.
package firebasedb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"firebase.google.com/go/v4/errorutils"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"tutorme.app/marketplace/internal/gateway"
	"tutorme.app/marketplace/internal/gateway/notifier"
)

type Config struct {
	DatabaseURL     string
	CredentialsPath string
}

type Store struct {
	client   *db.Client
	notifier notifier.Notifier
	hub      *gateway.Hub
	stopFeed gateway.CancelFunc
	log      *zap.Logger
}

var _ gateway.Store = (*Store)(nil)

func New(ctx context.Context, cfg Config, n notifier.Notifier, log *zap.Logger) (*Store, error) {
	var opts []option.ClientOption
	if cfg.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsPath))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{DatabaseURL: cfg.DatabaseURL}, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting database client: %w", err)
	}

	s := &Store{
		client:   client,
		notifier: n,
		hub:      gateway.NewHub(log),
		log:      log,
	}

	stop, err := n.Subscribe(ctx, notifier.TopicDataChanged, s.hub.Notify)
	if err != nil {
		return nil, err
	}
	s.stopFeed = stop
	return s, nil
}

func (s *Store) Close() {
	s.stopFeed()
	s.hub.Close()
}

func (s *Store) Get(ctx context.Context, path string, dst any) (bool, error) {
	var raw json.RawMessage
	if err := s.client.NewRef(path).Get(ctx, &raw); err != nil {
		return false, wrap(err)
	}
	if isNull(raw) {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (s *Store) GetQuery(ctx context.Context, path string, q gateway.Query, dst any) error {
	var raw json.RawMessage
	query := s.client.NewRef(path).OrderByChild(q.OrderByChild).EqualTo(q.EqualTo)
	if err := query.Get(ctx, &raw); err != nil {
		return wrap(err)
	}
	if isNull(raw) {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func (s *Store) Set(ctx context.Context, path string, value any) error {
	if err := s.client.NewRef(path).Set(ctx, value); err != nil {
		return wrap(err)
	}
	s.changed(ctx, path)
	return nil
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	if err := s.client.NewRef(path).Update(ctx, fields); err != nil {
		return wrap(err)
	}
	s.changed(ctx, path)
	return nil
}

func (s *Store) Push(ctx context.Context, path string, value any) (string, error) {
	ref, err := s.client.NewRef(path).Push(ctx, value)
	if err != nil {
		return "", wrap(err)
	}
	s.changed(ctx, ref.Path)
	return ref.Key, nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	if err := s.client.NewRef(path).Delete(ctx); err != nil {
		return wrap(err)
	}
	s.changed(ctx, path)
	return nil
}

func (s *Store) Subscribe(path string, q *gateway.Query, onValue func(gateway.Snapshot), onError func(error)) gateway.CancelFunc {
	path = gateway.CleanPath(path)
	fetch := func(ctx context.Context) (gateway.Snapshot, error) {
		var raw json.RawMessage
		var err error
		if q != nil {
			err = s.client.NewRef(path).OrderByChild(q.OrderByChild).EqualTo(q.EqualTo).Get(ctx, &raw)
		} else {
			err = s.client.NewRef(path).Get(ctx, &raw)
		}
		if err != nil {
			return gateway.Snapshot{}, wrap(err)
		}
		if isNull(raw) || bytes.Equal(bytes.TrimSpace(raw), []byte("{}")) {
			return gateway.Snapshot{Path: path}, nil
		}
		return gateway.Snapshot{Path: path, Exists: true, Value: raw}, nil
	}
	return s.hub.Subscribe(path, fetch, onValue, onError)
}

// changed publishes the written path. A lost signal only delays listeners
// until the next write, so failures are logged.
func (s *Store) changed(ctx context.Context, path string) {
	if err := s.notifier.Publish(ctx, notifier.TopicDataChanged, gateway.CleanPath(path)); err != nil {
		s.log.Warn("failed to publish change", zap.String("path", path), zap.Error(err))
	}
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func wrap(err error) error {
	if errorutils.IsPermissionDenied(err) || errorutils.IsUnauthenticated(err) {
		return fmt.Errorf("%w: %v", gateway.ErrPermissionDenied, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", gateway.ErrUnavailable, err)
}
