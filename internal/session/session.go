// Package session keeps signed-in users' server-side state: who they are and
// the backend token their requests are made with.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/ec-storefront/internal/backend"
	"github.com/example/ec-storefront/internal/infrastructure/store"
)

const keyPrefix = "session:"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrUserRequired    = errors.New("session requires a signed-in user")
)

type Session struct {
	ID        string       `json:"id"`
	User      backend.User `json:"user"`
	CreatedAt time.Time    `json:"createdAt"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

func (s Session) BackendToken() string { return s.User.Token }

// Store persists sessions in a KeyValueStore under "session:<id>".
type Store struct {
	cache *store.JSONCache
	ttl   time.Duration
	now   func() time.Time
}

func NewStore(kv store.KeyValueStore, ttl time.Duration) *Store {
	return &Store{
		cache: store.NewJSONCache(kv, keyPrefix, ttl),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (s *Store) TTL() time.Duration { return s.ttl }

// Create starts a session for user.
func (s *Store) Create(ctx context.Context, user backend.User) (Session, error) {
	if user.ID == 0 {
		return Session{}, ErrUserRequired
	}
	now := s.now().UTC()
	sess := Session{
		ID:        uuid.NewString(),
		User:      user,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.cache.Set(ctx, sess.ID, sess); err != nil {
		return Session{}, fmt.Errorf("failed to save session: %w", err)
	}
	return sess, nil
}

// Get loads a live session. Expired entries the backing store has not yet
// evicted are treated as missing.
func (s *Store) Get(ctx context.Context, id string) (Session, error) {
	if id == "" {
		return Session{}, ErrSessionNotFound
	}
	var sess Session
	found, err := s.cache.Get(ctx, id, &sess)
	if err != nil {
		return Session{}, fmt.Errorf("failed to load session: %w", err)
	}
	if !found || !s.now().Before(sess.ExpiresAt) {
		return Session{}, ErrSessionNotFound
	}
	return sess, nil
}

// UpdateUser replaces the session's user details. The backend token and the
// session's expiry are kept.
func (s *Store) UpdateUser(ctx context.Context, id string, user backend.User) (Session, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if user.ID != sess.User.ID {
		return Session{}, ErrUserRequired
	}
	if user.Token == "" {
		user.Token = sess.User.Token
	}
	sess.User = user
	if err := s.cache.Set(ctx, sess.ID, sess); err != nil {
		return Session{}, fmt.Errorf("failed to save session: %w", err)
	}
	return sess, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := s.cache.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
