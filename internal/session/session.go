// Package session keeps the signed-in user profile under an opaque session id.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"posgo/backend/internal/cache"
	"posgo/backend/internal/domain"
)

var ErrUnknownSession = errors.New("unknown session")

type Store struct {
	cache cache.Cache
	ttl   time.Duration
}

func NewStore(c cache.Cache, ttl time.Duration) *Store {
	return &Store{cache: c, ttl: ttl}
}

func key(sessionID string) string {
	return "session:" + sessionID
}

func (s *Store) Get(ctx context.Context, sessionID string) (domain.UserProfile, error) {
	if sessionID == "" {
		return domain.UserProfile{}, ErrUnknownSession
	}
	profile, ok, err := cache.GetJSON[domain.UserProfile](ctx, s.cache, key(sessionID))
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return domain.UserProfile{}, ErrUnknownSession
	}
	return profile, nil
}

func (s *Store) Set(ctx context.Context, sessionID string, profile domain.UserProfile) error {
	if err := cache.SetJSON(ctx, s.cache, key(sessionID), profile, s.ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context, sessionID string) error {
	return s.cache.Delete(ctx, key(sessionID))
}
