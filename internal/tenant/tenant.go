// Package tenant maps an authenticated user to the store id that scopes all
// of their data.
package tenant

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"posgo/backend/internal/cache"
	"posgo/backend/internal/domain"
)

type ProfileLookup interface {
	ProfileStoreID(ctx context.Context, userID string) (string, error)
}

type Resolver struct {
	lookup   ProfileLookup
	cache    cache.Cache
	ttl      time.Duration
	fallback string
	logger   *zap.Logger
}

// NewResolver returns a resolver that falls back to fallbackStoreID for users
// without an assigned store. An empty fallback makes such users unresolvable.
func NewResolver(lookup ProfileLookup, c cache.Cache, ttl time.Duration, fallbackStoreID string, logger *zap.Logger) *Resolver {
	if c == nil {
		c = cache.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		lookup:   lookup,
		cache:    c,
		ttl:      ttl,
		fallback: fallbackStoreID,
		logger:   logger.Named("tenant"),
	}
}

func (r *Resolver) StoreID(ctx context.Context, profile domain.UserProfile) (string, error) {
	if profile.StoreID != "" {
		return profile.StoreID, nil
	}

	key := "tenant:" + profile.ID
	if cached, ok, err := r.cache.Get(ctx, key); err != nil {
		r.logger.Warn("tenant cache read failed", zap.String("user_id", profile.ID), zap.Error(err))
	} else if ok && len(cached) > 0 {
		return string(cached), nil
	}

	storeID, err := r.lookup.ProfileStoreID(ctx, profile.ID)
	if err != nil {
		return "", fmt.Errorf("resolve store for %s: %w", profile.ID, err)
	}
	if storeID == "" {
		storeID = r.fallback
	}
	if storeID == "" {
		return "", fmt.Errorf("%w: user %s has no store", domain.ErrForbidden, profile.ID)
	}

	if err := r.cache.Set(ctx, key, []byte(storeID), r.ttl); err != nil {
		r.logger.Warn("tenant cache write failed", zap.String("user_id", profile.ID), zap.Error(err))
	}
	return storeID, nil
}

// Forget drops the cached store id of a user.
func (r *Resolver) Forget(ctx context.Context, userID string) error {
	return r.cache.Delete(ctx, "tenant:"+userID)
}
