// Package cache provides a cache-aside service over a remote key/value
// backend. Cache failures never propagate: reads degrade to a miss and
// writes to a no-op, so an outage cannot take down the path it accelerates.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
)

// ErrMiss is returned by a Store when the key is absent.
var ErrMiss = errors.New("cache: miss")

// Store is the minimal port onto the remote backend. Implementations must
// be safe for concurrent use; each call is a single atomic remote command.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type Service struct {
	store  Store
	log    *zap.Logger
	prefix string
}

// NewService wraps store. Every key is transparently prefixed with the
// project namespace so callers share one keyspace without collisions
// against other tenants of the same backend.
func NewService(store Store, log *zap.Logger, prefix string) *Service {
	return &Service{store: store, log: log, prefix: prefix}
}

func (s *Service) fixKey(key string) string {
	p := s.prefix + ":"
	if len(key) >= len(p) && key[:len(p)] == p {
		return key
	}
	return p + key
}

// GetString fetches the raw value. Connectivity failures are logged and
// reported as a miss.
func (s *Service) GetString(ctx context.Context, key string) (string, bool) {
	v, err := s.store.Get(ctx, s.fixKey(key))
	if errors.Is(err, ErrMiss) {
		return "", false
	}
	if err != nil {
		s.log.Error("cache get failed", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return v, true
}

// SetString stores value best-effort. A ttl of zero means no expiration.
func (s *Service) SetString(ctx context.Context, key, value string, ttl time.Duration) {
	if err := s.store.Set(ctx, s.fixKey(key), value, ttl); err != nil {
		s.log.Error("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate deletes the key best-effort.
func (s *Service) Invalidate(ctx context.Context, key string) {
	if err := s.store.Del(ctx, s.fixKey(key)); err != nil {
		s.log.Error("cache invalidate failed", zap.String("key", key), zap.Error(err))
	}
}

// Get fetches and deserializes the value under key. An entry that fails to
// deserialize is treated as a miss so a poisoned key cannot break readers;
// GetWithCache will overwrite it from the source of truth.
func Get[T any](ctx context.Context, s *Service, key string) (*T, bool) {
	raw, ok := s.GetString(ctx, key)
	if !ok || raw == "" {
		return nil, false
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		s.log.Warn("cache entry not deserializable, treating as miss",
			zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &v, true
}

// Set serializes v and stores it best-effort.
func Set[T any](ctx context.Context, s *Service, key string, v T, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Warn("cache value not serializable", zap.String("key", key), zap.Error(err))
		return
	}
	s.SetString(ctx, key, string(b), ttl)
}

// GetWithCache returns the cached value under key, or computes it, writes
// it back best-effort and returns it. No single-flight protection:
// concurrent misses for the same key each invoke compute independently.
func GetWithCache[T any](ctx context.Context, s *Service, key string, ttl time.Duration,
	compute func(ctx context.Context) (*T, error),
) (*T, error) {
	if v, ok := Get[T](ctx, s, key); ok {
		return v, nil
	}
	v, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	if v != nil {
		Set(ctx, s, key, *v, ttl)
	}
	return v, nil
}
