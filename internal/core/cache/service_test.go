package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memStore is an in-memory Store for exercising the service without a
// live backend.
type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemStore() *memStore { return &memStore{data: map[string]string{}} }

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrMiss
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memStore) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// downStore simulates a backend outage: every command fails.
type downStore struct{}

func (downStore) Get(context.Context, string) (string, error) {
	return "", errors.New("connection refused")
}
func (downStore) Set(context.Context, string, string, time.Duration) error {
	return errors.New("connection refused")
}
func (downStore) Del(context.Context, string) error {
	return errors.New("connection refused")
}

type profile struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestKeysAreNamespaced(t *testing.T) {
	store := newMemStore()
	s := NewService(store, zap.NewNop(), "app")
	ctx := context.Background()

	s.SetString(ctx, "user:1", "x", 0)
	_, ok := store.data["app:user:1"]
	assert.True(t, ok)

	// already-prefixed keys are not prefixed twice
	v, ok := s.GetString(ctx, "app:user:1")
	assert.True(t, ok)
	assert.Equal(t, "x", v)
}

func TestGetSetRoundTrip(t *testing.T) {
	s := NewService(newMemStore(), zap.NewNop(), "app")
	ctx := context.Background()

	Set(ctx, s, "user:7", profile{ID: 7, Name: "a@b.c"}, time.Minute)
	got, ok := Get[profile](ctx, s, "user:7")
	require.True(t, ok)
	assert.Equal(t, 7, got.ID)
	assert.Equal(t, "a@b.c", got.Name)
}

func TestPoisonedEntryIsAMiss(t *testing.T) {
	store := newMemStore()
	s := NewService(store, zap.NewNop(), "app")
	ctx := context.Background()

	store.data["app:user:7"] = "{not json"
	_, ok := Get[profile](ctx, s, "user:7")
	assert.False(t, ok)
}

func TestGetWithCacheComputesOnceThenServesCached(t *testing.T) {
	s := NewService(newMemStore(), zap.NewNop(), "app")
	ctx := context.Background()

	calls := 0
	load := func(context.Context) (*profile, error) {
		calls++
		return &profile{ID: 7, Name: "a@b.c"}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := GetWithCache(ctx, s, "user:7", time.Minute, load)
		require.NoError(t, err)
		assert.Equal(t, 7, got.ID)
	}
	assert.Equal(t, 1, calls)

	s.Invalidate(ctx, "user:7")
	_, err := GetWithCache(ctx, s, "user:7", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestGetWithCachePropagatesComputeError(t *testing.T) {
	s := NewService(newMemStore(), zap.NewNop(), "app")

	wantErr := errors.New("source of truth unavailable")
	_, err := GetWithCache(context.Background(), s, "user:7", time.Minute,
		func(context.Context) (*profile, error) { return nil, wantErr })
	assert.ErrorIs(t, err, wantErr)
}

func TestBackendOutageDegradesToPassThrough(t *testing.T) {
	s := NewService(downStore{}, zap.NewNop(), "app")
	ctx := context.Background()

	calls := 0
	load := func(context.Context) (*profile, error) {
		calls++
		return &profile{ID: 7}, nil
	}

	// every call recomputes, none of them fails
	for i := 0; i < 2; i++ {
		got, err := GetWithCache(ctx, s, "user:7", time.Minute, load)
		require.NoError(t, err)
		assert.Equal(t, 7, got.ID)
	}
	assert.Equal(t, 2, calls)

	s.SetString(ctx, "k", "v", 0)
	s.Invalidate(ctx, "k")
	_, ok := s.GetString(ctx, "k")
	assert.False(t, ok)
}

func TestUnreachableRedisDegradesToMiss(t *testing.T) {
	store := NewRedis("127.0.0.1:1", "", 0)
	defer store.Close()
	s := NewService(store, zap.NewNop(), "app")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, ok := s.GetString(ctx, "user:1")
	assert.False(t, ok)
	s.SetString(ctx, "user:1", "x", time.Minute)
	s.Invalidate(ctx, "user:1")

	got, err := GetWithCache(ctx, s, "user:1", time.Minute,
		func(context.Context) (*profile, error) { return &profile{ID: 1}, nil })
	require.NoError(t, err)
	assert.Equal(t, 1, got.ID)
}
