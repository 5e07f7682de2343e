package reliability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupStore abstracts "have I seen this message id before" so the SDS
// layer can run against either a process-local set or a shared store
// for multi-instance deployments. Implementations must be safe for
// concurrent use.
type DedupStore interface {
	// SeenBefore records id as seen and reports whether it had already
	// been recorded. ttl bounds how long the record is retained; 0
	// means retain indefinitely.
	SeenBefore(ctx context.Context, id string, ttl time.Duration) (bool, error)

	// Close releases any resources held by the store.
	Close() error
}

// MemoryDedupStore is an in-process DedupStore backed by a mutex-guarded
// map. It never expires entries on its own; callers wanting bounded
// memory should prefer RedisDedupStore.
type MemoryDedupStore struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

// NewMemoryDedupStore returns an empty in-process dedup store.
func NewMemoryDedupStore() *MemoryDedupStore {
	return &MemoryDedupStore{seen: make(map[string]time.Time)}
}

func (s *MemoryDedupStore) SeenBefore(_ context.Context, id string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expiry, ok := s.seen[id]; ok {
		if ttl == 0 || time.Now().Before(expiry) {
			return true, nil
		}
	}
	if ttl > 0 {
		s.seen[id] = time.Now().Add(ttl)
	} else {
		s.seen[id] = time.Time{}
	}
	return false, nil
}

func (s *MemoryDedupStore) Close() error { return nil }

// RedisDedupStore implements DedupStore on top of Redis, suitable for
// a fleet of node processes sharing one dedup horizon.
type RedisDedupStore struct {
	client *redis.Client
	prefix string
}

// RedisDedupConfig configures a RedisDedupStore.
type RedisDedupConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedisDedupStore dials Redis and verifies connectivity.
func NewRedisDedupStore(cfg RedisDedupConfig) (*RedisDedupStore, error) {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "waku-a2a:dedup:"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisDedupStore{client: client, prefix: prefix}, nil
}

// NewRedisDedupStoreFromClient builds a store from an existing client,
// useful for testing against miniredis.
func NewRedisDedupStoreFromClient(client *redis.Client, prefix string) *RedisDedupStore {
	if prefix == "" {
		prefix = "waku-a2a:dedup:"
	}
	return &RedisDedupStore{client: client, prefix: prefix}
}

func (s *RedisDedupStore) SeenBefore(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	key := s.prefix + id
	ok, err := s.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup setnx: %w", err)
	}
	// SetNX returns true when the key was newly set, i.e. not seen before.
	return !ok, nil
}

func (s *RedisDedupStore) Close() error {
	return s.client.Close()
}

// Ping verifies the Redis connection is reachable, for wiring into a
// health check.
func (s *RedisDedupStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
