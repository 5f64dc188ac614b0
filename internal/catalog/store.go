package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/femibol/propel-command-center/internal/integrations/monday"
)

const redisKey = "propel:catalog"

// Entry is a stored catalog. Stores keep entries past the TTL so a stale
// copy can be served when a refresh fails.
type Entry struct {
	Catalog  monday.Catalog `json:"catalog"`
	StoredAt time.Time      `json:"storedAt"`
}

type Store interface {
	Load(ctx context.Context) (Entry, bool, error)
	Save(ctx context.Context, e Entry) error
	Clear(ctx context.Context) error
}

type memoryStore struct {
	mu sync.RWMutex
	e  *Entry
}

func NewMemoryStore() Store {
	return &memoryStore{}
}

func (s *memoryStore) Load(context.Context) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.e == nil {
		return Entry{}, false, nil
	}
	return *s.e, true, nil
}

func (s *memoryStore) Save(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.e = &e
	return nil
}

func (s *memoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.e = nil
	return nil
}

// redisStore shares the catalog between processes.
type redisStore struct {
	client *redis.Client
	maxAge time.Duration
}

// NewRedisStore keeps entries for maxAge; zero keeps them until cleared.
func NewRedisStore(client *redis.Client, maxAge time.Duration) Store {
	return &redisStore{client: client, maxAge: maxAge}
}

func (s *redisStore) Load(ctx context.Context) (Entry, bool, error) {
	raw, err := s.client.Get(ctx, redisKey).Result()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("read catalog: %w", err)
	}
	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return Entry{}, false, fmt.Errorf("decode catalog: %w", err)
	}
	return e, true, nil
}

func (s *redisStore) Save(ctx context.Context, e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	if err := s.client.Set(ctx, redisKey, raw, s.maxAge).Err(); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	return nil
}

func (s *redisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, redisKey).Err(); err != nil {
		return fmt.Errorf("clear catalog: %w", err)
	}
	return nil
}
