package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StepStore persists memoized step results keyed by run and step name.
type StepStore interface {
	LoadStep(ctx context.Context, runID, step string) ([]byte, bool, error)
	SaveStep(ctx context.Context, runID, step string, payload []byte) error
}

// RedisStepStore keeps step results in Redis so that a redelivered event
// handled by another worker still sees completed steps.
type RedisStepStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisStepStore builds a store. A zero ttl keeps results forever.
func NewRedisStepStore(client redis.Cmdable, prefix string, ttl time.Duration) *RedisStepStore {
	if prefix == "" {
		prefix = "taskpilot:step"
	}
	return &RedisStepStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStepStore) key(runID, step string) string {
	return s.prefix + ":" + runID + ":" + step
}

// LoadStep returns the stored result, if any.
func (s *RedisStepStore) LoadStep(ctx context.Context, runID, step string) ([]byte, bool, error) {
	payload, err := s.client.Get(ctx, s.key(runID, step)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

// SaveStep stores a step result.
func (s *RedisStepStore) SaveStep(ctx context.Context, runID, step string, payload []byte) error {
	return s.client.Set(ctx, s.key(runID, step), payload, s.ttl).Err()
}

// MemoryStepStore keeps step results in process memory.
type MemoryStepStore struct {
	mu    sync.RWMutex
	steps map[string][]byte
}

// NewMemoryStepStore returns an empty store.
func NewMemoryStepStore() *MemoryStepStore {
	return &MemoryStepStore{steps: make(map[string][]byte)}
}

func (s *MemoryStepStore) LoadStep(_ context.Context, runID, step string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload, ok := s.steps[runID+":"+step]
	return payload, ok, nil
}

func (s *MemoryStepStore) SaveStep(_ context.Context, runID, step string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps[runID+":"+step] = append([]byte(nil), payload...)
	return nil
}
