package cache

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	ri "github.com/redis/go-redis/v9"

	"PolicyWizard/internal/wizard"
	"PolicyWizard/storage/redis"
)

const (
	wizardPrefix = "wizard"

	lockTTL = 30 * time.Second
)

// ErrSessionNotFound 会话不存在或已过期
var ErrSessionNotFound = errors.New("wizard session not found")

// WizardStore 保存每个会话的向导状态
type WizardStore interface {
	Load(ctx context.Context, sessionID string) (*wizard.State, error)
	Save(ctx context.Context, sessionID string, state *wizard.State) error
	Delete(ctx context.Context, sessionID string) error
	// Lock 返回的 unlock 必须调用
	Lock(ctx context.Context, sessionID string) (unlock func(), err error)
}

// RedisWizardStore 状态以 JSON 存入 Redis，每次写入刷新 TTL
type RedisWizardStore struct {
	ttl time.Duration
}

func NewRedisWizardStore(ttl time.Duration) *RedisWizardStore {
	return &RedisWizardStore{ttl: ttl}
}

func (s *RedisWizardStore) Load(ctx context.Context, sessionID string) (*wizard.State, error) {
	data, err := redis.Client().Get(ctx, redis.Key(wizardPrefix, sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, ri.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load wizard state: %w", err)
	}

	return decodeState(data)
}

func (s *RedisWizardStore) Save(ctx context.Context, sessionID string, state *wizard.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal wizard state: %w", err)
	}

	if err := redis.Client().Set(ctx, redis.Key(wizardPrefix, sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save wizard state: %w", err)
	}
	return nil
}

func (s *RedisWizardStore) Delete(ctx context.Context, sessionID string) error {
	return redis.Client().Del(ctx, redis.Key(wizardPrefix, sessionID)).Err()
}

func (s *RedisWizardStore) Lock(ctx context.Context, sessionID string) (func(), error) {
	return Acquire(ctx, wizardPrefix+":"+sessionID, lockTTL)
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

const lockStripes = 64

// MemoryWizardStore 单进程内存存储，保存序列化后的副本，调用方拿到的状态互不共享
type MemoryWizardStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]memoryEntry

	locks [lockStripes]chan struct{}
}

func NewMemoryWizardStore(ttl time.Duration) *MemoryWizardStore {
	s := &MemoryWizardStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
	for i := range s.locks {
		s.locks[i] = make(chan struct{}, 1)
	}
	return s
}

func (s *MemoryWizardStore) Load(ctx context.Context, sessionID string) (*wizard.State, error) {
	s.mu.Lock()
	entry, ok := s.entries[sessionID]
	if ok && s.ttl > 0 && s.now().After(entry.expiresAt) {
		delete(s.entries, sessionID)
		ok = false
	}
	s.mu.Unlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	return decodeState(entry.data)
}

func (s *MemoryWizardStore) Save(ctx context.Context, sessionID string, state *wizard.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal wizard state: %w", err)
	}

	s.mu.Lock()
	s.entries[sessionID] = memoryEntry{data: data, expiresAt: s.now().Add(s.ttl)}
	s.mu.Unlock()
	return nil
}

func (s *MemoryWizardStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.entries, sessionID)
	s.mu.Unlock()
	return nil
}

func (s *MemoryWizardStore) Lock(ctx context.Context, sessionID string) (func(), error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	slot := s.locks[h.Sum32()%lockStripes]

	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	case <-ctx.Done():
		return nil, errors.Join(ErrLockTimeout, ctx.Err())
	}
}

func decodeState(data []byte) (*wizard.State, error) {
	state := wizard.NewState()
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wizard state: %w", err)
	}
	state.Normalize()
	return state, nil
}
