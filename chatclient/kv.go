package chatclient

import (
	"context"
	"sync"
)

// KVStore persists unread counters and poll cursors across restarts. IncrBy
// must be an atomic read-modify-write so a delivery overlapping a mark-read
// reset never loses an update.
type KVStore interface {
	Get(ctx context.Context, key string) (int64, error)
	Set(ctx context.Context, key string, value int64) error
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
}

// MemoryKV is a process-local KVStore, for tests and throwaway sessions.
type MemoryKV struct {
	mu     sync.Mutex
	values map[string]int64
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string]int64)}
}

func (m *MemoryKV) Get(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key], nil
}

func (m *MemoryKV) Set(ctx context.Context, key string, value int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryKV) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] += delta
	return m.values[key], nil
}

var _ KVStore = (*MemoryKV)(nil)

func unreadKey(eventID, userID string) string {
	return "unread:" + eventID + ":" + userID
}

func cursorKey(eventID, userID string) string {
	return "cursor:" + eventID + ":" + userID
}
