package store

import (
	"context"
	"sync"
	"time"

	"github.com/gatherly/eventchat/internal/chat"
)

type room struct {
	messages  []chat.Message // ascending by timestamp
	expiresAt time.Time
}

// Memory is an in-process RoomStore for single-node runs and tests. Expiry
// is swept lazily on access, which keeps deletion correct across restarts
// the same way a TTL does.
type Memory struct {
	mu    sync.Mutex
	rooms map[string]*room
	now   func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		rooms: make(map[string]*room),
		now:   time.Now,
	}
}

// SetClock overrides the store's clock. Test hook.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// roomLocked returns the live room for the event, sweeping it if expired.
// Caller must hold m.mu.
func (m *Memory) roomLocked(eventID string, now time.Time) *room {
	r, ok := m.rooms[eventID]
	if !ok {
		return nil
	}
	if now.After(r.expiresAt) {
		delete(m.rooms, eventID)
		return nil
	}
	return r
}

func (m *Memory) Append(ctx context.Context, ev chat.Event, msg chat.Message) (chat.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if chat.Locked(ev, now) {
		return chat.Message{}, chat.ErrChatLocked
	}

	r := m.roomLocked(ev.ID, now)
	if r == nil {
		r = &room{}
		m.rooms[ev.ID] = r
	}

	ts := now.UnixMilli()
	// Keep timestamps strictly increasing within a room so the exclusive
	// cursor never skips a message appended in the same millisecond.
	if n := len(r.messages); n > 0 && ts <= r.messages[n-1].Timestamp {
		ts = r.messages[n-1].Timestamp + 1
	}

	msg.ID = chat.NewMessageID(now)
	msg.Timestamp = ts
	r.messages = append(r.messages, msg)
	r.expiresAt = chat.LockBoundary(ev)

	return msg, nil
}

func (m *Memory) Range(ctx context.Context, ev chat.Event, since int64, limit int64) ([]chat.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if chat.Locked(ev, now) {
		return nil, nil
	}

	r := m.roomLocked(ev.ID, now)
	if r == nil {
		return nil, nil
	}

	var out []chat.Message
	for _, msg := range r.messages {
		if msg.Timestamp <= since {
			continue
		}
		out = append(out, msg)
		if limit > 0 && int64(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

var _ RoomStore = (*Memory)(nil)
