package events

import (
	"context"
	"sync"

	"github.com/gatherly/eventchat/internal/chat"
)

// Fake is an in-memory Repository for tests and local runs.
type Fake struct {
	mu     sync.RWMutex
	events map[string]chat.Event
}

func NewFake() *Fake {
	return &Fake{events: make(map[string]chat.Event)}
}

func (f *Fake) Put(ev chat.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[ev.ID] = ev
}

func (f *Fake) GetEvent(ctx context.Context, id string) (chat.Event, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	ev, ok := f.events[id]
	if !ok {
		return chat.Event{}, ErrNotFound
	}
	return ev, nil
}

var _ Repository = (*Fake)(nil)
