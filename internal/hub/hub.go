// Package hub is an in-process wakeup registry for blocked long-poll
// requests. Handlers register a waiter per room; the send path (or the
// redis bridge, on multi-node runs) notifies the room and every waiter
// gets one best-effort signal.
package hub

import "sync"

// Hub is concurrency-safe. Waiter channels are buffered with size one and
// notified without blocking, so a notify can never stall on a slow handler.
type Hub struct {
	mu      sync.Mutex
	waiters map[string]map[uint64]chan struct{}
	nextID  uint64
}

// New returns an empty hub.
func New() *Hub {
	return &Hub{waiters: make(map[string]map[uint64]chan struct{})}
}

// Wait registers a waiter for the room and returns its id and signal
// channel. Callers must Cancel(id) when done.
func (h *Hub) Wait(eventID string) (uint64, <-chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++

	ch := make(chan struct{}, 1)
	room, ok := h.waiters[eventID]
	if !ok {
		room = make(map[uint64]chan struct{})
		h.waiters[eventID] = room
	}
	room[id] = ch
	return id, ch
}

// Cancel removes a waiter. Unknown ids are ignored.
func (h *Hub) Cancel(eventID string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.waiters[eventID]
	if !ok {
		return
	}
	delete(room, id)
	if len(room) == 0 {
		delete(h.waiters, eventID)
	}
}

// Notify signals every waiter currently registered for the room.
func (h *Hub) Notify(eventID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.waiters[eventID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Waiters returns the number of waiters registered for the room.
func (h *Hub) Waiters(eventID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.waiters[eventID])
}
