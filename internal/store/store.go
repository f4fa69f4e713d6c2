// Package store holds the ephemeral per-event message logs. Rooms are
// created implicitly on first append and expire on their own once the
// event's lock boundary passes; there is no explicit delete.
package store

import (
	"context"

	"github.com/gatherly/eventchat/internal/chat"
)

// RoomStore is an append-only ordered log keyed by event.
//
// Both operations enforce the lock rule themselves: a locked Append fails
// with chat.ErrChatLocked without touching the log, and a locked Range
// returns an empty batch with a nil error, since "locked" is an
// empty-but-valid state for reads.
type RoomStore interface {
	// Append assigns the server timestamp and id, inserts the message into
	// the event's ordered log and refreshes the room's time-to-live so the
	// room's deletion tracks the current lock boundary, not a write-time
	// snapshot. The stored message is returned.
	Append(ctx context.Context, ev chat.Event, msg chat.Message) (chat.Message, error)

	// Range returns messages with timestamp strictly greater than since,
	// ascending. limit <= 0 means no limit.
	Range(ctx context.Context, ev chat.Event, since int64, limit int64) ([]chat.Message, error)
}
