// Package chat defines the event chat domain: messages, the per-event room
// lifecycle, and the lock/expiry rule shared by every read and write path.
package chat

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

// LockGrace is how long a room stays writable past the event's end.
const LockGrace = time.Hour

// MaxMessageLen bounds message text, in runes.
const MaxMessageLen = 200

// Message is a single chat message as stored and as sent over the wire.
type Message struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	Timestamp int64  `json:"timestamp"` // milliseconds since epoch, server-assigned
}

// Event carries the metadata the chat subsystem needs from the events
// collaborator. EndsAt is nil for events without a scheduled end.
type Event struct {
	ID       string
	Title    string
	HostID   string
	StartsAt time.Time
	EndsAt   *time.Time
}

// LockBoundary returns the instant the event's room stops accepting writes
// and reads start returning empty. Events without an end time fall back to
// the start time, which narrows the chat window to one hour post-start.
func LockBoundary(ev Event) time.Time {
	if ev.EndsAt != nil {
		return ev.EndsAt.Add(LockGrace)
	}
	return ev.StartsAt.Add(LockGrace)
}

// Locked reports whether the event's room is past its lock boundary at now.
// Recomputed from the event time fields on every call, never cached or
// stored as a flag.
func Locked(ev Event, now time.Time) bool {
	return now.After(LockBoundary(ev))
}

// RoomTTL returns the remaining lifetime of the event's room at now,
// clamped at zero.
func RoomTTL(ev Event, now time.Time) time.Duration {
	ttl := LockBoundary(ev).Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}

var textPolicy = bluemonday.StrictPolicy()

// CleanText trims, sanitizes and length-checks user-entered message text.
func CleanText(text string) (string, error) {
	text = strings.TrimSpace(textPolicy.Sanitize(text))
	if text == "" {
		return "", ErrEmptyMessage
	}
	if len([]rune(text)) > MaxMessageLen {
		return "", ErrMessageTooLong
	}
	return text, nil
}

// NewMessageID builds a message id from a base36 millisecond prefix and a
// random suffix. The prefix keeps ids roughly sortable for display; the
// timestamp stays the authoritative sort key.
func NewMessageID(now time.Time) string {
	prefix := strconv.FormatInt(now.UnixMilli(), 36)
	suffix := uuid.NewString()[:8]
	return prefix + "-" + suffix
}
