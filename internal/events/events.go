// Package events looks up event metadata for the chat subsystem. Events
// themselves are owned elsewhere; chat only needs the time fields, title
// and host.
package events

import (
	"context"
	"errors"

	"github.com/gatherly/eventchat/internal/chat"
)

// ErrNotFound is returned when no event exists with the given id.
var ErrNotFound = errors.New("internal/events: event not found")

// Repository resolves event metadata by id.
type Repository interface {
	GetEvent(ctx context.Context, id string) (chat.Event, error)
}
