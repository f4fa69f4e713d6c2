package chatclient

import (
	"context"
	"errors"
	"fmt"
)

// ErrChatLocked means the room is past its lock boundary. Surfaced to the
// user as "this chat has ended"; never retried.
var ErrChatLocked = errors.New("chatclient: chat has ended")

// ErrCircuitOpen means the connection hit the consecutive-failure limit and
// was marked dead. The manager does not self-heal past this point; the
// caller must Subscribe again.
var ErrCircuitOpen = errors.New("chatclient: connection dead, resubscribe required")

// TransportError wraps a network failure, a non-2xx status or an
// undecodable payload from the chat endpoints. The manager retries these
// under exponential backoff.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("chatclient: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// isAbort reports whether err is the expected outcome of a canceled or
// timed-out request rather than a transport failure. Aborts never count
// toward the error budget.
func isAbort(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
