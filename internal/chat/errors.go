package chat

import "errors"

// ErrChatLocked is returned for writes to a room past its lock boundary.
// Callers surface it as "this chat has ended" and never retry.
var ErrChatLocked = errors.New("internal/chat: chat locked")

// ErrEmptyMessage is returned for message text that is empty after trimming.
var ErrEmptyMessage = errors.New("internal/chat: empty message")

// ErrMessageTooLong is returned for message text over MaxMessageLen runes.
var ErrMessageTooLong = errors.New("internal/chat: message too long")
