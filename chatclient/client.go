// Package chatclient is the Go client for the event chat service: a thin
// wire client plus a connection manager that owns the long-poll loop,
// retry/backoff, deduplication and unread tracking.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Message mirrors the server's wire shape.
type Message struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	Timestamp int64  `json:"timestamp"`
}

// PollResult is one long-poll response: either a batch of messages or a
// heartbeat proving the connection is alive.
type PollResult struct {
	Type     string    `json:"type"`
	Messages []Message `json:"messages"`
}

const (
	ResultMessages  = "messages"
	ResultHeartbeat = "heartbeat"
)

// SendRequest is the body of POST /chat/send.
type SendRequest struct {
	EventID    string      `json:"eventId"`
	EventTitle string      `json:"eventTitle"`
	UserID     string      `json:"userId"`
	UserName   string      `json:"userName"`
	Message    MessageBody `json:"message"`
}

type MessageBody struct {
	Text string `json:"text"`
}

// Client talks to the chat endpoints. Request deadlines come from the
// caller's context; the manager supplies the 35s long-poll timeout.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// Poll issues one long-poll call. It returns the response as-is; the
// connection manager interprets heartbeats and advances the cursor.
func (c *Client) Poll(ctx context.Context, eventID, userID string, lastTimestamp int64) (*PollResult, error) {
	q := url.Values{}
	q.Set("eventId", eventID)
	q.Set("userId", userID)
	q.Set("lastTimestamp", strconv.FormatInt(lastTimestamp, 10))

	var res PollResult
	if err := c.getJSON(ctx, "/chat/realtime?"+q.Encode(), &res); err != nil {
		return nil, err
	}
	if res.Type != ResultMessages && res.Type != ResultHeartbeat {
		return nil, &TransportError{Op: "poll", Err: fmt.Errorf("unexpected response type %q", res.Type)}
	}
	return &res, nil
}

// Backfill fetches the full room contents, for the initial render on chat
// open. Empty once the room is locked.
func (c *Client) Backfill(ctx context.Context, eventID string) ([]Message, error) {
	q := url.Values{}
	q.Set("eventId", eventID)

	var res struct {
		Messages []Message `json:"messages"`
	}
	if err := c.getJSON(ctx, "/chat/messages?"+q.Encode(), &res); err != nil {
		return nil, err
	}
	return res.Messages, nil
}

// Send posts a message and returns the stored copy with its server-assigned
// id and timestamp. A locked room returns ErrChatLocked.
func (c *Client) Send(ctx context.Context, req SendRequest) (Message, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Message{}, &TransportError{Op: "send", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/send", bytes.NewReader(body))
	if err != nil {
		return Message{}, &TransportError{Op: "send", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if isAbort(err) {
			return Message{}, err
		}
		return Message{}, &TransportError{Op: "send", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusLocked {
		return Message{}, ErrChatLocked
	}
	if resp.StatusCode != http.StatusOK {
		return Message{}, &TransportError{Op: "send", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var stored Message
	if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil {
		return Message{}, &TransportError{Op: "send", Err: err}
	}
	return stored, nil
}

func (c *Client) getJSON(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &TransportError{Op: "get " + path, Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Context cancellation and deadline expiry pass through unwrapped
		// so the manager can tell an abort from a transport failure.
		if isAbort(err) {
			return err
		}
		return &TransportError{Op: "get " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &TransportError{Op: "get " + path, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		if isAbort(err) {
			return err
		}
		return &TransportError{Op: "get " + path, Err: err}
	}
	return nil
}
