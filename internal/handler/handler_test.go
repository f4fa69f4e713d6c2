package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gatherly/eventchat/internal/chat"
	"github.com/gatherly/eventchat/internal/events"
	"github.com/gatherly/eventchat/internal/hub"
	"github.com/gatherly/eventchat/internal/store"
)

type fixture struct {
	store *store.Memory
	repo  *events.Fake
	hub   *hub.Hub
	clock *settableClock
	ev    chat.Event
}

type settableClock struct{ t time.Time }

func (c *settableClock) now() time.Time { return c.t }

func newFixture(t *testing.T) *fixture {
	t.Helper()

	start := time.Date(2025, 6, 14, 18, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	ev := chat.Event{
		ID:       "evt-1",
		Title:    "Summer Social",
		HostID:   "host-1",
		StartsAt: start,
		EndsAt:   &end,
	}

	clock := &settableClock{t: start.Add(time.Hour)}
	s := store.NewMemory()
	s.SetClock(clock.now)

	repo := events.NewFake()
	repo.Put(ev)

	return &fixture{store: s, repo: repo, hub: hub.New(), clock: clock, ev: ev}
}

func sendBody(eventID, userID, userName, text string) *bytes.Buffer {
	body, _ := json.Marshal(map[string]any{
		"eventId":    eventID,
		"eventTitle": "Summer Social",
		"userId":     userID,
		"userName":   userName,
		"message":    map[string]string{"text": text},
	})
	return bytes.NewBuffer(body)
}

func TestSend(t *testing.T) {
	f := newFixture(t)
	h := ServeSend(f.store, f.repo, f.hub, zap.NewNop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat/send", sendBody("evt-1", "u1", "dana", "  hello everyone  "))
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got chat.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.NotEmpty(t, got.ID)
	assert.NotZero(t, got.Timestamp)
	assert.Equal(t, "hello everyone", got.Text, "text should be trimmed")
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "dana", got.UserName)
}

func TestSendLocked(t *testing.T) {
	f := newFixture(t)
	f.clock.t = chat.LockBoundary(f.ev).Add(time.Minute)
	h := ServeSend(f.store, f.repo, f.hub, zap.NewNop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat/send", sendBody("evt-1", "u1", "dana", "too late"))
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusLocked, rec.Code)
	assert.JSONEq(t, `{"error":"locked"}`, rec.Body.String())
}

func TestSendValidation(t *testing.T) {
	f := newFixture(t)
	h := ServeSend(f.store, f.repo, f.hub, zap.NewNop())

	tests := []struct {
		name string
		body *bytes.Buffer
		want int
	}{
		{"empty_text", sendBody("evt-1", "u1", "dana", "   "), http.StatusBadRequest},
		{"too_long", sendBody("evt-1", "u1", "dana", string(bytes.Repeat([]byte("a"), chat.MaxMessageLen+1))), http.StatusBadRequest},
		{"missing_event", sendBody("", "u1", "dana", "hi"), http.StatusBadRequest},
		{"unknown_event", sendBody("evt-404", "u1", "dana", "hi"), http.StatusNotFound},
		{"garbage_body", bytes.NewBufferString("{nope"), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/chat/send", tt.body)
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestSendWakesWaiters(t *testing.T) {
	f := newFixture(t)
	h := ServeSend(f.store, f.repo, f.hub, zap.NewNop())

	_, ready := f.hub.Wait("evt-1")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat/send", sendBody("evt-1", "u1", "dana", "wake up"))
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	select {
	case <-ready:
	case <-time.After(time.Second):
		t.Fatal("append did not notify the hub")
	}
}

func TestMessagesBackfill(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		_, err := f.store.Append(context.Background(), f.ev, chat.Message{
			Text: fmt.Sprintf("msg %d", i), UserID: "u1", UserName: "dana",
		})
		require.NoError(t, err)
	}

	h := ServeMessages(f.store, f.repo, zap.NewNop())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/chat/messages?eventId=evt-1", nil)
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got messagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Messages, 3)
	assert.True(t, got.Messages[0].Timestamp < got.Messages[1].Timestamp)
}

func TestMessagesLockedIsEmpty(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.Append(context.Background(), f.ev, chat.Message{Text: "hi", UserID: "u1"})
	require.NoError(t, err)

	f.clock.t = chat.LockBoundary(f.ev).Add(time.Minute)

	h := ServeMessages(f.store, f.repo, zap.NewNop())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/chat/messages?eventId=evt-1", nil)
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"messages":[]}`, rec.Body.String())
}

func TestRealtimeImmediateMessages(t *testing.T) {
	f := newFixture(t)
	stored, err := f.store.Append(context.Background(), f.ev, chat.Message{Text: "already here", UserID: "u2", UserName: "mel"})
	require.NoError(t, err)

	h := ServeRealtime(f.store, f.repo, f.hub, DefaultPollWait, zap.NewNop())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/chat/realtime?eventId=evt-1&userId=u1&lastTimestamp=0", nil)

	start := time.Now()
	h.ServeHTTP(rec, req)
	assert.Less(t, time.Since(start), time.Second, "should not block when messages exist")

	require.Equal(t, http.StatusOK, rec.Code)
	var got realtimeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "messages", got.Type)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, stored.ID, got.Messages[0].ID)
}

func TestRealtimeRequiresIdentity(t *testing.T) {
	f := newFixture(t)
	h := ServeRealtime(f.store, f.repo, f.hub, DefaultPollWait, zap.NewNop())

	for _, url := range []string{
		"/chat/realtime?userId=u1&lastTimestamp=0",
		"/chat/realtime?eventId=evt-1&lastTimestamp=0",
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, url)
	}
}

func TestRealtimeCursorFiltering(t *testing.T) {
	f := newFixture(t)
	first, err := f.store.Append(context.Background(), f.ev, chat.Message{Text: "one", UserID: "u2"})
	require.NoError(t, err)
	second, err := f.store.Append(context.Background(), f.ev, chat.Message{Text: "two", UserID: "u2"})
	require.NoError(t, err)

	h := ServeRealtime(f.store, f.repo, f.hub, DefaultPollWait, zap.NewNop())
	rec := httptest.NewRecorder()
	url := fmt.Sprintf("/chat/realtime?eventId=evt-1&userId=u1&lastTimestamp=%d", first.Timestamp)
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))

	var got realtimeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Messages, 1)
	assert.Equal(t, second.ID, got.Messages[0].ID)
}

func TestRealtimeHeartbeat(t *testing.T) {
	f := newFixture(t)

	h := ServeRealtime(f.store, f.repo, f.hub, 50*time.Millisecond, zap.NewNop())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat/realtime?eventId=evt-1&userId=u1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"type":"heartbeat"}`, rec.Body.String())
}

func TestRealtimeWakesOnAppend(t *testing.T) {
	f := newFixture(t)
	h := ServeRealtime(f.store, f.repo, f.hub, 5*time.Second, zap.NewNop())

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat/realtime?eventId=evt-1&userId=u1&lastTimestamp=0", nil))
		done <- rec
	}()

	// Let the handler block, then append and notify the way the send path does.
	time.Sleep(50 * time.Millisecond)
	_, err := f.store.Append(context.Background(), f.ev, chat.Message{Text: "incoming", UserID: "u2", UserName: "mel"})
	require.NoError(t, err)
	f.hub.Notify("evt-1")

	select {
	case rec := <-done:
		var got realtimeResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "messages", got.Type)
		require.Len(t, got.Messages, 1)
		assert.Equal(t, "incoming", got.Messages[0].Text)
	case <-time.After(2 * time.Second):
		t.Fatal("long poll did not wake on append")
	}
}

func TestHealth(t *testing.T) {
	ok := func(ctx context.Context) error { return nil }
	bad := func(ctx context.Context) error { return fmt.Errorf("down") }

	h := ServeHealth(zap.NewNop(), map[string]Pinger{"redis": ok})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	h = ServeHealth(zap.NewNop(), map[string]Pinger{"redis": ok, "postgres": bad})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
