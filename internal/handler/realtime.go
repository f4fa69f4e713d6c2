package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/gatherly/eventchat/internal/chat"
	"github.com/gatherly/eventchat/internal/events"
	"github.com/gatherly/eventchat/internal/hub"
	"github.com/gatherly/eventchat/internal/store"
)

// DefaultPollWait is the server-side long-poll budget. Clients must use a
// request timeout above this (35s against 30s) so a heartbeat is never
// mistaken for a stalled connection.
const DefaultPollWait = 30 * time.Second

const pollBatchLimit = 100

type realtimeResponse struct {
	Type     string         `json:"type"`
	Messages []chat.Message `json:"messages,omitempty"`
}

// ServeRealtime is the long-poll endpoint. It answers immediately when the
// room already has messages newer than lastTimestamp, otherwise blocks up
// to wait for an append before falling back to a heartbeat.
func ServeRealtime(roomStore store.RoomStore, repo events.Repository, h *hub.Hub, wait time.Duration, log *zap.Logger) http.HandlerFunc {
	if wait <= 0 {
		wait = DefaultPollWait
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		eventID := r.URL.Query().Get("eventId")
		if eventID == "" {
			writeError(w, log, http.StatusBadRequest, "eventId is required")
			return
		}
		if r.URL.Query().Get("userId") == "" {
			writeError(w, log, http.StatusBadRequest, "userId is required")
			return
		}
		since, err := strconv.ParseInt(r.URL.Query().Get("lastTimestamp"), 10, 64)
		if err != nil {
			since = 0
		}

		ev, err := repo.GetEvent(ctx, eventID)
		if err != nil {
			if errors.Is(err, events.ErrNotFound) {
				writeError(w, log, http.StatusNotFound, "event not found")
				return
			}
			log.Error("event lookup failed", zap.String("event_id", eventID), zap.Error(err))
			writeError(w, log, http.StatusInternalServerError, "server error")
			return
		}

		deadline := time.NewTimer(wait)
		defer deadline.Stop()

		for {
			msgs, err := roomStore.Range(ctx, ev, since, pollBatchLimit)
			if err != nil {
				log.Error("room read failed", zap.String("event_id", eventID), zap.Error(err))
				writeError(w, log, http.StatusInternalServerError, "server error")
				return
			}
			if len(msgs) > 0 {
				writeJSON(w, log, http.StatusOK, realtimeResponse{Type: "messages", Messages: msgs})
				return
			}

			id, ready := h.Wait(eventID)

			// Re-read after registering; an append may have landed between
			// the empty read and the waiter registration.
			msgs, err = roomStore.Range(ctx, ev, since, pollBatchLimit)
			if err != nil {
				h.Cancel(eventID, id)
				log.Error("room read failed", zap.String("event_id", eventID), zap.Error(err))
				writeError(w, log, http.StatusInternalServerError, "server error")
				return
			}
			if len(msgs) > 0 {
				h.Cancel(eventID, id)
				writeJSON(w, log, http.StatusOK, realtimeResponse{Type: "messages", Messages: msgs})
				return
			}

			select {
			case <-ready:
				h.Cancel(eventID, id)
			case <-deadline.C:
				h.Cancel(eventID, id)
				writeJSON(w, log, http.StatusOK, realtimeResponse{Type: "heartbeat"})
				return
			case <-ctx.Done():
				h.Cancel(eventID, id)
				return
			}
		}
	}
}
