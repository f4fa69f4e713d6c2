package handler

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/gatherly/eventchat/internal/chat"
	"github.com/gatherly/eventchat/internal/events"
	"github.com/gatherly/eventchat/internal/store"
)

type messagesResponse struct {
	Messages []chat.Message `json:"messages"`
}

// ServeMessages is the backfill read on chat open: the full room contents,
// or empty once the room is locked.
func ServeMessages(roomStore store.RoomStore, repo events.Repository, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		eventID := r.URL.Query().Get("eventId")
		if eventID == "" {
			writeError(w, log, http.StatusBadRequest, "eventId is required")
			return
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

		msgs, err := roomStore.Range(ctx, ev, 0, 0)
		if err != nil {
			log.Error("room read failed", zap.String("event_id", eventID), zap.Error(err))
			writeError(w, log, http.StatusInternalServerError, "server error")
			return
		}
		if msgs == nil {
			msgs = []chat.Message{}
		}

		writeJSON(w, log, http.StatusOK, messagesResponse{Messages: msgs})
	}
}
