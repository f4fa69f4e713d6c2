package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/gatherly/eventchat/internal/chat"
	"github.com/gatherly/eventchat/internal/events"
	"github.com/gatherly/eventchat/internal/hub"
	"github.com/gatherly/eventchat/internal/store"
)

type sendRequest struct {
	EventID    string `json:"eventId"`
	EventTitle string `json:"eventTitle"`
	UserID     string `json:"userId"`
	UserName   string `json:"userName"`
	Message    struct {
		Text string `json:"text"`
	} `json:"message"`
}

// ServeSend validates, appends and echoes the stored message. A room past
// its lock boundary answers 423 {"error":"locked"}; callers surface that as
// "this chat has ended" and must not retry.
func ServeSend(roomStore store.RoomStore, repo events.Repository, h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req sendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, log, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.EventID == "" || req.UserID == "" {
			writeError(w, log, http.StatusBadRequest, "eventId and userId are required")
			return
		}

		text, err := chat.CleanText(req.Message.Text)
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			writeError(w, log, http.StatusBadRequest, "message is empty")
			return
		case errors.Is(err, chat.ErrMessageTooLong):
			writeError(w, log, http.StatusBadRequest, "message is too long")
			return
		case err != nil:
			writeError(w, log, http.StatusBadRequest, "invalid message")
			return
		}

		ev, err := repo.GetEvent(ctx, req.EventID)
		if err != nil {
			if errors.Is(err, events.ErrNotFound) {
				writeError(w, log, http.StatusNotFound, "event not found")
				return
			}
			log.Error("event lookup failed", zap.String("event_id", req.EventID), zap.Error(err))
			writeError(w, log, http.StatusInternalServerError, "server error")
			return
		}

		stored, err := roomStore.Append(ctx, ev, chat.Message{
			Text:     text,
			UserID:   req.UserID,
			UserName: req.UserName,
		})
		if err != nil {
			if errors.Is(err, chat.ErrChatLocked) {
				writeError(w, log, http.StatusLocked, "locked")
				return
			}
			log.Error("append failed", zap.String("event_id", req.EventID), zap.Error(err))
			writeError(w, log, http.StatusInternalServerError, "server error")
			return
		}

		h.Notify(ev.ID)

		log.Info("message sent",
			zap.String("event_id", ev.ID),
			zap.String("user_id", req.UserID),
			zap.String("message_id", stored.ID))

		writeJSON(w, log, http.StatusOK, stored)
	}
}
