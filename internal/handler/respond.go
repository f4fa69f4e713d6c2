// Package handler holds the HTTP surface of the chat service.
package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, log *zap.Logger, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("failed to write response body", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, log *zap.Logger, code int, msg string) {
	writeJSON(w, log, code, errorResponse{Error: msg})
}
