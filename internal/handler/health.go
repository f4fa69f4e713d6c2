package handler

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Pinger checks connectivity to a backing service.
type Pinger func(ctx context.Context) error

// ServeHealth reports 200 when every backing service answers a ping within
// two seconds, 503 otherwise.
func ServeHealth(log *zap.Logger, pings map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{"status": "ok"}
		code := http.StatusOK

		for name, ping := range pings {
			if err := ping(ctx); err != nil {
				log.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
				status[name] = "unreachable"
				status["status"] = "degraded"
				code = http.StatusServiceUnavailable
			}
		}

		writeJSON(w, log, code, status)
	}
}
