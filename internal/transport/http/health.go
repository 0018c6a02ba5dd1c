package http

import (
	"context"
	"log"
	"net/http"
	"time"
)

// Pinger reports whether the order store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HandleHealth reports liveness, and store reachability when a pinger is
// given.
func HandleHealth(store Pinger, logger *log.Logger) http.HandlerFunc {
	if logger == nil {
		logger = log.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				logger.Printf("WARN: health check failed err=%v", err)
				writeError(w, http.StatusServiceUnavailable, codeUnavailable, "store unavailable")
				return
			}
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
