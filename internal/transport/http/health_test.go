package http

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	quiet := log.New(io.Discard, "", 0)
	tests := []struct {
		name       string
		store      Pinger
		wantStatus int
		wantBody   string
	}{
		{name: "no store", wantStatus: http.StatusOK, wantBody: "ok"},
		{name: "store reachable", store: stubPinger{}, wantStatus: http.StatusOK, wantBody: "ok"},
		{name: "store down", store: stubPinger{err: errors.New("refused")}, wantStatus: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			HandleHealth(tt.store, quiet).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Fatalf("expected body %q, got %q", tt.wantBody, rec.Body.String())
			}
		})
	}
}
