package http

import (
	"bytes"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		handler     http.HandlerFunc
		incomingID  string
		expectedLog []string
		expectedID  string
	}{
		{
			name:        "explicit status",
			handler:     func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusCreated) },
			expectedLog: []string{"method=POST", "path=/orders", "status=201", "request_id="},
		},
		{
			name:        "bare write defaults to 200",
			handler:     func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) },
			expectedLog: []string{"status=200", "bytes=2"},
		},
		{
			name: "server error is flagged",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			},
			expectedLog: []string{"ERROR: request", "status=500"},
		},
		{
			name: "incoming id kept and visible downstream",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(RequestIDFromContext(r.Context())))
			},
			incomingID:  "req-abc",
			expectedLog: []string{"request_id=req-abc"},
			expectedID:  "req-abc",
		},
		{
			name:        "oversized id replaced",
			handler:     func(w http.ResponseWriter, _ *http.Request) {},
			incomingID:  strings.Repeat("x", maxRequestIDLen+1),
			expectedLog: []string{"status=200"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			buf := &bytes.Buffer{}
			req := httptest.NewRequest(http.MethodPost, "/orders", nil)
			if tt.incomingID != "" {
				req.Header.Set(requestIDHeader, tt.incomingID)
			}
			rec := httptest.NewRecorder()
			RequestLogger(tt.handler, log.New(buf, "", 0)).ServeHTTP(rec, req)

			out := buf.String()
			for _, want := range tt.expectedLog {
				if !strings.Contains(out, want) {
					t.Fatalf("expected %q in log, got %q", want, out)
				}
			}
			got := rec.Header().Get(requestIDHeader)
			if got == "" || len(got) > maxRequestIDLen {
				t.Fatalf("expected a usable request id header, got %q", got)
			}
			if tt.expectedID != "" && got != tt.expectedID {
				t.Fatalf("expected request id %q, got %q", tt.expectedID, got)
			}
			if tt.expectedID != "" && rec.Body.String() != tt.expectedID {
				t.Fatalf("expected id in request context, got %q", rec.Body.String())
			}
		})
	}
}
