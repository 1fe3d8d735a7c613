package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/posterloft/posterloft-backend/pkg/logger"
)

func TestRequireRoleWithoutAuthIsUnauthorized(t *testing.T) {
	handler := RequireRole("admin", nil)(okHandler())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/admin/v1/orders/x/retry-fulfillment", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestRequestIDReplacesUnsafeValues(t *testing.T) {
	handler := RequestID(nil)(okHandler())
	cases := map[string]bool{
		"req-123":                   true,
		"":                          false,
		"evil\nlevel=error":         false,
		strings.Repeat("a", 65):     false,
		"stripe_evt_1NkWm2Lk1xU8Fq": true,
	}
	for in, kept := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if in != "" {
			req.Header.Set(requestIDHeader, in)
		}
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		got := resp.Header().Get(requestIDHeader)
		if got == "" {
			t.Fatalf("%q: expected a request id", in)
		}
		if kept != (got == in) {
			t.Fatalf("%q: kept=%v but response carried %q", in, kept, got)
		}
	}
}

func TestRecovererReturnsInternalError(t *testing.T) {
	var out bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.DebugLevel, Output: &out})
	handler := Recoverer(logg)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("nil shipping address")
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/webhooks/payment", nil))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	if !strings.Contains(out.String(), "nil shipping address") {
		t.Fatalf("expected panic value in log, got %s", out.String())
	}
}

func TestRecovererReraisesAbort(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Fatalf("expected ErrAbortHandler to propagate, got %v", rec)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestLoggingUsesRoutePattern(t *testing.T) {
	var out bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.InfoLevel, Output: &out})

	r := chi.NewRouter()
	r.Use(Logging(logg))
	r.Post("/api/admin/v1/orders/{orderId}/retry-fulfillment", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/admin/v1/orders/6f1c/retry-fulfillment", nil))
	line := out.String()
	if !strings.Contains(line, `"route":"/api/admin/v1/orders/{orderId}/retry-fulfillment"`) || !strings.Contains(line, `"status":202`) {
		t.Fatalf("unexpected log line %s", line)
	}

	out.Reset()
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if out.Len() != 0 {
		t.Fatalf("health checks should log below info, got %s", out.String())
	}
}
