package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/posterloft/posterloft-backend/pkg/config"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(ctx context.Context) error {
	return s.err
}

func testConfig() *config.Config {
	return &config.Config{App: config.AppConfig{Env: "test"}}
}

func TestHealthLive(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthLive(testConfig()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get(envHeader); got != "test" {
		t.Fatalf("expected env header, got %q", got)
	}
}

func TestHealthReady(t *testing.T) {
	cases := []struct {
		name   string
		db     Pinger
		cache  Pinger
		status int
		checks map[string]string
	}{
		{"db only", stubPinger{}, nil, http.StatusOK, map[string]string{"database": "ok"}},
		{"db and redis", stubPinger{}, stubPinger{}, http.StatusOK, map[string]string{"database": "ok", "redis": "ok"}},
		{"db down", stubPinger{err: errors.New("refused")}, nil, http.StatusServiceUnavailable, map[string]string{"database": "down"}},
		{"redis down", stubPinger{}, stubPinger{err: errors.New("timeout")}, http.StatusServiceUnavailable, map[string]string{"database": "ok", "redis": "down"}},
		{"db missing", nil, nil, http.StatusServiceUnavailable, map[string]string{"database": "missing"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HealthReady(testConfig(), nil, tc.db, tc.cache).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}

			var body struct {
				Data struct {
					Checks map[string]string `json:"checks"`
				} `json:"data"`
				Error struct {
					Details map[string]string `json:"details"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			got := body.Data.Checks
			if tc.status != http.StatusOK {
				got = body.Error.Details
			}
			if len(got) != len(tc.checks) {
				t.Fatalf("expected checks %v, got %v", tc.checks, got)
			}
			for key, want := range tc.checks {
				if got[key] != want {
					t.Fatalf("check %s: expected %q, got %q", key, want, got[key])
				}
			}
		})
	}
}
