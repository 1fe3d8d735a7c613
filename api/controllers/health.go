package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/posterloft/posterloft-backend/api/responses"
	"github.com/posterloft/posterloft-backend/pkg/config"
	pkgerrors "github.com/posterloft/posterloft-backend/pkg/errors"
	"github.com/posterloft/posterloft-backend/pkg/logger"
)

const (
	envHeader           = "X-Posterloft-Env"
	readinessPingWindow = 2 * time.Second
)

// Pinger is any dependency the readiness check pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the database and, when configured, Redis.
func HealthReady(cfg *config.Config, logg *logger.Logger, database Pinger, cache Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessPingWindow)
		defer cancel()

		checks := map[string]string{}
		ready := true
		if database == nil {
			checks["database"] = "missing"
			ready = false
		} else if err := database.Ping(ctx); err != nil {
			checks["database"] = "down"
			ready = false
		} else {
			checks["database"] = "ok"
		}

		if cache != nil {
			if err := cache.Ping(ctx); err != nil {
				checks["redis"] = "down"
				ready = false
			} else {
				checks["redis"] = "ok"
			}
		}

		if !ready {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "dependencies not ready").WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
