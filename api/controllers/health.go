package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/wardstudio/detailflow-backend/api/responses"
	"github.com/wardstudio/detailflow-backend/pkg/config"
	"github.com/wardstudio/detailflow-backend/pkg/logger"
)

const probeTimeout = 2 * time.Second

// Pinger is the health probe surface of a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-DetailFlow-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady probes the database and redis with a bounded timeout each, so a
// hung dependency reports "not responding" instead of hanging the probe.
func HealthReady(cfg *config.Config, dbPinger, redisPinger Pinger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-DetailFlow-Env", cfg.App.Env)

		ctx := r.Context()
		report := map[string]string{
			"db":    probe(ctx, dbPinger),
			"redis": probe(ctx, redisPinger),
		}

		ready := true
		for dep, status := range report {
			if status != "ok" {
				ready = false
				if logg != nil {
					logCtx := logg.WithFields(ctx, map[string]any{"dependency": dep, "status": status})
					logg.Warn(logCtx, "readiness probe failed")
				}
			}
		}

		report["status"] = "ready"
		if !ready {
			report["status"] = "degraded"
			responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, report)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

func probe(ctx context.Context, p Pinger) string {
	if p == nil {
		return "not configured"
	}
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := p.Ping(probeCtx); err != nil {
		return "not responding"
	}
	return "ok"
}
