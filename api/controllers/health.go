package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/harvest-fulfillment/api/responses"
	"github.com/angelmondragon/harvest-fulfillment/pkg/config"
	pkgerrors "github.com/angelmondragon/harvest-fulfillment/pkg/errors"
	"github.com/angelmondragon/harvest-fulfillment/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger is satisfied by the database and redis clients.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Harvest-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every dependency the API cannot serve without.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbPinger, redisPinger Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Harvest-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]string{}
		var failed *pkgerrors.Error
		for name, pinger := range map[string]Pinger{"database": dbPinger, "redis": redisPinger} {
			if pinger == nil {
				checks[name] = "skipped"
				continue
			}
			if err := pinger.Ping(ctx); err != nil {
				checks[name] = "down"
				failed = pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable")
				continue
			}
			checks[name] = "up"
		}

		if failed != nil {
			responses.WriteError(r.Context(), logg, w, failed.WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
