package controllers

import (
	"net/http"

	"github.com/angelmondragon/gallery-backend/api/responses"
	"github.com/angelmondragon/gallery-backend/pkg/config"
	"github.com/angelmondragon/gallery-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/gallery-backend/pkg/errors"
	"github.com/angelmondragon/gallery-backend/pkg/logger"
	"github.com/angelmondragon/gallery-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Gallery-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Gallery-Env", cfg.App.Env)

		checks := map[string]string{}
		healthy := true

		if dbP != nil {
			if err := dbP.Ping(r.Context()); err != nil {
				checks["db"] = err.Error()
				healthy = false
			} else {
				checks["db"] = "ok"
			}
		}
		if redisP != nil {
			if err := redisP.Ping(r.Context()); err != nil {
				checks["redis"] = err.Error()
				healthy = false
			} else {
				checks["redis"] = "ok"
			}
		}

		// A missing gateway only degrades checkout, it does not make the
		// process unready.
		if cfg.PayPal.Configured() {
			checks["gateway"] = "configured"
		} else {
			checks["gateway"] = "not configured"
		}

		if !healthy {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeDependency, "dependency unavailable").WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
