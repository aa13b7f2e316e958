package controllers

import (
	"net/http"

	"github.com/atelierluna/storefront-backend/api/responses"
	"github.com/atelierluna/storefront-backend/pkg/config"
	pkgerrors "github.com/atelierluna/storefront-backend/pkg/errors"
	"github.com/atelierluna/storefront-backend/pkg/logger"
	"github.com/atelierluna/storefront-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Storefront-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady verifies the session store connection before reporting ready.
func HealthReady(cfg *config.Config, kv redis.Pinger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Storefront-Env", cfg.App.Env)
		if kv != nil {
			if err := kv.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "session store unavailable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
