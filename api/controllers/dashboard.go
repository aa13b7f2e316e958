package controllers

import (
	"net/http"

	"github.com/atelierluna/storefront-backend/api/responses"
	dashboardsvc "github.com/atelierluna/storefront-backend/internal/dashboard"
	pkgerrors "github.com/atelierluna/storefront-backend/pkg/errors"
	"github.com/atelierluna/storefront-backend/pkg/logger"
)

// Dashboard serves the cached staff aggregates.
func Dashboard(svc *dashboardsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dashboard service unavailable"))
			return
		}

		snapshot, err := svc.Snapshot(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, snapshot)
	}
}
