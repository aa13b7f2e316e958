package controllers

import (
	"net/http"

	"github.com/atelierluna/storefront-backend/api/responses"
	"github.com/atelierluna/storefront-backend/api/validators"
	checkoutsvc "github.com/atelierluna/storefront-backend/internal/checkout"
	pkgerrors "github.com/atelierluna/storefront-backend/pkg/errors"
	"github.com/atelierluna/storefront-backend/pkg/logger"
)

type checkoutRequest struct {
	Address    string `json:"address" validate:"required,min=1,max=255"`
	City       string `json:"city" validate:"required,min=1,max=128"`
	PostalCode string `json:"postal_code" validate:"required,min=1,max=16"`
	Phone      string `json:"phone" validate:"required,min=1,max=32"`
}

// Checkout places the order for the session cart.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		sessionID, err := sessionIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Execute(r.Context(), sessionID, userID, checkoutsvc.CheckoutInput{
			Address:    payload.Address,
			City:       payload.City,
			PostalCode: payload.PostalCode,
			Phone:      payload.Phone,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderView(order))
	}
}
