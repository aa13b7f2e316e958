package controllers

import (
	"net/http"

	"github.com/atelierluna/storefront-backend/api/responses"
	"github.com/atelierluna/storefront-backend/api/validators"
	couponsvc "github.com/atelierluna/storefront-backend/internal/coupons"
	pkgerrors "github.com/atelierluna/storefront-backend/pkg/errors"
	"github.com/atelierluna/storefront-backend/pkg/logger"
)

type couponRequest struct {
	Code string `json:"code" validate:"required,min=1,max=64"`
}

type couponView struct {
	Code            string `json:"code"`
	DiscountPercent int    `json:"discount_percent"`
}

// CouponApply validates the code and records it against the session.
func CouponApply(svc couponsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
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

		var payload couponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		coupon, err := svc.Apply(r.Context(), sessionID, userID, payload.Code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, couponView{
			Code:            coupon.Code,
			DiscountPercent: coupon.DiscountPercent,
		})
	}
}

// CouponRemove clears the session's applied coupon.
func CouponRemove(svc couponsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}

		sessionID, err := sessionIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Remove(r.Context(), sessionID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "removed"})
	}
}

// CouponResetRedemptions wipes a coupon's usage rows. Staff only.
func CouponResetRedemptions(svc couponsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}

		var payload couponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		coupon, err := svc.ResetRedemptions(r.Context(), payload.Code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, couponView{
			Code:            coupon.Code,
			DiscountPercent: coupon.DiscountPercent,
		})
	}
}
