package coupons

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelierluna/storefront-backend/pkg/db/models"
	pkgerrors "github.com/atelierluna/storefront-backend/pkg/errors"
)

type couponReader interface {
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	HasRedemption(ctx context.Context, couponID, userID uuid.UUID) (bool, error)
	DeleteRedemptionsByCoupon(ctx context.Context, couponID uuid.UUID) error
}

type sessionRefs interface {
	SetCouponRef(ctx context.Context, sessionID, code string) error
	ClearCouponRef(ctx context.Context, sessionID string) error
}

// Service validates coupons against the window and per-user usage rules.
type Service interface {
	Validate(ctx context.Context, code string, userID uuid.UUID) (*models.Coupon, error)
	Apply(ctx context.Context, sessionID string, userID uuid.UUID, code string) (*models.Coupon, error)
	Remove(ctx context.Context, sessionID string) error
	ResetRedemptions(ctx context.Context, code string) (*models.Coupon, error)
}

type service struct {
	repo    couponReader
	session sessionRefs
	now     func() time.Time
}

// NewService builds the coupon service.
func NewService(repo couponReader, session sessionRefs) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if session == nil {
		return nil, fmt.Errorf("session store required")
	}
	return &service{repo: repo, session: session, now: time.Now}, nil
}

// Validate checks the code exists, is active, is inside its window, and has
// not been redeemed by the user. Lookup is case-insensitive.
func (s *service) Validate(ctx context.Context, code string, userID uuid.UUID) (*models.Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}

	if !coupon.Active {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon is not active")
	}
	now := s.now()
	if now.Before(coupon.ValidFrom) || now.After(coupon.ValidUntil) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon is outside its validity window")
	}

	used, err := s.repo.HasRedemption(ctx, coupon.ID, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check coupon usage")
	}
	if used {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "coupon already redeemed")
	}

	return coupon, nil
}

// Apply validates the code and records it as the session's applied coupon.
func (s *service) Apply(ctx context.Context, sessionID string, userID uuid.UUID, code string) (*models.Coupon, error) {
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	coupon, err := s.Validate(ctx, code, userID)
	if err != nil {
		return nil, err
	}
	if err := s.session.SetCouponRef(ctx, sessionID, coupon.Code); err != nil {
		return nil, err
	}
	return coupon, nil
}

// Remove clears the session's applied coupon, if any.
func (s *service) Remove(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	return s.session.ClearCouponRef(ctx, sessionID)
}

// ResetRedemptions wipes all usage rows for a coupon so it can be handed out
// again. Staff-only; route guards enforce that.
func (s *service) ResetRedemptions(ctx context.Context, code string) (*models.Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}
	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	if err := s.repo.DeleteRedemptionsByCoupon(ctx, coupon.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset coupon redemptions")
	}
	return coupon, nil
}
