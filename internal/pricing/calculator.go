package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/atelierluna/storefront-backend/internal/cart"
	"github.com/atelierluna/storefront-backend/pkg/config"
	"github.com/atelierluna/storefront-backend/pkg/db/models"
	pkgerrors "github.com/atelierluna/storefront-backend/pkg/errors"
)

var oneHundred = decimal.NewFromInt(100)

type cartViewer interface {
	View(ctx context.Context, sessionID string) (*cart.View, error)
}

type couponResolver interface {
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
}

type couponRefStore interface {
	CouponRef(ctx context.Context, sessionID string) (string, error)
	ClearCouponRef(ctx context.Context, sessionID string) error
}

// Quote is the full price breakdown for a session's cart.
type Quote struct {
	Lines                []cart.LineView `json:"lines"`
	Subtotal             decimal.Decimal `json:"subtotal"`
	Discount             decimal.Decimal `json:"discount"`
	Shipping             decimal.Decimal `json:"shipping"`
	GrandTotal           decimal.Decimal `json:"grand_total"`
	CouponCode           string          `json:"coupon_code,omitempty"`
	DiscountPercent      int             `json:"discount_percent,omitempty"`
	FreeShippingProgress int             `json:"free_shipping_progress"`
}

// Calculator derives totals from cart contents, the applied coupon, and the
// shipping configuration. It owns no state of its own.
type Calculator struct {
	carts   cartViewer
	coupons couponResolver
	refs    couponRefStore
	cfg     config.ShippingConfig
}

// NewCalculator builds the pricing calculator.
func NewCalculator(carts cartViewer, coupons couponResolver, refs couponRefStore, cfg config.ShippingConfig) (*Calculator, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart viewer required")
	}
	if coupons == nil {
		return nil, fmt.Errorf("coupon resolver required")
	}
	if refs == nil {
		return nil, fmt.Errorf("coupon ref store required")
	}
	return &Calculator{carts: carts, coupons: coupons, refs: refs, cfg: cfg}, nil
}

// QuoteSession prices the session's cart. A coupon reference that no longer
// resolves contributes no discount and is cleared from the session.
func (c *Calculator) QuoteSession(ctx context.Context, sessionID string) (*Quote, error) {
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}

	view, err := c.carts.View(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	code, err := c.refs.CouponRef(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var coupon *models.Coupon
	if code != "" {
		coupon, err = c.coupons.FindByCode(ctx, code)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve applied coupon")
			}
			// The coupon vanished since it was applied: drop the stale reference.
			if err := c.refs.ClearCouponRef(ctx, sessionID); err != nil {
				return nil, err
			}
			coupon = nil
		}
	}

	quote := c.Compute(view, coupon)
	return quote, nil
}

// Compute derives the breakdown from an already-priced cart view and an
// optional resolved coupon.
func (c *Calculator) Compute(view *cart.View, coupon *models.Coupon) *Quote {
	return Compute(view, coupon, c.cfg)
}

// Compute is the pure pricing function. The checkout path calls it directly
// with tx-scoped reads instead of going through the session calculator.
func Compute(view *cart.View, coupon *models.Coupon, cfg config.ShippingConfig) *Quote {
	quote := &Quote{
		Lines:      view.Lines,
		Subtotal:   view.Total,
		Discount:   decimal.Zero,
		Shipping:   decimal.Zero,
		GrandTotal: decimal.Zero,
	}

	if coupon != nil {
		quote.CouponCode = coupon.Code
		quote.DiscountPercent = coupon.DiscountPercent
		quote.Discount = quote.Subtotal.
			Mul(decimal.NewFromInt(int64(coupon.DiscountPercent))).
			Div(oneHundred)
		// Never discount below zero total.
		if quote.Discount.GreaterThan(quote.Subtotal) {
			quote.Discount = quote.Subtotal
		}
	}

	discounted := quote.Subtotal.Sub(quote.Discount)
	threshold := cfg.FreeThresholdAmount()

	if quote.Subtotal.IsPositive() && discounted.LessThan(threshold) {
		quote.Shipping = cfg.FlatFeeAmount()
	}

	quote.GrandTotal = discounted.Add(quote.Shipping)
	quote.FreeShippingProgress = freeShippingProgress(discounted, threshold)
	return quote
}

func freeShippingProgress(discounted, threshold decimal.Decimal) int {
	if !threshold.IsPositive() {
		return 100
	}
	ratio := discounted.Mul(oneHundred).Div(threshold)
	progress := int(ratio.IntPart())
	if progress < 0 {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return progress
}
