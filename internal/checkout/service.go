package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/atelierluna/storefront-backend/internal/cart"
	"github.com/atelierluna/storefront-backend/internal/catalog"
	"github.com/atelierluna/storefront-backend/internal/checkout/reservation"
	"github.com/atelierluna/storefront-backend/internal/coupons"
	"github.com/atelierluna/storefront-backend/internal/orders"
	"github.com/atelierluna/storefront-backend/internal/pricing"
	"github.com/atelierluna/storefront-backend/internal/session"
	"github.com/atelierluna/storefront-backend/pkg/config"
	"github.com/atelierluna/storefront-backend/pkg/db/models"
	"github.com/atelierluna/storefront-backend/pkg/enums"
	pkgerrors "github.com/atelierluna/storefront-backend/pkg/errors"
	"github.com/atelierluna/storefront-backend/pkg/logger"
	"github.com/atelierluna/storefront-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type sessionStore interface {
	LoadCart(ctx context.Context, sessionID string) (*session.CartState, error)
	DeleteCart(ctx context.Context, sessionID string) error
	CouponRef(ctx context.Context, sessionID string) (string, error)
	ClearCouponRef(ctx context.Context, sessionID string) error
}

type reservationRunner interface {
	Reserve(ctx context.Context, tx *gorm.DB, requests []reservation.StockReservationRequest) ([]reservation.StockReservationResult, error)
}

type reservationEngine struct{}

func (reservationEngine) Reserve(ctx context.Context, tx *gorm.DB, requests []reservation.StockReservationRequest) ([]reservation.StockReservationResult, error) {
	return reservation.ReserveStock(ctx, tx, requests)
}

// CheckoutInput carries the validated shipping fields from the form intake.
type CheckoutInput struct {
	Address    string
	City       string
	PostalCode string
	Phone      string
}

// Service executes checkout orchestration.
type Service interface {
	Execute(ctx context.Context, sessionID string, userID uuid.UUID, input CheckoutInput) (*models.Order, error)
}

type service struct {
	tx       txRunner
	sessions sessionStore
	catalog  *catalog.Repository
	coupons  *coupons.Repository
	orders   orders.Repository
	shipping config.ShippingConfig
	reserve  reservationRunner
	metrics  *metrics.CheckoutMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	sessions sessionStore,
	catalogRepo *catalog.Repository,
	couponRepo *coupons.Repository,
	ordersRepo orders.Repository,
	shipping config.ShippingConfig,
	reserve reservationRunner,
	checkoutMetrics *metrics.CheckoutMetrics,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session store required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if couponRepo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if reserve == nil {
		reserve = reservationEngine{}
	}
	return &service{
		tx:       tx,
		sessions: sessions,
		catalog:  catalogRepo,
		coupons:  couponRepo,
		orders:   ordersRepo,
		shipping: shipping,
		reserve:  reserve,
		metrics:  checkoutMetrics,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// workItem pairs a cart line with the rows it references, loaded inside the
// checkout transaction.
type workItem struct {
	key     string
	line    session.CartLine
	product *models.Product
	variant *models.Variant
}

// Execute runs the whole checkout as one transaction: re-price from the
// current catalog, take guarded stock decrements per line, create the order
// with frozen unit prices, record the coupon redemption, and only then clear
// the session state.
func (s *service) Execute(ctx context.Context, sessionID string, userID uuid.UUID, input CheckoutInput) (*models.Order, error) {
	start := s.now()
	order, couponUsed, err := s.execute(ctx, sessionID, userID, input)
	if err != nil {
		outcome := failureReason(err)
		s.metrics.ObserveDuration(outcome, s.now().Sub(start))
		s.metrics.IncFailure(outcome)
		return nil, err
	}

	s.metrics.ObserveDuration("success", s.now().Sub(start))
	s.metrics.IncSuccess(couponUsed)
	s.cleanupSession(ctx, sessionID)
	return order, nil
}

func (s *service) execute(ctx context.Context, sessionID string, userID uuid.UUID, input CheckoutInput) (*models.Order, bool, error) {
	if sessionID == "" {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if userID == uuid.Nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if err := validateShipping(input); err != nil {
		return nil, false, err
	}

	// Empty carts never open a transaction.
	state, err := s.sessions.LoadCart(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	if state.IsEmpty() {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	couponCode, err := s.sessions.CouponRef(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}

	var created *models.Order
	couponUsed := false
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		catalogRepo := s.catalog.WithTx(tx)
		couponRepo := s.coupons.WithTx(tx)
		ordersRepo := s.orders.WithTx(tx)

		items, err := loadWorkItems(ctx, catalogRepo, state)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		requests := make([]reservation.StockReservationRequest, len(items))
		for i, item := range items {
			requests[i] = reservation.StockReservationRequest{
				LineKey:   item.key,
				ProductID: item.line.ProductID,
				VariantID: item.line.VariantID,
				Qty:       item.line.Quantity,
			}
		}
		results, err := s.reserve.Reserve(ctx, tx, requests)
		if err != nil {
			return err
		}
		for i, result := range results {
			if result.Reserved {
				continue
			}
			name := lineName(items[i])
			return pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("insufficient stock of %s", name)).
				WithDetails(map[string]any{
					"item":      name,
					"requested": items[i].line.Quantity,
					"available": result.Available,
				})
		}

		// The decrements above hold the row locks; re-derive the prices that
		// get frozen into the order lines.
		view := &cart.View{Lines: make([]cart.LineView, 0, len(items)), Total: decimal.Zero}
		for i := range items {
			product, err := catalogRepo.FindProductByID(ctx, items[i].line.ProductID)
			if err != nil {
				return err
			}
			items[i].product = product
			unit := product.EffectivePrice()
			lineTotal := unit.Mul(decimal.NewFromInt(int64(items[i].line.Quantity)))
			view.Lines = append(view.Lines, cart.LineView{
				Key:       items[i].key,
				ProductID: product.ID,
				VariantID: items[i].line.VariantID,
				Name:      lineName(items[i]),
				UnitPrice: unit,
				Quantity:  items[i].line.Quantity,
				LineTotal: lineTotal,
			})
			view.Total = view.Total.Add(lineTotal)
		}

		coupon, err := resolveCoupon(ctx, couponRepo, couponCode)
		if err != nil {
			return err
		}

		quote := pricing.Compute(view, coupon, s.shipping)

		order := &models.Order{
			UserID:     userID,
			Status:     enums.OrderStatusPendingPayment,
			Total:      quote.GrandTotal,
			Address:    strings.TrimSpace(input.Address),
			City:       strings.TrimSpace(input.City),
			PostalCode: strings.TrimSpace(input.PostalCode),
			Phone:      strings.TrimSpace(input.Phone),
		}
		if _, err := ordersRepo.CreateOrder(ctx, order); err != nil {
			return err
		}

		lines := make([]models.OrderLine, 0, len(items))
		for i, item := range items {
			lines = append(lines, models.OrderLine{
				OrderID:   order.ID,
				ProductID: item.product.ID,
				VariantID: item.line.VariantID,
				Name:      view.Lines[i].Name,
				Quantity:  item.line.Quantity,
				UnitPrice: view.Lines[i].UnitPrice,
			})
		}
		if err := ordersRepo.CreateOrderLines(ctx, lines); err != nil {
			return err
		}
		order.Lines = lines

		// Best-effort redemption: a coupon that vanished between application
		// and checkout never blocks the order, and a concurrent checkout by
		// the same user landing the row first degrades to a no-op insert.
		if coupon != nil {
			if err := couponRepo.CreateRedemption(ctx, coupon.ID, userID); err != nil {
				return err
			}
			couponUsed = true
		}

		created = order
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return created, couponUsed, nil
}

// loadWorkItems resolves cart lines against the tx-scoped catalog. Lines
// whose product or variant has been deleted, or whose product has been
// deactivated, are dropped silently. Items come back in deterministic key
// order so overlapping checkouts lock rows in the same sequence.
func loadWorkItems(ctx context.Context, catalogRepo *catalog.Repository, state *session.CartState) ([]workItem, error) {
	items := make([]workItem, 0, len(state.Lines))
	for key, line := range state.Lines {
		product, err := catalogRepo.FindProductByID(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product for checkout")
		}
		if !product.IsActive {
			continue
		}

		item := workItem{key: key, line: line, product: product}
		if line.VariantID != nil {
			variant, err := catalogRepo.FindVariantByID(ctx, *line.VariantID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					continue
				}
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant for checkout")
			}
			item.variant = variant
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].key < items[j].key })
	return items, nil
}

// cleanupSession clears the cart and coupon reference after commit. Failures
// here leave a stale session but never a broken order, so they only warn.
func (s *service) cleanupSession(ctx context.Context, sessionID string) {
	if err := s.sessions.DeleteCart(ctx, sessionID); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "session_id", sessionID), "clearing cart after checkout failed")
	}
	if err := s.sessions.ClearCouponRef(ctx, sessionID); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "session_id", sessionID), "clearing coupon reference after checkout failed")
	}
}

func resolveCoupon(ctx context.Context, repo *coupons.Repository, code string) (*models.Coupon, error) {
	if code == "" {
		return nil, nil
	}
	coupon, err := repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve coupon for checkout")
	}
	return coupon, nil
}

func lineName(item workItem) string {
	if item.variant != nil {
		return fmt.Sprintf("%s (%s)", item.product.Name, item.variant.Name)
	}
	return item.product.Name
}

func validateShipping(input CheckoutInput) error {
	missing := func(field, label string) error {
		return pkgerrors.New(pkgerrors.CodeValidation, label+" is required").
			WithDetails(map[string]any{"field": field})
	}
	if strings.TrimSpace(input.Address) == "" {
		return missing("address", "shipping address")
	}
	if strings.TrimSpace(input.City) == "" {
		return missing("city", "city")
	}
	if strings.TrimSpace(input.PostalCode) == "" {
		return missing("postal_code", "postal code")
	}
	if strings.TrimSpace(input.Phone) == "" {
		return missing("phone", "phone")
	}
	return nil
}

func failureReason(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return "internal"
	}
	switch typed.Code() {
	case pkgerrors.CodeConflict:
		return "insufficient_stock"
	case pkgerrors.CodeValidation:
		return "validation"
	default:
		return strings.ToLower(string(typed.Code()))
	}
}
