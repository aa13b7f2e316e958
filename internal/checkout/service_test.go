package checkout

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/atelierluna/storefront-backend/internal/catalog"
	"github.com/atelierluna/storefront-backend/internal/coupons"
	"github.com/atelierluna/storefront-backend/internal/orders"
	"github.com/atelierluna/storefront-backend/internal/session"
	"github.com/atelierluna/storefront-backend/pkg/config"
	"github.com/atelierluna/storefront-backend/pkg/db/models"
	"github.com/atelierluna/storefront-backend/pkg/enums"
	pkgerrors "github.com/atelierluna/storefront-backend/pkg/errors"
	"github.com/atelierluna/storefront-backend/pkg/logger"
	"github.com/atelierluna/storefront-backend/pkg/metrics"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type memorySessions struct {
	carts   map[string]*session.CartState
	coupons map[string]string
}

func newMemorySessions() *memorySessions {
	return &memorySessions{
		carts:   map[string]*session.CartState{},
		coupons: map[string]string{},
	}
}

func (m *memorySessions) LoadCart(_ context.Context, sessionID string) (*session.CartState, error) {
	if state, ok := m.carts[sessionID]; ok {
		return state, nil
	}
	return session.NewCartState(), nil
}

func (m *memorySessions) DeleteCart(_ context.Context, sessionID string) error {
	delete(m.carts, sessionID)
	return nil
}

func (m *memorySessions) CouponRef(_ context.Context, sessionID string) (string, error) {
	return m.coupons[sessionID], nil
}

func (m *memorySessions) ClearCouponRef(_ context.Context, sessionID string) error {
	delete(m.coupons, sessionID)
	return nil
}

type harness struct {
	db       *gorm.DB
	sessions *memorySessions
	svc      Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dsn := "file:checkout_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Product{},
		&models.Variant{},
		&models.Coupon{},
		&models.CouponRedemption{},
		&models.Order{},
		&models.OrderLine{},
	))

	sessions := newMemorySessions()
	logg := logger.New(logger.Options{ServiceName: "checkout-test", Output: io.Discard})

	svc, err := NewService(
		gormTxRunner{db: db},
		sessions,
		catalog.NewRepository(db),
		coupons.NewRepository(db),
		orders.NewRepository(db),
		config.ShippingConfig{FreeThreshold: "30000", FlatFee: "5000"},
		nil,
		metrics.NewCheckoutMetrics(nil),
		logg,
	)
	require.NoError(t, err)

	return &harness{db: db, sessions: sessions, svc: svc}
}

func (h *harness) seedProduct(t *testing.T, name, price string, stock int) *models.Product {
	t.Helper()
	product := models.Product{
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		IsActive: true,
	}
	require.NoError(t, h.db.Create(&product).Error)
	return &product
}

func (h *harness) seedCart(sessionID string, lines ...session.CartLine) {
	state := session.NewCartState()
	for _, line := range lines {
		state.Lines[session.LineKey(line.ProductID, line.VariantID)] = line
	}
	h.sessions.carts[sessionID] = state
}

func (h *harness) productStock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var product models.Product
	require.NoError(t, h.db.First(&product, "id = ?", id).Error)
	return product.Stock
}

func (h *harness) orderCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, h.db.Model(&models.Order{}).Count(&count).Error)
	return count
}

func shippingInput() CheckoutInput {
	return CheckoutInput{
		Address:    "Calle Luna 5",
		City:       "Sevilla",
		PostalCode: "41001",
		Phone:      "600111222",
	}
}

func TestExecuteSingleItemBelowThreshold(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	userID := uuid.New()

	product := h.seedProduct(t, "Aura ring", "1000", 5)
	h.seedCart("s1", session.CartLine{
		ProductID: product.ID,
		Name:      product.Name,
		UnitPrice: "1000",
		Quantity:  1,
	})

	order, err := h.svc.Execute(ctx, "s1", userID, shippingInput())
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPendingPayment, order.Status)
	require.True(t, order.Total.Equal(decimal.RequireFromString("6000")),
		"1000 subtotal plus the 5000 flat fee, got %s", order.Total)
	require.Len(t, order.Lines, 1)
	require.True(t, order.Lines[0].UnitPrice.Equal(decimal.RequireFromString("1000")))

	require.Equal(t, 4, h.productStock(t, product.ID))

	// session cleared after commit
	_, hasCart := h.sessions.carts["s1"]
	require.False(t, hasCart)

	loaded, err := orders.NewRepository(h.db).FindByIDAndUser(ctx, order.ID, userID)
	require.NoError(t, err)
	require.Len(t, loaded.Lines, 1)
}

func TestExecuteSequentialBuyersLastUnit(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	product := h.seedProduct(t, "Mar necklace", "2000", 1)
	line := session.CartLine{ProductID: product.ID, Name: product.Name, UnitPrice: "2000", Quantity: 1}
	h.seedCart("buyer-a", line)
	h.seedCart("buyer-b", line)

	_, err := h.svc.Execute(ctx, "buyer-a", uuid.New(), shippingInput())
	require.NoError(t, err)

	_, err = h.svc.Execute(ctx, "buyer-b", uuid.New(), shippingInput())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeConflict, typed.Code())
	require.Contains(t, typed.Message(), "Mar necklace")
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	require.Equal(t, 0, details["available"])

	require.Equal(t, 0, h.productStock(t, product.ID))
	require.EqualValues(t, 1, h.orderCount(t))

	// the failed buyer keeps their cart for another attempt
	_, hasCart := h.sessions.carts["buyer-b"]
	require.True(t, hasCart)
}

func TestExecuteFreezesCurrentEffectivePrice(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	product := h.seedProduct(t, "Eclipse earrings", "1000", 3)
	// the price dropped to a promo after the line was added
	promo := decimal.RequireFromString("800")
	product.OnPromo = true
	product.PromoPrice = &promo
	require.NoError(t, h.db.Save(product).Error)

	h.seedCart("s1", session.CartLine{
		ProductID: product.ID,
		Name:      product.Name,
		UnitPrice: "1000",
		Quantity:  2,
	})

	order, err := h.svc.Execute(ctx, "s1", uuid.New(), shippingInput())
	require.NoError(t, err)
	require.Len(t, order.Lines, 1)
	require.True(t, order.Lines[0].UnitPrice.Equal(promo),
		"order lines freeze the price read inside the transaction, got %s", order.Lines[0].UnitPrice)
	require.True(t, order.Total.Equal(decimal.RequireFromString("6600")),
		"2x800 plus the flat fee, got %s", order.Total)
}

func TestExecuteShortageRollsBackEverything(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	plenty := h.seedProduct(t, "Aura ring", "1000", 5)
	scarce := h.seedProduct(t, "Mar necklace", "2000", 1)

	h.seedCart("s1",
		session.CartLine{ProductID: plenty.ID, Name: plenty.Name, UnitPrice: "1000", Quantity: 3},
		session.CartLine{ProductID: scarce.ID, Name: scarce.Name, UnitPrice: "2000", Quantity: 2},
	)

	_, err := h.svc.Execute(ctx, "s1", uuid.New(), shippingInput())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeConflict, typed.Code())

	// no decrement survives the rollback, in either order of processing
	require.Equal(t, 5, h.productStock(t, plenty.ID))
	require.Equal(t, 1, h.productStock(t, scarce.ID))
	require.EqualValues(t, 0, h.orderCount(t))
}

func TestExecuteVariantLineDecrementsVariantStock(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	product := h.seedProduct(t, "Eclipse earrings", "1500", 0)
	variant := models.Variant{ProductID: product.ID, Name: "Gold", Stock: 2}
	require.NoError(t, h.db.Create(&variant).Error)

	h.seedCart("s1", session.CartLine{
		ProductID: product.ID,
		VariantID: &variant.ID,
		Name:      product.Name,
		UnitPrice: "1500",
		Quantity:  1,
	})

	order, err := h.svc.Execute(ctx, "s1", uuid.New(), shippingInput())
	require.NoError(t, err)
	require.Len(t, order.Lines, 1)
	require.Equal(t, "Eclipse earrings (Gold)", order.Lines[0].Name)
	require.NotNil(t, order.Lines[0].VariantID)

	var reloaded models.Variant
	require.NoError(t, h.db.First(&reloaded, "id = ?", variant.ID).Error)
	require.Equal(t, 1, reloaded.Stock)
	require.Equal(t, 0, h.productStock(t, product.ID), "product stock must not move for variant lines")
}

func TestExecuteVariantShortageNamesVariant(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	product := h.seedProduct(t, "Eclipse earrings", "1500", 0)
	variant := models.Variant{ProductID: product.ID, Name: "Gold", Stock: 1}
	require.NoError(t, h.db.Create(&variant).Error)

	h.seedCart("s1", session.CartLine{
		ProductID: product.ID,
		VariantID: &variant.ID,
		Name:      product.Name,
		UnitPrice: "1500",
		Quantity:  2,
	})

	_, err := h.svc.Execute(ctx, "s1", uuid.New(), shippingInput())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeConflict, typed.Code())
	require.Contains(t, typed.Message(), "Eclipse earrings (Gold)")
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	require.Equal(t, "Eclipse earrings (Gold)", details["item"])
}

func TestExecuteSkipsDeactivatedProducts(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	keep := h.seedProduct(t, "Aura ring", "1000", 5)
	retired := h.seedProduct(t, "Retired piece", "2000", 5)
	retired.IsActive = false
	require.NoError(t, h.db.Save(retired).Error)

	h.seedCart("s1",
		session.CartLine{ProductID: keep.ID, Name: keep.Name, UnitPrice: "1000", Quantity: 1},
		session.CartLine{ProductID: retired.ID, Name: retired.Name, UnitPrice: "2000", Quantity: 1},
	)

	order, err := h.svc.Execute(ctx, "s1", uuid.New(), shippingInput())
	require.NoError(t, err)
	require.Len(t, order.Lines, 1, "deactivated listings never reach the order")
	require.Equal(t, "Aura ring", order.Lines[0].Name)
	require.True(t, order.Total.Equal(decimal.RequireFromString("6000")), "got %s", order.Total)
	require.Equal(t, 5, h.productStock(t, retired.ID), "deactivated stock untouched")
}

func TestExecuteAppliedCouponDiscountsAndRedeems(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	userID := uuid.New()

	product := h.seedProduct(t, "Sol pendant", "10000", 10)
	coupon := models.Coupon{
		Code:            "SAVE10",
		DiscountPercent: 10,
		ValidFrom:       time.Now().Add(-time.Hour),
		ValidUntil:      time.Now().Add(time.Hour),
		Active:          true,
	}
	require.NoError(t, h.db.Create(&coupon).Error)

	h.seedCart("s1", session.CartLine{
		ProductID: product.ID,
		Name:      product.Name,
		UnitPrice: "10000",
		Quantity:  5,
	})
	h.sessions.coupons["s1"] = "SAVE10"

	order, err := h.svc.Execute(ctx, "s1", userID, shippingInput())
	require.NoError(t, err)
	// 50000 minus 10%, over the free-shipping threshold
	require.True(t, order.Total.Equal(decimal.RequireFromString("45000")), "got %s", order.Total)

	used, err := coupons.NewRepository(h.db).HasRedemption(ctx, coupon.ID, userID)
	require.NoError(t, err)
	require.True(t, used)

	_, hasRef := h.sessions.coupons["s1"]
	require.False(t, hasRef, "coupon reference cleared after checkout")
}

func TestExecuteExistingRedemptionDoesNotFailOrder(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	userID := uuid.New()

	product := h.seedProduct(t, "Sol pendant", "10000", 10)
	coupon := models.Coupon{
		Code:            "SAVE10",
		DiscountPercent: 10,
		ValidFrom:       time.Now().Add(-time.Hour),
		ValidUntil:      time.Now().Add(time.Hour),
		Active:          true,
	}
	require.NoError(t, h.db.Create(&coupon).Error)
	// another request already landed the redemption row for this user
	require.NoError(t, h.db.Create(&models.CouponRedemption{CouponID: coupon.ID, UserID: userID}).Error)

	h.seedCart("s1", session.CartLine{
		ProductID: product.ID,
		Name:      product.Name,
		UnitPrice: "10000",
		Quantity:  5,
	})
	h.sessions.coupons["s1"] = "SAVE10"

	order, err := h.svc.Execute(ctx, "s1", userID, shippingInput())
	require.NoError(t, err, "a duplicate redemption row must not fail the order")
	require.True(t, order.Total.Equal(decimal.RequireFromString("45000")), "got %s", order.Total)

	var redemptions int64
	require.NoError(t, h.db.Model(&models.CouponRedemption{}).
		Where("coupon_id = ?", coupon.ID).Count(&redemptions).Error)
	require.EqualValues(t, 1, redemptions)
}

func TestExecuteVanishedCouponRefIsIgnored(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	product := h.seedProduct(t, "Aura ring", "1000", 5)
	h.seedCart("s1", session.CartLine{
		ProductID: product.ID,
		Name:      product.Name,
		UnitPrice: "1000",
		Quantity:  1,
	})
	h.sessions.coupons["s1"] = "GHOST"

	order, err := h.svc.Execute(ctx, "s1", uuid.New(), shippingInput())
	require.NoError(t, err)
	require.True(t, order.Total.Equal(decimal.RequireFromString("6000")),
		"no discount from a coupon that no longer exists, got %s", order.Total)

	var redemptions int64
	require.NoError(t, h.db.Model(&models.CouponRedemption{}).Count(&redemptions).Error)
	require.EqualValues(t, 0, redemptions)
}

func TestExecuteEmptyCart(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Execute(ctx, "s1", uuid.New(), shippingInput())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	require.Equal(t, "cart is empty", typed.Message())
	require.EqualValues(t, 0, h.orderCount(t))
}

func TestExecuteCartWithOnlyDeletedProducts(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	// the product was removed from the catalog after the line was added
	h.seedCart("s1", session.CartLine{
		ProductID: uuid.New(),
		Name:      "Retired piece",
		UnitPrice: "1000",
		Quantity:  1,
	})

	_, err := h.svc.Execute(ctx, "s1", uuid.New(), shippingInput())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	require.EqualValues(t, 0, h.orderCount(t))
}

func TestExecuteValidatesShippingFields(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	input := shippingInput()
	input.Address = "  "
	_, err := h.svc.Execute(ctx, "s1", uuid.New(), input)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
}
