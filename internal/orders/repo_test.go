package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/atelierluna/storefront-backend/pkg/db/models"
	"github.com/atelierluna/storefront-backend/pkg/enums"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Order{}, &models.OrderLine{}); err != nil {
		t.Fatalf("migrate order tables: %v", err)
	}
	return db
}

func TestCreateAndFetchOrderWithLines(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	order, err := repo.CreateOrder(ctx, &models.Order{
		UserID:     userID,
		Status:     enums.OrderStatusPendingPayment,
		Total:      decimal.RequireFromString("6000"),
		Address:    "Calle Luna 5",
		City:       "Sevilla",
		PostalCode: "41001",
		Phone:      "600111222",
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, order.ID)

	lines := []models.OrderLine{
		{
			OrderID:   order.ID,
			ProductID: uuid.New(),
			Name:      "Aura ring",
			Quantity:  1,
			UnitPrice: decimal.RequireFromString("1000"),
		},
	}
	require.NoError(t, repo.CreateOrderLines(ctx, lines))

	loaded, err := repo.FindByIDAndUser(ctx, order.ID, userID)
	require.NoError(t, err)
	require.Len(t, loaded.Lines, 1)
	require.True(t, loaded.Lines[0].UnitPrice.Equal(decimal.RequireFromString("1000")))

	_, err = repo.FindByIDAndUser(ctx, order.ID, uuid.New())
	require.ErrorIs(t, err, gorm.ErrRecordNotFound, "orders are owner-scoped")
}

func TestListByUserNewestFirst(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	for _, total := range []string{"1000", "2000"} {
		_, err := repo.CreateOrder(ctx, &models.Order{
			UserID:     userID,
			Status:     enums.OrderStatusPendingPayment,
			Total:      decimal.RequireFromString(total),
			Address:    "Calle Luna 5",
			City:       "Sevilla",
			PostalCode: "41001",
			Phone:      "600111222",
		})
		require.NoError(t, err)
	}
	// another user's order stays invisible
	_, err := repo.CreateOrder(ctx, &models.Order{
		UserID:     uuid.New(),
		Status:     enums.OrderStatusPendingPayment,
		Total:      decimal.RequireFromString("999"),
		Address:    "Otra 1",
		City:       "Madrid",
		PostalCode: "28001",
		Phone:      "600000000",
	})
	require.NoError(t, err)

	rows, err := repo.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}
