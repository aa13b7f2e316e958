package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/atelierluna/storefront-backend/pkg/db/models"
	pkgerrors "github.com/atelierluna/storefront-backend/pkg/errors"
)

type stubProductReader struct {
	product *models.Product
	err     error
	list    *ProductListResult
	listErr error
	saved   *models.Product
}

func (s *stubProductReader) FindProductByID(context.Context, uuid.UUID) (*models.Product, error) {
	return s.product, s.err
}

func (s *stubProductReader) ListProductSummaries(context.Context, ListProductsInput) (*ProductListResult, error) {
	return s.list, s.listErr
}

func (s *stubProductReader) SaveProduct(_ context.Context, product *models.Product) (*models.Product, error) {
	s.saved = product
	return product, nil
}

func TestGetProductMapsMissingRowToNotFound(t *testing.T) {
	svc, err := NewService(&stubProductReader{err: gorm.ErrRecordNotFound})
	require.NoError(t, err)

	_, err = svc.GetProduct(context.Background(), uuid.New())
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestGetProductHidesInactiveListing(t *testing.T) {
	svc, err := NewService(&stubProductReader{product: &models.Product{
		ID:       uuid.New(),
		Name:     "Retired",
		Price:    decimal.RequireFromString("100"),
		IsActive: false,
	}})
	require.NoError(t, err)

	_, err = svc.GetProduct(context.Background(), uuid.New())
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestGetProductRequiresID(t *testing.T) {
	svc, err := NewService(&stubProductReader{})
	require.NoError(t, err)

	_, err = svc.GetProduct(context.Background(), uuid.Nil)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestUpdateStockSavesNewCount(t *testing.T) {
	repo := &stubProductReader{product: &models.Product{
		ID:       uuid.New(),
		Name:     "Aura ring",
		Price:    decimal.RequireFromString("1000"),
		Stock:    2,
		IsActive: true,
	}}
	svc, err := NewService(repo)
	require.NoError(t, err)

	updated, err := svc.UpdateStock(context.Background(), repo.product.ID, 7)
	require.NoError(t, err)
	require.Equal(t, 7, updated.Stock)
	require.NotNil(t, repo.saved)
	require.Equal(t, 7, repo.saved.Stock)
}

func TestUpdateStockRejectsNegativeCount(t *testing.T) {
	svc, err := NewService(&stubProductReader{})
	require.NoError(t, err)

	_, err = svc.UpdateStock(context.Background(), uuid.New(), -1)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestUpdateStockMissingProduct(t *testing.T) {
	svc, err := NewService(&stubProductReader{err: gorm.ErrRecordNotFound})
	require.NoError(t, err)

	_, err = svc.UpdateStock(context.Background(), uuid.New(), 3)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestListProductsPassesThrough(t *testing.T) {
	expected := &ProductListResult{Products: []ProductSummary{{Name: "Aura ring"}}}
	svc, err := NewService(&stubProductReader{list: expected})
	require.NoError(t, err)

	got, err := svc.ListProducts(context.Background(), ListProductsInput{})
	require.NoError(t, err)
	require.Equal(t, expected, got)
}
