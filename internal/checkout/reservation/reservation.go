package reservation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelierluna/storefront-backend/pkg/db/models"
	pkgerrors "github.com/atelierluna/storefront-backend/pkg/errors"
)

// StockReservationRequest identifies one cart line's demand against inventory.
type StockReservationRequest struct {
	LineKey   string
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Qty       int
}

// StockReservationResult reports the outcome for one request.
type StockReservationResult struct {
	LineKey   string
	Reserved  bool
	Available int
	Reason    string
}

// ReserveStock decrements inventory for each request inside the caller's
// transaction. The decrement is guarded (stock >= qty in the UPDATE's WHERE
// clause), so the row lock covers the check-and-write and two transactions
// can never both take the last unit. Requests against the same row are
// processed in order; a failed request reports the remaining stock without
// touching it.
func ReserveStock(ctx context.Context, tx *gorm.DB, requests []StockReservationRequest) ([]StockReservationResult, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction handle required")
	}

	results := make([]StockReservationResult, 0, len(requests))
	for _, req := range requests {
		if req.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("reservation quantity must be positive (product %s)", req.ProductID))
		}

		result := StockReservationResult{LineKey: req.LineKey}
		if req.VariantID != nil && *req.VariantID != uuid.Nil {
			res := tx.WithContext(ctx).
				Model(&models.Variant{}).
				Where("id = ? AND stock >= ?", *req.VariantID, req.Qty).
				UpdateColumn("stock", gorm.Expr("stock - ?", req.Qty))
			if res.Error != nil {
				return nil, res.Error
			}
			if res.RowsAffected > 0 {
				result.Reserved = true
			} else {
				available, reason, err := variantShortage(ctx, tx, *req.VariantID)
				if err != nil {
					return nil, err
				}
				result.Available = available
				result.Reason = reason
			}
		} else {
			res := tx.WithContext(ctx).
				Model(&models.Product{}).
				Where("id = ? AND stock >= ?", req.ProductID, req.Qty).
				UpdateColumn("stock", gorm.Expr("stock - ?", req.Qty))
			if res.Error != nil {
				return nil, res.Error
			}
			if res.RowsAffected > 0 {
				result.Reserved = true
			} else {
				available, reason, err := productShortage(ctx, tx, req.ProductID)
				if err != nil {
					return nil, err
				}
				result.Available = available
				result.Reason = reason
			}
		}
		results = append(results, result)
	}
	return results, nil
}

func productShortage(ctx context.Context, tx *gorm.DB, id uuid.UUID) (int, string, error) {
	var product models.Product
	if err := tx.WithContext(ctx).Select("stock").First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, "product no longer exists", nil
		}
		return 0, "", err
	}
	return product.Stock, "insufficient stock", nil
}

func variantShortage(ctx context.Context, tx *gorm.DB, id uuid.UUID) (int, string, error) {
	var variant models.Variant
	if err := tx.WithContext(ctx).Select("stock").First(&variant, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, "variant no longer exists", nil
		}
		return 0, "", err
	}
	return variant.Stock, "insufficient stock", nil
}
