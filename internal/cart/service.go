package cart

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/atelierluna/storefront-backend/internal/session"
	"github.com/atelierluna/storefront-backend/pkg/db/models"
	pkgerrors "github.com/atelierluna/storefront-backend/pkg/errors"
)

type catalogReader interface {
	FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindVariantByID(ctx context.Context, id uuid.UUID) (*models.Variant, error)
}

type stateStore interface {
	LoadCart(ctx context.Context, sessionID string) (*session.CartState, error)
	SaveCart(ctx context.Context, sessionID string, state *session.CartState) error
	DeleteCart(ctx context.Context, sessionID string) error
}

// LineView is a cart line priced against the current catalog.
type LineView struct {
	Key       string          `json:"key"`
	ProductID uuid.UUID       `json:"product_id"`
	VariantID *uuid.UUID      `json:"variant_id,omitempty"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// View is the priced cart presented to the buyer.
type View struct {
	Lines []LineView      `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

// Service exposes session cart operations.
type Service interface {
	Add(ctx context.Context, sessionID string, productID uuid.UUID, variantID *uuid.UUID) (*session.CartState, error)
	Decrement(ctx context.Context, sessionID string, productID uuid.UUID, variantID *uuid.UUID) (*session.CartState, error)
	Remove(ctx context.Context, sessionID string, productID uuid.UUID, variantID *uuid.UUID) (*session.CartState, error)
	Clear(ctx context.Context, sessionID string) error
	View(ctx context.Context, sessionID string) (*View, error)
}

type service struct {
	store   stateStore
	catalog catalogReader
}

// NewService builds a cart service backed by the session store and catalog.
func NewService(store stateStore, catalog catalogReader) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("session store required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	return &service{store: store, catalog: catalog}, nil
}

// Add inserts a line with quantity 1 or increments the existing one. The
// effective price is snapshotted at add time for display; money paths
// re-derive it from the catalog.
func (s *service) Add(ctx context.Context, sessionID string, productID uuid.UUID, variantID *uuid.UUID) (*session.CartState, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	product, err := s.loadProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if variantID != nil && *variantID != uuid.Nil {
		if err := s.checkVariant(ctx, productID, *variantID); err != nil {
			return nil, err
		}
	} else {
		variantID = nil
	}

	state, err := s.store.LoadCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	key := session.LineKey(productID, variantID)
	if line, ok := state.Lines[key]; ok {
		line.Quantity++
		state.Lines[key] = line
	} else {
		state.Lines[key] = session.CartLine{
			ProductID: productID,
			VariantID: variantID,
			Name:      product.Name,
			UnitPrice: product.EffectivePrice().String(),
			Quantity:  1,
		}
	}

	if err := s.store.SaveCart(ctx, sessionID, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Decrement lowers the line quantity by one and deletes the line at zero.
func (s *service) Decrement(ctx context.Context, sessionID string, productID uuid.UUID, variantID *uuid.UUID) (*session.CartState, error) {
	state, err := s.store.LoadCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	key := session.LineKey(productID, variantID)
	line, ok := state.Lines[key]
	if !ok {
		return state, nil
	}
	line.Quantity--
	if line.Quantity <= 0 {
		delete(state.Lines, key)
	} else {
		state.Lines[key] = line
	}

	if err := s.store.SaveCart(ctx, sessionID, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Remove deletes the line entirely; missing lines are a no-op.
func (s *service) Remove(ctx context.Context, sessionID string, productID uuid.UUID, variantID *uuid.UUID) (*session.CartState, error) {
	state, err := s.store.LoadCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	key := session.LineKey(productID, variantID)
	if _, ok := state.Lines[key]; !ok {
		return state, nil
	}
	delete(state.Lines, key)

	if err := s.store.SaveCart(ctx, sessionID, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Clear empties the session cart.
func (s *service) Clear(ctx context.Context, sessionID string) error {
	return s.store.DeleteCart(ctx, sessionID)
}

// View prices the cart against the current catalog. Lines whose product has
// been deleted or deactivated are dropped from the stored cart as a side
// effect.
func (s *service) View(ctx context.Context, sessionID string) (*View, error) {
	state, err := s.store.LoadCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	view := &View{Lines: []LineView{}, Total: decimal.Zero}
	pruned := false

	for key, line := range state.Lines {
		product, err := s.catalog.FindProductByID(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				delete(state.Lines, key)
				pruned = true
				continue
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product for cart total")
		}
		if !product.IsActive {
			delete(state.Lines, key)
			pruned = true
			continue
		}

		unit := product.EffectivePrice()
		lineTotal := unit.Mul(decimal.NewFromInt(int64(line.Quantity)))
		view.Lines = append(view.Lines, LineView{
			Key:       key,
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			Name:      product.Name,
			UnitPrice: unit,
			Quantity:  line.Quantity,
			LineTotal: lineTotal,
		})
		view.Total = view.Total.Add(lineTotal)
	}

	sort.Slice(view.Lines, func(i, j int) bool { return view.Lines[i].Key < view.Lines[j].Key })

	if pruned {
		if err := s.store.SaveCart(ctx, sessionID, state); err != nil {
			return nil, err
		}
	}

	return view, nil
}

func (s *service) loadProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.catalog.FindProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
	}
	return product, nil
}

func (s *service) checkVariant(ctx context.Context, productID, variantID uuid.UUID) error {
	variant, err := s.catalog.FindVariantByID(ctx, variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
	}
	if variant.ProductID != productID {
		return pkgerrors.New(pkgerrors.CodeValidation, "variant does not belong to product")
	}
	return nil
}
