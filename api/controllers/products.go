package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atelierluna/storefront-backend/api/responses"
	"github.com/atelierluna/storefront-backend/api/validators"
	"github.com/atelierluna/storefront-backend/internal/catalog"
	"github.com/atelierluna/storefront-backend/pkg/db/models"
	"github.com/atelierluna/storefront-backend/pkg/enums"
	pkgerrors "github.com/atelierluna/storefront-backend/pkg/errors"
	"github.com/atelierluna/storefront-backend/pkg/logger"
	"github.com/atelierluna/storefront-backend/pkg/pagination"
)

type variantView struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Stock int       `json:"stock"`
}

type productDetailView struct {
	ID             uuid.UUID             `json:"id"`
	Name           string                `json:"name"`
	Description    *string               `json:"description,omitempty"`
	Category       enums.ProductCategory `json:"category"`
	Price          decimal.Decimal       `json:"price"`
	PromoPrice     *decimal.Decimal      `json:"promo_price,omitempty"`
	OnPromo        bool                  `json:"on_promo"`
	EffectivePrice decimal.Decimal       `json:"effective_price"`
	Stock          int                   `json:"stock"`
	ImagePath      *string               `json:"image_path,omitempty"`
	Variants       []variantView         `json:"variants"`
	CreatedAt      time.Time             `json:"created_at"`
}

func newProductDetail(product *models.Product) productDetailView {
	variants := make([]variantView, 0, len(product.Variants))
	for _, variant := range product.Variants {
		variants = append(variants, variantView{
			ID:    variant.ID,
			Name:  variant.Name,
			Stock: variant.Stock,
		})
	}
	return productDetailView{
		ID:             product.ID,
		Name:           product.Name,
		Description:    product.Description,
		Category:       product.Category,
		Price:          product.Price,
		PromoPrice:     product.PromoPrice,
		OnPromo:        product.OnPromo,
		EffectivePrice: product.EffectivePrice(),
		Stock:          product.Stock,
		ImagePath:      product.ImagePath,
		Variants:       variants,
		CreatedAt:      product.CreatedAt,
	}
}

// ProductList serves the public browse endpoint with filters and cursor pagination.
func ProductList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		input, err := parseListInput(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListProducts(r.Context(), *input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// ProductDetail serves a single active listing.
func ProductDetail(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		id, err := validators.ParsePathUUID(chi.URLParam(r, "productID"), "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.GetProduct(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newProductDetail(product))
	}
}

type stockUpdateRequest struct {
	Stock *int `json:"stock" validate:"required,gte=0"`
}

// ProductStockUpdate lets staff set a product's stock count directly.
func ProductStockUpdate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		id, err := validators.ParsePathUUID(chi.URLParam(r, "productID"), "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req stockUpdateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.UpdateStock(r.Context(), id, *req.Stock)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newProductDetail(product))
	}
}

func parseListInput(r *http.Request) (*catalog.ListProductsInput, error) {
	input := catalog.ListProductsInput{}

	if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
		category, err := enums.ParseProductCategory(raw)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown category").WithDetails(map[string]any{"field": "category"})
		}
		input.Filters.Category = &category
	}

	onPromo, err := validators.ParseQueryBool(r, "on_promo")
	if err != nil {
		return nil, err
	}
	input.Filters.OnPromo = onPromo

	inStock, err := validators.ParseQueryBool(r, "in_stock")
	if err != nil {
		return nil, err
	}
	input.Filters.InStock = inStock

	priceMin, err := validators.ParseQueryDecimal(r, "price_min")
	if err != nil {
		return nil, err
	}
	input.Filters.PriceMin = priceMin

	priceMax, err := validators.ParseQueryDecimal(r, "price_max")
	if err != nil {
		return nil, err
	}
	input.Filters.PriceMax = priceMax

	input.Filters.Query = strings.TrimSpace(r.URL.Query().Get("q"))

	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return nil, err
	}
	input.Pagination = pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}

	return &input, nil
}
