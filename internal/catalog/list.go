package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atelierluna/storefront-backend/pkg/enums"
	"github.com/atelierluna/storefront-backend/pkg/pagination"
)

// ProductListFilters describe the supported filter knobs for the browse endpoint.
type ProductListFilters struct {
	Category *enums.ProductCategory `json:"category,omitempty"`
	OnPromo  *bool                  `json:"on_promo,omitempty"`
	PriceMin *decimal.Decimal       `json:"price_min,omitempty"`
	PriceMax *decimal.Decimal       `json:"price_max,omitempty"`
	InStock  *bool                  `json:"in_stock,omitempty"`
	Query    string                 `json:"q,omitempty"`
}

// ListProductsInput captures the inputs needed to paginate/filter the catalog.
type ListProductsInput struct {
	Filters    ProductListFilters
	Pagination pagination.Params
}

// ProductSummary is the browse-level projection of a product.
type ProductSummary struct {
	ID             uuid.UUID             `json:"id"`
	Name           string                `json:"name"`
	Category       enums.ProductCategory `json:"category"`
	Price          decimal.Decimal       `json:"price"`
	PromoPrice     *decimal.Decimal      `json:"promo_price,omitempty"`
	OnPromo        bool                  `json:"on_promo"`
	EffectivePrice decimal.Decimal       `json:"effective_price"`
	Stock          int                   `json:"stock"`
	ImagePath      *string               `json:"image_path,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
}

// ProductListResult carries one page of summaries plus the follow-up cursor.
type ProductListResult struct {
	Products   []ProductSummary `json:"products"`
	NextCursor string           `json:"next_cursor,omitempty"`
}
