package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atelierluna/storefront-backend/pkg/config"
	pkgerrors "github.com/atelierluna/storefront-backend/pkg/errors"
	"github.com/atelierluna/storefront-backend/pkg/redis"
)

// CartStateVersion tags the persisted document layout.
const CartStateVersion = 1

// CartLine is one entry in the session cart. UnitPrice is the effective
// price snapshotted as a decimal string when the line was added; display
// only, re-derived from the catalog before any money moves.
type CartLine struct {
	ProductID uuid.UUID  `json:"product_id"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Name      string     `json:"name"`
	UnitPrice string     `json:"unit_price"`
	Quantity  int        `json:"quantity"`
}

// CartState is the per-session cart document persisted in Redis.
type CartState struct {
	Version     int                 `json:"version"`
	Lines       map[string]CartLine `json:"lines"`
	LastTouched time.Time           `json:"last_touched"`
}

// UnmarshalJSON decodes the stored document, tolerating a corrupt
// last-touched stamp: a bad timestamp means "no expiry info", never a reason
// to destroy the lines. Only a document whose lines are unreadable errors.
func (s *CartState) UnmarshalJSON(data []byte) error {
	var doc struct {
		Version     int                 `json:"version"`
		Lines       map[string]CartLine `json:"lines"`
		LastTouched json.RawMessage     `json:"last_touched"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	s.Version = doc.Version
	s.Lines = doc.Lines
	s.LastTouched = time.Time{}
	if len(doc.LastTouched) > 0 {
		var touched time.Time
		if json.Unmarshal(doc.LastTouched, &touched) == nil {
			s.LastTouched = touched
		}
	}
	return nil
}

// NewCartState returns an empty cart document.
func NewCartState() *CartState {
	return &CartState{
		Version: CartStateVersion,
		Lines:   map[string]CartLine{},
	}
}

// IsEmpty reports whether the cart has no lines.
func (s *CartState) IsEmpty() bool {
	return s == nil || len(s.Lines) == 0
}

// LineKey builds the map key for a product, suffixed with the variant when present.
func LineKey(productID uuid.UUID, variantID *uuid.UUID) string {
	if variantID != nil && *variantID != uuid.Nil {
		return fmt.Sprintf("%s:%s", productID, *variantID)
	}
	return productID.String()
}

type kv interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	CartKey(sessionID string) string
	CouponRefKey(sessionID string) string
}

// Store persists session cart state and applied coupon references.
type Store struct {
	kv  kv
	cfg config.CartConfig
	now func() time.Time
}

// NewStore builds a session store backed by the provided key-value client.
func NewStore(client kv, cfg config.CartConfig) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("kv client required")
	}
	return &Store{kv: client, cfg: cfg, now: time.Now}, nil
}

// LoadCart returns the session's cart, applying the inactivity window. A cart
// whose last activity is older than the window is discarded and replaced by
// an empty one. A missing or unreadable last-activity timestamp keeps the
// cart alive rather than expiring it.
func (s *Store) LoadCart(ctx context.Context, sessionID string) (*CartState, error) {
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}

	raw, err := s.kv.Get(ctx, s.kv.CartKey(sessionID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return NewCartState(), nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart state")
	}

	var state CartState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		// Lines themselves are unreadable: discard rather than block the
		// session. A corrupt timestamp alone never reaches this path.
		if err := s.DeleteCart(ctx, sessionID); err != nil {
			return nil, err
		}
		return NewCartState(), nil
	}
	if state.Lines == nil {
		state.Lines = map[string]CartLine{}
	}

	if !state.LastTouched.IsZero() && s.now().Sub(state.LastTouched) > s.cfg.InactivityTTL {
		if err := s.DeleteCart(ctx, sessionID); err != nil {
			return nil, err
		}
		return NewCartState(), nil
	}

	return &state, nil
}

// SaveCart stamps the activity timestamp and persists the cart.
func (s *Store) SaveCart(ctx context.Context, sessionID string, state *CartState) error {
	if sessionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if state == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart state is required")
	}

	state.Version = CartStateVersion
	state.LastTouched = s.now()

	payload, err := json.Marshal(state)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart state")
	}
	if err := s.kv.Set(ctx, s.kv.CartKey(sessionID), payload, s.cfg.StorageTTL); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cart state")
	}
	return nil
}

// DeleteCart removes the session's cart document.
func (s *Store) DeleteCart(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if err := s.kv.Del(ctx, s.kv.CartKey(sessionID)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart state")
	}
	return nil
}

// CouponRef returns the coupon code the session has applied, or empty.
func (s *Store) CouponRef(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	code, err := s.kv.Get(ctx, s.kv.CouponRefKey(sessionID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon reference")
	}
	return code, nil
}

// SetCouponRef records the coupon code applied by the session.
func (s *Store) SetCouponRef(ctx context.Context, sessionID, code string) error {
	if sessionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if code == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}
	if err := s.kv.Set(ctx, s.kv.CouponRefKey(sessionID), code, s.cfg.StorageTTL); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist coupon reference")
	}
	return nil
}

// ClearCouponRef removes the session's applied coupon, if any.
func (s *Store) ClearCouponRef(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if err := s.kv.Del(ctx, s.kv.CouponRefKey(sessionID)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear coupon reference")
	}
	return nil
}
