package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/atelierluna/storefront-backend/pkg/config"
	"github.com/atelierluna/storefront-backend/pkg/redis"
)

type stubKV struct {
	values map[string]string
}

func newStubKV() *stubKV {
	return &stubKV{values: map[string]string{}}
}

func (s *stubKV) Set(_ context.Context, key string, value any, _ time.Duration) error {
	switch v := value.(type) {
	case []byte:
		s.values[key] = string(v)
	case string:
		s.values[key] = v
	}
	return nil
}

func (s *stubKV) Get(_ context.Context, key string) (string, error) {
	v, ok := s.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (s *stubKV) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.values, key)
	}
	return nil
}

func (s *stubKV) CartKey(sessionID string) string      { return "cart:" + sessionID }
func (s *stubKV) CouponRefKey(sessionID string) string { return "coupon_ref:" + sessionID }

func testCartConfig() config.CartConfig {
	return config.CartConfig{InactivityTTL: 2 * time.Hour, StorageTTL: 24 * time.Hour}
}

func newTestStore(t *testing.T, kv *stubKV) *Store {
	t.Helper()
	store, err := NewStore(kv, testCartConfig())
	require.NoError(t, err)
	return store
}

func TestLoadCartMissingReturnsEmpty(t *testing.T) {
	store := newTestStore(t, newStubKV())

	state, err := store.LoadCart(context.Background(), "sess-1")
	require.NoError(t, err)
	require.True(t, state.IsEmpty())
	require.Equal(t, CartStateVersion, state.Version)
}

func TestSaveAndLoadCartRoundTrip(t *testing.T) {
	kv := newStubKV()
	store := newTestStore(t, kv)
	ctx := context.Background()

	productID := uuid.New()
	state := NewCartState()
	state.Lines[LineKey(productID, nil)] = CartLine{
		ProductID: productID,
		Name:      "Luna ring",
		UnitPrice: "12500.00",
		Quantity:  2,
	}
	require.NoError(t, store.SaveCart(ctx, "sess-1", state))

	loaded, err := store.LoadCart(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, loaded.Lines, 1)
	line := loaded.Lines[LineKey(productID, nil)]
	require.Equal(t, "12500.00", line.UnitPrice)
	require.Equal(t, 2, line.Quantity)
	require.False(t, loaded.LastTouched.IsZero())
}

func TestLoadCartExpiresAfterInactivityWindow(t *testing.T) {
	kv := newStubKV()
	store := newTestStore(t, kv)
	ctx := context.Background()

	state := NewCartState()
	productID := uuid.New()
	state.Lines[LineKey(productID, nil)] = CartLine{ProductID: productID, UnitPrice: "100", Quantity: 1}
	require.NoError(t, store.SaveCart(ctx, "sess-1", state))

	store.now = func() time.Time { return time.Now().Add(3 * time.Hour) }

	loaded, err := store.LoadCart(ctx, "sess-1")
	require.NoError(t, err)
	require.True(t, loaded.IsEmpty())
	require.Empty(t, kv.values)
}

func TestLoadCartKeepsCartWhenTimestampMissing(t *testing.T) {
	kv := newStubKV()
	store := newTestStore(t, kv)
	ctx := context.Background()

	productID := uuid.New()
	doc := map[string]any{
		"version": CartStateVersion,
		"lines": map[string]any{
			productID.String(): map[string]any{
				"product_id": productID.String(),
				"unit_price": "2500.00",
				"quantity":   1,
			},
		},
	}
	payload, err := json.Marshal(doc)
	require.NoError(t, err)
	kv.values[kv.CartKey("sess-1")] = string(payload)

	store.now = func() time.Time { return time.Now().Add(100 * time.Hour) }

	loaded, err := store.LoadCart(ctx, "sess-1")
	require.NoError(t, err)
	require.False(t, loaded.IsEmpty())
}

func TestLoadCartKeepsCartWhenTimestampMalformed(t *testing.T) {
	kv := newStubKV()
	store := newTestStore(t, kv)
	ctx := context.Background()

	productID := uuid.New()
	payload := `{"version":1,"lines":{"` + productID.String() + `":{"product_id":"` +
		productID.String() + `","unit_price":"2500.00","quantity":2}},"last_touched":"not-a-timestamp"}`
	kv.values[kv.CartKey("sess-1")] = payload

	loaded, err := store.LoadCart(ctx, "sess-1")
	require.NoError(t, err)
	require.False(t, loaded.IsEmpty(), "a bad timestamp must not destroy the cart")
	require.Equal(t, 2, loaded.Lines[productID.String()].Quantity)
	require.Contains(t, kv.values, kv.CartKey("sess-1"), "document stays in the store")
}

func TestLoadCartDiscardsUnreadableDocument(t *testing.T) {
	kv := newStubKV()
	store := newTestStore(t, kv)
	ctx := context.Background()

	kv.values[kv.CartKey("sess-1")] = "{not json"

	loaded, err := store.LoadCart(ctx, "sess-1")
	require.NoError(t, err)
	require.True(t, loaded.IsEmpty())
	require.Empty(t, kv.values)
}

func TestCouponRefLifecycle(t *testing.T) {
	store := newTestStore(t, newStubKV())
	ctx := context.Background()

	code, err := store.CouponRef(ctx, "sess-1")
	require.NoError(t, err)
	require.Empty(t, code)

	require.NoError(t, store.SetCouponRef(ctx, "sess-1", "VERANO25"))

	code, err = store.CouponRef(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, "VERANO25", code)

	require.NoError(t, store.ClearCouponRef(ctx, "sess-1"))

	code, err = store.CouponRef(ctx, "sess-1")
	require.NoError(t, err)
	require.Empty(t, code)
}

func TestLineKeyIncludesVariant(t *testing.T) {
	productID := uuid.New()
	variantID := uuid.New()

	require.Equal(t, productID.String(), LineKey(productID, nil))
	require.Equal(t, productID.String()+":"+variantID.String(), LineKey(productID, &variantID))
}
