package admin

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domcart "github.com/bookwell/cartsync/internal/domain/cart"
	"github.com/bookwell/cartsync/internal/domain/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRemote struct {
	mu       sync.Mutex
	listFn   func(ctx context.Context) ([]*domcart.Cart, error)
	fetchFn  func(ctx context.Context, ownerID string) (*domcart.Cart, error)
	updateFn func(ctx context.Context, cartID, itemID string, quantity int) (*domcart.LineItem, error)
	removeFn func(ctx context.Context, cartID, itemID string) error
	addFn    func(ctx context.Context, cartID, serviceID string, quantity int) (*domcart.LineItem, error)
}

func (s *stubRemote) FetchOrCreate(ctx context.Context, ownerID string) (*domcart.Cart, error) {
	s.mu.Lock()
	fn := s.fetchFn
	s.mu.Unlock()
	if fn == nil {
		return nil, errors.New("unexpected FetchOrCreate")
	}
	return fn(ctx, ownerID)
}

func (s *stubRemote) AddItem(ctx context.Context, cartID, serviceID string, quantity int) (*domcart.LineItem, error) {
	s.mu.Lock()
	fn := s.addFn
	s.mu.Unlock()
	if fn == nil {
		return nil, errors.New("unexpected AddItem")
	}
	return fn(ctx, cartID, serviceID, quantity)
}

func (s *stubRemote) UpdateItemQuantity(ctx context.Context, cartID, itemID string, quantity int) (*domcart.LineItem, error) {
	s.mu.Lock()
	fn := s.updateFn
	s.mu.Unlock()
	if fn == nil {
		return nil, errors.New("unexpected UpdateItemQuantity")
	}
	return fn(ctx, cartID, itemID, quantity)
}

func (s *stubRemote) RemoveItem(ctx context.Context, cartID, itemID string) error {
	s.mu.Lock()
	fn := s.removeFn
	s.mu.Unlock()
	if fn == nil {
		return errors.New("unexpected RemoveItem")
	}
	return fn(ctx, cartID, itemID)
}

func (s *stubRemote) ListCarts(ctx context.Context) ([]*domcart.Cart, error) {
	s.mu.Lock()
	fn := s.listFn
	s.mu.Unlock()
	if fn == nil {
		return nil, errors.New("unexpected ListCarts")
	}
	return fn(ctx)
}

type stubResolver struct {
	mu    sync.Mutex
	snaps map[string]catalog.Snapshot
}

func (r *stubResolver) Resolve(_ context.Context, serviceID string) (catalog.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.snaps[serviceID]
	if !ok {
		return catalog.Snapshot{}, catalog.ErrNotFound
	}
	return snap, nil
}

func snapshotFixture(serviceID string, price, seconds int64) catalog.Snapshot {
	return catalog.Snapshot{
		ServiceID:       serviceID,
		DisplayName:     serviceID,
		UnitPrice:       price,
		DurationSeconds: seconds,
		Available:       true,
		ResolvedAt:      time.Now().UTC(),
	}
}

func twoCartFixture() []*domcart.Cart {
	a := domcart.New("cart-a", "owner-a")
	a.Items = []*domcart.LineItem{
		{ID: "li-1", ServiceID: "svc-haircut", Quantity: 2},
	}
	b := domcart.New("cart-b", "owner-b")
	b.Items = []*domcart.LineItem{
		{ID: "li-2", ServiceID: "svc-massage", Quantity: 1},
		{ID: "li-3", ServiceID: "svc-retired", Quantity: 4},
	}
	return []*domcart.Cart{b, a}
}

func newLoadedService(t *testing.T, remote *stubRemote) *Service {
	t.Helper()
	remote.mu.Lock()
	remote.listFn = func(context.Context) ([]*domcart.Cart, error) { return twoCartFixture(), nil }
	remote.mu.Unlock()

	resolver := &stubResolver{snaps: map[string]catalog.Snapshot{
		"svc-haircut": snapshotFixture("svc-haircut", 2500, 1800),
		"svc-massage": snapshotFixture("svc-massage", 5000, 3600),
		// svc-retired is deliberately missing from the catalog.
	}}

	svc := NewService(remote, resolver, nil, nil, time.Second)
	require.NoError(t, svc.Load(context.Background()))
	return svc
}

func TestLoadIndexesEveryCartSorted(t *testing.T) {
	svc := newLoadedService(t, &stubRemote{})

	carts := svc.Carts()
	require.Len(t, carts, 2)
	assert.Equal(t, "cart-a", carts[0].ID)
	assert.Equal(t, "cart-b", carts[1].ID)
}

func TestLoadKeepsFailedLookupAsSentinel(t *testing.T) {
	svc := newLoadedService(t, &stubRemote{})

	c, err := svc.Cart("cart-b")
	require.NoError(t, err)
	require.Len(t, c.Items, 2)

	// The retired service's line survives with the sentinel snapshot; the
	// cart is flagged but the healthy line still totals normally.
	retired := c.Items[1]
	assert.True(t, retired.Snapshot.IsUnknown())
	assert.True(t, c.Totals.HasUnavailable)
	assert.Equal(t, int64(5000), c.Totals.TotalPrice)
	assert.Equal(t, int64(3600), c.Totals.TotalDurationSeconds)
	assert.Equal(t, 2, c.Totals.ItemCount)

	// The other cart is unaffected.
	other, err := svc.Cart("cart-a")
	require.NoError(t, err)
	assert.False(t, other.Totals.HasUnavailable)
	assert.Equal(t, int64(5000), other.Totals.TotalPrice)
}

func TestLoadFailsWhenListFails(t *testing.T) {
	remote := &stubRemote{
		listFn: func(context.Context) ([]*domcart.Cart, error) { return nil, errors.New("boom") },
	}
	svc := NewService(remote, &stubResolver{}, nil, nil, time.Second)
	assert.Error(t, svc.Load(context.Background()))
}

func TestCartNotFound(t *testing.T) {
	svc := newLoadedService(t, &stubRemote{})

	_, err := svc.Cart("cart-z")
	assert.ErrorIs(t, err, ErrCartNotFound)
	assert.ErrorIs(t, svc.UpdateQuantity(context.Background(), "cart-z", "li-1", 2), ErrCartNotFound)
	assert.ErrorIs(t, svc.RemoveItem(context.Background(), "cart-z", "li-1"), ErrCartNotFound)
}

func TestUpdateQuantityScopedToOneCart(t *testing.T) {
	remote := &stubRemote{
		updateFn: func(_ context.Context, _, itemID string, quantity int) (*domcart.LineItem, error) {
			return &domcart.LineItem{ID: itemID, ServiceID: "svc-haircut", Quantity: quantity}, nil
		},
	}
	svc := newLoadedService(t, remote)
	otherBefore, err := svc.Cart("cart-b")
	require.NoError(t, err)

	require.NoError(t, svc.UpdateQuantity(context.Background(), "cart-a", "li-1", 3))

	updated, err := svc.Cart("cart-a")
	require.NoError(t, err)
	assert.Equal(t, int64(7500), updated.Totals.TotalPrice)

	otherAfter, err := svc.Cart("cart-b")
	require.NoError(t, err)
	assert.Equal(t, otherBefore.Totals, otherAfter.Totals)
}

func TestUpdateQuantityRollbackInIndexedCart(t *testing.T) {
	remote := &stubRemote{
		updateFn: func(context.Context, string, string, int) (*domcart.LineItem, error) {
			return nil, errors.New("conflict")
		},
	}
	svc := newLoadedService(t, remote)
	before, err := svc.Cart("cart-a")
	require.NoError(t, err)

	err = svc.UpdateQuantity(context.Background(), "cart-a", "li-1", 9)
	require.Error(t, err)

	after, cerr := svc.Cart("cart-a")
	require.NoError(t, cerr)
	assert.Equal(t, before.Totals, after.Totals)
	assert.Equal(t, 2, after.Items[0].Quantity)
}

func TestCreateOrGetIndexesOwnerCart(t *testing.T) {
	remote := &stubRemote{
		listFn: func(context.Context) ([]*domcart.Cart, error) { return nil, nil },
		fetchFn: func(_ context.Context, ownerID string) (*domcart.Cart, error) {
			c := domcart.New("cart-new", ownerID)
			c.Items = []*domcart.LineItem{{ID: "li-1", ServiceID: "svc-haircut", Quantity: 1}}
			return c, nil
		},
	}
	resolver := &stubResolver{snaps: map[string]catalog.Snapshot{
		"svc-haircut": snapshotFixture("svc-haircut", 2500, 1800),
	}}
	svc := NewService(remote, resolver, nil, nil, time.Second)
	require.NoError(t, svc.Load(context.Background()))

	c, err := svc.CreateOrGet(context.Background(), "owner-x")
	require.NoError(t, err)
	assert.Equal(t, "cart-new", c.ID)
	assert.Equal(t, int64(2500), c.Totals.TotalPrice)

	indexed, err := svc.Cart("cart-new")
	require.NoError(t, err)
	assert.Equal(t, c.Totals, indexed.Totals)
}

func TestAddItemToIndexedCart(t *testing.T) {
	remote := &stubRemote{
		addFn: func(_ context.Context, _, serviceID string, quantity int) (*domcart.LineItem, error) {
			return &domcart.LineItem{ID: "li-9", ServiceID: serviceID, Quantity: quantity}, nil
		},
	}
	svc := newLoadedService(t, remote)

	li, err := svc.AddItem(context.Background(), "cart-a", "svc-massage", 1)
	require.NoError(t, err)
	assert.Equal(t, "li-9", li.ID)

	c, err := svc.Cart("cart-a")
	require.NoError(t, err)
	require.Len(t, c.Items, 2)
	assert.Equal(t, int64(10000), c.Totals.TotalPrice)
}
