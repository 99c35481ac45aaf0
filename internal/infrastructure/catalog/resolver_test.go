package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domcatalog "github.com/bookwell/cartsync/internal/domain/catalog"
	"github.com/bookwell/cartsync/internal/infrastructure/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingResolver struct {
	mu    sync.Mutex
	calls int
	snap  domcatalog.Snapshot
	err   error
}

func (r *countingResolver) Resolve(context.Context, string) (domcatalog.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return domcatalog.Snapshot{}, r.err
	}
	return r.snap, nil
}

func (r *countingResolver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestResolveCacheHitSkipsUpstream(t *testing.T) {
	snapCache := cache.NewMemoryCache(time.Minute)
	cached := domcatalog.Snapshot{ServiceID: "svc-1", DisplayName: "Haircut", UnitPrice: 2500}
	require.NoError(t, snapCache.Set(context.Background(), "svc-1", cached))

	inner := &countingResolver{}
	r := NewCachingResolver(inner, snapCache, nil)

	got, err := r.Resolve(context.Background(), "svc-1")
	require.NoError(t, err)
	assert.Equal(t, cached, got)
	assert.Zero(t, inner.count())
}

func TestResolveMissGoesUpstreamAndFillsCache(t *testing.T) {
	snapCache := cache.NewMemoryCache(time.Minute)
	inner := &countingResolver{snap: domcatalog.Snapshot{ServiceID: "svc-1", UnitPrice: 2500}}
	r := NewCachingResolver(inner, snapCache, nil)

	got, err := r.Resolve(context.Background(), "svc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2500), got.UnitPrice)
	assert.Equal(t, 1, inner.count())

	// The fill happens asynchronously.
	require.Eventually(t, func() bool {
		_, cerr := snapCache.Get(context.Background(), "svc-1")
		return cerr == nil
	}, time.Second, 5*time.Millisecond)
}

func TestResolveUpstreamErrorPropagates(t *testing.T) {
	inner := &countingResolver{err: domcatalog.ErrNotFound}
	r := NewCachingResolver(inner, cache.NewMemoryCache(time.Minute), nil)

	_, err := r.Resolve(context.Background(), "svc-1")
	assert.ErrorIs(t, err, domcatalog.ErrNotFound)
}

func TestResolveCacheErrorFallsThroughToUpstream(t *testing.T) {
	inner := &countingResolver{snap: domcatalog.Snapshot{ServiceID: "svc-1", UnitPrice: 100}}
	r := NewCachingResolver(inner, failingCache{}, nil)

	got, err := r.Resolve(context.Background(), "svc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.UnitPrice)
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) (domcatalog.Snapshot, error) {
	return domcatalog.Snapshot{}, errors.New("cache down")
}
func (failingCache) Set(context.Context, string, domcatalog.Snapshot) error {
	return errors.New("cache down")
}
func (failingCache) Delete(context.Context, string) error { return errors.New("cache down") }

func TestInvalidateForcesNextResolveUpstream(t *testing.T) {
	snapCache := cache.NewMemoryCache(time.Minute)
	require.NoError(t, snapCache.Set(context.Background(), "svc-1", domcatalog.Snapshot{ServiceID: "svc-1"}))

	inner := &countingResolver{snap: domcatalog.Snapshot{ServiceID: "svc-1", UnitPrice: 3000}}
	r := NewCachingResolver(inner, snapCache, nil)
	r.Invalidate(context.Background(), "svc-1")

	got, err := r.Resolve(context.Background(), "svc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3000), got.UnitPrice)
	assert.Equal(t, 1, inner.count())
}
