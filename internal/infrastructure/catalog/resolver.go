package catalog

import (
	"context"
	"errors"
	"time"

	domcatalog "github.com/bookwell/cartsync/internal/domain/catalog"
	"github.com/bookwell/cartsync/internal/infrastructure/cache"
	"github.com/bookwell/cartsync/internal/observability"
	"golang.org/x/sync/singleflight"
)

const (
	componentResolver = "catalog_resolver"
	cacheFillTimeout  = time.Second
)

// CachingResolver fronts the remote catalog with a snapshot cache. Concurrent
// misses for the same service collapse into one upstream lookup.
type CachingResolver struct {
	inner domcatalog.Resolver
	cache cache.SnapshotCache
	sfg   singleflight.Group

	log         observability.Logger
	lookupCount observability.Counter
}

func NewCachingResolver(inner domcatalog.Resolver, snapCache cache.SnapshotCache, tel observability.Observability) *CachingResolver {
	if tel == nil {
		tel = observability.Nop()
	}
	return &CachingResolver{
		inner:       inner,
		cache:       snapCache,
		log:         tel.Logger().With(observability.F("component", componentResolver)),
		lookupCount: tel.Metrics().Counter(observability.MCatalogLookups),
	}
}

func (r *CachingResolver) Resolve(ctx context.Context, serviceID string) (domcatalog.Snapshot, error) {
	v, err, _ := r.sfg.Do(serviceID, func() (any, error) {
		snap, cerr := r.cache.Get(ctx, serviceID)
		if cerr == nil {
			r.count("hit")
			return snap, nil
		}
		if !errors.Is(cerr, cache.ErrCacheMiss) {
			// Log cache errors but continue to the upstream lookup.
			r.log.Warn("snapshot_cache_get_failed",
				observability.F("service_id", serviceID),
				observability.F("error", cerr.Error()),
			)
		}

		snap, rerr := r.inner.Resolve(ctx, serviceID)
		if rerr != nil {
			r.count("error")
			return domcatalog.Snapshot{}, rerr
		}
		r.count("miss")

		go func() {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheFillTimeout)
			defer cancel()
			if serr := r.cache.Set(ctx, serviceID, snap); serr != nil {
				r.log.Warn("snapshot_cache_set_failed",
					observability.F("service_id", serviceID),
					observability.F("error", serr.Error()),
				)
			}
		}()

		return snap, nil
	})
	if err != nil {
		return domcatalog.Snapshot{}, err
	}
	return v.(domcatalog.Snapshot), nil
}

// Invalidate drops a cached snapshot, forcing the next resolve upstream.
func (r *CachingResolver) Invalidate(ctx context.Context, serviceID string) {
	if err := r.cache.Delete(ctx, serviceID); err != nil {
		r.log.Warn("snapshot_cache_invalidate_failed",
			observability.F("service_id", serviceID),
			observability.F("error", err.Error()),
		)
	}
}

func (r *CachingResolver) count(outcome string) {
	if r.lookupCount != nil {
		r.lookupCount.Add(1, observability.L("outcome", outcome))
	}
}
