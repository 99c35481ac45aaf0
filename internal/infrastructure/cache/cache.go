package cache

import (
	"context"
	"errors"

	"github.com/bookwell/cartsync/internal/domain/catalog"
)

// SnapshotCache stores resolved catalog snapshots keyed by service id.
type SnapshotCache interface {
	Get(ctx context.Context, serviceID string) (catalog.Snapshot, error)
	Set(ctx context.Context, serviceID string, snap catalog.Snapshot) error
	Delete(ctx context.Context, serviceID string) error
}

var ErrCacheMiss = errors.New("cache miss")
