package cart

import (
	"context"
	"time"

	domcart "github.com/bookwell/cartsync/internal/domain/cart"
	"github.com/bookwell/cartsync/internal/domain/catalog"
	"github.com/bookwell/cartsync/internal/domain/event"
	"github.com/bookwell/cartsync/internal/observability"
	"golang.org/x/sync/singleflight"
)

// Service is the owner-facing synchronization engine: one cart mirror,
// located implicitly by the owner's account. It lives for the session; the
// mirror is resolved at most once and individual lines churn independently.
type Service struct {
	ownerID   string
	remote    RemoteStore
	resolver  catalog.Resolver
	publisher event.Publisher
	timeout   time.Duration

	sync *Syncer
	sfg  singleflight.Group // collapses concurrent create-or-get calls
}

func NewService(ownerID string, remote RemoteStore, resolver catalog.Resolver, publisher event.Publisher, tel observability.Observability, timeout time.Duration) *Service {
	return &Service{
		ownerID:   ownerID,
		remote:    remote,
		resolver:  resolver,
		publisher: publisher,
		timeout:   timeout,
		sync:      NewSyncer(remote, resolver, publisher, tel, timeout),
	}
}

func (s *Service) OwnerID() string { return s.ownerID }

// Cart returns a recomputed copy of the current mirror, nil when unresolved.
func (s *Service) Cart() *domcart.Cart { return s.sync.Cart() }

// CreateOrGetCart is idempotent: once a mirror is cached it is returned
// as-is, otherwise a single create-or-fetch request is issued even under
// concurrent callers. On failure the mirror stays unresolved so the caller
// can retry.
func (s *Service) CreateOrGetCart(ctx context.Context) (*domcart.Cart, error) {
	if c := s.sync.Cart(); c != nil {
		return c, nil
	}

	v, err, _ := s.sfg.Do("create_or_get", func() (any, error) {
		if c := s.sync.Cart(); c != nil {
			return c, nil
		}

		rctx, cancel := context.WithTimeout(ctx, s.timeout)
		rec, rerr := s.remote.FetchOrCreate(rctx, s.ownerID)
		cancel()
		if rerr != nil {
			return nil, syncErr(domcart.OpCreateOrGet, "", "", rerr)
		}

		for _, li := range rec.Items {
			li.Snapshot = s.sync.resolveSnapshot(ctx, li.ServiceID)
		}
		s.sync.Install(rec)
		s.sync.publish(ctx, domcart.NewChangedEvent(rec, domcart.OpCreateOrGet))
		return s.sync.Cart(), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domcart.Cart), nil
}

// AddItem resolves the current cart first (creating it when absent), then
// delegates to the shared syncer.
func (s *Service) AddItem(ctx context.Context, serviceID string, quantity int) (*domcart.LineItem, error) {
	if quantity < 1 {
		return nil, domcart.ErrInvalidQuantity
	}
	if _, err := s.CreateOrGetCart(ctx); err != nil {
		return nil, err
	}
	return s.sync.AddItem(ctx, serviceID, quantity)
}

func (s *Service) UpdateQuantity(ctx context.Context, itemID string, quantity int) error {
	return s.sync.UpdateQuantity(ctx, itemID, quantity)
}

func (s *Service) RemoveItem(ctx context.Context, itemID string) error {
	return s.sync.RemoveItem(ctx, itemID)
}

// RefreshSnapshots re-resolves stale catalog snapshots so long-lived mirrors
// do not serve outdated prices before checkout-adjacent actions.
func (s *Service) RefreshSnapshots(ctx context.Context, maxAge time.Duration) error {
	return s.sync.RefreshSnapshots(ctx, maxAge)
}
