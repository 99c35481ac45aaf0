package admin

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	appcart "github.com/bookwell/cartsync/internal/application/cart"
	domcart "github.com/bookwell/cartsync/internal/domain/cart"
	"github.com/bookwell/cartsync/internal/domain/catalog"
	"github.com/bookwell/cartsync/internal/domain/event"
	"github.com/bookwell/cartsync/internal/observability"
	"github.com/bookwell/cartsync/internal/observability/logctx"
	"golang.org/x/sync/errgroup"
)

// ErrCartNotFound means the index holds no entry for the requested cart id.
var ErrCartNotFound = errors.New("admin: cart not found")

const (
	componentAdmin = "admin_index"
	// loadConcurrency bounds catalog lookups during a bulk load.
	loadConcurrency = 8
)

// Service maintains the administrative index: every cart in the system,
// keyed by cart id, each mirror mutated through the same synchronization
// core as the owner view but addressed explicitly by (cartID, itemID).
type Service struct {
	remote    appcart.RemoteStore
	resolver  catalog.Resolver
	publisher event.Publisher
	tel       observability.Observability
	timeout   time.Duration
	log       observability.Logger

	mu      sync.RWMutex
	entries map[string]*appcart.Syncer
}

func NewService(remote appcart.RemoteStore, resolver catalog.Resolver, publisher event.Publisher, tel observability.Observability, timeout time.Duration) *Service {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Service{
		remote:    remote,
		resolver:  resolver,
		publisher: publisher,
		tel:       tel,
		timeout:   timeout,
		log:       tel.Logger().With(observability.F("component", componentAdmin)),
		entries:   make(map[string]*appcart.Syncer),
	}
}

// Load bulk-fetches every cart and resolves each line's catalog snapshot. A
// line whose lookup fails is kept with the unknown-service sentinel so the
// administrator still sees a row to act on; one bad lookup never hides a
// cart. Lookups run with bounded concurrency.
func (s *Service) Load(ctx context.Context) error {
	logger := logctx.FromOr(ctx, s.log)

	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	carts, err := s.remote.ListCarts(rctx)
	cancel()
	if err != nil {
		return fmt.Errorf("admin: list carts: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)
	for _, rec := range carts {
		rec := rec
		for _, li := range rec.Items {
			li := li
			g.Go(func() error {
				snapCtx, cancel := context.WithTimeout(gctx, s.timeout)
				defer cancel()
				snap, rerr := s.resolver.Resolve(snapCtx, li.ServiceID)
				if rerr != nil {
					logger.Warn("catalog_resolve_failed",
						observability.F("cart_id", rec.ID),
						observability.F("service_id", li.ServiceID),
						observability.F("error", rerr.Error()),
					)
					snap = catalog.Unknown(li.ServiceID)
				}
				li.Snapshot = snap
				return nil
			})
		}
	}
	// Resolution errors degrade to sentinels; the group never fails.
	_ = g.Wait()

	entries := make(map[string]*appcart.Syncer, len(carts))
	for _, rec := range carts {
		sy := appcart.NewSyncer(s.remote, s.resolver, s.publisher, s.tel, s.timeout)
		sy.Install(rec)
		entries[rec.ID] = sy
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()

	logger.Info("admin_index_loaded", observability.F("carts", len(entries)))
	return nil
}

// CreateOrGet fetches (or creates) the cart of a specific owner and indexes
// it, returning the mirrored aggregate.
func (s *Service) CreateOrGet(ctx context.Context, ownerID string) (*domcart.Cart, error) {
	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	rec, err := s.remote.FetchOrCreate(rctx, ownerID)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("admin: fetch cart for owner %s: %w", ownerID, err)
	}

	for _, li := range rec.Items {
		snapCtx, cancel := context.WithTimeout(ctx, s.timeout)
		snap, rerr := s.resolver.Resolve(snapCtx, li.ServiceID)
		cancel()
		if rerr != nil {
			snap = catalog.Unknown(li.ServiceID)
		}
		li.Snapshot = snap
	}

	sy := appcart.NewSyncer(s.remote, s.resolver, s.publisher, s.tel, s.timeout)
	sy.Install(rec)

	s.mu.Lock()
	s.entries[rec.ID] = sy
	s.mu.Unlock()

	return sy.Cart(), nil
}

// Carts returns a copy of every indexed aggregate, ordered by cart id for
// stable display.
func (s *Service) Carts() []*domcart.Cart {
	s.mu.RLock()
	out := make([]*domcart.Cart, 0, len(s.entries))
	for _, sy := range s.entries {
		out = append(out, sy.Cart())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Cart returns one indexed aggregate.
func (s *Service) Cart(cartID string) (*domcart.Cart, error) {
	sy, err := s.entry(cartID)
	if err != nil {
		return nil, err
	}
	return sy.Cart(), nil
}

// AddItem adds a line to an explicitly addressed cart. Recomputation is
// scoped to that cart alone; the index is never recomputed wholesale.
func (s *Service) AddItem(ctx context.Context, cartID, serviceID string, quantity int) (*domcart.LineItem, error) {
	sy, err := s.entry(cartID)
	if err != nil {
		return nil, err
	}
	return sy.AddItem(ctx, serviceID, quantity)
}

func (s *Service) UpdateQuantity(ctx context.Context, cartID, itemID string, quantity int) error {
	sy, err := s.entry(cartID)
	if err != nil {
		return err
	}
	return sy.UpdateQuantity(ctx, itemID, quantity)
}

func (s *Service) RemoveItem(ctx context.Context, cartID, itemID string) error {
	sy, err := s.entry(cartID)
	if err != nil {
		return err
	}
	return sy.RemoveItem(ctx, itemID)
}

func (s *Service) entry(cartID string) (*appcart.Syncer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sy, ok := s.entries[cartID]
	if !ok {
		return nil, ErrCartNotFound
	}
	return sy, nil
}
