package cart

import (
	"context"
	"sync"
	"time"

	domcart "github.com/bookwell/cartsync/internal/domain/cart"
	"github.com/bookwell/cartsync/internal/domain/catalog"
	"github.com/bookwell/cartsync/internal/domain/event"
	"github.com/bookwell/cartsync/internal/observability"
	"github.com/bookwell/cartsync/internal/observability/logctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	componentSyncer = "cart_syncer"
	spanPrefix      = "Sync."
	publishTimeout  = 300 * time.Millisecond
)

// DefaultRemoteTimeout bounds each remote call when the caller does not
// configure one. A timeout settles exactly like a failure response.
const DefaultRemoteTimeout = 5 * time.Second

// Syncer applies the shared mutation protocol to one cart mirror. Both the
// owner-facing service and the administrative index address the same code:
// the only difference between the two is how the cart is located.
//
// The mirror is exclusively owned by the Syncer; readers get clones and all
// mutation goes through the operations below. Optimistic operations advance
// the mirror before the remote call and roll back when it fails, so the
// aggregate is self-consistent whatever the outcome.
type Syncer struct {
	remote    RemoteStore
	resolver  catalog.Resolver
	publisher event.Publisher
	timeout   time.Duration

	log          observability.Logger
	tracer       observability.Tracer
	reqCounter   observability.Counter
	durHistogram observability.Histogram

	mu   sync.Mutex
	cart *domcart.Cart
}

// NewSyncer builds a syncer with no cart resolved yet. Install or a
// create-or-get must run before line operations succeed.
func NewSyncer(remote RemoteStore, resolver catalog.Resolver, publisher event.Publisher, tel observability.Observability, timeout time.Duration) *Syncer {
	if tel == nil {
		tel = observability.Nop()
	}
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	return &Syncer{
		remote:       remote,
		resolver:     resolver,
		publisher:    publisher,
		timeout:      timeout,
		log:          tel.Logger().With(observability.F("component", componentSyncer)),
		tracer:       tel.Tracer(),
		reqCounter:   tel.Metrics().Counter(observability.MSyncRequests),
		durHistogram: tel.Metrics().Histogram(observability.MSyncDuration),
	}
}

// Install replaces the mirror wholesale with a server record whose snapshots
// are already resolved, then recomputes the derived totals.
func (s *Syncer) Install(c *domcart.Cart) {
	c.Recompute()
	s.mu.Lock()
	s.cart = c
	s.mu.Unlock()
}

// Cart returns a recomputed deep copy of the mirror, or nil when unresolved.
func (s *Syncer) Cart() *domcart.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cart == nil {
		return nil
	}
	s.cart.Recompute()
	return s.cart.Clone()
}

// CartID returns the remote cart identifier, empty until resolved.
func (s *Syncer) CartID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cart == nil {
		return ""
	}
	return s.cart.ID
}

// AddItem sends an add-line request and installs the server's canonical
// line. It is deliberately not optimistic: the resulting item id is unknown
// until the server responds, so on failure the mirror is untouched.
func (s *Syncer) AddItem(ctx context.Context, serviceID string, quantity int) (_ *domcart.LineItem, err error) {
	ctx, done := s.instrument(ctx, domcart.OpAdd, "")
	defer func() { done(err) }()

	if quantity < 1 {
		return nil, domcart.ErrInvalidQuantity
	}

	s.mu.Lock()
	if s.cart == nil {
		s.mu.Unlock()
		return nil, ErrCartNotResolved
	}
	cartID := s.cart.ID
	s.mu.Unlock()

	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	line, rerr := s.remote.AddItem(rctx, cartID, serviceID, quantity)
	cancel()
	if rerr != nil {
		return nil, syncErr(domcart.OpAdd, cartID, "", rerr)
	}

	line.Snapshot = s.resolveSnapshot(ctx, serviceID)

	s.mu.Lock()
	s.cart.Upsert(line)
	s.cart.Recompute()
	ev := domcart.NewChangedEvent(s.cart, domcart.OpAdd)
	out := line.Clone()
	s.mu.Unlock()

	s.publish(ctx, ev)
	return out, nil
}

// UpdateQuantity optimistically applies the new quantity, then patches the
// remote record. On failure the prior quantity is restored. Quantities below
// one are rejected before any I/O; removal is a distinct operation.
func (s *Syncer) UpdateQuantity(ctx context.Context, itemID string, quantity int) (err error) {
	ctx, done := s.instrument(ctx, domcart.OpUpdateQuantity, itemID)
	defer func() { done(err) }()

	if quantity < 1 {
		return domcart.ErrInvalidQuantity
	}

	s.mu.Lock()
	if s.cart == nil {
		s.mu.Unlock()
		return ErrCartNotResolved
	}
	cartID := s.cart.ID
	li, _, ok := s.cart.Find(itemID)
	if !ok {
		s.mu.Unlock()
		return domcart.ErrItemNotFound
	}
	if beginErr := li.BeginOp(domcart.OpUpdateQuantity); beginErr != nil {
		s.mu.Unlock()
		return beginErr
	}
	prev := li.Quantity
	li.Quantity = quantity
	s.cart.Recompute()
	ev := domcart.NewChangedEvent(s.cart, domcart.OpUpdateQuantity)
	s.mu.Unlock()

	s.publish(ctx, ev)

	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	canonical, rerr := s.remote.UpdateItemQuantity(rctx, cartID, itemID, quantity)
	cancel()

	s.mu.Lock()
	li, _, ok = s.cart.Find(itemID)
	if ok {
		if rerr != nil {
			li.Quantity = prev
		} else if canonical != nil {
			li.Quantity = canonical.Quantity
		}
		li.SettleOp()
	}
	s.cart.Recompute()
	ev = domcart.NewChangedEvent(s.cart, domcart.OpUpdateQuantity)
	s.mu.Unlock()

	s.publish(ctx, ev)
	if rerr != nil {
		return syncErr(domcart.OpUpdateQuantity, cartID, itemID, rerr)
	}
	return nil
}

// RemoveItem optimistically deletes the line, then issues the remote delete.
// On failure the line is re-inserted at its prior position. A line with an
// operation in flight is rejected until that operation settles.
func (s *Syncer) RemoveItem(ctx context.Context, itemID string) (err error) {
	ctx, done := s.instrument(ctx, domcart.OpRemove, itemID)
	defer func() { done(err) }()

	s.mu.Lock()
	if s.cart == nil {
		s.mu.Unlock()
		return ErrCartNotResolved
	}
	cartID := s.cart.ID
	li, pos, ok := s.cart.Find(itemID)
	if !ok {
		s.mu.Unlock()
		return domcart.ErrItemNotFound
	}
	if beginErr := li.BeginOp(domcart.OpRemove); beginErr != nil {
		s.mu.Unlock()
		return beginErr
	}
	_, _, _ = s.cart.Remove(itemID)
	s.cart.Recompute()
	ev := domcart.NewChangedEvent(s.cart, domcart.OpRemove)
	s.mu.Unlock()

	s.publish(ctx, ev)

	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	rerr := s.remote.RemoveItem(rctx, cartID, itemID)
	cancel()

	s.mu.Lock()
	li.SettleOp()
	if rerr != nil {
		s.cart.InsertAt(li, pos)
		s.cart.Recompute()
		ev = domcart.NewChangedEvent(s.cart, domcart.OpRemove)
		s.mu.Unlock()
		s.publish(ctx, ev)
		return syncErr(domcart.OpRemove, cartID, itemID, rerr)
	}
	s.mu.Unlock()
	return nil
}

// RefreshSnapshots re-resolves catalog snapshots older than maxAge. A failed
// lookup degrades the line to the unknown-service sentinel instead of
// dropping it. Busy lines are skipped; their in-flight operation settles with
// whatever snapshot it already carries.
func (s *Syncer) RefreshSnapshots(ctx context.Context, maxAge time.Duration) (err error) {
	ctx, done := s.instrument(ctx, domcart.OpRefresh, "")
	defer func() { done(err) }()

	now := time.Now().UTC()

	s.mu.Lock()
	if s.cart == nil {
		s.mu.Unlock()
		return ErrCartNotResolved
	}
	type target struct{ itemID, serviceID string }
	var targets []target
	for _, li := range s.cart.Items {
		if li.Busy() || !li.Snapshot.IsStale(now, maxAge) {
			continue
		}
		if beginErr := li.BeginOp(domcart.OpRefresh); beginErr != nil {
			continue
		}
		targets = append(targets, target{itemID: li.ID, serviceID: li.ServiceID})
	}
	s.mu.Unlock()

	if len(targets) == 0 {
		return nil
	}

	snaps := make(map[string]catalog.Snapshot, len(targets))
	for _, t := range targets {
		snaps[t.itemID] = s.resolveSnapshot(ctx, t.serviceID)
	}

	s.mu.Lock()
	for _, t := range targets {
		if li, _, ok := s.cart.Find(t.itemID); ok {
			li.Snapshot = snaps[t.itemID]
			li.SettleOp()
		}
	}
	s.cart.Recompute()
	ev := domcart.NewChangedEvent(s.cart, domcart.OpRefresh)
	s.mu.Unlock()

	s.publish(ctx, ev)
	return nil
}

// resolveSnapshot looks up catalog attributes, degrading to the sentinel on
// failure so one bad lookup never hides a line.
func (s *Syncer) resolveSnapshot(ctx context.Context, serviceID string) catalog.Snapshot {
	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	snap, err := s.resolver.Resolve(rctx, serviceID)
	if err != nil {
		logctx.FromOr(ctx, s.log).Warn("catalog_resolve_failed",
			observability.F("service_id", serviceID),
			observability.F("error", err.Error()),
		)
		return catalog.Unknown(serviceID)
	}
	return snap
}

func (s *Syncer) publish(ctx context.Context, e event.Event) {
	if s.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, e); err != nil {
		logctx.FromOr(ctx, s.log).Warn("cart_changed_publish_failed",
			observability.F("error", err.Error()),
		)
	}
}

// instrument opens a span and returns a settle func recording the op metrics
// and a single completion log line shared by every operation above.
func (s *Syncer) instrument(ctx context.Context, op domcart.Op, itemID string) (context.Context, func(error)) {
	ctx, span := s.tracer.Start(ctx, spanPrefix+string(op),
		attribute.String("cart.op", string(op)),
	)
	start := time.Now()

	return ctx, func(err error) {
		outcome := "success"
		if err != nil {
			outcome = "error"
			if span != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, string(op))
			}
		} else if span != nil {
			span.SetStatus(codes.Ok, string(op))
		}
		if span != nil {
			span.End()
		}

		latency := time.Since(start).Seconds()
		if s.reqCounter != nil {
			s.reqCounter.Add(1,
				observability.L("op", string(op)),
				observability.L("outcome", outcome),
			)
		}
		if s.durHistogram != nil {
			s.durHistogram.Observe(latency, observability.L("op", string(op)))
		}

		fields := []observability.Field{
			observability.F("op", string(op)),
			observability.F("outcome", outcome),
			observability.F("latency_seconds", latency),
		}
		if itemID != "" {
			fields = append(fields, observability.F("item_id", itemID))
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logctx.FromOr(ctx, s.log).Info("cart_sync_done", fields...)
	}
}
