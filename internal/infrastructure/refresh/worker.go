package refresh

import (
	"context"
	"errors"
	"time"

	appcart "github.com/bookwell/cartsync/internal/application/cart"
	"github.com/bookwell/cartsync/internal/observability"
)

const componentRefresher = "snapshot_refresher"

// Worker periodically re-resolves stale catalog snapshots on every live cart
// mirror so long-lived sessions do not carry outdated prices into
// checkout-adjacent actions.
type Worker struct {
	manager  *appcart.Manager
	interval time.Duration
	maxAge   time.Duration
	log      observability.Logger
	cancel   context.CancelFunc
}

func New(manager *appcart.Manager, interval, maxAge time.Duration, logger observability.Logger) *Worker {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Worker{
		manager:  manager,
		interval: interval,
		maxAge:   maxAge,
		log:      logger.With(observability.F("component", componentRefresher)),
	}
}

func (w *Worker) Start(ctx context.Context) {
	if w.manager == nil || w.interval <= 0 {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	go w.loop(runCtx)
	w.log.Info("snapshot_refresher_started",
		observability.F("interval", w.interval.String()),
		observability.F("max_age", w.maxAge.String()),
	)
}

func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
}

func (w *Worker) loop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.refreshAll(ctx)
		}
	}
}

func (w *Worker) refreshAll(ctx context.Context) {
	w.manager.ForEach(func(svc *appcart.Service) {
		err := svc.RefreshSnapshots(ctx, w.maxAge)
		if err != nil && !errors.Is(err, appcart.ErrCartNotResolved) {
			w.log.Warn("snapshot_refresh_failed",
				observability.F("owner_id", svc.OwnerID()),
				observability.F("error", err.Error()),
			)
		}
	})
}
