package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/bookwell/cartsync/internal/application/admin"
	appcart "github.com/bookwell/cartsync/internal/application/cart"
	"github.com/bookwell/cartsync/internal/config"
	"github.com/bookwell/cartsync/internal/infrastructure/bus"
	"github.com/bookwell/cartsync/internal/infrastructure/cache"
	infracatalog "github.com/bookwell/cartsync/internal/infrastructure/catalog"
	infraobs "github.com/bookwell/cartsync/internal/infrastructure/observability"
	"github.com/bookwell/cartsync/internal/infrastructure/observability/oteltrace"
	"github.com/bookwell/cartsync/internal/infrastructure/observability/prometrics"
	"github.com/bookwell/cartsync/internal/infrastructure/observability/zaplogger"
	"github.com/bookwell/cartsync/internal/infrastructure/refresh"
	"github.com/bookwell/cartsync/internal/infrastructure/remote"
	"github.com/bookwell/cartsync/internal/observability"
	httppresentation "github.com/bookwell/cartsync/internal/presentation/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()

	logger := zaplogger.New(
		observability.F("service", cfg.ServiceName),
		observability.F("env", cfg.Env),
	)

	tel := buildObservability(cfg, logger)
	log := tel.Logger().With(observability.F("component", "main"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	changeBus := bus.NewBus(logger)
	changeBus.Start(ctx)
	defer changeBus.Stop(context.Background())

	client := remote.NewClient(cfg.RemoteBaseURL, cfg.RemoteTimeout, tel)

	snapCache, err := buildSnapshotCache(cfg)
	if err != nil {
		log.Error("snapshot_cache_init_failed", observability.F("error", err.Error()))
		return
	}
	resolver := infracatalog.NewCachingResolver(client, snapCache, tel)

	manager := appcart.NewManager(client, resolver, changeBus, tel, cfg.RemoteTimeout)
	adminSvc := admin.NewService(client, resolver, changeBus, tel, cfg.RemoteTimeout)

	refresher := refresh.New(manager, cfg.RefreshInterval, cfg.SnapshotMaxAge, logger)
	refresher.Start(ctx)
	defer refresher.Stop()

	handler := httppresentation.NewHandler(manager, adminSvc, tel)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http_server_listening", observability.F("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown_signal_received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http_server_failed", observability.F("error", err.Error()))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http_server_shutdown_failed", observability.F("error", err.Error()))
	}
	log.Info("shutdown_complete")
}

func buildObservability(cfg config.Config, logger observability.Logger) observability.Observability {
	reg := prometrics.New(cfg.ServiceName, "")
	tracer := oteltrace.New(cfg.ServiceName)

	counters := map[observability.MetricKey]observability.Counter{
		observability.MSyncRequests: reg.Counter(
			string(observability.MSyncRequests),
			"Synchronization operations against the remote cart API.",
			"op", "outcome",
		),
		observability.MHTTPRequests: reg.Counter(
			string(observability.MHTTPRequests),
			"Inbound HTTP requests.",
			"method", "route", "status",
		),
		observability.MRemoteRequests: reg.Counter(
			string(observability.MRemoteRequests),
			"Outbound requests to the remote booking API.",
			"method", "endpoint", "outcome",
		),
		observability.MCatalogLookups: reg.Counter(
			string(observability.MCatalogLookups),
			"Catalog snapshot lookups by outcome.",
			"outcome",
		),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MSyncDuration: reg.Histogram(
			string(observability.MSyncDuration),
			"Synchronization operation latency in seconds.",
			prometheus.DefBuckets,
			"op",
		),
		observability.MHTTPRequestDuration: reg.Histogram(
			string(observability.MHTTPRequestDuration),
			"Inbound HTTP request latency in seconds.",
			prometheus.DefBuckets,
			"method", "route", "status",
		),
		observability.MRemoteRequestDuration: reg.Histogram(
			string(observability.MRemoteRequestDuration),
			"Outbound request latency in seconds.",
			prometheus.DefBuckets,
			"method", "endpoint",
		),
	}

	return infraobs.New(tracer, logger, counters, histograms)
}

func buildSnapshotCache(cfg config.Config) (cache.SnapshotCache, error) {
	if cfg.RedisURL == "" {
		return cache.NewMemoryCache(cfg.SnapshotTTL), nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	return cache.NewRedisCache(redis.NewClient(opts), cfg.SnapshotTTL), nil
}
