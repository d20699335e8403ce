package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	sdkapp "github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/catalog-cache/internal/controller"
	"github.com/xenking/catalog-cache/internal/handler"
	"github.com/xenking/catalog-cache/internal/remote"
	"github.com/xenking/catalog-cache/internal/store/boltstore"
	"github.com/xenking/catalog-cache/internal/syncer"
	"github.com/xenking/catalog-cache/pkg/health"
	"github.com/xenking/catalog-cache/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the background refresh schedule and
// the HTTP server, and handles graceful shutdown. It is the single wiring
// point for the daemon.
func Run(ctx context.Context, lg *zap.Logger, m *sdkapp.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("db", cfg.DBPath),
		zap.String("remote", cfg.RemoteBaseURL),
	)

	// Durable catalog store.
	store, err := boltstore.Open(cfg.DBPath, lg.Named("store"))
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer func() { _ = store.Close() }()

	// Remote source + sync engine, instrumented with refresh metrics.
	client := remote.NewClient(cfg.RemoteBaseURL, nil)
	engine := syncer.New(store, client, client.ImageURL, lg.Named("syncer"))
	refresher, err := newInstrumentedRefresher(engine, m)
	if err != nil {
		return errors.Wrap(err, "init refresh metrics")
	}

	// Controllers: the catalog view kicks off the startup refresh itself.
	notifier := controller.NewNotifier(8)
	mutator := controller.NewMutator(store, notifier, lg.Named("mutator"))
	catalog := controller.NewCatalog(store, refresher, mutator, notifier, lg.Named("catalog"), controller.CatalogOptions{
		InitialQuery: cfg.InitialQuery,
		Debounce:     cfg.Debounce,
	})
	defer catalog.Close()
	favorites := controller.NewFavorites(store, mutator, lg.Named("favorites"))
	defer favorites.Close()

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("store", 5*time.Second, func(ctx context.Context) error {
		_, err := store.List(ctx)
		return err
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.SetReady(true)

	// Periodic background refresh; failures surface via the transient channel.
	sched := cron.New()
	if _, err := sched.AddFunc(cfg.RefreshSchedule, catalog.ForceRefresh); err != nil {
		return errors.Wrapf(err, "refresh schedule %q", cfg.RefreshSchedule)
	}
	sched.Start()
	defer sched.Stop()

	h := handler.New(catalog, favorites, store)
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins: cfg.CORS.Origins,
				MaxAge:       86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.LogRequests(),
		),
	}

	g, gctx := errgroup.WithContext(ctx)

	// Transient notices: a daemon has no toast, so they become warn logs.
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case notice := <-notifier.Notices():
				lg.Warn("transient notice", zap.String("message", string(notice)))
			}
		}
	})

	// SSE fan-out of catalog snapshots.
	g.Go(func() error {
		return h.Run(gctx)
	})

	// Graceful shutdown: drain readiness, then stop the server.
	g.Go(func() error {
		<-gctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
