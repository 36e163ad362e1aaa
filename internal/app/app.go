package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/kart-voice/internal/assistant"
	"github.com/xenking/kart-voice/internal/domain/product"
	"github.com/xenking/kart-voice/internal/fixture"
	"github.com/xenking/kart-voice/internal/handler"
	"github.com/xenking/kart-voice/internal/merge"
	"github.com/xenking/kart-voice/internal/storage/postgres"
	"github.com/xenking/kart-voice/internal/vendure"
	"github.com/xenking/kart-voice/pkg/health"
	"github.com/xenking/kart-voice/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc_pause", time.Second, health.GCMaxPauseCheck(time.Second))

	// Fallback catalog: PostgreSQL when configured, embedded fixtures otherwise.
	var fallback product.Repository
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return errors.Wrap(err, "create db pool")
		}
		defer pool.Close()

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return errors.Wrap(err, "run migrations")
		}
		healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
		fallback = postgres.NewProductRepository(pool)
		lg.Info("Using PostgreSQL fallback catalog")
	} else {
		repo, err := fixture.Load()
		if err != nil {
			return errors.Wrap(err, "load fixture catalog")
		}
		fallback = repo
		lg.Info("Using embedded fallback catalog")
	}

	// Live catalog.
	var live merge.LiveCatalog
	if !cfg.Vendure.Disabled {
		live = vendure.New(vendure.Config{
			URL:          cfg.Vendure.URL,
			ChannelToken: cfg.Vendure.ChannelToken,
			Timeout:      cfg.Vendure.Timeout,
			HTTPClient: &http.Client{
				Transport: otelhttp.NewTransport(http.DefaultTransport,
					otelhttp.WithTracerProvider(m.TracerProvider()),
					otelhttp.WithMeterProvider(m.MeterProvider()),
				),
			},
		})
		lg.Info("Live catalog enabled", zap.String("url", cfg.Vendure.URL))
	}
	merger := merge.New(fallback, live, merge.Config{
		Take:            cfg.Vendure.Take,
		SearchTake:      cfg.Vendure.SearchTake,
		CollectionsTake: cfg.Vendure.CollectionsTake,
	})
	healthSvc.AddDetail("live_products", merger.LiveCount)

	// The fallback catalog is served until the first live fetch lands.
	if live != nil {
		go refreshLoop(ctx, merger, cfg.RefreshInterval)
	}

	opts := []assistant.Option{assistant.WithMeterProvider(m.MeterProvider())}
	if cfg.DynamicCategories {
		opts = append(opts, assistant.WithDynamicCategories())
	}
	voice, err := assistant.New(merger, opts...)
	if err != nil {
		return errors.Wrap(err, "create assistant")
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	handler.New(voice, merger).Register(mux)
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      assistant.DefaultCaptureLimit + 5*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", httpmiddleware.HeaderRequestID},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
				Skip:   isHealthCheck,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("kart-voice", routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// refreshLoop fetches the live snapshot once, then every interval until ctx
// is done. A zero interval stops after the first fetch.
func refreshLoop(ctx context.Context, merger *merge.Merger, interval time.Duration) {
	lg := zctx.From(ctx)
	merger.Refresh(ctx)
	lg.Info("Live catalog loaded", zap.Int("live", merger.LiveCount()))
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			merger.Refresh(ctx)
			lg.Debug("Live catalog refreshed", zap.Int("live", merger.LiveCount()))
		}
	}
}

func isHealthCheck(r *http.Request) bool {
	return r.URL.Path == "/livez" || r.URL.Path == "/readyz" || strings.HasPrefix(r.URL.Path, "/debug/")
}
