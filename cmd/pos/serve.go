package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ayouballali/mahali-pos/internal/barcode"
	"github.com/ayouballali/mahali-pos/internal/cache"
	"github.com/ayouballali/mahali-pos/internal/cart"
	"github.com/ayouballali/mahali-pos/internal/config"
	apihttp "github.com/ayouballali/mahali-pos/internal/http"
	"github.com/ayouballali/mahali-pos/internal/reconcile"
	"github.com/ayouballali/mahali-pos/internal/repository"
	"github.com/ayouballali/mahali-pos/internal/sale"
	"github.com/ayouballali/mahali-pos/internal/scanner"
	"github.com/ayouballali/mahali-pos/internal/sell"
	"github.com/ayouballali/mahali-pos/internal/stats"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the scan websocket and the stock reconciler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	repo, err := repository.NewRepository(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.RunMigrations(cfg.Database.MigrationsPath); err != nil {
		return err
	}

	reportCache, closeCache := newReportCache(cfg.Redis, log)
	defer closeCache()

	reports := stats.NewService(repo.Transactions(), repo.Products(), reportCache, cfg.Business.LowStockThreshold, log)
	finalizer := sale.NewFinalizer(repo.Transactions(), repo.Products(), repo.Transactions(), log)
	validator := barcode.Validator{AllowAlphanumeric: cfg.Scanner.AllowAlphanumeric}
	register := sell.NewRegister(cart.New(), repo.Products(), finalizer, reports, validator, log)
	var detector scanner.Detector
	if cfg.Scanner.Enabled {
		detector = scanner.NewZXingDetector(log, cfg.Scanner.Formats...)
	}

	timeout := cfg.HTTP.RequestTimeout
	maxBody := cfg.HTTP.MaxRequestBodySize
	handler := apihttp.NewRouter(apihttp.RouterConfig{RequestTimeout: timeout, MaxRequestBodySize: maxBody}, apihttp.Handlers{
		Products: apihttp.NewProductHandler(repo.Products(), reports, timeout, maxBody),
		Cart:     apihttp.NewCartHandler(register, timeout, maxBody),
		Checkout: apihttp.NewCheckoutHandler(register, timeout),
		Reports:  apihttp.NewReportHandler(reports, repo.Transactions(), timeout),
		Scan: apihttp.NewScanHandler(register, detector, cfg.SamplerConfig(), cfg.SessionConfig(),
			cfg.HTTP.AllowedOrigins, log),
		Health: func(r *http.Request) error { return repo.Ping(r.Context()) },
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	poller := reconcile.NewPoller(repo.Transactions(), reconcile.Config{
		Interval:    cfg.Reconcile.Interval,
		BatchSize:   cfg.Reconcile.BatchSize,
		MaxAttempts: cfg.Reconcile.MaxAttempts,
	}, log.With("component", "reconcile"))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("pos server starting", "port", cfg.HTTP.Port, "db", cfg.Database.Path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		poller.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		// hijacked scan sockets are not tracked by Shutdown
		register.Deactivate()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server exited")
	return nil
}

// newReportCache returns a redis cache behind a circuit breaker, or a no-op cache
// when no redis address is configured.
func newReportCache(cfg config.RedisConfig, log *slog.Logger) (cache.ReportCache, func()) {
	if cfg.Addr == "" {
		return cache.NopCache{}, func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	c := cache.NewBreakerCache(cache.NewRedisCache(client, cfg.ReportTTL), cache.DefaultBreakerSettings(), log)
	return c, func() { client.Close() }
}
