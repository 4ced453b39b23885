package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/gallery-backend/api/routes"
	"github.com/angelmondragon/gallery-backend/internal/capture"
	checkoutsvc "github.com/angelmondragon/gallery-backend/internal/checkout"
	gallerysvc "github.com/angelmondragon/gallery-backend/internal/gallery"
	"github.com/angelmondragon/gallery-backend/internal/notify"
	ordersvc "github.com/angelmondragon/gallery-backend/internal/orders"
	"github.com/angelmondragon/gallery-backend/internal/pricing"
	"github.com/angelmondragon/gallery-backend/internal/refcache"
	"github.com/angelmondragon/gallery-backend/pkg/config"
	"github.com/angelmondragon/gallery-backend/pkg/db"
	"github.com/angelmondragon/gallery-backend/pkg/logger"
	"github.com/angelmondragon/gallery-backend/pkg/metrics"
	"github.com/angelmondragon/gallery-backend/pkg/migrate"
	"github.com/angelmondragon/gallery-backend/pkg/paypal"
	"github.com/angelmondragon/gallery-backend/pkg/redis"
	"github.com/angelmondragon/gallery-backend/pkg/zoho"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	// The gateway and mail provider are optional at boot. Missing credentials
	// surface as config errors on the operations that need them.
	var paypalClient *paypal.Client
	if cfg.PayPal.Configured() {
		paypalClient, err = paypal.NewClient(context.Background(), cfg.PayPal, cfg.Site, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create paypal client", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "paypal credentials missing, checkout disabled")
	}

	var zohoClient *zoho.Client
	if cfg.Zoho.Configured() {
		zohoClient, err = zoho.NewClient(context.Background(), cfg.Zoho, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create zoho client", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "zoho credentials missing, outbound mail disabled")
	}

	var mailer *notify.Service
	if zohoClient != nil {
		mailer, err = notify.NewService(zohoClient, logg, cfg.Site.BrandName)
	} else {
		mailer, err = notify.NewService(nil, logg, cfg.Site.BrandName)
	}
	if err != nil {
		logg.Error(context.Background(), "failed to create mail service", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	refCache, err := refcache.New(redisClient, cfg.Checkout.ReferenceTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create reference cache", err)
		os.Exit(1)
	}

	galleryRepo := gallerysvc.NewRepository(dbClient.DB())
	ordersRepo := ordersvc.NewRepository(dbClient.DB())
	engine := pricing.NewEngine(cfg.Checkout.SingleFallbackCents)

	galleryService, err := gallerysvc.NewService(galleryRepo, mailer, logg, cfg.Site.BaseURL)
	if err != nil {
		logg.Error(context.Background(), "failed to create gallery service", err)
		os.Exit(1)
	}

	ordersService, err := ordersvc.NewService(ordersRepo, galleryRepo, mailer, logg, cfg.Site.BaseURL)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	var checkoutService checkoutsvc.Service
	if paypalClient != nil {
		checkoutService, err = checkoutsvc.NewService(galleryRepo, ordersRepo, engine, paypalClient, refCache, checkoutMetrics, logg, cfg.Site.BaseURL, cfg.App.Env)
	} else {
		checkoutService, err = checkoutsvc.NewService(galleryRepo, ordersRepo, engine, nil, refCache, checkoutMetrics, logg, cfg.Site.BaseURL, cfg.App.Env)
	}
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	var captureOrch *capture.Orchestrator
	if paypalClient != nil {
		captureOrch, err = capture.NewOrchestrator(ordersRepo, ordersService, paypalClient, refCache, dbClient, mailer, checkoutMetrics, logg, cfg.Site.BaseURL, cfg.Checkout.EntitlementExpiry)
	} else {
		captureOrch, err = capture.NewOrchestrator(ordersRepo, ordersService, nil, refCache, dbClient, mailer, checkoutMetrics, logg, cfg.Site.BaseURL, cfg.Checkout.EntitlementExpiry)
	}
	if err != nil {
		logg.Error(context.Background(), "failed to create capture orchestrator", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			checkoutService,
			captureOrch,
			ordersService,
			galleryService,
			registry,
		),
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		logg.Info(ctx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			os.Exit(1)
		}
		logg.Info(ctx, "api server stopped")
	}
}
