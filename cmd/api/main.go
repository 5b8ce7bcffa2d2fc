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
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/example/cartline/api/routes"
	"github.com/example/cartline/internal/catalog"
	"github.com/example/cartline/internal/checkout"
	"github.com/example/cartline/internal/identity"
	"github.com/example/cartline/internal/notify"
	"github.com/example/cartline/internal/orders"
	"github.com/example/cartline/internal/payments"
	"github.com/example/cartline/internal/settlement"
	"github.com/example/cartline/internal/users"
	"github.com/example/cartline/pkg/config"
	"github.com/example/cartline/pkg/db"
	"github.com/example/cartline/pkg/db/models"
	"github.com/example/cartline/pkg/logger"
	"github.com/example/cartline/pkg/metrics"
	"github.com/example/cartline/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := openDatabase(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if cfg.FeatureFlags.AutoMigrate {
		if err := dbClient.DB().AutoMigrate(models.All()...); err != nil {
			logg.Error(ctx, "failed to run auto-migration", err)
			os.Exit(1)
		}
		logg.Info(ctx, "auto-migration complete")
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)
	settlementMetrics := metrics.NewSettlementMetrics(registry)

	gormDB := dbClient.DB()
	usersRepo := users.NewRepository(gormDB)
	catalogRepo := catalog.NewRepository(gormDB)
	ordersRepo := orders.NewRepository(gormDB)

	reserver, err := catalog.NewReserver(catalogRepo)
	if err != nil {
		logg.Error(ctx, "failed to create stock reserver", err)
		os.Exit(1)
	}

	sender, err := notify.NewSender(cfg.SMS)
	if err != nil {
		logg.Error(ctx, "failed to create sms sender", err)
		os.Exit(1)
	}
	notifier, err := notify.NewWorker(
		sender,
		notify.NewTemplateStore(notify.NewTemplateRepository(gormDB)),
		notify.NewLogRepository(gormDB),
		settlementMetrics,
		logg,
		cfg.SMS,
		cfg.OTP.TTL,
	)
	if err != nil {
		logg.Error(ctx, "failed to create notification worker", err)
		os.Exit(1)
	}
	notifier.Start()
	defer notifier.Close()

	challengeStore, err := identity.NewChallengeStore(redisClient)
	if err != nil {
		logg.Error(ctx, "failed to create otp store", err)
		os.Exit(1)
	}
	identitySvc, err := identity.NewService(challengeStore, usersRepo, notifier, redisClient, cfg.OTP, cfg.Password, logg)
	if err != nil {
		logg.Error(ctx, "failed to create identity service", err)
		os.Exit(1)
	}

	gateways, sslGateway := buildGateways(ctx, cfg, logg)
	paymentRegistry, err := payments.NewRegistry(gateways...)
	if err != nil {
		logg.Error(ctx, "failed to build payment registry", err)
		os.Exit(1)
	}
	settingsSvc, err := payments.NewSettingsService(payments.NewSettingsRepository(gormDB))
	if err != nil {
		logg.Error(ctx, "failed to create payment settings service", err)
		os.Exit(1)
	}

	codes, err := checkout.NewCodeGenerator(cfg.Checkout.CodePrefix, cfg.Checkout.CodeLength)
	if err != nil {
		logg.Error(ctx, "failed to create code generator", err)
		os.Exit(1)
	}
	checkoutSvc, err := checkout.NewService(
		dbClient,
		identitySvc,
		reserver,
		catalogRepo,
		ordersRepo,
		paymentRegistry,
		settingsSvc,
		codes,
		notifier,
		checkoutMetrics,
		logg,
		cfg.Checkout,
		cfg.App,
	)
	if err != nil {
		logg.Error(ctx, "failed to create checkout service", err)
		os.Exit(1)
	}

	ordersSvc, err := orders.NewService(ordersRepo, dbClient, reserver, notifier, logg)
	if err != nil {
		logg.Error(ctx, "failed to create orders service", err)
		os.Exit(1)
	}

	var ipnValidator settlement.IPNValidator
	if sslGateway != nil {
		ipnValidator = sslGateway
	}
	settlementSvc, err := settlement.NewService(
		dbClient,
		ordersRepo,
		reserver,
		paymentRegistry,
		ipnValidator,
		notifier,
		settlementMetrics,
		logg,
	)
	if err != nil {
		logg.Error(ctx, "failed to create settlement service", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(routes.Deps{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		Redis:      redisClient,
		Identity:   identitySvc,
		Checkout:   checkoutSvc,
		Orders:     ordersSvc,
		Settlement: settlementSvc,
		Settings:   settingsSvc,
		Registry:   registry,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "addr": addr})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

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
	case sig := <-shutdown:
		logg.Info(logg.WithField(ctx, "signal", sig.String()), "shutting down")
		stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(stopCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

func openDatabase(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*db.Client, error) {
	if cfg.FeatureFlags.UseSQLite {
		// Dev-only escape hatch: run against a local file instead of postgres.
		conn, err := gorm.Open(sqlite.Open("cartline.db"), &gorm.Config{})
		if err != nil {
			return nil, err
		}
		logg.Warn(ctx, "running on sqlite, intended for local development only")
		return db.FromGorm(conn), nil
	}
	return db.New(ctx, cfg.DB, logg)
}

// buildGateways wires each provider that has credentials configured. A
// provider without credentials simply stays out of the registry; the
// settings table cannot enable what is not wired.
func buildGateways(ctx context.Context, cfg *config.Config, logg *logger.Logger) ([]payments.Gateway, *payments.SSLCommerzGateway) {
	var gateways []payments.Gateway
	var sslGateway *payments.SSLCommerzGateway

	if cfg.SSLCommerz.StoreID != "" && cfg.SSLCommerz.StorePassword != "" {
		gw, err := payments.NewSSLCommerzGateway(cfg.SSLCommerz, nil)
		if err != nil {
			logg.Error(ctx, "failed to build sslcommerz gateway", err)
		} else {
			gateways = append(gateways, gw)
			sslGateway = gw
			logg.Info(ctx, "sslcommerz gateway wired")
		}
	}

	if cfg.Bkash.AppKey != "" && cfg.Bkash.AppSecret != "" {
		gw, err := payments.NewBkashGateway(cfg.Bkash, nil)
		if err != nil {
			logg.Error(ctx, "failed to build bkash gateway", err)
		} else {
			gateways = append(gateways, gw)
			logg.Info(ctx, "bkash gateway wired")
		}
	}

	if cfg.Nagad.MerchantID != "" {
		gw, err := payments.NewNagadGateway(cfg.Nagad, nil)
		if err != nil {
			logg.Error(ctx, "failed to build nagad gateway", err)
		} else {
			gateways = append(gateways, gw)
			logg.Info(ctx, "nagad gateway wired")
		}
	}

	return gateways, sslGateway
}
