package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	cartcache "github.com/fjod/storefront/internal/cart/cache"
	cartconsumer "github.com/fjod/storefront/internal/cart/consumer"
	cartrepo "github.com/fjod/storefront/internal/cart/repository"
	cartservice "github.com/fjod/storefront/internal/cart/service"
	catalogconsumer "github.com/fjod/storefront/internal/catalog/consumer"
	catalogrepo "github.com/fjod/storefront/internal/catalog/repository"
	catalogservice "github.com/fjod/storefront/internal/catalog/service"
	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/internal/events"
	internalhttp "github.com/fjod/storefront/internal/http"
	"github.com/fjod/storefront/internal/identity"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/fjod/storefront/internal/mongostore"
	"github.com/fjod/storefront/internal/notify"
	"github.com/fjod/storefront/internal/orders/publisher"
	ordersrepo "github.com/fjod/storefront/internal/orders/repository"
	orders "github.com/fjod/storefront/internal/orders/service"
	"github.com/fjod/storefront/internal/payment"
	"github.com/fjod/storefront/internal/pricing"
	"github.com/fjod/storefront/internal/telemetry"
	"github.com/fjod/storefront/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const serviceVersion = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	if err := run(cfg, log); err != nil {
		log.Fatal("storefront stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()
	log.Info("storefront starting", zap.String("env", cfg.App.Env), zap.String("port", cfg.App.Port))

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.Endpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.App.Name,
		ServiceVersion:    serviceVersion,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	m := metrics.New()

	// MongoDB: users and carts
	mongoDB, err := mongostore.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return err
	}
	defer func() { _ = mongoDB.Client().Disconnect(context.Background()) }()
	log.Info("connected to MongoDB", zap.String("database", cfg.Mongo.Database))

	// Redis: cart cache and token revocations
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}

	// SQLite: catalog
	catalogRepo, err := catalogrepo.NewRepository(cfg.Catalog.DBPath)
	if err != nil {
		return fmt.Errorf("catalog database: %w", err)
	}
	defer catalogRepo.Close()
	if err := catalogRepo.RunMigrations(cfg.Catalog.MigrationsPath); err != nil {
		return fmt.Errorf("catalog migrations: %w", err)
	}
	catalog := catalogservice.NewService(catalogRepo, log)
	if cfg.Catalog.SeedFile != "" {
		n, err := catalog.SeedFromFile(ctx, cfg.Catalog.SeedFile)
		if err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
		log.Info("catalog seeded", zap.Int("products", n))
	}

	// PostgreSQL: orders and outbox
	creds := &ordersrepo.Credentials{
		Host:              cfg.Postgres.Host,
		Port:              cfg.Postgres.Port,
		User:              cfg.Postgres.User,
		Password:          cfg.Postgres.Password,
		DBName:            cfg.Postgres.DBName,
		SSLMode:           cfg.Postgres.SSLMode,
		MigrationsDirPath: cfg.Postgres.MigrationsDirPath,
	}
	ordersRepo, err := ordersrepo.NewRepository(creds)
	if err != nil {
		return fmt.Errorf("orders database: %w", err)
	}
	defer ordersRepo.Close()
	if err := ordersRepo.RunMigrations(creds); err != nil {
		return fmt.Errorf("orders migrations: %w", err)
	}
	log.Info("database migrations completed")

	users := identity.NewMongoRepository(mongoDB)
	cartStore := cartrepo.NewMongoRepository(mongoDB)
	for name, idx := range map[string]interface{ CreateIndexes(context.Context) error }{
		"users": users,
		"carts": cartStore,
	} {
		if err := idx.CreateIndexes(ctx); err != nil {
			return fmt.Errorf("%s indexes: %w", name, err)
		}
	}
	tokens := identity.NewTokenService(cfg.JWT.Secret, cfg.JWT.Expiration, cfg.JWT.Issuer)
	auth := identity.NewService(users, tokens, identity.NewRedisRevocations(redisClient), log)

	carts := cartservice.NewCartService(
		cartStore,
		cartcache.NewRedisCache(redisClient),
		catalog, log, m)

	// the interface must stay nil, not a typed nil, when payments are off
	var gateway payment.Gateway
	if cfg.Stripe.Enabled() {
		gateway = payment.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.Currency, nil, log)
	} else {
		log.Warn("stripe is not configured, online payments are disabled")
	}

	orderService := orders.NewOrderService(ordersRepo, carts, catalog, gateway, orders.Options{
		Pricing: pricing.Policy{
			TaxRate:               cfg.Pricing.TaxRate,
			ShippingFee:           cfg.Pricing.ShippingFee,
			FreeShippingThreshold: cfg.Pricing.FreeShippingThreshold,
		},
		Currency:          cfg.Stripe.Currency,
		PendingPaymentTTL: cfg.Checkout.PendingPaymentTTL,
	}, log, m)

	mailer, err := notify.NewMailer(cfg.Mail, log)
	if err != nil {
		return fmt.Errorf("mailer: %w", err)
	}

	// Kafka: outbox relay and event consumers
	writer := events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer writer.Close()

	consumers := []*events.Consumer{
		events.NewConsumer("cart-clear",
			events.NewKafkaReader(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.App.Name+"-cart"),
			cartconsumer.NewClearOnOrderPlaced(carts, log).Handle, log, m),
		events.NewConsumer("catalog-stock",
			events.NewKafkaReader(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.App.Name+"-catalog"),
			catalogconsumer.NewStockHandler(catalogRepo, log).Handle, log, m),
		events.NewConsumer("order-confirmation",
			events.NewKafkaReader(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.App.Name+"-notify"),
			notify.NewOrderConfirmation(mailer, log).Handle, log, m),
	}
	poller := publisher.NewOutboxPoller(ordersRepo, writer, orderService,
		cfg.Checkout.OutboxInterval, cfg.Checkout.RecoveryInterval, log, m)

	workerCtx, stopWorkers := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Run(workerCtx)
	}()
	for _, c := range consumers {
		wg.Add(1)
		go func(c *events.Consumer) {
			defer wg.Done()
			c.Run(workerCtx)
		}(c)
	}

	router := internalhttp.NewRouter(internalhttp.Deps{
		Auth:           auth,
		Catalog:        catalog,
		Carts:          carts,
		Orders:         orderService,
		Webhooks:       payment.NewWebhookVerifier(cfg.Stripe.WebhookSecret),
		Metrics:        m,
		Logger:         log,
		HTTP:           cfg.HTTP,
		Cookie:         cfg.Cookie,
		PublishableKey: cfg.Stripe.PublishableKey,
		ServiceName:    cfg.App.Name,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.HTTP.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("http server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	stopWorkers()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info("workers stopped cleanly")
	case <-shutdownCtx.Done():
		log.Warn("workers didn't stop in time")
	}
	for _, c := range consumers {
		c.Close()
	}

	log.Info("storefront stopped")
	return nil
}
