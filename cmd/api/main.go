package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/egannguyen/cart-ecommerce/internal/auth"
	"github.com/egannguyen/cart-ecommerce/internal/config"
	delivery "github.com/egannguyen/cart-ecommerce/internal/delivery/http"
	"github.com/egannguyen/cart-ecommerce/internal/health"
	"github.com/egannguyen/cart-ecommerce/internal/logging"
	"github.com/egannguyen/cart-ecommerce/internal/messaging"
	"github.com/egannguyen/cart-ecommerce/internal/messaging/kafka"
	"github.com/egannguyen/cart-ecommerce/internal/messaging/rabbitmq"
	"github.com/egannguyen/cart-ecommerce/internal/notify"
	"github.com/egannguyen/cart-ecommerce/internal/payment/paystack"
	"github.com/egannguyen/cart-ecommerce/internal/repository"
	"github.com/egannguyen/cart-ecommerce/internal/repository/memory"
	"github.com/egannguyen/cart-ecommerce/internal/repository/postgres"
	rediscart "github.com/egannguyen/cart-ecommerce/internal/repository/redis"
	"github.com/egannguyen/cart-ecommerce/internal/service"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		panic(err)
	}
	logger := logging.MustNew(cfg.LogLevel)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatalw("Invalid configuration", "err", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatalw("API stopped", "err", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) error {
	registry := health.NewRegistry(version)

	// --- Database ---
	db, err := postgres.InitDB(ctx, cfg.Postgres.DSN, postgres.Options{
		MaxOpenConns: cfg.Postgres.MaxOpenConns,
		MaxIdleConns: cfg.Postgres.MaxIdleConns,
	}, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	registry.Register(health.NewPingChecker("postgres", db.PingContext))

	catalog := postgres.NewCatalogRepository(db)
	if cfg.Postgres.SeedCatalog {
		n, err := postgres.SeedCatalog(ctx, catalog, postgres.DemoCatalog(time.Now()))
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Infow("Seeded catalog", "items", n)
		}
	}

	// --- Carts ---
	carts, closeCarts := newCartStore(cfg.Redis, registry, logger)
	defer closeCarts()

	// --- Kafka ---
	var publisher messaging.Publisher = messaging.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		broker := kafka.NewKafkaBroker(cfg.Kafka.Brokers, logger)
		defer broker.Close()
		publisher = broker
		registry.Register(health.TCPChecker("kafka", cfg.Kafka.Brokers).Optional())
	} else {
		logger.Warnw("KAFKA_BROKERS not set, order events are not published")
	}

	// --- Notifications ---
	notifier, closeNotifier, err := newNotifier(cfg, registry, logger)
	if err != nil {
		return err
	}
	defer closeNotifier()

	deps := service.Deps{
		Orders:      postgres.NewOrderRepository(db),
		Catalog:     catalog,
		Users:       postgres.NewUserRepository(db),
		Reviews:     postgres.NewReviewRepository(db),
		Carts:       carts,
		History:     postgres.NewHistoryRepository(db),
		Notifier:    notifier,
		Publisher:   publisher,
		EventsTopic: cfg.Kafka.OrdersTopic,
		Logger:      logger,
	}
	svc, tokens, err := newServices(cfg, deps)
	if err != nil {
		return err
	}

	handler := delivery.NewHandler(svc, tokens, registry, logger)
	server := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server starting", "addr", cfg.HTTP.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	logger.Infow("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newServices(cfg *config.Config, deps service.Deps) (delivery.Services, *auth.Tokens, error) {
	gateway := paystack.NewClient(cfg.Paystack.BaseURL, cfg.Paystack.SecretKey, cfg.Paystack.Currency, cfg.Paystack.Timeout)
	tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	otp, err := auth.NewOTPCipher([]byte(cfg.Auth.OTPKey))
	if err != nil {
		return delivery.Services{}, nil, err
	}
	fees := service.NewFeeTable(cfg.Delivery.FreeThreshold, cfg.Delivery.DefaultFee, cfg.Delivery.RegionFees)

	var svc delivery.Services
	if svc.Accounts, err = service.NewAccountService(deps, tokens, otp, service.AccountSettings{
		OTPTTL:    cfg.Auth.OTPTTL,
		ResetTTL:  cfg.Auth.ResetTokenTTL,
		AdminKey:  cfg.Auth.AdminKey,
		PublicURL: cfg.HTTP.PublicURL,
	}); err != nil {
		return svc, nil, err
	}
	if svc.Catalog, err = service.NewCatalogService(deps); err != nil {
		return svc, nil, err
	}
	if svc.Carts, err = service.NewCartService(deps); err != nil {
		return svc, nil, err
	}
	if svc.Checkout, err = service.NewCheckoutService(deps, fees); err != nil {
		return svc, nil, err
	}
	if svc.Payments, err = service.NewPaymentService(deps, gateway); err != nil {
		return svc, nil, err
	}
	if svc.Webhooks, err = service.NewWebhookReconciler(deps, gateway); err != nil {
		return svc, nil, err
	}
	if svc.Fulfillment, err = service.NewFulfillmentService(deps); err != nil {
		return svc, nil, err
	}
	if svc.Reviews, err = service.NewReviewService(deps); err != nil {
		return svc, nil, err
	}
	return svc, tokens, nil
}

// newCartStore uses Redis when configured and process memory otherwise.
func newCartStore(cfg config.RedisConfig, registry *health.Registry, logger *zap.SugaredLogger) (repository.CartRepository, func()) {
	if cfg.Addr == "" {
		logger.Warnw("REDIS_ADDR not set, carts are kept in memory")
		return memory.NewCartRepository(), func() {}
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	registry.Register(health.NewPingChecker("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}))
	return rediscart.NewCartRepository(client, cfg.CartTTL), func() { client.Close() }
}

// newNotifier queues email through RabbitMQ when configured, otherwise sends
// over SMTP, otherwise logs.
func newNotifier(cfg *config.Config, registry *health.Registry, logger *zap.SugaredLogger) (notify.Notifier, func(), error) {
	switch {
	case cfg.RabbitMQ.URL != "":
		client, err := rabbitmq.NewClient(cfg.RabbitMQ.URL, 0, logger)
		if err != nil {
			return nil, nil, err
		}
		registry.Register(health.NewPingChecker("rabbitmq", func(context.Context) error {
			if client.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		}).Optional())
		return notify.NewQueueNotifier(client, cfg.RabbitMQ.EmailQueue), client.Close, nil
	case cfg.SMTP.Host != "":
		return notify.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From), func() {}, nil
	default:
		logger.Warnw("No mail transport configured, emails are logged")
		return notify.NewLogNotifier(logger), func() {}, nil
	}
}
