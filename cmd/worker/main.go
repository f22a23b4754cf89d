package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/egannguyen/cart-ecommerce/internal/analytics"
	"github.com/egannguyen/cart-ecommerce/internal/analytics/clickhouse"
	"github.com/egannguyen/cart-ecommerce/internal/config"
	"github.com/egannguyen/cart-ecommerce/internal/logging"
	"github.com/egannguyen/cart-ecommerce/internal/messaging/kafka"
	"github.com/egannguyen/cart-ecommerce/internal/messaging/rabbitmq"
	"github.com/egannguyen/cart-ecommerce/internal/notify"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		panic(err)
	}
	logger := logging.MustNew(cfg.LogLevel)
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var wg sync.WaitGroup
	started := 0

	if cfg.RabbitMQ.URL != "" {
		client, err := rabbitmq.NewClient(cfg.RabbitMQ.URL, cfg.RabbitMQ.PrefetchCount, logger)
		if err != nil {
			logger.Fatalw("Failed to connect to RabbitMQ", "err", err)
		}
		defer client.Close()

		mailer := mailTransport(cfg.SMTP, logger)
		wg.Add(1)
		started++
		go func() {
			defer wg.Done()
			err := client.Consume(ctx, cfg.RabbitMQ.EmailQueue, func(ctx context.Context, body []byte) error {
				return notify.HandleJob(ctx, mailer, body)
			})
			if err != nil {
				logger.Errorw("Email worker stopped", "err", err)
			}
		}()
	}

	if len(cfg.Kafka.Brokers) > 0 {
		ch, err := clickhouse.NewClient(ctx, clickhouse.Options{
			Host:     cfg.ClickHouse.Host,
			Port:     cfg.ClickHouse.Port,
			Database: cfg.ClickHouse.Database,
			Username: cfg.ClickHouse.Username,
			Password: cfg.ClickHouse.Password,
		})
		if err != nil {
			logger.Fatalw("Failed to connect to ClickHouse", "err", err)
		}
		defer ch.Close()
		if err := ch.EnsureSchema(ctx); err != nil {
			logger.Fatalw("Failed to prepare analytics tables", "err", err)
		}

		broker := kafka.NewKafkaBroker(cfg.Kafka.Brokers, logger)
		defer broker.Close()
		recorder := analytics.NewRecorder(ch, logger)
		wg.Add(1)
		started++
		go func() {
			defer wg.Done()
			broker.Consume(ctx, cfg.Kafka.OrdersTopic, cfg.Kafka.GroupID, recorder.HandleMessage)
		}()
	}

	if started == 0 {
		logger.Fatalw("Nothing to do: set RABBITMQ_URL and/or KAFKA_BROKERS")
	}
	logger.Infow("Workers started", "count", started)

	<-ctx.Done()
	logger.Infow("Shutting down workers")
	wg.Wait()
}

func mailTransport(cfg config.SMTPConfig, logger *zap.SugaredLogger) notify.Notifier {
	if cfg.Host == "" {
		logger.Warnw("SMTP_HOST not set, queued emails are logged")
		return notify.NewLogNotifier(logger)
	}
	return notify.NewSMTPMailer(cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.From)
}
