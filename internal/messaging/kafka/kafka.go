package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/egannguyen/cart-ecommerce/internal/messaging"
	kafkaGo "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type kafkaBroker struct {
	brokers []string
	logger  *zap.SugaredLogger

	mu      sync.Mutex
	writers map[string]*kafkaGo.Writer
}

// Broker is a Kafka publisher and subscriber sharing one writer per topic.
type Broker interface {
	messaging.Publisher
	messaging.Subscriber
	Close() error
}

// NewKafkaBroker creates a new Kafka publisher and subscriber.
func NewKafkaBroker(brokers []string, logger *zap.SugaredLogger) Broker {
	return &kafkaBroker{
		brokers: brokers,
		logger:  logger,
		writers: make(map[string]*kafkaGo.Writer),
	}
}

func (k *kafkaBroker) writer(topic string) *kafkaGo.Writer {
	k.mu.Lock()
	defer k.mu.Unlock()
	w, ok := k.writers[topic]
	if !ok {
		w = &kafkaGo.Writer{
			Addr:                   kafkaGo.TCP(k.brokers...),
			Topic:                  topic,
			Balancer:               &kafkaGo.Hash{},
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		}
		k.writers[topic] = w
	}
	return w
}

// PublishEvent writes event as JSON. The key keeps one order's events on one partition.
func (k *kafkaBroker) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return k.writer(topic).WriteMessages(ctx, kafkaGo.Message{
		Key:   []byte(key),
		Value: payload,
	})
}

func (k *kafkaBroker) Consume(ctx context.Context, topic string, groupID string, handler func(ctx context.Context, payload []byte) error) {
	reader := kafkaGo.NewReader(kafkaGo.ReaderConfig{
		Brokers: k.brokers,
		Topic:   topic,
		GroupID: groupID,
	})
	defer reader.Close()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				k.logger.Infow("Consumer shutting down", "topic", topic)
				return
			}
			k.logger.Errorw("Error reading message", "topic", topic, "err", err)
			continue
		}

		if err := handler(ctx, msg.Value); err != nil {
			k.logger.Errorw("Error handling message", "topic", topic, "offset", msg.Offset, "err", err)
		}
	}
}

func (k *kafkaBroker) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	var firstErr error
	for topic, w := range k.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close writer for %s: %w", topic, err)
		}
	}
	return firstErr
}
