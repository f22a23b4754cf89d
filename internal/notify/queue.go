package notify

import (
	"context"
	"encoding/json"
	"fmt"
)

// JobPublisher puts a message body on a named queue.
type JobPublisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// QueueNotifier hands messages to the worker through a durable queue.
type QueueNotifier struct {
	publisher JobPublisher
	queue     string
}

func NewQueueNotifier(publisher JobPublisher, queue string) *QueueNotifier {
	return &QueueNotifier{publisher: publisher, queue: queue}
}

func (n *QueueNotifier) Send(ctx context.Context, msg Message) error {
	if _, ok := templates[msg.Template]; !ok {
		return fmt.Errorf("unknown template %q", msg.Template)
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal email job: %w", err)
	}
	if err := n.publisher.Publish(ctx, n.queue, body); err != nil {
		return fmt.Errorf("failed to queue email job: %w", err)
	}
	return nil
}

// HandleJob decodes a queued message and sends it with n. Used by the worker.
func HandleJob(ctx context.Context, n Notifier, body []byte) error {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal email job: %w", err)
	}
	return n.Send(ctx, msg)
}
