// Package analytics turns order lifecycle events into sales facts.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/egannguyen/cart-ecommerce/internal/entity"
)

// OrderFact is one row per order event.
type OrderFact struct {
	OrderID        string
	BuyerID        string
	EventType      string
	Amount         int64
	DeliveryFee    int64
	Region         string
	PaymentStatus  string
	DeliveryStatus string
	ItemCount      int
	EventTime      time.Time
}

// ItemSaleFact is one row per line item of a settled order.
type ItemSaleFact struct {
	OrderID   string
	CustomID  string
	Name      string
	Quantity  int
	UnitPrice int64
	Revenue   int64
	EventTime time.Time
}

// Sink stores facts.
type Sink interface {
	InsertOrderFact(ctx context.Context, fact OrderFact) error
	InsertItemSales(ctx context.Context, facts []ItemSaleFact) error
}

// Recorder consumes serialized order events and writes them to a Sink.
type Recorder struct {
	sink   Sink
	logger *zap.SugaredLogger
}

func NewRecorder(sink Sink, logger *zap.SugaredLogger) *Recorder {
	return &Recorder{sink: sink, logger: logger}
}

// HandleMessage is a messaging.Subscriber handler for the order events topic.
func (r *Recorder) HandleMessage(ctx context.Context, payload []byte) error {
	var evt entity.OrderEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return fmt.Errorf("failed to unmarshal order event: %w", err)
	}
	if evt.OrderID == "" || evt.Type == "" {
		r.logger.Warnw("Skipping incomplete order event", "payload", string(payload))
		return nil
	}
	return r.Record(ctx, evt)
}

func (r *Recorder) Record(ctx context.Context, evt entity.OrderEvent) error {
	if err := r.sink.InsertOrderFact(ctx, orderFact(evt)); err != nil {
		return fmt.Errorf("failed to record order fact: %w", err)
	}
	if evt.Type != entity.EventOrderSettled || len(evt.Items) == 0 {
		return nil
	}

	if err := r.sink.InsertItemSales(ctx, itemSales(evt)); err != nil {
		return fmt.Errorf("failed to record item sales: %w", err)
	}
	r.logger.Debugw("Recorded settled order", "order_id", evt.OrderID, "lines", len(evt.Items))
	return nil
}

func orderFact(evt entity.OrderEvent) OrderFact {
	count := 0
	for _, li := range evt.Items {
		count += li.Quantity
	}
	return OrderFact{
		OrderID:        evt.OrderID,
		BuyerID:        evt.BuyerID,
		EventType:      evt.Type,
		Amount:         evt.Amount,
		DeliveryFee:    evt.DeliveryFee,
		Region:         evt.Region,
		PaymentStatus:  string(evt.PaymentStatus),
		DeliveryStatus: string(evt.DeliveryStatus),
		ItemCount:      count,
		EventTime:      evt.At,
	}
}

func itemSales(evt entity.OrderEvent) []ItemSaleFact {
	facts := make([]ItemSaleFact, 0, len(evt.Items))
	for _, li := range evt.Items {
		facts = append(facts, ItemSaleFact{
			OrderID:   evt.OrderID,
			CustomID:  li.CustomID,
			Name:      li.Name,
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice,
			Revenue:   li.Amount(),
			EventTime: evt.At,
		})
	}
	return facts
}
