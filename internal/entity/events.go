package entity

import (
	"encoding/json"
	"time"
)

// Event represents a domain event.
type Event interface {
	EventType() string
}

const (
	EventOrderCreated          = "order.created"
	EventOrderPaymentInitiated = "order.payment_initiated"
	EventOrderPaid             = "order.paid"
	EventOrderPaymentFailed    = "order.payment_failed"
	EventOrderShipped          = "order.shipped"
	EventOrderDelivered        = "order.delivered"
	EventOrderCancelled        = "order.cancelled"
	EventOrderSettled          = "order.settled"
)

// OrderEvent is published after every effective order transition.
type OrderEvent struct {
	Type           string         `json:"type"`
	OrderID        string         `json:"order_id"`
	BuyerID        string         `json:"buyer_id"`
	Amount         int64          `json:"amount"`
	DeliveryFee    int64          `json:"delivery_fee"`
	Region         string         `json:"region,omitempty"`
	PaymentStatus  PaymentStatus  `json:"payment_status"`
	DeliveryStatus DeliveryStatus `json:"delivery_status"`
	Items          []LineItem     `json:"items"`
	At             time.Time      `json:"at"`
}

func (e OrderEvent) EventType() string { return e.Type }

// NewOrderEvent snapshots o into an event of the given type.
func NewOrderEvent(eventType string, o *Order, at time.Time) OrderEvent {
	e := OrderEvent{
		Type:           eventType,
		OrderID:        o.ID,
		BuyerID:        o.BuyerID,
		Amount:         o.TotalAmount,
		DeliveryFee:    o.DeliveryFee,
		PaymentStatus:  o.PaymentStatus,
		DeliveryStatus: o.DeliveryStatus,
		Items:          o.Items,
		At:             at,
	}
	if o.DeliveryAddress != nil {
		e.Region = o.DeliveryAddress.Region
	}
	return e
}

// HistoryEntry is one stored order event. Version counts from 1 per order.
type HistoryEntry struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	Version   int             `json:"version"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
