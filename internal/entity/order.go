package entity

import "time"

// PaymentStatus is the payment axis of an order.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// DeliveryStatus is the fulfillment axis of an order.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryShipped   DeliveryStatus = "shipped"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryCancelled DeliveryStatus = "cancelled"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending: {PaymentPaid, PaymentFailed},
}

var deliveryTransitions = map[DeliveryStatus][]DeliveryStatus{
	DeliveryPending: {DeliveryShipped, DeliveryCancelled},
	DeliveryShipped: {DeliveryDelivered},
}

// CanTransitionTo reports whether the payment axis may move from s to next.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed:
		return true
	}
	return false
}

// CanTransitionTo reports whether the delivery axis may move from s to next.
func (s DeliveryStatus) CanTransitionTo(next DeliveryStatus) bool {
	for _, allowed := range deliveryTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryPending, DeliveryShipped, DeliveryDelivered, DeliveryCancelled:
		return true
	}
	return false
}

// PaymentTransition is a guarded move on the payment axis. Stores apply it as a
// single conditional update keyed on the current status.
type PaymentTransition struct {
	From PaymentStatus
	To   PaymentStatus
	// BlockedBy names a delivery status under which the move is refused.
	BlockedBy DeliveryStatus
}

// DeliveryTransition is a guarded move on the delivery axis.
type DeliveryTransition struct {
	From DeliveryStatus
	To   DeliveryStatus
	// RequiresPayment, when set, must equal the current payment status.
	RequiresPayment PaymentStatus
	// ForbidsPayment, when set, must differ from the current payment status.
	ForbidsPayment PaymentStatus
}

var (
	MarkPaid   = PaymentTransition{From: PaymentPending, To: PaymentPaid, BlockedBy: DeliveryCancelled}
	MarkFailed = PaymentTransition{From: PaymentPending, To: PaymentFailed}

	Ship    = DeliveryTransition{From: DeliveryPending, To: DeliveryShipped, RequiresPayment: PaymentPaid}
	Deliver = DeliveryTransition{From: DeliveryShipped, To: DeliveryDelivered}
	Cancel  = DeliveryTransition{From: DeliveryPending, To: DeliveryCancelled, ForbidsPayment: PaymentPaid}
)

// Allows reports whether t may be applied to o in its current state.
func (t PaymentTransition) Allows(o *Order) bool {
	if !t.From.CanTransitionTo(t.To) || o.PaymentStatus != t.From {
		return false
	}
	return t.BlockedBy == "" || o.DeliveryStatus != t.BlockedBy
}

// Allows reports whether t may be applied to o in its current state.
func (t DeliveryTransition) Allows(o *Order) bool {
	if !t.From.CanTransitionTo(t.To) || o.DeliveryStatus != t.From {
		return false
	}
	if t.RequiresPayment != "" && o.PaymentStatus != t.RequiresPayment {
		return false
	}
	return t.ForbidsPayment == "" || o.PaymentStatus != t.ForbidsPayment
}

// LineItem is a catalog item snapshotted into an order at checkout.
type LineItem struct {
	ItemID    string `json:"item_id"`
	CustomID  string `json:"custom_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Color     string `json:"color,omitempty"`
	Size      int    `json:"size,omitempty"`
	UnitPrice int64  `json:"unit_price"`
}

// Amount is the line total at the snapshot price.
func (li LineItem) Amount() int64 {
	return li.UnitPrice * int64(li.Quantity)
}

// ShippingAddress is the address snapshot stored on an order.
type ShippingAddress struct {
	Recipient string `json:"recipient"`
	Phone     string `json:"phone"`
	Street    string `json:"street"`
	City      string `json:"city"`
	Region    string `json:"region"`
}

// Order represents a customer order. Amounts are in minor currency units.
type Order struct {
	ID               string           `json:"id"`
	BuyerID          string           `json:"buyer_id"`
	Items            []LineItem       `json:"items"`
	DeliveryAddress  *ShippingAddress `json:"delivery_address,omitempty"`
	Subtotal         int64            `json:"subtotal"`
	DeliveryFee      int64            `json:"delivery_fee"`
	TotalAmount      int64            `json:"total_amount"`
	PaymentStatus    PaymentStatus    `json:"payment_status"`
	DeliveryStatus   DeliveryStatus   `json:"delivery_status"`
	PaymentReference string           `json:"payment_reference,omitempty"`
	PaymentURL       string           `json:"payment_url,omitempty"`
	Settled          bool             `json:"settled"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// NewOrder builds a pending order from snapshotted line items.
func NewOrder(id, buyerID string, items []LineItem, now time.Time) *Order {
	var subtotal int64
	for _, item := range items {
		subtotal += item.Amount()
	}
	return &Order{
		ID:             id,
		BuyerID:        buyerID,
		Items:          items,
		Subtotal:       subtotal,
		TotalAmount:    subtotal,
		PaymentStatus:  PaymentPending,
		DeliveryStatus: DeliveryPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (o *Order) OwnedBy(userID string) bool {
	return o.BuyerID == userID
}

// ContainsItem reports whether any line item references the catalog item.
func (o *Order) ContainsItem(itemID string) bool {
	for _, item := range o.Items {
		if item.ItemID == itemID {
			return true
		}
	}
	return false
}

// Priced reports whether the address step has run.
func (o *Order) Priced() bool {
	return o.DeliveryAddress != nil
}

// OrderFilter narrows admin listings. Empty fields match everything.
type OrderFilter struct {
	PaymentStatus  PaymentStatus
	DeliveryStatus DeliveryStatus
	Limit          int
	Offset         int
}
