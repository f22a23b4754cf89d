package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/egannguyen/cart-ecommerce/internal/entity"
	"github.com/egannguyen/cart-ecommerce/internal/notify"
	"github.com/egannguyen/cart-ecommerce/internal/repository"
)

// RetentionPeriod is how long cancelled orders are kept.
const RetentionPeriod = 365 * 24 * time.Hour

// OrderGroups is a buyer's order history keyed by delivery status.
type OrderGroups struct {
	Pending   []entity.Order `json:"pending"`
	Shipped   []entity.Order `json:"shipped"`
	Delivered []entity.Order `json:"delivered"`
	Cancelled []entity.Order `json:"cancelled"`
}

// DeliveryConfirmation is the result of a buyer's receipt confirmation.
type DeliveryConfirmation struct {
	Order *entity.Order `json:"order"`
	// Escalate is set when the buyer reports the order was not received.
	Escalate bool   `json:"escalate"`
	Message  string `json:"message"`
}

// FulfillmentService drives the delivery axis of an order.
type FulfillmentService struct {
	Deps
	now func() time.Time
}

func NewFulfillmentService(deps Deps) (*FulfillmentService, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	return &FulfillmentService{Deps: deps, now: time.Now}, nil
}

// MarkShipped moves a paid order from pending to shipped.
func (s *FulfillmentService) MarkShipped(ctx context.Context, caller entity.Identity, orderID string) (*entity.Order, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	order, err := s.transition(ctx, orderID, entity.Ship)
	if err != nil {
		return nil, err
	}
	s.Logger.Infow("Order shipped", "order_id", order.ID)
	s.emit(ctx, entity.EventOrderShipped, order, s.now())
	s.notifyUser(ctx, order.BuyerID, notify.TemplateOrderShipped, map[string]any{
		"order_id": order.ID,
		"items":    order.Items,
	})
	return order, nil
}

// RequestDeliveryConfirmation asks the buyer of a shipped order to confirm receipt.
func (s *FulfillmentService) RequestDeliveryConfirmation(ctx context.Context, caller entity.Identity, orderID string) (*entity.Order, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.DeliveryStatus != entity.DeliveryShipped {
		return nil, entity.ErrInvalidTransition
	}
	s.notifyUser(ctx, order.BuyerID, notify.TemplateOrderDelivered, map[string]any{
		"order_id": order.ID,
		"items":    order.Items,
	})
	return order, nil
}

// ConfirmDelivery records the buyer's answer for a shipped order. A negative
// answer changes nothing and asks the caller to escalate to support.
func (s *FulfillmentService) ConfirmDelivery(ctx context.Context, caller entity.Identity, orderID string, received bool) (*DeliveryConfirmation, error) {
	order, err := s.ownedOrder(ctx, caller, orderID)
	if err != nil {
		return nil, err
	}
	if order.DeliveryStatus != entity.DeliveryShipped {
		return nil, entity.ErrInvalidTransition
	}
	if !received {
		s.Logger.Warnw("Buyer reports order not received", "order_id", order.ID, "buyer_id", order.BuyerID)
		return &DeliveryConfirmation{
			Order:    order,
			Escalate: true,
			Message:  "we are sorry your order has not arrived; please contact support",
		}, nil
	}

	updated, err := s.transition(ctx, order.ID, entity.Deliver)
	if err != nil {
		return nil, err
	}
	s.Logger.Infow("Order delivered", "order_id", updated.ID)
	s.emit(ctx, entity.EventOrderDelivered, updated, s.now())
	return &DeliveryConfirmation{Order: updated, Message: "thank you for confirming delivery"}, nil
}

// Cancel cancels a pending order that has not been paid.
func (s *FulfillmentService) Cancel(ctx context.Context, caller entity.Identity, orderID string) (*entity.Order, error) {
	order, err := s.ownedOrder(ctx, caller, orderID)
	if err != nil {
		return nil, err
	}
	updated, err := s.Orders.TransitionDelivery(ctx, order.ID, entity.Cancel)
	if errors.Is(err, repository.ErrConflict) {
		return nil, entity.ErrCancellationDenied
	}
	if err != nil {
		return nil, fmt.Errorf("failed to cancel order: %w", err)
	}
	s.Logger.Infow("Order cancelled", "order_id", updated.ID)
	s.emit(ctx, entity.EventOrderCancelled, updated, s.now())
	return updated, nil
}

// ConfirmOrder settles a paid order, crediting the catalog purchase counters once.
func (s *FulfillmentService) ConfirmOrder(ctx context.Context, caller entity.Identity, orderID string) (*entity.Order, error) {
	order, err := s.ownedOrder(ctx, caller, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus != entity.PaymentPaid {
		return nil, entity.ErrOrderNotPaid
	}
	if order.Settled {
		return order, entity.ErrDuplicateEvent
	}

	updated, err := s.Orders.Settle(ctx, order.ID)
	if errors.Is(err, repository.ErrConflict) {
		return order, entity.ErrDuplicateEvent
	}
	if err != nil {
		return nil, fmt.Errorf("failed to settle order: %w", err)
	}
	s.Logger.Infow("Order settled", "order_id", updated.ID, "items", len(updated.Items))
	s.emit(ctx, entity.EventOrderSettled, updated, s.now())
	return updated, nil
}

// GetOrder returns an order to its buyer or an admin.
func (s *FulfillmentService) GetOrder(ctx context.Context, caller entity.Identity, orderID string) (*entity.Order, error) {
	if caller.IsAdmin() {
		return s.findOrder(ctx, orderID)
	}
	return s.ownedOrder(ctx, caller, orderID)
}

// History returns the recorded events of an order to its buyer or an admin.
func (s *FulfillmentService) History(ctx context.Context, caller entity.Identity, orderID string) ([]entity.HistoryEntry, error) {
	if _, err := s.GetOrder(ctx, caller, orderID); err != nil {
		return nil, err
	}
	if s.Deps.History == nil {
		return []entity.HistoryEntry{}, nil
	}
	entries, err := s.Deps.History.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order history: %w", err)
	}
	if entries == nil {
		entries = []entity.HistoryEntry{}
	}
	return entries, nil
}

// ListOrders purges the buyer's expired cancellations, then groups the rest.
func (s *FulfillmentService) ListOrders(ctx context.Context, caller entity.Identity) (*OrderGroups, error) {
	cutoff := s.now().Add(-RetentionPeriod)
	purged, err := s.Orders.DeleteCancelledBefore(ctx, caller.UserID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to purge cancelled orders: %w", err)
	}
	if purged > 0 {
		s.Logger.Infow("Purged cancelled orders", "buyer_id", caller.UserID, "count", purged)
	}

	orders, err := s.Orders.ListByBuyer(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	groups := &OrderGroups{
		Pending:   []entity.Order{},
		Shipped:   []entity.Order{},
		Delivered: []entity.Order{},
		Cancelled: []entity.Order{},
	}
	for _, o := range orders {
		switch o.DeliveryStatus {
		case entity.DeliveryPending:
			groups.Pending = append(groups.Pending, o)
		case entity.DeliveryShipped:
			groups.Shipped = append(groups.Shipped, o)
		case entity.DeliveryDelivered:
			groups.Delivered = append(groups.Delivered, o)
		case entity.DeliveryCancelled:
			groups.Cancelled = append(groups.Cancelled, o)
		}
	}
	return groups, nil
}

// ListAll returns every order matching filter.
func (s *FulfillmentService) ListAll(ctx context.Context, caller entity.Identity, filter entity.OrderFilter) ([]entity.Order, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if filter.PaymentStatus != "" && !filter.PaymentStatus.Valid() {
		return nil, entity.ValidationError("unknown payment status")
	}
	if filter.DeliveryStatus != "" && !filter.DeliveryStatus.Valid() {
		return nil, entity.ValidationError("unknown delivery status")
	}
	orders, err := s.Orders.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// transition applies t and classifies a failed guard.
func (s *FulfillmentService) transition(ctx context.Context, orderID string, t entity.DeliveryTransition) (*entity.Order, error) {
	updated, err := s.Orders.TransitionDelivery(ctx, orderID, t)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, entity.ErrOrderNotFound
	case errors.Is(err, repository.ErrConflict):
		if t.RequiresPayment != "" {
			if current, ferr := s.findOrder(ctx, orderID); ferr == nil &&
				current.DeliveryStatus == t.From && current.PaymentStatus != t.RequiresPayment {
				return nil, entity.ErrOrderNotPaid
			}
		}
		return nil, entity.ErrInvalidTransition
	case err != nil:
		return nil, fmt.Errorf("failed to update delivery status: %w", err)
	}
	return updated, nil
}
