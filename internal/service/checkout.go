package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/egannguyen/cart-ecommerce/internal/entity"
	"github.com/egannguyen/cart-ecommerce/internal/repository"
	"github.com/google/uuid"
)

// CheckoutItem is one requested line of a checkout.
type CheckoutItem struct {
	CustomID string `json:"custom_id"`
	Quantity int    `json:"quantity"`
	Color    string `json:"color,omitempty"`
	Size     int    `json:"size,omitempty"`
}

// CheckoutService turns carts into pending orders and prices delivery.
type CheckoutService struct {
	Deps
	fees FeeTable
	now  func() time.Time
}

func NewCheckoutService(deps Deps, fees FeeTable) (*CheckoutService, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	return &CheckoutService{Deps: deps, fees: fees, now: time.Now}, nil
}

// Checkout snapshots each item at its effective price into a new pending order.
func (s *CheckoutService) Checkout(ctx context.Context, buyer entity.Identity, items []CheckoutItem) (*entity.Order, error) {
	if len(items) == 0 {
		return nil, entity.ErrEmptyCart
	}
	for _, it := range items {
		if strings.TrimSpace(it.CustomID) == "" {
			return nil, entity.ValidationError("custom_id is required for every item")
		}
		if it.Quantity < 1 {
			return nil, entity.ValidationError("quantity must be at least 1")
		}
	}

	now := s.now()
	lines := make([]entity.LineItem, 0, len(items))
	for _, it := range items {
		item, err := s.findItem(ctx, it.CustomID)
		if err != nil {
			return nil, err
		}
		lines = append(lines, entity.LineItem{
			ItemID:    item.ID,
			CustomID:  item.CustomID,
			Name:      item.Name,
			Quantity:  it.Quantity,
			Color:     it.Color,
			Size:      it.Size,
			UnitPrice: item.EffectivePrice(now),
		})
	}

	order := entity.NewOrder(uuid.NewString(), buyer.UserID, lines, now)
	if err := s.Orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.Logger.Infow("Order created", "order_id", order.ID, "buyer_id", buyer.UserID, "items", len(lines), "subtotal", order.Subtotal)
	s.emit(ctx, entity.EventOrderCreated, order, now)
	return order, nil
}

// CheckoutCart checks out the buyer's stored cart and empties it.
func (s *CheckoutService) CheckoutCart(ctx context.Context, buyer entity.Identity) (*entity.Order, error) {
	if s.Carts == nil {
		return nil, entity.ErrEmptyCart
	}
	lines, err := s.Carts.Get(ctx, buyer.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	items := make([]CheckoutItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, CheckoutItem{CustomID: l.CustomID, Quantity: l.Quantity, Color: l.Color, Size: l.Size})
	}

	order, err := s.Checkout(ctx, buyer, items)
	if err != nil {
		return nil, err
	}
	if err := s.Carts.Clear(ctx, buyer.UserID); err != nil {
		s.Logger.Errorw("Failed to clear cart after checkout", "buyer_id", buyer.UserID, "err", err)
	}
	return order, nil
}

// SelectAddress attaches the delivery address and fee. It runs once per order,
// before payment is initiated.
func (s *CheckoutService) SelectAddress(ctx context.Context, caller entity.Identity, orderID, addressID string) (*entity.Order, error) {
	if addressID == "" {
		return nil, entity.ValidationError("address_id is required")
	}
	order, err := s.ownedOrder(ctx, caller, orderID)
	if err != nil {
		return nil, err
	}
	if order.Priced() || order.PaymentReference != "" || order.DeliveryStatus != entity.DeliveryPending {
		return nil, entity.ErrInvalidTransition
	}

	addr, err := s.Users.FindAddress(ctx, caller.UserID, addressID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, entity.ErrAddressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load address: %w", err)
	}

	fee := s.fees.Fee(order.Subtotal, addr.Region)
	updated, err := s.Orders.AttachAddress(ctx, order.ID, addr.Snapshot(), fee, order.Subtotal+fee)
	if errors.Is(err, repository.ErrConflict) {
		return nil, entity.ErrInvalidTransition
	}
	if err != nil {
		return nil, fmt.Errorf("failed to attach address: %w", err)
	}

	s.Logger.Infow("Delivery address attached", "order_id", order.ID, "region", addr.Region, "fee", fee, "total", updated.TotalAmount)
	return updated, nil
}
