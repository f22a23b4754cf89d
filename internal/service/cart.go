package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/egannguyen/cart-ecommerce/internal/entity"
)

// CartService manages a buyer's cart.
type CartService struct {
	Deps
	now func() time.Time
}

func NewCartService(deps Deps) (*CartService, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.Carts == nil {
		return nil, errors.New("cart repository is required")
	}
	return &CartService{Deps: deps, now: time.Now}, nil
}

// Add merges the line into the cart after checking the item exists.
func (s *CartService) Add(ctx context.Context, buyer entity.Identity, line entity.CartLine) (*entity.CartView, error) {
	line.CustomID = strings.TrimSpace(line.CustomID)
	if line.CustomID == "" {
		return nil, entity.ValidationError("custom_id is required")
	}
	if line.Quantity < 1 {
		return nil, entity.ValidationError("quantity must be at least 1")
	}
	if _, err := s.findItem(ctx, line.CustomID); err != nil {
		return nil, err
	}
	if err := s.Carts.Add(ctx, buyer.UserID, line); err != nil {
		return nil, fmt.Errorf("failed to add to cart: %w", err)
	}
	return s.View(ctx, buyer)
}

// View prices the cart at current effective prices. Lines whose item
// disappeared from the catalog are skipped.
func (s *CartService) View(ctx context.Context, buyer entity.Identity) (*entity.CartView, error) {
	lines, err := s.Carts.Get(ctx, buyer.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	now := s.now()
	view := &entity.CartView{Items: []entity.CartEntry{}}
	for _, l := range lines {
		item, err := s.findItem(ctx, l.CustomID)
		if errors.Is(err, entity.ErrItemNotFound) {
			s.Logger.Warnw("Cart references missing item", "buyer_id", buyer.UserID, "custom_id", l.CustomID)
			continue
		}
		if err != nil {
			return nil, err
		}
		price := item.EffectivePrice(now)
		amount := price * int64(l.Quantity)
		view.Items = append(view.Items, entity.CartEntry{CartLine: l, Name: item.Name, UnitPrice: price, Amount: amount})
		view.Subtotal += amount
	}
	return view, nil
}

func (s *CartService) Remove(ctx context.Context, buyer entity.Identity, customID string) (*entity.CartView, error) {
	if err := s.Carts.Remove(ctx, buyer.UserID, customID); err != nil {
		return nil, fmt.Errorf("failed to remove from cart: %w", err)
	}
	return s.View(ctx, buyer)
}

func (s *CartService) Clear(ctx context.Context, buyer entity.Identity) error {
	if err := s.Carts.Clear(ctx, buyer.UserID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}
