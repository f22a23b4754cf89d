package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/egannguyen/cart-ecommerce/internal/entity"
	"github.com/egannguyen/cart-ecommerce/internal/notify"
	"github.com/egannguyen/cart-ecommerce/internal/payment"
	"github.com/egannguyen/cart-ecommerce/internal/repository"
	"github.com/google/uuid"
)

// PaymentSession tells the buyer where to complete payment.
type PaymentSession struct {
	OrderID          string `json:"order_id"`
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	Amount           int64  `json:"amount"`
}

// PaymentService opens gateway charges for priced orders.
type PaymentService struct {
	Deps
	gateway      payment.Gateway
	now          func() time.Time
	newReference func() string
}

func NewPaymentService(deps Deps, gateway payment.Gateway) (*PaymentService, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if gateway == nil {
		return nil, errors.New("payment gateway is required")
	}
	return &PaymentService{
		Deps:         deps,
		gateway:      gateway,
		now:          time.Now,
		newReference: uuid.NewString,
	}, nil
}

// Initiate requests a charge for the order total and records the gateway
// reference. Gateway failures leave the order untouched. A repeat call on an
// order that already has a reference returns the existing session.
func (s *PaymentService) Initiate(ctx context.Context, caller entity.Identity, orderID string, amount int64) (*PaymentSession, error) {
	order, err := s.ownedOrder(ctx, caller, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus != entity.PaymentPending || order.DeliveryStatus != entity.DeliveryPending {
		return nil, entity.ErrInvalidTransition
	}
	if order.PaymentReference != "" {
		if order.PaymentURL == "" {
			return nil, entity.ValidationError("order is being paid with a saved card")
		}
		return sessionOf(order), nil
	}
	if !order.Priced() {
		return nil, entity.ValidationError("select a delivery address before paying")
	}
	if amount != 0 && amount != order.TotalAmount {
		return nil, entity.ValidationError("amount does not match the order total")
	}

	email, err := s.buyerEmail(ctx, caller)
	if err != nil {
		return nil, err
	}

	charge, err := s.gateway.InitializeCharge(ctx, payment.ChargeRequest{
		Email:     email,
		Amount:    order.TotalAmount,
		Reference: s.newReference(),
	})
	if err != nil {
		s.Logger.Warnw("Charge initialization failed", "order_id", order.ID, "err", err)
		if entity.KindOf(err) != entity.KindGatewayUnavailable {
			err = fmt.Errorf("%w: %v", entity.ErrGatewayUnavailable, err)
		}
		return nil, err
	}

	updated, err := s.Orders.AttachReference(ctx, order.ID, charge.Reference, charge.AuthorizationURL)
	if errors.Is(err, repository.ErrConflict) {
		// A concurrent request attached its reference first.
		current, ferr := s.findOrder(ctx, order.ID)
		if ferr == nil && current.PaymentReference != "" {
			return sessionOf(current), nil
		}
		return nil, entity.ErrInvalidTransition
	}
	if err != nil {
		return nil, fmt.Errorf("failed to attach payment reference: %w", err)
	}

	s.Logger.Infow("Payment initiated", "order_id", order.ID, "reference", charge.Reference, "amount", order.TotalAmount)
	s.emit(ctx, entity.EventOrderPaymentInitiated, updated, s.now())
	s.notifyUser(ctx, order.BuyerID, notify.TemplatePaymentVerify, map[string]any{
		"order_id": order.ID,
		"amount":   order.TotalAmount,
		"link":     charge.AuthorizationURL,
	})
	return sessionOf(updated), nil
}

func sessionOf(o *entity.Order) *PaymentSession {
	return &PaymentSession{
		OrderID:          o.ID,
		Reference:        o.PaymentReference,
		AuthorizationURL: o.PaymentURL,
		Amount:           o.TotalAmount,
	}
}

// CardPayment is the gateway's immediate answer to a saved-card charge. The
// order is marked paid or failed by the webhook that follows.
type CardPayment struct {
	OrderID         string `json:"order_id"`
	Reference       string `json:"reference"`
	Amount          int64  `json:"amount"`
	Status          string `json:"status"`
	GatewayResponse string `json:"gateway_response,omitempty"`
}

// PayWithSavedCard charges one of the caller's saved cards for the order total.
// The reference is attached before the gateway call so the webhook always finds
// the order. A retry reuses that reference, and the gateway refuses to debit the
// same reference twice.
func (s *PaymentService) PayWithSavedCard(ctx context.Context, caller entity.Identity, orderID, cardID string) (*CardPayment, error) {
	cardID = strings.TrimSpace(cardID)
	if cardID == "" {
		return nil, entity.ValidationError("card_id is required")
	}
	order, err := s.ownedOrder(ctx, caller, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus != entity.PaymentPending || order.DeliveryStatus != entity.DeliveryPending {
		return nil, entity.ErrInvalidTransition
	}
	if !order.Priced() {
		return nil, entity.ValidationError("select a delivery address before paying")
	}
	if order.PaymentURL != "" {
		return nil, entity.ValidationError("a checkout link is already open for this order")
	}

	card, err := s.savedCard(ctx, caller.UserID, cardID)
	if err != nil {
		return nil, err
	}
	email, err := s.buyerEmail(ctx, caller)
	if err != nil {
		return nil, err
	}

	if order.PaymentReference == "" {
		updated, err := s.Orders.AttachReference(ctx, order.ID, s.newReference(), "")
		switch {
		case errors.Is(err, repository.ErrConflict):
			current, ferr := s.findOrder(ctx, order.ID)
			if ferr != nil || current.PaymentReference == "" || current.PaymentURL != "" {
				return nil, entity.ErrInvalidTransition
			}
			order = current
		case err != nil:
			return nil, fmt.Errorf("failed to attach payment reference: %w", err)
		default:
			order = updated
			s.emit(ctx, entity.EventOrderPaymentInitiated, updated, s.now())
		}
	}

	result, err := s.gateway.ChargeAuthorization(ctx, payment.AuthorizationCharge{
		Email:             email,
		Amount:            order.TotalAmount,
		Reference:         order.PaymentReference,
		AuthorizationCode: card.AuthorizationCode,
	})
	if err != nil {
		s.Logger.Warnw("Saved card charge failed", "order_id", order.ID, "reference", order.PaymentReference, "err", err)
		if entity.KindOf(err) != entity.KindGatewayUnavailable {
			err = fmt.Errorf("%w: %v", entity.ErrGatewayUnavailable, err)
		}
		return nil, err
	}

	s.Logger.Infow("Saved card charged", "order_id", order.ID, "reference", order.PaymentReference, "status", result.Status)
	return &CardPayment{
		OrderID:         order.ID,
		Reference:       order.PaymentReference,
		Amount:          order.TotalAmount,
		Status:          result.Status,
		GatewayResponse: result.GatewayResponse,
	}, nil
}

func (s *PaymentService) savedCard(ctx context.Context, userID, cardID string) (*entity.SavedCard, error) {
	cards, err := s.Users.ListSavedCards(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load saved cards: %w", err)
	}
	for i := range cards {
		if cards[i].CardID() == cardID {
			return &cards[i], nil
		}
	}
	return nil, entity.ErrCardNotFound
}

func (s *PaymentService) buyerEmail(ctx context.Context, caller entity.Identity) (string, error) {
	if caller.Email != "" {
		return caller.Email, nil
	}
	user, err := s.Users.FindByID(ctx, caller.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to load buyer: %w", err)
	}
	return user.Email, nil
}
