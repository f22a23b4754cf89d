package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/egannguyen/cart-ecommerce/internal/entity"
	"github.com/egannguyen/cart-ecommerce/internal/notify"
	"github.com/egannguyen/cart-ecommerce/internal/payment"
	"github.com/egannguyen/cart-ecommerce/internal/repository"
)

// Outcome classifies what a webhook delivery did.
type Outcome string

const (
	OutcomeApplied          Outcome = "applied"
	OutcomeDuplicate        Outcome = "duplicate"
	OutcomeUnknownReference Outcome = "unknown_reference"
	OutcomeIgnored          Outcome = "ignored"
)

// WebhookResult is returned for every authenticated delivery.
type WebhookResult struct {
	Outcome   Outcome           `json:"outcome"`
	Event     payment.EventType `json:"event,omitempty"`
	Reference string            `json:"reference,omitempty"`
	OrderID   string            `json:"order_id,omitempty"`
}

// WebhookReconciler applies gateway notifications to orders. Each payment
// transition is a compare-and-swap on the current status, so redelivered or
// concurrent events change an order at most once.
type WebhookReconciler struct {
	Deps
	gateway payment.Gateway
	now     func() time.Time
}

func NewWebhookReconciler(deps Deps, gateway payment.Gateway) (*WebhookReconciler, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if gateway == nil {
		return nil, errors.New("payment gateway is required")
	}
	return &WebhookReconciler{Deps: deps, gateway: gateway, now: time.Now}, nil
}

// Handle authenticates the raw body before anything else reads it.
func (r *WebhookReconciler) Handle(ctx context.Context, body []byte, signature string) (*WebhookResult, error) {
	if !r.gateway.VerifySignature(body, signature) {
		return nil, entity.ErrSignatureMismatch
	}

	ev, err := r.gateway.DecodeEvent(body)
	if err != nil {
		// Authentic but unreadable: redelivery cannot fix it.
		r.Logger.Errorw("Undecodable webhook payload", "err", err, "bytes", len(body))
		return &WebhookResult{Outcome: OutcomeIgnored}, nil
	}
	return r.Reconcile(ctx, ev)
}

// Reconcile applies a verified event.
func (r *WebhookReconciler) Reconcile(ctx context.Context, ev *payment.Event) (*WebhookResult, error) {
	result := &WebhookResult{Event: ev.Type, Reference: ev.Reference}
	switch ev.Type {
	case payment.EventChargeSuccess:
		return r.apply(ctx, ev, entity.MarkPaid, result)
	case payment.EventChargeFailed:
		return r.apply(ctx, ev, entity.MarkFailed, result)
	default:
		r.Logger.Infow("Webhook event skipped", "event", ev.Type, "reference", ev.Reference)
		result.Outcome = OutcomeIgnored
		return result, nil
	}
}

func (r *WebhookReconciler) apply(ctx context.Context, ev *payment.Event, t entity.PaymentTransition, result *WebhookResult) (*WebhookResult, error) {
	if ev.Reference == "" {
		result.Outcome = OutcomeUnknownReference
		r.Logger.Warnw("Webhook without reference", "event", ev.Type)
		return result, nil
	}

	order, err := r.Orders.TransitionPayment(ctx, ev.Reference, t)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		result.Outcome = OutcomeUnknownReference
		r.Logger.Warnw("Webhook for unknown reference", "event", ev.Type, "reference", ev.Reference)
		return result, nil
	case errors.Is(err, repository.ErrConflict):
		return r.classifyConflict(ctx, ev, t, result)
	case err != nil:
		return nil, fmt.Errorf("failed to apply %s for %s: %w", ev.Type, ev.Reference, err)
	}

	result.Outcome = OutcomeApplied
	result.OrderID = order.ID
	now := r.now()

	if t.To == entity.PaymentPaid {
		r.Logger.Infow("Payment confirmed", "order_id", order.ID, "reference", ev.Reference, "amount", ev.Amount)
		if ev.Amount != 0 && ev.Amount != order.TotalAmount {
			r.Logger.Warnw("Paid amount differs from order total", "order_id", order.ID, "paid", ev.Amount, "total", order.TotalAmount)
		}
		r.saveCard(ctx, order.BuyerID, ev.Card)
		r.emit(ctx, entity.EventOrderPaid, order, now)
		r.notifyUser(ctx, order.BuyerID, notify.TemplatePaymentSuccess, map[string]any{
			"order_id": order.ID,
			"amount":   order.TotalAmount,
			"items":    order.Items,
		})
		return result, nil
	}

	r.Logger.Infow("Payment failed", "order_id", order.ID, "reference", ev.Reference, "reason", ev.GatewayResponse)
	r.emit(ctx, entity.EventOrderPaymentFailed, order, now)
	r.notifyUser(ctx, order.BuyerID, notify.TemplatePaymentFailure, map[string]any{
		"order_id": order.ID,
		"reason":   ev.GatewayResponse,
	})
	return result, nil
}

// classifyConflict explains why the guarded update did not apply.
func (r *WebhookReconciler) classifyConflict(ctx context.Context, ev *payment.Event, t entity.PaymentTransition, result *WebhookResult) (*WebhookResult, error) {
	current, err := r.Orders.FindByReference(ctx, ev.Reference)
	if errors.Is(err, repository.ErrNotFound) {
		result.Outcome = OutcomeUnknownReference
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to reload order for %s: %w", ev.Reference, err)
	}
	result.OrderID = current.ID

	switch {
	case current.PaymentStatus == t.To:
		result.Outcome = OutcomeDuplicate
		r.Logger.Infow("Duplicate webhook", "event", ev.Type, "order_id", current.ID)
	case current.PaymentStatus == entity.PaymentPending && current.DeliveryStatus == entity.DeliveryCancelled:
		result.Outcome = OutcomeIgnored
		r.Logger.Errorw("Payment received for cancelled order, refund required", "order_id", current.ID, "reference", ev.Reference, "amount", ev.Amount)
	default:
		// A failure after success (or the reverse) never rewrites a terminal status.
		result.Outcome = OutcomeDuplicate
		r.Logger.Warnw("Webhook conflicts with terminal payment status", "event", ev.Type, "order_id", current.ID, "status", current.PaymentStatus)
	}
	return result, nil
}

func (r *WebhookReconciler) saveCard(ctx context.Context, userID string, card *entity.SavedCard) {
	if card == nil {
		return
	}
	added, err := r.Users.AddSavedCard(ctx, userID, *card)
	if err != nil {
		r.Logger.Errorw("Failed to save card", "user_id", userID, "err", err)
		return
	}
	if added {
		r.Logger.Infow("Card saved", "user_id", userID, "last4", card.Last4)
	}
}
