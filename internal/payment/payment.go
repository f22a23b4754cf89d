package payment

import (
	"context"

	"github.com/egannguyen/cart-ecommerce/internal/entity"
)

// EventType is the normalized kind of a gateway notification.
type EventType string

const (
	EventChargeSuccess EventType = "charge.success"
	EventChargeFailed  EventType = "charge.failed"
)

// ChargeRequest asks the gateway for a checkout session. Amount is in minor units.
type ChargeRequest struct {
	Email     string
	Amount    int64
	Reference string
}

// Charge is the session returned by the gateway.
type Charge struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
}

// AuthorizationCharge debits a card saved from an earlier payment.
type AuthorizationCharge struct {
	Email             string
	Amount            int64
	Reference         string
	AuthorizationCode string
}

// ChargeResult is the gateway's immediate answer to an authorization charge.
// The order only changes when the matching webhook arrives.
type ChargeResult struct {
	Reference       string `json:"reference"`
	Status          string `json:"status"`
	GatewayResponse string `json:"gateway_response"`
}

// Event is a decoded, signature-verified gateway notification.
type Event struct {
	Type            EventType
	Reference       string
	Amount          int64
	GatewayResponse string
	// Card is set when the charge produced a reusable authorization.
	Card *entity.SavedCard
}

// Gateway opens checkout sessions, charges saved cards and authenticates
// notifications.
type Gateway interface {
	InitializeCharge(ctx context.Context, req ChargeRequest) (*Charge, error)
	ChargeAuthorization(ctx context.Context, req AuthorizationCharge) (*ChargeResult, error)
	VerifySignature(body []byte, signature string) bool
	DecodeEvent(body []byte) (*Event, error)
}
