package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/egannguyen/cart-ecommerce/internal/entity"
	"github.com/egannguyen/cart-ecommerce/internal/payment"
)

// SignatureHeader carries the hex HMAC-SHA512 of the webhook body.
const SignatureHeader = "x-paystack-signature"

// Client talks to the Paystack transaction API.
type Client struct {
	baseURL  string
	secret   string
	currency string
	client   *http.Client
}

// NewClient builds a client whose requests are bounded by timeout.
func NewClient(baseURL, secret, currency string, timeout time.Duration) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		secret:   secret,
		currency: currency,
		client:   &http.Client{Timeout: timeout},
	}
}

type initializeRequest struct {
	Email     string `json:"email"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Reference string `json:"reference,omitempty"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type chargeAuthorizationRequest struct {
	AuthorizationCode string `json:"authorization_code"`
	Email             string `json:"email"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	Reference         string `json:"reference"`
}

type chargeAuthorizationData struct {
	Reference       string `json:"reference"`
	Status          string `json:"status"`
	GatewayResponse string `json:"gateway_response"`
}

// envelope is the wrapper around every Paystack API response.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// InitializeCharge opens a transaction. Every failure is reported as
// entity.ErrGatewayUnavailable wrapping the cause.
func (c *Client) InitializeCharge(ctx context.Context, req payment.ChargeRequest) (*payment.Charge, error) {
	var data initializeData
	err := c.post(ctx, "/transaction/initialize", initializeRequest{
		Email:     req.Email,
		Amount:    req.Amount,
		Currency:  c.currency,
		Reference: req.Reference,
	}, &data)
	if err != nil {
		return nil, err
	}
	if data.Reference == "" {
		return nil, fmt.Errorf("%w: response without reference", entity.ErrGatewayUnavailable)
	}
	return &payment.Charge{
		Reference:        data.Reference,
		AuthorizationURL: data.AuthorizationURL,
	}, nil
}

// ChargeAuthorization debits a saved card. A declined card is not an error:
// it comes back as a result with status "failed".
func (c *Client) ChargeAuthorization(ctx context.Context, req payment.AuthorizationCharge) (*payment.ChargeResult, error) {
	var data chargeAuthorizationData
	err := c.post(ctx, "/transaction/charge_authorization", chargeAuthorizationRequest{
		AuthorizationCode: req.AuthorizationCode,
		Email:             req.Email,
		Amount:            req.Amount,
		Currency:          c.currency,
		Reference:         req.Reference,
	}, &data)
	if err != nil {
		return nil, err
	}
	if data.Reference == "" {
		data.Reference = req.Reference
	}
	return &payment.ChargeResult{
		Reference:       data.Reference,
		Status:          data.Status,
		GatewayResponse: data.GatewayResponse,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, payload, data any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secret)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", entity.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", entity.ErrGatewayUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", entity.ErrGatewayUnavailable, resp.StatusCode)
	}

	var out envelope
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("%w: malformed response: %v", entity.ErrGatewayUnavailable, err)
	}
	if !out.Status {
		return fmt.Errorf("%w: %s", entity.ErrGatewayUnavailable, out.Message)
	}
	if err := json.Unmarshal(out.Data, data); err != nil {
		return fmt.Errorf("%w: malformed response data: %v", entity.ErrGatewayUnavailable, err)
	}
	return nil
}

// VerifySignature checks signature against HMAC-SHA512(secret, body) in constant time.
func (c *Client) VerifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	given, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha512.New, []byte(c.secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), given)
}

// Sign returns the signature Paystack would send for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

type webhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		Reference       string `json:"reference"`
		Amount          int64  `json:"amount"`
		Status          string `json:"status"`
		GatewayResponse string `json:"gateway_response"`
		Authorization   *struct {
			AuthorizationCode string `json:"authorization_code"`
			CardType          string `json:"card_type"`
			Last4             string `json:"last4"`
			ExpMonth          string `json:"exp_month"`
			ExpYear           string `json:"exp_year"`
			Bank              string `json:"bank"`
			Reusable          bool   `json:"reusable"`
		} `json:"authorization"`
	} `json:"data"`
}

// DecodeEvent parses a webhook body. Call only after VerifySignature.
func (c *Client) DecodeEvent(body []byte) (*payment.Event, error) {
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, entity.ValidationError("malformed webhook payload")
	}
	if p.Event == "" {
		return nil, entity.ValidationError("webhook event type is missing")
	}

	ev := &payment.Event{
		Type:            payment.EventType(p.Event),
		Reference:       p.Data.Reference,
		Amount:          p.Data.Amount,
		GatewayResponse: p.Data.GatewayResponse,
	}
	if a := p.Data.Authorization; a != nil && a.Reusable && a.AuthorizationCode != "" {
		ev.Card = &entity.SavedCard{
			AuthorizationCode: a.AuthorizationCode,
			CardType:          a.CardType,
			Last4:             a.Last4,
			ExpMonth:          a.ExpMonth,
			ExpYear:           a.ExpYear,
			Bank:              a.Bank,
		}
	}
	return ev, nil
}
