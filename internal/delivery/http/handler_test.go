package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/egannguyen/cart-ecommerce/internal/auth"
	"github.com/egannguyen/cart-ecommerce/internal/entity"
	"github.com/egannguyen/cart-ecommerce/internal/health"
	"github.com/egannguyen/cart-ecommerce/internal/messaging"
	"github.com/egannguyen/cart-ecommerce/internal/notify"
	"github.com/egannguyen/cart-ecommerce/internal/payment/paystack"
	"github.com/egannguyen/cart-ecommerce/internal/repository/memory"
	"github.com/egannguyen/cart-ecommerce/internal/service"
)

const webhookSecret = "sk_test_http"

type testServer struct {
	router http.Handler
	store  *memory.Store
	tokens *auth.Tokens
	svc    Services

	buyer, admin, unverified entity.Identity
}

// newGatewayStub answers every transaction call with the reference it was sent.
func newGatewayStub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Reference string `json:"reference"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":true,"message":"ok","data":{"authorization_url":"https://checkout.test/%s","reference":%q}}`,
			req.Reference, req.Reference)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop().Sugar()
	store := memory.NewStore()
	gateway := paystack.NewClient(newGatewayStub(t).URL, webhookSecret, "NGN", time.Second)

	deps := service.Deps{
		Orders:      store.Orders,
		Catalog:     store.Catalog,
		Users:       store.Users,
		Reviews:     store.Reviews,
		Carts:       store.Carts,
		History:     store.History,
		Notifier:    notify.NewLogNotifier(logger),
		Publisher:   messaging.NopPublisher{},
		EventsTopic: "orders.events",
		Logger:      logger,
	}
	tokens := auth.NewTokens("jwt-secret", time.Hour)
	otp, err := auth.NewOTPCipher([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	var svc Services
	svc.Accounts, err = service.NewAccountService(deps, tokens, otp, service.AccountSettings{
		OTPTTL: 5 * time.Minute, ResetTTL: 15 * time.Minute, AdminKey: "key", PublicURL: "https://shop.test",
	})
	require.NoError(t, err)
	svc.Catalog, err = service.NewCatalogService(deps)
	require.NoError(t, err)
	svc.Carts, err = service.NewCartService(deps)
	require.NoError(t, err)
	svc.Checkout, err = service.NewCheckoutService(deps, service.DefaultFeeTable())
	require.NoError(t, err)
	svc.Payments, err = service.NewPaymentService(deps, gateway)
	require.NoError(t, err)
	svc.Webhooks, err = service.NewWebhookReconciler(deps, gateway)
	require.NoError(t, err)
	svc.Fulfillment, err = service.NewFulfillmentService(deps)
	require.NoError(t, err)
	svc.Reviews, err = service.NewReviewService(deps)
	require.NoError(t, err)

	registry := health.NewRegistry("test")
	ts := &testServer{
		router: NewHandler(svc, tokens, registry, logger).Routes(),
		store:  store,
		tokens: tokens,
		svc:    svc,
	}
	ts.buyer = ts.addUser(t, "buyer-1", "ada@example.com", entity.RoleMember, true)
	ts.admin = ts.addUser(t, "admin-1", "ops@example.com", entity.RoleAdmin, true)
	ts.unverified = ts.addUser(t, "new-1", "new@example.com", entity.RoleMember, false)
	return ts
}

func (ts *testServer) addUser(t *testing.T, id, email string, role entity.Role, verified bool) entity.Identity {
	t.Helper()
	hash, err := auth.HashPassword("password123")
	require.NoError(t, err)
	require.NoError(t, ts.store.Users.Create(context.Background(), &entity.User{
		ID: id, Fullname: "User " + id, Email: email, PasswordHash: hash, Role: role, IsVerified: verified,
	}))
	return entity.Identity{UserID: id, Email: email, Role: role, IsVerified: verified}
}

func (ts *testServer) token(t *testing.T, id entity.Identity) string {
	t.Helper()
	tok, err := ts.tokens.BuildJWT(id)
	require.NoError(t, err)
	return tok
}

func (ts *testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) webhook(t *testing.T, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(paystack.SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestAuthMiddleware(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/cart", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("Authorization", "Token abc")
	rec = httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/cart", nil, "not-a-jwt").Code)
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodGet, "/cart", nil, ts.token(t, ts.unverified)).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/cart", nil, ts.token(t, ts.buyer)).Code)

	rec = ts.do(t, http.MethodPost, "/admin/items", map[string]any{"name": "x"}, ts.token(t, ts.buyer))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLoginAndLogout(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/auth/login", map[string]string{"email": "ada@example.com", "password": "wrong-pass"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/auth/login", map[string]string{"email": "ADA@example.com", "password": "password123"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	session := decode[service.Session](t, rec)
	require.NotEmpty(t, session.Token)

	rec = ts.do(t, http.MethodPost, "/auth/logout", nil, session.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCatalogRoutes(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.token(t, ts.admin)

	rec := ts.do(t, http.MethodPost, "/admin/items", service.NewItemInput{
		Name: "Sneaker", Category: "Shoes", Price: 2000, Quantity: 5,
	}, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	item := decode[entity.CatalogItem](t, rec)

	rec = ts.do(t, http.MethodPost, "/admin/items/"+item.CustomID+"/discount", discountRequest{Percent: 0, Days: 1}, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = ts.do(t, http.MethodPost, "/admin/items/"+item.CustomID+"/discount", discountRequest{Percent: 25, Days: 1}, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	discounted := decode[entity.CatalogItem](t, rec)
	require.NotNil(t, discounted.DiscountPrice)
	assert.Equal(t, int64(1500), *discounted.DiscountPrice)

	rec = ts.do(t, http.MethodGet, "/products?category=shoes", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]entity.CatalogItem](t, rec), 1)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/products?limit=abc", nil, "").Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/products/"+item.CustomID, nil, "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/products/item_999", nil, "").Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/products/flash-sale", nil, "").Code)
}

func TestOrderFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	buyer := ts.token(t, ts.buyer)
	admin := ts.token(t, ts.admin)

	item, err := ts.svc.Catalog.AddItem(context.Background(), ts.admin, service.NewItemInput{
		Name: "Sneaker", Category: "shoes", Price: 1500, Quantity: 10,
	})
	require.NoError(t, err)

	rec := ts.do(t, http.MethodPost, "/orders", checkoutRequest{Items: []service.CheckoutItem{{CustomID: item.CustomID, Quantity: 2}}}, buyer)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decode[entity.Order](t, rec)
	ordersPath := "/orders/" + order.ID

	rec = ts.do(t, http.MethodPost, ordersPath+"/pay", nil, buyer)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "payment needs an address first")

	rec = ts.do(t, http.MethodPost, "/me/addresses", service.AddressInput{
		Recipient: "Ada", Street: "1 Marina", City: "Abuja", Region: "abuja", IsDefault: true,
	}, buyer)
	require.Equal(t, http.StatusCreated, rec.Code)
	addr := decode[entity.Address](t, rec)

	rec = ts.do(t, http.MethodPost, ordersPath+"/address", addressRequest{AddressID: addr.ID}, buyer)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	order = decode[entity.Order](t, rec)
	assert.Equal(t, int64(5000), order.TotalAmount)

	rec = ts.do(t, http.MethodPost, ordersPath+"/pay", nil, buyer)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	session := decode[service.PaymentSession](t, rec)
	require.NotEmpty(t, session.Reference)
	assert.Equal(t, "https://checkout.test/"+session.Reference, session.AuthorizationURL)

	rec = ts.do(t, http.MethodPost, ordersPath+"/ship", nil, admin)
	assert.Equal(t, http.StatusNotFound, rec.Code, "ship lives under /admin")
	rec = ts.do(t, http.MethodPost, "/admin"+ordersPath+"/ship", nil, admin)
	assert.Equal(t, http.StatusConflict, rec.Code, "unpaid orders cannot ship")

	body := []byte(fmt.Sprintf(`{"event":"charge.success","data":{"reference":%q,"amount":5000,"gateway_response":"Approved"}}`, session.Reference))
	assert.Equal(t, http.StatusBadRequest, ts.webhook(t, body, "").Code)
	assert.Equal(t, http.StatusUnauthorized, ts.webhook(t, body, paystack.Sign("wrong", body)).Code)

	rec = ts.webhook(t, body, paystack.Sign(webhookSecret, body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.OutcomeApplied, decode[service.WebhookResult](t, rec).Outcome)

	rec = ts.webhook(t, body, paystack.Sign(webhookSecret, body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.OutcomeDuplicate, decode[service.WebhookResult](t, rec).Outcome)

	assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodPost, ordersPath+"/cancel", nil, buyer).Code)

	rec = ts.do(t, http.MethodPost, ordersPath+"/confirm", nil, buyer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[entity.Order](t, rec).Settled)

	rec = ts.do(t, http.MethodPost, ordersPath+"/confirm", nil, buyer)
	require.Equal(t, http.StatusOK, rec.Code)
	dup := decode[map[string]any](t, rec)
	assert.Equal(t, "duplicate", dup["status"])

	rec = ts.do(t, http.MethodPost, "/admin"+ordersPath+"/ship", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, ordersPath+"/confirm-delivery", map[string]any{}, buyer).Code)
	rec = ts.do(t, http.MethodPost, ordersPath+"/confirm-delivery", map[string]bool{"received": false}, buyer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[service.DeliveryConfirmation](t, rec).Escalate)

	rec = ts.do(t, http.MethodPost, ordersPath+"/confirm-delivery", map[string]bool{"received": true}, buyer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, entity.DeliveryDelivered, decode[service.DeliveryConfirmation](t, rec).Order.DeliveryStatus)

	rec = ts.do(t, http.MethodGet, "/orders", nil, buyer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[service.OrderGroups](t, rec).Delivered, 1)

	rec = ts.do(t, http.MethodGet, ordersPath+"/history", nil, buyer)
	require.Equal(t, http.StatusOK, rec.Code)
	var types []string
	for _, e := range decode[[]entity.HistoryEntry](t, rec) {
		types = append(types, e.EventType)
	}
	assert.Equal(t, []string{
		entity.EventOrderCreated, entity.EventOrderPaymentInitiated, entity.EventOrderPaid,
		entity.EventOrderSettled, entity.EventOrderShipped, entity.EventOrderDelivered,
	}, types)

	rec = ts.do(t, http.MethodGet, "/admin/orders?payment_status=bogus", nil, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = ts.do(t, http.MethodGet, "/admin/orders?payment_status=paid", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]entity.Order](t, rec), 1)
}

func TestPayWithSavedCardOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	buyer := ts.token(t, ts.buyer)
	ctx := context.Background()

	item, err := ts.svc.Catalog.AddItem(ctx, ts.admin, service.NewItemInput{
		Name: "Sneaker", Category: "shoes", Price: 1500, Quantity: 10,
	})
	require.NoError(t, err)
	order, err := ts.svc.Checkout.Checkout(ctx, ts.buyer, []service.CheckoutItem{{CustomID: item.CustomID, Quantity: 2}})
	require.NoError(t, err)
	addr, err := ts.svc.Accounts.AddAddress(ctx, ts.buyer, service.AddressInput{
		Recipient: "Ada", Street: "1 Marina", City: "Abuja", Region: "abuja",
	})
	require.NoError(t, err)
	_, err = ts.svc.Checkout.SelectAddress(ctx, ts.buyer, order.ID, addr.ID)
	require.NoError(t, err)
	_, err = ts.store.Users.AddSavedCard(ctx, ts.buyer.UserID, entity.SavedCard{
		AuthorizationCode: "AUTH_http", CardType: "visa", Last4: "4081", ExpMonth: "12", ExpYear: "2030", Bank: "TEST BANK",
	})
	require.NoError(t, err)

	rec := ts.do(t, http.MethodGet, "/me/cards", nil, buyer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "AUTH_http")
	cards := decode[[]entity.CardSummary](t, rec)
	require.Len(t, cards, 1)

	payPath := "/orders/" + order.ID + "/pay/card"
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPost, payPath, cardPayRequest{CardID: "missing"}, buyer).Code)

	rec = ts.do(t, http.MethodPost, payPath, cardPayRequest{CardID: cards[0].ID}, buyer)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	charge := decode[service.CardPayment](t, rec)
	require.NotEmpty(t, charge.Reference)
	assert.Equal(t, int64(5000), charge.Amount)

	body := []byte(fmt.Sprintf(`{"event":"charge.success","data":{"reference":%q,"amount":5000}}`, charge.Reference))
	rec = ts.webhook(t, body, paystack.Sign(webhookSecret, body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.OutcomeApplied, decode[service.WebhookResult](t, rec).Outcome)
}

func TestWebhookUnknownReference(t *testing.T) {
	ts := newTestServer(t)
	body := []byte(`{"event":"charge.success","data":{"reference":"nope","amount":100}}`)

	rec := ts.webhook(t, body, paystack.Sign(webhookSecret, body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.OutcomeUnknownReference, decode[service.WebhookResult](t, rec).Outcome)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{entity.ErrEmptyCart, http.StatusBadRequest},
		{entity.ErrOrderNotFound, http.StatusNotFound},
		{entity.ErrInvalidCredentials, http.StatusUnauthorized},
		{entity.ErrSignatureMismatch, http.StatusUnauthorized},
		{entity.ErrOrderNotOwned, http.StatusForbidden},
		{entity.ErrCancellationDenied, http.StatusConflict},
		{entity.ErrEmailTaken, http.StatusConflict},
		{entity.ErrGatewayUnavailable, http.StatusBadGateway},
		{entity.ErrDuplicateEvent, http.StatusOK},
		{fmt.Errorf("wrapped: %w", entity.ErrOrderNotPaid), http.StatusConflict},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, statusFor(entity.KindOf(tt.err)), tt.err.Error())
	}
}

func TestHealthRoutesMounted(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/health/live", nil, "").Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/health", nil, "").Code)
}
