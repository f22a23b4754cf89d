package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/egannguyen/cart-ecommerce/internal/entity"
	"github.com/egannguyen/cart-ecommerce/internal/notify"
	"github.com/egannguyen/cart-ecommerce/internal/payment"
	"github.com/egannguyen/cart-ecommerce/internal/payment/paystack"
	"github.com/egannguyen/cart-ecommerce/internal/repository/memory"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const webhookSecret = "sk_test_secret"

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *recordingNotifier) templates() []notify.Template {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notify.Template, 0, len(n.sent))
	for _, m := range n.sent {
		out = append(out, m.Template)
	}
	return out
}

func (n *recordingNotifier) count(tmpl notify.Template) int {
	c := 0
	for _, t := range n.templates() {
		if t == tmpl {
			c++
		}
	}
	return c
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []entity.OrderEvent
}

func (p *recordingPublisher) PublishEvent(_ context.Context, _ string, _ string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := event.(entity.OrderEvent); ok {
		p.events = append(p.events, e)
	}
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// fakeGateway issues deterministic sessions and verifies signatures with the
// real Paystack scheme.
type fakeGateway struct {
	*paystack.Client
	mu      sync.Mutex
	calls   int
	err     error
	charges []payment.AuthorizationCharge
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{Client: paystack.NewClient("http://paystack.invalid", webhookSecret, "NGN", time.Second)}
}

func (g *fakeGateway) InitializeCharge(_ context.Context, req payment.ChargeRequest) (*payment.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return &payment.Charge{Reference: req.Reference, AuthorizationURL: "https://checkout.test/" + req.Reference}, nil
}

func (g *fakeGateway) ChargeAuthorization(_ context.Context, req payment.AuthorizationCharge) (*payment.ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	g.charges = append(g.charges, req)
	return &payment.ChargeResult{Reference: req.Reference, Status: "success", GatewayResponse: "Approved"}, nil
}

type fixture struct {
	store     *memory.Store
	notifier  *recordingNotifier
	publisher *recordingPublisher
	gateway   *fakeGateway
	deps      Deps

	checkout    *CheckoutService
	payments    *PaymentService
	webhooks    *WebhookReconciler
	fulfillment *FulfillmentService
	reviews     *ReviewService
	catalog     *CatalogService
	carts       *CartService

	buyer entity.Identity
	other entity.Identity
	admin entity.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     memory.NewStore(),
		notifier:  &recordingNotifier{},
		publisher: &recordingPublisher{},
		gateway:   newFakeGateway(),
	}
	f.deps = Deps{
		Orders:      f.store.Orders,
		Catalog:     f.store.Catalog,
		Users:       f.store.Users,
		Reviews:     f.store.Reviews,
		Carts:       f.store.Carts,
		History:     f.store.History,
		Notifier:    f.notifier,
		Publisher:   f.publisher,
		EventsTopic: "orders.events",
		Logger:      zap.NewNop().Sugar(),
	}

	var err error
	f.checkout, err = NewCheckoutService(f.deps, DefaultFeeTable())
	require.NoError(t, err)
	f.payments, err = NewPaymentService(f.deps, f.gateway)
	require.NoError(t, err)
	f.webhooks, err = NewWebhookReconciler(f.deps, f.gateway)
	require.NoError(t, err)
	f.fulfillment, err = NewFulfillmentService(f.deps)
	require.NoError(t, err)
	f.reviews, err = NewReviewService(f.deps)
	require.NoError(t, err)
	f.catalog, err = NewCatalogService(f.deps)
	require.NoError(t, err)
	f.carts, err = NewCartService(f.deps)
	require.NoError(t, err)

	f.buyer = f.addUser(t, "buyer-1", "ada@example.com", entity.RoleMember)
	f.other = f.addUser(t, "buyer-2", "bola@example.com", entity.RoleMember)
	f.admin = f.addUser(t, "admin-1", "ops@example.com", entity.RoleAdmin)
	return f
}

func (f *fixture) addUser(t *testing.T, id, email string, role entity.Role) entity.Identity {
	t.Helper()
	require.NoError(t, f.store.Users.Create(context.Background(), &entity.User{
		ID: id, Fullname: "User " + id, Email: email, Role: role, IsVerified: true,
	}))
	return entity.Identity{UserID: id, Email: email, Role: role, IsVerified: true}
}

func (f *fixture) addItem(t *testing.T, name string, price int64) *entity.CatalogItem {
	t.Helper()
	item, err := f.catalog.AddItem(context.Background(), f.admin, NewItemInput{
		Name: name, Category: "shoes", Price: price, Quantity: 10,
	})
	require.NoError(t, err)
	return item
}

func (f *fixture) addAddress(t *testing.T, who entity.Identity, region string) *entity.Address {
	t.Helper()
	addr := &entity.Address{
		ID: fmt.Sprintf("addr-%s-%s", who.UserID, region), UserID: who.UserID,
		Recipient: "Ada", Phone: "08012345678", Street: "1 Marina", City: region, Region: region,
	}
	require.NoError(t, f.store.Users.AddAddress(context.Background(), addr))
	return addr
}

// pricedOrder checks out one unit of a 1500 item twice over and attaches an abuja address.
func (f *fixture) pricedOrder(t *testing.T) *entity.Order {
	t.Helper()
	ctx := context.Background()
	item := f.addItem(t, "Sneaker", 1500)
	order, err := f.checkout.Checkout(ctx, f.buyer, []CheckoutItem{{CustomID: item.CustomID, Quantity: 2}})
	require.NoError(t, err)
	addr := f.addAddress(t, f.buyer, "abuja")
	order, err = f.checkout.SelectAddress(ctx, f.buyer, order.ID, addr.ID)
	require.NoError(t, err)
	return order
}

// initiatedOrder is a priced order with a payment reference.
func (f *fixture) initiatedOrder(t *testing.T) *entity.Order {
	t.Helper()
	order := f.pricedOrder(t)
	session, err := f.payments.Initiate(context.Background(), f.buyer, order.ID, order.TotalAmount)
	require.NoError(t, err)
	order, err = f.store.Orders.FindByID(context.Background(), session.OrderID)
	require.NoError(t, err)
	return order
}

func (f *fixture) paidOrder(t *testing.T) *entity.Order {
	t.Helper()
	order := f.initiatedOrder(t)
	res, err := f.webhooks.Reconcile(context.Background(), &payment.Event{
		Type: payment.EventChargeSuccess, Reference: order.PaymentReference, Amount: order.TotalAmount,
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, res.Outcome)
	order, err = f.store.Orders.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	return order
}

// saveCard stores a reusable card for who and returns its id.
func (f *fixture) saveCard(t *testing.T, who entity.Identity, code string) string {
	t.Helper()
	card := entity.SavedCard{AuthorizationCode: code, CardType: "visa", Last4: "4081", ExpMonth: "12", ExpYear: "2030", Bank: "TEST BANK"}
	_, err := f.store.Users.AddSavedCard(context.Background(), who.UserID, card)
	require.NoError(t, err)
	return card.CardID()
}

func (f *fixture) reload(t *testing.T, id string) *entity.Order {
	t.Helper()
	o, err := f.store.Orders.FindByID(context.Background(), id)
	require.NoError(t, err)
	return o
}

func webhookBody(event, reference string, amount int64, authCode string) []byte {
	auth := ""
	if authCode != "" {
		auth = fmt.Sprintf(`,"authorization":{"authorization_code":%q,"card_type":"visa ","last4":"4081","exp_month":"12","exp_year":"2030","bank":"TEST BANK","reusable":true}`, authCode)
	}
	return []byte(fmt.Sprintf(`{"event":%q,"data":{"reference":%q,"amount":%d,"gateway_response":"Approved"%s}}`,
		event, reference, amount, auth))
}

var errBoom = errors.New("boom")

func failedEvent(o *entity.Order) *payment.Event {
	return &payment.Event{Type: payment.EventChargeFailed, Reference: o.PaymentReference, GatewayResponse: "Declined"}
}
