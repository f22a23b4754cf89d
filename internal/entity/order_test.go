package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPaymentStatusNeverLeavesTerminal(t *testing.T) {
	for _, from := range []PaymentStatus{PaymentPaid, PaymentFailed} {
		for _, to := range []PaymentStatus{PaymentPending, PaymentPaid, PaymentFailed} {
			assert.False(t, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	assert.True(t, PaymentPending.CanTransitionTo(PaymentPaid))
	assert.True(t, PaymentPending.CanTransitionTo(PaymentFailed))
}

func TestDeliveryTransitions(t *testing.T) {
	tests := []struct {
		name    string
		t       DeliveryTransition
		payment PaymentStatus
		from    DeliveryStatus
		want    bool
	}{
		{"ship paid pending", Ship, PaymentPaid, DeliveryPending, true},
		{"ship unpaid", Ship, PaymentPending, DeliveryPending, false},
		{"ship already shipped", Ship, PaymentPaid, DeliveryShipped, false},
		{"ship delivered", Ship, PaymentPaid, DeliveryDelivered, false},
		{"ship cancelled", Ship, PaymentPaid, DeliveryCancelled, false},
		{"deliver shipped", Deliver, PaymentPaid, DeliveryShipped, true},
		{"deliver pending", Deliver, PaymentPaid, DeliveryPending, false},
		{"cancel unpaid", Cancel, PaymentPending, DeliveryPending, true},
		{"cancel failed", Cancel, PaymentFailed, DeliveryPending, true},
		{"cancel paid", Cancel, PaymentPaid, DeliveryPending, false},
		{"cancel shipped", Cancel, PaymentPending, DeliveryShipped, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &Order{PaymentStatus: tt.payment, DeliveryStatus: tt.from}
			assert.Equal(t, tt.want, tt.t.Allows(o))
		})
	}
}

func TestMarkPaidBlockedByCancellation(t *testing.T) {
	o := &Order{PaymentStatus: PaymentPending, DeliveryStatus: DeliveryCancelled}
	assert.False(t, MarkPaid.Allows(o))
	assert.True(t, MarkFailed.Allows(o))
}

func TestNewOrderTotals(t *testing.T) {
	now := time.Now()
	o := NewOrder("o1", "u1", []LineItem{
		{ItemID: "a", Quantity: 2, UnitPrice: 1000},
		{ItemID: "b", Quantity: 1, UnitPrice: 1000},
	}, now)

	assert.Equal(t, int64(3000), o.Subtotal)
	assert.Equal(t, int64(3000), o.TotalAmount)
	assert.Equal(t, PaymentPending, o.PaymentStatus)
	assert.Equal(t, DeliveryPending, o.DeliveryStatus)
	assert.True(t, o.ContainsItem("b"))
	assert.False(t, o.ContainsItem("c"))
	assert.False(t, o.Priced())
}

func TestEffectivePrice(t *testing.T) {
	now := time.Now()
	discount := int64(800)
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	item := &CatalogItem{Price: 1000}
	assert.Equal(t, int64(1000), item.EffectivePrice(now))

	item.DiscountPrice, item.DiscountExpires = &discount, &future
	assert.Equal(t, int64(800), item.EffectivePrice(now))

	item.DiscountExpires = &past
	assert.Equal(t, int64(1000), item.EffectivePrice(now))
}

func TestSavedCardMasked(t *testing.T) {
	card := SavedCard{CardType: "visa ", Last4: "4081", ExpMonth: "12", ExpYear: "2030", Bank: "TEST BANK"}
	assert.Equal(t, "VISA •••• 4081 (TEST BANK, exp 12/30)", card.Masked())
}

func TestSavedCardID(t *testing.T) {
	a := SavedCard{AuthorizationCode: "AUTH_a"}
	b := SavedCard{AuthorizationCode: "AUTH_b"}

	assert.Len(t, a.CardID(), 16)
	assert.Equal(t, a.CardID(), SavedCard{AuthorizationCode: "AUTH_a", Last4: "1111"}.CardID())
	assert.NotEqual(t, a.CardID(), b.CardID())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindInvalidTransition, KindOf(ErrCancellationDenied))
	assert.Equal(t, KindInternal, KindOf(assert.AnError))
	assert.Equal(t, "cart is empty", Message(ErrEmptyCart))
}
