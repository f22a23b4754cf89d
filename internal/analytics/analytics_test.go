package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/egannguyen/cart-ecommerce/internal/entity"
)

type memorySink struct {
	orders []OrderFact
	items  []ItemSaleFact
	err    error
}

func (s *memorySink) InsertOrderFact(_ context.Context, fact OrderFact) error {
	if s.err != nil {
		return s.err
	}
	s.orders = append(s.orders, fact)
	return nil
}

func (s *memorySink) InsertItemSales(_ context.Context, facts []ItemSaleFact) error {
	s.items = append(s.items, facts...)
	return nil
}

func settledEvent() entity.OrderEvent {
	return entity.OrderEvent{
		Type:           entity.EventOrderSettled,
		OrderID:        "o1",
		BuyerID:        "u1",
		Amount:         5000,
		DeliveryFee:    2000,
		Region:         "abuja",
		PaymentStatus:  entity.PaymentPaid,
		DeliveryStatus: entity.DeliveryDelivered,
		Items: []entity.LineItem{
			{CustomID: "item_001", Name: "Sneaker", Quantity: 2, UnitPrice: 1500},
		},
		At: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRecordSettledOrder(t *testing.T) {
	sink := &memorySink{}
	rec := NewRecorder(sink, zap.NewNop().Sugar())

	payload, err := json.Marshal(settledEvent())
	require.NoError(t, err)
	require.NoError(t, rec.HandleMessage(context.Background(), payload))

	require.Len(t, sink.orders, 1)
	assert.Equal(t, "order.settled", sink.orders[0].EventType)
	assert.Equal(t, "paid", sink.orders[0].PaymentStatus)
	assert.Equal(t, 2, sink.orders[0].ItemCount)

	require.Len(t, sink.items, 1)
	assert.Equal(t, int64(3000), sink.items[0].Revenue)
	assert.Equal(t, "item_001", sink.items[0].CustomID)
}

func TestRecordOtherEventsSkipItemSales(t *testing.T) {
	sink := &memorySink{}
	rec := NewRecorder(sink, zap.NewNop().Sugar())

	evt := settledEvent()
	evt.Type = entity.EventOrderPaid
	require.NoError(t, rec.Record(context.Background(), evt))

	assert.Len(t, sink.orders, 1)
	assert.Empty(t, sink.items)
}

func TestHandleMessageErrors(t *testing.T) {
	rec := NewRecorder(&memorySink{err: errors.New("down")}, zap.NewNop().Sugar())

	assert.Error(t, rec.HandleMessage(context.Background(), []byte("{")))
	assert.NoError(t, rec.HandleMessage(context.Background(), []byte(`{"type":""}`)))

	payload, _ := json.Marshal(settledEvent())
	assert.ErrorContains(t, rec.HandleMessage(context.Background(), payload), "down")
}
