package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egannguyen/cart-ecommerce/internal/entity"
	"github.com/egannguyen/cart-ecommerce/internal/repository"
)

func seedOrder(t *testing.T, s *Store) (*entity.Order, *entity.CatalogItem) {
	t.Helper()
	ctx := context.Background()
	item := &entity.CatalogItem{ID: "i1", Name: "Sneaker", Price: 1500}
	require.NoError(t, s.Catalog.Create(ctx, item))

	order := entity.NewOrder("o1", "u1", []entity.LineItem{
		{ItemID: item.ID, CustomID: item.CustomID, Quantity: 2, UnitPrice: 1500},
	}, time.Now())
	require.NoError(t, s.Orders.Create(ctx, order))
	return order, item
}

func TestConcurrentSettleCountsOnce(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	order, item := seedOrder(t, s)

	_, err := s.Orders.Settle(ctx, order.ID)
	assert.ErrorIs(t, err, repository.ErrConflict, "unpaid orders cannot settle")

	_, err = s.Orders.AttachReference(ctx, order.ID, "ref-1", "https://pay.test/ref-1")
	require.NoError(t, err)
	_, err = s.Orders.TransitionPayment(ctx, "ref-1", entity.MarkPaid)
	require.NoError(t, err)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Orders.Settle(ctx, order.ID)
			if err == nil {
				wins.Add(1)
				return
			}
			assert.True(t, errors.Is(err, repository.ErrConflict))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	got, err := s.Catalog.FindByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.TimesBought)
	assert.Equal(t, int64(2), got.UnitsBought)
}

func TestPaymentAndCancellationExclusive(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	order, _ := seedOrder(t, s)
	_, err := s.Orders.AttachReference(ctx, order.ID, "ref-1", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var paidErr, cancelErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, paidErr = s.Orders.TransitionPayment(ctx, "ref-1", entity.MarkPaid)
	}()
	go func() {
		defer wg.Done()
		_, cancelErr = s.Orders.TransitionDelivery(ctx, order.ID, entity.Cancel)
	}()
	wg.Wait()

	assert.True(t, (paidErr == nil) != (cancelErr == nil), "exactly one of payment and cancellation wins")
	final, err := s.Orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, final.PaymentStatus == entity.PaymentPaid && final.DeliveryStatus == entity.DeliveryCancelled)
}

func TestAttachReferenceOnce(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	order, _ := seedOrder(t, s)

	_, err := s.Orders.AttachReference(ctx, order.ID, "ref-1", "")
	require.NoError(t, err)
	_, err = s.Orders.AttachReference(ctx, order.ID, "ref-2", "")
	assert.ErrorIs(t, err, repository.ErrConflict)
	_, err = s.Orders.AttachReference(ctx, "missing", "ref-3", "")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	got, err := s.Orders.FindByReference(ctx, "ref-1")
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
}

func TestCartMerge(t *testing.T) {
	carts := NewCartRepository()
	ctx := context.Background()

	require.NoError(t, carts.Add(ctx, "u1", entity.CartLine{CustomID: "item_002", Quantity: 1}))
	require.NoError(t, carts.Add(ctx, "u1", entity.CartLine{CustomID: "item_001", Quantity: 1}))
	require.NoError(t, carts.Add(ctx, "u1", entity.CartLine{CustomID: "item_001", Quantity: 2}))

	lines, err := carts.Get(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "item_001", lines[0].CustomID)
	assert.Equal(t, 3, lines[0].Quantity)

	require.NoError(t, carts.Clear(ctx, "u1"))
	lines, err = carts.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestCartKeepsVariantsApart(t *testing.T) {
	carts := NewCartRepository()
	ctx := context.Background()

	require.NoError(t, carts.Add(ctx, "u1", entity.CartLine{CustomID: "item_001", Quantity: 1, Color: "red", Size: 42}))
	require.NoError(t, carts.Add(ctx, "u1", entity.CartLine{CustomID: "item_001", Quantity: 1, Color: "blue", Size: 44}))
	require.NoError(t, carts.Add(ctx, "u1", entity.CartLine{CustomID: "item_001", Quantity: 2, Color: "red", Size: 42}))
	require.NoError(t, carts.Add(ctx, "u1", entity.CartLine{CustomID: "item_002", Quantity: 1}))

	lines, err := carts.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []entity.CartLine{
		{CustomID: "item_001", Quantity: 1, Color: "blue", Size: 44},
		{CustomID: "item_001", Quantity: 3, Color: "red", Size: 42},
		{CustomID: "item_002", Quantity: 1},
	}, lines)

	require.NoError(t, carts.Remove(ctx, "u1", "item_001"))
	lines, err = carts.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []entity.CartLine{{CustomID: "item_002", Quantity: 1}}, lines)
}

func TestRetentionDropsHistory(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	order, _ := seedOrder(t, s)

	require.NoError(t, s.History.Append(ctx, entity.OrderEvent{Type: entity.EventOrderCreated, OrderID: order.ID, At: time.Now()}))
	_, err := s.Orders.TransitionDelivery(ctx, order.ID, entity.Cancel)
	require.NoError(t, err)

	n, err := s.Orders.DeleteCancelledBefore(ctx, "u1", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	entries, err := s.History.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
