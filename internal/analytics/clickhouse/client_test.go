package clickhouse

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egannguyen/cart-ecommerce/internal/analytics"
)

type call struct {
	query string
	args  []any
}

type recordingExec struct {
	calls []call
}

func (r *recordingExec) Exec(_ context.Context, query string, args ...any) error {
	r.calls = append(r.calls, call{query: query, args: args})
	return nil
}

func newTestClient() (*Client, *recordingExec) {
	rec := &recordingExec{}
	return &Client{exec: rec, database: "shop"}, rec
}

func TestInsertOrderFact(t *testing.T) {
	c, rec := newTestClient()
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	err := c.InsertOrderFact(context.Background(), analytics.OrderFact{
		OrderID: "o1", BuyerID: "u1", EventType: "order.paid", Amount: 5000, ItemCount: 2, EventTime: at,
	})
	require.NoError(t, err)
	require.Len(t, rec.calls, 1)
	assert.Contains(t, rec.calls[0].query, "INSERT INTO shop.order_facts")
	assert.Len(t, rec.calls[0].args, 10)
	assert.Equal(t, int32(2), rec.calls[0].args[8])
}

func TestInsertItemSales(t *testing.T) {
	c, rec := newTestClient()

	require.NoError(t, c.InsertItemSales(context.Background(), nil))
	assert.Empty(t, rec.calls)

	err := c.InsertItemSales(context.Background(), []analytics.ItemSaleFact{
		{OrderID: "o1", CustomID: "item_001", Quantity: 2, UnitPrice: 1500, Revenue: 3000},
		{OrderID: "o1", CustomID: "item_002", Quantity: 1, UnitPrice: 700, Revenue: 700},
	})
	require.NoError(t, err)
	require.Len(t, rec.calls, 1)
	assert.Equal(t, 2, strings.Count(rec.calls[0].query, "(?, ?, ?, ?, ?, ?, ?)"))
	assert.Len(t, rec.calls[0].args, 14)
}

func TestEnsureSchema(t *testing.T) {
	c, rec := newTestClient()
	require.NoError(t, c.EnsureSchema(context.Background()))
	require.Len(t, rec.calls, 2)
	assert.Contains(t, rec.calls[0].query, "shop.order_facts")
	assert.Contains(t, rec.calls[1].query, "shop.item_sales_facts")
}
