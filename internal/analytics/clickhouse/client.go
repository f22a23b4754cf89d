// Package clickhouse is the ClickHouse analytics.Sink.
package clickhouse

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/egannguyen/cart-ecommerce/internal/analytics"
)

// Options locates the ClickHouse server.
type Options struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

type execer interface {
	Exec(ctx context.Context, query string, args ...any) error
}

type Client struct {
	conn     driver.Conn
	exec     execer
	database string
}

var _ analytics.Sink = (*Client)(nil)

func NewClient(ctx context.Context, opts Options) (*Client, error) {
	chOpts := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", opts.Host, opts.Port)},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		DialTimeout:  30 * time.Second,
	}
	// 8443 is the TLS port of managed deployments.
	if opts.Port == 8443 {
		chOpts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(chOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &Client{conn: conn, exec: conn, database: opts.Database}, nil
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// EnsureSchema creates the fact tables when missing.
func (c *Client) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.order_facts (
			order_id String,
			buyer_id String,
			event_type LowCardinality(String),
			amount Int64,
			delivery_fee Int64,
			region LowCardinality(String),
			payment_status LowCardinality(String),
			delivery_status LowCardinality(String),
			item_count Int32,
			event_time DateTime64(3)
		) ENGINE = MergeTree ORDER BY (event_time, order_id)`, c.database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.item_sales_facts (
			order_id String,
			custom_id String,
			name String,
			quantity Int32,
			unit_price Int64,
			revenue Int64,
			event_time DateTime64(3)
		) ENGINE = ReplacingMergeTree ORDER BY (order_id, custom_id)`, c.database),
	}
	for _, stmt := range stmts {
		if err := c.exec.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create analytics table: %w", err)
		}
	}
	return nil
}

// InsertOrderFact inserts one order event row.
func (c *Client) InsertOrderFact(ctx context.Context, f analytics.OrderFact) error {
	query := fmt.Sprintf(`
		INSERT INTO %s.order_facts (
			order_id, buyer_id, event_type, amount, delivery_fee, region,
			payment_status, delivery_status, item_count, event_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.database)

	return c.exec.Exec(ctx, query,
		f.OrderID, f.BuyerID, f.EventType, f.Amount, f.DeliveryFee, f.Region,
		f.PaymentStatus, f.DeliveryStatus, int32(f.ItemCount), f.EventTime,
	)
}

// InsertItemSales writes all lines of a settled order in one statement.
func (c *Client) InsertItemSales(ctx context.Context, facts []analytics.ItemSaleFact) error {
	if len(facts) == 0 {
		return nil
	}
	rows := make([]string, 0, len(facts))
	args := make([]any, 0, len(facts)*7)
	for _, f := range facts {
		rows = append(rows, "(?, ?, ?, ?, ?, ?, ?)")
		args = append(args, f.OrderID, f.CustomID, f.Name, int32(f.Quantity), f.UnitPrice, f.Revenue, f.EventTime)
	}
	query := fmt.Sprintf(`
		INSERT INTO %s.item_sales_facts (
			order_id, custom_id, name, quantity, unit_price, revenue, event_time
		) VALUES %s
	`, c.database, strings.Join(rows, ", "))

	return c.exec.Exec(ctx, query, args...)
}
