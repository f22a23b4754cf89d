package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/egannguyen/cart-ecommerce/internal/entity"
	"github.com/egannguyen/cart-ecommerce/internal/repository"
)

const orderColumns = `id, buyer_id, subtotal, delivery_fee, total_amount, payment_status, delivery_status,
	COALESCE(payment_reference, ''), payment_url, settled,
	addr_recipient, addr_phone, addr_street, addr_city, addr_region, created_at, updated_at`

const (
	orderExistsByID  = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`
	orderExistsByRef = `SELECT EXISTS (SELECT 1 FROM orders WHERE payment_reference = $1)`
)

type orderRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewOrderRepository creates a new OrderRepository backed by Postgres.
func NewOrderRepository(db *sql.DB) repository.OrderRepository {
	return &orderRepository{db: db, now: time.Now}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*entity.Order, error) {
	var (
		o    entity.Order
		addr [5]sql.NullString
	)
	err := row.Scan(&o.ID, &o.BuyerID, &o.Subtotal, &o.DeliveryFee, &o.TotalAmount, &o.PaymentStatus, &o.DeliveryStatus,
		&o.PaymentReference, &o.PaymentURL, &o.Settled,
		&addr[0], &addr[1], &addr[2], &addr[3], &addr[4], &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if addr[4].Valid {
		o.DeliveryAddress = &entity.ShippingAddress{
			Recipient: addr[0].String,
			Phone:     addr[1].String,
			Street:    addr[2].String,
			City:      addr[3].String,
			Region:    addr[4].String,
		}
	}
	return &o, nil
}

func (r *orderRepository) Create(ctx context.Context, order *entity.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO orders (id, buyer_id, subtotal, delivery_fee, total_amount, payment_status, delivery_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8) ON CONFLICT (id) DO NOTHING`,
		order.ID, order.BuyerID, order.Subtotal, order.DeliveryFee, order.TotalAmount,
		order.PaymentStatus, order.DeliveryStatus, order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrConflict
	}

	for i, item := range order.Items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, position, item_id, custom_id, name, quantity, color, size, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			order.ID, i, item.ItemID, item.CustomID, item.Name, item.Quantity, item.Color, item.Size, item.UnitPrice,
		)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *orderRepository) FindByID(ctx context.Context, id string) (*entity.Order, error) {
	return r.findOne(ctx, r.db, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *orderRepository) FindByReference(ctx context.Context, reference string) (*entity.Order, error) {
	return r.findOne(ctx, r.db, `SELECT `+orderColumns+` FROM orders WHERE payment_reference = $1`, reference)
}

func (r *orderRepository) findOne(ctx context.Context, q queryer, query string, args ...any) (*entity.Order, error) {
	o, err := scanOrder(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, notFoundOr(err, "failed to query order")
	}
	if err := loadItems(ctx, q, []*entity.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *orderRepository) ListByBuyer(ctx context.Context, buyerID string) ([]entity.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE buyer_id = $1 ORDER BY created_at DESC`, buyerID)
}

func (r *orderRepository) List(ctx context.Context, filter entity.OrderFilter) ([]entity.Order, error) {
	var (
		conds []string
		args  []any
	)
	if filter.PaymentStatus != "" {
		args = append(args, filter.PaymentStatus)
		conds = append(conds, fmt.Sprintf("payment_status = $%d", len(args)))
	}
	if filter.DeliveryStatus != "" {
		args = append(args, filter.DeliveryStatus)
		conds = append(conds, fmt.Sprintf("delivery_status = $%d", len(args)))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return r.list(ctx, query, args...)
}

func (r *orderRepository) list(ctx context.Context, query string, args ...any) ([]entity.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var ptrs []*entity.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		ptrs = append(ptrs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	if err := loadItems(ctx, r.db, ptrs); err != nil {
		return nil, err
	}

	orders := make([]entity.Order, 0, len(ptrs))
	for _, o := range ptrs {
		orders = append(orders, *o)
	}
	return orders, nil
}

// loadItems fills the line items of orders with one query.
func loadItems(ctx context.Context, q queryer, orders []*entity.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[string]*entity.Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT order_id, item_id, custom_id, name, quantity, color, size, unit_price
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, position`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			item    entity.LineItem
		)
		if err := rows.Scan(&orderID, &item.ItemID, &item.CustomID, &item.Name, &item.Quantity, &item.Color, &item.Size, &item.UnitPrice); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return rows.Err()
}

// guarded runs a conditional UPDATE ... RETURNING and classifies a miss.
func (r *orderRepository) guarded(ctx context.Context, q queryer, existsQuery string, key any, query string, args ...any) (*entity.Order, error) {
	o, err := scanOrder(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, missingOrConflict(ctx, q, existsQuery, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}
	if err := loadItems(ctx, q, []*entity.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *orderRepository) AttachAddress(ctx context.Context, id string, addr entity.ShippingAddress, fee, total int64) (*entity.Order, error) {
	return r.guarded(ctx, r.db, orderExistsByID, id,
		`UPDATE orders SET addr_recipient = $2, addr_phone = $3, addr_street = $4, addr_city = $5, addr_region = $6,
			delivery_fee = $7, total_amount = $8, updated_at = $9
		WHERE id = $1 AND addr_region IS NULL AND payment_reference IS NULL
		RETURNING `+orderColumns,
		id, addr.Recipient, addr.Phone, addr.Street, addr.City, addr.Region, fee, total, r.now(),
	)
}

func (r *orderRepository) AttachReference(ctx context.Context, id, reference, paymentURL string) (*entity.Order, error) {
	o, err := r.guarded(ctx, r.db, orderExistsByID, id,
		`UPDATE orders SET payment_reference = $2, payment_url = $3, updated_at = $4
		WHERE id = $1 AND payment_reference IS NULL
		RETURNING `+orderColumns,
		id, reference, paymentURL, r.now(),
	)
	var pqErr *pq.Error
	if err != nil && errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return nil, repository.ErrConflict
	}
	return o, err
}

func (r *orderRepository) TransitionPayment(ctx context.Context, reference string, t entity.PaymentTransition) (*entity.Order, error) {
	return r.guarded(ctx, r.db, orderExistsByRef, reference,
		`UPDATE orders SET payment_status = $2, updated_at = $3
		WHERE payment_reference = $1 AND payment_status = $4 AND ($5::text = '' OR delivery_status <> $5::text)
		RETURNING `+orderColumns,
		reference, t.To, r.now(), t.From, t.BlockedBy,
	)
}

func (r *orderRepository) TransitionDelivery(ctx context.Context, id string, t entity.DeliveryTransition) (*entity.Order, error) {
	return r.guarded(ctx, r.db, orderExistsByID, id,
		`UPDATE orders SET delivery_status = $2, updated_at = $3
		WHERE id = $1 AND delivery_status = $4
			AND ($5::text = '' OR payment_status = $5::text)
			AND ($6::text = '' OR payment_status <> $6::text)
		RETURNING `+orderColumns,
		id, t.To, r.now(), t.From, t.RequiresPayment, t.ForbidsPayment,
	)
}

func (r *orderRepository) Settle(ctx context.Context, id string) (*entity.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	o, err := r.guarded(ctx, tx, orderExistsByID, id,
		`UPDATE orders SET settled = TRUE, updated_at = $2
		WHERE id = $1 AND settled = FALSE AND payment_status = 'paid'
		RETURNING `+orderColumns,
		id, r.now(),
	)
	if err != nil {
		return nil, err
	}

	for _, item := range o.Items {
		res, err := tx.ExecContext(ctx,
			`UPDATE catalog_items SET times_bought = times_bought + 1, units_bought = units_bought + $1 WHERE id = $2`,
			item.Quantity, item.ItemID,
		)
		if err := expectOne(res, err, "failed to increment sales counters"); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return o, nil
}

func (r *orderRepository) DeleteCancelledBefore(ctx context.Context, buyerID string, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM orders WHERE buyer_id = $1 AND delivery_status = 'cancelled' AND created_at < $2`,
		buyerID, before,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete cancelled orders: %w", err)
	}
	return res.RowsAffected()
}

func (r *orderRepository) HasDeliveredItem(ctx context.Context, buyerID, itemID string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM orders o JOIN order_items i ON i.order_id = o.id
			WHERE o.buyer_id = $1 AND o.delivery_status = 'delivered' AND i.item_id = $2
		)`,
		buyerID, itemID,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check delivered orders: %w", err)
	}
	return ok, nil
}
