package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/egannguyen/cart-ecommerce/internal/entity"
	"github.com/egannguyen/cart-ecommerce/internal/repository"
)

const maxAppendAttempts = 3

type orderHistory struct {
	db *sql.DB
}

// NewHistoryRepository creates a HistoryRepository backed by Postgres.
func NewHistoryRepository(db *sql.DB) repository.HistoryRepository {
	return &orderHistory{db: db}
}

// Append writes e as version MAX+1 of the order's stream. The unique
// (order_id, version) key rejects a concurrent writer, which retries.
func (s *orderHistory) Append(ctx context.Context, e entity.OrderEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", e.Type, err)
	}

	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		err = s.append(ctx, e, payload)
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			continue
		}
		return err
	}
	return fmt.Errorf("failed to append event %s for order %s: %w", e.Type, e.OrderID, repository.ErrConflict)
}

func (s *orderHistory) append(ctx context.Context, e entity.OrderEvent, payload []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var version int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM order_history WHERE order_id = $1`, e.OrderID).Scan(&version)
	if err != nil {
		return fmt.Errorf("failed to get current stream version: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO order_history (id, order_id, version, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.NewString(), e.OrderID, version+1, e.Type, payload, e.At,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event %s: %w", e.Type, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *orderHistory) ListByOrder(ctx context.Context, orderID string) ([]entity.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, order_id, version, event_type, payload, created_at
		FROM order_history WHERE order_id = $1 ORDER BY version ASC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for order %s: %w", orderID, err)
	}
	defer rows.Close()

	var entries []entity.HistoryEntry
	for rows.Next() {
		var e entity.HistoryEntry
		var payload []byte
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Version, &e.EventType, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.Payload = payload
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history rows: %w", err)
	}
	return entries, nil
}
