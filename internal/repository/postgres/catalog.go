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

const itemColumns = `id, custom_id, name, description, category, price, discount_price, discount_expires,
	quantity, colors, sizes, add_info, times_bought, units_bought, rate_count, rate_number, rating, created_at`

const itemExistsByID = `SELECT EXISTS (SELECT 1 FROM catalog_items WHERE id = $1)`

type catalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository creates a new CatalogRepository backed by Postgres.
func NewCatalogRepository(db *sql.DB) repository.CatalogRepository {
	return &catalogRepository{db: db}
}

func scanItem(row rowScanner) (*entity.CatalogItem, error) {
	var (
		i        entity.CatalogItem
		discount sql.NullInt64
		expires  sql.NullTime
	)
	err := row.Scan(&i.ID, &i.CustomID, &i.Name, &i.Description, &i.Category, &i.Price, &discount, &expires,
		&i.Quantity, pq.Array(&i.Colors), pq.Array(&i.Sizes), &i.AddInfo,
		&i.TimesBought, &i.UnitsBought, &i.RateCount, &i.RateNumber, &i.Rating, &i.CreatedAt)
	if err != nil {
		return nil, err
	}
	if discount.Valid {
		i.DiscountPrice = &discount.Int64
	}
	if expires.Valid {
		i.DiscountExpires = &expires.Time
	}
	return &i, nil
}

// Create inserts item and fills in the custom id drawn from item_seq.
func (r *catalogRepository) Create(ctx context.Context, item *entity.CatalogItem) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO catalog_items (id, name, description, category, price, quantity, colors, sizes, add_info, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING custom_id`,
		item.ID, item.Name, item.Description, item.Category, item.Price, item.Quantity,
		pq.Array(item.Colors), pq.Array(item.Sizes), item.AddInfo, item.CreatedAt,
	).Scan(&item.CustomID)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return repository.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}
	return nil
}

func (r *catalogRepository) FindByID(ctx context.Context, id string) (*entity.CatalogItem, error) {
	item, err := scanItem(r.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM catalog_items WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "failed to query item")
	}
	return item, nil
}

func (r *catalogRepository) FindByCustomID(ctx context.Context, customID string) (*entity.CatalogItem, error) {
	item, err := scanItem(r.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM catalog_items WHERE custom_id = $1`, customID))
	if err != nil {
		return nil, notFoundOr(err, "failed to query item")
	}
	return item, nil
}

func (r *catalogRepository) List(ctx context.Context, filter entity.ItemFilter) ([]entity.CatalogItem, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Category != "" {
		args = append(args, filter.Category)
		conds = append(conds, fmt.Sprintf("LOWER(category) = LOWER($%d)", len(args)))
	}
	if filter.Search != "" {
		args = append(args, filter.Search)
		conds = append(conds, fmt.Sprintf("name ILIKE '%%' || $%d || '%%'", len(args)))
	}

	query := `SELECT ` + itemColumns + ` FROM catalog_items`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if filter.Popular {
		query += " ORDER BY units_bought DESC, created_at DESC"
	} else {
		query += " ORDER BY created_at DESC"
	}
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return r.query(ctx, query, args...)
}

func (r *catalogRepository) ListDiscountsExpiringBefore(ctx context.Context, now, until time.Time) ([]entity.CatalogItem, error) {
	return r.query(ctx,
		`SELECT `+itemColumns+` FROM catalog_items
		WHERE discount_price IS NOT NULL AND discount_expires > $1 AND discount_expires < $2
		ORDER BY discount_expires`,
		now, until,
	)
}

func (r *catalogRepository) query(ctx context.Context, query string, args ...any) ([]entity.CatalogItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []entity.CatalogItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (r *catalogRepository) SetDiscount(ctx context.Context, id string, price int64, expires time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE catalog_items SET discount_price = $1, discount_expires = $2 WHERE id = $3`,
		price, expires, id,
	)
	return expectOne(res, err, "failed to set discount")
}

func (r *catalogRepository) AddRating(ctx context.Context, id string, score int) (int64, int64, error) {
	var sum, count int64
	err := r.db.QueryRowContext(ctx,
		`UPDATE catalog_items SET rate_count = rate_count + $1, rate_number = rate_number + 1
		WHERE id = $2 RETURNING rate_count, rate_number`,
		score, id,
	).Scan(&sum, &count)
	if err != nil {
		return 0, 0, notFoundOr(err, "failed to add rating")
	}
	return sum, count, nil
}

func (r *catalogRepository) SetRating(ctx context.Context, id string, rating float64, count int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE catalog_items SET rating = $1 WHERE id = $2 AND rate_number = $3`,
		rating, id, count,
	)
	if err := expectOne(res, err, "failed to set rating"); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return missingOrConflict(ctx, r.db, itemExistsByID, id)
		}
		return err
	}
	return nil
}

// SeedCatalog inserts items when the catalog is empty.
func SeedCatalog(ctx context.Context, repo repository.CatalogRepository, items []entity.CatalogItem) (int, error) {
	existing, err := repo.List(ctx, entity.ItemFilter{Limit: 1})
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}

	for i := range items {
		if err := repo.Create(ctx, &items[i]); err != nil {
			return i, fmt.Errorf("failed to seed item %s: %w", items[i].Name, err)
		}
	}
	return len(items), nil
}
