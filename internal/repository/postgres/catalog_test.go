package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egannguyen/cart-ecommerce/internal/entity"
	"github.com/egannguyen/cart-ecommerce/internal/repository"
)

var catalogCols = []string{"id", "custom_id", "name", "description", "category", "price", "discount_price", "discount_expires",
	"quantity", "colors", "sizes", "add_info", "times_bought", "units_bought", "rate_count", "rate_number", "rating", "created_at"}

func newCatalogRepo(t *testing.T) (*catalogRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &catalogRepository{db: db}, mock
}

func TestCatalogCreateAssignsCustomID(t *testing.T) {
	repo, mock := newCatalogRepo(t)
	item := &entity.CatalogItem{ID: "item-a", Name: "Sneaker", Category: "shoes", Price: 1000, Colors: []string{"red"}, Sizes: []int64{41, 42}, CreatedAt: fixedNow}

	mock.ExpectQuery(`INSERT INTO catalog_items .* RETURNING custom_id`).
		WithArgs("item-a", "Sneaker", "", "shoes", int64(1000), 0, "{\"red\"}", "{41,42}", "", fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"custom_id"}).AddRow("item_007"))

	require.NoError(t, repo.Create(context.Background(), item))
	assert.Equal(t, "item_007", item.CustomID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogFindByCustomID(t *testing.T) {
	repo, mock := newCatalogRepo(t)
	expires := fixedNow.Add(time.Hour)
	mock.ExpectQuery(`FROM catalog_items WHERE custom_id = \$1`).WithArgs("item_001").
		WillReturnRows(sqlmock.NewRows(catalogCols).AddRow(
			"item-a", "item_001", "Sneaker", "", "shoes", int64(1000), int64(800), expires,
			5, "{red,blue}", "{41,42}", "", int64(3), int64(7), int64(9), int64(2), 4.5, fixedNow,
		))

	item, err := repo.FindByCustomID(context.Background(), "item_001")
	require.NoError(t, err)
	assert.Equal(t, []string{"red", "blue"}, item.Colors)
	assert.Equal(t, []int64{41, 42}, item.Sizes)
	require.NotNil(t, item.DiscountPrice)
	assert.Equal(t, int64(800), item.EffectivePrice(fixedNow))
	assert.Equal(t, int64(1000), item.EffectivePrice(expires.Add(time.Second)))
}

func TestCatalogListQuery(t *testing.T) {
	repo, mock := newCatalogRepo(t)
	mock.ExpectQuery(`WHERE LOWER\(category\) = LOWER\(\$1\) AND name ILIKE '%' \|\| \$2 \|\| '%' ORDER BY units_bought DESC, created_at DESC LIMIT \$3`).
		WithArgs("Shoes", "snea", 5).
		WillReturnRows(sqlmock.NewRows(catalogCols))

	items, err := repo.List(context.Background(), entity.ItemFilter{Category: "Shoes", Search: "snea", Popular: true, Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRating(t *testing.T) {
	ctx := context.Background()
	repo, mock := newCatalogRepo(t)

	mock.ExpectQuery(`UPDATE catalog_items SET rate_count = rate_count \+ \$1, rate_number = rate_number \+ 1`).
		WithArgs(4, "item-a").
		WillReturnRows(sqlmock.NewRows([]string{"rate_count", "rate_number"}).AddRow(int64(13), int64(3)))
	sum, count, err := repo.AddRating(ctx, "item-a", 4)
	require.NoError(t, err)
	assert.Equal(t, int64(13), sum)
	assert.Equal(t, int64(3), count)

	mock.ExpectExec(`UPDATE catalog_items SET rating = \$1 WHERE id = \$2 AND rate_number = \$3`).
		WithArgs(4.3, "item-a", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM catalog_items`).WithArgs("item-a").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	err = repo.SetRating(ctx, "item-a", 4.3, 3)
	assert.ErrorIs(t, err, repository.ErrConflict)

	mock.ExpectQuery(`UPDATE catalog_items SET rate_count`).WithArgs(5, "missing").
		WillReturnRows(sqlmock.NewRows([]string{"rate_count", "rate_number"}))
	_, _, err = repo.AddRating(ctx, "missing", 5)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedCatalogSkipsWhenNotEmpty(t *testing.T) {
	repo, mock := newCatalogRepo(t)
	mock.ExpectQuery(`SELECT .* FROM catalog_items ORDER BY created_at DESC LIMIT \$1`).WithArgs(1).
		WillReturnRows(sqlmock.NewRows(catalogCols).AddRow(
			"item-a", "item_001", "Sneaker", "", "shoes", int64(1000), nil, nil,
			5, "{}", "{}", "", int64(0), int64(0), int64(0), int64(0), 0.0, fixedNow,
		))

	n, err := SeedCatalog(context.Background(), repo, DemoCatalog(fixedNow))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
