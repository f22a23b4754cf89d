package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egannguyen/cart-ecommerce/internal/repository"
)

func TestReviewLikeToggle(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := &reviewRepository{db: db}
	ctx := context.Background()

	mock.ExpectExec(`WITH ins AS \(\s*INSERT INTO review_likes`).WithArgs("r1", "u2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	liked, err := repo.Like(ctx, "r1", "u2")
	require.NoError(t, err)
	assert.True(t, liked)

	mock.ExpectExec(`WITH ins AS`).WithArgs("r1", "u2").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM reviews WHERE id = \$1\)`).WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	liked, err = repo.Like(ctx, "r1", "u2")
	require.NoError(t, err)
	assert.False(t, liked)

	mock.ExpectExec(`WITH del AS \(\s*DELETE FROM review_likes`).WithArgs("missing", "u2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	_, err = repo.Unlike(ctx, "missing", "u2")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
