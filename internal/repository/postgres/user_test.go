package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egannguyen/cart-ecommerce/internal/entity"
	"github.com/egannguyen/cart-ecommerce/internal/repository"
)

func newUserRepo(t *testing.T) (*userRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &userRepository{db: db}, mock
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectExec(`INSERT INTO users .* ON CONFLICT \(email\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Create(context.Background(), &entity.User{ID: "u1", Email: "ada@example.com", Role: entity.RoleMember})
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestUserFindByEmail(t *testing.T) {
	repo, mock := newUserRepo(t)
	cols := []string{"id", "fullname", "phone", "email", "password_hash", "role", "is_verified", "is_online",
		"otp_cipher", "otp_expires_at", "reset_token_hash", "reset_expires_at", "created_at"}
	mock.ExpectQuery(`FROM users WHERE email = LOWER\(\$1\)`).WithArgs("Ada@Example.com").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"u1", "Ada", "08012345678", "ada@example.com", "hash", "admin", true, false,
			"sealed", fixedNow, "", nil, fixedNow,
		))

	u, err := repo.FindByEmail(context.Background(), "Ada@Example.com")
	require.NoError(t, err)
	assert.Equal(t, entity.RoleAdmin, u.Role)
	require.NotNil(t, u.OTPExpiresAt)
	assert.Nil(t, u.ResetExpiresAt)
}

func TestUserUpdateMissing(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectExec(`UPDATE users SET is_online = \$1 WHERE id = \$2`).WithArgs(true, "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetOnline(context.Background(), "ghost", true)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAddDefaultAddress(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE addresses SET is_default = FALSE WHERE user_id = \$1`).WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`INSERT INTO addresses`).
		WithArgs("a1", "u1", "Ada", "", "1 Marina", "Lagos", "lagos", true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.AddAddress(context.Background(), &entity.Address{
		ID: "a1", UserID: "u1", Recipient: "Ada", Street: "1 Marina", City: "Lagos", Region: "lagos", IsDefault: true,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddSavedCardDedup(t *testing.T) {
	repo, mock := newUserRepo(t)
	card := entity.SavedCard{AuthorizationCode: "AUTH_1", CardType: "visa", Last4: "4081"}

	mock.ExpectExec(`INSERT INTO saved_cards .* ON CONFLICT \(user_id, authorization_code\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO saved_cards`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	added, err := repo.AddSavedCard(context.Background(), "u1", card)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = repo.AddSavedCard(context.Background(), "u1", card)
	require.NoError(t, err)
	assert.False(t, added)
}
