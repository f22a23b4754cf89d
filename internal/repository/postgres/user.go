package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/egannguyen/cart-ecommerce/internal/entity"
	"github.com/egannguyen/cart-ecommerce/internal/repository"
)

const userColumns = `id, fullname, phone, email, password_hash, role, is_verified, is_online,
	otp_cipher, otp_expires_at, reset_token_hash, reset_expires_at, created_at`

type userRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository backed by Postgres.
func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &userRepository{db: db}
}

func scanUser(row rowScanner) (*entity.User, error) {
	var (
		u                  entity.User
		otpExp, resetExpAt sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Fullname, &u.Phone, &u.Email, &u.PasswordHash, &u.Role, &u.IsVerified, &u.IsOnline,
		&u.OTPCipher, &otpExp, &u.ResetTokenHash, &resetExpAt, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	if otpExp.Valid {
		u.OTPExpiresAt = &otpExp.Time
	}
	if resetExpAt.Valid {
		u.ResetExpiresAt = &resetExpAt.Time
	}
	return &u, nil
}

func (r *userRepository) Create(ctx context.Context, user *entity.User) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, fullname, phone, email, password_hash, role, is_verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (email) DO NOTHING`,
		user.ID, user.Fullname, user.Phone, user.Email, user.PasswordHash, user.Role, user.IsVerified, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrConflict
	}
	return nil
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "failed to query user")
	}
	return u, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = LOWER($1)`, email))
	if err != nil {
		return nil, notFoundOr(err, "failed to query user")
	}
	return u, nil
}

func (r *userRepository) SetOTP(ctx context.Context, id, cipher string, expires time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET otp_cipher = $1, otp_expires_at = $2 WHERE id = $3`, cipher, expires, id)
	return expectOne(res, err, "failed to store otp")
}

func (r *userRepository) Activate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_verified = TRUE, otp_cipher = '', otp_expires_at = NULL WHERE id = $1`, id)
	return expectOne(res, err, "failed to activate user")
}

func (r *userRepository) SetOnline(ctx context.Context, id string, online bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET is_online = $1 WHERE id = $2`, online, id)
	return expectOne(res, err, "failed to update presence")
}

func (r *userRepository) SetResetToken(ctx context.Context, id, hash string, expires time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET reset_token_hash = $1, reset_expires_at = $2 WHERE id = $3`, hash, expires, id)
	return expectOne(res, err, "failed to store reset token")
}

func (r *userRepository) ResetPassword(ctx context.Context, id, passwordHash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $1, reset_token_hash = '', reset_expires_at = NULL WHERE id = $2`,
		passwordHash, id)
	return expectOne(res, err, "failed to reset password")
}

func (r *userRepository) AddAddress(ctx context.Context, addr *entity.Address) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if addr.IsDefault {
		if _, err := tx.ExecContext(ctx, `UPDATE addresses SET is_default = FALSE WHERE user_id = $1`, addr.UserID); err != nil {
			return fmt.Errorf("failed to clear default address: %w", err)
		}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO addresses (id, user_id, recipient, phone, street, city, region, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		addr.ID, addr.UserID, addr.Recipient, addr.Phone, addr.Street, addr.City, addr.Region, addr.IsDefault,
	)
	if err != nil {
		return fmt.Errorf("failed to insert address: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const addressColumns = `id, user_id, recipient, phone, street, city, region, is_default`

func scanAddress(row rowScanner) (*entity.Address, error) {
	var a entity.Address
	if err := row.Scan(&a.ID, &a.UserID, &a.Recipient, &a.Phone, &a.Street, &a.City, &a.Region, &a.IsDefault); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *userRepository) FindAddress(ctx context.Context, userID, addressID string) (*entity.Address, error) {
	a, err := scanAddress(r.db.QueryRowContext(ctx,
		`SELECT `+addressColumns+` FROM addresses WHERE id = $1 AND user_id = $2`, addressID, userID))
	if err != nil {
		return nil, notFoundOr(err, "failed to query address")
	}
	return a, nil
}

func (r *userRepository) ListAddresses(ctx context.Context, userID string) ([]entity.Address, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+addressColumns+` FROM addresses WHERE user_id = $1 ORDER BY is_default DESC, created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query addresses: %w", err)
	}
	defer rows.Close()

	var list []entity.Address
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}

func (r *userRepository) AddSavedCard(ctx context.Context, userID string, card entity.SavedCard) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO saved_cards (user_id, authorization_code, card_type, last4, exp_month, exp_year, bank)
		VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (user_id, authorization_code) DO NOTHING`,
		userID, card.AuthorizationCode, card.CardType, card.Last4, card.ExpMonth, card.ExpYear, card.Bank,
	)
	if err != nil {
		return false, fmt.Errorf("failed to save card: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to save card: %w", err)
	}
	return n > 0, nil
}

func (r *userRepository) ListSavedCards(ctx context.Context, userID string) ([]entity.SavedCard, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT authorization_code, card_type, last4, exp_month, exp_year, bank
		FROM saved_cards WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	var cards []entity.SavedCard
	for rows.Next() {
		var c entity.SavedCard
		if err := rows.Scan(&c.AuthorizationCode, &c.CardType, &c.Last4, &c.ExpMonth, &c.ExpYear, &c.Bank); err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}
