package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/egannguyen/cart-ecommerce/internal/entity"
	"github.com/egannguyen/cart-ecommerce/internal/repository"
)

const (
	reviewColumns = `id, user_id, item_id, username, rating, text, likes, created_at`
	reviewExists  = `SELECT EXISTS (SELECT 1 FROM reviews WHERE id = $1)`
)

type reviewRepository struct {
	db *sql.DB
}

// NewReviewRepository creates a new ReviewRepository backed by Postgres.
func NewReviewRepository(db *sql.DB) repository.ReviewRepository {
	return &reviewRepository{db: db}
}

func scanReview(row rowScanner) (*entity.Review, error) {
	var rv entity.Review
	if err := row.Scan(&rv.ID, &rv.UserID, &rv.ItemID, &rv.Username, &rv.Rating, &rv.Text, &rv.Likes, &rv.CreatedAt); err != nil {
		return nil, err
	}
	return &rv, nil
}

func (r *reviewRepository) Create(ctx context.Context, review *entity.Review) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reviews (id, user_id, item_id, username, rating, text, likes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		review.ID, review.UserID, review.ItemID, review.Username, review.Rating, review.Text, review.Likes, review.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert review: %w", err)
	}
	return nil
}

func (r *reviewRepository) FindByID(ctx context.Context, id string) (*entity.Review, error) {
	rv, err := scanReview(r.db.QueryRowContext(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "failed to query review")
	}
	return rv, nil
}

func (r *reviewRepository) TopByItem(ctx context.Context, itemID string, limit int) ([]entity.Review, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE item_id = $1 ORDER BY likes DESC, created_at DESC LIMIT $2`,
		itemID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	var out []entity.Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		out = append(out, *rv)
	}
	return out, rows.Err()
}

// Like inserts the like row and bumps the counter in one statement.
func (r *reviewRepository) Like(ctx context.Context, reviewID, userID string) (bool, error) {
	return r.toggle(ctx, reviewID,
		`WITH ins AS (
			INSERT INTO review_likes (review_id, user_id)
			SELECT id, $2 FROM reviews WHERE id = $1
			ON CONFLICT (review_id, user_id) DO NOTHING
			RETURNING review_id
		)
		UPDATE reviews SET likes = likes + 1 WHERE id IN (SELECT review_id FROM ins)`,
		reviewID, userID)
}

func (r *reviewRepository) Unlike(ctx context.Context, reviewID, userID string) (bool, error) {
	return r.toggle(ctx, reviewID,
		`WITH del AS (
			DELETE FROM review_likes WHERE review_id = $1 AND user_id = $2
			RETURNING review_id
		)
		UPDATE reviews SET likes = likes - 1 WHERE id IN (SELECT review_id FROM del)`,
		reviewID, userID)
}

func (r *reviewRepository) toggle(ctx context.Context, reviewID, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update likes: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to update likes: %w", err)
	}
	if n > 0 {
		return true, nil
	}
	// Nothing changed: either the review is missing or the like state already matched.
	err = missingOrConflict(ctx, r.db, reviewExists, reviewID)
	if errors.Is(err, repository.ErrConflict) {
		return false, nil
	}
	return false, err
}
