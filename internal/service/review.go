package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/egannguyen/cart-ecommerce/internal/entity"
	"github.com/egannguyen/cart-ecommerce/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RateInput is a buyer's rating and optional review text.
type RateInput struct {
	Rating int    `json:"rating"`
	Review string `json:"review,omitempty"`
}

// RatingResult reports the item's rating after a submission.
type RatingResult struct {
	CustomID string         `json:"custom_id"`
	Rating   float64        `json:"rating"`
	Count    int64          `json:"rate_number"`
	Review   *entity.Review `json:"review,omitempty"`
}

// ReviewService gates ratings on delivered orders and tracks review likes.
type ReviewService struct {
	Deps
	now func() time.Time
}

func NewReviewService(deps Deps) (*ReviewService, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.Reviews == nil {
		return nil, errors.New("review repository is required")
	}
	return &ReviewService{Deps: deps, now: time.Now}, nil
}

// RateItem records a rating from a buyer who has received the item.
func (s *ReviewService) RateItem(ctx context.Context, caller entity.Identity, customID string, in RateInput) (*RatingResult, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, entity.ErrInvalidRating
	}
	item, err := s.findItem(ctx, customID)
	if err != nil {
		return nil, err
	}

	eligible, err := s.Orders.HasDeliveredItem(ctx, caller.UserID, item.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check review eligibility: %w", err)
	}
	if !eligible {
		return nil, entity.ErrForbidden
	}

	sum, count, err := s.Catalog.AddRating(ctx, item.ID, in.Rating)
	if err != nil {
		return nil, fmt.Errorf("failed to add rating: %w", err)
	}
	rating := averageRating(sum, count)
	err = s.Catalog.SetRating(ctx, item.ID, rating, count)
	if errors.Is(err, repository.ErrConflict) {
		// A later rating owns the average now.
		s.Logger.Debugw("Rating average superseded", "item_id", item.ID, "count", count)
	} else if err != nil {
		return nil, fmt.Errorf("failed to store rating: %w", err)
	}

	result := &RatingResult{CustomID: item.CustomID, Rating: rating, Count: count}
	text := strings.TrimSpace(in.Review)
	if text == "" {
		return result, nil
	}

	username := caller.Email
	if user, err := s.Users.FindByID(ctx, caller.UserID); err == nil {
		username = user.Fullname
	}
	review := &entity.Review{
		ID:        uuid.NewString(),
		UserID:    caller.UserID,
		ItemID:    item.ID,
		Username:  username,
		Rating:    in.Rating,
		Text:      text,
		CreatedAt: s.now(),
	}
	if err := s.Reviews.Create(ctx, review); err != nil {
		return nil, fmt.Errorf("failed to store review: %w", err)
	}
	s.Logger.Infow("Review added", "item_id", item.ID, "user_id", caller.UserID, "rating", in.Rating)
	result.Review = review
	return result, nil
}

// LikeReview counts the caller's like once.
func (s *ReviewService) LikeReview(ctx context.Context, caller entity.Identity, reviewID string) (*entity.Review, error) {
	return s.toggle(ctx, reviewID, func() (bool, error) {
		return s.Reviews.Like(ctx, reviewID, caller.UserID)
	})
}

// UnlikeReview withdraws the caller's like.
func (s *ReviewService) UnlikeReview(ctx context.Context, caller entity.Identity, reviewID string) (*entity.Review, error) {
	return s.toggle(ctx, reviewID, func() (bool, error) {
		return s.Reviews.Unlike(ctx, reviewID, caller.UserID)
	})
}

func (s *ReviewService) toggle(ctx context.Context, reviewID string, apply func() (bool, error)) (*entity.Review, error) {
	changed, err := apply()
	if errors.Is(err, repository.ErrNotFound) {
		return nil, entity.ErrReviewNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update review likes: %w", err)
	}
	review, err := s.Reviews.FindByID(ctx, reviewID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, entity.ErrReviewNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load review: %w", err)
	}
	if !changed {
		return review, entity.ErrDuplicateEvent
	}
	return review, nil
}

// averageRating rounds sum/count to one decimal place.
func averageRating(sum, count int64) float64 {
	if count == 0 {
		return 0
	}
	avg, _ := decimal.NewFromInt(sum).Div(decimal.NewFromInt(count)).Round(1).Float64()
	return avg
}
