package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/egannguyen/cart-ecommerce/internal/entity"
	"github.com/egannguyen/cart-ecommerce/internal/repository"
)

type reviewRepository struct {
	mu      sync.Mutex
	reviews map[string]*entity.Review
	likes   map[string]map[string]bool
}

func newReviewRepository() *reviewRepository {
	return &reviewRepository{
		reviews: make(map[string]*entity.Review),
		likes:   make(map[string]map[string]bool),
	}
}

func (r *reviewRepository) Create(_ context.Context, review *entity.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *review
	r.reviews[review.ID] = &c
	return nil
}

func (r *reviewRepository) FindByID(_ context.Context, id string) (*entity.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rv, ok := r.reviews[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *rv
	return &c, nil
}

func (r *reviewRepository) TopByItem(_ context.Context, itemID string, limit int) ([]entity.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Review
	for _, rv := range r.reviews {
		if rv.ItemID == itemID {
			out = append(out, *rv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Likes != out[j].Likes {
			return out[i].Likes > out[j].Likes
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *reviewRepository) Like(_ context.Context, reviewID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rv, ok := r.reviews[reviewID]
	if !ok {
		return false, repository.ErrNotFound
	}
	if r.likes[reviewID] == nil {
		r.likes[reviewID] = make(map[string]bool)
	}
	if r.likes[reviewID][userID] {
		return false, nil
	}
	r.likes[reviewID][userID] = true
	rv.Likes++
	return true, nil
}

func (r *reviewRepository) Unlike(_ context.Context, reviewID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rv, ok := r.reviews[reviewID]
	if !ok {
		return false, repository.ErrNotFound
	}
	if !r.likes[reviewID][userID] {
		return false, nil
	}
	delete(r.likes[reviewID], userID)
	rv.Likes--
	return true, nil
}
