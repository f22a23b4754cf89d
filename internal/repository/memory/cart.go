package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/egannguyen/cart-ecommerce/internal/entity"
	"github.com/egannguyen/cart-ecommerce/internal/repository"
)

type cartRepository struct {
	mu    sync.Mutex
	carts map[string]map[string]entity.CartLine
}

// NewCartRepository creates a CartRepository held in process memory.
func NewCartRepository() repository.CartRepository {
	return &cartRepository{carts: make(map[string]map[string]entity.CartLine)}
}

func (r *cartRepository) Add(_ context.Context, userID string, line entity.CartLine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cart := r.carts[userID]
	if cart == nil {
		cart = make(map[string]entity.CartLine)
		r.carts[userID] = cart
	}
	key := line.Variant()
	if existing, ok := cart[key]; ok {
		line.Quantity += existing.Quantity
	}
	cart[key] = line
	return nil
}

func (r *cartRepository) Get(_ context.Context, userID string) ([]entity.CartLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.CartLine
	for _, line := range r.carts[userID] {
		out = append(out, line)
	}
	sort.Slice(out, func(i, j int) bool { return entity.LessCartLine(out[i], out[j]) })
	return out, nil
}

func (r *cartRepository) Remove(_ context.Context, userID, customID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, line := range r.carts[userID] {
		if line.CustomID == customID {
			delete(r.carts[userID], key)
		}
	}
	return nil
}

func (r *cartRepository) Clear(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, userID)
	return nil
}
