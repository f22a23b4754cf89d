package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/egannguyen/cart-ecommerce/internal/entity"
	"github.com/egannguyen/cart-ecommerce/internal/repository"
)

type catalogRepository struct {
	mu    sync.Mutex
	items map[string]*entity.CatalogItem
	seq   int
}

func newCatalogRepository() *catalogRepository {
	return &catalogRepository{items: make(map[string]*entity.CatalogItem)}
}

func cloneItem(i *entity.CatalogItem) *entity.CatalogItem {
	c := *i
	c.Colors = append([]string(nil), i.Colors...)
	c.Sizes = append([]int64(nil), i.Sizes...)
	return &c
}

func (r *catalogRepository) Create(_ context.Context, item *entity.CatalogItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[item.ID]; exists {
		return repository.ErrConflict
	}
	r.seq++
	item.CustomID = fmt.Sprintf("item_%03d", r.seq)
	r.items[item.ID] = cloneItem(item)
	return nil
}

func (r *catalogRepository) FindByID(_ context.Context, id string) (*entity.CatalogItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneItem(i), nil
}

func (r *catalogRepository) FindByCustomID(_ context.Context, customID string) (*entity.CatalogItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, i := range r.items {
		if i.CustomID == customID {
			return cloneItem(i), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *catalogRepository) List(_ context.Context, filter entity.ItemFilter) ([]entity.CatalogItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.CatalogItem
	search := strings.ToLower(filter.Search)
	for _, i := range r.items {
		if filter.Category != "" && !strings.EqualFold(i.Category, filter.Category) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(i.Name), search) {
			continue
		}
		out = append(out, *cloneItem(i))
	}
	sort.Slice(out, func(a, b int) bool {
		if filter.Popular && out[a].UnitsBought != out[b].UnitsBought {
			return out[a].UnitsBought > out[b].UnitsBought
		}
		return out[a].CustomID > out[b].CustomID
	})
	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *catalogRepository) ListDiscountsExpiringBefore(_ context.Context, now, until time.Time) ([]entity.CatalogItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.CatalogItem
	for _, i := range r.items {
		if i.DiscountActive(now) && i.DiscountExpires.Before(until) {
			out = append(out, *cloneItem(i))
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].DiscountExpires.Before(*out[b].DiscountExpires) })
	return out, nil
}

func (r *catalogRepository) SetDiscount(_ context.Context, id string, price int64, expires time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	i.DiscountPrice = &price
	i.DiscountExpires = &expires
	return nil
}

// incrementSales applies every line or none.
func (r *catalogRepository) incrementSales(lines []entity.LineItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, line := range lines {
		if _, ok := r.items[line.ItemID]; !ok {
			return repository.ErrNotFound
		}
	}
	for _, line := range lines {
		i := r.items[line.ItemID]
		i.TimesBought++
		i.UnitsBought += int64(line.Quantity)
	}
	return nil
}

func (r *catalogRepository) AddRating(_ context.Context, id string, score int) (int64, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.items[id]
	if !ok {
		return 0, 0, repository.ErrNotFound
	}
	i.RateCount += int64(score)
	i.RateNumber++
	return i.RateCount, i.RateNumber, nil
}

func (r *catalogRepository) SetRating(_ context.Context, id string, rating float64, count int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	if i.RateNumber != count {
		return repository.ErrConflict
	}
	i.Rating = rating
	return nil
}
