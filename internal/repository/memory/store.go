// Package memory implements the repositories in process memory with the same
// conditional-update contracts as the Postgres store.
package memory

import "github.com/egannguyen/cart-ecommerce/internal/repository"

// Store groups repositories that share state, so settling an order can
// update catalog counters under one lock order.
type Store struct {
	Orders  repository.OrderRepository
	Catalog repository.CatalogRepository
	Users   repository.UserRepository
	Reviews repository.ReviewRepository
	Carts   repository.CartRepository
	History repository.HistoryRepository
}

func NewStore() *Store {
	catalog := newCatalogRepository()
	history := newHistoryRepository()
	return &Store{
		Orders:  newOrderRepository(catalog, history),
		Catalog: catalog,
		Users:   newUserRepository(),
		Reviews: newReviewRepository(),
		Carts:   NewCartRepository(),
		History: history,
	}
}
