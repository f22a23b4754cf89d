package postgres

import (
	"time"

	"github.com/google/uuid"

	"github.com/egannguyen/cart-ecommerce/internal/entity"
)

// DemoCatalog is the starter catalog loaded into an empty database.
func DemoCatalog(now time.Time) []entity.CatalogItem {
	item := func(name, category string, price int64, colors []string, sizes []int64) entity.CatalogItem {
		return entity.CatalogItem{
			ID:        uuid.NewString(),
			Name:      name,
			Category:  category,
			Price:     price,
			Quantity:  50,
			Colors:    colors,
			Sizes:     sizes,
			CreatedAt: now,
		}
	}
	return []entity.CatalogItem{
		item("Canvas Sneaker", "shoes", 1850000, []string{"white", "black"}, []int64{40, 41, 42, 43, 44}),
		item("Leather Sandal", "shoes", 950000, []string{"brown"}, []int64{39, 40, 41, 42}),
		item("Ankara Shirt", "clothing", 1200000, []string{"blue", "orange"}, nil),
		item("Denim Jacket", "clothing", 2400000, []string{"indigo"}, nil),
		item("Steel Watch", "accessories", 4500000, []string{"silver"}, nil),
		item("Tote Bag", "accessories", 650000, []string{"beige", "black"}, nil),
	}
}
