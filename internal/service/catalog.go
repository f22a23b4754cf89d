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

const (
	flashSaleWindow = 3 * time.Hour
	previewReviews  = 5
	defaultPageSize = 20
	maxPageSize     = 100
)

// NewItemInput describes an item added by an admin.
type NewItemInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Price       int64    `json:"price"`
	Quantity    int      `json:"quantity"`
	Colors      []string `json:"colors"`
	Sizes       []int64  `json:"sizes"`
	AddInfo     string   `json:"add_info"`
}

func (in NewItemInput) validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return entity.ValidationError("name is required")
	case strings.TrimSpace(in.Category) == "":
		return entity.ValidationError("category is required")
	case in.Price <= 0:
		return entity.ValidationError("price must be positive")
	case in.Quantity < 0:
		return entity.ValidationError("quantity cannot be negative")
	}
	return nil
}

// CatalogService serves item listings and admin catalog changes.
type CatalogService struct {
	Deps
	now func() time.Time
}

func NewCatalogService(deps Deps) (*CatalogService, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	return &CatalogService{Deps: deps, now: time.Now}, nil
}

func (s *CatalogService) List(ctx context.Context, filter entity.ItemFilter) ([]entity.CatalogItem, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	items, err := s.Catalog.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	if items == nil {
		items = []entity.CatalogItem{}
	}
	return items, nil
}

// FlashSale lists discounts that end within the next three hours.
func (s *CatalogService) FlashSale(ctx context.Context) ([]entity.CatalogItem, error) {
	now := s.now()
	items, err := s.Catalog.ListDiscountsExpiringBefore(ctx, now, now.Add(flashSaleWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to list flash sale: %w", err)
	}
	if items == nil {
		items = []entity.CatalogItem{}
	}
	return items, nil
}

// Preview returns an item with its most liked reviews.
func (s *CatalogService) Preview(ctx context.Context, customID string) (*entity.ItemPreview, error) {
	item, err := s.findItem(ctx, customID)
	if err != nil {
		return nil, err
	}
	preview := &entity.ItemPreview{Item: item, Reviews: []entity.Review{}}
	if s.Reviews == nil {
		return preview, nil
	}
	reviews, err := s.Reviews.TopByItem(ctx, item.ID, previewReviews)
	if err != nil {
		return nil, fmt.Errorf("failed to load reviews: %w", err)
	}
	if reviews != nil {
		preview.Reviews = reviews
	}
	return preview, nil
}

func (s *CatalogService) AddItem(ctx context.Context, caller entity.Identity, in NewItemInput) (*entity.CatalogItem, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	item := &entity.CatalogItem{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Category:    strings.ToLower(strings.TrimSpace(in.Category)),
		Price:       in.Price,
		Quantity:    in.Quantity,
		Colors:      in.Colors,
		Sizes:       in.Sizes,
		AddInfo:     in.AddInfo,
		CreatedAt:   s.now(),
	}
	if err := s.Catalog.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}
	s.Logger.Infow("Item added", "item_id", item.ID, "custom_id", item.CustomID, "price", item.Price)
	return item, nil
}

// SetDiscount takes percent off the base price for the given number of days.
func (s *CatalogService) SetDiscount(ctx context.Context, caller entity.Identity, customID string, percent, days int) (*entity.CatalogItem, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if percent < 1 || percent > 99 {
		return nil, entity.ValidationError("percent must be between 1 and 99")
	}
	if days < 1 {
		return nil, entity.ValidationError("days must be at least 1")
	}
	item, err := s.findItem(ctx, customID)
	if err != nil {
		return nil, err
	}

	price := DiscountedPrice(item.Price, percent)
	expires := s.now().Add(time.Duration(days) * 24 * time.Hour)
	err = s.Catalog.SetDiscount(ctx, item.ID, price, expires)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, entity.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set discount: %w", err)
	}
	item.DiscountPrice = &price
	item.DiscountExpires = &expires
	s.Logger.Infow("Discount set", "custom_id", item.CustomID, "percent", percent, "price", price, "expires", expires)
	return item, nil
}

// DiscountedPrice is price less percent, rounded to whole minor units.
func DiscountedPrice(price int64, percent int) int64 {
	p := decimal.NewFromInt(price)
	off := p.Mul(decimal.NewFromInt(int64(percent))).Div(decimal.NewFromInt(100))
	return p.Sub(off).Round(0).IntPart()
}
