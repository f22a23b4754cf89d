package entity

import (
	"strconv"
	"time"
)

// CatalogItem is a product that can be put in a cart and ordered.
type CatalogItem struct {
	ID              string     `json:"id"`
	CustomID        string     `json:"custom_id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Category        string     `json:"category"`
	Price           int64      `json:"price"`
	DiscountPrice   *int64     `json:"discount_price,omitempty"`
	DiscountExpires *time.Time `json:"discount_expires,omitempty"`
	Quantity        int        `json:"quantity"`
	Colors          []string   `json:"colors"`
	Sizes           []int64    `json:"sizes"`
	AddInfo         string     `json:"add_info,omitempty"`
	TimesBought     int64      `json:"times_bought"`
	UnitsBought     int64      `json:"units_bought"`
	RateCount       int64      `json:"rate_count"`
	RateNumber      int64      `json:"rate_number"`
	Rating          float64    `json:"rating"`
	CreatedAt       time.Time  `json:"created_at"`
}

// DiscountActive reports whether a discount price applies at now.
func (i *CatalogItem) DiscountActive(now time.Time) bool {
	return i.DiscountPrice != nil && i.DiscountExpires != nil && now.Before(*i.DiscountExpires)
}

// EffectivePrice is the discounted price while a discount is active, else the base price.
func (i *CatalogItem) EffectivePrice(now time.Time) int64 {
	if i.DiscountActive(now) {
		return *i.DiscountPrice
	}
	return i.Price
}

// ItemFilter narrows catalog listings.
type ItemFilter struct {
	Category string
	Search   string
	Popular  bool
	Limit    int
	Offset   int
}

// ItemPreview is an item page with its most liked reviews.
type ItemPreview struct {
	Item    *CatalogItem `json:"item"`
	Reviews []Review     `json:"reviews"`
}

// Review is free text a buyer left on an item they received.
type Review struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ItemID    string    `json:"item_id"`
	Username  string    `json:"username"`
	Rating    int       `json:"rating"`
	Text      string    `json:"review"`
	Likes     int64     `json:"likes"`
	CreatedAt time.Time `json:"created_at"`
}

// CartLine is one entry in a buyer's cart.
type CartLine struct {
	CustomID string `json:"custom_id"`
	Quantity int    `json:"quantity"`
	Color    string `json:"color,omitempty"`
	Size     int    `json:"size,omitempty"`
}

// Variant identifies the line within a cart: the same item in another color or
// size is a separate line.
func (l CartLine) Variant() string {
	return l.CustomID + "|" + l.Color + "|" + strconv.Itoa(l.Size)
}

// LessCartLine orders cart lines by item, then color, then size.
func LessCartLine(a, b CartLine) bool {
	if a.CustomID != b.CustomID {
		return a.CustomID < b.CustomID
	}
	if a.Color != b.Color {
		return a.Color < b.Color
	}
	return a.Size < b.Size
}

// CartEntry is a cart line joined with live catalog data.
type CartEntry struct {
	CartLine
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Amount    int64  `json:"amount"`
}

// CartView is the rendered cart.
type CartView struct {
	Items    []CartEntry `json:"items"`
	Subtotal int64       `json:"subtotal"`
}
