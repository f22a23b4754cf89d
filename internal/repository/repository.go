package repository

import (
	"context"
	"errors"
	"time"

	"github.com/egannguyen/cart-ecommerce/internal/entity"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a conditional update's precondition no longer holds.
	ErrConflict = errors.New("precondition failed")
)

// OrderRepository handles persistence for Orders. Every status change is a
// conditional update; callers re-read the order to classify ErrConflict.
type OrderRepository interface {
	Create(ctx context.Context, order *entity.Order) error
	FindByID(ctx context.Context, id string) (*entity.Order, error)
	FindByReference(ctx context.Context, reference string) (*entity.Order, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]entity.Order, error)
	List(ctx context.Context, filter entity.OrderFilter) ([]entity.Order, error)

	// AttachAddress sets address, fee and total once, before a payment reference exists.
	AttachAddress(ctx context.Context, id string, addr entity.ShippingAddress, fee, total int64) (*entity.Order, error)
	// AttachReference sets the payment reference once.
	AttachReference(ctx context.Context, id, reference, paymentURL string) (*entity.Order, error)
	TransitionPayment(ctx context.Context, reference string, t entity.PaymentTransition) (*entity.Order, error)
	TransitionDelivery(ctx context.Context, id string, t entity.DeliveryTransition) (*entity.Order, error)
	// Settle flips the settled flag of a paid order exactly once and, in the same
	// transaction, adds one purchase and the quantity to every line item's catalog counters.
	Settle(ctx context.Context, id string) (*entity.Order, error)

	DeleteCancelledBefore(ctx context.Context, buyerID string, before time.Time) (int64, error)
	HasDeliveredItem(ctx context.Context, buyerID, itemID string) (bool, error)
}

// CatalogRepository handles persistence for catalog items and their counters.
type CatalogRepository interface {
	Create(ctx context.Context, item *entity.CatalogItem) error
	FindByID(ctx context.Context, id string) (*entity.CatalogItem, error)
	FindByCustomID(ctx context.Context, customID string) (*entity.CatalogItem, error)
	List(ctx context.Context, filter entity.ItemFilter) ([]entity.CatalogItem, error)
	ListDiscountsExpiringBefore(ctx context.Context, now, until time.Time) ([]entity.CatalogItem, error)
	SetDiscount(ctx context.Context, id string, price int64, expires time.Time) error

	// AddRating adds score to the running sum and returns the new sum and count.
	AddRating(ctx context.Context, id string, score int) (sum, count int64, err error)
	// SetRating stores the average only if the rating count is still count.
	SetRating(ctx context.Context, id string, rating float64, count int64) error
}

// UserRepository handles persistence for users, address books and saved cards.
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByID(ctx context.Context, id string) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	SetOTP(ctx context.Context, id, cipher string, expires time.Time) error
	Activate(ctx context.Context, id string) error
	SetOnline(ctx context.Context, id string, online bool) error
	SetResetToken(ctx context.Context, id, hash string, expires time.Time) error
	ResetPassword(ctx context.Context, id, passwordHash string) error

	AddAddress(ctx context.Context, addr *entity.Address) error
	FindAddress(ctx context.Context, userID, addressID string) (*entity.Address, error)
	ListAddresses(ctx context.Context, userID string) ([]entity.Address, error)

	// AddSavedCard stores the card unless the authorization code is already saved.
	AddSavedCard(ctx context.Context, userID string, card entity.SavedCard) (bool, error)
	ListSavedCards(ctx context.Context, userID string) ([]entity.SavedCard, error)
}

// ReviewRepository handles persistence for reviews and per-user likes.
type ReviewRepository interface {
	Create(ctx context.Context, review *entity.Review) error
	FindByID(ctx context.Context, id string) (*entity.Review, error)
	TopByItem(ctx context.Context, itemID string, limit int) ([]entity.Review, error)
	// Like records the user's like and bumps the counter; false if already liked.
	Like(ctx context.Context, reviewID, userID string) (bool, error)
	// Unlike removes the user's like and drops the counter; false if not liked.
	Unlike(ctx context.Context, reviewID, userID string) (bool, error)
}

// CartRepository handles persistence for shopping carts. Lines are merged per
// variant (item, color, size); Remove drops every variant of the item.
type CartRepository interface {
	Add(ctx context.Context, userID string, line entity.CartLine) error
	Get(ctx context.Context, userID string) ([]entity.CartLine, error)
	Remove(ctx context.Context, userID, customID string) error
	Clear(ctx context.Context, userID string) error
}

// HistoryRepository is the append-only log of every order's events.
type HistoryRepository interface {
	// Append stores e as the next version of its order's stream.
	Append(ctx context.Context, e entity.OrderEvent) error
	ListByOrder(ctx context.Context, orderID string) ([]entity.HistoryEntry, error)
}
