package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/egannguyen/cart-ecommerce/internal/entity"
	"github.com/egannguyen/cart-ecommerce/internal/messaging"
	"github.com/egannguyen/cart-ecommerce/internal/notify"
	"github.com/egannguyen/cart-ecommerce/internal/repository"
	"go.uber.org/zap"
)

// Deps are the collaborators shared by the order services.
type Deps struct {
	Orders  repository.OrderRepository
	Catalog repository.CatalogRepository
	Users   repository.UserRepository
	Reviews repository.ReviewRepository
	Carts   repository.CartRepository
	// History, when set, keeps every emitted event per order.
	History   repository.HistoryRepository
	Notifier  notify.Notifier
	Publisher messaging.Publisher
	// EventsTopic receives an entity.OrderEvent after every effective transition.
	EventsTopic string
	Logger      *zap.SugaredLogger
}

func (d Deps) validate() error {
	switch {
	case d.Orders == nil:
		return errors.New("order repository is required")
	case d.Catalog == nil:
		return errors.New("catalog repository is required")
	case d.Users == nil:
		return errors.New("user repository is required")
	case d.Logger == nil:
		return errors.New("logger is required")
	}
	return nil
}

func (d Deps) publisher() messaging.Publisher {
	if d.Publisher == nil {
		return messaging.NopPublisher{}
	}
	return d.Publisher
}

// emit records and publishes an order event. Failures are logged; the transition already committed.
func (d Deps) emit(ctx context.Context, eventType string, o *entity.Order, at time.Time) {
	event := entity.NewOrderEvent(eventType, o, at)
	if d.History != nil {
		if err := d.History.Append(ctx, event); err != nil {
			d.Logger.Errorw("Failed to record order history", "type", eventType, "order_id", o.ID, "err", err)
		}
	}
	if err := d.publisher().PublishEvent(ctx, d.EventsTopic, o.ID, event); err != nil {
		d.Logger.Errorw("Failed to publish order event", "type", eventType, "order_id", o.ID, "err", err)
	}
}

// notifyUser sends a templated email to userID, filling in name and email.
func (d Deps) notifyUser(ctx context.Context, userID string, tmpl notify.Template, data map[string]any) {
	if d.Notifier == nil {
		return
	}
	user, err := d.Users.FindByID(ctx, userID)
	if err != nil {
		d.Logger.Errorw("Failed to load notification recipient", "user_id", userID, "template", tmpl, "err", err)
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	data["name"] = user.Fullname
	notify.Dispatch(ctx, d.Notifier, d.Logger, notify.Message{To: user.Email, Template: tmpl, Data: data})
}

func (d Deps) findOrder(ctx context.Context, id string) (*entity.Order, error) {
	order, err := d.Orders.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, entity.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", id, err)
	}
	return order, nil
}

// ownedOrder loads an order the caller is the buyer of.
func (d Deps) ownedOrder(ctx context.Context, caller entity.Identity, id string) (*entity.Order, error) {
	order, err := d.findOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.OwnedBy(caller.UserID) {
		return nil, entity.ErrOrderNotOwned
	}
	return order, nil
}

func (d Deps) findItem(ctx context.Context, customID string) (*entity.CatalogItem, error) {
	item, err := d.Catalog.FindByCustomID(ctx, customID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, entity.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load item %s: %w", customID, err)
	}
	return item, nil
}

func requireAdmin(caller entity.Identity) error {
	if !caller.IsAdmin() {
		return entity.ErrForbidden
	}
	return nil
}
