package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/egannguyen/cart-ecommerce/internal/entity"
	"github.com/egannguyen/cart-ecommerce/internal/repository"
)

type orderRepository struct {
	mu      sync.Mutex
	orders  map[string]*entity.Order
	catalog *catalogRepository
	history *historyRepository
	now     func() time.Time
}

func newOrderRepository(catalog *catalogRepository, history *historyRepository) *orderRepository {
	return &orderRepository{orders: make(map[string]*entity.Order), catalog: catalog, history: history, now: time.Now}
}

func cloneOrder(o *entity.Order) *entity.Order {
	c := *o
	c.Items = append([]entity.LineItem(nil), o.Items...)
	if o.DeliveryAddress != nil {
		addr := *o.DeliveryAddress
		c.DeliveryAddress = &addr
	}
	return &c
}

func (r *orderRepository) Create(_ context.Context, order *entity.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.orders[order.ID]; exists {
		return repository.ErrConflict
	}
	r.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *orderRepository) FindByID(_ context.Context, id string) (*entity.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (r *orderRepository) findByReference(reference string) *entity.Order {
	if reference == "" {
		return nil
	}
	for _, o := range r.orders {
		if o.PaymentReference == reference {
			return o
		}
	}
	return nil
}

func (r *orderRepository) FindByReference(_ context.Context, reference string) (*entity.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.findByReference(reference)
	if o == nil {
		return nil, repository.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (r *orderRepository) sorted(match func(*entity.Order) bool) []entity.Order {
	var out []entity.Order
	for _, o := range r.orders {
		if match(o) {
			out = append(out, *cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *orderRepository) ListByBuyer(_ context.Context, buyerID string) ([]entity.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(o *entity.Order) bool { return o.BuyerID == buyerID }), nil
}

func (r *orderRepository) List(_ context.Context, filter entity.OrderFilter) ([]entity.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.sorted(func(o *entity.Order) bool {
		return (filter.PaymentStatus == "" || o.PaymentStatus == filter.PaymentStatus) &&
			(filter.DeliveryStatus == "" || o.DeliveryStatus == filter.DeliveryStatus)
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

func (r *orderRepository) AttachAddress(_ context.Context, id string, addr entity.ShippingAddress, fee, total int64) (*entity.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if o.DeliveryAddress != nil || o.PaymentReference != "" {
		return nil, repository.ErrConflict
	}
	o.DeliveryAddress = &addr
	o.DeliveryFee = fee
	o.TotalAmount = total
	o.UpdatedAt = r.now()
	return cloneOrder(o), nil
}

func (r *orderRepository) AttachReference(_ context.Context, id, reference, paymentURL string) (*entity.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if o.PaymentReference != "" || r.findByReference(reference) != nil {
		return nil, repository.ErrConflict
	}
	o.PaymentReference = reference
	o.PaymentURL = paymentURL
	o.UpdatedAt = r.now()
	return cloneOrder(o), nil
}

func (r *orderRepository) TransitionPayment(_ context.Context, reference string, t entity.PaymentTransition) (*entity.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.findByReference(reference)
	if o == nil {
		return nil, repository.ErrNotFound
	}
	if !t.Allows(o) {
		return nil, repository.ErrConflict
	}
	o.PaymentStatus = t.To
	o.UpdatedAt = r.now()
	return cloneOrder(o), nil
}

func (r *orderRepository) TransitionDelivery(_ context.Context, id string, t entity.DeliveryTransition) (*entity.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !t.Allows(o) {
		return nil, repository.ErrConflict
	}
	o.DeliveryStatus = t.To
	o.UpdatedAt = r.now()
	return cloneOrder(o), nil
}

func (r *orderRepository) Settle(_ context.Context, id string) (*entity.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if o.Settled || o.PaymentStatus != entity.PaymentPaid {
		return nil, repository.ErrConflict
	}
	if err := r.catalog.incrementSales(o.Items); err != nil {
		return nil, err
	}
	o.Settled = true
	o.UpdatedAt = r.now()
	return cloneOrder(o), nil
}

func (r *orderRepository) DeleteCancelledBefore(_ context.Context, buyerID string, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, o := range r.orders {
		if o.BuyerID == buyerID && o.DeliveryStatus == entity.DeliveryCancelled && o.CreatedAt.Before(before) {
			delete(r.orders, id)
			if r.history != nil {
				r.history.drop(id)
			}
			n++
		}
	}
	return n, nil
}

func (r *orderRepository) HasDeliveredItem(_ context.Context, buyerID, itemID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.BuyerID == buyerID && o.DeliveryStatus == entity.DeliveryDelivered && o.ContainsItem(itemID) {
			return true, nil
		}
	}
	return false, nil
}
