package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/egannguyen/cart-ecommerce/internal/entity"
	"github.com/egannguyen/cart-ecommerce/internal/repository"
)

type historyRepository struct {
	mu      sync.Mutex
	streams map[string][]entity.HistoryEntry
}

// NewHistoryRepository creates a HistoryRepository held in process memory.
func NewHistoryRepository() repository.HistoryRepository {
	return newHistoryRepository()
}

func newHistoryRepository() *historyRepository {
	return &historyRepository{streams: make(map[string][]entity.HistoryEntry)}
}

// drop removes an order's stream along with the order itself.
func (r *historyRepository) drop(orderID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.streams, orderID)
}

func (r *historyRepository) Append(_ context.Context, e entity.OrderEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", e.Type, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stream := r.streams[e.OrderID]
	r.streams[e.OrderID] = append(stream, entity.HistoryEntry{
		ID:        uuid.NewString(),
		OrderID:   e.OrderID,
		Version:   len(stream) + 1,
		EventType: e.Type,
		Payload:   payload,
		CreatedAt: e.At,
	})
	return nil
}

func (r *historyRepository) ListByOrder(_ context.Context, orderID string) ([]entity.HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.HistoryEntry(nil), r.streams[orderID]...), nil
}
