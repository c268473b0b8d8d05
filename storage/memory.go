package storage

import (
	"context"
	"sync"

	"admin-alerts/domain"
)

// MemoryStore keeps orders in process memory. It backs local runs without
// a database and the service tests.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[int64]domain.Order
}

func NewMemoryStore(orders ...domain.Order) *MemoryStore {
	m := &MemoryStore{orders: make(map[int64]domain.Order, len(orders))}
	for _, o := range orders {
		m.orders[o.ID] = o
	}
	return m
}

func (m *MemoryStore) PutOrder(_ context.Context, o domain.Order) error {
	m.mu.Lock()
	m.orders[o.ID] = o
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) GetOrder(_ context.Context, id int64) (domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.Order{}, ErrNotFound
	}
	return o, nil
}

func (m *MemoryStore) UpdateStatus(_ context.Context, id int64, status domain.Status) (domain.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.Order{}, false, ErrNotFound
	}
	if o.Status == status {
		return o, false, nil
	}
	o.Status = status
	m.orders[id] = o
	return o, true, nil
}
