// Package storage persists order snapshots.
package storage

import (
	"context"
	"errors"

	"admin-alerts/domain"
)

// ErrNotFound is returned when an order does not exist.
var ErrNotFound = errors.New("order not found")

// OrderStore is the persistence contract used by the order service.
type OrderStore interface {
	GetOrder(ctx context.Context, id int64) (domain.Order, error)
	// UpdateStatus sets the order status and returns the resulting snapshot.
	// changed is false when the order already had that status.
	UpdateStatus(ctx context.Context, id int64, status domain.Status) (order domain.Order, changed bool, err error)
}
