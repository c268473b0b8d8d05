// Package orders applies order changes and announces them to admin clients.
package orders

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"admin-alerts/domain"
	"admin-alerts/storage"
)

// ErrInvalidRequest is returned for requests that fail validation.
var ErrInvalidRequest = errors.New("invalid request")

// Publisher fans a named event out to every connected admin client.
type Publisher interface {
	Publish(ctx context.Context, name string, payload any) error
}

type Service struct {
	store storage.OrderStore
	pub   Publisher
}

func NewService(store storage.OrderStore, pub Publisher) *Service {
	return &Service{store: store, pub: pub}
}

// AnnounceNewOrder loads the order snapshot and publishes new_order_alert.
// It is called once per order creation by the backend.
func (s *Service) AnnounceNewOrder(ctx context.Context, id int64) (domain.Order, error) {
	if id <= 0 {
		return domain.Order{}, fmt.Errorf("%w: order id %d", ErrInvalidRequest, id)
	}
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if err := s.pub.Publish(ctx, domain.NewOrderAlert, o); err != nil {
		return domain.Order{}, fmt.Errorf("announce order %d: %w", id, err)
	}
	log.WithFields(log.Fields{"order_id": id, "customer": o.CustomerName}).Info("new order announced")
	return o, nil
}

// ChangeStatus persists a requested status and publishes order_status_updated
// when the status actually changed. actor is reported as updated_by.
func (s *Service) ChangeStatus(ctx context.Context, cmd domain.StatusChangeCommand, actor string) (bool, error) {
	if cmd.OrderID <= 0 {
		return false, fmt.Errorf("%w: order id %d", ErrInvalidRequest, cmd.OrderID)
	}
	if !cmd.NewStatus.Valid() {
		return false, fmt.Errorf("%w: status %q", ErrInvalidRequest, cmd.NewStatus)
	}
	o, changed, err := s.store.UpdateStatus(ctx, cmd.OrderID, cmd.NewStatus)
	if err != nil {
		return false, err
	}
	fields := log.Fields{"order_id": o.ID, "status": o.Status, "actor": actor}
	if !changed {
		log.WithFields(fields).Debug("status unchanged, nothing to announce")
		return false, nil
	}
	upd := domain.StatusUpdate{OrderID: o.ID, NewStatus: o.Status, UpdatedBy: actor}
	if err := s.pub.Publish(ctx, domain.OrderStatusUpdated, upd); err != nil {
		// The change is stored; clients will miss this transition.
		log.WithError(err).WithFields(fields).Error("status change stored but not announced")
		return true, fmt.Errorf("announce status of order %d: %w", o.ID, err)
	}
	log.WithFields(fields).Info("order status updated")
	return true, nil
}
