package client

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"admin-alerts/domain"
)

// Sender delivers a named event to the server without waiting for it.
type Sender interface {
	Send(name string, payload any) error
}

// Dispatcher turns a user's status change into one status_update_request.
// It never touches the order list: the view changes only when the server
// echoes order_status_updated.
type Dispatcher struct {
	sender Sender
	log    *log.Logger
}

func NewDispatcher(sender Sender, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Dispatcher{sender: sender, log: logger}
}

// RequestStatusChange sends the request and returns immediately. A send
// failure means the request is lost; it is not retried.
func (d *Dispatcher) RequestStatusChange(orderID int64, status domain.Status) error {
	if orderID <= 0 {
		return fmt.Errorf("invalid order id %d", orderID)
	}
	if !status.Valid() {
		return fmt.Errorf("unknown order status %q", status)
	}
	cmd := domain.StatusChangeCommand{OrderID: orderID, NewStatus: status}
	if err := d.sender.Send(domain.StatusUpdateRequest, cmd); err != nil {
		d.log.WithError(err).WithFields(log.Fields{"order_id": orderID, "status": status}).Warn("status change request lost")
		return err
	}
	d.log.WithFields(log.Fields{"order_id": orderID, "status": status}).Debug("status change requested")
	return nil
}
