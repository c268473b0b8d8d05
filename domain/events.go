package domain

import "encoding/json"

const (
	// NewOrderAlert carries a full order snapshot, once per created order.
	NewOrderAlert = "new_order_alert"
	// OrderStatusUpdated is emitted once per status transition accepted by the server.
	OrderStatusUpdated = "order_status_updated"
	// StatusUpdateRequest is sent by clients asking the server to change a status.
	StatusUpdateRequest = "status_update_request"
)

// StatusUpdate is the payload of order_status_updated.
type StatusUpdate struct {
	OrderID   int64  `json:"order_id"`
	NewStatus Status `json:"new_status"`
	UpdatedBy string `json:"updated_by,omitempty"`
}

// StatusChangeCommand is the payload of status_update_request. It is
// fire-and-forget: nothing tracks whether the server accepted it.
type StatusChangeCommand struct {
	OrderID   int64  `json:"order_id"`
	NewStatus Status `json:"new_status"`
}

// Envelope wraps a named event posted by a client.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}
