// Package codec defines the wire format of the named events exchanged
// between the alert server and admin clients.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"

	"admin-alerts/domain"
)

var (
	// ErrMalformed is returned when a payload is not valid JSON or misses a
	// required field. Callers discard the event.
	ErrMalformed = errors.New("malformed event payload")
	// ErrUnknownEvent is returned for event names outside the contract.
	ErrUnknownEvent = errors.New("unknown event")
)

// naive ISO-8601 timestamps are produced by backends that store UTC without
// an offset; they are read as UTC.
var orderDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

type wireOrder struct {
	OrderID       *int64           `json:"order_id"`
	CustomerName  *string          `json:"customer_name"`
	CustomerPhone *string          `json:"customer_phone"`
	TotalAmount   *decimal.Decimal `json:"total_amount"`
	OrderDate     *string          `json:"order_date"`
	Status        *string          `json:"status"`
}

type wireStatus struct {
	OrderID   *int64  `json:"order_id"`
	NewStatus *string `json:"new_status"`
	UpdatedBy string  `json:"updated_by,omitempty"`
}

type outOrder struct {
	OrderID       int64       `json:"order_id"`
	CustomerName  string      `json:"customer_name"`
	CustomerPhone *string     `json:"customer_phone"`
	TotalAmount   json.Number `json:"total_amount"`
	OrderDate     string      `json:"order_date"`
	Status        string      `json:"status"`
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// Decode parses the payload of a named inbound or outbound event. The result
// is a domain.Order, domain.StatusUpdate or domain.StatusChangeCommand.
func Decode(name string, payload []byte) (any, error) {
	switch name {
	case domain.NewOrderAlert:
		return DecodeNewOrder(payload)
	case domain.OrderStatusUpdated:
		return DecodeStatusUpdate(payload)
	case domain.StatusUpdateRequest:
		return DecodeStatusChange(payload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
}

// DecodeNewOrder parses a new_order_alert payload.
func DecodeNewOrder(payload []byte) (domain.Order, error) {
	var w wireOrder
	if err := sonic.ConfigStd.Unmarshal(payload, &w); err != nil {
		return domain.Order{}, malformed("%v", err)
	}
	if w.OrderID == nil || *w.OrderID <= 0 {
		return domain.Order{}, malformed("order_id missing or invalid")
	}
	if w.CustomerName == nil {
		return domain.Order{}, malformed("customer_name missing")
	}
	if w.TotalAmount == nil {
		return domain.Order{}, malformed("total_amount missing")
	}
	if w.TotalAmount.IsNegative() {
		return domain.Order{}, malformed("total_amount is negative")
	}
	if w.OrderDate == nil {
		return domain.Order{}, malformed("order_date missing")
	}
	date, err := parseOrderDate(*w.OrderDate)
	if err != nil {
		return domain.Order{}, malformed("order_date: %v", err)
	}
	if w.Status == nil {
		return domain.Order{}, malformed("status missing")
	}
	status, err := domain.ParseStatus(*w.Status)
	if err != nil {
		return domain.Order{}, malformed("%v", err)
	}
	return domain.Order{
		ID:            *w.OrderID,
		CustomerName:  *w.CustomerName,
		CustomerPhone: w.CustomerPhone,
		TotalAmount:   *w.TotalAmount,
		OrderDate:     date,
		Status:        status,
	}, nil
}

// DecodeStatusUpdate parses an order_status_updated payload.
func DecodeStatusUpdate(payload []byte) (domain.StatusUpdate, error) {
	id, status, by, err := decodeStatus(payload)
	if err != nil {
		return domain.StatusUpdate{}, err
	}
	return domain.StatusUpdate{OrderID: id, NewStatus: status, UpdatedBy: by}, nil
}

// DecodeStatusChange parses a status_update_request payload.
func DecodeStatusChange(payload []byte) (domain.StatusChangeCommand, error) {
	id, status, _, err := decodeStatus(payload)
	if err != nil {
		return domain.StatusChangeCommand{}, err
	}
	return domain.StatusChangeCommand{OrderID: id, NewStatus: status}, nil
}

func decodeStatus(payload []byte) (int64, domain.Status, string, error) {
	var w wireStatus
	if err := sonic.ConfigStd.Unmarshal(payload, &w); err != nil {
		return 0, "", "", malformed("%v", err)
	}
	if w.OrderID == nil || *w.OrderID <= 0 {
		return 0, "", "", malformed("order_id missing or invalid")
	}
	if w.NewStatus == nil {
		return 0, "", "", malformed("new_status missing")
	}
	status, err := domain.ParseStatus(*w.NewStatus)
	if err != nil {
		return 0, "", "", malformed("%v", err)
	}
	return *w.OrderID, status, w.UpdatedBy, nil
}

// Encode marshals an event payload into its wire form.
func Encode(v any) ([]byte, error) {
	switch p := v.(type) {
	case domain.Order:
		return sonic.ConfigStd.Marshal(outOrder{
			OrderID:       p.ID,
			CustomerName:  p.CustomerName,
			CustomerPhone: p.CustomerPhone,
			TotalAmount:   json.Number(p.TotalAmount.String()),
			OrderDate:     p.OrderDate.UTC().Format(time.RFC3339Nano),
			Status:        string(p.Status),
		})
	case *domain.Order:
		return Encode(*p)
	default:
		return sonic.ConfigStd.Marshal(v)
	}
}

// EncodeEnvelope wraps an encoded payload in a named-event envelope.
func EncodeEnvelope(name string, payload any) ([]byte, error) {
	data, err := Encode(payload)
	if err != nil {
		return nil, err
	}
	return sonic.ConfigStd.Marshal(domain.Envelope{Event: name, Data: data})
}

func parseOrderDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	var lastErr error
	for _, layout := range orderDateLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
