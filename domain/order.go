package domain

import (
	"fmt"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an order. Transitions are decided by the
// server only.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusPending, StatusConfirmed, StatusDelivered, StatusCancelled}

// ParseStatus validates a raw status value.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown order status %q", raw)
	}
	return s, nil
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Label is the display text of the status, e.g. "Confirmed".
func (s Status) Label() string { return Capitalize(string(s)) }

// Order mirrors the server-side order snapshot.
type Order struct {
	ID            int64           `json:"order_id"`
	CustomerName  string          `json:"customer_name"`
	CustomerPhone *string         `json:"customer_phone,omitempty"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	OrderDate     time.Time       `json:"order_date"`
	Status        Status          `json:"status"`
}

// Phone returns the customer phone or "N/A" when absent.
func (o Order) Phone() string {
	if o.CustomerPhone == nil || *o.CustomerPhone == "" {
		return "N/A"
	}
	return *o.CustomerPhone
}

// Capitalize upper-cases the first letter of s and leaves the rest untouched.
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// FormatTotal renders an amount as dollars with two decimals, e.g. "$19.50".
func FormatTotal(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}
