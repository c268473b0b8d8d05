package client

import "admin-alerts/domain"

// OrderList is the client-side view of orders, newest alert first and keyed
// by order ID. Entries are never removed or reordered once inserted. It is
// owned by the console loop and is not safe for concurrent use.
type OrderList struct {
	byID map[int64]*domain.Order
	// arrival order, oldest first
	seq []int64
}

func NewOrderList() *OrderList {
	return &OrderList{byID: make(map[int64]*domain.Order)}
}

// ApplyNewOrder inserts the snapshot at the front of the list. A snapshot
// for an ID already present replaces that entry in place, so replays never
// create a second row. It reports whether a new entry was inserted.
func (l *OrderList) ApplyNewOrder(o domain.Order) bool {
	if cur, ok := l.byID[o.ID]; ok {
		*cur = o
		return false
	}
	cpy := o
	l.byID[o.ID] = &cpy
	l.seq = append(l.seq, o.ID)
	return true
}

// ApplyStatusUpdate sets the status of a known order. Updates for orders
// this client never saw are dropped; it reports whether one was applied.
func (l *OrderList) ApplyStatusUpdate(u domain.StatusUpdate) bool {
	cur, ok := l.byID[u.OrderID]
	if !ok {
		return false
	}
	cur.Status = u.NewStatus
	return true
}

func (l *OrderList) Get(id int64) (domain.Order, bool) {
	o, ok := l.byID[id]
	if !ok {
		return domain.Order{}, false
	}
	return *o, true
}

func (l *OrderList) Len() int { return len(l.seq) }

// Snapshot returns a copy of the list, newest first.
func (l *OrderList) Snapshot() []domain.Order {
	out := make([]domain.Order, 0, len(l.seq))
	for i := len(l.seq) - 1; i >= 0; i-- {
		out = append(out, *l.byID[l.seq[i]])
	}
	return out
}
