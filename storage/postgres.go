package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"admin-alerts/domain"
)

const selectOrderSQL = `SELECT id, customer_name, customer_phone, total_amount, order_date, status
FROM orders WHERE id = $1`

const lockOrderSQL = selectOrderSQL + ` FOR UPDATE`

const updateStatusSQL = `UPDATE orders SET status = $2 WHERE id = $1`

// PostgresStore reads orders from the orders table of the backend database.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres opens a lib/pq connection pool for the given DSN.
func OpenPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return NewPostgresStore(db), nil
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		o      domain.Order
		phone  sql.NullString
		total  decimal.Decimal
		status string
	)
	if err := row.Scan(&o.ID, &o.CustomerName, &phone, &total, &o.OrderDate, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, ErrNotFound
		}
		return domain.Order{}, err
	}
	if phone.Valid {
		o.CustomerPhone = &phone.String
	}
	o.TotalAmount = total
	o.OrderDate = o.OrderDate.UTC()
	st, err := domain.ParseStatus(status)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order %d: %w", o.ID, err)
	}
	o.Status = st
	return o, nil
}

func (s *PostgresStore) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	return scanOrder(s.db.QueryRowContext(ctx, selectOrderSQL, id))
}

// UpdateStatus locks the row for the duration of the change.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id int64, status domain.Status) (domain.Order, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, false, err
	}
	defer func() { _ = tx.Rollback() }()

	o, err := scanOrder(tx.QueryRowContext(ctx, lockOrderSQL, id))
	if err != nil {
		return domain.Order{}, false, err
	}
	if o.Status == status {
		return o, false, nil
	}
	if _, err := tx.ExecContext(ctx, updateStatusSQL, id, string(status)); err != nil {
		return domain.Order{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Order{}, false, err
	}
	o.Status = status
	return o, true, nil
}
