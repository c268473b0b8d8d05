package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"admin-alerts/domain"
)

// OrdersPartition is the partition key of every order entity.
const OrdersPartition = "orders"

const maxConflictRetries = 5

// TableStore keeps orders in Azure Table storage, one entity per order.
type TableStore struct {
	table *aztables.Client
}

// NewTableStore connects to the given table using a storage connection string.
func NewTableStore(connStr, table string) (*TableStore, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute,
				RetryDelay:    time.Second,
				MaxRetryDelay: 15 * time.Second,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &TableStore{table: svc.NewClient(table)}, nil
}

type orderEntity struct {
	aztables.Entity
	CustomerName  string  `json:"CustomerName"`
	CustomerPhone *string `json:"CustomerPhone,omitempty"`
	TotalAmount   string  `json:"TotalAmount"`
	OrderDate     string  `json:"OrderDate"`
	Status        string  `json:"Status"`
}

type statusPatch struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
	Status       string `json:"Status"`
}

func rowKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

func toEntity(o domain.Order) orderEntity {
	return orderEntity{
		Entity:        aztables.Entity{PartitionKey: OrdersPartition, RowKey: rowKey(o.ID)},
		CustomerName:  o.CustomerName,
		CustomerPhone: o.CustomerPhone,
		TotalAmount:   o.TotalAmount.String(),
		OrderDate:     o.OrderDate.UTC().Format(time.RFC3339Nano),
		Status:        string(o.Status),
	}
}

func (e orderEntity) order() (domain.Order, error) {
	id, err := strconv.ParseInt(e.RowKey, 10, 64)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order row key %q: %w", e.RowKey, err)
	}
	total, err := decimal.NewFromString(e.TotalAmount)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order %d total: %w", id, err)
	}
	date, err := time.Parse(time.RFC3339Nano, e.OrderDate)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order %d date: %w", id, err)
	}
	status, err := domain.ParseStatus(e.Status)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order %d: %w", id, err)
	}
	return domain.Order{
		ID:            id,
		CustomerName:  e.CustomerName,
		CustomerPhone: e.CustomerPhone,
		TotalAmount:   total,
		OrderDate:     date,
		Status:        status,
	}, nil
}

func isStatus(err error, code int) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == code
}

// PutOrder creates or replaces an order entity.
func (s *TableStore) PutOrder(ctx context.Context, o domain.Order) error {
	payload, err := sonic.ConfigStd.Marshal(toEntity(o))
	if err != nil {
		return err
	}
	_, err = s.table.UpsertEntity(ctx, payload, nil)
	return err
}

func (s *TableStore) get(ctx context.Context, id int64) (domain.Order, azcore.ETag, error) {
	resp, err := s.table.GetEntity(ctx, OrdersPartition, rowKey(id), nil)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return domain.Order{}, "", ErrNotFound
		}
		return domain.Order{}, "", err
	}
	var ent orderEntity
	if err := sonic.ConfigStd.Unmarshal(resp.Value, &ent); err != nil {
		return domain.Order{}, "", err
	}
	o, err := ent.order()
	return o, resp.ETag, err
}

func (s *TableStore) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	o, _, err := s.get(ctx, id)
	return o, err
}

// UpdateStatus merges the new status guarded by the entity ETag, retrying on
// concurrent writes.
func (s *TableStore) UpdateStatus(ctx context.Context, id int64, status domain.Status) (domain.Order, bool, error) {
	for attempt := 0; ; attempt++ {
		o, etag, err := s.get(ctx, id)
		if err != nil {
			return domain.Order{}, false, err
		}
		if o.Status == status {
			return o, false, nil
		}
		payload, err := sonic.ConfigStd.Marshal(statusPatch{PartitionKey: OrdersPartition, RowKey: rowKey(id), Status: string(status)})
		if err != nil {
			return domain.Order{}, false, err
		}
		_, err = s.table.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &etag, UpdateMode: aztables.UpdateModeMerge})
		if err == nil {
			o.Status = status
			return o, true, nil
		}
		if !isStatus(err, http.StatusPreconditionFailed) || attempt >= maxConflictRetries {
			return domain.Order{}, false, err
		}
		log.WithFields(log.Fields{"order_id": id, "attempt": attempt + 1}).Warn("order changed concurrently, retrying status update")
	}
}
