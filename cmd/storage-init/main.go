package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"admin-alerts/domain"
	"admin-alerts/ingest"
	"admin-alerts/storage"
)

func main() {
	seed := flag.Int("seed", 0, "number of demo orders to create")
	announce := flag.Bool("announce", false, "enqueue a new-order message for every seeded order")
	flag.Parse()

	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("storage init starting")

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	if connStr == "" {
		log.Fatal("missing STORAGE_CONNECTION_STRING")
	}
	table := getenv("ORDERS_TABLE", "Orders")
	queue := getenv("ORDERS_QUEUE", "new-orders")

	ctx := context.Background()
	if err := createTables(ctx, connStr, []string{table}); err != nil {
		log.Fatalf("create tables: %v", err)
	}
	if err := createQueues(ctx, connStr, []string{queue}); err != nil {
		log.Fatalf("create queues: %v", err)
	}

	if *seed > 0 {
		if err := seedOrders(ctx, connStr, table, queue, *seed, *announce); err != nil {
			log.Fatalf("seed orders: %v", err)
		}
	}
	log.Info("storage init complete")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func createTables(ctx context.Context, connStr string, names []string) error {
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, nil)
	if err != nil {
		return err
	}
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, err := svc.NewClient(name).CreateTable(ctx, nil); err != nil {
			var respErr *azcore.ResponseError
			if !(errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists)) {
				return err
			}
		}
		log.WithField("table", name).Debug("table ready")
	}
	return nil
}

func createQueues(ctx context.Context, connStr string, names []string) error {
	for _, name := range names {
		if name == "" {
			continue
		}
		q, err := azqueue.NewQueueClientFromConnectionString(connStr, name, nil)
		if err != nil {
			return err
		}
		if _, err := q.Create(ctx, nil); err != nil {
			var respErr *azcore.ResponseError
			if !(errors.As(err, &respErr) && respErr.ErrorCode == "QueueAlreadyExists") {
				return err
			}
		}
		log.WithField("queue", name).Debug("queue ready")
	}
	return nil
}

func demoOrders(n int, now time.Time) []domain.Order {
	names := []string{"Ana", "Bruno", "Carla", "Diego", "Elisa"}
	out := make([]domain.Order, 0, n)
	for i := 1; i <= n; i++ {
		o := domain.Order{
			ID:           int64(i),
			CustomerName: names[(i-1)%len(names)],
			TotalAmount:  decimal.New(int64(950+i*125), -2),
			OrderDate:    now.Add(-time.Duration(n-i) * time.Minute).UTC(),
			Status:       domain.StatusPending,
		}
		if i%2 == 0 {
			phone := fmt.Sprintf("555-01%02d", i%100)
			o.CustomerPhone = &phone
		}
		out = append(out, o)
	}
	return out
}

func seedOrders(ctx context.Context, connStr, table, queueName string, n int, announce bool) error {
	store, err := storage.NewTableStore(connStr, table)
	if err != nil {
		return err
	}
	var queue *ingest.AzureQueue
	if announce {
		if queue, err = ingest.NewAzureQueue(connStr, queueName, 0); err != nil {
			return err
		}
	}
	for _, o := range demoOrders(n, time.Now()) {
		if err := store.PutOrder(ctx, o); err != nil {
			return fmt.Errorf("order %d: %w", o.ID, err)
		}
		if queue != nil {
			if err := queue.Enqueue(ctx, fmt.Sprintf(`{"order_id":%d}`, o.ID)); err != nil {
				return fmt.Errorf("announce order %d: %w", o.ID, err)
			}
		}
		log.WithField("order_id", o.ID).Debug("order seeded")
	}
	log.WithField("count", n).Info("demo orders seeded")
	return nil
}
