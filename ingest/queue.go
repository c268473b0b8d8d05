// Package ingest announces new orders received through a storage queue.
package ingest

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
)

// Message is one dequeued queue message.
type Message struct {
	ID           string
	PopReceipt   string
	Text         string
	DequeueCount int64
}

// Queue is the subset of queue operations the consumer needs.
type Queue interface {
	Dequeue(ctx context.Context) (*Message, error)
	Delete(ctx context.Context, id, popReceipt string) error
}

// AzureQueue reads from an Azure Storage queue.
type AzureQueue struct {
	client     *azqueue.QueueClient
	visibility time.Duration
}

// NewAzureQueue connects to a queue. visibility is how long a dequeued
// message stays hidden before it is redelivered.
func NewAzureQueue(connStr, queue string, visibility time.Duration) (*AzureQueue, error) {
	opts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute,
				RetryDelay:    time.Second,
				MaxRetryDelay: time.Minute,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	client, err := azqueue.NewQueueClientFromConnectionString(connStr, queue, &opts)
	if err != nil {
		return nil, err
	}
	return &AzureQueue{client: client, visibility: visibility}, nil
}

// Enqueue adds a message; used by the backend side and local tooling.
func (q *AzureQueue) Enqueue(ctx context.Context, text string) error {
	_, err := q.client.EnqueueMessage(ctx, text, nil)
	return err
}

// Dequeue returns nil when the queue is empty.
func (q *AzureQueue) Dequeue(ctx context.Context) (*Message, error) {
	var opts *azqueue.DequeueMessageOptions
	if q.visibility > 0 {
		opts = &azqueue.DequeueMessageOptions{VisibilityTimeout: to.Ptr(int32(q.visibility / time.Second))}
	}
	resp, err := q.client.DequeueMessage(ctx, opts)
	if err != nil {
		return nil, err
	}
	if len(resp.Messages) == 0 {
		return nil, nil
	}
	m := resp.Messages[0]
	msg := &Message{}
	if m.MessageID != nil {
		msg.ID = *m.MessageID
	}
	if m.PopReceipt != nil {
		msg.PopReceipt = *m.PopReceipt
	}
	if m.MessageText != nil {
		msg.Text = *m.MessageText
	}
	if m.DequeueCount != nil {
		msg.DequeueCount = *m.DequeueCount
	}
	return msg, nil
}

func (q *AzureQueue) Delete(ctx context.Context, id, popReceipt string) error {
	_, err := q.client.DeleteMessage(ctx, id, popReceipt, nil)
	return err
}
