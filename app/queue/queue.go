// Package queue carries per-contact send tasks from the dispatcher to the send workers
package queue

import (
	"context"
	"errors"
)

// ErrQueueClosed is returned by Enqueue after Close
var ErrQueueClosed = errors.New("queue closed")

// SendTask asks a worker to deliver one campaign message to one contact
type SendTask struct {
	CampaignID uint `json:"campaign_id"`
	ContactID  uint `json:"contact_id"`
	Attempt    int  `json:"attempt"`
}

// Delivery is a task handed to a consumer. Ack or Nack must be called once.
type Delivery struct {
	Task SendTask

	ack  func() error
	nack func(requeue bool) error
}

// Ack confirms the task was handled
func (d Delivery) Ack() error {
	if d.ack == nil {
		return nil
	}
	return d.ack()
}

// Nack rejects the task, optionally asking the broker to redeliver it
func (d Delivery) Nack(requeue bool) error {
	if d.nack == nil {
		return nil
	}
	return d.nack(requeue)
}

// Queue is a FIFO of send tasks. Enqueue may block when the queue applies backpressure.
type Queue interface {
	Enqueue(ctx context.Context, task SendTask) error
	// Deliveries streams tasks until ctx is done or the queue is closed
	Deliveries(ctx context.Context) (<-chan Delivery, error)
	// Durable reports whether enqueued tasks survive a process restart
	Durable() bool
	Close() error
}
