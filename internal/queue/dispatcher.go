package queue

import (
	"context"

	"github.com/xenking/pizza-ops/internal/domain/order"
)

// StatusEmailPayload is the payload of a status-email job: the order plus
// the status the customer is being told about.
type StatusEmailPayload struct {
	Order     *order.Order
	NewStatus order.Status
}

// Dispatcher turns the order service's deferred side effects into typed
// queue jobs. Every job carries its own copy of the order: the caller
// keeps mutating the live one (and encodes it into the HTTP response)
// while the worker runs.
type Dispatcher struct {
	q *Queue
}

// NewDispatcher wraps a queue.
func NewDispatcher(q *Queue) *Dispatcher {
	return &Dispatcher{q: q}
}

// EnqueueLoyaltyAccrual schedules a points accrual for the order.
func (d *Dispatcher) EnqueueLoyaltyAccrual(ctx context.Context, o *order.Order) error {
	snapshot := *o
	return d.q.Enqueue(ctx, Job{
		Type:    JobLoyaltyAccrual,
		StoreID: o.StoreID,
		Payload: &snapshot,
	})
}

// EnqueueConfirmationEmail schedules the order confirmation email.
func (d *Dispatcher) EnqueueConfirmationEmail(ctx context.Context, o *order.Order) error {
	snapshot := *o
	return d.q.Enqueue(ctx, Job{
		Type:    JobConfirmationEmail,
		StoreID: o.StoreID,
		Payload: &snapshot,
	})
}

// EnqueueStatusEmail schedules a status change notification email.
func (d *Dispatcher) EnqueueStatusEmail(ctx context.Context, o *order.Order, newStatus order.Status) error {
	snapshot := *o
	return d.q.Enqueue(ctx, Job{
		Type:    JobStatusEmail,
		StoreID: o.StoreID,
		Payload: StatusEmailPayload{Order: &snapshot, NewStatus: newStatus},
	})
}
