package queue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/pizza-ops/internal/domain/order"
)

func testQueue(t *testing.T, cfg Config) *Queue {
	t.Helper()
	q := New(cfg, zap.NewNop())
	t.Cleanup(q.Stop)
	return q
}

func TestQueue_ProcessesJob(t *testing.T) {
	q := testQueue(t, Config{Workers: 2, Backoff: time.Millisecond})

	done := make(chan Job, 1)
	q.RegisterHandler(JobLoyaltyAccrual, func(_ context.Context, job Job) error {
		done <- job
		return nil
	})
	require.NoError(t, q.Start(context.Background()))

	err := q.Enqueue(context.Background(), Job{Type: JobLoyaltyAccrual, StoreID: "store-1"})
	require.NoError(t, err)

	select {
	case job := <-done:
		assert.NotEmpty(t, job.ID)
		assert.Equal(t, "store-1", job.StoreID)
		assert.False(t, job.EnqueuedAt.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("job was not processed")
	}

	require.Eventually(t, func() bool {
		return q.Stats("").Processed == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, q.Stats("store-1").Processed)
	assert.Equal(t, 0, q.Stats("store-2").Processed)
}

func TestQueue_RetriesUntilSuccess(t *testing.T) {
	q := testQueue(t, Config{Workers: 1, MaxAttempts: 5, Backoff: time.Millisecond})

	var calls atomic.Int32
	done := make(chan struct{})
	q.RegisterHandler(JobStatusEmail, func(_ context.Context, _ Job) error {
		if calls.Add(1) < 3 {
			return errors.New("smtp unavailable")
		}
		close(done)
		return nil
	})
	require.NoError(t, q.Start(context.Background()))

	require.NoError(t, q.Enqueue(context.Background(), Job{Type: JobStatusEmail}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never succeeded")
	}
	assert.EqualValues(t, 3, calls.Load())
	require.Eventually(t, func() bool {
		return q.Stats("").Processed == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, q.Stats("").Failed)
}

func TestQueue_DeadJobCanBeRetried(t *testing.T) {
	q := testQueue(t, Config{Workers: 1, MaxAttempts: 2, Backoff: time.Millisecond})

	var fail atomic.Bool
	fail.Store(true)
	done := make(chan struct{})
	q.RegisterHandler(JobConfirmationEmail, func(_ context.Context, _ Job) error {
		if fail.Load() {
			return errors.New("mailbox full")
		}
		close(done)
		return nil
	})
	require.NoError(t, q.Start(context.Background()))

	require.NoError(t, q.Enqueue(context.Background(), Job{
		ID:      "job-1",
		Type:    JobConfirmationEmail,
		StoreID: "store-1",
	}))

	require.Eventually(t, func() bool {
		return q.Stats("").Dead == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, q.Stats("store-1").Dead)
	assert.Equal(t, 1, q.Stats("").Failed)

	fail.Store(false)
	require.NoError(t, q.Retry("job-1"))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("retried job never ran")
	}
	require.Eventually(t, func() bool {
		return q.Stats("").Dead == 0
	}, 2*time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, q.Retry("job-1"), ErrUnknownJob)
}

func TestQueue_EnqueueValidation(t *testing.T) {
	q := testQueue(t, Config{Workers: 1})
	q.RegisterHandler(JobLoyaltyAccrual, func(context.Context, Job) error { return nil })

	err := q.Enqueue(context.Background(), Job{Type: JobType("mystery")})
	assert.ErrorIs(t, err, ErrNoHandler)
}

func TestQueue_FullQueue(t *testing.T) {
	// Workers never started, so the channel fills up.
	q := testQueue(t, Config{Workers: 1, Capacity: 2})
	q.RegisterHandler(JobLoyaltyAccrual, func(context.Context, Job) error { return nil })

	require.NoError(t, q.Enqueue(context.Background(), Job{Type: JobLoyaltyAccrual, StoreID: "store-1"}))
	require.NoError(t, q.Enqueue(context.Background(), Job{Type: JobLoyaltyAccrual, StoreID: "store-2"}))
	assert.ErrorIs(t, q.Enqueue(context.Background(), Job{Type: JobLoyaltyAccrual}), ErrQueueFull)

	// The backlog is attributable per store, not just globally.
	assert.Equal(t, 2, q.Stats("").Pending)
	assert.Equal(t, 1, q.Stats("store-1").Pending)
	assert.Equal(t, 1, q.Stats("store-2").Pending)
	assert.Equal(t, 0, q.Stats("store-3").Pending)
}

func TestQueue_PendingDrains(t *testing.T) {
	q := testQueue(t, Config{Workers: 1, Backoff: time.Millisecond})

	done := make(chan struct{}, 1)
	q.RegisterHandler(JobLoyaltyAccrual, func(context.Context, Job) error {
		done <- struct{}{}
		return nil
	})
	require.NoError(t, q.Start(context.Background()))
	require.NoError(t, q.Enqueue(context.Background(), Job{Type: JobLoyaltyAccrual, StoreID: "store-1"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not processed")
	}
	require.Eventually(t, func() bool {
		return q.Stats("store-1").Pending == 0 && q.Stats("").Pending == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestQueue_StartTwice(t *testing.T) {
	q := testQueue(t, Config{Workers: 1})
	require.NoError(t, q.Start(context.Background()))
	assert.ErrorIs(t, q.Start(context.Background()), ErrAlreadyStarted)
}

func TestDispatcher_BuildsTypedJobs(t *testing.T) {
	q := testQueue(t, Config{Workers: 1, Capacity: 8})
	for _, jt := range []JobType{JobLoyaltyAccrual, JobConfirmationEmail, JobStatusEmail} {
		q.RegisterHandler(jt, func(context.Context, Job) error { return nil })
	}
	d := NewDispatcher(q)

	o := &order.Order{ID: "o-1", StoreID: "store-1", Status: order.StatusPending}
	ctx := context.Background()

	require.NoError(t, d.EnqueueLoyaltyAccrual(ctx, o))
	require.NoError(t, d.EnqueueConfirmationEmail(ctx, o))
	require.NoError(t, d.EnqueueStatusEmail(ctx, o, order.StatusConfirmed))

	// Mutations after enqueue must not leak into the queued payloads.
	o.Status = order.StatusCancelled

	require.Len(t, q.jobs, 3)
	accrual := <-q.jobs
	assert.Equal(t, JobLoyaltyAccrual, accrual.Type)
	assert.Equal(t, "store-1", accrual.StoreID)
	queued, ok := accrual.Payload.(*order.Order)
	require.True(t, ok)
	assert.NotSame(t, o, queued)
	assert.Equal(t, order.StatusPending, queued.Status)

	confirm := <-q.jobs
	assert.Equal(t, JobConfirmationEmail, confirm.Type)
	assert.NotSame(t, o, confirm.Payload)

	status := <-q.jobs
	assert.Equal(t, JobStatusEmail, status.Type)
	payload, ok := status.Payload.(StatusEmailPayload)
	require.True(t, ok)
	assert.NotSame(t, o, payload.Order)
	assert.Equal(t, order.StatusPending, payload.Order.Status)
	assert.Equal(t, order.StatusConfirmed, payload.NewStatus)
}
