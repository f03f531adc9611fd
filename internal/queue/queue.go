// Package queue is the in-process async work queue that decouples
// loyalty accrual and customer email from the synchronous order path.
// Jobs are retried with backoff; jobs that exhaust their attempts are
// parked and can be retried manually.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// JobType identifies the handler responsible for a job.
type JobType string

const (
	JobLoyaltyAccrual    JobType = "loyalty-accrual"
	JobConfirmationEmail JobType = "confirmation-email"
	JobStatusEmail       JobType = "status-email"
)

// Sentinel errors for queue operations.
var (
	ErrQueueFull      = errors.New("queue full")
	ErrNoHandler      = errors.New("no handler registered for job type")
	ErrUnknownJob     = errors.New("unknown job id")
	ErrAlreadyStarted = errors.New("queue already started")
)

// Job is one unit of deferred work. Payload carries whatever the handler
// needs; for this core that is always the order snapshot at enqueue time.
type Job struct {
	ID         string
	Type       JobType
	StoreID    string
	Payload    any
	Attempts   int
	LastError  string
	EnqueuedAt time.Time
}

// Handler processes one job. A non-nil error schedules a retry until the
// attempt budget runs out.
type Handler func(ctx context.Context, job Job) error

// Config tunes the worker pool.
type Config struct {
	Workers     int
	Capacity    int
	MaxAttempts int
	Backoff     time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers < 1 {
		c.Workers = 4
	}
	if c.Capacity < 1 {
		c.Capacity = 256
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 3
	}
	if c.Backoff <= 0 {
		c.Backoff = 500 * time.Millisecond
	}
	return c
}

// Stats is a point-in-time view of queue health, optionally filtered to
// one store.
type Stats struct {
	Pending   int
	Processed int
	Failed    int
	Dead      int
}

// Queue runs registered handlers over enqueued jobs on a fixed worker
// pool.
type Queue struct {
	cfg Config
	lg  *zap.Logger

	handlers map[JobType]Handler
	jobs     chan Job

	g      *errgroup.Group
	cancel context.CancelFunc

	mu        sync.Mutex
	started   bool
	pending   map[string]int // by store id; "" key holds the global count
	processed map[string]int
	failed    map[string]int
	dead      map[string]Job
}

// New creates a stopped queue; call Start to launch the workers.
func New(cfg Config, lg *zap.Logger) *Queue {
	cfg = cfg.withDefaults()
	return &Queue{
		cfg:       cfg,
		lg:        lg,
		handlers:  make(map[JobType]Handler),
		jobs:      make(chan Job, cfg.Capacity),
		pending:   make(map[string]int),
		processed: make(map[string]int),
		failed:    make(map[string]int),
		dead:      make(map[string]Job),
	}
}

// RegisterHandler binds a handler to a job type. Must be called before
// Start.
func (q *Queue) RegisterHandler(t JobType, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[t] = h
}

// Start launches the worker pool. Workers run until ctx is cancelled or
// Stop is called.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return ErrAlreadyStarted
	}
	q.started = true

	ctx, q.cancel = context.WithCancel(ctx)
	q.g, ctx = errgroup.WithContext(ctx)
	for i := 0; i < q.cfg.Workers; i++ {
		q.g.Go(func() error {
			q.worker(ctx)
			return nil
		})
	}
	return nil
}

// Stop cancels the workers and waits for them to drain their current job.
func (q *Queue) Stop() {
	q.mu.Lock()
	cancel, g := q.cancel, q.g
	q.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	_ = g.Wait()
}

// Enqueue adds a job without blocking. A full queue is reported to the
// caller, who treats it as any other downstream failure: log and move on.
func (q *Queue) Enqueue(_ context.Context, job Job) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	q.mu.Lock()
	_, ok := q.handlers[job.Type]
	q.mu.Unlock()
	if !ok {
		return errors.Wrapf(ErrNoHandler, "%s", job.Type)
	}

	select {
	case q.jobs <- job:
		q.addPending(job.StoreID, 1)
		return nil
	default:
		return ErrQueueFull
	}
}

// addPending adjusts the backlog counters; the channel itself cannot be
// counted per store.
func (q *Queue) addPending(storeID string, delta int) {
	q.mu.Lock()
	q.pending[""] += delta
	if storeID != "" {
		q.pending[storeID] += delta
	}
	q.mu.Unlock()
}

// Stats reports counters, filtered to storeID when non-empty.
func (q *Queue) Stats(storeID string) Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := Stats{
		Pending:   q.pending[storeID],
		Processed: q.processed[storeID],
		Failed:    q.failed[storeID],
	}
	if storeID == "" {
		s.Dead = len(q.dead)
		return s
	}
	for _, job := range q.dead {
		if job.StoreID == storeID {
			s.Dead++
		}
	}
	return s
}

// Retry re-enqueues a dead job with a fresh attempt budget.
func (q *Queue) Retry(jobID string) error {
	q.mu.Lock()
	job, ok := q.dead[jobID]
	if ok {
		delete(q.dead, jobID)
	}
	q.mu.Unlock()
	if !ok {
		return ErrUnknownJob
	}

	job.Attempts = 0
	job.LastError = ""
	select {
	case q.jobs <- job:
		q.addPending(job.StoreID, 1)
		return nil
	default:
		q.mu.Lock()
		q.dead[jobID] = job
		q.mu.Unlock()
		return ErrQueueFull
	}
}

func (q *Queue) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.jobs:
			q.addPending(job.StoreID, -1)
			q.process(ctx, job)
		}
	}
}

func (q *Queue) process(ctx context.Context, job Job) {
	q.mu.Lock()
	handler := q.handlers[job.Type]
	q.mu.Unlock()

	err := handler(ctx, job)
	if err == nil {
		q.mu.Lock()
		q.processed[""]++
		if job.StoreID != "" {
			q.processed[job.StoreID]++
		}
		q.mu.Unlock()
		return
	}

	job.Attempts++
	job.LastError = err.Error()
	q.lg.Warn("job failed",
		zap.String("job_id", job.ID),
		zap.String("job_type", string(job.Type)),
		zap.Int("attempt", job.Attempts),
		zap.Error(err),
	)

	if job.Attempts >= q.cfg.MaxAttempts {
		q.mu.Lock()
		q.failed[""]++
		if job.StoreID != "" {
			q.failed[job.StoreID]++
		}
		q.dead[job.ID] = job
		q.mu.Unlock()
		q.lg.Error("job dead after max attempts",
			zap.String("job_id", job.ID),
			zap.String("job_type", string(job.Type)),
		)
		return
	}

	// Linear backoff per attempt before the job re-enters the channel.
	select {
	case <-ctx.Done():
		return
	case <-time.After(time.Duration(job.Attempts) * q.cfg.Backoff):
	}
	select {
	case q.jobs <- job:
		q.addPending(job.StoreID, 1)
	default:
		q.mu.Lock()
		q.dead[job.ID] = job
		q.mu.Unlock()
	}
}
