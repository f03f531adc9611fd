package order

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-faster/errors"
)

// ErrDuplicateNumber is returned by Repository.Create when the order
// number collides with an existing order. Creation mints a fresh number
// and retries instead of surfacing the collision.
var ErrDuplicateNumber = errors.New("duplicate order number")

// DaySequence mints monotonically increasing sequence numbers scoped to a
// calendar day. Next must be linearizable across concurrent callers: two
// calls for the same day never return the same value. The counter resets
// at day boundaries.
type DaySequence interface {
	Next(ctx context.Context, day time.Time) (int64, error)
}

// NumberGenerator produces human-readable order identifiers of the form
// PREFIX + YYMMDD + zero-padded sequence, e.g. "PZA2608310042". Uniqueness
// comes from the day-scoped sequence, not from counting existing orders.
type NumberGenerator struct {
	prefix string
	seq    DaySequence
}

// NewNumberGenerator creates a generator with the given identifier prefix.
func NewNumberGenerator(prefix string, seq DaySequence) *NumberGenerator {
	return &NumberGenerator{prefix: prefix, seq: seq}
}

// Next mints the order number for an order created at t. The sequence is
// global across stores and padded to 4 digits; past 9999 the number just
// grows a digit.
func (g *NumberGenerator) Next(ctx context.Context, t time.Time) (string, error) {
	day := t.Truncate(24 * time.Hour)
	n, err := g.seq.Next(ctx, day)
	if err != nil {
		return "", errors.Wrap(err, "next sequence")
	}
	return fmt.Sprintf("%s%s%04d", g.prefix, t.Format("060102"), n), nil
}

// MemorySequence is an in-process DaySequence for tests and single-node
// setups. Production uses the database-backed sequence so numbers stay
// unique across replicas.
type MemorySequence struct {
	mu   sync.Mutex
	day  time.Time
	next int64
}

// NewMemorySequence creates an empty in-process sequence.
func NewMemorySequence() *MemorySequence {
	return &MemorySequence{}
}

// Next returns the next sequence value for day, resetting to 1 when the
// day changes.
func (s *MemorySequence) Next(_ context.Context, day time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !day.Equal(s.day) {
		s.day = day
		s.next = 0
	}
	s.next++
	return s.next, nil
}
