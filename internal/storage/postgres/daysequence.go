package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/pizza-ops/internal/domain/order"
)

var _ order.DaySequence = (*DaySequence)(nil)

// DaySequence implements order.DaySequence on a per-day counter row. The
// upsert increments and returns atomically, so concurrent callers across
// any number of processes never observe the same value.
type DaySequence struct {
	pool *pgxpool.Pool
}

// NewDaySequence returns a DaySequence that uses the given pool.
func NewDaySequence(pool *pgxpool.Pool) *DaySequence {
	return &DaySequence{pool: pool}
}

// Next returns the next sequence value for the given day, starting at 1.
func (s *DaySequence) Next(ctx context.Context, day time.Time) (int64, error) {
	var seq int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO order_day_counters (day, seq)
		VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET seq = order_day_counters.seq + 1
		RETURNING seq`,
		day.UTC().Format("2006-01-02")).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("advancing day sequence: %w", err)
	}
	return seq, nil
}
