package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/pizza-ops/internal/domain/analytics"
	"github.com/xenking/pizza-ops/internal/domain/order"
)

var _ analytics.Repository = (*AnalyticsRepository)(nil)

// AnalyticsRepository implements analytics.Repository backed by PostgreSQL.
// Snapshots are stored as JSONB documents keyed by (store, day); an upsert
// replaces the whole document.
type AnalyticsRepository struct {
	pool *pgxpool.Pool
}

// NewAnalyticsRepository returns an AnalyticsRepository that uses the given
// pool.
func NewAnalyticsRepository(pool *pgxpool.Pool) *AnalyticsRepository {
	return &AnalyticsRepository{pool: pool}
}

// snapshotDoc is the stored JSON shape of analytics.Snapshot.
type snapshotDoc struct {
	TotalOrders       int                        `json:"total_orders"`
	TotalRevenue      decimal.Decimal            `json:"total_revenue"`
	AverageOrderValue decimal.Decimal            `json:"average_order_value"`
	StatusCount       map[order.Status]int       `json:"status_count"`
	PopularItems      []analytics.PopularItem    `json:"popular_items"`
	HourlyData        [24]analytics.HourlyBucket `json:"hourly_data"`
}

func toSnapshotDoc(s analytics.Snapshot) snapshotDoc {
	return snapshotDoc{
		TotalOrders:       s.TotalOrders,
		TotalRevenue:      s.TotalRevenue,
		AverageOrderValue: s.AverageOrderValue,
		StatusCount:       s.StatusCount,
		PopularItems:      s.PopularItems,
		HourlyData:        s.HourlyData,
	}
}

func (d snapshotDoc) toSnapshot() analytics.Snapshot {
	return analytics.Snapshot{
		TotalOrders:       d.TotalOrders,
		TotalRevenue:      d.TotalRevenue,
		AverageOrderValue: d.AverageOrderValue,
		StatusCount:       d.StatusCount,
		PopularItems:      d.PopularItems,
		HourlyData:        d.HourlyData,
	}
}

// UpsertDaily overwrites the snapshot for (storeID, day).
func (r *AnalyticsRepository) UpsertDaily(ctx context.Context, storeID string, day time.Time, s analytics.Snapshot) error {
	doc, err := json.Marshal(toSnapshotDoc(s))
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO order_analytics (store_id, day, snapshot, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (store_id, day) DO UPDATE
		SET snapshot = EXCLUDED.snapshot, updated_at = now()`,
		storeID, day.UTC().Format("2006-01-02"), doc)
	if err != nil {
		return fmt.Errorf("upserting daily snapshot for store %q: %w", storeID, err)
	}
	return nil
}

// GetDaily fetches the stored snapshot for (storeID, day). Returns nil
// without error when none exists yet.
func (r *AnalyticsRepository) GetDaily(ctx context.Context, storeID string, day time.Time) (*analytics.DailySnapshot, error) {
	var (
		doc       []byte
		stored    time.Time
		updatedAt time.Time
	)
	err := r.pool.QueryRow(ctx, `
		SELECT day, snapshot, updated_at FROM order_analytics
		WHERE store_id = $1 AND day = $2`,
		storeID, day.UTC().Format("2006-01-02")).Scan(&stored, &doc, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching daily snapshot for store %q: %w", storeID, err)
	}

	var d snapshotDoc
	if err := json.Unmarshal(doc, &d); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &analytics.DailySnapshot{
		StoreID:   storeID,
		Day:       stored,
		Snapshot:  d.toSnapshot(),
		UpdatedAt: updatedAt,
	}, nil
}

// ListRange returns stored snapshots for days in [from, to), oldest first.
func (r *AnalyticsRepository) ListRange(ctx context.Context, storeID string, from, to time.Time) ([]analytics.DailySnapshot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT day, snapshot, updated_at FROM order_analytics
		WHERE store_id = $1 AND day >= $2 AND day < $3
		ORDER BY day`,
		storeID, from.UTC().Format("2006-01-02"), to.UTC().Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("listing snapshots for store %q: %w", storeID, err)
	}
	defer rows.Close()

	var out []analytics.DailySnapshot
	for rows.Next() {
		var (
			doc       []byte
			day       time.Time
			updatedAt time.Time
		)
		if err := rows.Scan(&day, &doc, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		var d snapshotDoc
		if err := json.Unmarshal(doc, &d); err != nil {
			return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
		}
		out = append(out, analytics.DailySnapshot{
			StoreID:   storeID,
			Day:       day,
			Snapshot:  d.toSnapshot(),
			UpdatedAt: updatedAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshots: %w", err)
	}
	return out, nil
}

// systemDoc is the stored JSON shape of analytics.SystemSnapshot minus the
// day, which lives in its own column.
type systemDoc struct {
	TotalStores  int             `json:"total_stores"`
	TotalOrders  int             `json:"total_orders"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	Stores       []storePerfDoc  `json:"stores"`
	Users        userDoc         `json:"users"`
}

type storePerfDoc struct {
	StoreID           string          `json:"store_id"`
	Orders            int             `json:"orders"`
	Revenue           decimal.Decimal `json:"revenue"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
}

type userDoc struct {
	ActiveUsers      int `json:"active_users"`
	NewRegistrations int `json:"new_registrations"`
}

// UpsertSystem overwrites the system-wide snapshot for its day.
func (r *AnalyticsRepository) UpsertSystem(ctx context.Context, s analytics.SystemSnapshot) error {
	stores := make([]storePerfDoc, len(s.Stores))
	for i, p := range s.Stores {
		stores[i] = storePerfDoc{
			StoreID:           p.StoreID,
			Orders:            p.Orders,
			Revenue:           p.Revenue,
			AverageOrderValue: p.AverageOrderValue,
		}
	}
	doc, err := json.Marshal(systemDoc{
		TotalStores:  s.TotalStores,
		TotalOrders:  s.TotalOrders,
		TotalRevenue: s.TotalRevenue,
		Stores:       stores,
		Users: userDoc{
			ActiveUsers:      s.Users.ActiveUsers,
			NewRegistrations: s.Users.NewRegistrations,
		},
	})
	if err != nil {
		return fmt.Errorf("marshaling system snapshot: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO system_analytics (day, snapshot, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (day) DO UPDATE
		SET snapshot = EXCLUDED.snapshot, updated_at = now()`,
		s.Day.UTC().Format("2006-01-02"), doc)
	if err != nil {
		return fmt.Errorf("upserting system snapshot: %w", err)
	}
	return nil
}
