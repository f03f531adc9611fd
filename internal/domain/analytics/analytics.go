// Package analytics folds persisted orders into time-bucketed snapshots
// per store and system-wide.
package analytics

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/pizza-ops/internal/domain/order"
)

// PopularItem is one entry of the top-sellers ranking.
type PopularItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// HourlyBucket accumulates orders placed within one hour of the day.
type HourlyBucket struct {
	Hour    int             `json:"hour"`
	Orders  int             `json:"orders"`
	Revenue decimal.Decimal `json:"revenue"`
}

// Snapshot is the recomputed aggregate for one window. statusCount always
// carries every status key; hourlyData always has 24 buckets.
type Snapshot struct {
	TotalOrders       int
	TotalRevenue      decimal.Decimal
	AverageOrderValue decimal.Decimal
	StatusCount       map[order.Status]int
	PopularItems      []PopularItem
	HourlyData        [24]HourlyBucket
}

// DailySnapshot is a stored per-store snapshot keyed by calendar day.
type DailySnapshot struct {
	StoreID   string
	Day       time.Time
	Snapshot  Snapshot
	UpdatedAt time.Time
}

// StorePerformance ranks one store within a system snapshot.
type StorePerformance struct {
	StoreID           string
	Orders            int
	Revenue           decimal.Decimal
	AverageOrderValue decimal.Decimal
}

// UserActivity carries the user counters of a system snapshot.
type UserActivity struct {
	ActiveUsers      int
	NewRegistrations int
}

// SystemSnapshot is the system-wide aggregate for one day.
type SystemSnapshot struct {
	Day          time.Time
	TotalStores  int
	TotalOrders  int
	TotalRevenue decimal.Decimal
	Stores       []StorePerformance
	Users        UserActivity
}

// Repository stores snapshots. Upserts are full overwrites of the day's
// record, never merges, so recomputation is idempotent.
type Repository interface {
	UpsertDaily(ctx context.Context, storeID string, day time.Time, s Snapshot) error
	GetDaily(ctx context.Context, storeID string, day time.Time) (*DailySnapshot, error)
	ListRange(ctx context.Context, storeID string, from, to time.Time) ([]DailySnapshot, error)
	UpsertSystem(ctx context.Context, s SystemSnapshot) error
}

// UserStats supplies user-activity counters from the user collaborator.
type UserStats interface {
	ActiveUsers(ctx context.Context, from, to time.Time) (int, error)
	NewRegistrations(ctx context.Context, from, to time.Time) (int, error)
}

// NopUserStats returns zero counters; used when no user collaborator is
// wired.
type NopUserStats struct{}

func (NopUserStats) ActiveUsers(context.Context, time.Time, time.Time) (int, error) {
	return 0, nil
}

func (NopUserStats) NewRegistrations(context.Context, time.Time, time.Time) (int, error) {
	return 0, nil
}
