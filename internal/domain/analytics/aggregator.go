package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/pizza-ops/internal/domain/order"
	"github.com/xenking/pizza-ops/internal/domain/store"
)

// Aggregate folds a set of orders into a Snapshot in a single pass.
//
// Hourly buckets are keyed by the UTC hour of each order's creation
// timestamp. Popular items accumulate quantity per line-item name
// snapshot; ties keep first-encountered order, which the stable sort
// preserves.
func Aggregate(orders []order.Order) Snapshot {
	s := Snapshot{
		TotalOrders:       len(orders),
		TotalRevenue:      decimal.Zero,
		AverageOrderValue: decimal.Zero,
		StatusCount:       make(map[order.Status]int, len(order.Statuses())),
	}
	for _, status := range order.Statuses() {
		s.StatusCount[status] = 0
	}
	for hour := range s.HourlyData {
		s.HourlyData[hour] = HourlyBucket{Hour: hour, Revenue: decimal.Zero}
	}

	quantities := make(map[string]int)
	var names []string
	for _, o := range orders {
		s.TotalRevenue = s.TotalRevenue.Add(o.Total)
		s.StatusCount[o.Status]++

		for _, line := range o.Lines {
			if _, seen := quantities[line.Name]; !seen {
				names = append(names, line.Name)
			}
			quantities[line.Name] += line.Quantity
		}

		hour := o.CreatedAt.UTC().Hour()
		s.HourlyData[hour].Orders++
		s.HourlyData[hour].Revenue = s.HourlyData[hour].Revenue.Add(o.Total)
	}

	if s.TotalOrders > 0 {
		s.AverageOrderValue = s.TotalRevenue.
			Div(decimal.NewFromInt(int64(s.TotalOrders))).
			Round(2)
	}

	popular := make([]PopularItem, len(names))
	for i, name := range names {
		popular[i] = PopularItem{Name: name, Quantity: quantities[name]}
	}
	sort.SliceStable(popular, func(i, j int) bool {
		return popular[i].Quantity > popular[j].Quantity
	})
	if len(popular) > 10 {
		popular = popular[:10]
	}
	s.PopularItems = popular

	return s
}

// Service recomputes and stores snapshots from the persisted order set.
type Service struct {
	orders order.Repository
	stores store.Repository
	users  UserStats
	repo   Repository
}

// NewService creates the analytics service.
func NewService(orders order.Repository, stores store.Repository, users UserStats, repo Repository) *Service {
	return &Service{orders: orders, stores: stores, users: users, repo: repo}
}

// dayWindow returns the UTC day bounds [start, start+24h) containing t.
func dayWindow(t time.Time) (time.Time, time.Time) {
	start := t.UTC().Truncate(24 * time.Hour)
	return start, start.Add(24 * time.Hour)
}

// RefreshDaily recomputes the snapshot for one store and calendar day
// from the current order set and overwrites the stored record. Repeated
// calls for the same day are idempotent.
func (s *Service) RefreshDaily(ctx context.Context, storeID string, day time.Time) (*Snapshot, error) {
	from, to := dayWindow(day)

	orders, err := s.orders.ListByDateRange(ctx, storeID, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}

	snapshot := Aggregate(orders)
	if err := s.repo.UpsertDaily(ctx, storeID, from, snapshot); err != nil {
		return nil, errors.Wrap(err, "upsert snapshot")
	}
	return &snapshot, nil
}

// Daily returns the stored snapshot for one store and day.
func (s *Service) Daily(ctx context.Context, storeID string, day time.Time) (*DailySnapshot, error) {
	from, _ := dayWindow(day)
	return s.repo.GetDaily(ctx, storeID, from)
}

// RevenueTrend returns the stored daily snapshots of the trailing number
// of days, oldest first.
func (s *Service) RevenueTrend(ctx context.Context, storeID string, days int) ([]DailySnapshot, error) {
	if days < 1 {
		days = 30
	}
	to, _ := dayWindow(time.Now().UTC())
	from := to.AddDate(0, 0, -days)
	return s.repo.ListRange(ctx, storeID, from, to)
}

// RefreshSystem recomputes the system-wide snapshot for one day: totals
// across all stores, a revenue ranking, and user-activity counters from
// the user collaborator.
func (s *Service) RefreshSystem(ctx context.Context, day time.Time) (*SystemSnapshot, error) {
	from, to := dayWindow(day)

	stores, err := s.stores.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list stores")
	}

	system := SystemSnapshot{
		Day:          from,
		TotalStores:  len(stores),
		TotalRevenue: decimal.Zero,
	}
	for _, st := range stores {
		orders, err := s.orders.ListByDateRange(ctx, st.ID, from, to)
		if err != nil {
			return nil, errors.Wrap(err, "list orders")
		}
		snapshot := Aggregate(orders)
		system.TotalOrders += snapshot.TotalOrders
		system.TotalRevenue = system.TotalRevenue.Add(snapshot.TotalRevenue)
		system.Stores = append(system.Stores, StorePerformance{
			StoreID:           st.ID,
			Orders:            snapshot.TotalOrders,
			Revenue:           snapshot.TotalRevenue,
			AverageOrderValue: snapshot.AverageOrderValue,
		})
	}
	sort.SliceStable(system.Stores, func(i, j int) bool {
		return system.Stores[i].Revenue.GreaterThan(system.Stores[j].Revenue)
	})

	if system.Users.ActiveUsers, err = s.users.ActiveUsers(ctx, from, to); err != nil {
		return nil, errors.Wrap(err, "active users")
	}
	if system.Users.NewRegistrations, err = s.users.NewRegistrations(ctx, from, to); err != nil {
		return nil, errors.Wrap(err, "new registrations")
	}

	if err := s.repo.UpsertSystem(ctx, system); err != nil {
		return nil, errors.Wrap(err, "upsert system snapshot")
	}
	return &system, nil
}
