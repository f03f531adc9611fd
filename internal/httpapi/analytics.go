package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/pizza-ops/internal/domain/analytics"
	"github.com/xenking/pizza-ops/internal/domain/order"
)

// parseDay parses the day query parameter (YYYY-MM-DD), defaulting to
// today in UTC.
func parseDay(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("day")
	if raw == "" {
		return time.Now().UTC(), nil
	}
	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, errBadRequest
	}
	return day, nil
}

type snapshotResponse struct {
	TotalOrders       int                        `json:"total_orders"`
	TotalRevenue      decimal.Decimal            `json:"total_revenue"`
	AverageOrderValue decimal.Decimal            `json:"average_order_value"`
	StatusCount       map[order.Status]int       `json:"status_count"`
	PopularItems      []analytics.PopularItem    `json:"popular_items"`
	HourlyData        [24]analytics.HourlyBucket `json:"hourly_data"`
}

func toSnapshotResponse(s analytics.Snapshot) snapshotResponse {
	return snapshotResponse{
		TotalOrders:       s.TotalOrders,
		TotalRevenue:      s.TotalRevenue,
		AverageOrderValue: s.AverageOrderValue,
		StatusCount:       s.StatusCount,
		PopularItems:      s.PopularItems,
		HourlyData:        s.HourlyData,
	}
}

type dailySnapshotResponse struct {
	StoreID  string           `json:"store_id"`
	Day      string           `json:"day"`
	Snapshot snapshotResponse `json:"snapshot"`
}

func toDailySnapshotResponse(d analytics.DailySnapshot) dailySnapshotResponse {
	return dailySnapshotResponse{
		StoreID:  d.StoreID,
		Day:      d.Day.UTC().Format("2006-01-02"),
		Snapshot: toSnapshotResponse(d.Snapshot),
	}
}

func (s *Server) refreshDailyAnalytics(w http.ResponseWriter, r *http.Request) {
	day, err := parseDay(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	snap, err := s.analytics.RefreshDaily(r.Context(), r.PathValue("storeID"), day)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotResponse(*snap))
}

func (s *Server) getDailyAnalytics(w http.ResponseWriter, r *http.Request) {
	day, err := parseDay(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	snap, err := s.analytics.Daily(r.Context(), r.PathValue("storeID"), day)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if snap == nil {
		writeError(w, r, &order.NotFoundError{Entity: "snapshot", ID: r.PathValue("storeID")})
		return
	}
	writeJSON(w, http.StatusOK, toDailySnapshotResponse(*snap))
}

func (s *Server) getRevenueTrend(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))

	trend, err := s.analytics.RevenueTrend(r.Context(), r.PathValue("storeID"), days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]dailySnapshotResponse, len(trend))
	for i, d := range trend {
		out[i] = toDailySnapshotResponse(d)
	}
	writeJSON(w, http.StatusOK, out)
}

type systemSnapshotResponse struct {
	Day          string          `json:"day"`
	TotalStores  int             `json:"total_stores"`
	TotalOrders  int             `json:"total_orders"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	Stores       []storePerf     `json:"stores"`
	ActiveUsers  int             `json:"active_users"`
	NewUsers     int             `json:"new_registrations"`
}

type storePerf struct {
	StoreID           string          `json:"store_id"`
	Orders            int             `json:"orders"`
	Revenue           decimal.Decimal `json:"revenue"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
}

func (s *Server) refreshSystemAnalytics(w http.ResponseWriter, r *http.Request) {
	day, err := parseDay(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	snap, err := s.analytics.RefreshSystem(r.Context(), day)
	if err != nil {
		writeError(w, r, err)
		return
	}

	stores := make([]storePerf, len(snap.Stores))
	for i, p := range snap.Stores {
		stores[i] = storePerf{
			StoreID:           p.StoreID,
			Orders:            p.Orders,
			Revenue:           p.Revenue,
			AverageOrderValue: p.AverageOrderValue,
		}
	}
	writeJSON(w, http.StatusOK, systemSnapshotResponse{
		Day:          snap.Day.UTC().Format("2006-01-02"),
		TotalStores:  snap.TotalStores,
		TotalOrders:  snap.TotalOrders,
		TotalRevenue: snap.TotalRevenue,
		Stores:       stores,
		ActiveUsers:  snap.Users.ActiveUsers,
		NewUsers:     snap.Users.NewRegistrations,
	})
}
