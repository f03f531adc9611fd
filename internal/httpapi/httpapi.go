// Package httpapi exposes the service over REST. Routing uses the
// standard mux with method patterns; handlers translate between JSON
// payloads and the domain services and map domain errors to status codes.
package httpapi

import (
	"net/http"

	"github.com/xenking/pizza-ops/internal/domain/analytics"
	"github.com/xenking/pizza-ops/internal/domain/inventory"
	"github.com/xenking/pizza-ops/internal/domain/menu"
	"github.com/xenking/pizza-ops/internal/domain/order"
	"github.com/xenking/pizza-ops/internal/domain/store"
	"github.com/xenking/pizza-ops/internal/queue"
)

// Server bundles the domain services behind the REST surface.
type Server struct {
	orders    *order.Service
	ledger    *inventory.Ledger
	inventory inventory.Repository
	menus     menu.Repository
	stores    store.Repository
	analytics *analytics.Service
	jobs      *queue.Queue
}

// NewServer creates the REST handler set.
func NewServer(
	orders *order.Service,
	ledger *inventory.Ledger,
	inventoryRepo inventory.Repository,
	menus menu.Repository,
	stores store.Repository,
	analyticsSvc *analytics.Service,
	jobs *queue.Queue,
) *Server {
	return &Server{
		orders:    orders,
		ledger:    ledger,
		inventory: inventoryRepo,
		menus:     menus,
		stores:    stores,
		analytics: analyticsSvc,
		jobs:      jobs,
	}
}

// Routes registers every endpoint on a fresh mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/stores", s.createStore)
	mux.HandleFunc("GET /api/stores", s.listStores)
	mux.HandleFunc("GET /api/stores/{storeID}", s.getStore)

	mux.HandleFunc("GET /api/menu", s.listMenu)
	mux.HandleFunc("GET /api/menu/{id}", s.getMenuItem)
	mux.HandleFunc("POST /api/menu", s.createMenuItem)
	mux.HandleFunc("PATCH /api/menu/{id}/availability", s.setMenuAvailability)

	mux.HandleFunc("POST /api/stores/{storeID}/orders", s.createOrder)
	mux.HandleFunc("GET /api/stores/{storeID}/orders", s.listOrders)
	mux.HandleFunc("GET /api/orders/{id}", s.getOrder)
	mux.HandleFunc("PATCH /api/orders/{id}/status", s.updateOrderStatus)
	mux.HandleFunc("PATCH /api/orders/{id}/payment", s.updateOrderPayment)

	mux.HandleFunc("POST /api/stores/{storeID}/inventory", s.createInventoryItem)
	mux.HandleFunc("GET /api/stores/{storeID}/inventory", s.listInventory)
	mux.HandleFunc("GET /api/stores/{storeID}/inventory/low-stock", s.listLowStock)
	mux.HandleFunc("GET /api/stores/{storeID}/inventory/critical", s.listCriticalStock)
	mux.HandleFunc("GET /api/stores/{storeID}/inventory/valuation", s.getValuation)
	mux.HandleFunc("GET /api/stores/{storeID}/inventory/suggestions", s.listRestockSuggestions)
	mux.HandleFunc("POST /api/inventory/{id}/restock", s.restockItem)

	mux.HandleFunc("POST /api/stores/{storeID}/analytics/daily/refresh", s.refreshDailyAnalytics)
	mux.HandleFunc("GET /api/stores/{storeID}/analytics/daily", s.getDailyAnalytics)
	mux.HandleFunc("GET /api/stores/{storeID}/analytics/trend", s.getRevenueTrend)
	mux.HandleFunc("POST /api/analytics/system/refresh", s.refreshSystemAnalytics)

	mux.HandleFunc("GET /api/queue/stats", s.queueStats)
	mux.HandleFunc("POST /api/queue/jobs/{id}/retry", s.retryJob)

	return mux
}
