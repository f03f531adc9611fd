package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/pizza-ops/internal/domain/analytics"
	"github.com/xenking/pizza-ops/internal/domain/inventory"
	"github.com/xenking/pizza-ops/internal/domain/menu"
	"github.com/xenking/pizza-ops/internal/domain/order"
	"github.com/xenking/pizza-ops/internal/domain/store"
	"github.com/xenking/pizza-ops/internal/queue"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeMenuRepo struct {
	items map[string]menu.Item
}

func (f *fakeMenuRepo) Create(_ context.Context, item *menu.Item) error {
	f.items[item.ID] = *item
	return nil
}

func (f *fakeMenuRepo) GetByID(_ context.Context, id string) (*menu.Item, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, menu.ErrNotFound
	}
	return &item, nil
}

func (f *fakeMenuRepo) GetByIDs(_ context.Context, ids []string) ([]menu.Item, error) {
	var out []menu.Item
	for _, id := range ids {
		if item, ok := f.items[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeMenuRepo) List(_ context.Context, _ menu.Filter) ([]menu.Item, error) {
	var out []menu.Item
	for _, item := range f.items {
		out = append(out, item)
	}
	return out, nil
}

func (f *fakeMenuRepo) SetAvailability(_ context.Context, id string, available bool) error {
	item, ok := f.items[id]
	if !ok {
		return menu.ErrNotFound
	}
	item.Available = available
	f.items[id] = item
	return nil
}

type fakeStoreRepo struct {
	stores map[string]store.Store
}

func (f *fakeStoreRepo) Create(_ context.Context, s *store.Store) error {
	f.stores[s.ID] = *s
	return nil
}

func (f *fakeStoreRepo) GetByID(_ context.Context, id string) (*store.Store, error) {
	s, ok := f.stores[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &s, nil
}

func (f *fakeStoreRepo) List(_ context.Context) ([]store.Store, error) {
	var out []store.Store
	for _, s := range f.stores {
		out = append(out, s)
	}
	return out, nil
}

type fakeInventoryRepo struct {
	mu    sync.Mutex
	items map[string]*inventory.Item
}

func (f *fakeInventoryRepo) Create(_ context.Context, item *inventory.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *item
	f.items[item.ID] = &cp
	return nil
}

func (f *fakeInventoryRepo) GetByID(_ context.Context, id string) (*inventory.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[id]
	if !ok {
		return nil, &inventory.NotFoundError{ItemID: id}
	}
	cp := *it
	return &cp, nil
}

func (f *fakeInventoryRepo) ListByStore(_ context.Context, storeID string) ([]inventory.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []inventory.Item
	for _, it := range f.items {
		if it.StoreID == storeID {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (f *fakeInventoryRepo) ListBelowThreshold(_ context.Context, storeID string, factor decimal.Decimal) ([]inventory.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []inventory.Item
	for _, it := range f.items {
		if it.StoreID == storeID && it.CurrentStock.LessThanOrEqual(it.MinimumStock.Mul(factor)) {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (f *fakeInventoryRepo) DecrementBatch(_ context.Context, reqs []inventory.Requirement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, req := range reqs {
		it, ok := f.items[req.ItemID]
		if !ok {
			return &inventory.NotFoundError{ItemID: req.ItemID}
		}
		if it.CurrentStock.LessThan(req.Quantity) {
			return &inventory.InsufficientStockError{
				ItemID:    req.ItemID,
				ItemName:  it.Name,
				Requested: req.Quantity,
				Available: it.CurrentStock,
			}
		}
	}
	for _, req := range reqs {
		it := f.items[req.ItemID]
		it.CurrentStock = it.CurrentStock.Sub(req.Quantity)
	}
	return nil
}

func (f *fakeInventoryRepo) IncrementBatch(_ context.Context, reqs []inventory.Requirement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, req := range reqs {
		it, ok := f.items[req.ItemID]
		if !ok {
			return &inventory.NotFoundError{ItemID: req.ItemID}
		}
		it.CurrentStock = it.CurrentStock.Add(req.Quantity)
	}
	return nil
}

func (f *fakeInventoryRepo) Restock(_ context.Context, id string, quantity decimal.Decimal, costPerUnit *decimal.Decimal, at time.Time) (*inventory.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[id]
	if !ok {
		return nil, &inventory.NotFoundError{ItemID: id}
	}
	it.CurrentStock = it.CurrentStock.Add(quantity)
	if costPerUnit != nil {
		it.CostPerUnit = *costPerUnit
	}
	it.LastRestocked = at
	cp := *it
	return &cp, nil
}

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[string]order.Order
}

func (f *fakeOrderRepo) Create(_ context.Context, o *order.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.orders {
		if existing.Number == o.Number {
			return order.ErrDuplicateNumber
		}
	}
	f.orders[o.ID] = *o
	return nil
}

func (f *fakeOrderRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, &order.NotFoundError{Entity: "order", ID: id}
	}
	return &o, nil
}

func (f *fakeOrderRepo) Update(_ context.Context, o *order.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.orders[o.ID]; !ok {
		return &order.NotFoundError{Entity: "order", ID: o.ID}
	}
	f.orders[o.ID] = *o
	return nil
}

func (f *fakeOrderRepo) List(_ context.Context, storeID string, filter order.ListFilter) (*order.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var orders []order.Order
	for _, o := range f.orders {
		if o.StoreID == storeID {
			orders = append(orders, o)
		}
	}
	return &order.Page{
		Orders:     orders,
		Total:      len(orders),
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalPages: 1,
	}, nil
}

func (f *fakeOrderRepo) ListByDateRange(_ context.Context, storeID string, from, to time.Time) ([]order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []order.Order
	for _, o := range f.orders {
		if (storeID == "" || o.StoreID == storeID) && !o.CreatedAt.Before(from) && o.CreatedAt.Before(to) {
			out = append(out, o)
		}
	}
	return out, nil
}

type memSnapshotRepo struct {
	mu     sync.Mutex
	daily  map[string]analytics.DailySnapshot
	system map[string]analytics.SystemSnapshot
}

func newMemSnapshotRepo() *memSnapshotRepo {
	return &memSnapshotRepo{
		daily:  make(map[string]analytics.DailySnapshot),
		system: make(map[string]analytics.SystemSnapshot),
	}
}

func dailyKey(storeID string, day time.Time) string {
	return storeID + "/" + day.UTC().Format("2006-01-02")
}

func (m *memSnapshotRepo) UpsertDaily(_ context.Context, storeID string, day time.Time, s analytics.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.daily[dailyKey(storeID, day)] = analytics.DailySnapshot{
		StoreID: storeID, Day: day, Snapshot: s, UpdatedAt: time.Now(),
	}
	return nil
}

func (m *memSnapshotRepo) GetDaily(_ context.Context, storeID string, day time.Time) (*analytics.DailySnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.daily[dailyKey(storeID, day)]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (m *memSnapshotRepo) ListRange(_ context.Context, storeID string, from, to time.Time) ([]analytics.DailySnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []analytics.DailySnapshot
	for _, d := range m.daily {
		if d.StoreID == storeID && !d.Day.Before(from) && d.Day.Before(to) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memSnapshotRepo) UpsertSystem(_ context.Context, s analytics.SystemSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.system[s.Day.UTC().Format("2006-01-02")] = s
	return nil
}

type nopEvents struct{}

func (nopEvents) OrderCreated(context.Context, *order.Order) error { return nil }
func (nopEvents) OrderUpdated(context.Context, *order.Order) error { return nil }

type fixture struct {
	server  *Server
	handler http.Handler
	orders  *fakeOrderRepo
	inv     *fakeInventoryRepo
	jobs    *queue.Queue
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	menus := &fakeMenuRepo{items: map[string]menu.Item{}}
	margherita := menu.NewItem("m-1", "Margherita", menu.CategoryPizza, dec("10.00"))
	margherita.Ingredients = []menu.Ingredient{
		{InventoryItemID: "inv-dough", Quantity: dec("1")},
	}
	menus.items["m-1"] = *margherita

	stores := &fakeStoreRepo{stores: map[string]store.Store{}}
	stores.stores["store-1"] = store.Store{
		ID: "store-1", Name: "Downtown", Active: true,
		Settings: store.DefaultSettings(),
	}

	inv := &fakeInventoryRepo{items: map[string]*inventory.Item{}}
	inv.items["inv-dough"] = inventory.NewItem(
		"inv-dough", "store-1", "Pizza Dough", inventory.CategoryDough,
		"kg", dec("10"), dec("2"), dec("1.50"),
	)

	orders := &fakeOrderRepo{orders: map[string]order.Order{}}
	ledger := inventory.NewLedger(inv)
	generator := order.NewNumberGenerator("PZA", order.NewMemorySequence())

	jobs := queue.New(queue.Config{Workers: 1}, zap.NewNop())
	for _, jt := range []queue.JobType{queue.JobLoyaltyAccrual, queue.JobConfirmationEmail, queue.JobStatusEmail} {
		jobs.RegisterHandler(jt, func(context.Context, queue.Job) error { return nil })
	}
	t.Cleanup(jobs.Stop)

	orderSvc := order.NewService(
		order.ServiceConfig{}, menus, stores, ledger, generator, orders,
		nopEvents{}, queue.NewDispatcher(jobs),
	)
	analyticsSvc := analytics.NewService(orders, stores, analytics.NopUserStats{}, newMemSnapshotRepo())

	srv := NewServer(orderSvc, ledger, inv, menus, stores, analyticsSvc, jobs)
	return &fixture{
		server:  srv,
		handler: srv.Routes(),
		orders:  orders,
		inv:     inv,
		jobs:    jobs,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/stores/store-1/orders", map[string]any{
		"lines":          []map[string]any{{"menu_item_id": "m-1", "quantity": 2}},
		"order_type":     "takeaway",
		"payment_method": "cash",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp orderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Contains(t, resp.Number, "PZA")
	assert.Equal(t, order.StatusPending, resp.Status)
	assert.True(t, resp.Subtotal.Equal(dec("20.00")), "subtotal %s", resp.Subtotal)
	assert.True(t, resp.Total.Equal(dec("21.60")), "total %s", resp.Total)

	// Two doughs reserved.
	it, err := f.inv.GetByID(context.Background(), "inv-dough")
	require.NoError(t, err)
	assert.True(t, it.CurrentStock.Equal(dec("8")))
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/stores/store-1/orders", map[string]any{
		"lines":          []map[string]any{{"menu_item_id": "m-1", "quantity": 100}},
		"order_type":     "takeaway",
		"payment_method": "cash",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Zero(t, len(f.orders.orders))
}

func TestCreateOrder_UnknownStore(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/stores/nope/orders", map[string]any{
		"lines":          []map[string]any{{"menu_item_id": "m-1", "quantity": 1}},
		"order_type":     "takeaway",
		"payment_method": "cash",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateOrder_BadBody(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/stores/store-1/orders", bytes.NewBufferString("{nope"))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateOrder_ValidationError(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/stores/store-1/orders", map[string]any{
		"lines":          []map[string]any{},
		"order_type":     "takeaway",
		"payment_method": "cash",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateOrderStatus_InvalidTransition(t *testing.T) {
	f := newFixture(t)

	created := f.do(t, http.MethodPost, "/api/stores/store-1/orders", map[string]any{
		"lines":          []map[string]any{{"menu_item_id": "m-1", "quantity": 1}},
		"order_type":     "takeaway",
		"payment_method": "cash",
	})
	require.Equal(t, http.StatusCreated, created.Code)
	var resp orderResponse
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &resp))

	rec := f.do(t, http.MethodPatch, "/api/orders/"+resp.ID+"/status", map[string]any{
		"status": "delivered",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodPatch, "/api/orders/"+resp.ID+"/status", map[string]any{
		"status": "confirmed",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetOrder_NotFound(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/orders/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInventoryEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/stores/store-1/inventory", map[string]any{
		"name":          "Mozzarella",
		"category":      "cheese",
		"unit":          "kg",
		"current_stock": "1",
		"minimum_stock": "2",
		"cost_per_unit": "8.00",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created inventoryItemResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.True(t, created.ReorderPoint.Equal(dec("3")))

	rec = f.do(t, http.MethodGet, "/api/stores/store-1/inventory/low-stock", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var low []inventoryItemResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &low))
	require.Len(t, low, 1)
	assert.Equal(t, "Mozzarella", low[0].Name)

	rec = f.do(t, http.MethodPost, "/api/inventory/"+created.ID+"/restock", map[string]any{
		"quantity": "5",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var restocked inventoryItemResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &restocked))
	assert.True(t, restocked.CurrentStock.Equal(dec("6")))

	rec = f.do(t, http.MethodPost, "/api/inventory/missing/restock", map[string]any{
		"quantity": "5",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/stores/store-1/inventory/valuation", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMenuAndStores(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/menu/m-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var item menuItemResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	assert.Equal(t, "Margherita", item.Name)

	rec = f.do(t, http.MethodGet, "/api/menu/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPatch, "/api/menu/m-1/availability", map[string]any{"available": false})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/stores/store-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st storeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "Downtown", st.Name)
}

func TestAnalyticsRefreshAndFetch(t *testing.T) {
	f := newFixture(t)

	created := f.do(t, http.MethodPost, "/api/stores/store-1/orders", map[string]any{
		"lines":          []map[string]any{{"menu_item_id": "m-1", "quantity": 1}},
		"order_type":     "takeaway",
		"payment_method": "cash",
	})
	require.Equal(t, http.StatusCreated, created.Code)

	rec := f.do(t, http.MethodPost, "/api/stores/store-1/analytics/daily/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var snap snapshotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 1, snap.TotalOrders)

	rec = f.do(t, http.MethodGet, "/api/stores/store-1/analytics/daily", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/stores/store-1/analytics/daily?day=1999-01-01", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/stores/store-1/analytics/daily?day=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueueEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/queue/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats queueStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Zero(t, stats.Dead)

	rec = f.do(t, http.MethodPost, "/api/queue/jobs/missing/retry", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
