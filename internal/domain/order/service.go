package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/pizza-ops/internal/domain/inventory"
	"github.com/xenking/pizza-ops/internal/domain/menu"
	"github.com/xenking/pizza-ops/internal/domain/store"
)

// createAttempts bounds the duplicate-order-number retry loop.
const createAttempts = 3

// deliveryTransitMinutes pads the delivery estimate on top of prep time.
const deliveryTransitMinutes = 30

// ValidationError reports malformed or missing creation input. It is
// returned before any side effect takes place.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError indicates an unknown entity id on an update or lookup path.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// TransitionError reports a status change rejected by the lifecycle graph.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}

// Events receives lifecycle notifications. Implementations are
// fire-and-forget from the service's perspective: errors are logged and
// never abort the operation that triggered them.
type Events interface {
	OrderCreated(ctx context.Context, o *Order) error
	OrderUpdated(ctx context.Context, o *Order) error
}

// AsyncJobs defers side effects (loyalty accrual, customer email) off the
// synchronous creation path. Retry and failure handling belong to the
// queue, not to the service.
type AsyncJobs interface {
	EnqueueLoyaltyAccrual(ctx context.Context, o *Order) error
	EnqueueConfirmationEmail(ctx context.Context, o *Order) error
	EnqueueStatusEmail(ctx context.Context, o *Order, newStatus Status) error
}

// LineRequest is one requested menu item in a creation request.
type LineRequest struct {
	MenuItemID    string
	Quantity      int
	Customization Customization
}

// CreateRequest is the input for placing an order. Prices and totals are
// always resolved server-side; only the discount amount is caller-supplied.
type CreateRequest struct {
	StoreID               string
	Customer              Customer
	Lines                 []LineRequest
	Type                  Type
	PaymentMethod         PaymentMethod
	Discount              decimal.Decimal
	LoyaltyPointsRedeemed int
	Notes                 string
}

// ServiceConfig tunes lifecycle behavior.
type ServiceConfig struct {
	// PermissiveTransitions disables the lifecycle graph check on
	// UpdateStatus, allowing any status to be set from any other. Off by
	// default; kept for parity with deployments that relied on it.
	PermissiveTransitions bool
}

// Service is the order lifecycle: it composes the catalog, the inventory
// ledger, pricing, and number generation into the creation workflow, and
// validates status and payment transitions afterwards.
type Service struct {
	cfg     ServiceConfig
	menus   menu.Repository
	stores  store.Repository
	ledger  *inventory.Ledger
	numbers *NumberGenerator
	orders  Repository
	events  Events
	jobs    AsyncJobs
	now     func() time.Time

	created metric.Int64Counter
	failed  metric.Int64Counter
}

// NewService creates the lifecycle service with all collaborators injected.
func NewService(
	cfg ServiceConfig,
	menus menu.Repository,
	stores store.Repository,
	ledger *inventory.Ledger,
	numbers *NumberGenerator,
	orders Repository,
	events Events,
	jobs AsyncJobs,
) *Service {
	meter := otel.GetMeterProvider().Meter("pizza-ops/order")
	created, _ := meter.Int64Counter("orders_created_total")
	failed, _ := meter.Int64Counter("orders_failed_total")
	return &Service{
		cfg:     cfg,
		menus:   menus,
		stores:  stores,
		ledger:  ledger,
		numbers: numbers,
		orders:  orders,
		events:  events,
		jobs:    jobs,
		now:     func() time.Time { return time.Now().UTC() },
		created: created,
		failed:  failed,
	}
}

var tracer = otel.Tracer("pizza-ops/order")

// Create places an order: it resolves the requested menu items, reserves
// the full ingredient requirement set atomically, computes totals, mints
// an order number, and persists. Any failure before the order is
// persisted aborts with no partial state; stock reserved for an order
// whose persistence fails is released again. Side effects after the
// commit (events, loyalty, email) are fire-and-forget.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	ctx, span := tracer.Start(ctx, "order.Create")
	defer span.End()

	if err := validateCreate(req); err != nil {
		return nil, err
	}

	items, err := s.resolveMenuItems(ctx, req.Lines)
	if err != nil {
		return nil, err
	}

	lines := buildLines(req.Lines, items)
	reqs := buildRequirements(req.Lines, items)

	st, err := s.stores.GetByID(ctx, req.StoreID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &NotFoundError{Entity: "store", ID: req.StoreID}
		}
		return nil, errors.Wrap(err, "get store")
	}

	// Whole-order reservation: all ingredient decrements apply or none do.
	if len(reqs) > 0 {
		if err := s.ledger.Reserve(ctx, reqs); err != nil {
			s.failed.Add(ctx, 1)
			return nil, err
		}
	}

	o, err := s.persistOrder(ctx, req, st, lines, items)
	if err != nil {
		// The reservation is already committed; compensate before
		// reporting the failure so no stock stays burned.
		if len(reqs) > 0 {
			if relErr := s.ledger.Release(ctx, reqs); relErr != nil {
				zctx.From(ctx).Error("release reserved stock",
					zap.String("store_id", req.StoreID), zap.Error(relErr))
			}
		}
		s.failed.Add(ctx, 1)
		return nil, err
	}

	s.created.Add(ctx, 1)
	s.dispatchCreated(ctx, o)
	return o, nil
}

// persistOrder assembles the order and inserts it, minting a fresh number
// on duplicate-number collisions up to createAttempts times.
func (s *Service) persistOrder(ctx context.Context, req CreateRequest, st *store.Store, lines []Line, items map[string]menu.Item) (*Order, error) {
	now := s.now()
	totals := CalculateTotals(lines, req.Discount, req.Type, PricingConfig{
		TaxRate:     st.Settings.TaxRate,
		DeliveryFee: st.Settings.DeliveryFee,
	})

	prep := 0
	for _, lr := range req.Lines {
		prep += items[lr.MenuItemID].PreparationTime * lr.Quantity
	}

	o := &Order{
		ID:                    uuid.New().String(),
		StoreID:               req.StoreID,
		Customer:              req.Customer,
		Lines:                 lines,
		Subtotal:              totals.Subtotal,
		Tax:                   totals.Tax,
		DeliveryFee:           totals.DeliveryFee,
		Discount:              totals.Discount,
		Total:                 totals.Total,
		Type:                  req.Type,
		Status:                StatusPending,
		PaymentStatus:         PaymentPending,
		PaymentMethod:         req.PaymentMethod,
		Notes:                 req.Notes,
		PreparationTime:       prep,
		LoyaltyPointsRedeemed: req.LoyaltyPointsRedeemed,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if req.Type == TypeDelivery {
		o.EstimatedDelivery = now.Add(time.Duration(prep+deliveryTransitMinutes) * time.Minute)
	}

	for attempt := 0; attempt < createAttempts; attempt++ {
		number, err := s.numbers.Next(ctx, now)
		if err != nil {
			return nil, errors.Wrap(err, "assign order number")
		}
		o.Number = number

		err = s.orders.Create(ctx, o)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, ErrDuplicateNumber) {
			return nil, errors.Wrap(err, "create order")
		}
		zctx.From(ctx).Warn("order number collision, retrying",
			zap.String("order_number", number), zap.Int("attempt", attempt+1))
	}
	return nil, errors.Wrap(ErrDuplicateNumber, "create order")
}

// dispatchCreated emits the created event and queues deferred side
// effects. None of these can fail the already-committed order.
func (s *Service) dispatchCreated(ctx context.Context, o *Order) {
	lg := zctx.From(ctx).With(
		zap.String("order_id", o.ID),
		zap.String("order_number", o.Number),
	)
	if err := s.events.OrderCreated(ctx, o); err != nil {
		lg.Error("publish order-created", zap.Error(err))
	}
	if o.Customer.Phone != "" {
		if err := s.jobs.EnqueueLoyaltyAccrual(ctx, o); err != nil {
			lg.Error("enqueue loyalty accrual", zap.Error(err))
		}
	}
	if o.Customer.Email != "" {
		if err := s.jobs.EnqueueConfirmationEmail(ctx, o); err != nil {
			lg.Error("enqueue confirmation email", zap.Error(err))
		}
	}
}

// resolveMenuItems batch-fetches the requested catalog entries and checks
// every one exists and is available.
func (s *Service) resolveMenuItems(ctx context.Context, lines []LineRequest) (map[string]menu.Item, error) {
	ids := make([]string, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	for _, lr := range lines {
		if _, ok := seen[lr.MenuItemID]; ok {
			continue
		}
		seen[lr.MenuItemID] = struct{}{}
		ids = append(ids, lr.MenuItemID)
	}

	fetched, err := s.menus.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get menu items")
	}
	items := make(map[string]menu.Item, len(fetched))
	for _, item := range fetched {
		items[item.ID] = item
	}

	for _, lr := range lines {
		item, ok := items[lr.MenuItemID]
		if !ok {
			return nil, &NotFoundError{Entity: "menu item", ID: lr.MenuItemID}
		}
		if !item.Available {
			return nil, &ValidationError{Field: "lines", Reason: item.Name + " is not available"}
		}
	}
	return items, nil
}

// buildLines snapshots name and price per requested line.
func buildLines(reqs []LineRequest, items map[string]menu.Item) []Line {
	lines := make([]Line, len(reqs))
	for i, lr := range reqs {
		item := items[lr.MenuItemID]
		lines[i] = Line{
			MenuItemID:    lr.MenuItemID,
			Name:          item.Name,
			Quantity:      lr.Quantity,
			UnitPrice:     item.BasePrice,
			Customization: lr.Customization,
		}
	}
	return lines
}

// buildRequirements flattens every line's ingredient list into one
// requirement set for the whole order, scaled by line quantity. The
// ledger merges duplicates before decrementing.
func buildRequirements(reqs []LineRequest, items map[string]menu.Item) []inventory.Requirement {
	var out []inventory.Requirement
	for _, lr := range reqs {
		qty := decimal.NewFromInt(int64(lr.Quantity))
		for _, ing := range items[lr.MenuItemID].Ingredients {
			out = append(out, inventory.Requirement{
				ItemID:   ing.InventoryItemID,
				Quantity: ing.Quantity.Mul(qty),
			})
		}
	}
	return out
}

func validateCreate(req CreateRequest) error {
	if req.StoreID == "" {
		return &ValidationError{Field: "store_id", Reason: "required"}
	}
	if len(req.Lines) == 0 {
		return &ValidationError{Field: "lines", Reason: "at least one item required"}
	}
	for _, lr := range req.Lines {
		if lr.MenuItemID == "" {
			return &ValidationError{Field: "lines", Reason: "menu item id required"}
		}
		if lr.Quantity < 1 {
			return &ValidationError{Field: "lines", Reason: "quantity must be at least 1"}
		}
	}
	if !req.Type.Valid() {
		return &ValidationError{Field: "order_type", Reason: "unknown order type"}
	}
	if !req.PaymentMethod.Valid() {
		return &ValidationError{Field: "payment_method", Reason: "unknown payment method"}
	}
	if req.Discount.IsNegative() {
		return &ValidationError{Field: "discount", Reason: "must not be negative"}
	}
	if req.Type == TypeDelivery && req.Customer.Phone == "" {
		return &ValidationError{Field: "customer.phone", Reason: "required for delivery orders"}
	}
	return nil
}

// UpdateStatus applies a lifecycle transition, optionally assigning staff
// and appending notes, then notifies listeners.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, status Status, actorID, notes string) (*Order, error) {
	if !status.Valid() {
		return nil, &ValidationError{Field: "status", Reason: "unknown status"}
	}

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !s.cfg.PermissiveTransitions && !o.CanTransition(status) {
		return nil, &TransitionError{From: o.Status, To: status}
	}

	o.Status = status
	if actorID != "" {
		o.AssignedTo = actorID
	}
	if notes != "" {
		o.Notes = notes
	}
	o.UpdatedAt = s.now()

	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}

	lg := zctx.From(ctx).With(zap.String("order_id", o.ID), zap.String("status", string(status)))
	if err := s.events.OrderUpdated(ctx, o); err != nil {
		lg.Error("publish order-updated", zap.Error(err))
	}
	if o.Customer.Email != "" {
		if err := s.jobs.EnqueueStatusEmail(ctx, o, status); err != nil {
			lg.Error("enqueue status email", zap.Error(err))
		}
	}
	return o, nil
}

// UpdatePaymentStatus records a payment state change, optionally with the
// method and gateway payment id.
func (s *Service) UpdatePaymentStatus(ctx context.Context, orderID string, status PaymentStatus, method PaymentMethod, paymentID string) (*Order, error) {
	if !status.Valid() {
		return nil, &ValidationError{Field: "payment_status", Reason: "unknown payment status"}
	}
	if method != "" && !method.Valid() {
		return nil, &ValidationError{Field: "payment_method", Reason: "unknown payment method"}
	}

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	o.PaymentStatus = status
	if method != "" {
		o.PaymentMethod = method
	}
	if paymentID != "" {
		o.PaymentDetails = PaymentDetails{PaymentID: paymentID, Gateway: string(method)}
	}
	o.UpdatedAt = s.now()

	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}
	return o, nil
}

// Get fetches one order by id.
func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	return s.orders.GetByID(ctx, orderID)
}

// DefaultPageSize is used when a listing request does not set one.
const DefaultPageSize = 50

// List returns a store's orders, newest first.
func (s *Service) List(ctx context.Context, storeID string, filter ListFilter) (*Page, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = DefaultPageSize
	}
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, &ValidationError{Field: "status", Reason: "unknown status " + string(st)}
		}
	}
	return s.orders.List(ctx, storeID, filter)
}

// ParseStatusFilter parses a single status or a comma-separated set, as
// accepted by the listing endpoint. Empty input means no filter.
func ParseStatusFilter(raw string) []Status {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	statuses := make([]Status, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			statuses = append(statuses, Status(p))
		}
	}
	return statuses
}
