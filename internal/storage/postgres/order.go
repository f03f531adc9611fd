package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/pizza-ops/internal/domain/loyalty"
	"github.com/xenking/pizza-ops/internal/domain/order"
)

var (
	_ order.Repository   = (*OrderRepository)(nil)
	_ loyalty.PointsStore = (*OrderRepository)(nil)
)

// pgUniqueViolation is the SQLSTATE for unique constraint violations.
const pgUniqueViolation = "23505"

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

const orderColumns = `id, order_number, store_id, customer, lines, subtotal,
	tax, delivery_fee, discount, total, order_type, status, payment_status,
	payment_method, payment_details, assigned_to, estimated_delivery, notes,
	preparation_time, loyalty_points_earned, loyalty_points_redeemed,
	created_at, updated_at`

// Create persists a new order. A collision on the order number unique
// constraint surfaces as order.ErrDuplicateNumber so the caller can mint a
// fresh number and retry.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	customer, err := json.Marshal(o.Customer)
	if err != nil {
		return fmt.Errorf("marshaling order customer: %w", err)
	}
	lines, err := json.Marshal(o.Lines)
	if err != nil {
		return fmt.Errorf("marshaling order lines: %w", err)
	}
	payment, err := json.Marshal(o.PaymentDetails)
	if err != nil {
		return fmt.Errorf("marshaling payment details: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO orders (id, order_number, store_id, customer, lines,
			subtotal, tax, delivery_fee, discount, total, order_type, status,
			payment_status, payment_method, payment_details, assigned_to,
			estimated_delivery, notes, preparation_time,
			loyalty_points_earned, loyalty_points_redeemed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21)
		RETURNING created_at, updated_at`,
		o.ID, o.Number, o.StoreID, customer, lines,
		o.Subtotal, o.Tax, o.DeliveryFee, o.Discount, o.Total,
		o.Type, o.Status, o.PaymentStatus, o.PaymentMethod, payment,
		o.AssignedTo, o.EstimatedDelivery, o.Notes, o.PreparationTime,
		o.LoyaltyPointsEarned, o.LoyaltyPointsRedeemed,
	)
	if err := row.Scan(&o.CreatedAt, &o.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == "orders_order_number_key" {
			return order.ErrDuplicateNumber
		}
		return fmt.Errorf("creating order %q: %w", o.Number, err)
	}
	return nil
}

// GetByID fetches one order.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &order.NotFoundError{Entity: "order", ID: id}
		}
		return nil, fmt.Errorf("fetching order %q: %w", id, err)
	}
	return o, nil
}

// Update rewrites the mutable fields of an existing order.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	customer, err := json.Marshal(o.Customer)
	if err != nil {
		return fmt.Errorf("marshaling order customer: %w", err)
	}
	payment, err := json.Marshal(o.PaymentDetails)
	if err != nil {
		return fmt.Errorf("marshaling payment details: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET customer = $2, status = $3, payment_status = $4,
		    payment_details = $5, assigned_to = $6, estimated_delivery = $7,
		    notes = $8, loyalty_points_earned = $9,
		    loyalty_points_redeemed = $10, updated_at = now()
		WHERE id = $1`,
		o.ID, customer, o.Status, o.PaymentStatus, payment,
		o.AssignedTo, o.EstimatedDelivery, o.Notes,
		o.LoyaltyPointsEarned, o.LoyaltyPointsRedeemed,
	)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return &order.NotFoundError{Entity: "order", ID: o.ID}
	}
	return nil
}

// UpdateLoyaltyPointsEarned records accrued points without touching any
// other column. The accrual job holds a creation-time snapshot that may
// be stale by the time it runs; a full-row write here could revert a
// transition committed in between.
func (r *OrderRepository) UpdateLoyaltyPointsEarned(ctx context.Context, orderID string, points int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET loyalty_points_earned = $2, updated_at = now()
		WHERE id = $1`,
		orderID, points,
	)
	if err != nil {
		return fmt.Errorf("updating loyalty points for order %q: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return &order.NotFoundError{Entity: "order", ID: orderID}
	}
	return nil
}

// List returns one page of a store's orders, newest first, optionally
// filtered by status.
func (r *OrderRepository) List(ctx context.Context, storeID string, filter order.ListFilter) (*order.Page, error) {
	statuses := make([]string, len(filter.Statuses))
	for i, s := range filter.Statuses {
		statuses[i] = string(s)
	}

	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM orders
		WHERE store_id = $1 AND (cardinality($2::text[]) = 0 OR status = ANY($2))`,
		storeID, statuses).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("counting orders for store %q: %w", storeID, err)
	}

	offset := (filter.Page - 1) * filter.PageSize
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE store_id = $1 AND (cardinality($2::text[]) = 0 OR status = ANY($2))
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`,
		storeID, statuses, filter.PageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("listing orders for store %q: %w", storeID, err)
	}
	defer rows.Close()

	orders, err := collectOrders(rows)
	if err != nil {
		return nil, err
	}

	totalPages := total / filter.PageSize
	if total%filter.PageSize != 0 {
		totalPages++
	}
	return &order.Page{
		Orders:     orders,
		Total:      total,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalPages: totalPages,
	}, nil
}

// ListByDateRange returns all orders of one store created in [from, to),
// oldest first. An empty storeID spans every store.
func (r *OrderRepository) ListByDateRange(ctx context.Context, storeID string, from, to time.Time) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE ($1 = '' OR store_id = $1) AND created_at >= $2 AND created_at < $3
		ORDER BY created_at`,
		storeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("listing orders by date range: %w", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

func collectOrders(rows pgx.Rows) ([]order.Order, error) {
	var orders []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating orders: %w", err)
	}
	return orders, nil
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var (
		o        order.Order
		customer []byte
		lines    []byte
		payment  []byte
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.StoreID, &customer, &lines,
		&o.Subtotal, &o.Tax, &o.DeliveryFee, &o.Discount, &o.Total,
		&o.Type, &o.Status, &o.PaymentStatus, &o.PaymentMethod, &payment,
		&o.AssignedTo, &o.EstimatedDelivery, &o.Notes,
		&o.PreparationTime, &o.LoyaltyPointsEarned, &o.LoyaltyPointsRedeemed,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(customer, &o.Customer); err != nil {
		return nil, fmt.Errorf("unmarshaling order customer: %w", err)
	}
	if err := json.Unmarshal(lines, &o.Lines); err != nil {
		return nil, fmt.Errorf("unmarshaling order lines: %w", err)
	}
	if err := json.Unmarshal(payment, &o.PaymentDetails); err != nil {
		return nil, fmt.Errorf("unmarshaling payment details: %w", err)
	}
	return &o, nil
}
