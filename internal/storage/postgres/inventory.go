package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/pizza-ops/internal/domain/inventory"
)

var _ inventory.Repository = (*InventoryRepository)(nil)

// InventoryRepository implements inventory.Repository backed by PostgreSQL.
type InventoryRepository struct {
	pool *pgxpool.Pool
}

// NewInventoryRepository returns an InventoryRepository that uses the given
// pool.
func NewInventoryRepository(pool *pgxpool.Pool) *InventoryRepository {
	return &InventoryRepository{pool: pool}
}

const inventoryColumns = `id, store_id, name, category, unit, current_stock,
	minimum_stock, reorder_point, cost_per_unit, supplier, last_restocked,
	created_at, updated_at`

func scanInventoryItem(row pgx.Row) (*inventory.Item, error) {
	var it inventory.Item
	err := row.Scan(
		&it.ID, &it.StoreID, &it.Name, &it.Category, &it.Unit,
		&it.CurrentStock, &it.MinimumStock, &it.ReorderPoint,
		&it.CostPerUnit, &it.Supplier, &it.LastRestocked,
		&it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// Create persists a new inventory item.
func (r *InventoryRepository) Create(ctx context.Context, item *inventory.Item) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO inventory_items (id, store_id, name, category, unit,
			current_stock, minimum_stock, reorder_point, cost_per_unit,
			supplier, last_restocked)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		item.ID, item.StoreID, item.Name, item.Category, item.Unit,
		item.CurrentStock, item.MinimumStock, item.ReorderPoint,
		item.CostPerUnit, item.Supplier, item.LastRestocked,
	)
	if err != nil {
		return fmt.Errorf("creating inventory item %q: %w", item.Name, err)
	}
	return nil
}

// GetByID fetches one item. Returns inventory.NotFoundError when absent.
func (r *InventoryRepository) GetByID(ctx context.Context, id string) (*inventory.Item, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+inventoryColumns+` FROM inventory_items WHERE id = $1`, id)
	it, err := scanInventoryItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &inventory.NotFoundError{ItemID: id}
		}
		return nil, fmt.Errorf("fetching inventory item %q: %w", id, err)
	}
	return it, nil
}

// ListByStore returns all items of one store ordered by name.
func (r *InventoryRepository) ListByStore(ctx context.Context, storeID string) ([]inventory.Item, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+inventoryColumns+` FROM inventory_items WHERE store_id = $1 ORDER BY name`,
		storeID)
	if err != nil {
		return nil, fmt.Errorf("listing inventory for store %q: %w", storeID, err)
	}
	defer rows.Close()
	return collectInventoryItems(rows)
}

// ListBelowThreshold returns items where current stock is at or below
// minimum stock scaled by factor, most depleted first.
func (r *InventoryRepository) ListBelowThreshold(ctx context.Context, storeID string, factor decimal.Decimal) ([]inventory.Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+inventoryColumns+`
		FROM inventory_items
		WHERE store_id = $1 AND current_stock <= minimum_stock * $2
		ORDER BY current_stock / NULLIF(minimum_stock, 0) NULLS FIRST, name`,
		storeID, factor)
	if err != nil {
		return nil, fmt.Errorf("listing low stock for store %q: %w", storeID, err)
	}
	defer rows.Close()
	return collectInventoryItems(rows)
}

func collectInventoryItems(rows pgx.Rows) ([]inventory.Item, error) {
	var items []inventory.Item
	for rows.Next() {
		it, err := scanInventoryItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning inventory item: %w", err)
		}
		items = append(items, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating inventory items: %w", err)
	}
	return items, nil
}

// DecrementBatch subtracts each requirement inside one transaction. The
// UPDATE is conditional on sufficient stock; a miss rolls the whole batch
// back and reports the first failing item.
func (r *InventoryRepository) DecrementBatch(ctx context.Context, reqs []inventory.Requirement) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning decrement tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	for _, req := range reqs {
		tag, err := tx.Exec(ctx, `
			UPDATE inventory_items
			SET current_stock = current_stock - $2, updated_at = now()
			WHERE id = $1 AND current_stock >= $2`,
			req.ItemID, req.Quantity)
		if err != nil {
			return fmt.Errorf("decrementing item %q: %w", req.ItemID, err)
		}
		if tag.RowsAffected() == 0 {
			return r.insufficientStock(ctx, tx, req)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing decrement tx: %w", err)
	}
	return nil
}

// insufficientStock reads the failing item inside the open transaction so
// the reported availability matches what the UPDATE saw.
func (r *InventoryRepository) insufficientStock(ctx context.Context, tx pgx.Tx, req inventory.Requirement) error {
	var name string
	var available decimal.Decimal
	err := tx.QueryRow(ctx,
		`SELECT name, current_stock FROM inventory_items WHERE id = $1`,
		req.ItemID).Scan(&name, &available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &inventory.NotFoundError{ItemID: req.ItemID}
		}
		return fmt.Errorf("fetching item %q after failed decrement: %w", req.ItemID, err)
	}
	return &inventory.InsufficientStockError{
		ItemID:    req.ItemID,
		ItemName:  name,
		Requested: req.Quantity,
		Available: available,
	}
}

// IncrementBatch adds each requirement back inside one transaction.
func (r *InventoryRepository) IncrementBatch(ctx context.Context, reqs []inventory.Requirement) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning increment tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	for _, req := range reqs {
		tag, err := tx.Exec(ctx, `
			UPDATE inventory_items
			SET current_stock = current_stock + $2, updated_at = now()
			WHERE id = $1`,
			req.ItemID, req.Quantity)
		if err != nil {
			return fmt.Errorf("incrementing item %q: %w", req.ItemID, err)
		}
		if tag.RowsAffected() == 0 {
			return &inventory.NotFoundError{ItemID: req.ItemID}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing increment tx: %w", err)
	}
	return nil
}

// Restock adds quantity, stamps the restock time, and optionally updates
// the unit cost in a single statement.
func (r *InventoryRepository) Restock(ctx context.Context, id string, quantity decimal.Decimal, costPerUnit *decimal.Decimal, at time.Time) (*inventory.Item, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE inventory_items
		SET current_stock = current_stock + $2,
		    cost_per_unit = COALESCE($3, cost_per_unit),
		    last_restocked = $4,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+inventoryColumns,
		id, quantity, costPerUnit, at)
	it, err := scanInventoryItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &inventory.NotFoundError{ItemID: id}
		}
		return nil, fmt.Errorf("restocking item %q: %w", id, err)
	}
	return it, nil
}
