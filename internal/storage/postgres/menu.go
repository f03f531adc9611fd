package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/pizza-ops/internal/domain/menu"
)

var _ menu.Repository = (*MenuRepository)(nil)

// MenuRepository implements menu.Repository backed by PostgreSQL.
type MenuRepository struct {
	pool *pgxpool.Pool
}

// NewMenuRepository returns a MenuRepository that uses the given pool.
func NewMenuRepository(pool *pgxpool.Pool) *MenuRepository {
	return &MenuRepository{pool: pool}
}

const menuColumns = `id, name, description, category, size, base_price,
	image, ingredients, options, available, preparation_time, created_at,
	updated_at`

// Create persists a new catalog item. Ingredients and customization
// options live in JSONB columns.
func (r *MenuRepository) Create(ctx context.Context, item *menu.Item) error {
	ingredients, err := json.Marshal(item.Ingredients)
	if err != nil {
		return fmt.Errorf("marshaling menu ingredients: %w", err)
	}
	options, err := json.Marshal(item.Options)
	if err != nil {
		return fmt.Errorf("marshaling menu options: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO menu_items (id, name, description, category, size,
			base_price, image, ingredients, options, available, preparation_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		item.ID, item.Name, item.Description, item.Category, item.Size,
		item.BasePrice, item.Image, ingredients, options, item.Available,
		item.PreparationTime,
	)
	if err != nil {
		return fmt.Errorf("creating menu item %q: %w", item.Name, err)
	}
	return nil
}

// GetByID fetches one catalog item. Returns menu.ErrNotFound when absent.
func (r *MenuRepository) GetByID(ctx context.Context, id string) (*menu.Item, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+menuColumns+` FROM menu_items WHERE id = $1`, id)
	item, err := scanMenuItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, menu.ErrNotFound
		}
		return nil, fmt.Errorf("fetching menu item %q: %w", id, err)
	}
	return item, nil
}

// GetByIDs fetches a batch of catalog items in one round trip. Missing ids
// are simply absent from the result; the caller decides whether that is an
// error.
func (r *MenuRepository) GetByIDs(ctx context.Context, ids []string) ([]menu.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+menuColumns+` FROM menu_items WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("fetching menu items: %w", err)
	}
	defer rows.Close()
	return collectMenuItems(rows)
}

// List returns catalog items matching the filter, ordered by category then
// name.
func (r *MenuRepository) List(ctx context.Context, filter menu.Filter) ([]menu.Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+menuColumns+`
		FROM menu_items
		WHERE ($1 = '' OR category = $1)
		  AND ($2::boolean IS NULL OR available = $2)
		  AND ($3 = '' OR name ILIKE '%' || $3 || '%' OR description ILIKE '%' || $3 || '%')
		ORDER BY category, name`,
		string(filter.Category), filter.Available, filter.Search)
	if err != nil {
		return nil, fmt.Errorf("listing menu items: %w", err)
	}
	defer rows.Close()
	return collectMenuItems(rows)
}

// SetAvailability toggles the availability flag of one item.
func (r *MenuRepository) SetAvailability(ctx context.Context, id string, available bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE menu_items SET available = $2, updated_at = now() WHERE id = $1`,
		id, available)
	if err != nil {
		return fmt.Errorf("updating menu item %q availability: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return menu.ErrNotFound
	}
	return nil
}

func collectMenuItems(rows pgx.Rows) ([]menu.Item, error) {
	var items []menu.Item
	for rows.Next() {
		item, err := scanMenuItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning menu item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating menu items: %w", err)
	}
	return items, nil
}

func scanMenuItem(row pgx.Row) (*menu.Item, error) {
	var (
		item        menu.Item
		ingredients []byte
		options     []byte
	)
	err := row.Scan(
		&item.ID, &item.Name, &item.Description, &item.Category, &item.Size,
		&item.BasePrice, &item.Image, &ingredients, &options,
		&item.Available, &item.PreparationTime, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(ingredients, &item.Ingredients); err != nil {
		return nil, fmt.Errorf("unmarshaling menu ingredients: %w", err)
	}
	if err := json.Unmarshal(options, &item.Options); err != nil {
		return nil, fmt.Errorf("unmarshaling menu options: %w", err)
	}
	return &item, nil
}
