package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/pizza-ops/internal/domain/store"
)

var _ store.Repository = (*StoreRepository)(nil)

// StoreRepository implements store.Repository backed by PostgreSQL.
type StoreRepository struct {
	pool *pgxpool.Pool
}

// NewStoreRepository returns a StoreRepository that uses the given pool.
func NewStoreRepository(pool *pgxpool.Pool) *StoreRepository {
	return &StoreRepository{pool: pool}
}

const storeColumns = `id, name, address, phone, email, hours, active,
	manager_id, settings, created_at, updated_at`

// Create persists a new store. Address, hours and settings are serialized
// to JSONB columns.
func (r *StoreRepository) Create(ctx context.Context, s *store.Store) error {
	address, err := json.Marshal(s.Address)
	if err != nil {
		return fmt.Errorf("marshaling store address: %w", err)
	}
	hours, err := json.Marshal(s.Hours)
	if err != nil {
		return fmt.Errorf("marshaling store hours: %w", err)
	}
	settings, err := json.Marshal(s.Settings)
	if err != nil {
		return fmt.Errorf("marshaling store settings: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO stores (id, name, address, phone, email, hours, active, manager_id, settings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.Name, address, s.Phone, s.Email, hours, s.Active, s.ManagerID, settings,
	)
	if err != nil {
		return fmt.Errorf("creating store %q: %w", s.ID, err)
	}
	return nil
}

// GetByID fetches one store. Returns store.ErrNotFound when absent.
func (r *StoreRepository) GetByID(ctx context.Context, id string) (*store.Store, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+storeColumns+` FROM stores WHERE id = $1`, id)
	s, err := scanStore(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("fetching store %q: %w", id, err)
	}
	return s, nil
}

// List returns every store ordered by name.
func (r *StoreRepository) List(ctx context.Context) ([]store.Store, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+storeColumns+` FROM stores ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing stores: %w", err)
	}
	defer rows.Close()

	var stores []store.Store
	for rows.Next() {
		s, err := scanStore(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning store: %w", err)
		}
		stores = append(stores, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stores: %w", err)
	}
	return stores, nil
}

func scanStore(row pgx.Row) (*store.Store, error) {
	var (
		s        store.Store
		address  []byte
		hours    []byte
		settings []byte
	)
	err := row.Scan(
		&s.ID, &s.Name, &address, &s.Phone, &s.Email, &hours,
		&s.Active, &s.ManagerID, &settings, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(address, &s.Address); err != nil {
		return nil, fmt.Errorf("unmarshaling store address: %w", err)
	}
	if err := json.Unmarshal(hours, &s.Hours); err != nil {
		return nil, fmt.Errorf("unmarshaling store hours: %w", err)
	}
	if err := json.Unmarshal(settings, &s.Settings); err != nil {
		return nil, fmt.Errorf("unmarshaling store settings: %w", err)
	}
	return &s, nil
}
