// Command seed-db loads a fixture file of stores, menu items, and
// inventory into a fresh database. It runs migrations first, so pointing
// it at an empty database is enough to get a working environment.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/pizza-ops/internal/domain/inventory"
	"github.com/xenking/pizza-ops/internal/domain/menu"
	"github.com/xenking/pizza-ops/internal/domain/store"
	"github.com/xenking/pizza-ops/internal/storage/postgres"
)

type fixtureJSON struct {
	Stores []storeJSON `json:"stores"`
	Menu   []menuJSON  `json:"menu"`
}

type storeJSON struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Address   store.Address   `json:"address"`
	Phone     string          `json:"phone"`
	Email     string          `json:"email"`
	Hours     store.Hours     `json:"hours"`
	Settings  *store.Settings `json:"settings"`
	Inventory []inventoryJSON `json:"inventory"`
}

type inventoryJSON struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	Unit         string          `json:"unit"`
	CurrentStock decimal.Decimal `json:"current_stock"`
	MinimumStock decimal.Decimal `json:"minimum_stock"`
	CostPerUnit  decimal.Decimal `json:"cost_per_unit"`
	Supplier     string          `json:"supplier"`
}

type menuJSON struct {
	ID              string                    `json:"id"`
	Name            string                    `json:"name"`
	Description     string                    `json:"description"`
	Category        string                    `json:"category"`
	Size            string                    `json:"size"`
	BasePrice       decimal.Decimal           `json:"base_price"`
	Image           string                    `json:"image"`
	Ingredients     []menu.Ingredient         `json:"ingredients"`
	Options         menu.CustomizationOptions `json:"options"`
	PreparationTime int                       `json:"preparation_time"`
}

func main() {
	var (
		databaseURL string
		fixtureFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&fixtureFile, "fixture-file", "db/seed/fixture.json", "path to seed fixture JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, fixtureFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, fixtureFile string) error {
	slog.Info("reading fixture file", slog.String("path", fixtureFile))

	data, err := os.ReadFile(fixtureFile)
	if err != nil {
		return errors.Wrap(err, "read fixture file")
	}
	var fixture fixtureJSON
	if err := json.Unmarshal(data, &fixture); err != nil {
		return errors.Wrap(err, "parse fixture JSON")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedStores(ctx, pool, fixture.Stores); err != nil {
		return errors.Wrap(err, "seed stores")
	}
	if err := seedMenu(ctx, pool, fixture.Menu); err != nil {
		return errors.Wrap(err, "seed menu")
	}

	return nil
}

func seedStores(ctx context.Context, pool *pgxpool.Pool, stores []storeJSON) error {
	storeRepo := postgres.NewStoreRepository(pool)
	ledger := inventory.NewLedger(postgres.NewInventoryRepository(pool))

	slog.Info("seeding stores", slog.Int("count", len(stores)))

	for _, sj := range stores {
		st := &store.Store{
			ID:       orUUID(sj.ID),
			Name:     sj.Name,
			Address:  sj.Address,
			Phone:    sj.Phone,
			Email:    sj.Email,
			Hours:    sj.Hours,
			Active:   true,
			Settings: store.DefaultSettings(),
		}
		if sj.Settings != nil {
			st.Settings = *sj.Settings
		}
		if err := storeRepo.Create(ctx, st); err != nil {
			return errors.Wrapf(err, "create store %s", st.Name)
		}
		slog.Info("created store", slog.String("id", st.ID), slog.String("name", st.Name))

		for _, ij := range sj.Inventory {
			item := inventory.NewItem(
				orUUID(ij.ID), st.ID, ij.Name, inventory.Category(ij.Category),
				ij.Unit, ij.CurrentStock, ij.MinimumStock, ij.CostPerUnit,
			)
			item.Supplier = ij.Supplier
			if err := ledger.AddItem(ctx, item); err != nil {
				return errors.Wrapf(err, "create inventory item %s", ij.Name)
			}
		}
		slog.Info("created inventory", slog.String("store_id", st.ID), slog.Int("items", len(sj.Inventory)))
	}
	return nil
}

func seedMenu(ctx context.Context, pool *pgxpool.Pool, items []menuJSON) error {
	menuRepo := postgres.NewMenuRepository(pool)

	slog.Info("seeding menu", slog.Int("count", len(items)))

	for _, mj := range items {
		item := menu.NewItem(orUUID(mj.ID), mj.Name, menu.Category(mj.Category), mj.BasePrice)
		item.Description = mj.Description
		if mj.Size != "" {
			item.Size = menu.Size(mj.Size)
		}
		item.Image = mj.Image
		item.Ingredients = mj.Ingredients
		item.Options = mj.Options
		if mj.PreparationTime > 0 {
			item.PreparationTime = mj.PreparationTime
		}
		if err := menuRepo.Create(ctx, item); err != nil {
			return errors.Wrapf(err, "create menu item %s", mj.Name)
		}
		slog.Info("created menu item", slog.String("id", item.ID), slog.String("name", item.Name))
	}
	return nil
}

func orUUID(id string) string {
	if id != "" {
		return id
	}
	return uuid.New().String()
}
