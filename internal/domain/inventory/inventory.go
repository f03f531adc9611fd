// Package inventory tracks per-store ingredient stock and implements the
// reservation ledger used during order fulfillment.
package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Category classifies an inventory item. The set is closed: storage and
// reporting assume one of these values.
type Category string

const (
	CategoryDough      Category = "dough"
	CategorySauce      Category = "sauce"
	CategoryCheese     Category = "cheese"
	CategoryToppings   Category = "toppings"
	CategoryMeat       Category = "meat"
	CategoryVegetables Category = "vegetables"
	CategoryBeverages  Category = "beverages"
	CategoryPackaging  Category = "packaging"
)

// Categories lists every valid inventory category.
func Categories() []Category {
	return []Category{
		CategoryDough,
		CategorySauce,
		CategoryCheese,
		CategoryToppings,
		CategoryMeat,
		CategoryVegetables,
		CategoryBeverages,
		CategoryPackaging,
	}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// reorderPointFactor derives the default reorder point from minimum stock.
var reorderPointFactor = decimal.NewFromFloat(1.5)

// Item is a single stocked ingredient. Identity is (store, name).
// CurrentStock never goes negative; all mutations go through the Ledger.
type Item struct {
	ID            string
	StoreID       string
	Name          string
	Category      Category
	Unit          string
	CurrentStock  decimal.Decimal
	MinimumStock  decimal.Decimal
	ReorderPoint  decimal.Decimal
	CostPerUnit   decimal.Decimal
	Supplier      string
	LastRestocked time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewItem constructs an Item with the derived reorder point. Derivation
// happens here, at construction, so it stays visible and testable rather
// than hidden in a persistence hook.
func NewItem(id, storeID, name string, category Category, unit string, currentStock, minimumStock, costPerUnit decimal.Decimal) *Item {
	return &Item{
		ID:           id,
		StoreID:      storeID,
		Name:         name,
		Category:     category,
		Unit:         unit,
		CurrentStock: currentStock,
		MinimumStock: minimumStock,
		ReorderPoint: minimumStock.Mul(reorderPointFactor),
		CostPerUnit:  costPerUnit,
	}
}

// Requirement is a quantity of one inventory item needed by an order.
type Requirement struct {
	ItemID   string
	Quantity decimal.Decimal
}

// InsufficientStockError reports the first item that could not cover its
// requirement. The reservation it belongs to is rolled back entirely.
type InsufficientStockError struct {
	ItemID    string
	ItemName  string
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %s, available %s",
		e.ItemName, e.Requested, e.Available)
}

// Repository defines persistence operations for inventory items.
//
// DecrementBatch and IncrementBatch must be atomic across the whole batch:
// either every adjustment applies or none do. DecrementBatch returns
// *InsufficientStockError if any item would go negative.
type Repository interface {
	Create(ctx context.Context, item *Item) error
	GetByID(ctx context.Context, id string) (*Item, error)
	ListByStore(ctx context.Context, storeID string) ([]Item, error)
	// ListBelowThreshold returns items where currentStock <= minimumStock * factor.
	ListBelowThreshold(ctx context.Context, storeID string, factor decimal.Decimal) ([]Item, error)
	DecrementBatch(ctx context.Context, reqs []Requirement) error
	IncrementBatch(ctx context.Context, reqs []Requirement) error
	// Restock atomically increments stock, stamps lastRestocked, and
	// optionally updates the unit cost.
	Restock(ctx context.Context, id string, quantity decimal.Decimal, costPerUnit *decimal.Decimal, at time.Time) (*Item, error)
}
