package inventory

import (
	"context"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for ledger input validation.
var (
	ErrEmptyRequirements  = errors.New("requirements required")
	ErrNonPositiveAmount  = errors.New("quantity must be greater than 0")
	ErrNegativeCost       = errors.New("cost per unit must not be negative")
	ErrUnknownCategory    = errors.New("unknown inventory category")
	ErrNegativeStockLevel = errors.New("stock levels must not be negative")
)

// NotFoundError indicates an unknown inventory item id.
type NotFoundError struct {
	ItemID string
}

func (e *NotFoundError) Error() string {
	return "inventory item " + e.ItemID + " not found"
}

// Urgency ranks a restock suggestion.
type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
)

// Suggestion recommends a restock order for one item.
type Suggestion struct {
	Item           Item
	Urgency        Urgency
	SuggestedOrder decimal.Decimal
	EstimatedCost  decimal.Decimal
}

// Valuation summarizes the monetary value of a store's stock.
type Valuation struct {
	TotalValue    decimal.Decimal
	ItemCount     int
	LowStockCount int
	Categories    map[Category]CategorySummary
}

// CategorySummary breaks a valuation down for one category.
type CategorySummary struct {
	ItemCount     int
	TotalValue    decimal.Decimal
	AverageCost   decimal.Decimal
	LowStockCount int
}

var (
	one             = decimal.NewFromInt(1)
	criticalFactor  = decimal.NewFromFloat(1.5)
	highOrderFactor = decimal.NewFromInt(3)
	medOrderFactor  = decimal.NewFromInt(2)
)

// Ledger performs all stock mutations and stock-level queries. It owns the
// currentStock >= 0 invariant: reservations are all-or-nothing across the
// full requirement set, delegating atomicity to the repository batch ops.
type Ledger struct {
	repo Repository
}

// NewLedger creates a Ledger backed by the given repository.
func NewLedger(repo Repository) *Ledger {
	return &Ledger{repo: repo}
}

// AddItem validates and persists a new inventory item.
func (l *Ledger) AddItem(ctx context.Context, item *Item) error {
	if !item.Category.Valid() {
		return ErrUnknownCategory
	}
	if item.CurrentStock.IsNegative() || item.MinimumStock.IsNegative() {
		return ErrNegativeStockLevel
	}
	if item.CostPerUnit.IsNegative() {
		return ErrNegativeCost
	}
	if err := l.repo.Create(ctx, item); err != nil {
		return errors.Wrap(err, "create item")
	}
	return nil
}

// CheckAvailable reports whether the item's committed stock covers quantity.
func (l *Ledger) CheckAvailable(ctx context.Context, itemID string, quantity decimal.Decimal) (bool, error) {
	item, err := l.repo.GetByID(ctx, itemID)
	if err != nil {
		return false, err
	}
	return item.CurrentStock.GreaterThanOrEqual(quantity), nil
}

// Reserve decrements stock for the full requirement set as one atomic
// operation. Duplicate item ids are merged first so a single conditional
// decrement per item covers the combined demand. On failure no stock
// changes and the short item is reported via *InsufficientStockError.
func (l *Ledger) Reserve(ctx context.Context, reqs []Requirement) error {
	merged, err := MergeRequirements(reqs)
	if err != nil {
		return err
	}
	return l.repo.DecrementBatch(ctx, merged)
}

// Release returns previously reserved stock, compensating a reservation
// whose order could not be persisted.
func (l *Ledger) Release(ctx context.Context, reqs []Requirement) error {
	merged, err := MergeRequirements(reqs)
	if err != nil {
		return err
	}
	return l.repo.IncrementBatch(ctx, merged)
}

// MergeRequirements combines duplicate item ids, preserving first-seen
// order, and rejects non-positive quantities.
func MergeRequirements(reqs []Requirement) ([]Requirement, error) {
	if len(reqs) == 0 {
		return nil, ErrEmptyRequirements
	}
	index := make(map[string]int, len(reqs))
	merged := make([]Requirement, 0, len(reqs))
	for _, r := range reqs {
		if !r.Quantity.IsPositive() {
			return nil, ErrNonPositiveAmount
		}
		if i, ok := index[r.ItemID]; ok {
			merged[i].Quantity = merged[i].Quantity.Add(r.Quantity)
			continue
		}
		index[r.ItemID] = len(merged)
		merged = append(merged, r)
	}
	return merged, nil
}

// Restock adds quantity to an item's stock and stamps lastRestocked.
// A nil costPerUnit keeps the current unit cost.
func (l *Ledger) Restock(ctx context.Context, itemID string, quantity decimal.Decimal, costPerUnit *decimal.Decimal) (*Item, error) {
	if !quantity.IsPositive() {
		return nil, ErrNonPositiveAmount
	}
	if costPerUnit != nil && costPerUnit.IsNegative() {
		return nil, ErrNegativeCost
	}
	item, err := l.repo.Restock(ctx, itemID, quantity, costPerUnit, time.Now().UTC())
	if err != nil {
		return nil, errors.Wrap(err, "restock")
	}
	return item, nil
}

// LowStock returns items at or below their minimum stock level.
func (l *Ledger) LowStock(ctx context.Context, storeID string) ([]Item, error) {
	return l.repo.ListBelowThreshold(ctx, storeID, one)
}

// CriticalStock returns items at or below 1.5x their minimum stock level.
func (l *Ledger) CriticalStock(ctx context.Context, storeID string) ([]Item, error) {
	return l.repo.ListBelowThreshold(ctx, storeID, criticalFactor)
}

// Valuation computes the store's total stock value and a per-category
// breakdown from a single batch fetch.
func (l *Ledger) Valuation(ctx context.Context, storeID string) (*Valuation, error) {
	items, err := l.repo.ListByStore(ctx, storeID)
	if err != nil {
		return nil, errors.Wrap(err, "list items")
	}

	v := &Valuation{
		TotalValue: decimal.Zero,
		ItemCount:  len(items),
		Categories: make(map[Category]CategorySummary),
	}
	costSums := make(map[Category]decimal.Decimal)
	for _, item := range items {
		value := item.CurrentStock.Mul(item.CostPerUnit)
		v.TotalValue = v.TotalValue.Add(value)

		cs := v.Categories[item.Category]
		cs.ItemCount++
		cs.TotalValue = cs.TotalValue.Add(value)
		costSums[item.Category] = costSums[item.Category].Add(item.CostPerUnit)
		if item.CurrentStock.LessThanOrEqual(item.MinimumStock) {
			cs.LowStockCount++
			v.LowStockCount++
		}
		v.Categories[item.Category] = cs
	}
	for cat, cs := range v.Categories {
		cs.AverageCost = costSums[cat].Div(decimal.NewFromInt(int64(cs.ItemCount))).Round(2)
		v.Categories[cat] = cs
	}
	return v, nil
}

// RestockSuggestions ranks items needing replenishment: anything at or
// below 1.5x minimum qualifies, ordered by urgency then by how little
// stock remains.
func (l *Ledger) RestockSuggestions(ctx context.Context, storeID string) ([]Suggestion, error) {
	items, err := l.repo.ListBelowThreshold(ctx, storeID, criticalFactor)
	if err != nil {
		return nil, errors.Wrap(err, "list items")
	}

	suggestions := make([]Suggestion, 0, len(items))
	for _, item := range items {
		urgency := UrgencyMedium
		orderFactor := medOrderFactor
		if item.CurrentStock.LessThanOrEqual(item.MinimumStock) {
			urgency = UrgencyHigh
			orderFactor = highOrderFactor
		}
		suggested := item.MinimumStock.Mul(orderFactor)
		suggestions = append(suggestions, Suggestion{
			Item:           item,
			Urgency:        urgency,
			SuggestedOrder: suggested,
			EstimatedCost:  suggested.Mul(item.CostPerUnit).Round(2),
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].Urgency != suggestions[j].Urgency {
			return suggestions[i].Urgency == UrgencyHigh
		}
		return suggestions[i].Item.CurrentStock.LessThan(suggestions[j].Item.CurrentStock)
	})
	return suggestions, nil
}
