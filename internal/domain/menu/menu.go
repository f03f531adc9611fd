// Package menu models the sellable catalog and its ingredient requirements.
package menu

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested menu item does not exist.
var ErrNotFound = errors.New("menu item not found")

// DefaultPreparationMinutes is the prep time assumed when none is set.
const DefaultPreparationMinutes = 15

// Category classifies a menu item.
type Category string

const (
	CategoryPizza    Category = "pizza"
	CategorySides    Category = "sides"
	CategoryDrinks   Category = "drinks"
	CategoryDesserts Category = "desserts"
	CategoryCombos   Category = "combos"
)

// Size enumerates portion sizes; SizeNone applies to unsized items.
type Size string

const (
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
	SizeFamily Size = "family"
	SizeNone   Size = "none"
)

// Ingredient links a menu item to the inventory it consumes per unit sold.
// The order of the list is preserved; reservation walks it as given.
type Ingredient struct {
	InventoryItemID string          `json:"inventory_item_id"`
	Quantity        decimal.Decimal `json:"quantity"`
}

// CustomizationOptions lists the choices a customer may pick per item.
type CustomizationOptions struct {
	Crusts   []string `json:"crusts,omitempty"`
	Toppings []string `json:"toppings,omitempty"`
	Extras   []string `json:"extras,omitempty"`
}

// Item is a sellable catalog entry. Identity is the name.
type Item struct {
	ID              string
	Name            string
	Description     string
	Category        Category
	Size            Size
	BasePrice       decimal.Decimal
	Image           string
	Ingredients     []Ingredient
	Options         CustomizationOptions
	Available       bool
	PreparationTime int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewItem constructs an Item with catalog defaults applied explicitly.
func NewItem(id, name string, category Category, basePrice decimal.Decimal) *Item {
	return &Item{
		ID:              id,
		Name:            name,
		Category:        category,
		Size:            SizeNone,
		BasePrice:       basePrice,
		Available:       true,
		PreparationTime: DefaultPreparationMinutes,
	}
}

// Filter narrows a catalog listing.
type Filter struct {
	Category  Category
	Available *bool
	Search    string
}

// Repository defines persistence operations for the catalog.
type Repository interface {
	Create(ctx context.Context, item *Item) error
	GetByID(ctx context.Context, id string) (*Item, error)
	GetByIDs(ctx context.Context, ids []string) ([]Item, error)
	List(ctx context.Context, filter Filter) ([]Item, error)
	SetAvailability(ctx context.Context, id string, available bool) error
}
