// Package store models a retail location and its pricing settings.
package store

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested store does not exist.
var ErrNotFound = errors.New("store not found")

// Address is a postal address.
type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zip_code,omitempty"`
	Country string `json:"country,omitempty"`
}

// Hours holds daily opening hours as HH:MM strings.
type Hours struct {
	Open  string `json:"open,omitempty"`
	Close string `json:"close,omitempty"`
}

// Settings carries per-store pricing configuration consumed by the
// pricing calculator.
type Settings struct {
	TaxRate     decimal.Decimal `json:"tax_rate"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	Currency    string          `json:"currency"`
}

// DefaultSettings returns the system-wide pricing defaults: 8% tax and a
// 2.99 delivery fee.
func DefaultSettings() Settings {
	return Settings{
		TaxRate:     decimal.NewFromFloat(0.08),
		DeliveryFee: decimal.NewFromFloat(2.99),
		Currency:    "USD",
	}
}

// Store is one retail location.
type Store struct {
	ID        string
	Name      string
	Address   Address
	Phone     string
	Email     string
	Hours     Hours
	Active    bool
	ManagerID string
	Settings  Settings
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository defines persistence operations for stores.
type Repository interface {
	Create(ctx context.Context, s *Store) error
	GetByID(ctx context.Context, id string) (*Store, error)
	List(ctx context.Context) ([]Store, error)
}
