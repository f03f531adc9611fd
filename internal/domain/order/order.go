// Package order implements the order-fulfillment core: pricing, order
// number assignment, and the lifecycle state machine around creation and
// status transitions.
package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the fulfillment state of an order.
type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusPreparing      Status = "preparing"
	StatusBaking         Status = "baking"
	StatusQualityCheck   Status = "quality_check"
	StatusReady          Status = "ready"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

// Statuses lists every order status in lifecycle order.
func Statuses() []Status {
	return []Status{
		StatusPending,
		StatusConfirmed,
		StatusPreparing,
		StatusBaking,
		StatusQualityCheck,
		StatusReady,
		StatusOutForDelivery,
		StatusDelivered,
		StatusCancelled,
	}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range Statuses() {
		if s == known {
			return true
		}
	}
	return false
}

// successor maps each status to the next step in the fulfillment pipeline.
var successor = map[Status]Status{
	StatusPending:        StatusConfirmed,
	StatusConfirmed:      StatusPreparing,
	StatusPreparing:      StatusBaking,
	StatusBaking:         StatusQualityCheck,
	StatusQualityCheck:   StatusReady,
	StatusReady:          StatusOutForDelivery,
	StatusOutForDelivery: StatusDelivered,
}

// PaymentStatus is the payment state of an order.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// Valid reports whether p is a known payment status.
func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// PaymentMethod is how an order is paid.
type PaymentMethod string

const (
	PayCash   PaymentMethod = "cash"
	PayCard   PaymentMethod = "card"
	PayOnline PaymentMethod = "online"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PayCash, PayCard, PayOnline:
		return true
	}
	return false
}

// Type distinguishes how the order reaches the customer.
type Type string

const (
	TypeDineIn   Type = "dine-in"
	TypeTakeaway Type = "takeaway"
	TypeDelivery Type = "delivery"
)

// Valid reports whether t is a known order type.
func (t Type) Valid() bool {
	switch t {
	case TypeDineIn, TypeTakeaway, TypeDelivery:
		return true
	}
	return false
}

// Customer identifies who placed the order. Phone triggers loyalty
// accrual, email triggers confirmation and status mails; both optional.
type Customer struct {
	Name    string  `json:"name,omitempty"`
	Phone   string  `json:"phone,omitempty"`
	Email   string  `json:"email,omitempty"`
	Address Address `json:"address,omitempty"`
}

// Address is the delivery destination.
type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zip_code,omitempty"`
}

// Customization records the customer's per-line choices.
type Customization struct {
	Crust               string   `json:"crust,omitempty"`
	Toppings            []string `json:"toppings,omitempty"`
	Extras              []string `json:"extras,omitempty"`
	SpecialInstructions string   `json:"special_instructions,omitempty"`
}

// Line is one menu item within an order. Name and UnitPrice are snapshots
// taken at creation time; later catalog changes do not affect the order.
type Line struct {
	MenuItemID    string          `json:"menu_item_id"`
	Name          string          `json:"name"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Customization Customization   `json:"customization"`
}

// PaymentDetails carries gateway references for non-cash payments.
type PaymentDetails struct {
	PaymentID string `json:"payment_id,omitempty"`
	Gateway   string `json:"gateway,omitempty"`
}

// Order is a placed customer order. Orders are never deleted; cancellation
// is the only way out once persisted.
type Order struct {
	ID                    string
	Number                string
	StoreID               string
	Customer              Customer
	Lines                 []Line
	Subtotal              decimal.Decimal
	Tax                   decimal.Decimal
	DeliveryFee           decimal.Decimal
	Discount              decimal.Decimal
	Total                 decimal.Decimal
	Type                  Type
	Status                Status
	PaymentStatus         PaymentStatus
	PaymentMethod         PaymentMethod
	PaymentDetails        PaymentDetails
	AssignedTo            string
	EstimatedDelivery     time.Time
	Notes                 string
	PreparationTime       int
	LoyaltyPointsEarned   int
	LoyaltyPointsRedeemed int
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Terminal reports whether the order's status admits no further
// transitions. Ready is terminal for pickup and dine-in orders.
func (o *Order) Terminal() bool {
	switch o.Status {
	case StatusDelivered, StatusCancelled:
		return true
	case StatusReady:
		return o.Type != TypeDelivery
	}
	return false
}

// CanTransition reports whether the order may move to the target status
// under the strict lifecycle graph: each status advances to its single
// successor, out_for_delivery is reserved for delivery orders, and
// cancellation is allowed from any non-terminal state.
func (o *Order) CanTransition(to Status) bool {
	if to == StatusCancelled {
		return !o.Terminal()
	}
	if o.Terminal() {
		return false
	}
	if to == StatusOutForDelivery && o.Type != TypeDelivery {
		return false
	}
	return successor[o.Status] == to
}

// ListFilter narrows and pages an order listing. Statuses are OR-ed.
type ListFilter struct {
	Statuses []Status
	Page     int
	PageSize int
}

// Page is one page of a listing, newest orders first.
type Page struct {
	Orders     []Order
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// Repository defines persistence operations for orders.
//
// Create must fail with ErrDuplicateNumber when the order number is
// already taken, so the caller can mint a fresh one and retry.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, o *Order) error
	List(ctx context.Context, storeID string, filter ListFilter) (*Page, error)
	ListByDateRange(ctx context.Context, storeID string, from, to time.Time) ([]Order, error)
}
