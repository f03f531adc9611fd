// Package loyalty defines the loyalty-accrual collaborator contract and
// the points math. Accrual runs as a deferred job off the order creation
// path; the full program (tiers, redemption, expiry) lives outside this
// core.
package loyalty

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xenking/pizza-ops/internal/domain/order"
)

// Program holds the accrual parameters of a store's loyalty scheme.
type Program struct {
	// PointsPerUnit is how many points one currency unit of order total
	// earns.
	PointsPerUnit decimal.Decimal
	// MinRedeemablePoints gates redemption, not accrual.
	MinRedeemablePoints int
}

// DefaultProgram returns the standard scheme: 1 point per currency unit,
// redeemable from 100 points.
func DefaultProgram() Program {
	return Program{
		PointsPerUnit:       decimal.NewFromInt(1),
		MinRedeemablePoints: 100,
	}
}

// PointsForOrder computes the points an order earns, rounded down to a
// whole number of points.
func PointsForOrder(o *order.Order, p Program) int {
	return int(o.Total.Mul(p.PointsPerUnit).IntPart())
}

// Accruer credits points to the customer identified by the order's phone
// number. Invoked only when a phone is present.
type Accruer interface {
	EarnPoints(ctx context.Context, o *order.Order) error
}

// PointsStore persists accrued points. The write must touch only the
// points column: the accrual job runs from a creation-time snapshot, and
// any status or payment transition committed in the meantime has to
// survive it.
type PointsStore interface {
	UpdateLoyaltyPointsEarned(ctx context.Context, orderID string, points int) error
}

// ProgramAccruer is a local Accruer that computes points from a fixed
// program. Crediting the customer account is left to the wired
// collaborator; this implementation only records the earned amount on
// the order itself.
type ProgramAccruer struct {
	program Program
	orders  PointsStore
}

// NewProgramAccruer creates an Accruer over the given program.
func NewProgramAccruer(program Program, orders PointsStore) *ProgramAccruer {
	return &ProgramAccruer{program: program, orders: orders}
}

// EarnPoints stamps the earned points onto the order record. The snapshot
// is read, never written.
func (a *ProgramAccruer) EarnPoints(ctx context.Context, o *order.Order) error {
	return a.orders.UpdateLoyaltyPointsEarned(ctx, o.ID, PointsForOrder(o, a.program))
}
