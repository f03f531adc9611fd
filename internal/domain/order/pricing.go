package order

import "github.com/shopspring/decimal"

// PricingConfig carries the per-store parameters of the totals
// calculation. Zero values are valid (a tax-free store with free
// delivery); use DefaultPricing for the system defaults.
type PricingConfig struct {
	TaxRate     decimal.Decimal
	DeliveryFee decimal.Decimal
}

// DefaultPricing returns the system-wide defaults: 8% tax on the
// subtotal and a 2.99 delivery fee.
func DefaultPricing() PricingConfig {
	return PricingConfig{
		TaxRate:     decimal.NewFromFloat(0.08),
		DeliveryFee: decimal.NewFromFloat(2.99),
	}
}

// Totals is the computed price breakdown of an order.
type Totals struct {
	Subtotal    decimal.Decimal
	Tax         decimal.Decimal
	DeliveryFee decimal.Decimal
	Discount    decimal.Decimal
	Total       decimal.Decimal
}

// CalculateTotals computes an order's price breakdown. It is pure and
// deterministic: identical input always yields identical output, which
// creation retries rely on.
//
// subtotal = Σ unitPrice × quantity
// tax      = round2(subtotal × taxRate)
// total    = round2(max(0, subtotal − discount + tax + deliveryFee))
//
// The delivery fee applies to delivery orders only. Rounding is
// half-away-from-zero to 2 decimal places. The total never goes
// negative, even when the discount exceeds the subtotal.
func CalculateTotals(lines []Line, discount decimal.Decimal, orderType Type, cfg PricingConfig) Totals {
	subtotal := decimal.Zero
	for _, line := range lines {
		qty := decimal.NewFromInt(int64(line.Quantity))
		subtotal = subtotal.Add(line.UnitPrice.Mul(qty))
	}

	tax := subtotal.Mul(cfg.TaxRate).Round(2)

	fee := decimal.Zero
	if orderType == TypeDelivery {
		fee = cfg.DeliveryFee
	}

	total := subtotal.Sub(discount).Add(tax).Add(fee)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Totals{
		Subtotal:    subtotal,
		Tax:         tax,
		DeliveryFee: fee,
		Discount:    discount,
		Total:       total.Round(2),
	}
}
