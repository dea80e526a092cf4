package pricing

import (
	"math"

	"posgo/backend/internal/domain"
)

// Calculate derives the sale totals for a cart. It has no side effects.
//
// Discounts are absolute per-unit amounts. Negative discounts, quantities and
// tax rates are treated as zero, and the discounted total never drops below zero.
func Calculate(items []domain.CartItem, settings domain.StoreSettings) domain.Totals {
	var subtotal, discount float64
	for _, item := range items {
		qty := float64(max(item.Quantity, 0))
		subtotal += item.Price * qty
		discount += clampNonNegative(item.Discount) * qty
	}

	total := math.Max(0, subtotal-discount)
	rate := clampNonNegative(settings.TaxRate)

	totals := domain.Totals{
		Subtotal: subtotal,
		Discount: discount,
		Total:    total,
	}
	if settings.PricesIncludeTax {
		totals.Tax = total - total/(1+rate)
		totals.FinalTotal = total
	} else {
		totals.Tax = total * rate
		totals.FinalTotal = total + totals.Tax
	}
	return totals
}

// LineTotal is price × quantity for a single line, before discounts.
func LineTotal(item domain.CartItem) float64 {
	return item.Price * float64(max(item.Quantity, 0))
}

// Round2 rounds to cents for presentation. Stored amounts keep full precision.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clampNonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}
