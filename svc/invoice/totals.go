package invoice

import "math"

// LineItem is an item as submitted, before amounts are computed.
type LineItem struct {
	Description string  `json:"description" validate:"required,max=500"`
	Quantity    float64 `json:"quantity" validate:"gt=0"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
}

// Totals holds invoice amounts rounded to paise.
type Totals struct {
	Subtotal  float64 `json:"subtotal"`
	TaxAmount float64 `json:"tax_amount"`
	Total     float64 `json:"total"`
}

// ComputeTotals sums quantity*unit_price and applies taxRate percent.
func ComputeTotals(items []LineItem, taxRate float64) Totals {
	var subtotal float64
	for _, it := range items {
		subtotal += round2(it.Quantity * it.UnitPrice)
	}
	subtotal = round2(subtotal)
	tax := round2(subtotal * taxRate / 100)
	return Totals{
		Subtotal:  subtotal,
		TaxAmount: tax,
		Total:     round2(subtotal + tax),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
