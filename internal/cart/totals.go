package cart

import "github.com/shopspring/decimal"

// PricedLine is a line quantity paired with its unit price.
type PricedLine struct {
	Price    decimal.Decimal
	Quantity int
}

// Totals is the money summary of a cart. ItemCount counts distinct lines,
// not summed quantity.
type Totals struct {
	Subtotal  decimal.Decimal
	Total     decimal.Decimal
	ItemCount int
}

// ComputeTotals sums price x quantity and rounds half away from zero at the
// cent. Total equals Subtotal; tax and shipping are applied elsewhere.
func ComputeTotals(lines []PricedLine) Totals {
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	subtotal := sum.Round(2)
	return Totals{
		Subtotal:  subtotal,
		Total:     subtotal,
		ItemCount: len(lines),
	}
}
