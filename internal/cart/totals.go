package cart

import (
	"github.com/fjod/go_cart/pos-service/internal/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// LineTax is the tax of a single line rounded half away from zero to a whole
// minor unit. Rounding happens per line before summing.
func LineTax(line domain.CartLine) int64 {
	if line.TaxRate == nil {
		return 0
	}
	gross := decimal.NewFromInt(line.UnitPrice * line.Quantity)
	return gross.Mul(*line.TaxRate).Div(hundred).Round(0).IntPart()
}

// ComputeTotals derives subtotal, tax and total from lines and a discount.
func ComputeTotals(lines []domain.CartLine, discount int64) domain.Totals {
	var t domain.Totals
	for _, l := range lines {
		t.Subtotal += l.UnitPrice * l.Quantity
		t.Tax += LineTax(l)
	}
	t.Total = t.Subtotal + t.Tax - discount
	return t
}
