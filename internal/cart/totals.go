package cart

import "github.com/shopspring/decimal"

// Total sums the line subtotals. Malformed lines (non-positive quantity or a
// negative price or subtotal) are skipped: the total is a display value and
// checkout revalidates every line anyway.
func Total(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		if !line.wellFormed() {
			continue
		}
		total = total.Add(line.Subtotal)
	}
	return total
}

func (l Line) wellFormed() bool {
	return l.Quantity > 0 && !l.UnitPrice.IsNegative() && !l.Subtotal.IsNegative()
}
