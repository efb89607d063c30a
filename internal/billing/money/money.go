// Package money implements integer monetary arithmetic for billing
// documents. The currency has no sub-units, so every computation stays in
// whole int64 amounts and totals are exactly reproducible.
package money

import (
	"fmt"
	"sort"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gescom-erp/gescom/internal/billing/shared"
)

// Amount is a monetary value in whole currency units.
type Amount = int64

// Line is the minimal shape the total computation needs: a position and a
// precomputed line amount.
type Line struct {
	Index   int
	Montant Amount
}

// LineAmount computes quantity x unitPrice. Quantity must be strictly
// positive and the unit price non-negative; violations are validation
// failures, never clamped.
func LineAmount(quantity int64, unitPrice Amount) (Amount, error) {
	if quantity <= 0 {
		return 0, fmt.Errorf("%w: quantity must be positive", shared.ErrValidation)
	}
	if unitPrice < 0 {
		return 0, fmt.Errorf("%w: unit price must not be negative", shared.ErrValidation)
	}
	return quantity * unitPrice, nil
}

// Total sums line amounts in order-index order so the result is
// deterministic regardless of how the caller assembled the slice.
func Total(lines []Line) Amount {
	sorted := make([]Line, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	var total Amount
	for _, l := range sorted {
		total += l.Montant
	}
	return total
}

// TVA computes the tax amount for a net total at the given percent rate,
// rounding half up to the nearest whole unit.
func TVA(ht Amount, ratePercent int64) Amount {
	if ht <= 0 || ratePercent <= 0 {
		return 0
	}
	return (ht*ratePercent + 50) / 100
}

var printer = message.NewPrinter(language.French)

// Format renders an amount with French digit grouping for printable
// documents.
func Format(a Amount) string {
	return printer.Sprintf("%d", a)
}
