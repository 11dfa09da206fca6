package invoice

import (
	ierr "github.com/smartinvoice/smartinvoice/internal/errors"
	"github.com/shopspring/decimal"
)

// moneyPlaces is the stored precision for monetary values. decimal.Round
// rounds half away from zero, matching the engine's currency rounding.
// Rounding is applied only at the point a value becomes stored, never on
// intermediate products, so errors do not compound.
const moneyPlaces = 2

var oneHundred = decimal.NewFromInt(100)

// ComputeItemTotals converts a line item's inputs into its stored derived
// values: subTotal = unitPrice * quantity, discountAmount = subTotal *
// discountPercentage / 100, total = subTotal - discountAmount.
func ComputeItemTotals(unitPrice decimal.Decimal, quantity int, discountPercentage decimal.Decimal) (subTotal, discountAmount, total decimal.Decimal, err error) {
	if quantity < 1 {
		return decimal.Zero, decimal.Zero, decimal.Zero, ierr.NewError("quantity must be at least 1").
			WithHint("Line item quantity must be a positive integer").
			WithReportableDetails(map[string]any{
				"quantity": quantity,
			}).
			Mark(ierr.ErrValidation)
	}
	if unitPrice.IsNegative() {
		return decimal.Zero, decimal.Zero, decimal.Zero, ierr.NewError("unit_price must be non-negative").
			WithHint("Line item unit price cannot be negative").
			WithReportableDetails(map[string]any{
				"unit_price": unitPrice.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if discountPercentage.IsNegative() || discountPercentage.GreaterThan(oneHundred) {
		return decimal.Zero, decimal.Zero, decimal.Zero, ierr.NewError("discount_percentage must be between 0 and 100").
			WithHint("Line item discount must be a percentage between 0 and 100").
			WithReportableDetails(map[string]any{
				"discount_percentage": discountPercentage.String(),
			}).
			Mark(ierr.ErrValidation)
	}

	subTotal = unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(moneyPlaces)
	discountAmount = subTotal.Mul(discountPercentage).Div(oneHundred).Round(moneyPlaces)
	total = subTotal.Sub(discountAmount)
	return subTotal, discountAmount, total, nil
}

// ComputeInvoiceTotals aggregates line items and a tax rate into the
// invoice-level figures: subTotal = sum of item totals, taxAmount =
// subTotal * taxRatePercent / 100, totalAmount = subTotal + taxAmount.
// Pure function, no side effects.
func ComputeInvoiceTotals(items []*InvoiceItem, taxRatePercent decimal.Decimal) (subTotal, taxAmount, totalAmount decimal.Decimal, err error) {
	if taxRatePercent.IsNegative() || taxRatePercent.GreaterThan(oneHundred) {
		return decimal.Zero, decimal.Zero, decimal.Zero, ierr.NewError("tax_rate must be between 0 and 100").
			WithHint("Tax rate must be a percentage between 0 and 100").
			WithReportableDetails(map[string]any{
				"tax_rate": taxRatePercent.String(),
			}).
			Mark(ierr.ErrValidation)
	}

	subTotal = decimal.Zero
	for _, item := range items {
		subTotal = subTotal.Add(item.Total)
	}
	taxAmount = subTotal.Mul(taxRatePercent).Div(oneHundred).Round(moneyPlaces)
	totalAmount = subTotal.Add(taxAmount)
	return subTotal, taxAmount, totalAmount, nil
}
