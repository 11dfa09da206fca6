package invoice

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeItemTotals(t *testing.T) {
	tests := []struct {
		name             string
		unitPrice        decimal.Decimal
		quantity         int
		discount         decimal.Decimal
		expectedSubTotal string
		expectedDiscount string
		expectedTotal    string
		expectedError    bool
	}{
		{
			name:             "no_discount",
			unitPrice:        decimal.NewFromFloat(50.00),
			quantity:         2,
			discount:         decimal.Zero,
			expectedSubTotal: "100",
			expectedDiscount: "0",
			expectedTotal:    "100",
		},
		{
			name:             "ten_percent_discount",
			unitPrice:        decimal.NewFromFloat(25.00),
			quantity:         1,
			discount:         decimal.NewFromInt(10),
			expectedSubTotal: "25",
			expectedDiscount: "2.5",
			expectedTotal:    "22.5",
		},
		{
			name:             "fractional_price_rounds_half_away_from_zero",
			unitPrice:        decimal.NewFromFloat(10.005),
			quantity:         1,
			discount:         decimal.Zero,
			expectedSubTotal: "10.01",
			expectedDiscount: "0",
			expectedTotal:    "10.01",
		},
		{
			name:             "discount_rounds_before_subtraction",
			unitPrice:        decimal.NewFromFloat(33.33),
			quantity:         3,
			discount:         decimal.NewFromInt(15),
			expectedSubTotal: "99.99",
			expectedDiscount: "15",
			expectedTotal:    "84.99",
		},
		{
			name:             "full_discount",
			unitPrice:        decimal.NewFromFloat(19.99),
			quantity:         4,
			discount:         decimal.NewFromInt(100),
			expectedSubTotal: "79.96",
			expectedDiscount: "79.96",
			expectedTotal:    "0",
		},
		{
			name:          "zero_quantity_rejected",
			unitPrice:     decimal.NewFromFloat(10.00),
			quantity:      0,
			discount:      decimal.Zero,
			expectedError: true,
		},
		{
			name:          "negative_quantity_rejected",
			unitPrice:     decimal.NewFromFloat(10.00),
			quantity:      -1,
			discount:      decimal.Zero,
			expectedError: true,
		},
		{
			name:          "negative_price_rejected",
			unitPrice:     decimal.NewFromFloat(-0.01),
			quantity:      1,
			discount:      decimal.Zero,
			expectedError: true,
		},
		{
			name:          "discount_above_hundred_rejected",
			unitPrice:     decimal.NewFromFloat(10.00),
			quantity:      1,
			discount:      decimal.NewFromInt(101),
			expectedError: true,
		},
		{
			name:          "negative_discount_rejected",
			unitPrice:     decimal.NewFromFloat(10.00),
			quantity:      1,
			discount:      decimal.NewFromInt(-5),
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subTotal, discountAmount, total, err := ComputeItemTotals(tt.unitPrice, tt.quantity, tt.discount)
			if tt.expectedError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedSubTotal, subTotal.String())
			assert.Equal(t, tt.expectedDiscount, discountAmount.String())
			assert.Equal(t, tt.expectedTotal, total.String())

			// total is always subtotal minus discount and never negative
			assert.True(t, total.Equal(subTotal.Sub(discountAmount)))
			assert.False(t, total.IsNegative())
		})
	}
}

func TestComputeInvoiceTotals(t *testing.T) {
	newItem := func(price float64, qty int, discount int64) *InvoiceItem {
		item := &InvoiceItem{
			UnitPrice:          decimal.NewFromFloat(price),
			Quantity:           qty,
			DiscountPercentage: decimal.NewFromInt(discount),
		}
		require.NoError(t, item.CalculateTotals())
		return item
	}

	t.Run("two_items_with_tax", func(t *testing.T) {
		items := []*InvoiceItem{
			newItem(50.00, 2, 0),
			newItem(25.00, 1, 10),
		}
		assert.Equal(t, "100", items[0].Total.String())
		assert.Equal(t, "22.5", items[1].Total.String())

		subTotal, taxAmount, totalAmount, err := ComputeInvoiceTotals(items, decimal.NewFromInt(10))
		require.NoError(t, err)
		assert.Equal(t, "122.5", subTotal.String())
		assert.Equal(t, "12.25", taxAmount.String())
		assert.Equal(t, "134.75", totalAmount.String())
	})

	t.Run("zero_tax", func(t *testing.T) {
		items := []*InvoiceItem{newItem(99.99, 1, 0)}

		subTotal, taxAmount, totalAmount, err := ComputeInvoiceTotals(items, decimal.Zero)
		require.NoError(t, err)
		assert.Equal(t, "99.99", subTotal.String())
		assert.Equal(t, "0", taxAmount.String())
		assert.Equal(t, "99.99", totalAmount.String())
	})

	t.Run("tax_rounds_to_cents", func(t *testing.T) {
		items := []*InvoiceItem{newItem(10.01, 1, 0)}

		_, taxAmount, totalAmount, err := ComputeInvoiceTotals(items, decimal.NewFromFloat(7.5))
		require.NoError(t, err)
		// 10.01 * 7.5% = 0.75075 -> 0.75
		assert.Equal(t, "0.75", taxAmount.String())
		assert.Equal(t, "10.76", totalAmount.String())
	})

	t.Run("no_items", func(t *testing.T) {
		subTotal, taxAmount, totalAmount, err := ComputeInvoiceTotals(nil, decimal.NewFromInt(10))
		require.NoError(t, err)
		assert.True(t, subTotal.IsZero())
		assert.True(t, taxAmount.IsZero())
		assert.True(t, totalAmount.IsZero())
	})

	t.Run("negative_tax_rejected", func(t *testing.T) {
		items := []*InvoiceItem{newItem(10.00, 1, 0)}
		_, _, _, err := ComputeInvoiceTotals(items, decimal.NewFromInt(-1))
		require.Error(t, err)
	})

	t.Run("tax_above_hundred_rejected", func(t *testing.T) {
		items := []*InvoiceItem{newItem(10.00, 1, 0)}
		_, _, _, err := ComputeInvoiceTotals(items, decimal.NewFromInt(101))
		require.Error(t, err)
	})
}
