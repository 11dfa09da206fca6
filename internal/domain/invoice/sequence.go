package invoice

import (
	"fmt"
	"time"

	"github.com/smartinvoice/smartinvoice/internal/types"
)

// InvoiceSequence tracks the last allocated sequence value for a calendar
// period. The repository owns atomic increments on it; two concurrent
// allocations in the same period must never observe the same value.
type InvoiceSequence struct {
	ID        string
	Period    string
	LastValue int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CurrentPeriod returns the YYYYMM calendar period the allocator scopes
// sequences to.
func CurrentPeriod(now time.Time) string {
	return now.UTC().Format(types.InvoiceNumberPeriodFormat)
}

// FormatInvoiceNumber renders a period and sequence value as the
// human-readable invoice number, e.g. INV-202608-0042.
func FormatInvoiceNumber(period string, sequence int64) string {
	return fmt.Sprintf("%s-%s-%0*d", types.InvoiceNumberPrefix, period, types.InvoiceNumberSuffixLength, sequence)
}
