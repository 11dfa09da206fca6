package types

import (
	"time"

	ierr "github.com/smartinvoice/smartinvoice/internal/errors"
	"github.com/samber/lo"
)

// InvoiceStatus represents the current state of an invoice in its lifecycle
type InvoiceStatus string

const (
	// InvoiceStatusDraft indicates the invoice can still be edited or deleted
	InvoiceStatusDraft InvoiceStatus = "DRAFT"
	// InvoiceStatusSent indicates the invoice has been issued to the customer
	// and is awaiting payment
	InvoiceStatusSent InvoiceStatus = "SENT"
	// InvoiceStatusPartiallyPaid indicates payments have been received but an
	// outstanding balance remains
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	// InvoiceStatusPaid indicates the outstanding balance has reached zero;
	// terminal for business flow
	InvoiceStatusPaid InvoiceStatus = "PAID"
	// InvoiceStatusOverdue is a derived, query-time view of a Sent invoice
	// whose due date has passed. It is never written to storage.
	InvoiceStatusOverdue InvoiceStatus = "OVERDUE"
	// InvoiceStatusCancelled indicates the invoice was cancelled; terminal
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

func (s InvoiceStatus) String() string {
	return string(s)
}

func (s InvoiceStatus) Validate() error {
	allowed := []InvoiceStatus{
		InvoiceStatusDraft,
		InvoiceStatusSent,
		InvoiceStatusPartiallyPaid,
		InvoiceStatusPaid,
		InvoiceStatusOverdue,
		InvoiceStatusCancelled,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid invoice status").
			WithHint("Please provide a valid invoice status").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsTerminal reports whether the status accepts no further business mutations
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusCancelled
}

const (
	// InvoiceNumberPrefix is the fixed prefix of every generated invoice number
	InvoiceNumberPrefix = "INV"
	// InvoiceNumberPeriodFormat is the Go time layout producing the YYYYMM
	// calendar period segment
	InvoiceNumberPeriodFormat = "200601"
	// InvoiceNumberSuffixLength is the zero-padded width of the sequence segment
	InvoiceNumberSuffixLength = 4
)

// InvoiceFilter represents the filter for listing invoices
type InvoiceFilter struct {
	*QueryFilter
	*TimeRangeFilter

	InvoiceIDs    []string        `form:"invoice_ids"`
	CustomerID    string          `form:"customer_id"`
	InvoiceStatus []InvoiceStatus `form:"invoice_status"`
}

// NewInvoiceFilter creates a new invoice filter with default query options
func NewInvoiceFilter() *InvoiceFilter {
	return &InvoiceFilter{
		QueryFilter: NewDefaultQueryFilter(),
	}
}

// NewNoLimitInvoiceFilter creates a new invoice filter without pagination
func NewNoLimitInvoiceFilter() *InvoiceFilter {
	return &InvoiceFilter{
		QueryFilter: NewNoLimitQueryFilter(),
	}
}

// Validate validates the invoice filter
func (f *InvoiceFilter) Validate() error {
	if f == nil {
		return nil
	}
	if f.QueryFilter != nil {
		if err := f.QueryFilter.Validate(); err != nil {
			return err
		}
	}
	if f.TimeRangeFilter != nil {
		if err := f.TimeRangeFilter.Validate(); err != nil {
			return err
		}
	}
	for _, status := range f.InvoiceStatus {
		if err := status.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// GetLimit implements BaseFilter interface
func (f *InvoiceFilter) GetLimit() int {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetLimit()
	}
	return f.QueryFilter.GetLimit()
}

// GetOffset implements BaseFilter interface
func (f *InvoiceFilter) GetOffset() int {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetOffset()
	}
	return f.QueryFilter.GetOffset()
}

// IsUnlimited returns true if the filter has no limit
func (f *InvoiceFilter) IsUnlimited() bool {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().IsUnlimited()
	}
	return f.QueryFilter.IsUnlimited()
}

// SummaryDefaultWindow is the trailing range used when a summary request
// omits its date bounds.
const SummaryDefaultWindow = 30 * 24 * time.Hour
