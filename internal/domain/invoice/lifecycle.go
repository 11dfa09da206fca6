package invoice

import (
	ierr "github.com/smartinvoice/smartinvoice/internal/errors"
	"github.com/smartinvoice/smartinvoice/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// allowedTransitions is the single authoritative transition table.
// Overdue never appears: it is a derived query-time view of Sent, not a
// stored state, so no stored transition produces or consumes it.
var allowedTransitions = map[types.InvoiceStatus][]types.InvoiceStatus{
	types.InvoiceStatusDraft: {
		types.InvoiceStatusSent,
	},
	types.InvoiceStatusSent: {
		types.InvoiceStatusPartiallyPaid,
		types.InvoiceStatusPaid,
		types.InvoiceStatusCancelled,
	},
	types.InvoiceStatusPartiallyPaid: {
		types.InvoiceStatusPartiallyPaid,
		types.InvoiceStatusPaid,
		types.InvoiceStatusCancelled,
	},
	types.InvoiceStatusPaid:      {},
	types.InvoiceStatusCancelled: {},
}

// ValidateTransition checks that moving from one stored status to another is
// legal under the lifecycle table.
func ValidateTransition(from, to types.InvoiceStatus) error {
	allowed, ok := allowedTransitions[from]
	if !ok {
		return ierr.NewError("unknown invoice status").
			WithHint("Invoice is in an unknown status").
			WithReportableDetails(map[string]any{
				"status": from,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	if !lo.Contains(allowed, to) {
		return ierr.NewError("invalid status transition").
			WithHintf("Invoice cannot move from %s to %s", from, to).
			WithReportableDetails(map[string]any{
				"from": from,
				"to":   to,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	return nil
}

// CanUpdate reports whether the invoice accepts edits to items, notes or due
// date. Edits are legal only in Draft.
func (i *Invoice) CanUpdate() error {
	if i.Status != types.InvoiceStatusDraft {
		return ierr.NewError("only draft invoices can be updated").
			WithHintf("Invoice %s is %s and can no longer be edited", i.InvoiceNumber, i.Status).
			Mark(ierr.ErrInvalidOperation)
	}
	return nil
}

// CanDelete reports whether the invoice may be permanently removed. Removal
// of anything but a Draft is a business-rule violation, not a storage
// constraint: a live financial record cannot be deleted.
func (i *Invoice) CanDelete() error {
	if i.Status != types.InvoiceStatusDraft {
		return ierr.NewError("only draft invoices can be deleted").
			WithHintf("Invoice %s is %s; live financial records cannot be deleted", i.InvoiceNumber, i.Status).
			Mark(ierr.ErrInvalidOperation)
	}
	return nil
}

// CanSend reports whether the invoice may be issued to the customer
func (i *Invoice) CanSend() error {
	return ValidateTransition(i.Status, types.InvoiceStatusSent)
}

// CanCancel reports whether the invoice may be cancelled. Paid and already
// Cancelled invoices are terminal.
func (i *Invoice) CanCancel() error {
	if i.Status == types.InvoiceStatusDraft {
		return ierr.NewError("draft invoices are deleted, not cancelled").
			WithHint("Delete the draft instead of cancelling it").
			Mark(ierr.ErrInvalidOperation)
	}
	return ValidateTransition(i.Status, types.InvoiceStatusCancelled)
}

// CanAcceptPayment reports whether a payment may be applied. Draft invoices
// have not been issued; Paid and Cancelled are terminal.
func (i *Invoice) CanAcceptPayment() error {
	switch i.Status {
	case types.InvoiceStatusSent, types.InvoiceStatusPartiallyPaid:
		return nil
	default:
		return ierr.NewError("invoice does not accept payments").
			WithHintf("Invoice %s is %s and cannot receive payments", i.InvoiceNumber, i.Status).
			WithReportableDetails(map[string]any{
				"status": i.Status,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
}

// NextStatusAfterPayment decides the stored status resulting from the given
// outstanding balance.
func NextStatusAfterPayment(balance, totalAmount decimal.Decimal) types.InvoiceStatus {
	if balance.LessThanOrEqual(decimal.Zero) {
		return types.InvoiceStatusPaid
	}
	if balance.LessThan(totalAmount) {
		return types.InvoiceStatusPartiallyPaid
	}
	return types.InvoiceStatusSent
}
