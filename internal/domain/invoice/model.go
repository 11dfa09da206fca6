package invoice

import (
	"time"

	ierr "github.com/smartinvoice/smartinvoice/internal/errors"
	"github.com/smartinvoice/smartinvoice/internal/types"
	"github.com/shopspring/decimal"
)

// Invoice is the aggregate root. Items and Payments are owned exclusively by
// the invoice and are read and written as one unit through the repository;
// Payments are append-only.
type Invoice struct {
	ID            string `json:"id"`
	InvoiceNumber string `json:"invoice_number"`

	// denormalized customer reference
	CustomerID    string `json:"customer_id"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`

	IssueDate     time.Time  `json:"issue_date"`
	DueDate       time.Time  `json:"due_date"`
	PaidDate      *time.Time `json:"paid_date,omitempty"`
	CancelledDate *time.Time `json:"cancelled_date,omitempty"`

	Notes              string `json:"notes,omitempty"`
	CancellationReason string `json:"cancellation_reason,omitempty"`

	SubTotal    decimal.Decimal `json:"sub_total"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	TotalAmount decimal.Decimal `json:"total_amount"`

	Status types.InvoiceStatus `json:"status"`

	Items    []*InvoiceItem `json:"items,omitempty"`
	Payments []*Payment     `json:"payments,omitempty"`

	// Version is the optimistic concurrency stamp; the repository rejects an
	// update whose version does not match the stored aggregate.
	Version int `json:"version"`

	types.BaseModel
}

// InvoiceItem is a value-like child entity. The derived SubTotal,
// DiscountAmount and Total fields are stored and must be recomputed whenever
// the inputs change.
type InvoiceItem struct {
	ID                 string          `json:"id"`
	Description        string          `json:"description"`
	Quantity           int             `json:"quantity"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	UnitType           string          `json:"unit_type"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`

	SubTotal       decimal.Decimal `json:"sub_total"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Total          decimal.Decimal `json:"total"`
}

// Payment is an append-only child entity recording money received against
// the invoice.
type Payment struct {
	ID            string              `json:"id"`
	PaymentMethod string              `json:"payment_method"`
	TransactionID *string             `json:"transaction_id,omitempty"`
	Amount        decimal.Decimal     `json:"amount"`
	PaymentDate   time.Time           `json:"payment_date"`
	Notes         string              `json:"notes,omitempty"`
	Status        types.PaymentStatus `json:"status"`
}

// Balance returns the outstanding amount owed: total minus the sum of
// completed payments.
func (i *Invoice) Balance() decimal.Decimal {
	paid := decimal.Zero
	for _, p := range i.Payments {
		if p.Status.CountsTowardsBalance() {
			paid = paid.Add(p.Amount)
		}
	}
	return i.TotalAmount.Sub(paid)
}

// IsOverdue is a computed predicate, not a stored transition: a Sent invoice
// whose due date has passed.
func (i *Invoice) IsOverdue(now time.Time) bool {
	return i.Status == types.InvoiceStatusSent && i.DueDate.Before(now)
}

// IsFullyPaid reports whether the outstanding balance has reached zero
func (i *Invoice) IsFullyPaid() bool {
	return i.Balance().LessThanOrEqual(decimal.Zero)
}

// EffectiveStatus returns the status as observed at query time, folding the
// derived Overdue view over the stored status.
func (i *Invoice) EffectiveStatus(now time.Time) types.InvoiceStatus {
	if i.IsOverdue(now) {
		return types.InvoiceStatusOverdue
	}
	return i.Status
}

// Validate checks the aggregate invariants that must hold after every
// committed mutation.
func (i *Invoice) Validate() error {
	if i.TotalAmount.IsNegative() {
		return ierr.NewError("total_amount must be non-negative").
			WithHint("Invoice total cannot be negative").
			Mark(ierr.ErrValidation)
	}

	itemSum := decimal.Zero
	for _, item := range i.Items {
		if err := item.Validate(); err != nil {
			return err
		}
		itemSum = itemSum.Add(item.Total)
	}

	if !i.SubTotal.Equal(itemSum) {
		return ierr.NewError("sub_total must equal the sum of item totals").
			WithHint("Invoice totals are inconsistent").
			WithReportableDetails(map[string]any{
				"sub_total": i.SubTotal.String(),
				"item_sum":  itemSum.String(),
			}).
			Mark(ierr.ErrValidation)
	}

	if !i.TotalAmount.Equal(i.SubTotal.Add(i.TaxAmount)) {
		return ierr.NewError("total_amount must equal sub_total plus tax_amount").
			WithHint("Invoice totals are inconsistent").
			WithReportableDetails(map[string]any{
				"sub_total":    i.SubTotal.String(),
				"tax_amount":   i.TaxAmount.String(),
				"total_amount": i.TotalAmount.String(),
			}).
			Mark(ierr.ErrValidation)
	}

	for _, p := range i.Payments {
		if err := p.Validate(); err != nil {
			return err
		}
	}

	return i.Status.Validate()
}

// Validate checks the stored derived fields against their inputs
func (it *InvoiceItem) Validate() error {
	subTotal, discountAmount, total, err := ComputeItemTotals(it.UnitPrice, it.Quantity, it.DiscountPercentage)
	if err != nil {
		return err
	}
	if !it.SubTotal.Equal(subTotal) || !it.DiscountAmount.Equal(discountAmount) || !it.Total.Equal(total) {
		return ierr.NewError("item totals are stale").
			WithHint("Line item derived totals do not match their inputs").
			WithReportableDetails(map[string]any{
				"item_id":     it.ID,
				"description": it.Description,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// CalculateTotals recomputes the stored derived fields from the item inputs
func (it *InvoiceItem) CalculateTotals() error {
	subTotal, discountAmount, total, err := ComputeItemTotals(it.UnitPrice, it.Quantity, it.DiscountPercentage)
	if err != nil {
		return err
	}
	it.SubTotal = subTotal
	it.DiscountAmount = discountAmount
	it.Total = total
	return nil
}

// Validate checks the payment record fields
func (p *Payment) Validate() error {
	if p.PaymentMethod == "" {
		return ierr.NewError("payment_method is required").
			WithHint("Please provide a payment method").
			Mark(ierr.ErrValidation)
	}
	if !p.Amount.IsPositive() {
		return ierr.NewError("amount must be greater than zero").
			WithHint("Payment amount must be positive").
			WithReportableDetails(map[string]any{
				"amount": p.Amount.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	return p.Status.Validate()
}
