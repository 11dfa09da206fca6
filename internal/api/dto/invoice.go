package dto

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/smartinvoice/smartinvoice/internal/domain/invoice"
	ierr "github.com/smartinvoice/smartinvoice/internal/errors"
	"github.com/smartinvoice/smartinvoice/internal/types"
	"github.com/smartinvoice/smartinvoice/internal/validator"
)

type CreateInvoiceRequest struct {
	CustomerID    string                     `json:"customer_id" validate:"required"`
	CustomerName  string                     `json:"customer_name" validate:"required,max=200"`
	CustomerEmail string                     `json:"customer_email" validate:"required,email,max=200"`
	IssueDate     *time.Time                 `json:"issue_date,omitempty"`
	DueDate       *time.Time                 `json:"due_date,omitempty"`
	Notes         string                     `json:"notes,omitempty" validate:"max=1000"`
	TaxRate       decimal.Decimal            `json:"tax_rate"`
	Items         []CreateInvoiceItemRequest `json:"items" validate:"required,min=1,dive"`
}

type CreateInvoiceItemRequest struct {
	Description        string          `json:"description" validate:"required,max=200"`
	Quantity           int             `json:"quantity" validate:"required,min=1"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	UnitType           string          `json:"unit_type,omitempty" validate:"max=50"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
}

func (r *CreateInvoiceRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}

	if r.TaxRate.IsNegative() || r.TaxRate.GreaterThan(decimal.NewFromInt(100)) {
		return ierr.NewError("tax_rate must be between 0 and 100").
			WithHint("Tax rate must be a percentage between 0 and 100").
			WithReportableDetails(map[string]any{
				"tax_rate": r.TaxRate.String(),
			}).
			Mark(ierr.ErrValidation)
	}

	if r.IssueDate != nil && r.DueDate != nil && r.DueDate.Before(*r.IssueDate) {
		return ierr.NewError("due_date must not be before issue_date").
			WithHint("Due date cannot precede the issue date").
			Mark(ierr.ErrValidation)
	}

	for _, item := range r.Items {
		if err := item.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (r *CreateInvoiceItemRequest) Validate() error {
	if r.UnitPrice.IsNegative() {
		return ierr.NewError("unit_price must be non-negative").
			WithHint("Unit price cannot be negative").
			WithReportableDetails(map[string]any{
				"description": r.Description,
				"unit_price":  r.UnitPrice.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if r.DiscountPercentage.IsNegative() || r.DiscountPercentage.GreaterThan(decimal.NewFromInt(100)) {
		return ierr.NewError("discount_percentage must be between 0 and 100").
			WithHint("Discount must be a percentage between 0 and 100").
			WithReportableDetails(map[string]any{
				"description":         r.Description,
				"discount_percentage": r.DiscountPercentage.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ToInvoiceItem builds the domain line item with derived totals computed
func (r *CreateInvoiceItemRequest) ToInvoiceItem() (*invoice.InvoiceItem, error) {
	unitType := r.UnitType
	if unitType == "" {
		unitType = "unit"
	}

	item := &invoice.InvoiceItem{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_ITEM),
		Description:        r.Description,
		Quantity:           r.Quantity,
		UnitPrice:          r.UnitPrice,
		UnitType:           unitType,
		DiscountPercentage: r.DiscountPercentage,
	}
	if err := item.CalculateTotals(); err != nil {
		return nil, err
	}
	return item, nil
}

type UpdateInvoiceRequest struct {
	Notes   *string                    `json:"notes,omitempty" validate:"omitempty,max=1000"`
	DueDate *time.Time                 `json:"due_date,omitempty"`
	TaxRate *decimal.Decimal           `json:"tax_rate,omitempty"`
	Items   []CreateInvoiceItemRequest `json:"items,omitempty" validate:"omitempty,min=1,dive"`
}

func (r *UpdateInvoiceRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.TaxRate != nil && (r.TaxRate.IsNegative() || r.TaxRate.GreaterThan(decimal.NewFromInt(100))) {
		return ierr.NewError("tax_rate must be between 0 and 100").
			WithHint("Tax rate must be a percentage between 0 and 100").
			WithReportableDetails(map[string]any{
				"tax_rate": r.TaxRate.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	for _, item := range r.Items {
		if err := item.Validate(); err != nil {
			return err
		}
	}
	return nil
}

type CancelInvoiceRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

func (r *CancelInvoiceRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// InvoiceResponse is the outward view of an invoice, with the derived
// money and status fields callers would otherwise recompute.
type InvoiceResponse struct {
	*invoice.Invoice

	// Status reflects the effective status at response time; a sent
	// invoice past its due date reads as overdue.
	Status      types.InvoiceStatus `json:"status"`
	AmountPaid  decimal.Decimal     `json:"amount_paid"`
	Balance     decimal.Decimal     `json:"balance"`
	IsOverdue   bool                `json:"is_overdue"`
	IsFullyPaid bool                `json:"is_fully_paid"`
}

func NewInvoiceResponse(inv *invoice.Invoice) *InvoiceResponse {
	now := time.Now().UTC()
	balance := inv.Balance()
	return &InvoiceResponse{
		Invoice:     inv,
		Status:      inv.EffectiveStatus(now),
		AmountPaid:  inv.TotalAmount.Sub(balance),
		Balance:     balance,
		IsOverdue:   inv.IsOverdue(now),
		IsFullyPaid: inv.IsFullyPaid(),
	}
}

type ListInvoicesResponse = types.ListResponse[*InvoiceResponse]

// InvoiceSummaryResponse aggregates invoices created inside a time window
type InvoiceSummaryResponse struct {
	StartTime         time.Time                   `json:"start_time"`
	EndTime           time.Time                   `json:"end_time"`
	TotalInvoices     int                         `json:"total_invoices"`
	TotalRevenue      decimal.Decimal             `json:"total_revenue"`
	OutstandingAmount decimal.Decimal             `json:"outstanding_amount"`
	OverdueInvoices   int                         `json:"overdue_invoices"`
	StatusCount       map[types.InvoiceStatus]int `json:"status_count"`
	MonthlyRevenue    map[string]decimal.Decimal  `json:"monthly_revenue"`
}
