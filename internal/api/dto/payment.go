package dto

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/smartinvoice/smartinvoice/internal/domain/invoice"
	ierr "github.com/smartinvoice/smartinvoice/internal/errors"
	"github.com/smartinvoice/smartinvoice/internal/types"
	"github.com/smartinvoice/smartinvoice/internal/validator"
)

type AddPaymentRequest struct {
	PaymentMethod string          `json:"payment_method" validate:"required,max=50"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionID *string         `json:"transaction_id,omitempty" validate:"omitempty,max=100"`
	PaymentDate   *time.Time      `json:"payment_date,omitempty"`
	Notes         string          `json:"notes,omitempty" validate:"max=500"`
}

func (r *AddPaymentRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if !r.Amount.IsPositive() {
		return ierr.NewError("amount must be greater than zero").
			WithHint("Payment amount must be positive").
			WithReportableDetails(map[string]any{
				"amount": r.Amount.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ToPayment builds the domain payment record. Payments recorded through
// the API are settled money, so they are stored as completed.
func (r *AddPaymentRequest) ToPayment() *invoice.Payment {
	paymentDate := time.Now().UTC()
	if r.PaymentDate != nil {
		paymentDate = r.PaymentDate.UTC()
	}
	return &invoice.Payment{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
		PaymentMethod: r.PaymentMethod,
		TransactionID: r.TransactionID,
		Amount:        r.Amount,
		PaymentDate:   paymentDate,
		Notes:         r.Notes,
		Status:        types.PaymentStatusCompleted,
	}
}

// PaymentResponse is the outward view of a recorded payment
type PaymentResponse struct {
	*invoice.Payment
}

func NewPaymentResponse(p *invoice.Payment) *PaymentResponse {
	return &PaymentResponse{Payment: p}
}

type ListPaymentsResponse = types.ListResponse[*PaymentResponse]
