package service

import (
	"context"
	"sort"

	"github.com/smartinvoice/smartinvoice/internal/api/dto"
	"github.com/smartinvoice/smartinvoice/internal/domain/invoice"
	ierr "github.com/smartinvoice/smartinvoice/internal/errors"
	"github.com/smartinvoice/smartinvoice/internal/types"
)

// PaymentService reconciles payments against invoices: it appends the
// payment, recomputes the outstanding balance and drives the resulting
// status transition as one atomic write.
type PaymentService interface {
	AddPayment(ctx context.Context, invoiceID string, req dto.AddPaymentRequest) (*dto.PaymentResponse, error)
	ListPayments(ctx context.Context, invoiceID string) (*dto.ListPaymentsResponse, error)
}

type paymentService struct {
	ServiceParams
}

func NewPaymentService(params ServiceParams) PaymentService {
	return &paymentService{ServiceParams: params}
}

func (s *paymentService) AddPayment(ctx context.Context, invoiceID string, req dto.AddPaymentRequest) (*dto.PaymentResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var applied *invoice.Payment
	// Concurrent payments against one invoice serialize through the
	// version stamp: a stale read fails the write and the whole
	// read-reconcile-write runs again on a fresh payment set.
	err := retryOnConflict(ctx, s.Config.Invoice.MaxWriteRetries, ierr.IsVersionConflict, func(ctx context.Context) error {
		return s.DB.WithTx(ctx, func(ctx context.Context) error {
			inv, err := s.InvoiceRepo.Get(ctx, invoiceID)
			if err != nil {
				return err
			}
			if err := inv.CanAcceptPayment(); err != nil {
				return err
			}

			payment := req.ToPayment()
			if err := payment.Validate(); err != nil {
				return err
			}
			inv.Payments = append(inv.Payments, payment)

			balance := inv.Balance()
			nextStatus := invoice.NextStatusAfterPayment(balance, inv.TotalAmount)
			if nextStatus != inv.Status {
				if err := invoice.ValidateTransition(inv.Status, nextStatus); err != nil {
					return err
				}
				inv.Status = nextStatus
				if nextStatus == types.InvoiceStatusPaid {
					paidAt := payment.PaymentDate
					inv.PaidDate = &paidAt
				}
			}
			inv.Touch()

			if err := inv.Validate(); err != nil {
				return err
			}
			if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
				return err
			}

			applied = payment
			s.Logger.Infow("applied payment",
				"invoice_id", inv.ID,
				"invoice_number", inv.InvoiceNumber,
				"payment_id", payment.ID,
				"amount", payment.Amount,
				"balance", balance,
				"status", inv.Status)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return dto.NewPaymentResponse(applied), nil
}

func (s *paymentService) ListPayments(ctx context.Context, invoiceID string) (*dto.ListPaymentsResponse, error) {
	inv, err := s.InvoiceRepo.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	payments := make([]*invoice.Payment, len(inv.Payments))
	copy(payments, inv.Payments)
	sort.Slice(payments, func(i, j int) bool {
		return payments[i].PaymentDate.After(payments[j].PaymentDate)
	})

	items := make([]*dto.PaymentResponse, len(payments))
	for i, p := range payments {
		items[i] = dto.NewPaymentResponse(p)
	}

	return &dto.ListPaymentsResponse{
		Items:      items,
		Pagination: types.NewPaginationResponse(len(items), len(items), 0),
	}, nil
}
