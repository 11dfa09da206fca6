package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smartinvoice/smartinvoice/internal/api/dto"
	"github.com/smartinvoice/smartinvoice/internal/domain/invoice"
	ierr "github.com/smartinvoice/smartinvoice/internal/errors"
	"github.com/smartinvoice/smartinvoice/internal/types"
)

// InvoiceService drives the invoice lifecycle: creation with computed
// totals and an allocated number, draft edits, sending, cancellation and
// read-side aggregations.
type InvoiceService interface {
	CreateInvoice(ctx context.Context, req dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error)
	GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error)
	ListInvoices(ctx context.Context, filter *types.InvoiceFilter) (*dto.ListInvoicesResponse, error)
	UpdateInvoice(ctx context.Context, id string, req dto.UpdateInvoiceRequest) (*dto.InvoiceResponse, error)
	DeleteInvoice(ctx context.Context, id string) error
	SendInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error)
	CancelInvoice(ctx context.Context, id string, req dto.CancelInvoiceRequest) (*dto.InvoiceResponse, error)
	GetCustomerInvoices(ctx context.Context, customerID string) (*dto.ListInvoicesResponse, error)
	GetSummary(ctx context.Context, startTime, endTime *time.Time) (*dto.InvoiceSummaryResponse, error)
}

type invoiceService struct {
	ServiceParams
}

func NewInvoiceService(params ServiceParams) InvoiceService {
	return &invoiceService{ServiceParams: params}
}

func (s *invoiceService) CreateInvoice(ctx context.Context, req dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	items := make([]*invoice.InvoiceItem, len(req.Items))
	for i, itemReq := range req.Items {
		item, err := itemReq.ToInvoiceItem()
		if err != nil {
			return nil, err
		}
		items[i] = item
	}

	subTotal, taxAmount, totalAmount, err := invoice.ComputeInvoiceTotals(items, req.TaxRate)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	issueDate := now
	if req.IssueDate != nil {
		issueDate = req.IssueDate.UTC()
	}
	dueDate := issueDate.AddDate(0, 0, s.Config.Invoice.DueDays)
	if req.DueDate != nil {
		dueDate = req.DueDate.UTC()
	}

	var inv *invoice.Invoice
	// The allocator hands out unique numbers; the retry only covers a
	// number independently taken in storage between allocation and insert.
	err = retryOnConflict(ctx, s.Config.Invoice.MaxWriteRetries, ierr.IsAlreadyExists, func(ctx context.Context) error {
		invoiceNumber, err := s.InvoiceRepo.NextInvoiceNumber(ctx, invoice.CurrentPeriod(now))
		if err != nil {
			return err
		}

		inv = &invoice.Invoice{
			ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
			InvoiceNumber: invoiceNumber,
			CustomerID:    req.CustomerID,
			CustomerName:  req.CustomerName,
			CustomerEmail: req.CustomerEmail,
			IssueDate:     issueDate,
			DueDate:       dueDate,
			Notes:         req.Notes,
			SubTotal:      subTotal,
			TaxRate:       req.TaxRate,
			TaxAmount:     taxAmount,
			TotalAmount:   totalAmount,
			Status:        types.InvoiceStatusDraft,
			Items:         items,
			Version:       1,
			BaseModel:     types.GetDefaultBaseModel(),
		}
		if err := inv.Validate(); err != nil {
			return err
		}
		return s.InvoiceRepo.Create(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("created invoice",
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"customer_id", inv.CustomerID,
		"total_amount", inv.TotalAmount)

	return dto.NewInvoiceResponse(inv), nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewInvoiceResponse(inv), nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, filter *types.InvoiceFilter) (*dto.ListInvoicesResponse, error) {
	if filter == nil {
		filter = types.NewInvoiceFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	count, err := s.InvoiceRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	invoices, err := s.InvoiceRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.InvoiceResponse, len(invoices))
	for i, inv := range invoices {
		items[i] = dto.NewInvoiceResponse(inv)
	}

	return &dto.ListInvoicesResponse{
		Items:      items,
		Pagination: types.NewPaginationResponse(count, filter.GetLimit(), filter.GetOffset()),
	}, nil
}

func (s *invoiceService) UpdateInvoice(ctx context.Context, id string, req dto.UpdateInvoiceRequest) (*dto.InvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var inv *invoice.Invoice
	err := retryOnConflict(ctx, s.Config.Invoice.MaxWriteRetries, ierr.IsVersionConflict, func(ctx context.Context) error {
		return s.DB.WithTx(ctx, func(ctx context.Context) error {
			var err error
			inv, err = s.InvoiceRepo.Get(ctx, id)
			if err != nil {
				return err
			}
			if err := inv.CanUpdate(); err != nil {
				return err
			}

			if req.Notes != nil {
				inv.Notes = *req.Notes
			}
			if req.DueDate != nil {
				inv.DueDate = req.DueDate.UTC()
			}
			if req.TaxRate != nil {
				inv.TaxRate = *req.TaxRate
			}
			if req.Items != nil {
				items := make([]*invoice.InvoiceItem, len(req.Items))
				for i, itemReq := range req.Items {
					item, err := itemReq.ToInvoiceItem()
					if err != nil {
						return err
					}
					items[i] = item
				}
				inv.Items = items
			}

			subTotal, taxAmount, totalAmount, err := invoice.ComputeInvoiceTotals(inv.Items, inv.TaxRate)
			if err != nil {
				return err
			}
			inv.SubTotal = subTotal
			inv.TaxAmount = taxAmount
			inv.TotalAmount = totalAmount
			inv.Touch()

			if err := inv.Validate(); err != nil {
				return err
			}
			return s.InvoiceRepo.Update(ctx, inv)
		})
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("updated invoice",
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber)

	return dto.NewInvoiceResponse(inv), nil
}

func (s *invoiceService) DeleteInvoice(ctx context.Context, id string) error {
	var inv *invoice.Invoice
	// status guard and removal share one transaction
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.InvoiceRepo.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := inv.CanDelete(); err != nil {
			return err
		}
		return s.InvoiceRepo.Delete(ctx, inv)
	})
	if err != nil {
		return err
	}

	s.Logger.Infow("deleted invoice",
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber)
	return nil
}

func (s *invoiceService) SendInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	var inv *invoice.Invoice
	err := retryOnConflict(ctx, s.Config.Invoice.MaxWriteRetries, ierr.IsVersionConflict, func(ctx context.Context) error {
		return s.DB.WithTx(ctx, func(ctx context.Context) error {
			var err error
			inv, err = s.InvoiceRepo.Get(ctx, id)
			if err != nil {
				return err
			}
			if err := inv.CanSend(); err != nil {
				return err
			}

			inv.Status = types.InvoiceStatusSent
			inv.Touch()
			return s.InvoiceRepo.Update(ctx, inv)
		})
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("sent invoice",
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"customer_email", inv.CustomerEmail)

	return dto.NewInvoiceResponse(inv), nil
}

func (s *invoiceService) CancelInvoice(ctx context.Context, id string, req dto.CancelInvoiceRequest) (*dto.InvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var inv *invoice.Invoice
	err := retryOnConflict(ctx, s.Config.Invoice.MaxWriteRetries, ierr.IsVersionConflict, func(ctx context.Context) error {
		return s.DB.WithTx(ctx, func(ctx context.Context) error {
			var err error
			inv, err = s.InvoiceRepo.Get(ctx, id)
			if err != nil {
				return err
			}
			if err := inv.CanCancel(); err != nil {
				return err
			}

			now := time.Now().UTC()
			inv.Status = types.InvoiceStatusCancelled
			inv.CancelledDate = &now
			inv.CancellationReason = req.Reason
			inv.Touch()
			return s.InvoiceRepo.Update(ctx, inv)
		})
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("cancelled invoice",
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"reason", req.Reason)

	return dto.NewInvoiceResponse(inv), nil
}

func (s *invoiceService) GetCustomerInvoices(ctx context.Context, customerID string) (*dto.ListInvoicesResponse, error) {
	if customerID == "" {
		return nil, ierr.NewError("customer_id is required").
			WithHint("Please provide a customer id").
			Mark(ierr.ErrValidation)
	}

	filter := types.NewNoLimitInvoiceFilter()
	filter.CustomerID = customerID
	return s.ListInvoices(ctx, filter)
}

func (s *invoiceService) GetSummary(ctx context.Context, startTime, endTime *time.Time) (*dto.InvoiceSummaryResponse, error) {
	now := time.Now().UTC()
	end := now
	if endTime != nil {
		end = endTime.UTC()
	}
	start := end.Add(-types.SummaryDefaultWindow)
	if startTime != nil {
		start = startTime.UTC()
	}
	if end.Before(start) {
		return nil, ierr.NewError("end_time must be after start_time").
			WithHint("Please provide a valid time range").
			Mark(ierr.ErrValidation)
	}

	filter := types.NewNoLimitInvoiceFilter()
	filter.TimeRangeFilter = &types.TimeRangeFilter{StartTime: &start, EndTime: &end}

	invoices, err := s.InvoiceRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	summary := &dto.InvoiceSummaryResponse{
		StartTime:         start,
		EndTime:           end,
		TotalInvoices:     len(invoices),
		TotalRevenue:      decimal.Zero,
		OutstandingAmount: decimal.Zero,
		StatusCount:       make(map[types.InvoiceStatus]int),
		MonthlyRevenue:    make(map[string]decimal.Decimal),
	}

	for _, inv := range invoices {
		effective := inv.EffectiveStatus(now)
		summary.StatusCount[effective]++

		if inv.IsOverdue(now) {
			summary.OverdueInvoices++
		}

		switch inv.Status {
		case types.InvoiceStatusPaid, types.InvoiceStatusPartiallyPaid:
			summary.TotalRevenue = summary.TotalRevenue.Add(inv.TotalAmount)
			month := inv.CreatedAt.UTC().Format("2006-01")
			summary.MonthlyRevenue[month] = summary.MonthlyRevenue[month].Add(inv.TotalAmount)
		}

		switch effective {
		case types.InvoiceStatusSent, types.InvoiceStatusOverdue:
			summary.OutstandingAmount = summary.OutstandingAmount.Add(inv.Balance())
		}
	}

	return summary, nil
}
