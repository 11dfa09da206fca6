package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/smartinvoice/smartinvoice/internal/api/dto"
	"github.com/smartinvoice/smartinvoice/internal/domain/invoice"
	ierr "github.com/smartinvoice/smartinvoice/internal/errors"
	"github.com/smartinvoice/smartinvoice/internal/testutil"
	"github.com/smartinvoice/smartinvoice/internal/types"
)

type InvoiceServiceSuite struct {
	testutil.BaseServiceTestSuite
	service        InvoiceService
	paymentService PaymentService
}

func TestInvoiceService(t *testing.T) {
	suite.Run(t, new(InvoiceServiceSuite))
}

func (s *InvoiceServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	params := ServiceParams{
		Logger:      s.GetLogger(),
		Config:      s.GetConfig(),
		DB:          s.GetDB(),
		InvoiceRepo: s.GetStores().InvoiceRepo,
	}
	s.service = NewInvoiceService(params)
	s.paymentService = NewPaymentService(params)
}

func (s *InvoiceServiceSuite) newCreateRequest() dto.CreateInvoiceRequest {
	return dto.CreateInvoiceRequest{
		CustomerID:    "cust_123",
		CustomerName:  "Acme Corp",
		CustomerEmail: "billing@acme.test",
		TaxRate:       decimal.NewFromInt(10),
		Items: []dto.CreateInvoiceItemRequest{
			{
				Description: "Consulting hours",
				Quantity:    2,
				UnitPrice:   decimal.NewFromFloat(50.00),
			},
			{
				Description:        "Software license",
				Quantity:           1,
				UnitPrice:          decimal.NewFromFloat(25.00),
				DiscountPercentage: decimal.NewFromInt(10),
			},
		},
	}
}

func (s *InvoiceServiceSuite) TestCreateInvoice() {
	resp, err := s.service.CreateInvoice(s.GetContext(), s.newCreateRequest())
	s.NoError(err)
	s.NotNil(resp)

	s.Equal(types.InvoiceStatusDraft, resp.Status)
	s.Equal("122.5", resp.SubTotal.String())
	s.Equal("12.25", resp.TaxAmount.String())
	s.Equal("134.75", resp.TotalAmount.String())
	s.Equal("134.75", resp.Balance.String())
	s.False(resp.IsFullyPaid)
	s.Equal(1, resp.Version)

	period := invoice.CurrentPeriod(time.Now().UTC())
	s.Equal(fmt.Sprintf("INV-%s-0001", period), resp.InvoiceNumber)

	s.Len(resp.Items, 2)
	s.Equal("100", resp.Items[0].Total.String())
	s.Equal("22.5", resp.Items[1].Total.String())
}

func (s *InvoiceServiceSuite) TestCreateInvoiceRoundTrip() {
	created, err := s.service.CreateInvoice(s.GetContext(), s.newCreateRequest())
	s.NoError(err)

	got, err := s.service.GetInvoice(s.GetContext(), created.ID)
	s.NoError(err)

	s.Equal(created.InvoiceNumber, got.InvoiceNumber)
	s.Equal(created.TotalAmount.String(), got.TotalAmount.String())
	s.Equal(created.Status, got.Status)
	s.Len(got.Items, 2)
	for i, item := range got.Items {
		s.Equal(created.Items[i].SubTotal.String(), item.SubTotal.String())
		s.Equal(created.Items[i].DiscountAmount.String(), item.DiscountAmount.String())
		s.Equal(created.Items[i].Total.String(), item.Total.String())
	}

	// repeated reads return identical figures
	again, err := s.service.GetInvoice(s.GetContext(), created.ID)
	s.NoError(err)
	s.Equal(got.TotalAmount.String(), again.TotalAmount.String())
	s.Equal(got.Status, again.Status)
}

func (s *InvoiceServiceSuite) TestCreateInvoiceValidation() {
	req := s.newCreateRequest()
	req.Items = nil
	_, err := s.service.CreateInvoice(s.GetContext(), req)
	s.Error(err)
	s.True(ierr.IsValidation(err))

	req = s.newCreateRequest()
	req.CustomerEmail = "not-an-email"
	_, err = s.service.CreateInvoice(s.GetContext(), req)
	s.Error(err)
	s.True(ierr.IsValidation(err))

	req = s.newCreateRequest()
	req.TaxRate = decimal.NewFromInt(101)
	_, err = s.service.CreateInvoice(s.GetContext(), req)
	s.Error(err)
	s.True(ierr.IsValidation(err))

	req = s.newCreateRequest()
	req.Items[0].Quantity = 0
	_, err = s.service.CreateInvoice(s.GetContext(), req)
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *InvoiceServiceSuite) TestConcurrentCreatesAllocateDistinctNumbers() {
	const n = 10

	var wg sync.WaitGroup
	results := make([]string, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := s.service.CreateInvoice(s.GetContext(), s.newCreateRequest())
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = resp.InvoiceNumber
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		s.NoError(errs[i])
	}

	// numbers are distinct and gapless from 1
	period := invoice.CurrentPeriod(time.Now().UTC())
	s.Len(lo.Uniq(results), n)
	for seq := 1; seq <= n; seq++ {
		s.Contains(results, fmt.Sprintf("INV-%s-%04d", period, seq))
	}
}

func (s *InvoiceServiceSuite) TestGetInvoiceNotFound() {
	_, err := s.service.GetInvoice(s.GetContext(), "inv_missing")
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *InvoiceServiceSuite) TestListInvoices() {
	first, err := s.service.CreateInvoice(s.GetContext(), s.newCreateRequest())
	s.NoError(err)

	otherReq := s.newCreateRequest()
	otherReq.CustomerID = "cust_456"
	second, err := s.service.CreateInvoice(s.GetContext(), otherReq)
	s.NoError(err)

	_, err = s.service.SendInvoice(s.GetContext(), second.ID)
	s.NoError(err)

	resp, err := s.service.ListInvoices(s.GetContext(), nil)
	s.NoError(err)
	s.Equal(2, resp.Pagination.Total)
	s.Len(resp.Items, 2)

	filter := types.NewInvoiceFilter()
	filter.InvoiceStatus = []types.InvoiceStatus{types.InvoiceStatusDraft}
	resp, err = s.service.ListInvoices(s.GetContext(), filter)
	s.NoError(err)
	s.Len(resp.Items, 1)
	s.Equal(first.ID, resp.Items[0].ID)

	filter = types.NewInvoiceFilter()
	filter.CustomerID = "cust_456"
	resp, err = s.service.ListInvoices(s.GetContext(), filter)
	s.NoError(err)
	s.Len(resp.Items, 1)
	s.Equal(second.ID, resp.Items[0].ID)
}

func (s *InvoiceServiceSuite) TestUpdateInvoice() {
	created, err := s.service.CreateInvoice(s.GetContext(), s.newCreateRequest())
	s.NoError(err)

	newDue := time.Now().UTC().AddDate(0, 0, 60)
	resp, err := s.service.UpdateInvoice(s.GetContext(), created.ID, dto.UpdateInvoiceRequest{
		Notes:   lo.ToPtr("net 60"),
		DueDate: &newDue,
		TaxRate: lo.ToPtr(decimal.Zero),
		Items: []dto.CreateInvoiceItemRequest{
			{Description: "Flat fee", Quantity: 1, UnitPrice: decimal.NewFromFloat(500.00)},
		},
	})
	s.NoError(err)
	s.Equal("net 60", resp.Notes)
	s.Equal("500", resp.SubTotal.String())
	s.Equal("0", resp.TaxAmount.String())
	s.Equal("500", resp.TotalAmount.String())
	s.Len(resp.Items, 1)
	s.Equal(2, resp.Version)
}

func (s *InvoiceServiceSuite) TestUpdateRejectedOutsideDraft() {
	created, err := s.service.CreateInvoice(s.GetContext(), s.newCreateRequest())
	s.NoError(err)
	_, err = s.service.SendInvoice(s.GetContext(), created.ID)
	s.NoError(err)

	_, err = s.service.UpdateInvoice(s.GetContext(), created.ID, dto.UpdateInvoiceRequest{
		Notes: lo.ToPtr("too late"),
	})
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *InvoiceServiceSuite) TestDeleteInvoice() {
	created, err := s.service.CreateInvoice(s.GetContext(), s.newCreateRequest())
	s.NoError(err)

	s.NoError(s.service.DeleteInvoice(s.GetContext(), created.ID))

	_, err = s.service.GetInvoice(s.GetContext(), created.ID)
	s.True(ierr.IsNotFound(err))
}

func (s *InvoiceServiceSuite) TestDeleteRejectedOutsideDraft() {
	created, err := s.service.CreateInvoice(s.GetContext(), s.newCreateRequest())
	s.NoError(err)
	_, err = s.service.SendInvoice(s.GetContext(), created.ID)
	s.NoError(err)

	err = s.service.DeleteInvoice(s.GetContext(), created.ID)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))

	// the invoice is unchanged and still retrievable
	got, err := s.service.GetInvoice(s.GetContext(), created.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusSent, got.Status)
}

func (s *InvoiceServiceSuite) TestSendInvoice() {
	created, err := s.service.CreateInvoice(s.GetContext(), s.newCreateRequest())
	s.NoError(err)

	resp, err := s.service.SendInvoice(s.GetContext(), created.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusSent, resp.Status)

	// a sent invoice cannot be sent again
	_, err = s.service.SendInvoice(s.GetContext(), created.ID)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *InvoiceServiceSuite) TestCancelInvoice() {
	created, err := s.service.CreateInvoice(s.GetContext(), s.newCreateRequest())
	s.NoError(err)
	_, err = s.service.SendInvoice(s.GetContext(), created.ID)
	s.NoError(err)

	resp, err := s.service.CancelInvoice(s.GetContext(), created.ID, dto.CancelInvoiceRequest{
		Reason: "customer disputed the charges",
	})
	s.NoError(err)
	s.Equal(types.InvoiceStatusCancelled, resp.Status)
	s.Equal("customer disputed the charges", resp.CancellationReason)
	s.NotNil(resp.CancelledDate)

	// terminal: cancelling again fails
	_, err = s.service.CancelInvoice(s.GetContext(), created.ID, dto.CancelInvoiceRequest{Reason: "again"})
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *InvoiceServiceSuite) TestCancelDraftRejected() {
	created, err := s.service.CreateInvoice(s.GetContext(), s.newCreateRequest())
	s.NoError(err)

	_, err = s.service.CancelInvoice(s.GetContext(), created.ID, dto.CancelInvoiceRequest{Reason: "changed my mind"})
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *InvoiceServiceSuite) TestGetCustomerInvoices() {
	_, err := s.service.CreateInvoice(s.GetContext(), s.newCreateRequest())
	s.NoError(err)
	_, err = s.service.CreateInvoice(s.GetContext(), s.newCreateRequest())
	s.NoError(err)

	otherReq := s.newCreateRequest()
	otherReq.CustomerID = "cust_456"
	_, err = s.service.CreateInvoice(s.GetContext(), otherReq)
	s.NoError(err)

	resp, err := s.service.GetCustomerInvoices(s.GetContext(), "cust_123")
	s.NoError(err)
	s.Len(resp.Items, 2)
	for _, inv := range resp.Items {
		s.Equal("cust_123", inv.CustomerID)
	}

	_, err = s.service.GetCustomerInvoices(s.GetContext(), "")
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *InvoiceServiceSuite) TestGetSummary() {
	// one draft invoice: 134.75
	_, err := s.service.CreateInvoice(s.GetContext(), s.newCreateRequest())
	s.NoError(err)

	// one sent, unpaid invoice: 134.75
	sent, err := s.service.CreateInvoice(s.GetContext(), s.newCreateRequest())
	s.NoError(err)
	_, err = s.service.SendInvoice(s.GetContext(), sent.ID)
	s.NoError(err)

	// one fully paid invoice: 134.75
	paid, err := s.service.CreateInvoice(s.GetContext(), s.newCreateRequest())
	s.NoError(err)
	_, err = s.service.SendInvoice(s.GetContext(), paid.ID)
	s.NoError(err)
	_, err = s.paymentService.AddPayment(s.GetContext(), paid.ID, dto.AddPaymentRequest{
		PaymentMethod: "bank_transfer",
		Amount:        decimal.NewFromFloat(134.75),
	})
	s.NoError(err)

	summary, err := s.service.GetSummary(s.GetContext(), nil, nil)
	s.NoError(err)

	s.Equal(3, summary.TotalInvoices)
	s.Equal("134.75", summary.TotalRevenue.String())
	s.Equal("134.75", summary.OutstandingAmount.String())
	s.Equal(0, summary.OverdueInvoices)
	s.Equal(1, summary.StatusCount[types.InvoiceStatusDraft])
	s.Equal(1, summary.StatusCount[types.InvoiceStatusSent])
	s.Equal(1, summary.StatusCount[types.InvoiceStatusPaid])

	month := time.Now().UTC().Format("2006-01")
	s.Equal("134.75", summary.MonthlyRevenue[month].String())
}
