package invoice

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierr "github.com/smartinvoice/smartinvoice/internal/errors"
	"github.com/smartinvoice/smartinvoice/internal/types"
)

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		from    types.InvoiceStatus
		to      types.InvoiceStatus
		allowed bool
	}{
		{types.InvoiceStatusDraft, types.InvoiceStatusSent, true},
		{types.InvoiceStatusSent, types.InvoiceStatusPartiallyPaid, true},
		{types.InvoiceStatusSent, types.InvoiceStatusPaid, true},
		{types.InvoiceStatusSent, types.InvoiceStatusCancelled, true},
		{types.InvoiceStatusPartiallyPaid, types.InvoiceStatusPartiallyPaid, true},
		{types.InvoiceStatusPartiallyPaid, types.InvoiceStatusPaid, true},
		{types.InvoiceStatusPartiallyPaid, types.InvoiceStatusCancelled, true},

		{types.InvoiceStatusDraft, types.InvoiceStatusPaid, false},
		{types.InvoiceStatusDraft, types.InvoiceStatusPartiallyPaid, false},
		{types.InvoiceStatusDraft, types.InvoiceStatusCancelled, false},
		{types.InvoiceStatusPaid, types.InvoiceStatusSent, false},
		{types.InvoiceStatusPaid, types.InvoiceStatusCancelled, false},
		{types.InvoiceStatusCancelled, types.InvoiceStatusSent, false},
		{types.InvoiceStatusCancelled, types.InvoiceStatusPaid, false},
		{types.InvoiceStatusSent, types.InvoiceStatusDraft, false},
	}

	for _, tt := range tests {
		name := string(tt.from) + "_to_" + string(tt.to)
		t.Run(name, func(t *testing.T) {
			err := ValidateTransition(tt.from, tt.to)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, ierr.IsInvalidOperation(err))
			}
		})
	}
}

func TestLifecycleGuards(t *testing.T) {
	newInvoice := func(status types.InvoiceStatus) *Invoice {
		return &Invoice{
			ID:          "inv_test",
			Status:      status,
			TotalAmount: decimal.NewFromInt(100),
		}
	}

	t.Run("only_draft_can_be_updated", func(t *testing.T) {
		assert.NoError(t, newInvoice(types.InvoiceStatusDraft).CanUpdate())
		for _, status := range []types.InvoiceStatus{
			types.InvoiceStatusSent,
			types.InvoiceStatusPartiallyPaid,
			types.InvoiceStatusPaid,
			types.InvoiceStatusCancelled,
		} {
			err := newInvoice(status).CanUpdate()
			require.Error(t, err, "status %s", status)
			assert.True(t, ierr.IsInvalidOperation(err))
		}
	})

	t.Run("only_draft_can_be_deleted", func(t *testing.T) {
		assert.NoError(t, newInvoice(types.InvoiceStatusDraft).CanDelete())
		err := newInvoice(types.InvoiceStatusSent).CanDelete()
		require.Error(t, err)
		assert.True(t, ierr.IsInvalidOperation(err))
	})

	t.Run("only_draft_can_be_sent", func(t *testing.T) {
		assert.NoError(t, newInvoice(types.InvoiceStatusDraft).CanSend())
		err := newInvoice(types.InvoiceStatusSent).CanSend()
		require.Error(t, err)
	})

	t.Run("cancel_guards", func(t *testing.T) {
		assert.NoError(t, newInvoice(types.InvoiceStatusSent).CanCancel())
		assert.NoError(t, newInvoice(types.InvoiceStatusPartiallyPaid).CanCancel())

		for _, status := range []types.InvoiceStatus{
			types.InvoiceStatusDraft,
			types.InvoiceStatusPaid,
			types.InvoiceStatusCancelled,
		} {
			err := newInvoice(status).CanCancel()
			require.Error(t, err, "status %s", status)
			assert.True(t, ierr.IsInvalidOperation(err))
		}
	})

	t.Run("payments_only_in_sent_or_partially_paid", func(t *testing.T) {
		assert.NoError(t, newInvoice(types.InvoiceStatusSent).CanAcceptPayment())
		assert.NoError(t, newInvoice(types.InvoiceStatusPartiallyPaid).CanAcceptPayment())

		for _, status := range []types.InvoiceStatus{
			types.InvoiceStatusDraft,
			types.InvoiceStatusPaid,
			types.InvoiceStatusCancelled,
		} {
			err := newInvoice(status).CanAcceptPayment()
			require.Error(t, err, "status %s", status)
			assert.True(t, ierr.IsInvalidOperation(err))
		}
	})
}

func TestNextStatusAfterPayment(t *testing.T) {
	total := decimal.NewFromInt(200)

	assert.Equal(t, types.InvoiceStatusPaid, NextStatusAfterPayment(decimal.Zero, total))
	assert.Equal(t, types.InvoiceStatusPaid, NextStatusAfterPayment(decimal.NewFromInt(-10), total))
	assert.Equal(t, types.InvoiceStatusPartiallyPaid, NextStatusAfterPayment(decimal.NewFromInt(150), total))
	assert.Equal(t, types.InvoiceStatusPartiallyPaid, NextStatusAfterPayment(decimal.NewFromFloat(0.01), total))
	assert.Equal(t, types.InvoiceStatusSent, NextStatusAfterPayment(total, total))
}

func TestDerivedPredicates(t *testing.T) {
	now := time.Now().UTC()

	inv := &Invoice{
		Status:      types.InvoiceStatusSent,
		DueDate:     now.Add(-24 * time.Hour),
		TotalAmount: decimal.NewFromInt(100),
		Payments: []*Payment{
			{Amount: decimal.NewFromInt(40), Status: types.PaymentStatusCompleted},
			{Amount: decimal.NewFromInt(25), Status: types.PaymentStatusPending},
			{Amount: decimal.NewFromInt(10), Status: types.PaymentStatusFailed},
		},
	}

	// only completed payments count towards the balance
	assert.Equal(t, "60", inv.Balance().String())
	assert.False(t, inv.IsFullyPaid())

	assert.True(t, inv.IsOverdue(now))
	assert.Equal(t, types.InvoiceStatusOverdue, inv.EffectiveStatus(now))

	// overdue is a query-time view, never a stored status
	assert.Equal(t, types.InvoiceStatusSent, inv.Status)

	inv.DueDate = now.Add(24 * time.Hour)
	assert.False(t, inv.IsOverdue(now))
	assert.Equal(t, types.InvoiceStatusSent, inv.EffectiveStatus(now))

	inv.Payments = append(inv.Payments, &Payment{
		Amount: decimal.NewFromInt(60),
		Status: types.PaymentStatusCompleted,
	})
	assert.True(t, inv.IsFullyPaid())
	assert.True(t, inv.Balance().IsZero())
}

func TestInvoiceNumberFormat(t *testing.T) {
	period := CurrentPeriod(time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, "202608", period)

	assert.Equal(t, "INV-202608-0001", FormatInvoiceNumber(period, 1))
	assert.Equal(t, "INV-202608-0042", FormatInvoiceNumber(period, 42))
	assert.Equal(t, "INV-202608-12345", FormatInvoiceNumber(period, 12345))
}
