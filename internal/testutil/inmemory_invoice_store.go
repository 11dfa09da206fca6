package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/smartinvoice/smartinvoice/internal/domain/invoice"
	ierr "github.com/smartinvoice/smartinvoice/internal/errors"
	"github.com/smartinvoice/smartinvoice/internal/types"
)

// InMemoryInvoiceStore implements invoice.Repository with the same
// uniqueness and optimistic-concurrency semantics as the postgres store.
type InMemoryInvoiceStore struct {
	*InMemoryStore[*invoice.Invoice]

	mu        sync.Mutex
	sequences map[string]int64
	txnOwner  map[string]string // transaction id -> payment id
}

func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	return &InMemoryInvoiceStore{
		InMemoryStore: NewInMemoryStore[*invoice.Invoice](),
		sequences:     make(map[string]int64),
		txnOwner:      make(map[string]string),
	}
}

func copyTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// copyInvoice returns a deep copy so callers never share mutable state
// with the store.
func copyInvoice(inv *invoice.Invoice) *invoice.Invoice {
	if inv == nil {
		return nil
	}

	out := *inv
	out.PaidDate = copyTimePtr(inv.PaidDate)
	out.CancelledDate = copyTimePtr(inv.CancelledDate)

	out.Items = make([]*invoice.InvoiceItem, len(inv.Items))
	for i, item := range inv.Items {
		itemCopy := *item
		out.Items[i] = &itemCopy
	}

	out.Payments = make([]*invoice.Payment, len(inv.Payments))
	for i, p := range inv.Payments {
		paymentCopy := *p
		if p.TransactionID != nil {
			paymentCopy.TransactionID = lo.ToPtr(*p.TransactionID)
		}
		out.Payments[i] = &paymentCopy
	}

	return &out
}

func (s *InMemoryInvoiceStore) Create(ctx context.Context, inv *invoice.Invoice) error {
	if inv == nil {
		return ierr.NewError("invoice cannot be nil").
			WithHint("Invoice data is required").
			Mark(ierr.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.InMemoryStore.List(ctx, nil, nil) {
		if existing.InvoiceNumber == inv.InvoiceNumber {
			return ierr.NewError("invoice number is already in use").
				WithHint("Invoice number is already in use").
				WithReportableDetails(map[string]any{
					"invoice_number": inv.InvoiceNumber,
				}).
				Mark(ierr.ErrAlreadyExists)
		}
	}

	if err := s.claimTransactionIDs(inv); err != nil {
		return err
	}
	return s.InMemoryStore.Create(ctx, inv.ID, copyInvoice(inv))
}

func (s *InMemoryInvoiceStore) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	inv, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invoice not found").
			WithReportableDetails(map[string]any{
				"invoice_id": id,
			}).
			Mark(ierr.ErrNotFound)
	}
	return copyInvoice(inv), nil
}

func (s *InMemoryInvoiceStore) Update(ctx context.Context, inv *invoice.Invoice) error {
	if inv == nil {
		return ierr.NewError("invoice cannot be nil").
			WithHint("Invoice data is required").
			Mark(ierr.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.InMemoryStore.Get(ctx, inv.ID)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Invoice not found").
			WithReportableDetails(map[string]any{
				"invoice_id": inv.ID,
			}).
			Mark(ierr.ErrNotFound)
	}

	if stored.Version != inv.Version {
		return ierr.NewError("invoice was modified concurrently").
			WithHint("Invoice was modified by another request, please retry").
			WithReportableDetails(map[string]any{
				"invoice_id": inv.ID,
				"version":    inv.Version,
			}).
			Mark(ierr.ErrVersionConflict)
	}

	if err := s.claimTransactionIDs(inv); err != nil {
		return err
	}

	next := copyInvoice(inv)
	next.Version++
	if err := s.InMemoryStore.Update(ctx, inv.ID, next); err != nil {
		return err
	}
	inv.Version++
	return nil
}

func (s *InMemoryInvoiceStore) Delete(ctx context.Context, inv *invoice.Invoice) error {
	if inv == nil {
		return ierr.NewError("invoice cannot be nil").
			WithHint("Invoice data is required").
			Mark(ierr.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.InMemoryStore.Delete(ctx, inv.ID); err != nil {
		return ierr.WithError(err).
			WithHint("Invoice not found").
			WithReportableDetails(map[string]any{
				"invoice_id": inv.ID,
			}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func invoiceFilterFn(filter *types.InvoiceFilter) func(ctx context.Context, inv *invoice.Invoice) bool {
	return func(ctx context.Context, inv *invoice.Invoice) bool {
		if filter == nil {
			return true
		}
		if len(filter.InvoiceIDs) > 0 && !lo.Contains(filter.InvoiceIDs, inv.ID) {
			return false
		}
		if filter.CustomerID != "" && inv.CustomerID != filter.CustomerID {
			return false
		}
		if len(filter.InvoiceStatus) > 0 && !lo.Contains(filter.InvoiceStatus, inv.Status) {
			return false
		}
		if filter.TimeRangeFilter != nil {
			if filter.StartTime != nil && inv.CreatedAt.Before(*filter.StartTime) {
				return false
			}
			if filter.EndTime != nil && inv.CreatedAt.After(*filter.EndTime) {
				return false
			}
		}
		return true
	}
}

func (s *InMemoryInvoiceStore) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	ascending := filter != nil && filter.QueryFilter != nil && filter.GetOrder() == types.OrderAsc
	items := s.InMemoryStore.List(ctx, invoiceFilterFn(filter), nil)
	sort.Slice(items, func(i, j int) bool {
		if ascending {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	if filter != nil && !filter.IsUnlimited() {
		offset := filter.GetOffset()
		limit := filter.GetLimit()
		if offset >= len(items) {
			items = nil
		} else {
			items = items[offset:]
			if len(items) > limit {
				items = items[:limit]
			}
		}
	}

	result := make([]*invoice.Invoice, len(items))
	for i, inv := range items {
		result[i] = copyInvoice(inv)
	}
	return result, nil
}

func (s *InMemoryInvoiceStore) Count(ctx context.Context, filter *types.InvoiceFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, invoiceFilterFn(filter)), nil
}

func (s *InMemoryInvoiceStore) NextInvoiceNumber(ctx context.Context, period string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sequences[period]++
	return invoice.FormatInvoiceNumber(period, s.sequences[period]), nil
}

// claimTransactionIDs enforces the unique transaction id constraint
// the database applies with a partial unique index.
func (s *InMemoryInvoiceStore) claimTransactionIDs(inv *invoice.Invoice) error {
	for _, p := range inv.Payments {
		if p.TransactionID == nil {
			continue
		}
		if owner, ok := s.txnOwner[*p.TransactionID]; ok && owner != p.ID {
			return ierr.NewError("transaction id is already recorded").
				WithHint("Transaction id is already recorded").
				WithReportableDetails(map[string]any{
					"transaction_id": *p.TransactionID,
				}).
				Mark(ierr.ErrAlreadyExists)
		}
	}
	for _, p := range inv.Payments {
		if p.TransactionID != nil {
			s.txnOwner[*p.TransactionID] = p.ID
		}
	}
	return nil
}

// Clear resets invoices, sequences and transaction id bookkeeping
func (s *InMemoryInvoiceStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.InMemoryStore.Clear()
	s.sequences = make(map[string]int64)
	s.txnOwner = make(map[string]string)
}
