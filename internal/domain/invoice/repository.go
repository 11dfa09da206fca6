package invoice

import (
	"context"

	"github.com/smartinvoice/smartinvoice/internal/types"
)

// Repository defines the persistence contract for the invoice aggregate.
// Each operation is atomic at single-aggregate granularity: an invoice is
// read and written together with its items and payments. Implementations
// must surface not-found distinctly (ierr.ErrNotFound), duplicate invoice
// numbers as ierr.ErrAlreadyExists, and stale-version updates as
// ierr.ErrVersionConflict.
type Repository interface {
	// Create persists a new aggregate with its items
	Create(ctx context.Context, inv *Invoice) error

	// Get retrieves the full aggregate by ID
	Get(ctx context.Context, id string) (*Invoice, error)

	// Update writes the aggregate back. The write succeeds only if the
	// stored version matches inv.Version; on success the version is
	// incremented.
	Update(ctx context.Context, inv *Invoice) error

	// Delete permanently removes the aggregate and its children
	Delete(ctx context.Context, inv *Invoice) error

	// List retrieves invoices matching the filter
	List(ctx context.Context, filter *types.InvoiceFilter) ([]*Invoice, error)

	// Count returns the number of invoices matching the filter
	Count(ctx context.Context, filter *types.InvoiceFilter) (int, error)

	// NextInvoiceNumber atomically allocates the next sequence value for the
	// period and returns the formatted invoice number. Exactly-once per
	// value under concurrent callers.
	NextInvoiceNumber(ctx context.Context, period string) (string, error)
}
