package sqlstore

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lib/pq"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/smartinvoice/smartinvoice/internal/domain/invoice"
	ierr "github.com/smartinvoice/smartinvoice/internal/errors"
	"github.com/smartinvoice/smartinvoice/internal/logger"
	"github.com/smartinvoice/smartinvoice/internal/postgres"
	"github.com/smartinvoice/smartinvoice/internal/types"
)

//go:embed schema.sql
var schema string

// pgUniqueViolation is the postgres error code for unique constraint violations
const pgUniqueViolation = "23505"

// Migrate applies the storage schema. Idempotent.
func Migrate(ctx context.Context, client postgres.IClient) error {
	if _, err := client.Querier(ctx).ExecContext(ctx, schema); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to apply database schema").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

type invoiceRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

// NewInvoiceRepository creates a postgres-backed invoice repository
func NewInvoiceRepository(client postgres.IClient, logger *logger.Logger) invoice.Repository {
	return &invoiceRepository{client: client, logger: logger}
}

type invoiceRow struct {
	ID                 string          `db:"id"`
	InvoiceNumber      string          `db:"invoice_number"`
	CustomerID         string          `db:"customer_id"`
	CustomerName       string          `db:"customer_name"`
	CustomerEmail      string          `db:"customer_email"`
	IssueDate          time.Time       `db:"issue_date"`
	DueDate            time.Time       `db:"due_date"`
	PaidDate           *time.Time      `db:"paid_date"`
	CancelledDate      *time.Time      `db:"cancelled_date"`
	Notes              string          `db:"notes"`
	CancellationReason string          `db:"cancellation_reason"`
	SubTotal           decimal.Decimal `db:"sub_total"`
	TaxRate            decimal.Decimal `db:"tax_rate"`
	TaxAmount          decimal.Decimal `db:"tax_amount"`
	TotalAmount        decimal.Decimal `db:"total_amount"`
	Status             string          `db:"status"`
	Version            int             `db:"version"`
	CreatedAt          time.Time       `db:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
}

type invoiceItemRow struct {
	ID                 string          `db:"id"`
	InvoiceID          string          `db:"invoice_id"`
	Position           int             `db:"position"`
	Description        string          `db:"description"`
	Quantity           int             `db:"quantity"`
	UnitPrice          decimal.Decimal `db:"unit_price"`
	UnitType           string          `db:"unit_type"`
	DiscountPercentage decimal.Decimal `db:"discount_percentage"`
	SubTotal           decimal.Decimal `db:"sub_total"`
	DiscountAmount     decimal.Decimal `db:"discount_amount"`
	Total              decimal.Decimal `db:"total"`
}

type paymentRow struct {
	ID            string          `db:"id"`
	InvoiceID     string          `db:"invoice_id"`
	PaymentMethod string          `db:"payment_method"`
	TransactionID *string         `db:"transaction_id"`
	Amount        decimal.Decimal `db:"amount"`
	PaymentDate   time.Time       `db:"payment_date"`
	Notes         string          `db:"notes"`
	Status        string          `db:"status"`
}

func toInvoiceRow(inv *invoice.Invoice) invoiceRow {
	return invoiceRow{
		ID:                 inv.ID,
		InvoiceNumber:      inv.InvoiceNumber,
		CustomerID:         inv.CustomerID,
		CustomerName:       inv.CustomerName,
		CustomerEmail:      inv.CustomerEmail,
		IssueDate:          inv.IssueDate,
		DueDate:            inv.DueDate,
		PaidDate:           inv.PaidDate,
		CancelledDate:      inv.CancelledDate,
		Notes:              inv.Notes,
		CancellationReason: inv.CancellationReason,
		SubTotal:           inv.SubTotal,
		TaxRate:            inv.TaxRate,
		TaxAmount:          inv.TaxAmount,
		TotalAmount:        inv.TotalAmount,
		Status:             string(inv.Status),
		Version:            inv.Version,
		CreatedAt:          inv.CreatedAt,
		UpdatedAt:          inv.UpdatedAt,
	}
}

func (r invoiceRow) toDomain() *invoice.Invoice {
	return &invoice.Invoice{
		ID:                 r.ID,
		InvoiceNumber:      r.InvoiceNumber,
		CustomerID:         r.CustomerID,
		CustomerName:       r.CustomerName,
		CustomerEmail:      r.CustomerEmail,
		IssueDate:          r.IssueDate,
		DueDate:            r.DueDate,
		PaidDate:           r.PaidDate,
		CancelledDate:      r.CancelledDate,
		Notes:              r.Notes,
		CancellationReason: r.CancellationReason,
		SubTotal:           r.SubTotal,
		TaxRate:            r.TaxRate,
		TaxAmount:          r.TaxAmount,
		TotalAmount:        r.TotalAmount,
		Status:             types.InvoiceStatus(r.Status),
		Version:            r.Version,
		BaseModel: types.BaseModel{
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		},
	}
}

func (r invoiceItemRow) toDomain() *invoice.InvoiceItem {
	return &invoice.InvoiceItem{
		ID:                 r.ID,
		Description:        r.Description,
		Quantity:           r.Quantity,
		UnitPrice:          r.UnitPrice,
		UnitType:           r.UnitType,
		DiscountPercentage: r.DiscountPercentage,
		SubTotal:           r.SubTotal,
		DiscountAmount:     r.DiscountAmount,
		Total:              r.Total,
	}
}

func (r paymentRow) toDomain() *invoice.Payment {
	return &invoice.Payment{
		ID:            r.ID,
		PaymentMethod: r.PaymentMethod,
		TransactionID: r.TransactionID,
		Amount:        r.Amount,
		PaymentDate:   r.PaymentDate,
		Notes:         r.Notes,
		Status:        types.PaymentStatus(r.Status),
	}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation
}

func (r *invoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	return r.client.WithTx(ctx, func(ctx context.Context) error {
		q := r.client.Querier(ctx)

		row := toInvoiceRow(inv)
		_, err := q.ExecContext(ctx, `
			INSERT INTO invoices (
				id, invoice_number, customer_id, customer_name, customer_email,
				issue_date, due_date, paid_date, cancelled_date,
				notes, cancellation_reason,
				sub_total, tax_rate, tax_amount, total_amount,
				status, version, created_at, updated_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
				$11, $12, $13, $14, $15, $16, $17, $18, $19
			)`,
			row.ID, row.InvoiceNumber, row.CustomerID, row.CustomerName, row.CustomerEmail,
			row.IssueDate, row.DueDate, row.PaidDate, row.CancelledDate,
			row.Notes, row.CancellationReason,
			row.SubTotal, row.TaxRate, row.TaxAmount, row.TotalAmount,
			row.Status, row.Version, row.CreatedAt, row.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return ierr.WithError(err).
					WithHint("Invoice number is already in use").
					WithReportableDetails(map[string]any{
						"invoice_number": inv.InvoiceNumber,
					}).
					Mark(ierr.ErrAlreadyExists)
			}
			return ierr.WithError(err).
				WithHint("Failed to create invoice").
				Mark(ierr.ErrDatabase)
		}

		if err := r.insertItems(ctx, inv.ID, inv.Items); err != nil {
			return err
		}
		return r.insertPayments(ctx, inv.ID, inv.Payments)
	})
}

func (r *invoiceRepository) insertItems(ctx context.Context, invoiceID string, items []*invoice.InvoiceItem) error {
	q := r.client.Querier(ctx)
	for pos, item := range items {
		_, err := q.ExecContext(ctx, `
			INSERT INTO invoice_items (
				id, invoice_id, position, description, quantity,
				unit_price, unit_type, discount_percentage,
				sub_total, discount_amount, total
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			item.ID, invoiceID, pos, item.Description, item.Quantity,
			item.UnitPrice, item.UnitType, item.DiscountPercentage,
			item.SubTotal, item.DiscountAmount, item.Total,
		)
		if err != nil {
			return ierr.WithError(err).
				WithHint("Failed to write invoice items").
				Mark(ierr.ErrDatabase)
		}
	}
	return nil
}

// insertPayments appends payment rows that are not yet stored. Payments are
// append-only, so existing rows are never touched.
func (r *invoiceRepository) insertPayments(ctx context.Context, invoiceID string, payments []*invoice.Payment) error {
	q := r.client.Querier(ctx)
	for _, p := range payments {
		_, err := q.ExecContext(ctx, `
			INSERT INTO payments (
				id, invoice_id, payment_method, transaction_id,
				amount, payment_date, notes, status
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO NOTHING`,
			p.ID, invoiceID, p.PaymentMethod, p.TransactionID,
			p.Amount, p.PaymentDate, p.Notes, string(p.Status),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return ierr.WithError(err).
					WithHint("Transaction id is already recorded").
					WithReportableDetails(map[string]any{
						"transaction_id": lo.FromPtr(p.TransactionID),
					}).
					Mark(ierr.ErrAlreadyExists)
			}
			return ierr.WithError(err).
				WithHint("Failed to write payments").
				Mark(ierr.ErrDatabase)
		}
	}
	return nil
}

func (r *invoiceRepository) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	q := r.client.Querier(ctx)

	var row invoiceRow
	err := q.GetContext(ctx, &row, `SELECT * FROM invoices WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.WithError(err).
				WithHint("Invoice not found").
				WithReportableDetails(map[string]any{
					"invoice_id": id,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get invoice").
			Mark(ierr.ErrDatabase)
	}

	inv := row.toDomain()

	var itemRows []invoiceItemRow
	if err := q.SelectContext(ctx, &itemRows, `
		SELECT * FROM invoice_items WHERE invoice_id = $1 ORDER BY position`, id); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to load invoice items").
			Mark(ierr.ErrDatabase)
	}
	inv.Items = make([]*invoice.InvoiceItem, len(itemRows))
	for i, ir := range itemRows {
		inv.Items[i] = ir.toDomain()
	}

	var paymentRows []paymentRow
	if err := q.SelectContext(ctx, &paymentRows, `
		SELECT * FROM payments WHERE invoice_id = $1 ORDER BY payment_date`, id); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to load invoice payments").
			Mark(ierr.ErrDatabase)
	}
	inv.Payments = make([]*invoice.Payment, len(paymentRows))
	for i, pr := range paymentRows {
		inv.Payments[i] = pr.toDomain()
	}

	return inv, nil
}

func (r *invoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	return r.client.WithTx(ctx, func(ctx context.Context) error {
		q := r.client.Querier(ctx)

		row := toInvoiceRow(inv)
		res, err := q.ExecContext(ctx, `
			UPDATE invoices SET
				due_date = $1, paid_date = $2, cancelled_date = $3,
				notes = $4, cancellation_reason = $5,
				sub_total = $6, tax_rate = $7, tax_amount = $8, total_amount = $9,
				status = $10, version = version + 1, updated_at = $11
			WHERE id = $12 AND version = $13`,
			row.DueDate, row.PaidDate, row.CancelledDate,
			row.Notes, row.CancellationReason,
			row.SubTotal, row.TaxRate, row.TaxAmount, row.TotalAmount,
			row.Status, row.UpdatedAt,
			row.ID, row.Version,
		)
		if err != nil {
			return ierr.WithError(err).
				WithHint("Failed to update invoice").
				Mark(ierr.ErrDatabase)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return ierr.WithError(err).
				WithHint("Failed to update invoice").
				Mark(ierr.ErrDatabase)
		}
		if affected == 0 {
			// Distinguish a missing aggregate from a stale version
			var exists bool
			if err := q.GetContext(ctx, &exists,
				`SELECT EXISTS (SELECT 1 FROM invoices WHERE id = $1)`, inv.ID); err != nil {
				return ierr.WithError(err).
					WithHint("Failed to update invoice").
					Mark(ierr.ErrDatabase)
			}
			if !exists {
				return ierr.NewError("invoice not found").
					WithHint("Invoice not found").
					WithReportableDetails(map[string]any{
						"invoice_id": inv.ID,
					}).
					Mark(ierr.ErrNotFound)
			}
			return ierr.NewError("invoice was modified concurrently").
				WithHint("Invoice was modified by another request, please retry").
				WithReportableDetails(map[string]any{
					"invoice_id": inv.ID,
					"version":    inv.Version,
				}).
				Mark(ierr.ErrVersionConflict)
		}

		// Items are owned by the invoice and replaced as a unit
		if _, err := q.ExecContext(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, inv.ID); err != nil {
			return ierr.WithError(err).
				WithHint("Failed to replace invoice items").
				Mark(ierr.ErrDatabase)
		}
		if err := r.insertItems(ctx, inv.ID, inv.Items); err != nil {
			return err
		}

		if err := r.insertPayments(ctx, inv.ID, inv.Payments); err != nil {
			return err
		}

		inv.Version++
		return nil
	})
}

func (r *invoiceRepository) Delete(ctx context.Context, inv *invoice.Invoice) error {
	q := r.client.Querier(ctx)

	res, err := q.ExecContext(ctx, `DELETE FROM invoices WHERE id = $1`, inv.ID)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to delete invoice").
			Mark(ierr.ErrDatabase)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to delete invoice").
			Mark(ierr.ErrDatabase)
	}
	if affected == 0 {
		return ierr.NewError("invoice not found").
			WithHint("Invoice not found").
			WithReportableDetails(map[string]any{
				"invoice_id": inv.ID,
			}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *invoiceRepository) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	q := r.client.Querier(ctx)

	query, args := buildListQuery("SELECT *", filter)
	query += fmt.Sprintf(" ORDER BY created_at %s", orderKeyword(filter))
	if !filter.IsUnlimited() {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.GetLimit(), filter.GetOffset())
	}

	var rows []invoiceRow
	if err := q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list invoices").
			Mark(ierr.ErrDatabase)
	}

	invoices := make([]*invoice.Invoice, len(rows))
	for i, row := range rows {
		inv, err := r.Get(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		invoices[i] = inv
	}
	return invoices, nil
}

func (r *invoiceRepository) Count(ctx context.Context, filter *types.InvoiceFilter) (int, error) {
	q := r.client.Querier(ctx)

	query, args := buildListQuery("SELECT COUNT(*)", filter)

	var count int
	if err := q.GetContext(ctx, &count, query, args...); err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to count invoices").
			Mark(ierr.ErrDatabase)
	}
	return count, nil
}

func buildListQuery(selectClause string, filter *types.InvoiceFilter) (string, []interface{}) {
	query := selectClause + " FROM invoices WHERE 1=1"
	args := []interface{}{}

	if filter == nil {
		return query, args
	}

	if len(filter.InvoiceIDs) > 0 {
		args = append(args, pq.Array(filter.InvoiceIDs))
		query += fmt.Sprintf(" AND id = ANY($%d)", len(args))
	}
	if filter.CustomerID != "" {
		args = append(args, filter.CustomerID)
		query += fmt.Sprintf(" AND customer_id = $%d", len(args))
	}
	if len(filter.InvoiceStatus) > 0 {
		statuses := lo.Map(filter.InvoiceStatus, func(s types.InvoiceStatus, _ int) string {
			return string(s)
		})
		args = append(args, pq.Array(statuses))
		query += fmt.Sprintf(" AND status = ANY($%d)", len(args))
	}
	if filter.TimeRangeFilter != nil {
		if filter.StartTime != nil {
			args = append(args, *filter.StartTime)
			query += fmt.Sprintf(" AND created_at >= $%d", len(args))
		}
		if filter.EndTime != nil {
			args = append(args, *filter.EndTime)
			query += fmt.Sprintf(" AND created_at <= $%d", len(args))
		}
	}

	return query, args
}

func orderKeyword(filter *types.InvoiceFilter) string {
	if filter != nil && filter.QueryFilter != nil && filter.GetOrder() == types.OrderAsc {
		return "ASC"
	}
	return "DESC"
}

func (r *invoiceRepository) NextInvoiceNumber(ctx context.Context, period string) (string, error) {
	q := r.client.Querier(ctx)

	// Atomic upsert-and-increment: concurrent callers serialize on the
	// sequence row, so each observes a distinct value.
	var lastValue int64
	err := q.GetContext(ctx, &lastValue, `
		INSERT INTO invoice_sequences (period, last_value, created_at, updated_at)
		VALUES ($1, 1, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (period) DO UPDATE
		SET last_value = invoice_sequences.last_value + 1,
			updated_at = CURRENT_TIMESTAMP
		RETURNING last_value`, period)
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Invoice number generation failed").
			Mark(ierr.ErrDatabase)
	}

	r.logger.Debugw("allocated invoice sequence",
		"period", period,
		"sequence", lastValue)

	return invoice.FormatInvoiceNumber(period, lastValue), nil
}
