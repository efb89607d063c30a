package conversion

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gescom-erp/gescom/internal/billing/invoices"
	"github.com/gescom-erp/gescom/internal/billing/quotes"
	"github.com/gescom-erp/gescom/internal/billing/shared"
	"github.com/gescom-erp/gescom/internal/platform/db"
)

// Repository spans the quote and invoice tables so a conversion commits or
// rolls back as one unit.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	GetQuoteForUpdate(ctx context.Context, id int64) (*quotes.Quote, error)
	InsertInvoice(ctx context.Context, inv invoices.Invoice) (int64, error)
	InsertInvoiceLine(ctx context.Context, line invoices.InvoiceLine) (int64, error)
	LinkInvoice(ctx context.Context, quoteID, invoiceID int64) error
	GetInvoice(ctx context.Context, id int64) (*invoices.Invoice, error)
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

type repository struct {
	db       dbtx
	pool     *pgxpool.Pool
	invoices invoices.Repository
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool, invoices: invoices.NewRepository(pool)}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		scoped := &repository{db: tx, pool: r.pool, invoices: r.invoices}
		return fn(ctx, scoped)
	})
}

// GetQuoteForUpdate locks the quote row so two concurrent conversions of the
// same quote serialize on it, then loads the lines to copy.
func (r *repository) GetQuoteForUpdate(ctx context.Context, id int64) (*quotes.Quote, error) {
	query := `
		SELECT id, reference, issue_date, client_name, client_address, client_contact,
			subject, total_ht, status, invoice_id, created_by
		FROM quotes
		WHERE id = $1
		FOR UPDATE`

	var q quotes.Quote
	var invoiceID pgtype.Int8
	var issueDate pgtype.Timestamptz
	err := r.db.QueryRow(ctx, query, id).Scan(
		&q.ID, &q.Reference, &issueDate, &q.Client.Name, &q.Client.Address, &q.Client.Contact,
		&q.Subject, &q.TotalHT, &q.Status, &invoiceID, &q.CreatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: quote %d", shared.ErrNotFound, id)
		}
		return nil, err
	}
	if issueDate.Valid {
		q.IssueDate = issueDate.Time
	}
	if invoiceID.Valid {
		q.InvoiceID = &invoiceID.Int64
	}

	if q.Lines, err = r.listQuoteLines(ctx, id); err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *repository) listQuoteLines(ctx context.Context, quoteID int64) ([]quotes.QuoteLine, error) {
	query := `
		SELECT id, quote_id, line_order, reference, designation, details,
			quantity, unit, unit_price, montant, product_id
		FROM quote_lines
		WHERE quote_id = $1
		ORDER BY line_order`

	rows, err := r.db.Query(ctx, query, quoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []quotes.QuoteLine
	for rows.Next() {
		var line quotes.QuoteLine
		var details pgtype.Text
		var productID pgtype.Int8
		err := rows.Scan(
			&line.ID, &line.QuoteID, &line.LineOrder, &line.Reference, &line.Designation,
			&details, &line.Quantity, &line.Unit, &line.UnitPrice, &line.Montant, &productID,
		)
		if err != nil {
			return nil, err
		}
		if details.Valid {
			line.Details = &details.String
		}
		if productID.Valid {
			line.ProductID = &productID.Int64
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *repository) InsertInvoice(ctx context.Context, inv invoices.Invoice) (int64, error) {
	return r.invoiceRepo().Create(ctx, inv)
}

func (r *repository) InsertInvoiceLine(ctx context.Context, line invoices.InvoiceLine) (int64, error) {
	return r.invoiceRepo().InsertLine(ctx, line)
}

func (r *repository) GetInvoice(ctx context.Context, id int64) (*invoices.Invoice, error) {
	return r.invoiceRepo().Get(ctx, id)
}

// invoiceRepo rebinds the invoice repository to this repository's current
// executor, so invoice writes issued mid-transaction land on the same tx.
func (r *repository) invoiceRepo() invoices.Repository {
	if tx, ok := r.db.(pgx.Tx); ok {
		return invoices.NewTxRepository(tx, r.pool)
	}
	return r.invoices
}

func (r *repository) LinkInvoice(ctx context.Context, quoteID, invoiceID int64) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE quotes SET invoice_id = $2, updated_at = NOW() WHERE id = $1",
		quoteID, invoiceID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: quote %d", shared.ErrNotFound, quoteID)
	}
	return nil
}
