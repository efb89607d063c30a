package invoices

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gescom-erp/gescom/internal/billing/money"
	"github.com/gescom-erp/gescom/internal/billing/shared"
	"github.com/gescom-erp/gescom/internal/platform/db"
)

// ErrDuplicateReference signals a reference suffix collision; the service
// retries with a fresh reference.
var ErrDuplicateReference = errors.New("duplicate invoice reference")

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Create(ctx context.Context, inv Invoice) (int64, error)
	InsertLine(ctx context.Context, line InvoiceLine) (int64, error)
	Get(ctx context.Context, id int64) (*Invoice, error)
	GetForUpdate(ctx context.Context, id int64) (*Invoice, error)
	List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error)
	UpdateHeader(ctx context.Context, id int64, updates map[string]any) error
	DeleteLines(ctx context.Context, invoiceID int64) error
	SetStatus(ctx context.Context, id int64, base, status InvoiceStatus) error
	SetPaymentPosition(ctx context.Context, id int64, montantPaye, resteAPayer money.Amount, status InvoiceStatus) error
	InsertPayment(ctx context.Context, p Payment) (int64, error)
	GetPayment(ctx context.Context, id int64) (*Payment, error)
	DeletePayment(ctx context.Context, id int64) error
	SumPayments(ctx context.Context, invoiceID int64) (money.Amount, error)
	DeletePayments(ctx context.Context, invoiceID int64) error
	Delete(ctx context.Context, id int64) error
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

// NewTxRepository binds the repository to an already-open transaction, for
// callers coordinating writes across tables in one unit of work.
func NewTxRepository(tx pgx.Tx, pool *pgxpool.Pool) Repository {
	return &repository{db: tx, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const invoiceColumns = `id, reference, issue_date, due_date, client_name, client_address,
	client_contact, subject, notes, total_ht, total_tva, total_ttc, montant_paye,
	reste_a_payer, status, base_status, quote_id, created_by, created_at, updated_at`

func (r *repository) Create(ctx context.Context, inv Invoice) (int64, error) {
	query := `
		INSERT INTO invoices (
			reference, issue_date, due_date, client_name, client_address, client_contact,
			subject, notes, total_ht, total_tva, total_ttc, montant_paye, reste_a_payer,
			status, base_status, quote_id, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NOW(), NOW())
		RETURNING id`

	var dueDate pgtype.Timestamptz
	if inv.DueDate != nil {
		dueDate = pgtype.Timestamptz{Time: *inv.DueDate, Valid: true}
	}
	var quoteID pgtype.Int8
	if inv.QuoteID != nil {
		quoteID = pgtype.Int8{Int64: *inv.QuoteID, Valid: true}
	}

	var id int64
	err := r.db.QueryRow(ctx, query,
		inv.Reference,
		inv.IssueDate,
		dueDate,
		inv.Client.Name,
		inv.Client.Address,
		inv.Client.Contact,
		inv.Subject,
		inv.Notes,
		inv.TotalHT,
		inv.TotalTVA,
		inv.TotalTTC,
		inv.MontantPaye,
		inv.ResteAPayer,
		string(inv.Status),
		string(inv.BaseStatus),
		quoteID,
		inv.CreatedBy,
	).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return 0, ErrDuplicateReference
		}
		return 0, err
	}
	return id, nil
}

func (r *repository) InsertLine(ctx context.Context, line InvoiceLine) (int64, error) {
	query := `
		INSERT INTO invoice_lines (
			invoice_id, line_order, reference, designation, details,
			quantity, unit, unit_price, montant, product_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	var details pgtype.Text
	if line.Details != nil {
		details = pgtype.Text{String: *line.Details, Valid: true}
	}
	var productID pgtype.Int8
	if line.ProductID != nil {
		productID = pgtype.Int8{Int64: *line.ProductID, Valid: true}
	}

	var id int64
	err := r.db.QueryRow(ctx, query,
		line.InvoiceID,
		line.LineOrder,
		line.Reference,
		line.Designation,
		details,
		line.Quantity,
		line.Unit,
		line.UnitPrice,
		line.Montant,
		productID,
	).Scan(&id)
	return id, err
}

func (r *repository) Get(ctx context.Context, id int64) (*Invoice, error) {
	query := fmt.Sprintf("SELECT %s FROM invoices WHERE id = $1", invoiceColumns)

	inv, err := scanInvoice(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: invoice %d", shared.ErrNotFound, id)
		}
		return nil, err
	}

	if inv.Lines, err = r.listLines(ctx, id); err != nil {
		return nil, err
	}
	if inv.Payments, err = r.listPayments(ctx, id); err != nil {
		return nil, err
	}
	return inv, nil
}

// GetForUpdate locks the invoice row for the remainder of the transaction.
// Lines and payments are not loaded.
func (r *repository) GetForUpdate(ctx context.Context, id int64) (*Invoice, error) {
	query := fmt.Sprintf("SELECT %s FROM invoices WHERE id = $1 FOR UPDATE", invoiceColumns)

	inv, err := scanInvoice(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: invoice %d", shared.ErrNotFound, id)
		}
		return nil, err
	}
	return inv, nil
}

func (r *repository) listLines(ctx context.Context, invoiceID int64) ([]InvoiceLine, error) {
	query := `
		SELECT id, invoice_id, line_order, reference, designation, details,
			quantity, unit, unit_price, montant, product_id
		FROM invoice_lines
		WHERE invoice_id = $1
		ORDER BY line_order`

	rows, err := r.db.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []InvoiceLine
	for rows.Next() {
		var line InvoiceLine
		var details pgtype.Text
		var productID pgtype.Int8
		err := rows.Scan(
			&line.ID, &line.InvoiceID, &line.LineOrder, &line.Reference, &line.Designation,
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

func (r *repository) listPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	query := `
		SELECT id, invoice_id, amount, paid_at, method, created_at
		FROM payments
		WHERE invoice_id = $1
		ORDER BY paid_at, id`

	rows, err := r.db.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Date, &p.Method, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *repository) List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
	where := "WHERE 1=1"
	var args []any
	argPos := 1

	if req.Status != nil {
		where += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, string(*req.Status))
		argPos++
	}
	if req.DateFrom != nil {
		where += fmt.Sprintf(" AND issue_date >= $%d", argPos)
		args = append(args, *req.DateFrom)
		argPos++
	}
	if req.DateTo != nil {
		where += fmt.Sprintf(" AND issue_date <= $%d", argPos)
		args = append(args, *req.DateTo)
		argPos++
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM invoices "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(
		"SELECT %s FROM invoices %s ORDER BY issue_date DESC, id DESC LIMIT $%d OFFSET $%d",
		invoiceColumns, where, argPos, argPos+1,
	)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *inv)
	}
	return out, total, rows.Err()
}

func (r *repository) UpdateHeader(ctx context.Context, id int64, updates map[string]any) error {
	query := "UPDATE invoices SET updated_at = NOW()"
	var args []any
	argPos := 1

	for _, col := range []string{
		"client_name", "client_address", "client_contact",
		"due_date", "subject", "notes", "total_ht", "total_tva", "total_ttc", "reste_a_payer",
	} {
		if v, ok := updates[col]; ok {
			query += fmt.Sprintf(", %s = $%d", col, argPos)
			args = append(args, v)
			argPos++
		}
	}

	query += fmt.Sprintf(" WHERE id = $%d", argPos)
	args = append(args, id)

	_, err := r.db.Exec(ctx, query, args...)
	return err
}

func (r *repository) DeleteLines(ctx context.Context, invoiceID int64) error {
	_, err := r.db.Exec(ctx, "DELETE FROM invoice_lines WHERE invoice_id = $1", invoiceID)
	return err
}

func (r *repository) SetStatus(ctx context.Context, id int64, base, status InvoiceStatus) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE invoices SET base_status = $2, status = $3, updated_at = NOW() WHERE id = $1",
		id, string(base), string(status),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: invoice %d", shared.ErrNotFound, id)
	}
	return nil
}

func (r *repository) SetPaymentPosition(ctx context.Context, id int64, montantPaye, resteAPayer money.Amount, status InvoiceStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE invoices
		 SET montant_paye = $2, reste_a_payer = $3, status = $4, updated_at = NOW()
		 WHERE id = $1`,
		id, montantPaye, resteAPayer, string(status),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: invoice %d", shared.ErrNotFound, id)
	}
	return nil
}

func (r *repository) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO payments (invoice_id, amount, paid_at, method, created_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 RETURNING id`,
		p.InvoiceID, p.Amount, p.Date, string(p.Method),
	).Scan(&id)
	return id, err
}

func (r *repository) GetPayment(ctx context.Context, id int64) (*Payment, error) {
	var p Payment
	err := r.db.QueryRow(ctx,
		"SELECT id, invoice_id, amount, paid_at, method, created_at FROM payments WHERE id = $1",
		id,
	).Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Date, &p.Method, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: payment %d", shared.ErrNotFound, id)
		}
		return nil, err
	}
	return &p, nil
}

func (r *repository) DeletePayment(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM payments WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: payment %d", shared.ErrNotFound, id)
	}
	return nil
}

func (r *repository) SumPayments(ctx context.Context, invoiceID int64) (money.Amount, error) {
	var sum int64
	err := r.db.QueryRow(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM payments WHERE invoice_id = $1",
		invoiceID,
	).Scan(&sum)
	return sum, err
}

func (r *repository) DeletePayments(ctx context.Context, invoiceID int64) error {
	_, err := r.db.Exec(ctx, "DELETE FROM payments WHERE invoice_id = $1", invoiceID)
	return err
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM invoices WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: invoice %d", shared.ErrNotFound, id)
	}
	return nil
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	var dueDate pgtype.Timestamptz
	var quoteID pgtype.Int8
	var issueDate, createdAt, updatedAt pgtype.Timestamptz

	err := row.Scan(
		&inv.ID, &inv.Reference, &issueDate, &dueDate, &inv.Client.Name, &inv.Client.Address,
		&inv.Client.Contact, &inv.Subject, &inv.Notes, &inv.TotalHT, &inv.TotalTVA, &inv.TotalTTC,
		&inv.MontantPaye, &inv.ResteAPayer, &inv.Status, &inv.BaseStatus, &quoteID,
		&inv.CreatedBy, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if issueDate.Valid {
		inv.IssueDate = issueDate.Time
	}
	if dueDate.Valid {
		inv.DueDate = &dueDate.Time
	}
	if quoteID.Valid {
		inv.QuoteID = &quoteID.Int64
	}
	if createdAt.Valid {
		inv.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		inv.UpdatedAt = updatedAt.Time
	}
	return &inv, nil
}
