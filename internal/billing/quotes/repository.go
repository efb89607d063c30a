package quotes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gescom-erp/gescom/internal/billing/shared"
	"github.com/gescom-erp/gescom/internal/platform/db"
)

// ErrDuplicateReference signals a reference suffix collision; the service
// retries with a fresh reference.
var ErrDuplicateReference = errors.New("duplicate quote reference")

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Create(ctx context.Context, q Quote) (int64, error)
	InsertLine(ctx context.Context, line QuoteLine) (int64, error)
	Get(ctx context.Context, id int64) (*Quote, error)
	List(ctx context.Context, req ListQuotesRequest) ([]Quote, int, error)
	UpdateHeader(ctx context.Context, id int64, updates map[string]any) error
	DeleteLines(ctx context.Context, quoteID int64) error
	UpdateStatus(ctx context.Context, id int64, status QuoteStatus) error
	Delete(ctx context.Context, id int64) error
	ListExpirable(ctx context.Context, asOf time.Time) ([]int64, error)
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

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const quoteColumns = `id, reference, issue_date, client_name, client_address, client_contact,
	subject, delivery_terms, validity_days, warranty, total_ht, status, invoice_id,
	created_by, created_at, updated_at`

func (r *repository) Create(ctx context.Context, q Quote) (int64, error) {
	query := `
		INSERT INTO quotes (
			reference, issue_date, client_name, client_address, client_contact,
			subject, delivery_terms, validity_days, warranty, total_ht, status,
			created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		RETURNING id`

	var id int64
	err := r.db.QueryRow(ctx, query,
		q.Reference,
		q.IssueDate,
		q.Client.Name,
		q.Client.Address,
		q.Client.Contact,
		q.Subject,
		q.DeliveryTerms,
		q.ValidityDays,
		q.Warranty,
		q.TotalHT,
		string(q.Status),
		q.CreatedBy,
	).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return 0, ErrDuplicateReference
		}
		return 0, err
	}
	return id, nil
}

func (r *repository) InsertLine(ctx context.Context, line QuoteLine) (int64, error) {
	query := `
		INSERT INTO quote_lines (
			quote_id, line_order, reference, designation, details,
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
		line.QuoteID,
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

func (r *repository) Get(ctx context.Context, id int64) (*Quote, error) {
	query := fmt.Sprintf("SELECT %s FROM quotes WHERE id = $1", quoteColumns)

	q, err := scanQuote(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: quote %d", shared.ErrNotFound, id)
		}
		return nil, err
	}

	lines, err := r.listLines(ctx, id)
	if err != nil {
		return nil, err
	}
	q.Lines = lines
	return q, nil
}

func (r *repository) listLines(ctx context.Context, quoteID int64) ([]QuoteLine, error) {
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

	var lines []QuoteLine
	for rows.Next() {
		var line QuoteLine
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

func (r *repository) List(ctx context.Context, req ListQuotesRequest) ([]Quote, int, error) {
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
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM quotes "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(
		"SELECT %s FROM quotes %s ORDER BY issue_date DESC, id DESC LIMIT $%d OFFSET $%d",
		quoteColumns, where, argPos, argPos+1,
	)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *q)
	}
	return out, total, rows.Err()
}

func (r *repository) UpdateHeader(ctx context.Context, id int64, updates map[string]any) error {
	query := "UPDATE quotes SET updated_at = NOW()"
	var args []any
	argPos := 1

	for _, col := range []string{
		"client_name", "client_address", "client_contact",
		"subject", "delivery_terms", "validity_days", "warranty", "total_ht",
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

func (r *repository) DeleteLines(ctx context.Context, quoteID int64) error {
	_, err := r.db.Exec(ctx, "DELETE FROM quote_lines WHERE quote_id = $1", quoteID)
	return err
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status QuoteStatus) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE quotes SET status = $2, updated_at = NOW() WHERE id = $1",
		id, string(status),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: quote %d", shared.ErrNotFound, id)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM quotes WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: quote %d", shared.ErrNotFound, id)
	}
	return nil
}

func (r *repository) ListExpirable(ctx context.Context, asOf time.Time) ([]int64, error) {
	query := `
		SELECT id FROM quotes
		WHERE status = $1
		  AND issue_date + make_interval(days => validity_days) < $2
		ORDER BY id`

	rows, err := r.db.Query(ctx, query, string(QuoteStatusSent), asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanQuote(row pgx.Row) (*Quote, error) {
	var q Quote
	var invoiceID pgtype.Int8
	var issueDate, createdAt, updatedAt pgtype.Timestamptz

	err := row.Scan(
		&q.ID, &q.Reference, &issueDate, &q.Client.Name, &q.Client.Address, &q.Client.Contact,
		&q.Subject, &q.DeliveryTerms, &q.ValidityDays, &q.Warranty, &q.TotalHT, &q.Status, &invoiceID,
		&q.CreatedBy, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if issueDate.Valid {
		q.IssueDate = issueDate.Time
	}
	if invoiceID.Valid {
		q.InvoiceID = &invoiceID.Int64
	}
	if createdAt.Valid {
		q.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		q.UpdatedAt = updatedAt.Time
	}
	return &q, nil
}
