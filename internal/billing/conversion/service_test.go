package conversion

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gescom-erp/gescom/internal/billing/invoices"
	"github.com/gescom-erp/gescom/internal/billing/quotes"
	"github.com/gescom-erp/gescom/internal/billing/shared"
)

type memoryConversionRepo struct {
	quote         *quotes.Quote
	invoices      map[int64]*invoices.Invoice
	lines         map[int64][]invoices.InvoiceLine
	nextInvoiceID int64
	failLink      error
}

func newMemoryConversionRepo(q *quotes.Quote) *memoryConversionRepo {
	return &memoryConversionRepo{
		quote:    q,
		invoices: make(map[int64]*invoices.Invoice),
		lines:    make(map[int64][]invoices.InvoiceLine),
	}
}

func (r *memoryConversionRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, r)
}

func (r *memoryConversionRepo) GetQuoteForUpdate(ctx context.Context, id int64) (*quotes.Quote, error) {
	if r.quote == nil || r.quote.ID != id {
		return nil, shared.ErrNotFound
	}
	out := *r.quote
	return &out, nil
}

func (r *memoryConversionRepo) InsertInvoice(ctx context.Context, inv invoices.Invoice) (int64, error) {
	r.nextInvoiceID++
	inv.ID = r.nextInvoiceID
	r.invoices[inv.ID] = &inv
	return inv.ID, nil
}

func (r *memoryConversionRepo) InsertInvoiceLine(ctx context.Context, line invoices.InvoiceLine) (int64, error) {
	r.lines[line.InvoiceID] = append(r.lines[line.InvoiceID], line)
	return int64(len(r.lines[line.InvoiceID])), nil
}

func (r *memoryConversionRepo) LinkInvoice(ctx context.Context, quoteID, invoiceID int64) error {
	if r.failLink != nil {
		return r.failLink
	}
	r.quote.InvoiceID = &invoiceID
	return nil
}

func (r *memoryConversionRepo) GetInvoice(ctx context.Context, id int64) (*invoices.Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	out := *inv
	out.Lines = r.lines[id]
	return &out, nil
}

func acceptedQuote() *quotes.Quote {
	details := "y compris fournitures"
	return &quotes.Quote{
		ID:        42,
		Reference: "DEV-2608-A1B2",
		IssueDate: time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		Client: shared.ClientSnapshot{
			Name:    "SARL Ndiaye & Fils",
			Address: "12 Avenue Bourguiba, Dakar",
			Contact: "+221 77 000 00 00",
		},
		Subject:   "Installation électrique",
		TotalHT:   200000,
		Status:    quotes.QuoteStatusAccepted,
		CreatedBy: "user-7",
		Lines: []quotes.QuoteLine{
			{QuoteID: 42, LineOrder: 1, Designation: "Câblage bureau", Details: &details, Quantity: 2, Unit: "u", UnitPrice: 50000, Montant: 100000},
			{QuoteID: 42, LineOrder: 2, Designation: "Tableau divisionnaire", Quantity: 1, UnitPrice: 100000, Montant: 100000},
		},
	}
}

func TestConvertAcceptedQuote(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryConversionRepo(acceptedQuote())
	svc := NewService(repo, 18)

	inv, created, err := svc.Convert(ctx, 42)
	require.NoError(t, err)
	require.True(t, created)

	require.Equal(t, int64(200000), inv.TotalHT)
	require.Equal(t, int64(36000), inv.TotalTVA)
	require.Equal(t, int64(236000), inv.TotalTTC)
	require.Equal(t, int64(0), inv.MontantPaye)
	require.Equal(t, int64(236000), inv.ResteAPayer)
	require.Equal(t, invoices.InvoiceStatusDraft, inv.Status)
	require.Regexp(t, regexp.MustCompile(`^FAC-\d{4}-[0-9A-F]{4}$`), inv.Reference)

	require.NotNil(t, inv.QuoteID)
	require.Equal(t, int64(42), *inv.QuoteID)
	require.NotNil(t, repo.quote.InvoiceID)
	require.Equal(t, inv.ID, *repo.quote.InvoiceID)

	// Lines are copied as quoted, order and prices intact.
	require.Len(t, inv.Lines, 2)
	require.Equal(t, "Câblage bureau", inv.Lines[0].Designation)
	require.Equal(t, int64(50000), inv.Lines[0].UnitPrice)
	require.Equal(t, int64(100000), inv.Lines[1].Montant)
}

func TestConvertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryConversionRepo(acceptedQuote())
	svc := NewService(repo, 18)

	first, created, err := svc.Convert(ctx, 42)
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := svc.Convert(ctx, 42)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)
	require.Len(t, repo.invoices, 1)
}

func TestConvertRejectsNonAcceptedQuote(t *testing.T) {
	ctx := context.Background()
	for _, status := range []quotes.QuoteStatus{
		quotes.QuoteStatusDraft,
		quotes.QuoteStatusSent,
		quotes.QuoteStatusRefused,
		quotes.QuoteStatusExpired,
	} {
		q := acceptedQuote()
		q.Status = status
		repo := newMemoryConversionRepo(q)
		svc := NewService(repo, 18)

		_, _, err := svc.Convert(ctx, 42)
		require.ErrorIs(t, err, shared.ErrInvalidState, "status %s", status)
		require.Empty(t, repo.invoices, "status %s", status)
	}
}

func TestConvertMissingQuote(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryConversionRepo(acceptedQuote())
	svc := NewService(repo, 18)

	_, _, err := svc.Convert(ctx, 999)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestConvertWrapsStorageFailure(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryConversionRepo(acceptedQuote())
	repo.failLink = errors.New("connection reset")
	svc := NewService(repo, 18)

	_, _, err := svc.Convert(ctx, 42)
	require.ErrorIs(t, err, shared.ErrConversionFailed)
}
