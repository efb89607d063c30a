package quotes

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gescom-erp/gescom/internal/billing/docref"
	"github.com/gescom-erp/gescom/internal/billing/shared"
)

type memoryQuoteRepo struct {
	quotes     map[int64]*Quote
	lines      map[int64][]QuoteLine
	nextID     int64
	nextLineID int64
	// failCreates makes the next N Create calls collide on the reference.
	failCreates int
}

func newMemoryQuoteRepo() *memoryQuoteRepo {
	return &memoryQuoteRepo{
		quotes: make(map[int64]*Quote),
		lines:  make(map[int64][]QuoteLine),
	}
}

func (r *memoryQuoteRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, r)
}

func (r *memoryQuoteRepo) Create(ctx context.Context, q Quote) (int64, error) {
	if r.failCreates > 0 {
		r.failCreates--
		return 0, ErrDuplicateReference
	}
	r.nextID++
	q.ID = r.nextID
	q.CreatedAt = time.Now()
	q.UpdatedAt = q.CreatedAt
	r.quotes[q.ID] = &q
	return q.ID, nil
}

func (r *memoryQuoteRepo) InsertLine(ctx context.Context, line QuoteLine) (int64, error) {
	r.nextLineID++
	line.ID = r.nextLineID
	r.lines[line.QuoteID] = append(r.lines[line.QuoteID], line)
	return line.ID, nil
}

func (r *memoryQuoteRepo) Get(ctx context.Context, id int64) (*Quote, error) {
	q, ok := r.quotes[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	out := *q
	out.Lines = r.lines[id]
	return &out, nil
}

func (r *memoryQuoteRepo) List(ctx context.Context, req ListQuotesRequest) ([]Quote, int, error) {
	var out []Quote
	for _, q := range r.quotes {
		if req.Status != nil && q.Status != *req.Status {
			continue
		}
		out = append(out, *q)
	}
	return out, len(out), nil
}

func (r *memoryQuoteRepo) UpdateHeader(ctx context.Context, id int64, updates map[string]any) error {
	q, ok := r.quotes[id]
	if !ok {
		return shared.ErrNotFound
	}
	if v, ok := updates["client_name"]; ok {
		q.Client.Name = v.(string)
	}
	if v, ok := updates["client_address"]; ok {
		q.Client.Address = v.(string)
	}
	if v, ok := updates["client_contact"]; ok {
		q.Client.Contact = v.(string)
	}
	if v, ok := updates["subject"]; ok {
		q.Subject = v.(string)
	}
	if v, ok := updates["delivery_terms"]; ok {
		q.DeliveryTerms = v.(string)
	}
	if v, ok := updates["validity_days"]; ok {
		q.ValidityDays = v.(int)
	}
	if v, ok := updates["warranty"]; ok {
		q.Warranty = v.(string)
	}
	if v, ok := updates["total_ht"]; ok {
		q.TotalHT = v.(int64)
	}
	return nil
}

func (r *memoryQuoteRepo) DeleteLines(ctx context.Context, quoteID int64) error {
	delete(r.lines, quoteID)
	return nil
}

func (r *memoryQuoteRepo) UpdateStatus(ctx context.Context, id int64, status QuoteStatus) error {
	q, ok := r.quotes[id]
	if !ok {
		return shared.ErrNotFound
	}
	q.Status = status
	return nil
}

func (r *memoryQuoteRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.quotes[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.quotes, id)
	return nil
}

func (r *memoryQuoteRepo) ListExpirable(ctx context.Context, asOf time.Time) ([]int64, error) {
	var ids []int64
	for id, q := range r.quotes {
		if q.Status != QuoteStatusSent {
			continue
		}
		if q.IssueDate.AddDate(0, 0, q.ValidityDays).Before(asOf) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func validCreateRequest() CreateQuoteRequest {
	return CreateQuoteRequest{
		Client: shared.ClientSnapshot{
			Name:    "SARL Ndiaye & Fils",
			Address: "12 Avenue Bourguiba, Dakar",
			Contact: "+221 77 000 00 00",
		},
		IssueDate:    time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		Subject:      "Installation électrique",
		ValidityDays: 30,
		Lines: []LineRequest{
			{Designation: "Câblage bureau", Quantity: 2, Unit: "u", UnitPrice: 50000},
			{Designation: "Tableau divisionnaire", Quantity: 1, UnitPrice: 100000},
		},
	}
}

func TestCreateQuoteComputesTotals(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryQuoteRepo()
	svc := NewService(repo)

	quote, err := svc.Create(ctx, validCreateRequest(), "user-7")
	require.NoError(t, err)
	require.Equal(t, QuoteStatusDraft, quote.Status)
	require.Equal(t, int64(200000), quote.TotalHT)
	require.Regexp(t, regexp.MustCompile(`^DEV-2608-[0-9A-F]{4}$`), quote.Reference)
	require.Equal(t, "user-7", quote.CreatedBy)

	require.Len(t, quote.Lines, 2)
	require.Equal(t, 1, quote.Lines[0].LineOrder)
	require.Equal(t, 2, quote.Lines[1].LineOrder)
	require.Equal(t, int64(100000), quote.Lines[0].Montant)
	require.Equal(t, int64(100000), quote.Lines[1].Montant)
}

func TestCreateQuoteRequiresLines(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryQuoteRepo())

	req := validCreateRequest()
	req.Lines = nil
	_, err := svc.Create(ctx, req, "user-7")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateQuoteRequiresClientName(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryQuoteRepo())

	req := validCreateRequest()
	req.Client.Name = "   "
	_, err := svc.Create(ctx, req, "user-7")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateQuoteRejectsNegativePrice(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryQuoteRepo())

	req := validCreateRequest()
	req.Lines[0].UnitPrice = -5
	_, err := svc.Create(ctx, req, "user-7")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateQuoteRetriesOnReferenceCollision(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryQuoteRepo()
	repo.failCreates = 2
	svc := NewService(repo)

	quote, err := svc.Create(ctx, validCreateRequest(), "user-7")
	require.NoError(t, err)
	require.NotEmpty(t, quote.Reference)
}

func TestCreateQuoteReferenceExhausted(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryQuoteRepo()
	repo.failCreates = docref.MaxAttempts
	svc := NewService(repo)

	_, err := svc.Create(ctx, validCreateRequest(), "user-7")
	require.ErrorIs(t, err, docref.ErrExhausted)
}

func TestUpdateQuoteReplacesLinesAndRecomputesTotal(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryQuoteRepo()
	svc := NewService(repo)

	quote, err := svc.Create(ctx, validCreateRequest(), "user-7")
	require.NoError(t, err)

	newLines := []LineRequest{
		{Designation: "Forfait déplacement", Quantity: 3, UnitPrice: 15000},
	}
	updated, err := svc.Update(ctx, quote.ID, UpdateQuoteRequest{Lines: &newLines})
	require.NoError(t, err)
	require.Equal(t, int64(45000), updated.TotalHT)
	require.Len(t, updated.Lines, 1)
	require.Equal(t, 1, updated.Lines[0].LineOrder)
}

func TestUpdateQuoteRejectedAfterTerminalStatus(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryQuoteRepo()
	svc := NewService(repo)

	quote, err := svc.Create(ctx, validCreateRequest(), "user-7")
	require.NoError(t, err)
	_, err = svc.ChangeStatus(ctx, quote.ID, QuoteStatusAccepted)
	require.NoError(t, err)

	subject := "nouveau sujet"
	_, err = svc.Update(ctx, quote.ID, UpdateQuoteRequest{Subject: &subject})
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestChangeStatusFollowsTransitionTable(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryQuoteRepo()
	svc := NewService(repo)

	quote, err := svc.Create(ctx, validCreateRequest(), "user-7")
	require.NoError(t, err)

	sent, err := svc.ChangeStatus(ctx, quote.ID, QuoteStatusSent)
	require.NoError(t, err)
	require.Equal(t, QuoteStatusSent, sent.Status)

	refused, err := svc.ChangeStatus(ctx, quote.ID, QuoteStatusRefused)
	require.NoError(t, err)
	require.Equal(t, QuoteStatusRefused, refused.Status)

	// Terminal: no way back.
	_, err = svc.ChangeStatus(ctx, quote.ID, QuoteStatusSent)
	require.ErrorIs(t, err, shared.ErrInvalidState)
	_, err = svc.ChangeStatus(ctx, quote.ID, QuoteStatusAccepted)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestChangeStatusRejectsUnknownTarget(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryQuoteRepo()
	svc := NewService(repo)

	quote, err := svc.Create(ctx, validCreateRequest(), "user-7")
	require.NoError(t, err)

	_, err = svc.ChangeStatus(ctx, quote.ID, QuoteStatus("PAID"))
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDeleteQuoteAllowedInAnyStatus(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryQuoteRepo()
	svc := NewService(repo)

	quote, err := svc.Create(ctx, validCreateRequest(), "user-7")
	require.NoError(t, err)
	_, err = svc.ChangeStatus(ctx, quote.ID, QuoteStatusAccepted)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, quote.ID))
	_, err = svc.Get(ctx, quote.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestExpireOverdue(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryQuoteRepo()
	svc := NewService(repo)

	stale, err := svc.Create(ctx, validCreateRequest(), "user-7")
	require.NoError(t, err)
	_, err = svc.ChangeStatus(ctx, stale.ID, QuoteStatusSent)
	require.NoError(t, err)

	fresh := validCreateRequest()
	fresh.IssueDate = time.Now().UTC()
	freshQuote, err := svc.Create(ctx, fresh, "user-7")
	require.NoError(t, err)
	_, err = svc.ChangeStatus(ctx, freshQuote.ID, QuoteStatusSent)
	require.NoError(t, err)

	count, err := svc.ExpireOverdue(ctx, time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC).AddDate(10, 0, 0))
	require.NoError(t, err)
	require.Equal(t, 2, count)

	count, err = svc.ExpireOverdue(ctx, time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, 0, count)
}
