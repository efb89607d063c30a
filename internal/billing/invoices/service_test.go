package invoices

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gescom-erp/gescom/internal/billing/docref"
	"github.com/gescom-erp/gescom/internal/billing/money"
	"github.com/gescom-erp/gescom/internal/billing/shared"
)

type memoryInvoiceRepo struct {
	invoices      map[int64]*Invoice
	lines         map[int64][]InvoiceLine
	payments      map[int64]*Payment
	nextID        int64
	nextLineID    int64
	nextPaymentID int64
	failCreates   int
}

func newMemoryInvoiceRepo() *memoryInvoiceRepo {
	return &memoryInvoiceRepo{
		invoices: make(map[int64]*Invoice),
		lines:    make(map[int64][]InvoiceLine),
		payments: make(map[int64]*Payment),
	}
}

func (r *memoryInvoiceRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, r)
}

func (r *memoryInvoiceRepo) Create(ctx context.Context, inv Invoice) (int64, error) {
	if r.failCreates > 0 {
		r.failCreates--
		return 0, ErrDuplicateReference
	}
	r.nextID++
	inv.ID = r.nextID
	r.invoices[inv.ID] = &inv
	return inv.ID, nil
}

func (r *memoryInvoiceRepo) InsertLine(ctx context.Context, line InvoiceLine) (int64, error) {
	r.nextLineID++
	line.ID = r.nextLineID
	r.lines[line.InvoiceID] = append(r.lines[line.InvoiceID], line)
	return line.ID, nil
}

func (r *memoryInvoiceRepo) Get(ctx context.Context, id int64) (*Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	out := *inv
	out.Lines = r.lines[id]
	for _, p := range r.payments {
		if p.InvoiceID == id {
			out.Payments = append(out.Payments, *p)
		}
	}
	return &out, nil
}

func (r *memoryInvoiceRepo) GetForUpdate(ctx context.Context, id int64) (*Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	out := *inv
	return &out, nil
}

func (r *memoryInvoiceRepo) List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
	var out []Invoice
	for _, inv := range r.invoices {
		if req.Status != nil && inv.Status != *req.Status {
			continue
		}
		out = append(out, *inv)
	}
	return out, len(out), nil
}

func (r *memoryInvoiceRepo) UpdateHeader(ctx context.Context, id int64, updates map[string]any) error {
	inv, ok := r.invoices[id]
	if !ok {
		return shared.ErrNotFound
	}
	if v, ok := updates["client_name"]; ok {
		inv.Client.Name = v.(string)
	}
	if v, ok := updates["client_address"]; ok {
		inv.Client.Address = v.(string)
	}
	if v, ok := updates["client_contact"]; ok {
		inv.Client.Contact = v.(string)
	}
	if v, ok := updates["due_date"]; ok {
		d := v.(time.Time)
		inv.DueDate = &d
	}
	if v, ok := updates["subject"]; ok {
		inv.Subject = v.(string)
	}
	if v, ok := updates["notes"]; ok {
		inv.Notes = v.(string)
	}
	if v, ok := updates["total_ht"]; ok {
		inv.TotalHT = v.(int64)
	}
	if v, ok := updates["total_tva"]; ok {
		inv.TotalTVA = v.(int64)
	}
	if v, ok := updates["total_ttc"]; ok {
		inv.TotalTTC = v.(int64)
	}
	if v, ok := updates["reste_a_payer"]; ok {
		inv.ResteAPayer = v.(int64)
	}
	return nil
}

func (r *memoryInvoiceRepo) DeleteLines(ctx context.Context, invoiceID int64) error {
	delete(r.lines, invoiceID)
	return nil
}

func (r *memoryInvoiceRepo) SetStatus(ctx context.Context, id int64, base, status InvoiceStatus) error {
	inv, ok := r.invoices[id]
	if !ok {
		return shared.ErrNotFound
	}
	inv.BaseStatus = base
	inv.Status = status
	return nil
}

func (r *memoryInvoiceRepo) SetPaymentPosition(ctx context.Context, id int64, montantPaye, resteAPayer money.Amount, status InvoiceStatus) error {
	inv, ok := r.invoices[id]
	if !ok {
		return shared.ErrNotFound
	}
	inv.MontantPaye = montantPaye
	inv.ResteAPayer = resteAPayer
	inv.Status = status
	return nil
}

func (r *memoryInvoiceRepo) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	r.nextPaymentID++
	p.ID = r.nextPaymentID
	r.payments[p.ID] = &p
	return p.ID, nil
}

func (r *memoryInvoiceRepo) GetPayment(ctx context.Context, id int64) (*Payment, error) {
	p, ok := r.payments[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	out := *p
	return &out, nil
}

func (r *memoryInvoiceRepo) DeletePayment(ctx context.Context, id int64) error {
	if _, ok := r.payments[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.payments, id)
	return nil
}

func (r *memoryInvoiceRepo) SumPayments(ctx context.Context, invoiceID int64) (money.Amount, error) {
	var sum money.Amount
	for _, p := range r.payments {
		if p.InvoiceID == invoiceID {
			sum += p.Amount
		}
	}
	return sum, nil
}

func (r *memoryInvoiceRepo) DeletePayments(ctx context.Context, invoiceID int64) error {
	for id, p := range r.payments {
		if p.InvoiceID == invoiceID {
			delete(r.payments, id)
		}
	}
	return nil
}

func (r *memoryInvoiceRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.invoices[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.invoices, id)
	return nil
}

func validInvoiceRequest() CreateInvoiceRequest {
	return CreateInvoiceRequest{
		Client: shared.ClientSnapshot{
			Name:    "SARL Ndiaye & Fils",
			Address: "12 Avenue Bourguiba, Dakar",
			Contact: "+221 77 000 00 00",
		},
		IssueDate: time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		Subject:   "Installation électrique",
		Lines: []LineRequest{
			{Designation: "Câblage bureau", Quantity: 2, Unit: "u", UnitPrice: 50000},
			{Designation: "Tableau divisionnaire", Quantity: 1, UnitPrice: 100000},
		},
	}
}

func newTestService() (*Service, *memoryInvoiceRepo) {
	repo := newMemoryInvoiceRepo()
	return NewService(repo, 18), repo
}

func TestCreateInvoiceComputesTotals(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	inv, err := svc.Create(ctx, validInvoiceRequest(), "user-7")
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusDraft, inv.Status)
	require.Equal(t, int64(200000), inv.TotalHT)
	require.Equal(t, int64(36000), inv.TotalTVA)
	require.Equal(t, int64(236000), inv.TotalTTC)
	require.Equal(t, int64(0), inv.MontantPaye)
	require.Equal(t, int64(236000), inv.ResteAPayer)
	require.Regexp(t, regexp.MustCompile(`^FAC-2608-[0-9A-F]{4}$`), inv.Reference)
	require.Len(t, inv.Lines, 2)
}

func TestCreateInvoiceRequiresLines(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	req := validInvoiceRequest()
	req.Lines = nil
	_, err := svc.Create(ctx, req, "user-7")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateInvoiceReferenceExhausted(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService()
	repo.failCreates = docref.MaxAttempts

	_, err := svc.Create(ctx, validInvoiceRequest(), "user-7")
	require.ErrorIs(t, err, docref.ErrExhausted)
}

func TestPaymentLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	inv, err := svc.Create(ctx, validInvoiceRequest(), "user-7")
	require.NoError(t, err)
	inv, err = svc.Send(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusSent, inv.Status)

	// Partial payment.
	first, err := svc.RecordPayment(ctx, inv.ID, RecordPaymentRequest{
		Amount: 80000,
		Method: PaymentMethodVirement,
	})
	require.NoError(t, err)

	inv, err = svc.Get(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, int64(80000), inv.MontantPaye)
	require.Equal(t, int64(156000), inv.ResteAPayer)
	require.Equal(t, InvoiceStatusPartiallyPaid, inv.Status)

	// Pay the remainder.
	_, err = svc.RecordPayment(ctx, inv.ID, RecordPaymentRequest{
		Amount: 156000,
		Method: PaymentMethodCheque,
	})
	require.NoError(t, err)

	inv, err = svc.Get(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), inv.ResteAPayer)
	require.Equal(t, InvoiceStatusPaid, inv.Status)

	// A paid invoice rejects any further payment and keeps its totals.
	_, err = svc.RecordPayment(ctx, inv.ID, RecordPaymentRequest{
		Amount: 1,
		Method: PaymentMethodEspeces,
	})
	require.ErrorIs(t, err, shared.ErrInvalidState)

	inv, err = svc.Get(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, int64(236000), inv.MontantPaye)

	// Deleting the first payment steps the status back down.
	inv, err = svc.DeletePayment(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, int64(156000), inv.MontantPaye)
	require.Equal(t, int64(80000), inv.ResteAPayer)
	require.Equal(t, InvoiceStatusPartiallyPaid, inv.Status)
}

func TestDeleteAllPaymentsRestoresExplicitStatus(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	inv, err := svc.Create(ctx, validInvoiceRequest(), "user-7")
	require.NoError(t, err)
	_, err = svc.Send(ctx, inv.ID)
	require.NoError(t, err)

	p, err := svc.RecordPayment(ctx, inv.ID, RecordPaymentRequest{
		Amount: 10000,
		Method: PaymentMethodEspeces,
	})
	require.NoError(t, err)

	inv, err = svc.DeletePayment(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), inv.MontantPaye)
	require.Equal(t, InvoiceStatusSent, inv.Status)
}

func TestOverpaymentRejected(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	inv, err := svc.Create(ctx, validInvoiceRequest(), "user-7")
	require.NoError(t, err)

	_, err = svc.RecordPayment(ctx, inv.ID, RecordPaymentRequest{
		Amount: inv.TotalTTC + 1,
		Method: PaymentMethodVirement,
	})
	require.ErrorIs(t, err, shared.ErrInvalidState)

	inv, err = svc.Get(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), inv.MontantPaye)
	require.Empty(t, inv.Payments)
}

func TestPaymentValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	inv, err := svc.Create(ctx, validInvoiceRequest(), "user-7")
	require.NoError(t, err)

	_, err = svc.RecordPayment(ctx, inv.ID, RecordPaymentRequest{Amount: -100, Method: PaymentMethodEspeces})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.RecordPayment(ctx, inv.ID, RecordPaymentRequest{Amount: 100, Method: "TROC"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCancelledInvoiceBlocksMutations(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	inv, err := svc.Create(ctx, validInvoiceRequest(), "user-7")
	require.NoError(t, err)
	p, err := svc.RecordPayment(ctx, inv.ID, RecordPaymentRequest{
		Amount: 10000,
		Method: PaymentMethodEspeces,
	})
	require.NoError(t, err)

	inv, err = svc.Cancel(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusCancelled, inv.Status)

	_, err = svc.RecordPayment(ctx, inv.ID, RecordPaymentRequest{
		Amount: 5000,
		Method: PaymentMethodEspeces,
	})
	require.ErrorIs(t, err, shared.ErrInvalidState)

	_, err = svc.DeletePayment(ctx, p.ID)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	subject := "avenant"
	_, err = svc.Update(ctx, inv.ID, UpdateInvoiceRequest{Subject: &subject})
	require.ErrorIs(t, err, shared.ErrInvalidState)

	_, err = svc.Cancel(ctx, inv.ID)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestLinesFrozenAfterSend(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	inv, err := svc.Create(ctx, validInvoiceRequest(), "user-7")
	require.NoError(t, err)
	_, err = svc.Send(ctx, inv.ID)
	require.NoError(t, err)

	newLines := []LineRequest{{Designation: "Autre chose", Quantity: 1, UnitPrice: 1000}}
	_, err = svc.Update(ctx, inv.ID, UpdateInvoiceRequest{Lines: &newLines})
	require.ErrorIs(t, err, shared.ErrInvalidState)

	// Header fields stay editable after send.
	notes := "paiement sous 30 jours"
	updated, err := svc.Update(ctx, inv.ID, UpdateInvoiceRequest{Notes: &notes})
	require.NoError(t, err)
	require.Equal(t, notes, updated.Notes)
}

func TestUpdateLinesWhileDraftRecomputesTotals(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	inv, err := svc.Create(ctx, validInvoiceRequest(), "user-7")
	require.NoError(t, err)

	newLines := []LineRequest{{Designation: "Forfait", Quantity: 1, UnitPrice: 100000}}
	updated, err := svc.Update(ctx, inv.ID, UpdateInvoiceRequest{Lines: &newLines})
	require.NoError(t, err)
	require.Equal(t, int64(100000), updated.TotalHT)
	require.Equal(t, int64(18000), updated.TotalTVA)
	require.Equal(t, int64(118000), updated.TotalTTC)
	require.Equal(t, int64(118000), updated.ResteAPayer)
}

func TestSendRequiresDraft(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	inv, err := svc.Create(ctx, validInvoiceRequest(), "user-7")
	require.NoError(t, err)
	_, err = svc.Send(ctx, inv.ID)
	require.NoError(t, err)

	_, err = svc.Send(ctx, inv.ID)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestDeleteInvoiceCascadesPayments(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService()

	inv, err := svc.Create(ctx, validInvoiceRequest(), "user-7")
	require.NoError(t, err)
	p, err := svc.RecordPayment(ctx, inv.ID, RecordPaymentRequest{
		Amount: 10000,
		Method: PaymentMethodMobileMoney,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, inv.ID))
	_, err = svc.Get(ctx, inv.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = repo.GetPayment(ctx, p.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
