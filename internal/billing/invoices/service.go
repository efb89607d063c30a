package invoices

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/gescom-erp/gescom/internal/billing/docref"
	"github.com/gescom-erp/gescom/internal/billing/money"
	"github.com/gescom-erp/gescom/internal/billing/shared"
)

var validate = validator.New()

type Service struct {
	repo       Repository
	tvaPercent int64
}

func NewService(repo Repository, tvaPercent int64) *Service {
	return &Service{repo: repo, tvaPercent: tvaPercent}
}

// Create is the direct creation path, used when no quote precedes the
// invoice. Totals are computed from the lines and the configured tax rate;
// reference collisions retry in the invoice series up to docref.MaxAttempts.
func (s *Service) Create(ctx context.Context, req CreateInvoiceRequest, createdBy string) (*Invoice, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrValidation, err)
	}
	if err := req.Client.Validate(); err != nil {
		return nil, fmt.Errorf("%w: client name required", shared.ErrValidation)
	}

	issueDate := req.IssueDate
	if issueDate.IsZero() {
		issueDate = time.Now().UTC()
	}

	lines, totalHT, err := buildLines(req.Lines)
	if err != nil {
		return nil, err
	}
	totalTVA := money.TVA(totalHT, s.tvaPercent)
	totalTTC := totalHT + totalTVA

	inv := Invoice{
		IssueDate:   issueDate,
		DueDate:     req.DueDate,
		Client:      req.Client,
		Subject:     req.Subject,
		Notes:       req.Notes,
		TotalHT:     totalHT,
		TotalTVA:    totalTVA,
		TotalTTC:    totalTTC,
		MontantPaye: 0,
		ResteAPayer: totalTTC,
		Status:      InvoiceStatusDraft,
		BaseStatus:  InvoiceStatusDraft,
		CreatedBy:   createdBy,
	}

	var invoiceID int64
	for attempt := 0; attempt < docref.MaxAttempts; attempt++ {
		inv.Reference = docref.New(docref.SeriesInvoice, issueDate)

		err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
			id, err := repo.Create(ctx, inv)
			if err != nil {
				return err
			}
			invoiceID = id
			for _, line := range lines {
				line.InvoiceID = id
				if _, err := repo.InsertLine(ctx, line); err != nil {
					return fmt.Errorf("insert invoice line: %w", err)
				}
			}
			return nil
		})
		if err == nil {
			return s.repo.Get(ctx, invoiceID)
		}
		if err == ErrDuplicateReference {
			continue
		}
		return nil, err
	}
	return nil, docref.ErrExhausted
}

func (s *Service) Get(ctx context.Context, id int64) (*Invoice, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
	if req.Limit <= 0 {
		req.Limit = 50
	}
	return s.repo.List(ctx, req)
}

// Update mutates header fields at any point before cancellation. Line
// replacement is only legal while the invoice is still draft; it recomputes
// every total and re-derives the status against payments already recorded.
func (s *Service) Update(ctx context.Context, id int64, req UpdateInvoiceRequest) (*Invoice, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrValidation, err)
	}

	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Cancelled() {
		return nil, fmt.Errorf("%w: cancelled invoices cannot be modified", shared.ErrInvalidState)
	}
	if req.Lines != nil && !existing.LinesMutable() {
		return nil, fmt.Errorf("%w: lines are frozen once the invoice leaves draft", shared.ErrInvalidState)
	}

	updates := make(map[string]any)
	if req.Client != nil {
		if err := req.Client.Validate(); err != nil {
			return nil, fmt.Errorf("%w: client name required", shared.ErrValidation)
		}
		updates["client_name"] = req.Client.Name
		updates["client_address"] = req.Client.Address
		updates["client_contact"] = req.Client.Contact
	}
	if req.DueDate != nil {
		updates["due_date"] = *req.DueDate
	}
	if req.Subject != nil {
		updates["subject"] = *req.Subject
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}

	var lines []InvoiceLine
	var newStatus *InvoiceStatus
	if req.Lines != nil {
		var totalHT money.Amount
		lines, totalHT, err = buildLines(*req.Lines)
		if err != nil {
			return nil, err
		}
		totalTVA := money.TVA(totalHT, s.tvaPercent)
		totalTTC := totalHT + totalTVA
		reste := totalTTC - existing.MontantPaye
		if reste < 0 {
			return nil, fmt.Errorf("%w: new total below amount already paid", shared.ErrInvalidState)
		}
		updates["total_ht"] = totalHT
		updates["total_tva"] = totalTVA
		updates["total_ttc"] = totalTTC
		updates["reste_a_payer"] = reste
		derived := DeriveStatus(existing.BaseStatus, existing.MontantPaye, totalTTC)
		newStatus = &derived
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if len(updates) > 0 {
			if err := repo.UpdateHeader(ctx, id, updates); err != nil {
				return err
			}
		}
		if req.Lines != nil {
			if err := repo.DeleteLines(ctx, id); err != nil {
				return err
			}
			for _, line := range lines {
				line.InvoiceID = id
				if _, err := repo.InsertLine(ctx, line); err != nil {
					return err
				}
			}
			if err := repo.SetStatus(ctx, id, existing.BaseStatus, *newStatus); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update invoice: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Send moves a draft invoice out to the client. The visible status keeps
// reflecting payments already recorded against the draft.
func (s *Service) Send(ctx context.Context, id int64) (*Invoice, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.BaseStatus != InvoiceStatusDraft {
		return nil, fmt.Errorf("%w: only draft invoices can be sent", shared.ErrInvalidState)
	}

	status := DeriveStatus(InvoiceStatusSent, existing.MontantPaye, existing.TotalTTC)
	if err := s.repo.SetStatus(ctx, id, InvoiceStatusSent, status); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Cancel is the one explicit transition payment math can never produce.
// Once cancelled, the invoice rejects every further mutation.
func (s *Service) Cancel(ctx context.Context, id int64) (*Invoice, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Cancelled() {
		return nil, fmt.Errorf("%w: invoice already cancelled", shared.ErrInvalidState)
	}

	if err := s.repo.SetStatus(ctx, id, InvoiceStatusCancelled, InvoiceStatusCancelled); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// RecordPayment inserts a payment and recomputes the invoice position in the
// same transaction, under a row lock, so no reader observes an invoice whose
// totals lag a just-inserted payment.
func (s *Service) RecordPayment(ctx context.Context, invoiceID int64, req RecordPaymentRequest) (*Payment, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: payment amount must be positive", shared.ErrValidation)
	}
	if !req.Method.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", shared.ErrValidation, req.Method)
	}
	date := req.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}

	var payment Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		inv, err := repo.GetForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv.Cancelled() {
			return fmt.Errorf("%w: cancelled invoices accept no payments", shared.ErrInvalidState)
		}
		if req.Amount > inv.ResteAPayer {
			return fmt.Errorf("%w: payment of %d exceeds outstanding %d", shared.ErrInvalidState, req.Amount, inv.ResteAPayer)
		}

		payment = Payment{InvoiceID: invoiceID, Amount: req.Amount, Date: date, Method: req.Method}
		id, err := repo.InsertPayment(ctx, payment)
		if err != nil {
			return err
		}
		payment.ID = id

		return recompute(ctx, repo, inv)
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// DeletePayment removes a payment and recomputes the invoice symmetrically.
// The status may step back down as the paid amount decreases, but never
// below the invoice's last explicit status.
func (s *Service) DeletePayment(ctx context.Context, paymentID int64) (*Invoice, error) {
	payment, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		inv, err := repo.GetForUpdate(ctx, payment.InvoiceID)
		if err != nil {
			return err
		}
		if inv.Cancelled() {
			return fmt.Errorf("%w: cancelled invoices accept no payment mutations", shared.ErrInvalidState)
		}
		if err := repo.DeletePayment(ctx, paymentID); err != nil {
			return err
		}
		return recompute(ctx, repo, inv)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, payment.InvoiceID)
}

// Delete hard-deletes the invoice with its payments and lines.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.DeletePayments(ctx, id); err != nil {
			return err
		}
		if err := repo.DeleteLines(ctx, id); err != nil {
			return err
		}
		return repo.Delete(ctx, id)
	})
}

// recompute reloads the payment sum and rewrites montant_paye, reste_a_payer
// and the derived status. Must run on the same transaction that mutated the
// payments, after the invoice row was locked.
func recompute(ctx context.Context, repo Repository, inv *Invoice) error {
	paid, err := repo.SumPayments(ctx, inv.ID)
	if err != nil {
		return err
	}
	reste := inv.TotalTTC - paid
	if reste < 0 {
		reste = 0
	}
	status := DeriveStatus(inv.BaseStatus, paid, inv.TotalTTC)
	return repo.SetPaymentPosition(ctx, inv.ID, paid, reste, status)
}

func buildLines(reqs []LineRequest) ([]InvoiceLine, money.Amount, error) {
	ordered := make([]LineRequest, len(reqs))
	copy(ordered, reqs)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].LineOrder < ordered[j].LineOrder })

	lines := make([]InvoiceLine, 0, len(ordered))
	totals := make([]money.Line, 0, len(ordered))
	for i, lr := range ordered {
		montant, err := money.LineAmount(lr.Quantity, lr.UnitPrice)
		if err != nil {
			return nil, 0, err
		}
		lines = append(lines, InvoiceLine{
			LineOrder:   i + 1,
			Reference:   lr.Reference,
			Designation: lr.Designation,
			Details:     lr.Details,
			Quantity:    lr.Quantity,
			Unit:        lr.Unit,
			UnitPrice:   lr.UnitPrice,
			Montant:     montant,
			ProductID:   lr.ProductID,
		})
		totals = append(totals, money.Line{Index: i + 1, Montant: montant})
	}
	return lines, money.Total(totals), nil
}
