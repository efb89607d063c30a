package conversion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gescom-erp/gescom/internal/billing/docref"
	"github.com/gescom-erp/gescom/internal/billing/invoices"
	"github.com/gescom-erp/gescom/internal/billing/money"
	"github.com/gescom-erp/gescom/internal/billing/quotes"
	"github.com/gescom-erp/gescom/internal/billing/shared"
)

type Service struct {
	repo       Repository
	tvaPercent int64
}

func NewService(repo Repository, tvaPercent int64) *Service {
	return &Service{repo: repo, tvaPercent: tvaPercent}
}

// Convert turns an accepted quote into a draft invoice exactly once. The
// returned bool reports whether the invoice was created by this call; a
// retry after a previous success returns the existing invoice instead.
//
// The quote row is locked and its status and back-link re-validated inside
// the transaction, so two concurrent conversions cannot both create an
// invoice.
func (s *Service) Convert(ctx context.Context, quoteID int64) (*invoices.Invoice, bool, error) {
	var invoiceID int64
	created := false

	for attempt := 0; attempt < docref.MaxAttempts; attempt++ {
		reference := docref.New(docref.SeriesInvoice, time.Now().UTC())

		err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
			quote, err := repo.GetQuoteForUpdate(ctx, quoteID)
			if err != nil {
				return err
			}
			if quote.Converted() {
				invoiceID = *quote.InvoiceID
				return nil
			}
			if quote.Status != quotes.QuoteStatusAccepted {
				return fmt.Errorf("%w: only accepted quotes convert, quote is %s", shared.ErrInvalidState, quote.Status)
			}

			inv := buildInvoice(quote, reference, s.tvaPercent)
			id, err := repo.InsertInvoice(ctx, inv)
			if err != nil {
				return err
			}
			for _, line := range quote.Lines {
				if _, err := repo.InsertInvoiceLine(ctx, copyLine(line, id)); err != nil {
					return err
				}
			}
			if err := repo.LinkInvoice(ctx, quoteID, id); err != nil {
				return err
			}
			invoiceID = id
			created = true
			return nil
		})
		if err == nil {
			inv, err := s.repo.GetInvoice(ctx, invoiceID)
			if err != nil {
				return nil, false, err
			}
			return inv, created, nil
		}
		if errors.Is(err, invoices.ErrDuplicateReference) {
			continue
		}
		if errors.Is(err, shared.ErrNotFound) || errors.Is(err, shared.ErrInvalidState) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("%w: %s", shared.ErrConversionFailed, err)
	}
	return nil, false, docref.ErrExhausted
}

// buildInvoice snapshots the quote into a draft invoice. Prices are copied
// as quoted, never repriced; the tax amount comes from the configured rate.
func buildInvoice(quote *quotes.Quote, reference string, tvaPercent int64) invoices.Invoice {
	totalTVA := money.TVA(quote.TotalHT, tvaPercent)
	totalTTC := quote.TotalHT + totalTVA

	return invoices.Invoice{
		Reference:   reference,
		IssueDate:   time.Now().UTC(),
		Client:      quote.Client,
		Subject:     quote.Subject,
		TotalHT:     quote.TotalHT,
		TotalTVA:    totalTVA,
		TotalTTC:    totalTTC,
		MontantPaye: 0,
		ResteAPayer: totalTTC,
		Status:      invoices.InvoiceStatusDraft,
		BaseStatus:  invoices.InvoiceStatusDraft,
		QuoteID:     &quote.ID,
		CreatedBy:   quote.CreatedBy,
	}
}

func copyLine(line quotes.QuoteLine, invoiceID int64) invoices.InvoiceLine {
	return invoices.InvoiceLine{
		InvoiceID:   invoiceID,
		LineOrder:   line.LineOrder,
		Reference:   line.Reference,
		Designation: line.Designation,
		Details:     line.Details,
		Quantity:    line.Quantity,
		Unit:        line.Unit,
		UnitPrice:   line.UnitPrice,
		Montant:     line.Montant,
		ProductID:   line.ProductID,
	}
}
