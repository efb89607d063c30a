package quotes

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

// DefaultValidityDays applies when a creation request leaves the validity
// period unset.
const DefaultValidityDays = 30

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create validates the request, assigns a reference in the quote series and
// persists the quote with its lines in one transaction. Reference suffix
// collisions retry with a fresh reference up to docref.MaxAttempts.
func (s *Service) Create(ctx context.Context, req CreateQuoteRequest, createdBy string) (*Quote, error) {
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
	validityDays := req.ValidityDays
	if validityDays == 0 {
		validityDays = DefaultValidityDays
	}

	lines, totalHT, err := buildLines(req.Lines)
	if err != nil {
		return nil, err
	}

	quote := Quote{
		IssueDate:     issueDate,
		Client:        req.Client,
		Subject:       req.Subject,
		DeliveryTerms: req.DeliveryTerms,
		ValidityDays:  validityDays,
		Warranty:      req.Warranty,
		TotalHT:       totalHT,
		Status:        QuoteStatusDraft,
		CreatedBy:     createdBy,
	}

	var quoteID int64
	for attempt := 0; attempt < docref.MaxAttempts; attempt++ {
		quote.Reference = docref.New(docref.SeriesQuote, issueDate)

		err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
			id, err := repo.Create(ctx, quote)
			if err != nil {
				return err
			}
			quoteID = id
			for _, line := range lines {
				line.QuoteID = id
				if _, err := repo.InsertLine(ctx, line); err != nil {
					return fmt.Errorf("insert quote line: %w", err)
				}
			}
			return nil
		})
		if err == nil {
			return s.repo.Get(ctx, quoteID)
		}
		if err == ErrDuplicateReference {
			continue
		}
		return nil, err
	}
	return nil, docref.ErrExhausted
}

// Update mutates header fields and optionally replaces the line set. Both
// are only legal while the quote is draft or sent; replacing lines
// recomputes TotalHT.
func (s *Service) Update(ctx context.Context, id int64, req UpdateQuoteRequest) (*Quote, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrValidation, err)
	}

	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !existing.Status.Mutable() {
		return nil, fmt.Errorf("%w: %s quotes cannot be modified", shared.ErrInvalidState, existing.Status)
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
	if req.Subject != nil {
		updates["subject"] = *req.Subject
	}
	if req.DeliveryTerms != nil {
		updates["delivery_terms"] = *req.DeliveryTerms
	}
	if req.ValidityDays != nil {
		updates["validity_days"] = *req.ValidityDays
	}
	if req.Warranty != nil {
		updates["warranty"] = *req.Warranty
	}

	var lines []QuoteLine
	if req.Lines != nil {
		var totalHT money.Amount
		lines, totalHT, err = buildLines(*req.Lines)
		if err != nil {
			return nil, err
		}
		updates["total_ht"] = totalHT
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
				line.QuoteID = id
				if _, err := repo.InsertLine(ctx, line); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update quote: %w", err)
	}

	return s.repo.Get(ctx, id)
}

// ChangeStatus applies an explicit, caller-driven transition. The state
// machine rejects unknown targets and any move out of a terminal status.
func (s *Service) ChangeStatus(ctx context.Context, id int64, target QuoteStatus) (*Quote, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, target)
	}

	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !existing.Status.CanTransitionTo(target) {
		return nil, fmt.Errorf("%w: cannot move quote from %s to %s", shared.ErrInvalidState, existing.Status, target)
	}

	if err := s.repo.UpdateStatus(ctx, id, target); err != nil {
		return nil, fmt.Errorf("update quote status: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Delete hard-deletes the quote and its lines. Permitted in any status: an
// invoice converted from the quote keeps its own copy of every line, so no
// invoice depends on the quote surviving.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.DeleteLines(ctx, id); err != nil {
			return err
		}
		return repo.Delete(ctx, id)
	})
}

func (s *Service) Get(ctx context.Context, id int64) (*Quote, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListQuotesRequest) ([]Quote, int, error) {
	if req.Limit <= 0 {
		req.Limit = 50
	}
	return s.repo.List(ctx, req)
}

// ExpireOverdue transitions every sent quote whose validity window has
// lapsed as of asOf to EXPIRED. Invoked by the scheduled sweep; nothing
// expires on a timer inside the core.
func (s *Service) ExpireOverdue(ctx context.Context, asOf time.Time) (int, error) {
	ids, err := s.repo.ListExpirable(ctx, asOf)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, id := range ids {
		if _, err := s.ChangeStatus(ctx, id, QuoteStatusExpired); err != nil {
			return expired, err
		}
		expired++
	}
	return expired, nil
}

// buildLines normalizes line ordering to a contiguous 1..n sequence and
// computes each montant and the document total.
func buildLines(reqs []LineRequest) ([]QuoteLine, money.Amount, error) {
	ordered := make([]LineRequest, len(reqs))
	copy(ordered, reqs)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].LineOrder < ordered[j].LineOrder })

	lines := make([]QuoteLine, 0, len(ordered))
	totals := make([]money.Line, 0, len(ordered))
	for i, lr := range ordered {
		montant, err := money.LineAmount(lr.Quantity, lr.UnitPrice)
		if err != nil {
			return nil, 0, err
		}
		lines = append(lines, QuoteLine{
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
