package quotes

import (
	"time"

	"github.com/gescom-erp/gescom/internal/billing/money"
	"github.com/gescom-erp/gescom/internal/billing/shared"
)

type QuoteStatus string

const (
	QuoteStatusDraft    QuoteStatus = "DRAFT"
	QuoteStatusSent     QuoteStatus = "SENT"
	QuoteStatusAccepted QuoteStatus = "ACCEPTED"
	QuoteStatusRefused  QuoteStatus = "REFUSED"
	QuoteStatusExpired  QuoteStatus = "EXPIRED"
)

// transitions is the explicit state machine: terminal statuses admit no
// further change, and line mutation is only legal while the quote is still
// mutable.
var transitions = map[QuoteStatus]map[QuoteStatus]struct{}{
	QuoteStatusDraft: {
		QuoteStatusSent:     {},
		QuoteStatusAccepted: {},
		QuoteStatusRefused:  {},
		QuoteStatusExpired:  {},
	},
	QuoteStatusSent: {
		QuoteStatusAccepted: {},
		QuoteStatusRefused:  {},
		QuoteStatusExpired:  {},
	},
}

// Valid reports whether s is one of the five known statuses.
func (s QuoteStatus) Valid() bool {
	switch s {
	case QuoteStatusDraft, QuoteStatusSent, QuoteStatusAccepted, QuoteStatusRefused, QuoteStatusExpired:
		return true
	}
	return false
}

// Mutable reports whether lines and header fields may still change.
func (s QuoteStatus) Mutable() bool {
	return s == QuoteStatusDraft || s == QuoteStatusSent
}

// CanTransitionTo reports whether the state machine allows s -> target.
func (s QuoteStatus) CanTransitionTo(target QuoteStatus) bool {
	allowed, ok := transitions[s]
	if !ok {
		return false
	}
	_, ok = allowed[target]
	return ok
}

// Quote is a priced, non-binding proposal. TotalHT is always the sum of the
// line amounts; it is recomputed on every line mutation, never edited
// directly.
type Quote struct {
	ID            int64                 `json:"id" db:"id"`
	Reference     string                `json:"reference" db:"reference"`
	IssueDate     time.Time             `json:"issue_date" db:"issue_date"`
	Client        shared.ClientSnapshot `json:"client"`
	Subject       string                `json:"subject" db:"subject"`
	DeliveryTerms string                `json:"delivery_terms" db:"delivery_terms"`
	ValidityDays  int                   `json:"validity_days" db:"validity_days"`
	Warranty      string                `json:"warranty" db:"warranty"`
	TotalHT       money.Amount          `json:"total_ht" db:"total_ht"`
	Status        QuoteStatus           `json:"status" db:"status"`
	InvoiceID     *int64                `json:"invoice_id,omitempty" db:"invoice_id"`
	CreatedBy     string                `json:"created_by" db:"created_by"`
	CreatedAt     time.Time             `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at" db:"updated_at"`
	Lines         []QuoteLine           `json:"lines,omitempty" db:"-"`
}

// Converted reports whether an invoice was already materialized from this
// quote.
func (q *Quote) Converted() bool {
	return q.InvoiceID != nil
}

// QuoteLine is one priced row. Montant is quantity x unit price in whole
// currency units. A product link is informational only; the price is a copy.
type QuoteLine struct {
	ID          int64        `json:"id" db:"id"`
	QuoteID     int64        `json:"quote_id" db:"quote_id"`
	LineOrder   int          `json:"line_order" db:"line_order"`
	Reference   string       `json:"reference" db:"reference"`
	Designation string       `json:"designation" db:"designation"`
	Details     *string      `json:"details,omitempty" db:"details"`
	Quantity    int64        `json:"quantity" db:"quantity"`
	Unit        string       `json:"unit" db:"unit"`
	UnitPrice   money.Amount `json:"unit_price" db:"unit_price"`
	Montant     money.Amount `json:"montant" db:"montant"`
	ProductID   *int64       `json:"product_id,omitempty" db:"product_id"`
}
