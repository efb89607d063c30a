package invoices

import (
	"time"

	"github.com/gescom-erp/gescom/internal/billing/money"
	"github.com/gescom-erp/gescom/internal/billing/shared"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "DRAFT"
	InvoiceStatusSent          InvoiceStatus = "SENT"
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoiceStatusPaid          InvoiceStatus = "PAID"
	InvoiceStatusCancelled     InvoiceStatus = "CANCELLED"
)

// DeriveStatus computes the visible status from the last explicit status and
// the payment position. PARTIALLY_PAID and PAID exist only through this
// function; callers never set them directly.
func DeriveStatus(base InvoiceStatus, montantPaye, totalTTC money.Amount) InvoiceStatus {
	if base == InvoiceStatusCancelled {
		return InvoiceStatusCancelled
	}
	if totalTTC > 0 && montantPaye >= totalTTC {
		return InvoiceStatusPaid
	}
	if montantPaye > 0 {
		return InvoiceStatusPartiallyPaid
	}
	return base
}

type PaymentMethod string

const (
	PaymentMethodEspeces     PaymentMethod = "ESPECES"
	PaymentMethodCheque      PaymentMethod = "CHEQUE"
	PaymentMethodVirement    PaymentMethod = "VIREMENT"
	PaymentMethodCarte       PaymentMethod = "CARTE"
	PaymentMethodMobileMoney PaymentMethod = "MOBILE_MONEY"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodEspeces, PaymentMethodCheque, PaymentMethodVirement,
		PaymentMethodCarte, PaymentMethodMobileMoney:
		return true
	}
	return false
}

type Invoice struct {
	ID          int64                 `json:"id"`
	Reference   string                `json:"reference"`
	IssueDate   time.Time             `json:"issue_date"`
	DueDate     *time.Time            `json:"due_date,omitempty"`
	Client      shared.ClientSnapshot `json:"client"`
	Subject     string                `json:"subject"`
	Notes       string                `json:"notes"`
	TotalHT     money.Amount          `json:"total_ht"`
	TotalTVA    money.Amount          `json:"total_tva"`
	TotalTTC    money.Amount          `json:"total_ttc"`
	MontantPaye money.Amount          `json:"montant_paye"`
	ResteAPayer money.Amount          `json:"reste_a_payer"`
	// Status is derived; BaseStatus records the last explicit transition
	// (DRAFT, SENT or CANCELLED) that payment math falls back to.
	Status     InvoiceStatus `json:"status"`
	BaseStatus InvoiceStatus `json:"-"`
	QuoteID    *int64        `json:"quote_id,omitempty"`
	CreatedBy  string        `json:"created_by"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
	Lines      []InvoiceLine `json:"lines,omitempty"`
	Payments   []Payment     `json:"payments,omitempty"`
}

// LinesMutable reports whether billed items may still change. Once the
// invoice leaves draft it is a client-facing document and its lines freeze.
func (i *Invoice) LinesMutable() bool {
	return i.BaseStatus == InvoiceStatusDraft
}

func (i *Invoice) Cancelled() bool {
	return i.BaseStatus == InvoiceStatusCancelled
}

type InvoiceLine struct {
	ID          int64        `json:"id"`
	InvoiceID   int64        `json:"invoice_id"`
	LineOrder   int          `json:"line_order"`
	Reference   string       `json:"reference"`
	Designation string       `json:"designation"`
	Details     *string      `json:"details,omitempty"`
	Quantity    int64        `json:"quantity"`
	Unit        string       `json:"unit"`
	UnitPrice   money.Amount `json:"unit_price"`
	Montant     money.Amount `json:"montant"`
	ProductID   *int64       `json:"product_id,omitempty"`
}

type Payment struct {
	ID        int64         `json:"id"`
	InvoiceID int64         `json:"invoice_id"`
	Amount    money.Amount  `json:"amount"`
	Date      time.Time     `json:"date"`
	Method    PaymentMethod `json:"method"`
	CreatedAt time.Time     `json:"created_at"`
}
