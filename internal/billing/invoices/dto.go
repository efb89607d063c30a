package invoices

import (
	"time"

	"github.com/gescom-erp/gescom/internal/billing/money"
	"github.com/gescom-erp/gescom/internal/billing/shared"
)

type LineRequest struct {
	Reference   string       `json:"reference" validate:"max=50"`
	Designation string       `json:"designation" validate:"required,max=200"`
	Details     *string      `json:"details,omitempty" validate:"omitempty,max=2000"`
	Quantity    int64        `json:"quantity" validate:"required,gt=0"`
	Unit        string       `json:"unit" validate:"max=20"`
	UnitPrice   money.Amount `json:"unit_price" validate:"gte=0"`
	ProductID   *int64       `json:"product_id,omitempty" validate:"omitempty,gt=0"`
	LineOrder   int          `json:"line_order" validate:"gte=0"`
}

type CreateInvoiceRequest struct {
	Client    shared.ClientSnapshot `json:"client" validate:"required"`
	IssueDate time.Time             `json:"issue_date"`
	DueDate   *time.Time            `json:"due_date,omitempty"`
	Subject   string                `json:"subject" validate:"max=500"`
	Notes     string                `json:"notes" validate:"max=2000"`
	Lines     []LineRequest         `json:"lines" validate:"required,min=1,dive"`
}

type UpdateInvoiceRequest struct {
	Client  *shared.ClientSnapshot `json:"client,omitempty"`
	DueDate *time.Time             `json:"due_date,omitempty"`
	Subject *string                `json:"subject,omitempty" validate:"omitempty,max=500"`
	Notes   *string                `json:"notes,omitempty" validate:"omitempty,max=2000"`
	Lines   *[]LineRequest         `json:"lines,omitempty" validate:"omitempty,min=1,dive"`
}

type RecordPaymentRequest struct {
	Amount money.Amount  `json:"amount" validate:"required"`
	Date   time.Time     `json:"date"`
	Method PaymentMethod `json:"method" validate:"required"`
}

type ListInvoicesRequest struct {
	Status   *InvoiceStatus
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
	Offset   int
}
