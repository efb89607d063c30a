package quotes

import (
	"time"

	"github.com/gescom-erp/gescom/internal/billing/shared"
)

type LineRequest struct {
	Reference   string  `json:"reference" validate:"max=50"`
	Designation string  `json:"designation" validate:"required,max=200"`
	Details     *string `json:"details,omitempty" validate:"omitempty,max=2000"`
	Quantity    int64   `json:"quantity" validate:"required,gt=0"`
	Unit        string  `json:"unit" validate:"max=20"`
	UnitPrice   int64   `json:"unit_price" validate:"gte=0"`
	ProductID   *int64  `json:"product_id,omitempty" validate:"omitempty,gt=0"`
	LineOrder   int     `json:"line_order" validate:"gte=0"`
}

type CreateQuoteRequest struct {
	Client        shared.ClientSnapshot `json:"client" validate:"required"`
	IssueDate     time.Time             `json:"issue_date"`
	Subject       string                `json:"subject" validate:"max=500"`
	DeliveryTerms string                `json:"delivery_terms" validate:"max=500"`
	ValidityDays  int                   `json:"validity_days" validate:"gte=0,lte=365"`
	Warranty      string                `json:"warranty" validate:"max=1000"`
	Lines         []LineRequest         `json:"lines" validate:"required,min=1,dive"`
}

type UpdateQuoteRequest struct {
	Client        *shared.ClientSnapshot `json:"client,omitempty"`
	Subject       *string                `json:"subject,omitempty" validate:"omitempty,max=500"`
	DeliveryTerms *string                `json:"delivery_terms,omitempty" validate:"omitempty,max=500"`
	ValidityDays  *int                   `json:"validity_days,omitempty" validate:"omitempty,gte=0,lte=365"`
	Warranty      *string                `json:"warranty,omitempty" validate:"omitempty,max=1000"`
	Lines         *[]LineRequest         `json:"lines,omitempty" validate:"omitempty,min=1,dive"`
}

type ChangeStatusRequest struct {
	Status QuoteStatus `json:"status" validate:"required"`
}

type ListQuotesRequest struct {
	Status   *QuoteStatus `json:"status,omitempty"`
	DateFrom *time.Time   `json:"date_from,omitempty"`
	DateTo   *time.Time   `json:"date_to,omitempty"`
	Limit    int          `json:"limit" validate:"gte=0,lte=1000"`
	Offset   int          `json:"offset" validate:"gte=0"`
}
