package shared

import "strings"

// ClientSnapshot is the client identity copied into a document at creation
// time. Documents never hold a live client foreign key, so historical quotes
// and invoices stay stable when the client record later changes.
type ClientSnapshot struct {
	Name    string `json:"name" db:"client_name" validate:"required,max=200"`
	Address string `json:"address" db:"client_address" validate:"max=500"`
	Contact string `json:"contact" db:"client_contact" validate:"max=200"`
}

// Validate reports whether the snapshot carries the minimum client identity.
func (c ClientSnapshot) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrValidation
	}
	return nil
}
