// Package docref generates human-readable document references of the form
// {PREFIX}-{YYMM}-{RANDOM4}. Uniqueness is enforced by the storage layer's
// unique constraint on the reference column; callers retry with a fresh
// suffix on collision, up to MaxAttempts.
package docref

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Series distinguishes the independent numbering sequences.
type Series string

const (
	SeriesQuote   Series = "DEV"
	SeriesInvoice Series = "FAC"
)

// MaxAttempts bounds reference-collision retries. This is the only retry
// policy in the billing core.
const MaxAttempts = 5

// ErrExhausted is returned once MaxAttempts candidate references all
// collided. Statistically this should never happen; it is surfaced as a
// retryable server error.
var ErrExhausted = errors.New("document reference attempts exhausted")

// New produces a candidate reference for the series and issue date, e.g.
// DEV-2608-4F0A. The suffix draws four hex characters from UUID randomness.
func New(series Series, issueDate time.Time) string {
	id := uuid.New()
	suffix := strings.ToUpper(fmt.Sprintf("%02x%02x", id[0], id[1]))
	return fmt.Sprintf("%s-%s-%s", series, issueDate.Format("0601"), suffix)
}
