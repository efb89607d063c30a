package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendDocument is the task type for e-mailing a rendered
	// billing document to a client.
	TaskTypeSendDocument = "mail:send"
	// TaskTypeQuoteExpiry is the task type for the scheduled sweep that
	// expires sent quotes past their validity window.
	TaskTypeQuoteExpiry = "quotes:expire"
)

// SendDocumentPayload describes the e-mail dispatch of a billing document.
type SendDocumentPayload struct {
	To           string `json:"to"`
	Subject      string `json:"subject"`
	DocumentKind string `json:"document_kind"`
	DocumentID   int64  `json:"document_id"`
}

// NewSendDocumentTask constructs an Asynq task.
func NewSendDocumentTask(payload SendDocumentPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendDocument, data), nil
}

// NewQuoteExpiryTask constructs the sweep task. It carries no payload; the
// handler works off the clock at execution time.
func NewQuoteExpiryTask() *asynq.Task {
	return asynq.NewTask(TaskTypeQuoteExpiry, nil)
}

// NewSendDocumentHandler processes TaskTypeSendDocument tasks. Delivery
// stays external; this logs the dispatch until the SMTP relay is wired.
func NewSendDocumentHandler(logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SendDocumentPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		logger.Info("dispatch document mail",
			slog.String("to", payload.To),
			slog.String("kind", payload.DocumentKind),
			slog.Int64("document_id", payload.DocumentID),
		)
		return nil
	}
}
