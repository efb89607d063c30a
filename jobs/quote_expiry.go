package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/gescom-erp/gescom/internal/billing/quotes"
)

// NewQuoteExpiryHandler returns the handler for the scheduled sweep. Quotes
// never expire on a timer inside the core; this job drives the explicit
// EXPIRED transition for every sent quote whose validity window has lapsed.
func NewQuoteExpiryHandler(logger *slog.Logger, svc *quotes.Service) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		expired, err := svc.ExpireOverdue(ctx, time.Now().UTC())
		if err != nil {
			logger.Error("quote expiry sweep", slog.Any("error", err), slog.Int("expired", expired))
			return err
		}
		if expired > 0 {
			logger.Info("quote expiry sweep", slog.Int("expired", expired))
		}
		return nil
	}
}
