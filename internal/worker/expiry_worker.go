package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// ExpiryLedger is the slice of a payment ledger the worker sweeps.
type ExpiryLedger interface {
	ExpireOverdue(now time.Time) (int64, error)
}

// TokenPurger removes expired inbound access tokens.
type TokenPurger interface {
	PurgeExpired(cutoff time.Time) (int64, error)
}

// ExpiryWorker periodically closes WAITING_PAYMENT rows whose expiry has
// passed without a payment notification arriving, and purges expired
// inbound B2B tokens.
type ExpiryWorker struct {
	vaLogs   ExpiryLedger
	qrisLogs ExpiryLedger
	tokens   TokenPurger
	interval time.Duration
}

// NewExpiryWorker constructs an ExpiryWorker over both ledgers. tokens
// may be nil.
func NewExpiryWorker(vaLogs, qrisLogs ExpiryLedger, tokens TokenPurger, interval time.Duration) *ExpiryWorker {
	return &ExpiryWorker{vaLogs: vaLogs, qrisLogs: qrisLogs, tokens: tokens, interval: interval}
}

// Start begins the periodic sweep loop until context is canceled.
func (w *ExpiryWorker) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Msg("Starting expiry worker")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run()
		case <-ctx.Done():
			log.Info().Msg("Expiry worker stopped")
			return
		}
	}
}

func (w *ExpiryWorker) run() {
	now := time.Now()

	if n, err := w.vaLogs.ExpireOverdue(now); err != nil {
		log.Error().Err(err).Msg("Failed to expire overdue virtual accounts")
	} else if n > 0 {
		log.Info().Int64("count", n).Msg("Expired overdue virtual accounts")
	}

	if n, err := w.qrisLogs.ExpireOverdue(now); err != nil {
		log.Error().Err(err).Msg("Failed to expire overdue QR payments")
	} else if n > 0 {
		log.Info().Int64("count", n).Msg("Expired overdue QR payments")
	}

	if w.tokens != nil {
		if n, err := w.tokens.PurgeExpired(now); err != nil {
			log.Error().Err(err).Msg("Failed to purge expired B2B tokens")
		} else if n > 0 {
			log.Info().Int64("count", n).Msg("Purged expired B2B tokens")
		}
	}
}
