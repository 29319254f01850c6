package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/onlymatt43/ONLY-ACCESS/internal/domain/ports/repository"
	"github.com/onlymatt43/ONLY-ACCESS/internal/infra/metrics"
)

// SweepWorker periodically removes redeemed codes whose expiration passed
// more than the grace period ago. The session validator stays a pure
// read; cleanup lives here instead.
type SweepWorker struct {
	interval time.Duration
	grace    time.Duration
	access   repository.AccessRepository
	log      *zerolog.Logger
}

func NewSweepWorker(interval, grace time.Duration, access repository.AccessRepository, logger *zerolog.Logger) *SweepWorker {
	sweepLog := logger.With().Str("component", "SweepWorker").Logger()
	return &SweepWorker{
		interval: interval,
		grace:    grace,
		access:   access,
		log:      &sweepLog,
	}
}

func (w *SweepWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("grace", w.grace).Msg("starting sweep worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping sweep worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.access.PurgeExpired(ctx, time.Now().Add(-w.grace))
			if err != nil {
				w.log.Error().Err(err).Msg("sweep error")
				continue
			}
			if n > 0 {
				metrics.IncCodesSwept(n)
				w.log.Info().Int("count", n).Msg("expired codes removed")
			}
		}
	}
}
