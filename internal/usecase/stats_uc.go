package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/onlymatt43/ONLY-ACCESS/internal/domain/model"
	"github.com/onlymatt43/ONLY-ACCESS/internal/domain/ports/repository"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

// CodeTotals summarizes the current code population for the admin panel.
type CodeTotals struct {
	Families int
	Issued   int
	Redeemed int
	Active   int // redeemed and not yet expired
}

type StatsUseCase interface {
	Totals(ctx context.Context) (*CodeTotals, error)
	Logs(ctx context.Context) ([]model.RedemptionEntry, error)
	// Export dumps the entire persisted document verbatim. Debugging and
	// audit escape hatch, not a stable API.
	Export(ctx context.Context) (*model.Document, error)
}

type statsUC struct {
	access repository.AccessRepository
	now    func() time.Time
	log    *zerolog.Logger
}

func NewStatsUseCase(access repository.AccessRepository, logger *zerolog.Logger) *statsUC {
	return &statsUC{access: access, now: time.Now, log: logger}
}

func (uc *statsUC) Totals(ctx context.Context) (*CodeTotals, error) {
	families, err := uc.access.ListFamilies(ctx)
	if err != nil {
		return nil, err
	}
	totals := &CodeTotals{Families: len(families)}
	now := uc.now()
	for i := range families {
		for j := range families[i].Children {
			c := &families[i].Children[j]
			totals.Issued++
			if c.Used {
				totals.Redeemed++
				if c.ExpiresAt != nil && now.Before(*c.ExpiresAt) {
					totals.Active++
				}
			}
		}
	}
	return totals, nil
}

func (uc *statsUC) Logs(ctx context.Context) ([]model.RedemptionEntry, error) {
	return uc.access.ListLogs(ctx)
}

func (uc *statsUC) Export(ctx context.Context) (*model.Document, error) {
	return uc.access.Export(ctx)
}
