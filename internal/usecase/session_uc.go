package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/onlymatt43/ONLY-ACCESS/internal/domain"
	"github.com/onlymatt43/ONLY-ACCESS/internal/domain/ports/repository"
)

// Compile-time check
var _ SessionUseCase = (*sessionUC)(nil)

// SessionStatus reports whether a previously issued token still grants
// access, and what it unlocks when it does.
type SessionStatus struct {
	Valid        bool
	ExpiresAt    time.Time
	IframeURL    string
	MerchantLink string
}

type SessionUseCase interface {
	// Validate is a pure read: it re-derives validity from the stored
	// record and the clock, and never mutates the child code, no matter
	// how often it is called.
	Validate(ctx context.Context, token, clientIP string) (*SessionStatus, error)
}

type sessionUC struct {
	access repository.AccessRepository
	now    func() time.Time
	log    *zerolog.Logger
}

func NewSessionUseCase(access repository.AccessRepository, logger *zerolog.Logger) *sessionUC {
	return &sessionUC{access: access, now: time.Now, log: logger}
}

func (uc *sessionUC) Validate(ctx context.Context, token, clientIP string) (*SessionStatus, error) {
	child, family, err := uc.access.FindChild(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &SessionStatus{}, nil
		}
		return nil, err
	}

	if !child.Used || child.UsedIP == nil || *child.UsedIP != clientIP {
		return &SessionStatus{}, nil
	}
	if child.ExpiresAt == nil || !uc.now().Before(*child.ExpiresAt) {
		return &SessionStatus{}, nil
	}

	status := &SessionStatus{Valid: true, ExpiresAt: *child.ExpiresAt}
	if site, err := uc.access.FindSite(ctx, family.Site); err == nil {
		status.IframeURL = site.IframeURL
		status.MerchantLink = site.MerchantLink
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return status, nil
}
