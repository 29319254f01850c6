package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/onlymatt43/ONLY-ACCESS/internal/domain"
	"github.com/onlymatt43/ONLY-ACCESS/internal/domain/model"
	"github.com/onlymatt43/ONLY-ACCESS/internal/domain/ports/repository"
)

// Compile-time check
var _ RedeemUseCase = (*redeemUC)(nil)

// Grant is the result of a successful redemption. Token is the child
// code's identifier, handed to the client as an opaque capability; it is
// never the plaintext code or its hash.
type Grant struct {
	Token     string
	ExpiresAt time.Time
}

type RedeemUseCase interface {
	// Redeem attempts a strictly one-time activation: a second attempt
	// against the same code fails with domain.ErrCodeAlreadyUsed no
	// matter which address sends it. Session recovery goes through the
	// cookie validator instead.
	Redeem(ctx context.Context, familyID, plaintext, clientIP string) (*Grant, error)
}

type redeemUC struct {
	access  repository.AccessRepository
	limiter repository.RateLimiter
	submit  func(task func(ctx context.Context) error) error
	now     func() time.Time
	log     *zerolog.Logger
}

// NewRedeemUseCase constructs the redemption engine. submit, when
// non-nil, runs redemption-log appends off the request path; a nil
// submit appends synchronously.
func NewRedeemUseCase(
	access repository.AccessRepository,
	limiter repository.RateLimiter,
	submit func(task func(ctx context.Context) error) error,
	logger *zerolog.Logger,
) *redeemUC {
	return &redeemUC{access: access, limiter: limiter, submit: submit, now: time.Now, log: logger}
}

func (uc *redeemUC) Redeem(ctx context.Context, familyID, plaintext, clientIP string) (*Grant, error) {
	allowed, err := uc.limiter.Allow(ctx, clientIP)
	if err != nil {
		// A limiter backend outage should not lock every client out.
		uc.log.Warn().Err(err).Str("ip", clientIP).Msg("rate limiter unavailable, allowing attempt")
	} else if !allowed {
		return nil, domain.ErrRateLimited
	}

	family, err := uc.access.FindFamily(ctx, familyID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnknownFamily
		}
		return nil, err
	}

	// Match by hash only. A miss is reported the same way whether the
	// code exists in another family or nowhere at all.
	hash := model.HashCode(plaintext)
	var child *model.ChildCode
	for i := range family.Children {
		if family.Children[i].Hash == hash {
			child = &family.Children[i]
			break
		}
	}
	if child == nil {
		return nil, domain.ErrCodeNotInFamily
	}
	if child.Used {
		return nil, domain.ErrCodeAlreadyUsed
	}

	activatedAt := uc.now()
	expiresAt := activatedAt.Add(child.EffectiveDuration(family))
	if err := uc.access.Redeem(ctx, family.ID, child.ID, clientIP, activatedAt, expiresAt); err != nil {
		return nil, err
	}

	uc.appendLog(ctx, &model.RedemptionEntry{
		ID:          ulid.Make().String(),
		FamilyID:    family.ID,
		ChildID:     child.ID,
		IP:          clientIP,
		Site:        family.Site,
		ActivatedAt: activatedAt,
		Duration:    int(child.EffectiveDuration(family) / time.Minute),
	})

	uc.log.Info().
		Str("family_id", family.ID).
		Str("child_id", child.ID).
		Str("ip", clientIP).
		Time("expires_at", expiresAt).
		Msg("access code redeemed")
	return &Grant{Token: child.ID, ExpiresAt: expiresAt}, nil
}

func (uc *redeemUC) appendLog(ctx context.Context, entry *model.RedemptionEntry) {
	write := func(ctx context.Context) error {
		return uc.access.AppendLog(ctx, entry)
	}
	if uc.submit != nil {
		if err := uc.submit(write); err == nil {
			return
		}
		// Queue saturated: fall through to the synchronous path so the
		// entry is not lost.
	}
	if err := write(ctx); err != nil {
		uc.log.Error().Err(err).Str("child_id", entry.ChildID).Msg("append redemption log")
	}
}
