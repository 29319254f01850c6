package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/onlymatt43/ONLY-ACCESS/internal/domain"
	"github.com/onlymatt43/ONLY-ACCESS/internal/domain/model"
	"github.com/onlymatt43/ONLY-ACCESS/internal/domain/ports/repository"
)

// Compile-time check
var _ IssueUseCase = (*issueUC)(nil)

// IssueRequest describes one admin issuance action: either a fresh family
// (Site/Label/Duration set) or an append to an existing one (FamilyID set).
type IssueRequest struct {
	FamilyID string
	Site     string
	Label    string
	Count    int
	Duration int // minutes
}

// IssuedBatch carries the plaintext codes back to the issuing admin. This
// is the only time the plaintexts exist outside the client's hands; the
// store keeps hashes only.
type IssuedBatch struct {
	FamilyID string
	Codes    []string
}

type IssueUseCase interface {
	IssueBatch(ctx context.Context, req IssueRequest) (*IssuedBatch, error)
}

type issueUC struct {
	access repository.AccessRepository
	now    func() time.Time
	log    *zerolog.Logger
}

func NewIssueUseCase(access repository.AccessRepository, logger *zerolog.Logger) *issueUC {
	return &issueUC{access: access, now: time.Now, log: logger}
}

func (uc *issueUC) IssueBatch(ctx context.Context, req IssueRequest) (*IssuedBatch, error) {
	var family *model.Family
	if req.FamilyID != "" {
		existing, err := uc.access.FindFamily(ctx, req.FamilyID)
		if err != nil {
			return nil, err
		}
		family = &model.Family{
			ID:        existing.ID,
			Label:     existing.Label,
			Site:      existing.Site,
			Duration:  existing.Duration,
			CreatedAt: existing.CreatedAt,
		}
	} else {
		if req.Duration <= 0 {
			return nil, fmt.Errorf("duration must be positive: %w", domain.ErrInvalidArgument)
		}
		if _, err := uc.access.FindSite(ctx, req.Site); err != nil {
			return nil, err
		}
		family = &model.Family{
			ID:        uuid.NewString(),
			Label:     req.Label,
			Site:      req.Site,
			Duration:  req.Duration,
			CreatedAt: uc.now(),
		}
	}

	// Zero or negative count is an empty batch, not an error.
	batch := &IssuedBatch{FamilyID: family.ID}
	seen := make(map[string]struct{}, req.Count)
	for len(batch.Codes) < req.Count {
		plaintext, err := generateAccessCode()
		if err != nil {
			return nil, fmt.Errorf("generate code: %w", err)
		}
		hash := model.HashCode(plaintext)
		if _, dup := seen[hash]; dup {
			continue
		}
		seen[hash] = struct{}{}
		family.Children = append(family.Children, model.ChildCode{
			ID:   uuid.NewString(),
			Hash: hash,
		})
		batch.Codes = append(batch.Codes, plaintext)
	}

	if err := uc.access.SaveFamily(ctx, family); err != nil {
		return nil, err
	}
	uc.log.Info().
		Str("family_id", family.ID).
		Str("site", family.Site).
		Int("count", len(batch.Codes)).
		Int("duration_min", family.Duration).
		Msg("issued access code batch")
	return batch, nil
}
