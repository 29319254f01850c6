package repository

import (
	"context"
	"time"

	"github.com/onlymatt43/ONLY-ACCESS/internal/domain/model"
)

// AccessRepository is the port for durable site/family/code state. The
// file-backed implementation rewrites the whole document on every
// mutation; the Postgres one updates rows in place. Either way, Redeem
// must be atomic: concurrent redemptions of the same child resolve to
// exactly one winner.
type AccessRepository interface {
	// Sites
	SaveSite(ctx context.Context, site *model.Site) error
	FindSite(ctx context.Context, title string) (*model.Site, error)
	ListSites(ctx context.Context) ([]model.Site, error)
	// DeleteSite removes the site and purges every family referencing it.
	DeleteSite(ctx context.Context, title string) error

	// Families
	// SaveFamily creates the family, or appends its children to an
	// existing family with the same ID.
	SaveFamily(ctx context.Context, family *model.Family) error
	FindFamily(ctx context.Context, id string) (*model.Family, error)
	ListFamilies(ctx context.Context) ([]model.Family, error)

	// Redeem transitions the child from unused to used, binding the IP
	// and timestamps. Returns domain.ErrCodeAlreadyUsed if another
	// redemption won the race, domain.ErrNotFound if the child is gone.
	Redeem(ctx context.Context, familyID, childID, ip string, activatedAt, expiresAt time.Time) error

	// FindChild looks a child up by its ID (the client token), returning
	// the owning family as well.
	FindChild(ctx context.Context, childID string) (*model.ChildCode, *model.Family, error)

	// PurgeExpired deletes redeemed children whose expiration passed
	// before the cutoff, returning how many were removed.
	PurgeExpired(ctx context.Context, cutoff time.Time) (int, error)

	// Redemption log
	AppendLog(ctx context.Context, entry *model.RedemptionEntry) error
	ListLogs(ctx context.Context) ([]model.RedemptionEntry, error)

	// Export returns the entire persisted document.
	Export(ctx context.Context) (*model.Document, error)
}
