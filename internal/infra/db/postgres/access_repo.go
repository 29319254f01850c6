package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/onlymatt43/ONLY-ACCESS/internal/domain"
	"github.com/onlymatt43/ONLY-ACCESS/internal/domain/model"
	"github.com/onlymatt43/ONLY-ACCESS/internal/domain/ports/repository"
)

// Ensure implementation satisfies the interface.
var _ repository.AccessRepository = (*accessRepo)(nil)

// accessRepo is the Postgres-backed store. Unlike the file store it does
// not rewrite a whole document: redemption is a single per-row
// compare-and-swap, so concurrent redemptions cannot lose updates even
// across replicas.
type accessRepo struct {
	pool *pgxpool.Pool
}

func NewAccessRepo(pool *pgxpool.Pool) repository.AccessRepository {
	return &accessRepo{pool: pool}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// ----- sites -----

func (r *accessRepo) SaveSite(ctx context.Context, site *model.Site) error {
	const q = `
INSERT INTO sites (title, iframe_url, merchant_link)
VALUES ($1, $2, $3)
ON CONFLICT (title) DO UPDATE SET
  iframe_url = EXCLUDED.iframe_url,
  merchant_link = EXCLUDED.merchant_link;
`
	_, err := r.pool.Exec(ctx, q, site.Title, site.IframeURL, site.MerchantLink)
	return err
}

func (r *accessRepo) FindSite(ctx context.Context, title string) (*model.Site, error) {
	const q = `SELECT title, iframe_url, merchant_link FROM sites WHERE title = $1;`
	var s model.Site
	err := r.pool.QueryRow(ctx, q, title).Scan(&s.Title, &s.IframeURL, &s.MerchantLink)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *accessRepo) ListSites(ctx context.Context) ([]model.Site, error) {
	const q = `SELECT title, iframe_url, merchant_link FROM sites ORDER BY title;`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Site
	for rows.Next() {
		var s model.Site
		if err := rows.Scan(&s.Title, &s.IframeURL, &s.MerchantLink); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *accessRepo) DeleteSite(ctx context.Context, title string) error {
	// Families and children follow via ON DELETE CASCADE.
	tag, err := r.pool.Exec(ctx, `DELETE FROM sites WHERE title = $1;`, title)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ----- families -----

func (r *accessRepo) SaveFamily(ctx context.Context, family *model.Family) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const famQ = `
INSERT INTO code_families (id, label, site, duration, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO NOTHING;
`
	if _, err := tx.Exec(ctx, famQ, family.ID, family.Label, family.Site, family.Duration, family.CreatedAt); err != nil {
		return err
	}

	var base int
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(position), -1) + 1 FROM child_codes WHERE family_id = $1;`,
		family.ID).Scan(&base); err != nil {
		return err
	}

	const childQ = `
INSERT INTO child_codes (id, family_id, hash, used, used_ip, activated_at, expires_at, duration, position)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
`
	for i := range family.Children {
		c := &family.Children[i]
		if _, err := tx.Exec(ctx, childQ,
			c.ID, family.ID, c.Hash, c.Used, c.UsedIP, c.ActivatedAt, c.ExpiresAt, c.Duration, base+i,
		); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("duplicate code hash: %w", domain.ErrAlreadyExists)
			}
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *accessRepo) FindFamily(ctx context.Context, id string) (*model.Family, error) {
	const q = `SELECT id, label, site, duration, created_at FROM code_families WHERE id = $1;`
	var f model.Family
	err := r.pool.QueryRow(ctx, q, id).Scan(&f.ID, &f.Label, &f.Site, &f.Duration, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if f.Children, err = r.childrenOf(ctx, id); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *accessRepo) childrenOf(ctx context.Context, familyID string) ([]model.ChildCode, error) {
	const q = `
SELECT id, hash, used, used_ip, activated_at, expires_at, duration
  FROM child_codes
 WHERE family_id = $1
 ORDER BY position;
`
	rows, err := r.pool.Query(ctx, q, familyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ChildCode
	for rows.Next() {
		var c model.ChildCode
		if err := rows.Scan(&c.ID, &c.Hash, &c.Used, &c.UsedIP, &c.ActivatedAt, &c.ExpiresAt, &c.Duration); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *accessRepo) ListFamilies(ctx context.Context) ([]model.Family, error) {
	const q = `SELECT id, label, site, duration, created_at FROM code_families ORDER BY created_at;`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Family
	for rows.Next() {
		var f model.Family
		if err := rows.Scan(&f.ID, &f.Label, &f.Site, &f.Duration, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		children, err := r.childrenOf(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Children = children
	}
	return out, nil
}

// ----- redemption -----

func (r *accessRepo) Redeem(ctx context.Context, familyID, childID, ip string, activatedAt, expiresAt time.Time) error {
	const q = `
UPDATE child_codes
   SET used = TRUE, used_ip = $3, activated_at = $4, expires_at = $5
 WHERE id = $1 AND family_id = $2 AND used = FALSE;
`
	tag, err := r.pool.Exec(ctx, q, childID, familyID, ip, activatedAt, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	// The CAS missed: either someone beat us to it, or the row is gone.
	var used bool
	err = r.pool.QueryRow(ctx,
		`SELECT used FROM child_codes WHERE id = $1 AND family_id = $2;`,
		childID, familyID).Scan(&used)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	if used {
		return domain.ErrCodeAlreadyUsed
	}
	return domain.ErrNotFound
}

func (r *accessRepo) FindChild(ctx context.Context, childID string) (*model.ChildCode, *model.Family, error) {
	const q = `
SELECT c.id, c.hash, c.used, c.used_ip, c.activated_at, c.expires_at, c.duration,
       f.id, f.label, f.site, f.duration, f.created_at
  FROM child_codes c
  JOIN code_families f ON f.id = c.family_id
 WHERE c.id = $1;
`
	var c model.ChildCode
	var f model.Family
	err := r.pool.QueryRow(ctx, q, childID).Scan(
		&c.ID, &c.Hash, &c.Used, &c.UsedIP, &c.ActivatedAt, &c.ExpiresAt, &c.Duration,
		&f.ID, &f.Label, &f.Site, &f.Duration, &f.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, domain.ErrNotFound
		}
		return nil, nil, err
	}
	return &c, &f, nil
}

func (r *accessRepo) PurgeExpired(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM child_codes WHERE used = TRUE AND expires_at < $1;`, cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// ----- redemption log -----

func (r *accessRepo) AppendLog(ctx context.Context, entry *model.RedemptionEntry) error {
	const q = `
INSERT INTO redemption_log (id, family_id, child_id, ip, site, activated_at, duration)
VALUES ($1, $2, $3, $4, $5, $6, $7);
`
	_, err := r.pool.Exec(ctx, q,
		entry.ID, entry.FamilyID, entry.ChildID, entry.IP, entry.Site, entry.ActivatedAt, entry.Duration)
	return err
}

func (r *accessRepo) ListLogs(ctx context.Context) ([]model.RedemptionEntry, error) {
	// ULIDs sort lexicographically by time.
	const q = `SELECT id, family_id, child_id, ip, site, activated_at, duration FROM redemption_log ORDER BY id;`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RedemptionEntry
	for rows.Next() {
		var e model.RedemptionEntry
		if err := rows.Scan(&e.ID, &e.FamilyID, &e.ChildID, &e.IP, &e.Site, &e.ActivatedAt, &e.Duration); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ----- export -----

func (r *accessRepo) Export(ctx context.Context) (*model.Document, error) {
	sites, err := r.ListSites(ctx)
	if err != nil {
		return nil, err
	}
	families, err := r.ListFamilies(ctx)
	if err != nil {
		return nil, err
	}
	logs, err := r.ListLogs(ctx)
	if err != nil {
		return nil, err
	}
	return &model.Document{Sites: sites, Families: families, Logs: logs}, nil
}
