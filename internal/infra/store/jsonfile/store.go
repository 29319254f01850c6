package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/onlymatt43/ONLY-ACCESS/internal/domain"
	"github.com/onlymatt43/ONLY-ACCESS/internal/domain/model"
	"github.com/onlymatt43/ONLY-ACCESS/internal/domain/ports/repository"
)

// Ensure implementation satisfies the interface.
var _ repository.AccessRepository = (*Store)(nil)

// Store keeps the whole document in memory and rewrites the backing JSON
// file wholesale on every mutation. A single mutex serializes mutations;
// since every write rewrites the full document, finer-grained locking
// would not buy anything here. Concurrent redemptions of the same child
// therefore resolve to exactly one winner.
//
// Mutators never touch the cached document directly: each one stages its
// change on a copy and commits the copy only after the disk write
// succeeds, so a failed write leaves neither phantom in-memory state nor
// anything for a later write to make durable.
type Store struct {
	path string
	mu   sync.RWMutex
	doc  *model.Document
	log  *zerolog.Logger
}

// Open loads the document at path, creating an empty one when the file
// does not exist yet. A document that fails shape validation is rejected
// rather than trusted.
func Open(path string, logger *zerolog.Logger) (*Store, error) {
	s := &Store{path: path, log: logger}
	b, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read store: %w", err)
		}
		s.doc = &model.Document{}
		return s, nil
	}
	var doc model.Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptDocument, err)
	}
	if !doc.Validate() {
		return nil, domain.ErrCorruptDocument
	}
	s.doc = &doc
	logger.Info().Str("path", path).
		Int("sites", len(doc.Sites)).
		Int("families", len(doc.Families)).
		Msg("loaded access document")
	return s, nil
}

// commit writes doc to disk via a temp file and rename, so a crash
// mid-write never leaves a torn document, and only then makes doc the
// cached state. Caller holds mu.
func (s *Store) commit(doc *model.Document) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir store: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename store: %w", err)
	}
	s.doc = doc
	return nil
}

func cloneFamily(f *model.Family) model.Family {
	cp := *f
	cp.Children = append([]model.ChildCode(nil), f.Children...)
	return cp
}

// ----- sites -----

func (s *Store) SaveSite(ctx context.Context, site *model.Site) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sites := append([]model.Site(nil), s.doc.Sites...)
	replaced := false
	for i := range sites {
		if sites[i].Title == site.Title {
			sites[i] = *site
			replaced = true
			break
		}
	}
	if !replaced {
		sites = append(sites, *site)
	}
	return s.commit(&model.Document{Sites: sites, Families: s.doc.Families, Logs: s.doc.Logs})
}

func (s *Store) FindSite(ctx context.Context, title string) (*model.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.doc.Sites {
		if s.doc.Sites[i].Title == title {
			cp := s.doc.Sites[i]
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) ListSites(ctx context.Context) ([]model.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Site(nil), s.doc.Sites...), nil
}

func (s *Store) DeleteSite(ctx context.Context, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := false
	sites := make([]model.Site, 0, len(s.doc.Sites))
	for _, site := range s.doc.Sites {
		if site.Title == title {
			found = true
			continue
		}
		sites = append(sites, site)
	}
	if !found {
		return domain.ErrNotFound
	}
	families := make([]model.Family, 0, len(s.doc.Families))
	for i := range s.doc.Families {
		if s.doc.Families[i].Site == title {
			continue
		}
		families = append(families, s.doc.Families[i])
	}
	return s.commit(&model.Document{Sites: sites, Families: families, Logs: s.doc.Logs})
}

// ----- families -----

func (s *Store) SaveFamily(ctx context.Context, family *model.Family) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	families := append([]model.Family(nil), s.doc.Families...)
	merged := false
	for i := range families {
		if families[i].ID == family.ID {
			cp := cloneFamily(&families[i])
			cp.Children = append(cp.Children, family.Children...)
			families[i] = cp
			merged = true
			break
		}
	}
	if !merged {
		families = append(families, cloneFamily(family))
	}
	return s.commit(&model.Document{Sites: s.doc.Sites, Families: families, Logs: s.doc.Logs})
}

func (s *Store) FindFamily(ctx context.Context, id string) (*model.Family, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.doc.Families {
		if s.doc.Families[i].ID == id {
			cp := cloneFamily(&s.doc.Families[i])
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) ListFamilies(ctx context.Context) ([]model.Family, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Family, 0, len(s.doc.Families))
	for i := range s.doc.Families {
		out = append(out, cloneFamily(&s.doc.Families[i]))
	}
	return out, nil
}

// ----- redemption -----

func (s *Store) Redeem(ctx context.Context, familyID, childID, ip string, activatedAt, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.doc.Families {
		if s.doc.Families[i].ID != familyID {
			continue
		}
		for j := range s.doc.Families[i].Children {
			if s.doc.Families[i].Children[j].ID != childID {
				continue
			}
			// Re-check under the lock: the caller's read may be stale.
			if s.doc.Families[i].Children[j].Used {
				return domain.ErrCodeAlreadyUsed
			}
			families := append([]model.Family(nil), s.doc.Families...)
			fam := cloneFamily(&families[i])
			ipCp, actCp, expCp := ip, activatedAt, expiresAt
			fam.Children[j].Used = true
			fam.Children[j].UsedIP = &ipCp
			fam.Children[j].ActivatedAt = &actCp
			fam.Children[j].ExpiresAt = &expCp
			families[i] = fam
			return s.commit(&model.Document{Sites: s.doc.Sites, Families: families, Logs: s.doc.Logs})
		}
		return domain.ErrNotFound
	}
	return domain.ErrNotFound
}

func (s *Store) FindChild(ctx context.Context, childID string) (*model.ChildCode, *model.Family, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.doc.Families {
		children := s.doc.Families[i].Children
		for j := range children {
			if children[j].ID == childID {
				childCp := children[j]
				famCp := cloneFamily(&s.doc.Families[i])
				return &childCp, &famCp, nil
			}
		}
	}
	return nil, nil, domain.ErrNotFound
}

func (s *Store) PurgeExpired(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	families := append([]model.Family(nil), s.doc.Families...)
	for i := range families {
		drop := 0
		for _, c := range families[i].Children {
			if c.Used && c.ExpiresAt != nil && c.ExpiresAt.Before(cutoff) {
				drop++
			}
		}
		if drop == 0 {
			continue
		}
		kept := make([]model.ChildCode, 0, len(families[i].Children)-drop)
		for _, c := range families[i].Children {
			if c.Used && c.ExpiresAt != nil && c.ExpiresAt.Before(cutoff) {
				continue
			}
			kept = append(kept, c)
		}
		cp := families[i]
		cp.Children = kept
		families[i] = cp
		removed += drop
	}
	if removed == 0 {
		return 0, nil
	}
	if err := s.commit(&model.Document{Sites: s.doc.Sites, Families: families, Logs: s.doc.Logs}); err != nil {
		return 0, err
	}
	return removed, nil
}

// ----- redemption log -----

func (s *Store) AppendLog(ctx context.Context, entry *model.RedemptionEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	logs := append([]model.RedemptionEntry(nil), s.doc.Logs...)
	logs = append(logs, *entry)
	return s.commit(&model.Document{Sites: s.doc.Sites, Families: s.doc.Families, Logs: logs})
}

func (s *Store) ListLogs(ctx context.Context) ([]model.RedemptionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.RedemptionEntry(nil), s.doc.Logs...), nil
}

// ----- export -----

func (s *Store) Export(ctx context.Context) (*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc := &model.Document{
		Sites: append([]model.Site(nil), s.doc.Sites...),
		Logs:  append([]model.RedemptionEntry(nil), s.doc.Logs...),
	}
	for i := range s.doc.Families {
		doc.Families = append(doc.Families, cloneFamily(&s.doc.Families[i]))
	}
	return doc, nil
}
