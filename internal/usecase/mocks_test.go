//go:build !integration

package usecase

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/onlymatt43/ONLY-ACCESS/internal/domain"
	"github.com/onlymatt43/ONLY-ACCESS/internal/domain/model"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// memAccessRepo is a small in-memory AccessRepository used by unit tests.
type memAccessRepo struct {
	mu       sync.RWMutex
	sites    map[string]model.Site
	families map[string]*model.Family
	logs     []model.RedemptionEntry

	saveErr error // used by tests to simulate persistence failures
}

func newMemAccessRepo() *memAccessRepo {
	return &memAccessRepo{
		sites:    make(map[string]model.Site),
		families: make(map[string]*model.Family),
	}
}

func (m *memAccessRepo) SaveSite(ctx context.Context, site *model.Site) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sites[site.Title] = *site
	return nil
}

func (m *memAccessRepo) FindSite(ctx context.Context, title string) (*model.Site, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sites[title]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := s
	return &cp, nil
}

func (m *memAccessRepo) ListSites(ctx context.Context) ([]model.Site, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Site, 0, len(m.sites))
	for _, s := range m.sites {
		out = append(out, s)
	}
	return out, nil
}

func (m *memAccessRepo) DeleteSite(ctx context.Context, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sites[title]; !ok {
		return domain.ErrNotFound
	}
	delete(m.sites, title)
	for id, f := range m.families {
		if f.Site == title {
			delete(m.families, id)
		}
	}
	return nil
}

func (m *memAccessRepo) SaveFamily(ctx context.Context, family *model.Family) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.families[family.ID]; ok {
		existing.Children = append(existing.Children, family.Children...)
		return nil
	}
	cp := *family
	cp.Children = append([]model.ChildCode(nil), family.Children...)
	m.families[family.ID] = &cp
	return nil
}

func (m *memAccessRepo) FindFamily(ctx context.Context, id string) (*model.Family, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.families[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *f
	cp.Children = append([]model.ChildCode(nil), f.Children...)
	return &cp, nil
}

func (m *memAccessRepo) ListFamilies(ctx context.Context) ([]model.Family, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Family, 0, len(m.families))
	for _, f := range m.families {
		cp := *f
		cp.Children = append([]model.ChildCode(nil), f.Children...)
		out = append(out, cp)
	}
	return out, nil
}

func (m *memAccessRepo) Redeem(ctx context.Context, familyID, childID, ip string, activatedAt, expiresAt time.Time) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.families[familyID]
	if !ok {
		return domain.ErrNotFound
	}
	for i := range f.Children {
		if f.Children[i].ID != childID {
			continue
		}
		if f.Children[i].Used {
			return domain.ErrCodeAlreadyUsed
		}
		ipCp := ip
		actCp := activatedAt
		expCp := expiresAt
		f.Children[i].Used = true
		f.Children[i].UsedIP = &ipCp
		f.Children[i].ActivatedAt = &actCp
		f.Children[i].ExpiresAt = &expCp
		return nil
	}
	return domain.ErrNotFound
}

func (m *memAccessRepo) FindChild(ctx context.Context, childID string) (*model.ChildCode, *model.Family, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, f := range m.families {
		for i := range f.Children {
			if f.Children[i].ID == childID {
				childCp := f.Children[i]
				famCp := *f
				famCp.Children = append([]model.ChildCode(nil), f.Children...)
				return &childCp, &famCp, nil
			}
		}
	}
	return nil, nil, domain.ErrNotFound
}

func (m *memAccessRepo) PurgeExpired(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for _, f := range m.families {
		kept := f.Children[:0]
		for _, c := range f.Children {
			if c.Used && c.ExpiresAt != nil && c.ExpiresAt.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, c)
		}
		f.Children = kept
	}
	return removed, nil
}

func (m *memAccessRepo) AppendLog(ctx context.Context, entry *model.RedemptionEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, *entry)
	return nil
}

func (m *memAccessRepo) ListLogs(ctx context.Context) ([]model.RedemptionEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.RedemptionEntry(nil), m.logs...), nil
}

func (m *memAccessRepo) Export(ctx context.Context) (*model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc := &model.Document{}
	for _, s := range m.sites {
		doc.Sites = append(doc.Sites, s)
	}
	for _, f := range m.families {
		cp := *f
		cp.Children = append([]model.ChildCode(nil), f.Children...)
		doc.Families = append(doc.Families, cp)
	}
	doc.Logs = append(doc.Logs, m.logs...)
	return doc, nil
}

// stubLimiter lets tests force allow/deny decisions.
type stubLimiter struct {
	allow bool
	err   error
	calls int
}

func (s *stubLimiter) Allow(ctx context.Context, key string) (bool, error) {
	s.calls++
	return s.allow, s.err
}
