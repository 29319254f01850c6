//go:build !integration

package jsonfile

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/onlymatt43/ONLY-ACCESS/internal/domain"
	"github.com/onlymatt43/ONLY-ACCESS/internal/domain/model"
)

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "access.json"), testLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}

func seed(t *testing.T, s *Store) *model.Family {
	t.Helper()
	ctx := context.Background()
	if err := s.SaveSite(ctx, &model.Site{Title: "cinema", IframeURL: "https://player.example/embed"}); err != nil {
		t.Fatalf("save site: %v", err)
	}
	family := &model.Family{
		ID:       "fam-1",
		Label:    "weekend",
		Site:     "cinema",
		Duration: 30,
		Children: []model.ChildCode{
			{ID: "child-1", Hash: model.HashCode("AAAA-BBBB-CCCC")},
			{ID: "child-2", Hash: model.HashCode("DDDD-EEEE-FFFF")},
		},
		CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := s.SaveFamily(ctx, family); err != nil {
		t.Fatalf("save family: %v", err)
	}
	return family
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "access.json")

	s, err := Open(path, testLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	seed(t, s)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := s.Redeem(ctx, "fam-1", "child-1", "203.0.113.7", at, at.Add(30*time.Minute)); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	// Reopen from disk: the whole document must survive a restart.
	reopened, err := Open(path, testLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	child, family, err := reopened.FindChild(ctx, "child-1")
	if err != nil {
		t.Fatalf("find child after reopen: %v", err)
	}
	if family.ID != "fam-1" || !child.Used || child.UsedIP == nil || *child.UsedIP != "203.0.113.7" {
		t.Error("redeemed state did not survive the round trip")
	}
	if child.ActivatedAt == nil || !child.ActivatedAt.Equal(at) {
		t.Error("activation timestamp lost in serialization")
	}
	if site, err := reopened.FindSite(ctx, "cinema"); err != nil || site.IframeURL != "https://player.example/embed" {
		t.Errorf("site lost in round trip: %v", err)
	}
}

func TestStore_RedeemIsOneTime(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	seed(t, s)
	at := time.Now()

	if err := s.Redeem(ctx, "fam-1", "child-1", "10.0.0.1", at, at.Add(time.Minute)); err != nil {
		t.Fatalf("first redeem: %v", err)
	}
	if err := s.Redeem(ctx, "fam-1", "child-1", "10.0.0.2", at, at.Add(time.Minute)); !errors.Is(err, domain.ErrCodeAlreadyUsed) {
		t.Errorf("expected ErrCodeAlreadyUsed, got %v", err)
	}
}

func TestStore_ConcurrentRedeemSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	seed(t, s)
	at := time.Now()

	const attempts = 16
	var wg sync.WaitGroup
	wins := make(chan string, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ip := string(rune('a' + n))
			if err := s.Redeem(ctx, "fam-1", "child-2", ip, at, at.Add(time.Minute)); err == nil {
				wins <- ip
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	var winners []string
	for ip := range wins {
		winners = append(winners, ip)
	}
	if len(winners) != 1 {
		t.Fatalf("expected exactly one winning redemption, got %d", len(winners))
	}
	child, _, _ := s.FindChild(ctx, "child-2")
	if child.UsedIP == nil || *child.UsedIP != winners[0] {
		t.Error("bound IP does not match the winning redemption")
	}
}

func TestStore_RejectsCorruptDocument(t *testing.T) {
	dir := t.TempDir()

	t.Run("invalid JSON", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Open(path, testLogger()); !errors.Is(err, domain.ErrCorruptDocument) {
			t.Errorf("expected ErrCorruptDocument, got %v", err)
		}
	})

	t.Run("shape violation", func(t *testing.T) {
		// A used child without binding fields breaks the invariant.
		path := filepath.Join(dir, "shape.json")
		doc := `{"families":[{"family_id":"f","label":"","duration":10,"children":[{"id":"c","hash":"h","used":true}]}]}`
		if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Open(path, testLogger()); !errors.Is(err, domain.ErrCorruptDocument) {
			t.Errorf("expected ErrCorruptDocument, got %v", err)
		}
	})

	t.Run("missing file is an empty document", func(t *testing.T) {
		s, err := Open(filepath.Join(dir, "fresh.json"), testLogger())
		if err != nil {
			t.Fatalf("expected empty store, got %v", err)
		}
		families, _ := s.ListFamilies(context.Background())
		if len(families) != 0 {
			t.Error("fresh store should be empty")
		}
	})
}

func TestStore_DeleteSiteCascades(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	seed(t, s)

	if err := s.DeleteSite(ctx, "cinema"); err != nil {
		t.Fatalf("delete site: %v", err)
	}
	if _, err := s.FindSite(ctx, "cinema"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("site should be gone, got %v", err)
	}
	if _, err := s.FindFamily(ctx, "fam-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("families referencing the site should be purged, got %v", err)
	}
}

func TestStore_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	seed(t, s)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := s.Redeem(ctx, "fam-1", "child-1", "10.0.0.1", at, at.Add(time.Minute)); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	// Cutoff before expiry: nothing to purge, unused codes untouched.
	n, err := s.PurgeExpired(ctx, at)
	if err != nil || n != 0 {
		t.Fatalf("expected no purge, got n=%d err=%v", n, err)
	}

	n, err = s.PurgeExpired(ctx, at.Add(2*time.Minute))
	if err != nil || n != 1 {
		t.Fatalf("expected 1 purged, got n=%d err=%v", n, err)
	}
	if _, _, err := s.FindChild(ctx, "child-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Error("expired child should be gone")
	}
	if _, _, err := s.FindChild(ctx, "child-2"); err != nil {
		t.Error("unused child must never be purged")
	}
}

func TestStore_FailedWriteLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "access.json")
	s, err := Open(path, testLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	seed(t, s)

	// Occupy the temp path with a directory so every disk write fails.
	if err := os.Mkdir(path+".tmp", 0o755); err != nil {
		t.Fatal(err)
	}

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("failed family save is not visible in memory", func(t *testing.T) {
		fam := &model.Family{
			ID: "fam-2", Site: "cinema", Duration: 10,
			Children: []model.ChildCode{{ID: "child-9", Hash: model.HashCode("GGGG-HHHH-JJJJ")}},
		}
		if err := s.SaveFamily(ctx, fam); err == nil {
			t.Fatal("expected the save to fail")
		}
		if _, err := s.FindFamily(ctx, "fam-2"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("family from a failed save must not be readable, got %v", err)
		}
	})

	t.Run("failed redeem leaves the child unused", func(t *testing.T) {
		if err := s.Redeem(ctx, "fam-1", "child-1", "10.0.0.1", at, at.Add(time.Minute)); err == nil {
			t.Fatal("expected the redeem to fail")
		}
		child, _, err := s.FindChild(ctx, "child-1")
		if err != nil {
			t.Fatalf("find child: %v", err)
		}
		if child.Used || child.UsedIP != nil {
			t.Error("child must stay unused after a failed write")
		}
	})

	t.Run("failed site delete keeps site and families", func(t *testing.T) {
		if err := s.DeleteSite(ctx, "cinema"); err == nil {
			t.Fatal("expected the delete to fail")
		}
		if _, err := s.FindSite(ctx, "cinema"); err != nil {
			t.Errorf("site must survive a failed delete, got %v", err)
		}
		if _, err := s.FindFamily(ctx, "fam-1"); err != nil {
			t.Errorf("family must survive a failed delete, got %v", err)
		}
	})

	t.Run("later successful write does not resurrect failed state", func(t *testing.T) {
		if err := os.Remove(path + ".tmp"); err != nil {
			t.Fatal(err)
		}
		entry := &model.RedemptionEntry{ID: "01HZY", FamilyID: "fam-1", ChildID: "child-1", IP: "10.0.0.1", ActivatedAt: at, Duration: 30}
		if err := s.AppendLog(ctx, entry); err != nil {
			t.Fatalf("append log after recovery: %v", err)
		}

		reopened, err := Open(path, testLogger())
		if err != nil {
			t.Fatalf("reopen: %v", err)
		}
		if _, err := reopened.FindFamily(ctx, "fam-2"); !errors.Is(err, domain.ErrNotFound) {
			t.Error("family from a failed save must never reach disk")
		}
		child, _, err := reopened.FindChild(ctx, "child-1")
		if err != nil {
			t.Fatalf("find child after reopen: %v", err)
		}
		if child.Used {
			t.Error("failed redeem must never reach disk")
		}
		if _, err := reopened.FindSite(ctx, "cinema"); err != nil {
			t.Errorf("site must still be on disk, got %v", err)
		}
	})
}

func TestStore_AppendLog(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	entry := &model.RedemptionEntry{ID: "01HZX", FamilyID: "f", ChildID: "c", IP: "10.0.0.1", ActivatedAt: time.Now().UTC(), Duration: 30}
	if err := s.AppendLog(ctx, entry); err != nil {
		t.Fatalf("append log: %v", err)
	}
	logs, err := s.ListLogs(ctx)
	if err != nil || len(logs) != 1 || logs[0].ID != "01HZX" {
		t.Errorf("log round trip failed: %v %v", logs, err)
	}
}
