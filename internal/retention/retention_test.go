package retention

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/Niyaz-313/trading-bot/internal/audit"
	logpkg "github.com/Niyaz-313/trading-bot/pkg/log"
)

type captureSink struct {
	snapshots []Archive
	pruned    [][]string
}

func (s *captureSink) SnapshotTaken(a Archive)       { s.snapshots = append(s.snapshots, a) }
func (s *captureSink) ArchivesPruned(names []string) { s.pruned = append(s.pruned, names) }

func newTestArchiver(t *testing.T) (*Archiver, *audit.Store, *captureSink) {
	t.Helper()
	store, err := audit.Open(t.TempDir(), "trades_audit")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	sink := &captureSink{}
	return New(store, t.TempDir(), logpkg.NewNop(), sink), store, sink
}

func withNow(t *testing.T, at time.Time) {
	t.Helper()
	orig := Now
	Now = func() time.Time { return at }
	t.Cleanup(func() { Now = orig })
}

func TestSnapshotWritesConsistentPair(t *testing.T) {
	arch, store, sink := newTestArchiver(t)
	for i := 0; i < 3; i++ {
		if _, err := store.AppendEvent(audit.EventTrade, map[string]interface{}{"i": float64(i)}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	a, err := arch.Snapshot("")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if a.Records != 3 {
		t.Fatalf("archive has %d records, want 3", a.Records)
	}
	if !strings.Contains(a.Name, ".full.backup_") {
		t.Fatalf("unexpected archive name %s", a.Name)
	}
	for _, p := range []string{a.JSONLPath, a.CSVPath} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("archive half missing: %v", err)
		}
	}
	if len(sink.snapshots) != 1 {
		t.Fatalf("sink saw %d snapshots", len(sink.snapshots))
	}

	f, err := os.Open(a.JSONLPath)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer f.Close()
	recs, err := audit.ReadJSONL(f)
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("archive jsonl has %d records", len(recs))
	}
}

func TestSnapshotFiltersByEventType(t *testing.T) {
	arch, store, _ := newTestArchiver(t)
	store.AppendEvent(audit.EventCycle, nil)
	store.AppendEvent(audit.EventTrade, nil)
	store.AppendEvent(audit.EventTrade, nil)

	a, err := arch.Snapshot(audit.EventTrade)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if a.Records != 2 {
		t.Fatalf("filtered archive has %d records, want 2", a.Records)
	}
	if !strings.Contains(a.Name, ".trade.backup_") {
		t.Fatalf("unexpected archive name %s", a.Name)
	}
}

func TestSnapshotLeavesLiveStoreUntouched(t *testing.T) {
	arch, store, _ := newTestArchiver(t)
	store.AppendEvent(audit.EventCycle, nil)
	jsonlPath, _ := store.Paths()
	before, _ := os.ReadFile(jsonlPath)

	if _, err := arch.Snapshot(""); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	after, _ := os.ReadFile(jsonlPath)
	if string(before) != string(after) {
		t.Fatal("snapshot mutated the live store")
	}
}

func TestPruneDeletesOnlyExpiredArchives(t *testing.T) {
	arch, store, sink := newTestArchiver(t)
	store.AppendEvent(audit.EventCycle, nil)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	withNow(t, base.AddDate(0, 0, -40))
	old, err := arch.Snapshot("")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	withNow(t, base.AddDate(0, 0, -5))
	fresh, err := arch.Snapshot("")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	withNow(t, base)
	removed, err := arch.Prune(30)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if len(removed) != 1 || removed[0] != old.Name {
		t.Fatalf("removed %v, want [%s]", removed, old.Name)
	}
	if _, err := os.Stat(old.JSONLPath); !os.IsNotExist(err) {
		t.Fatal("expired archive still on disk")
	}
	if _, err := os.Stat(fresh.JSONLPath); err != nil {
		t.Fatal("fresh archive deleted")
	}
	if len(sink.pruned) != 1 {
		t.Fatalf("sink saw %d prunes", len(sink.pruned))
	}

	// Second run with nothing expired is a no-op.
	removed, err = arch.Prune(30)
	if err != nil {
		t.Fatalf("prune again: %v", err)
	}
	if len(removed) != 0 {
		t.Fatalf("second prune removed %v", removed)
	}
}

func TestPruneDisabledWindow(t *testing.T) {
	arch, store, _ := newTestArchiver(t)
	store.AppendEvent(audit.EventCycle, nil)
	if _, err := arch.Snapshot(""); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	removed, err := arch.Prune(0)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != nil {
		t.Fatalf("prune with zero window removed %v", removed)
	}
}

func TestListOldestFirst(t *testing.T) {
	arch, store, _ := newTestArchiver(t)
	store.AppendEvent(audit.EventCycle, nil)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	withNow(t, base)
	first, _ := arch.Snapshot("")
	withNow(t, base.Add(time.Hour))
	second, _ := arch.Snapshot("")

	archives, err := arch.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(archives) != 2 {
		t.Fatalf("listed %d archives", len(archives))
	}
	if archives[0].Name != first.Name || archives[1].Name != second.Name {
		t.Fatalf("order: %s, %s", archives[0].Name, archives[1].Name)
	}
}
