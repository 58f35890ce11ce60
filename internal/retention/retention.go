// Package retention archives the live audit store to immutable, timestamped
// snapshot pairs and prunes archives past the retention window. The live
// store is never pruned; only whole archives are deleted.
package retention

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Niyaz-313/trading-bot/internal/audit"
	logpkg "github.com/Niyaz-313/trading-bot/pkg/log"
)

// stampLayout is UTC and lexicographically sortable, so pruning can select
// oldest-first from names alone.
const stampLayout = "20060102T150405Z"

// Now is overridable in tests.
var Now = func() time.Time { return time.Now().UTC() }

// Archive identifies one snapshot pair on disk.
type Archive struct {
	Name      string // base name without encoding extension
	JSONLPath string
	CSVPath   string
	TakenAt   time.Time
	Records   int
}

// Sink receives snapshot/prune outcomes (ops journal, metrics).
type Sink interface {
	SnapshotTaken(a Archive)
	ArchivesPruned(names []string)
}

// Archiver owns the archive directory for one store.
type Archiver struct {
	store  *audit.Store
	dir    string
	logger logpkg.Logger
	sinks  []Sink
}

// New creates an Archiver writing under dir.
func New(store *audit.Store, dir string, logger logpkg.Logger, sinks ...Sink) *Archiver {
	return &Archiver{store: store, dir: dir, logger: logger.WithComponent("retention"), sinks: sinks}
}

// Snapshot copies the store to a timestamped archive pair. eventType narrows
// the archive to one event type; empty means the full store. The snapshot is
// a point-in-time copy: concurrent appends land after the copied range and
// are simply not part of this archive. Both encodings of the archive are
// derived from one JSONL read, so the pair is consistent by construction.
func (a *Archiver) Snapshot(eventType string) (Archive, error) {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return Archive{}, fmt.Errorf("%w: mkdir %s: %v", audit.ErrWrite, a.dir, err)
	}
	records, err := a.store.ReadAll()
	if err != nil {
		return Archive{}, err
	}
	kind := "full"
	if eventType != "" {
		kind = eventType
		filtered := records[:0:0]
		for _, rec := range records {
			if rec.EventType == eventType {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	taken := Now()
	base := fmt.Sprintf("%s.%s.backup_%s", a.store.Name(), kind, taken.Format(stampLayout))
	arch := Archive{
		Name:      base,
		JSONLPath: filepath.Join(a.dir, base+".jsonl"),
		CSVPath:   filepath.Join(a.dir, base+".csv"),
		TakenAt:   taken,
		Records:   len(records),
	}

	jf, err := os.OpenFile(arch.JSONLPath+".tmp", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return Archive{}, fmt.Errorf("%w: open %s: %v", audit.ErrWrite, arch.JSONLPath, err)
	}
	if err := audit.WriteJSONL(jf, records); err != nil {
		jf.Close()
		os.Remove(arch.JSONLPath + ".tmp")
		return Archive{}, fmt.Errorf("%w: write %s: %v", audit.ErrWrite, arch.JSONLPath, err)
	}
	if err := jf.Sync(); err != nil {
		jf.Close()
		os.Remove(arch.JSONLPath + ".tmp")
		return Archive{}, fmt.Errorf("%w: sync %s: %v", audit.ErrWrite, arch.JSONLPath, err)
	}
	jf.Close()
	if err := audit.WriteCSV(arch.CSVPath+".tmp", records); err != nil {
		os.Remove(arch.JSONLPath + ".tmp")
		return Archive{}, err
	}
	if err := os.Rename(arch.JSONLPath+".tmp", arch.JSONLPath); err != nil {
		os.Remove(arch.JSONLPath + ".tmp")
		os.Remove(arch.CSVPath + ".tmp")
		return Archive{}, fmt.Errorf("%w: rename %s: %v", audit.ErrWrite, arch.JSONLPath, err)
	}
	if err := os.Rename(arch.CSVPath+".tmp", arch.CSVPath); err != nil {
		os.Remove(arch.CSVPath + ".tmp")
		return Archive{}, fmt.Errorf("%w: rename %s: %v", audit.ErrWrite, arch.CSVPath, err)
	}

	a.logger.Info("snapshot taken",
		logpkg.Str("archive", base), logpkg.Int("records", arch.Records))
	for _, s := range a.sinks {
		s.SnapshotTaken(arch)
	}
	return arch, nil
}

// List returns the store's archives, oldest first.
func (a *Archiver) List() ([]Archive, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	prefix := a.store.Name() + "."
	byBase := map[string]*Archive{}
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		ext := filepath.Ext(name)
		if ext != ".jsonl" && ext != ".csv" {
			continue
		}
		base := strings.TrimSuffix(name, ext)
		taken, ok := stampFromName(base)
		if !ok {
			continue
		}
		arch := byBase[base]
		if arch == nil {
			arch = &Archive{Name: base, TakenAt: taken}
			byBase[base] = arch
		}
		if ext == ".jsonl" {
			arch.JSONLPath = filepath.Join(a.dir, name)
		} else {
			arch.CSVPath = filepath.Join(a.dir, name)
		}
	}
	out := make([]Archive, 0, len(byBase))
	for _, arch := range byBase {
		out = append(out, *arch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Prune deletes archives older than maxAgeDays. Only fully-archived
// snapshot pairs are touched, never the live store. Idempotent: a second
// run with nothing old enough is a no-op.
func (a *Archiver) Prune(maxAgeDays int) ([]string, error) {
	if maxAgeDays <= 0 {
		return nil, nil
	}
	cutoff := Now().AddDate(0, 0, -maxAgeDays)
	archives, err := a.List()
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, arch := range archives {
		if !arch.TakenAt.Before(cutoff) {
			continue
		}
		for _, p := range []string{arch.JSONLPath, arch.CSVPath} {
			if p == "" {
				continue
			}
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				return removed, fmt.Errorf("%w: remove %s: %v", audit.ErrWrite, p, err)
			}
		}
		removed = append(removed, arch.Name)
	}
	if len(removed) > 0 {
		a.logger.Info("archives pruned",
			logpkg.Int("count", len(removed)), logpkg.Int("max_age_days", maxAgeDays))
		for _, s := range a.sinks {
			s.ArchivesPruned(removed)
		}
	}
	return removed, nil
}

// stampFromName extracts the UTC stamp from "<store>.<kind>.backup_<stamp>".
func stampFromName(base string) (time.Time, bool) {
	i := strings.LastIndex(base, ".backup_")
	if i < 0 {
		return time.Time{}, false
	}
	t, err := time.Parse(stampLayout, base[i+len(".backup_"):])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
