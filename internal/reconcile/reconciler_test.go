package reconcile

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/Niyaz-313/trading-bot/internal/audit"
	logpkg "github.com/Niyaz-313/trading-bot/pkg/log"
)

type fakePeer struct {
	records []audit.Record
	dumpErr error

	adopted  []audit.Record
	adoptErr error
	adopts   int
}

func (p *fakePeer) Dump(context.Context) ([]audit.Record, error) {
	return p.records, p.dumpErr
}

func (p *fakePeer) Adopt(_ context.Context, records []audit.Record) error {
	p.adopts++
	if p.adoptErr != nil {
		return p.adoptErr
	}
	p.adopted = records
	return nil
}

type captureSink struct {
	rep     Report
	adopted bool
	calls   int
}

func (s *captureSink) MergeCompleted(rep Report, remoteAdopted bool) {
	s.rep, s.adopted = rep, remoteAdopted
	s.calls++
}

func newTestStore(t *testing.T) *audit.Store {
	t.Helper()
	s, err := audit.Open(t.TempDir(), "trades_audit")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}

func TestRunAdoptsRemoteRecords(t *testing.T) {
	store := newTestStore(t)
	localRec, err := store.AppendEvent(audit.EventCycle, nil)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	remoteRec := audit.Record{
		SequenceID:   "0000000000001-000000-peer",
		TimestampUTC: localRec.TimestampUTC.Add(1),
		EventType:    audit.EventTrade,
	}
	peer := &fakePeer{records: []audit.Record{localRec, remoteRec}}
	sink := &captureSink{}

	rep, err := New(store, peer, logpkg.NewNop(), sink).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.RemoteOnly != 1 || rep.Shared != 1 {
		t.Fatalf("report: %+v", rep)
	}
	got, err := store.ReadAll()
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("local store has %d records, want 2", len(got))
	}
	if sink.calls != 1 || sink.rep.Total != 2 {
		t.Fatalf("sink: %+v", sink)
	}
	// Remote already had everything; no push needed.
	if peer.adopts != 0 {
		t.Fatalf("unexpected adopt push: %d", peer.adopts)
	}
}

func TestRunPushesMergedHistoryToPeer(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.AppendEvent(audit.EventCycle, nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	peer := &fakePeer{} // empty remote

	rep, err := New(store, peer, logpkg.NewNop()).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.LocalOnly != 1 {
		t.Fatalf("report: %+v", rep)
	}
	if peer.adopts != 1 || len(peer.adopted) != 1 {
		t.Fatalf("peer not converged: adopts=%d", peer.adopts)
	}
}

func TestRunSucceedsWhenPeerAdoptionFails(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.AppendEvent(audit.EventCycle, nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	peer := &fakePeer{adoptErr: errors.New("peer down")}
	sink := &captureSink{}

	if _, err := New(store, peer, logpkg.NewNop(), sink).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if sink.adopted {
		t.Fatal("sink reported remote adoption despite push failure")
	}
}

func TestRunAbortsOnCorruptLocalStore(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.AppendEvent(audit.EventCycle, nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	jsonlPath, _ := store.Paths()
	f, _ := os.OpenFile(jsonlPath, os.O_WRONLY|os.O_APPEND, 0o644)
	f.WriteString("{corrupt\n")
	f.Close()

	peer := &fakePeer{}
	_, err := New(store, peer, logpkg.NewNop()).Run(context.Background())
	if !errors.Is(err, ErrCorruptInput) {
		t.Fatalf("err = %v, want ErrCorruptInput", err)
	}
	if peer.adopts != 0 {
		t.Fatal("reconciler mutated peer despite corrupt input")
	}
}

func TestRunAbortsOnPeerDumpFailure(t *testing.T) {
	store := newTestStore(t)
	before, _ := os.ReadFile(func() string { p, _ := store.Paths(); return p }())

	peer := &fakePeer{dumpErr: errors.New("timeout")}
	if _, err := New(store, peer, logpkg.NewNop()).Run(context.Background()); err == nil {
		t.Fatal("run succeeded with failing peer dump")
	}
	after, _ := os.ReadFile(func() string { p, _ := store.Paths(); return p }())
	if string(before) != string(after) {
		t.Fatal("local store mutated despite dump failure")
	}
}
