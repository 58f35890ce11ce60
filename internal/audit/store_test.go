package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), "trades_audit")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}

func mustAppend(t *testing.T, s *Store, eventType string, payload map[string]interface{}) Record {
	t.Helper()
	rec, err := s.AppendEvent(eventType, payload)
	if err != nil {
		t.Fatalf("append %s: %v", eventType, err)
	}
	return rec
}

func TestAppendWritesBothEncodings(t *testing.T) {
	s := newTestStore(t)
	rec := mustAppend(t, s, EventTrade, map[string]interface{}{"symbol": "SBER", "qty": 10.0})

	got, err := s.ReadAll()
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if len(got) != 1 || !got[0].Equal(rec) {
		t.Fatalf("jsonl round-trip mismatch: %+v", got)
	}
	csvRecs, err := s.readAllCSV()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(csvRecs) != 1 || !csvRecs[0].Equal(rec) {
		t.Fatalf("csv mirror mismatch: %+v", csvRecs)
	}
}

func TestAppendAssignsIncreasingSequenceIDs(t *testing.T) {
	s := newTestStore(t)
	prev := ""
	for i := 0; i < 20; i++ {
		rec := mustAppend(t, s, EventCycle, nil)
		if rec.SequenceID <= prev {
			t.Fatalf("sequence id not increasing: %s after %s", rec.SequenceID, prev)
		}
		prev = rec.SequenceID
	}
	if s.LastSequenceID() != prev {
		t.Fatalf("last sequence id %q, want %q", s.LastSequenceID(), prev)
	}
}

func TestAppendRollsBackJSONLWhenCSVFails(t *testing.T) {
	s := newTestStore(t)
	mustAppend(t, s, EventCycle, nil)

	jsonlPath, csvPath := s.Paths()
	before, err := os.ReadFile(jsonlPath)
	if err != nil {
		t.Fatalf("read jsonl: %v", err)
	}

	// Make the CSV half unwritable by replacing it with a directory.
	if err := os.Remove(csvPath); err != nil {
		t.Fatalf("remove csv: %v", err)
	}
	if err := os.Mkdir(csvPath, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if _, err := s.AppendEvent(EventTrade, nil); err == nil {
		t.Fatal("append succeeded with broken csv mirror")
	}
	after, err := os.ReadFile(jsonlPath)
	if err != nil {
		t.Fatalf("read jsonl: %v", err)
	}
	if string(after) != string(before) {
		t.Fatal("jsonl not rolled back after csv failure")
	}
}

func TestOpenRebuildsMissingCSVMirror(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "trades_audit")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	want := []Record{
		mustAppend(t, s, EventCycle, map[string]interface{}{"n": 1.0}),
		mustAppend(t, s, EventTrade, map[string]interface{}{"n": 2.0}),
	}

	if err := os.Remove(filepath.Join(dir, "trades_audit.csv")); err != nil {
		t.Fatalf("remove csv: %v", err)
	}
	s2, err := Open(dir, "trades_audit")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := s2.readAllCSV()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("rebuilt mirror has %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("record %d mismatch after rebuild", i)
		}
	}
}

func TestWriterTagPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "trades_audit")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	tag := s.WriterTag()
	if tag == "" {
		t.Fatal("empty writer tag")
	}
	s2, err := Open(dir, "trades_audit")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if s2.WriterTag() != tag {
		t.Fatalf("writer tag changed across reopen: %s -> %s", tag, s2.WriterTag())
	}
}

func TestRewriteReplacesBothEncodings(t *testing.T) {
	s := newTestStore(t)
	mustAppend(t, s, EventCycle, nil)

	now := time.Now().UTC()
	records := []Record{
		{SequenceID: "0000000000001-000000-aaaa", TimestampUTC: now, EventType: EventCycle},
		{SequenceID: "0000000000002-000000-bbbb", TimestampUTC: now.Add(time.Second), EventType: EventTrade},
	}
	if err := s.Rewrite(records); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	got, err := s.ReadAll()
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	csvRecs, err := s.readAllCSV()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(csvRecs) != 2 {
		t.Fatalf("csv mirror has %d records, want 2", len(csvRecs))
	}
	if s.LastSequenceID() != records[1].SequenceID {
		t.Fatalf("last sequence id %q", s.LastSequenceID())
	}
}

func TestScannerStopsOnCorruptLine(t *testing.T) {
	s := newTestStore(t)
	mustAppend(t, s, EventCycle, nil)

	jsonlPath, _ := s.Paths()
	f, err := os.OpenFile(jsonlPath, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.WriteString("{not json\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	f.Close()

	if _, err := s.ReadAll(); err == nil {
		t.Fatal("read all succeeded over corrupt line")
	}
}

func TestTailReturnsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	var last Record
	for i := 0; i < 50; i++ {
		last = mustAppend(t, s, EventCycle, map[string]interface{}{"i": float64(i)})
	}
	recs, err := s.Tail(3)
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	if recs[0].SequenceID != last.SequenceID {
		t.Fatalf("tail[0] = %s, want newest %s", recs[0].SequenceID, last.SequenceID)
	}
}

func TestTailSkipsCorruptLines(t *testing.T) {
	s := newTestStore(t)
	want := mustAppend(t, s, EventCycle, nil)

	jsonlPath, _ := s.Paths()
	f, _ := os.OpenFile(jsonlPath, os.O_WRONLY|os.O_APPEND, 0o644)
	fmt.Fprintln(f, "garbage line")
	f.Close()

	recs, err := s.Tail(10)
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(recs) != 1 || recs[0].SequenceID != want.SequenceID {
		t.Fatalf("tail over corrupt line: %+v", recs)
	}
}

func TestCSVPayloadColumnIsJSON(t *testing.T) {
	s := newTestStore(t)
	mustAppend(t, s, EventDecision, map[string]interface{}{"action": "buy", "score": 0.9})

	_, csvPath := s.Paths()
	b, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	content := string(b)
	if !strings.Contains(content, "sequence_id,timestamp_utc,event_type,payload") {
		t.Fatalf("missing header: %s", content)
	}
	if !strings.Contains(content, `""action"":""buy""`) {
		t.Fatalf("payload not embedded as quoted JSON: %s", content)
	}
}
