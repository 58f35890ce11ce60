package transport

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Niyaz-313/trading-bot/internal/audit"
)

func testRecords() []audit.Record {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []audit.Record{
		{SequenceID: "0000000000001-000000-aaaa", TimestampUTC: ts, EventType: audit.EventCycle},
		{SequenceID: "0000000000002-000000-aaaa", TimestampUTC: ts.Add(time.Second), EventType: audit.EventTrade},
	}
}

func TestDumpParsesPeerJSONL(t *testing.T) {
	records := testRecords()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/store/dump" {
			t.Errorf("path %s", r.URL.Path)
		}
		var buf bytes.Buffer
		audit.WriteJSONL(&buf, records)
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	got, err := New(srv.URL, time.Second).Dump(context.Background())
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if len(got) != 2 || !got[0].Equal(records[0]) {
		t.Fatalf("dump mismatch: %+v", got)
	}
}

func TestDumpCorruptRecordAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("{broken\n"))
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).Dump(context.Background())
	if !errors.Is(err, audit.ErrCorruptRecord) {
		t.Fatalf("err = %v, want ErrCorruptRecord", err)
	}
}

func TestDumpRefusedByCorruptPeerAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).Dump(context.Background())
	if !errors.Is(err, audit.ErrCorruptRecord) {
		t.Fatalf("err = %v, want ErrCorruptRecord", err)
	}
}

func TestAdoptPostsJSONLBody(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/store/adopt" || r.Method != http.MethodPost {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		buf := new(bytes.Buffer)
		buf.ReadFrom(r.Body)
		gotBody = buf.Bytes()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	records := testRecords()
	if err := New(srv.URL, time.Second).Adopt(context.Background(), records); err != nil {
		t.Fatalf("adopt: %v", err)
	}
	parsed, err := audit.ReadJSONL(bytes.NewReader(gotBody))
	if err != nil {
		t.Fatalf("parse posted body: %v", err)
	}
	if len(parsed) != len(records) {
		t.Fatalf("posted %d records, want %d", len(parsed), len(records))
	}
}

func TestAdoptConflictStatusIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	if err := New(srv.URL, time.Second).Adopt(context.Background(), testRecords()); err == nil {
		t.Fatal("409 not surfaced")
	}
}

func TestHeadReturnsLastSequenceID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"last_sequence_id":"0000000000002-000000-aaaa","writer":"aaaa"}`))
	}))
	defer srv.Close()

	head, err := New(srv.URL, time.Second).Head(context.Background())
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head != "0000000000002-000000-aaaa" {
		t.Fatalf("head %q", head)
	}
}

func TestSlowPeerSurfacesAsTimeout(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-blocked:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(blocked)

	_, err := New(srv.URL, 50*time.Millisecond).Dump(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}
