package query

import (
	"testing"
	"time"

	"github.com/Niyaz-313/trading-bot/internal/audit"
)

func tradeRecord(symbol string) audit.Record {
	return audit.Record{
		SequenceID:   "0000000000001-000000-aaaa",
		TimestampUTC: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		EventType:    audit.EventTrade,
		Payload:      map[string]interface{}{"symbol": symbol, "qty": 10.0},
	}
}

func TestEmptyExpressionMatchesEverything(t *testing.T) {
	f, err := Compile("")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !f.Match(tradeRecord("SBER")) {
		t.Fatal("empty filter rejected a record")
	}
}

func TestFilterByEventTypeAndPayload(t *testing.T) {
	f, err := Compile(`event_type == "trade" && json.symbol == "SBER"`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !f.Match(tradeRecord("SBER")) {
		t.Fatal("matching record rejected")
	}
	if f.Match(tradeRecord("GAZP")) {
		t.Fatal("non-matching record accepted")
	}
}

func TestFilterByTimestamp(t *testing.T) {
	f, err := Compile(`ts_ms < now_ms`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !f.Match(tradeRecord("SBER")) {
		t.Fatal("past record rejected by ts_ms < now_ms")
	}
}

func TestMissingPayloadFieldIsNoMatch(t *testing.T) {
	f, err := Compile(`json.missing_field == "x"`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if f.Match(tradeRecord("SBER")) {
		t.Fatal("eval error counted as match")
	}
	empty := tradeRecord("SBER")
	empty.Payload = nil
	if f.Match(empty) {
		t.Fatal("nil payload counted as match")
	}
}

func TestCompileRejectsBrokenExpressions(t *testing.T) {
	for _, expr := range []string{"((", `event_type ==`, `unknown_var == 1`} {
		if _, err := Compile(expr); err == nil {
			t.Fatalf("compiled %q", expr)
		}
	}
}

func TestTextVariableSeesCompactPayload(t *testing.T) {
	f, err := Compile(`text.contains("SBER")`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !f.Match(tradeRecord("SBER")) {
		t.Fatal("text filter rejected a matching record")
	}
}
