package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestTextFormatterSingleLine(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(
		WithLevel(InfoLevel),
		WithFormatter(&TextFormatter{}),
		WithOutput(NewWriterOutput(&buf)),
	)
	logger.Info("merge complete", Int("conflicts", 2), Str("store", "trades_audit"))

	line := buf.String()
	if !strings.Contains(line, "INFO") || !strings.Contains(line, "merge complete") {
		t.Fatalf("line %q", line)
	}
	if !strings.Contains(line, "conflicts=2") || !strings.Contains(line, "store=trades_audit") {
		t.Fatalf("fields missing: %q", line)
	}
	if strings.Count(line, "\n") != 1 {
		t.Fatalf("not single-line: %q", line)
	}
}

func TestJSONFormatterFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(
		WithLevel(InfoLevel),
		WithFormatter(&JSONFormatter{}),
		WithOutput(NewWriterOutput(&buf)),
	)
	logger.Warn("notification delivery failed", Err(nil), Str("sink", "telegram"))

	var obj map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &obj); err != nil {
		t.Fatalf("not json: %v (%q)", err, buf.String())
	}
	if obj["level"] != "WARN" || obj["msg"] != "notification delivery failed" {
		t.Fatalf("obj %v", obj)
	}
	if obj["sink"] != "telegram" {
		t.Fatalf("obj %v", obj)
	}
}

func TestLevelGatesOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(
		WithLevel(WarnLevel),
		WithFormatter(&TextFormatter{}),
		WithOutput(NewWriterOutput(&buf)),
	)
	logger.Debug("hidden")
	logger.Info("hidden too")
	logger.Error("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("suppressed levels leaked: %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Fatalf("error line missing: %q", out)
	}
}

func TestWithComponentCarriesField(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(
		WithLevel(InfoLevel),
		WithFormatter(&TextFormatter{}),
		WithOutput(NewWriterOutput(&buf)),
	)
	logger.WithComponent("reconciler").Info("run complete")
	if !strings.Contains(buf.String(), "component=reconciler") {
		t.Fatalf("component missing: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"":        InfoLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatal("accepted unknown level")
	}
}
