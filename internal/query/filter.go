// Package query filters audit records with CEL expressions, replacing the
// pile of one-off analysis scripts the trading service accumulated.
package query

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/Niyaz-313/trading-bot/internal/audit"
)

// Filter wraps a compiled CEL program. When disabled (empty expression),
// Match always returns true.
type Filter struct {
	prog    cel.Program
	enabled bool
}

// Compile builds a Filter from an expression. Available variables:
//
//	sequence_id  string
//	event_type   string
//	ts_ms        int (record timestamp, Unix ms)
//	text         string (payload as compact JSON)
//	json         dyn (parsed payload for field access)
//	now_ms       int
//
// Example: event_type == "trade" && json.symbol == "SBER".
func Compile(expr string) (Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Filter{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("sequence_id", cel.StringType),
		cel.Variable("event_type", cel.StringType),
		cel.Variable("ts_ms", cel.IntType),
		cel.Variable("text", cel.StringType),
		cel.Variable("json", cel.DynType),
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return Filter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return Filter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return Filter{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return Filter{}, err
	}
	return Filter{prog: prog, enabled: true}, nil
}

// Match evaluates the expression against one record. Evaluation errors
// (e.g. a field missing from the payload) count as no-match.
func (f Filter) Match(rec audit.Record) bool {
	if !f.enabled {
		return true
	}
	text := ""
	var payload interface{}
	if rec.Payload != nil {
		if b, err := json.Marshal(rec.Payload); err == nil {
			text = string(b)
		}
		payload = rec.Payload
	} else {
		payload = map[string]interface{}{}
	}
	out, _, err := f.prog.Eval(map[string]interface{}{
		"sequence_id": rec.SequenceID,
		"event_type":  rec.EventType,
		"ts_ms":       rec.TimestampUTC.UnixMilli(),
		"text":        text,
		"json":        payload,
		"now_ms":      time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
