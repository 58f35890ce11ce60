// Package audit implements the append-only audit store for trading events.
//
// # Overview
//
// A store is an ordered sequence of immutable Records persisted in two
// synchronized encodings under one directory:
//   - <name>.jsonl: one compact JSON object per line (source of truth),
//   - <name>.csv:   a tabular mirror with a header row, payload flattened
//     to a JSON string column.
//
// Both encodings always contain the same logical records in the same order.
// Append is all-or-nothing across the pair: the JSONL line is written and
// synced first, then the CSV row; if the CSV write fails the JSONL file is
// truncated back to its pre-append size. Whole-store rewrites (used only by
// reconciliation adoption) go through temp files renamed over both encodings.
//
// Nothing ever shrinks the live store except a rewrite that adopts a merge
// result, which by construction is a superset of the previous contents.
//
// API surface (internal)
//
//	s, _ := audit.Open(dir, "trades_audit")
//	rec, _ := s.AppendEvent(audit.EventTrade, map[string]any{"symbol": "SBER"})
//	last := s.LastSequenceID()
//	sc, _ := s.Scan()
//	for sc.Next() { _ = sc.Record() }
//	_ = sc.Err()
package audit
