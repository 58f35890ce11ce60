// Package opslog is the append-only operational journal: every merge report,
// snapshot, prune and health transition lands here, persisted in Pebble.
//
// Keys are lexicographically ordered for range scans:
//   - ops/m           (metadata: lastSeq)
//   - ops/e/{seq_be8} (entries)
//
// Entries are stored as: varint(headerLen) | header | payload | crc32c,
// where the header is an 8-byte big-endian write timestamp (ms) followed by
// the kind tag, and the payload is the JSON detail. The timestamp lives in
// the header so age-based trims never have to parse payloads.
package opslog
