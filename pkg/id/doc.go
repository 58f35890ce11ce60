// Package id assigns audit record sequence ids.
//
// # Format
//
// A sequence id is the string "<unix_ms>-<counter>-<writer>":
//   - unix_ms: zero-padded milliseconds since the Unix epoch (13 digits),
//   - counter: zero-padded per-millisecond counter (6 digits),
//   - writer:  short tag identifying the writer that assigned the id.
//
// Zero padding makes ids assigned by one writer lexicographically ordered in
// assignment order, and the writer tag makes ids globally unique across
// independent writers without coordination. Two replicas of a store can
// therefore append concurrently and still be merged by id identity later.
//
// # Monotonicity
//
// The Generator ensures per-process monotonicity: if the system clock
// regresses, it pins to the last seen millisecond and keeps incrementing the
// counter so ids never go backwards.
package id
