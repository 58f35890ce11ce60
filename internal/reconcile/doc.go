// Package reconcile merges two divergent copies of the append-only audit
// store into one consistent history with no data loss.
//
// # Overview
//
// Two store copies share a common prefix (their last synchronized state) and
// may each have appended records independently since. Merge finds the longest
// common prefix by record identity, collects both divergent tails,
// deduplicates by sequence id, and appends the union sorted by timestamp
// (sequence id as tie-break) after the prefix. Records that claim the same
// sequence id with different contents are a true conflict: both survive
// under disambiguated ids, never silently dropped.
//
// Merge is a pure function and idempotent: merging its output with itself
// changes nothing. The Reconciler wraps it with store/transport I/O: local
// adoption through an atomic rewrite is the commit point, the remote push is
// best-effort and deferred to the next run when the peer is unreachable.
package reconcile
