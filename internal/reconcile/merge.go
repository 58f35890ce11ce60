package reconcile

import (
	"sort"

	"github.com/Niyaz-313/trading-bot/internal/audit"
	"github.com/Niyaz-313/trading-bot/pkg/id"
)

// Report summarizes one merge.
type Report struct {
	// Shared counts records common to both inputs: the common prefix plus
	// identical records both sides appended independently.
	Shared int `json:"shared"`
	// LocalOnly and RemoteOnly count records present on exactly one side.
	LocalOnly  int `json:"local_only"`
	RemoteOnly int `json:"remote_only"`
	// Conflicts counts sequence ids claimed by both sides with different
	// contents. Each conflict contributes two records to the result.
	Conflicts int `json:"conflicts"`
	// Total is the record count of the merged history.
	Total int `json:"total"`
}

// Changed reports whether the merge produced anything beyond the local input.
func (r Report) Changed() bool { return r.RemoteOnly > 0 || r.Conflicts > 0 }

// Tags name the two sides for conflict disambiguation. Deterministic tags
// keep Merge reproducible, which the idempotence guarantee relies on.
type Tags struct {
	Local  string
	Remote string
}

// DefaultTags is used when the caller does not name the sides.
var DefaultTags = Tags{Local: "local", Remote: "remote"}

// Merge combines two divergent record sequences sharing a common prefix.
// Pure: inputs are not mutated. The result contains every distinct record
// from either input exactly once, with true conflicts retained under
// disambiguated ids.
func Merge(local, remote []audit.Record, tags Tags) ([]audit.Record, Report) {
	if tags.Local == "" || tags.Remote == "" {
		tags = DefaultTags
	}

	// Step 1: longest common prefix by record identity. A same-id record
	// with different contents ends the prefix so the conflict path below
	// sees it.
	prefix := 0
	for prefix < len(local) && prefix < len(remote) && local[prefix].Equal(remote[prefix]) {
		prefix++
	}

	rep := Report{Shared: prefix}
	localTail := local[prefix:]
	remoteTail := remote[prefix:]

	// Steps 2+3: candidate set from both tails, deduplicated by id. A bare id
	// whose conflict-disambiguated descendants are on the other side counts
	// as covered: conflict retention always keeps both copies, so merging a
	// resolved history against a still-stale side must not re-introduce the
	// bare record next to its descendants.
	remoteByID := make(map[string]audit.Record, len(remoteTail))
	remoteBases := make(map[string]struct{}, len(remoteTail))
	for _, rec := range remoteTail {
		remoteByID[rec.SequenceID] = rec
		if base := id.Base(rec.SequenceID); base != rec.SequenceID {
			remoteBases[base] = struct{}{}
		}
	}

	var tail []audit.Record
	seen := make(map[string]struct{}, len(localTail)+len(remoteTail))
	for _, lrec := range localTail {
		other, ok := remoteByID[lrec.SequenceID]
		_, covered := remoteBases[lrec.SequenceID]
		switch {
		case !ok && covered:
			// Both copies arrive through the remote tail below.
		case !ok:
			rep.LocalOnly++
			tail = append(tail, lrec)
		case lrec.Equal(other):
			rep.Shared++
			tail = append(tail, lrec)
		default:
			// True conflict: keep both under disambiguated ids.
			rep.Conflicts++
			lc, rc := lrec, other
			lc.SequenceID = id.Disambiguate(lrec.SequenceID, tags.Local)
			rc.SequenceID = id.Disambiguate(other.SequenceID, tags.Remote)
			tail = append(tail, lc, rc)
		}
		seen[lrec.SequenceID] = struct{}{}
		if base := id.Base(lrec.SequenceID); base != lrec.SequenceID {
			seen[base] = struct{}{}
		}
	}
	for _, rrec := range remoteTail {
		if _, ok := seen[rrec.SequenceID]; ok {
			continue
		}
		rep.RemoteOnly++
		tail = append(tail, rrec)
	}

	// Step 4: order the merged tail by timestamp, sequence id as tie-break,
	// and append it after the shared prefix.
	sort.SliceStable(tail, func(i, j int) bool { return tail[i].Less(tail[j]) })

	merged := make([]audit.Record, 0, prefix+len(tail))
	merged = append(merged, local[:prefix]...)
	merged = append(merged, tail...)
	rep.Total = len(merged)
	return merged, rep
}
