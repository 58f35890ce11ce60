package opslog

import (
	"github.com/cockroachdb/pebble"
)

// ReadOptions controls a journal scan.
type ReadOptions struct {
	// Start is the first seq (inclusive); zero begins at the first entry.
	Start uint64
	// Limit caps returned entries; zero means unlimited.
	Limit int
	// Reverse scans newest-first.
	Reverse bool
}

// Read returns entries in seq order (or reverse). Undecodable values are
// skipped.
func (l *Log) Read(opts ReadOptions) ([]Entry, error) {
	low := entryKey(0)
	hi := entryKey(^uint64(0))
	iter, err := l.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: append(hi, 0x00)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []Entry
	if opts.Reverse {
		ok := iter.Last()
		if opts.Start != 0 {
			ok = iter.SeekLT(entryKey(opts.Start + 1))
		}
		for ; ok && (opts.Limit == 0 || len(out) < opts.Limit); ok = iter.Prev() {
			if e, decoded := decodeEntry(seqFromKey(iter.Key()), iter.Value()); decoded {
				out = append(out, e)
			}
		}
		return out, nil
	}

	ok := iter.First()
	if opts.Start != 0 {
		ok = iter.SeekGE(entryKey(opts.Start))
	}
	for ; ok && (opts.Limit == 0 || len(out) < opts.Limit); ok = iter.Next() {
		if e, decoded := decodeEntry(seqFromKey(iter.Key()), iter.Value()); decoded {
			out = append(out, e)
		}
	}
	return out, nil
}
