package opslog

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	pebblestore "github.com/Niyaz-313/trading-bot/internal/storage/pebble"
)

// Entry kinds.
const (
	KindMerge      = "merge"
	KindSnapshot   = "snapshot"
	KindPrune      = "prune"
	KindTransition = "transition"
)

var (
	keyMeta        = []byte("ops/m")
	keyEntryPrefix = []byte("ops/e/")
)

// Entry is one journal record.
type Entry struct {
	Seq    uint64          `json:"seq"`
	At     time.Time       `json:"at"`
	Kind   string          `json:"kind"`
	Detail json.RawMessage `json:"detail"`
}

// Log provides append-only journal operations over Pebble.
type Log struct {
	db *pebblestore.DB

	mu      sync.Mutex
	lastSeq uint64
}

// Open initializes a Log and loads the last sequence from metadata (if any).
func Open(db *pebblestore.DB) (*Log, error) {
	l := &Log{db: db}
	meta, err := db.Get(keyMeta)
	if err == nil && len(meta) >= 8 {
		l.lastSeq = binary.BigEndian.Uint64(meta[:8])
	}
	return l, nil
}

// Append writes one entry atomically and returns its assigned seq.
func (l *Log) Append(ctx context.Context, kind string, detail interface{}) (uint64, error) {
	payload, err := json.Marshal(detail)
	if err != nil {
		return 0, fmt.Errorf("opslog: encode detail: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.db.NewBatch()
	defer b.Close()

	l.lastSeq++
	seq := l.lastSeq
	val := encodeEntry(time.Now().UnixMilli(), kind, payload)
	if err := b.Set(entryKey(seq), val, nil); err != nil {
		return 0, err
	}
	var meta [8]byte
	binary.BigEndian.PutUint64(meta[:], l.lastSeq)
	if err := b.Set(keyMeta, meta[:], nil); err != nil {
		return 0, err
	}
	if err := l.db.CommitBatch(ctx, b); err != nil {
		return 0, err
	}
	return seq, nil
}

func entryKey(seq uint64) []byte {
	k := make([]byte, 0, len(keyEntryPrefix)+8)
	k = append(k, keyEntryPrefix...)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	return append(k, b[:]...)
}

func seqFromKey(key []byte) uint64 {
	if len(key) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(key[len(key)-8:])
}
