package id

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Generator produces monotonically increasing sequence ids for one writer.
type Generator struct {
	writer string

	mu      sync.Mutex
	lastMs  int64
	counter uint64
}

// NewGenerator creates a Generator for the given writer tag. An empty tag
// gets a fresh random one.
func NewGenerator(writer string) *Generator {
	if writer == "" {
		writer = NewWriterTag()
	}
	return &Generator{writer: writer}
}

// Writer returns the generator's writer tag.
func (g *Generator) Writer() string { return g.writer }

// NowMs returns current time in milliseconds since the Unix epoch.
// Overridable in tests.
var NowMs = func() int64 { return time.Now().UnixMilli() }

// Next returns a new sequence id. Ids from one generator sort
// lexicographically in assignment order.
func (g *Generator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := NowMs()
	if ms < g.lastMs {
		ms = g.lastMs
	}
	if ms == g.lastMs {
		g.counter++
	} else {
		g.counter = 0
	}
	g.lastMs = ms
	return fmt.Sprintf("%013d-%06d-%s", ms, g.counter, g.writer)
}

// NewWriterTag returns a short random writer tag (first uuid group).
func NewWriterTag() string {
	u := uuid.New().String()
	if i := strings.IndexByte(u, '-'); i > 0 {
		return u[:i]
	}
	return u
}

// Disambiguate derives a new unique id from an existing one by appending a
// writer tag. Used when two divergent histories claim the same id with
// different payloads: both records survive, one under the derived id.
func Disambiguate(seq, writer string) string {
	if writer == "" {
		writer = NewWriterTag()
	}
	return seq + "~" + writer
}

// Base strips any disambiguation suffix, returning the originally claimed
// id. Generated ids never contain '~', so the first one starts the suffix.
func Base(seq string) string {
	if i := strings.IndexByte(seq, '~'); i > 0 {
		return seq[:i]
	}
	return seq
}
