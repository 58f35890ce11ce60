package audit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Event types recorded by the trading service. The set is extensible; the
// store treats the tag as opaque beyond requiring it to be non-empty.
const (
	EventCycle    = "cycle"
	EventDecision = "decision"
	EventTrade    = "trade"
)

var (
	// ErrWrite reports a failed durable write. The triggering operation is
	// aborted and the pair of encodings is left consistent.
	ErrWrite = errors.New("audit: durable write failed")
	// ErrCorruptRecord reports a line that could not be parsed as a Record.
	ErrCorruptRecord = errors.New("audit: corrupt record")
)

// Record is the atomic unit of the audit trail. Immutable once written.
type Record struct {
	SequenceID   string                 `json:"sequence_id"`
	TimestampUTC time.Time              `json:"timestamp_utc"`
	EventType    string                 `json:"event_type"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
}

// Validate checks the fields every stored record must carry.
func (r Record) Validate() error {
	if r.SequenceID == "" {
		return fmt.Errorf("%w: empty sequence_id", ErrCorruptRecord)
	}
	if r.TimestampUTC.IsZero() {
		return fmt.Errorf("%w: zero timestamp_utc (seq %s)", ErrCorruptRecord, r.SequenceID)
	}
	if r.EventType == "" {
		return fmt.Errorf("%w: empty event_type (seq %s)", ErrCorruptRecord, r.SequenceID)
	}
	return nil
}

// MarshalLine encodes the record as one compact JSONL line (no trailing
// newline). Timestamps are normalized to UTC.
func (r Record) MarshalLine() ([]byte, error) {
	r.TimestampUTC = r.TimestampUTC.UTC()
	return json.Marshal(r)
}

// UnmarshalLine decodes one JSONL line into a Record and validates it.
func UnmarshalLine(line []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(line, &r); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	r.TimestampUTC = r.TimestampUTC.UTC()
	if err := r.Validate(); err != nil {
		return Record{}, err
	}
	return r, nil
}

// Equal reports whether two records are the same logical record: same id,
// same instant, same type, same canonical payload. Go's json.Marshal sorts
// map keys, so the payload comparison is canonical.
func (r Record) Equal(other Record) bool {
	if r.SequenceID != other.SequenceID ||
		!r.TimestampUTC.Equal(other.TimestampUTC) ||
		r.EventType != other.EventType {
		return false
	}
	a, err1 := json.Marshal(r.Payload)
	b, err2 := json.Marshal(other.Payload)
	if err1 != nil || err2 != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// Less orders records by timestamp, sequence id as tie-break. This is the
// canonical store order.
func (r Record) Less(other Record) bool {
	if !r.TimestampUTC.Equal(other.TimestampUTC) {
		return r.TimestampUTC.Before(other.TimestampUTC)
	}
	return r.SequenceID < other.SequenceID
}
