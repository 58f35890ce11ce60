package audit

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Niyaz-313/trading-bot/pkg/id"
)

// csvHeader is the tabular mirror's header row. Payload is flattened to a
// JSON string column so the mirror loses nothing relative to the JSONL form.
var csvHeader = []string{"sequence_id", "timestamp_utc", "event_type", "payload"}

// Store is a dual-encoded append-only audit store. Single writer at a time;
// merging two writers' histories is the reconciler's job.
type Store struct {
	dir  string
	name string

	jsonlPath  string
	csvPath    string
	writerPath string

	mu      sync.Mutex
	lastSeq string
	gen     *id.Generator
}

// Open opens (creating if needed) the store <dir>/<name>.{jsonl,csv}.
// It repairs a CSV mirror left inconsistent by a crash mid-append and loads
// the highest sequence id present.
func Open(dir, name string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: mkdir %s: %v", ErrWrite, dir, err)
	}
	s := &Store{
		dir:        dir,
		name:       name,
		jsonlPath:  filepath.Join(dir, name+".jsonl"),
		csvPath:    filepath.Join(dir, name+".csv"),
		writerPath: filepath.Join(dir, name+".writer"),
	}
	if err := s.ensureCSVHeader(); err != nil {
		return nil, err
	}
	if err := s.repairMirror(); err != nil {
		return nil, err
	}
	writer, err := s.loadWriterTag()
	if err != nil {
		return nil, err
	}
	s.gen = id.NewGenerator(writer)
	last, err := s.lastSequenceFromDisk()
	if err != nil {
		return nil, err
	}
	s.lastSeq = last
	return s, nil
}

// Name returns the store base name.
func (s *Store) Name() string { return s.name }

// Dir returns the store directory.
func (s *Store) Dir() string { return s.dir }

// Paths returns the JSONL and CSV file paths, in that order.
func (s *Store) Paths() (string, string) { return s.jsonlPath, s.csvPath }

// WriterTag returns the persisted writer identity of this store copy.
func (s *Store) WriterTag() string { return s.gen.Writer() }

// LastSequenceID returns the highest sequence id present, or "" for an
// empty store.
func (s *Store) LastSequenceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeq
}

// AppendEvent assigns a sequence id and UTC timestamp, then appends.
func (s *Store) AppendEvent(eventType string, payload map[string]interface{}) (Record, error) {
	rec := Record{
		SequenceID:   s.gen.Next(),
		TimestampUTC: time.Now().UTC(),
		EventType:    eventType,
		Payload:      payload,
	}
	if err := s.Append(rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Append writes rec to both encodings. All-or-nothing: if the CSV mirror
// cannot be written, the JSONL file is truncated back to its pre-append size
// and the error is reported as ErrWrite.
func (s *Store) Append(rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	line, err := rec.MarshalLine()
	if err != nil {
		return fmt.Errorf("%w: encode seq %s: %v", ErrWrite, rec.SequenceID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	jf, err := os.OpenFile(s.jsonlPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrWrite, s.jsonlPath, err)
	}
	st, err := jf.Stat()
	if err != nil {
		jf.Close()
		return fmt.Errorf("%w: stat %s: %v", ErrWrite, s.jsonlPath, err)
	}
	prevSize := st.Size()

	if _, err := jf.Write(append(line, '\n')); err != nil {
		jf.Close()
		return fmt.Errorf("%w: append %s: %v", ErrWrite, s.jsonlPath, err)
	}
	if err := jf.Sync(); err != nil {
		jf.Close()
		return fmt.Errorf("%w: sync %s: %v", ErrWrite, s.jsonlPath, err)
	}
	if err := jf.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", ErrWrite, s.jsonlPath, err)
	}

	if err := s.appendCSVRow(rec); err != nil {
		// Roll the JSONL back so the pair stays consistent.
		if terr := os.Truncate(s.jsonlPath, prevSize); terr != nil {
			return fmt.Errorf("%w: csv append failed (%v) and jsonl rollback failed (%v)", ErrWrite, err, terr)
		}
		return err
	}

	if rec.SequenceID > s.lastSeq {
		s.lastSeq = rec.SequenceID
	}
	return nil
}

// Rewrite atomically replaces both encodings with the given records, in the
// given order. Used only by reconciliation adoption; callers guarantee the
// new contents are a superset of the old.
func (s *Store) Rewrite(records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmpJSONL := s.jsonlPath + ".tmp"
	tmpCSV := s.csvPath + ".tmp"

	if err := writeJSONLFile(tmpJSONL, records); err != nil {
		os.Remove(tmpJSONL)
		return err
	}
	if err := writeCSVFile(tmpCSV, records); err != nil {
		os.Remove(tmpJSONL)
		os.Remove(tmpCSV)
		return err
	}
	if err := os.Rename(tmpJSONL, s.jsonlPath); err != nil {
		os.Remove(tmpJSONL)
		os.Remove(tmpCSV)
		return fmt.Errorf("%w: rename %s: %v", ErrWrite, s.jsonlPath, err)
	}
	if err := os.Rename(tmpCSV, s.csvPath); err != nil {
		// JSONL already switched; rebuild the mirror from it instead of
		// leaving the pair split across generations.
		os.Remove(tmpCSV)
		if rerr := s.rebuildMirrorLocked(); rerr != nil {
			return fmt.Errorf("%w: rename %s: %v (mirror rebuild: %v)", ErrWrite, s.csvPath, err, rerr)
		}
	}

	last := ""
	for _, r := range records {
		if r.SequenceID > last {
			last = r.SequenceID
		}
	}
	s.lastSeq = last
	return nil
}

func (s *Store) ensureCSVHeader() error {
	st, err := os.Stat(s.csvPath)
	if err == nil && st.Size() > 0 {
		return nil
	}
	f, err := os.OpenFile(s.csvPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrWrite, s.csvPath, err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("%w: header %s: %v", ErrWrite, s.csvPath, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("%w: header %s: %v", ErrWrite, s.csvPath, err)
	}
	return f.Sync()
}

func (s *Store) appendCSVRow(rec Record) error {
	f, err := os.OpenFile(s.csvPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrWrite, s.csvPath, err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(csvRow(rec)); err != nil {
		return fmt.Errorf("%w: row %s: %v", ErrWrite, s.csvPath, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("%w: row %s: %v", ErrWrite, s.csvPath, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("%w: sync %s: %v", ErrWrite, s.csvPath, err)
	}
	return nil
}

func csvRow(rec Record) []string {
	payload := ""
	if rec.Payload != nil {
		if b, err := json.Marshal(rec.Payload); err == nil {
			payload = string(b)
		}
	}
	return []string{
		rec.SequenceID,
		rec.TimestampUTC.UTC().Format(time.RFC3339Nano),
		rec.EventType,
		payload,
	}
}

func recordFromCSVRow(row []string) (Record, error) {
	if len(row) != len(csvHeader) {
		return Record{}, fmt.Errorf("%w: csv row has %d columns", ErrCorruptRecord, len(row))
	}
	ts, err := time.Parse(time.RFC3339Nano, row[1])
	if err != nil {
		return Record{}, fmt.Errorf("%w: csv timestamp %q: %v", ErrCorruptRecord, row[1], err)
	}
	rec := Record{SequenceID: row[0], TimestampUTC: ts.UTC(), EventType: row[2]}
	if strings.TrimSpace(row[3]) != "" {
		if err := json.Unmarshal([]byte(row[3]), &rec.Payload); err != nil {
			return Record{}, fmt.Errorf("%w: csv payload (seq %s): %v", ErrCorruptRecord, rec.SequenceID, err)
		}
	}
	if err := rec.Validate(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func writeJSONLFile(path string, records []Record) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrWrite, path, err)
	}
	defer f.Close()
	for _, rec := range records {
		line, err := rec.MarshalLine()
		if err != nil {
			return fmt.Errorf("%w: encode seq %s: %v", ErrWrite, rec.SequenceID, err)
		}
		if _, err := f.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("%w: write %s: %v", ErrWrite, path, err)
		}
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("%w: sync %s: %v", ErrWrite, path, err)
	}
	return nil
}

// WriteCSV writes records to path in the tabular mirror format. Used by the
// retention archiver to derive an archive's CSV half from one JSONL read.
func WriteCSV(path string, records []Record) error {
	return writeCSVFile(path, records)
}

func writeCSVFile(path string, records []Record) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrWrite, path, err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("%w: header %s: %v", ErrWrite, path, err)
	}
	for _, rec := range records {
		if err := w.Write(csvRow(rec)); err != nil {
			return fmt.Errorf("%w: row %s: %v", ErrWrite, path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("%w: flush %s: %v", ErrWrite, path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("%w: sync %s: %v", ErrWrite, path, err)
	}
	return nil
}

func (s *Store) loadWriterTag() (string, error) {
	b, err := os.ReadFile(s.writerPath)
	if err == nil {
		tag := strings.TrimSpace(string(b))
		if tag != "" {
			return tag, nil
		}
	}
	tag := id.NewWriterTag()
	tmp := s.writerPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(tag+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("%w: write %s: %v", ErrWrite, s.writerPath, err)
	}
	if err := os.Rename(tmp, s.writerPath); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("%w: rename %s: %v", ErrWrite, s.writerPath, err)
	}
	return tag, nil
}
