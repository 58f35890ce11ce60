package audit

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// Scanner iterates records from the JSONL encoding in store order. The store
// is immutable except for appends, so restarting a scan from the beginning is
// always safe.
type Scanner struct {
	f    *bufio.Scanner
	file *os.File
	rec  Record
	err  error
	line int
}

// Scan opens a new scanner over the store. Callers must drain it (Next until
// false) or call Close.
func (s *Store) Scan() (*Scanner, error) {
	f, err := os.Open(s.jsonlPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Scanner{}, nil
		}
		return nil, fmt.Errorf("open %s: %w", s.jsonlPath, err)
	}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	return &Scanner{f: sc, file: f}, nil
}

// Next advances to the next record. It returns false at EOF or on the first
// corrupt line, which is then reported by Err.
func (sc *Scanner) Next() bool {
	if sc.f == nil || sc.err != nil {
		return false
	}
	for sc.f.Scan() {
		sc.line++
		line := bytes.TrimSpace(sc.f.Bytes())
		if len(line) == 0 {
			continue
		}
		rec, err := UnmarshalLine(line)
		if err != nil {
			sc.err = fmt.Errorf("line %d: %w", sc.line, err)
			sc.close()
			return false
		}
		sc.rec = rec
		return true
	}
	sc.err = sc.f.Err()
	sc.close()
	return false
}

// Record returns the current record.
func (sc *Scanner) Record() Record { return sc.rec }

// Err returns the first error encountered, if any.
func (sc *Scanner) Err() error { return sc.err }

// Close releases the underlying file. Safe to call multiple times.
func (sc *Scanner) Close() error {
	sc.close()
	return nil
}

func (sc *Scanner) close() {
	if sc.file != nil {
		sc.file.Close()
		sc.file = nil
	}
	sc.f = nil
}

// ReadAll loads every record into memory, in store order. Reconciliation and
// snapshots work on full copies; steady-state consumers should prefer Scan.
func (s *Store) ReadAll() ([]Record, error) {
	sc, err := s.Scan()
	if err != nil {
		return nil, err
	}
	var out []Record
	for sc.Next() {
		out = append(out, sc.Record())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadJSONL parses a whole serialized JSONL dump, as exchanged over the
// replica transport.
func ReadJSONL(r io.Reader) ([]Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	var out []Record
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		rec, err := UnmarshalLine(b)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// WriteJSONL serializes records as a JSONL dump.
func WriteJSONL(w io.Writer, records []Record) error {
	for _, rec := range records {
		line, err := rec.MarshalLine()
		if err != nil {
			return err
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return err
		}
	}
	return nil
}

// readAllCSV loads the tabular mirror. Used for repair and the round-trip
// verification in tests.
func (s *Store) readAllCSV() ([]Record, error) {
	f, err := os.Open(s.csvPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", s.csvPath, err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = len(csvHeader)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptRecord, s.csvPath, err)
	}
	var out []Record
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		rec, err := recordFromCSVRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
