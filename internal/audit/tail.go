package audit

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

const (
	tailChunk    = 64 * 1024
	tailMaxBytes = 2 * 1024 * 1024
)

// Tail returns up to n records from the end of the store, newest first. It
// reads the JSONL encoding backwards in chunks so large stores never load
// fully. Corrupt lines in the scanned window are skipped; Tail serves
// operator inspection, not reconciliation.
func (s *Store) Tail(n int) ([]Record, error) {
	if n <= 0 {
		return nil, nil
	}
	f, err := os.Open(s.jsonlPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", s.jsonlPath, err)
	}
	defer f.Close()

	end, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("seek %s: %w", s.jsonlPath, err)
	}

	var out []Record
	var buf []byte
	pos := end
	read := int64(0)

	for pos > 0 && len(out) < n && read < tailMaxBytes {
		step := int64(tailChunk)
		if pos < step {
			step = pos
		}
		pos -= step
		chunk := make([]byte, step)
		if _, err := f.ReadAt(chunk, pos); err != nil {
			return nil, fmt.Errorf("read %s: %w", s.jsonlPath, err)
		}
		read += step
		buf = append(chunk, buf...)

		lines := bytes.Split(buf, []byte{'\n'})
		// The first element may be a partial line cut by the chunk
		// boundary; keep it in the carry buffer unless we reached the
		// file start.
		start := 1
		if pos == 0 {
			start = 0
			buf = nil
		} else {
			buf = lines[0]
		}
		for i := len(lines) - 1; i >= start && len(out) < n; i-- {
			line := bytes.TrimSpace(lines[i])
			if len(line) == 0 {
				continue
			}
			rec, err := UnmarshalLine(line)
			if err != nil {
				continue
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

// lastSequenceFromDisk finds the highest sequence id present. Appends within
// a single writer's stream are assigned in increasing order, but a merge
// adoption may have interleaved writers, so the whole tail window is scanned
// rather than just the final line.
func (s *Store) lastSequenceFromDisk() (string, error) {
	recs, err := s.Tail(64)
	if err != nil {
		return "", err
	}
	last := ""
	for _, r := range recs {
		if r.SequenceID > last {
			last = r.SequenceID
		}
	}
	return last, nil
}
