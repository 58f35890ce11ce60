package audit

import "fmt"

// repairMirror rebuilds the CSV mirror from the JSONL encoding when the two
// disagree in record count. A crash between the JSONL append and the CSV
// append leaves the mirror exactly one record behind; the JSONL encoding is
// the source of truth, so the mirror is rewritten from it. Runs at Open,
// before any writer is admitted.
func (s *Store) repairMirror() error {
	jsonlRecs, err := s.ReadAll()
	if err != nil {
		return err
	}
	csvRecs, err := s.readAllCSV()
	if err == nil && len(csvRecs) == len(jsonlRecs) {
		return nil
	}
	// Either the mirror is unreadable or the counts diverged.
	if werr := writeCSVFile(s.csvPath+".tmp", jsonlRecs); werr != nil {
		return werr
	}
	if rerr := renameFile(s.csvPath+".tmp", s.csvPath); rerr != nil {
		return fmt.Errorf("%w: repair mirror %s: %v", ErrWrite, s.csvPath, rerr)
	}
	return nil
}

// rebuildMirrorLocked rewrites the CSV mirror from the current JSONL file.
// Caller holds s.mu.
func (s *Store) rebuildMirrorLocked() error {
	recs, err := s.ReadAll()
	if err != nil {
		return err
	}
	if err := writeCSVFile(s.csvPath+".tmp", recs); err != nil {
		return err
	}
	return renameFile(s.csvPath+".tmp", s.csvPath)
}
