package record

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// Scanner limits for JSONL lines. Embedded vectors make lines long.
const (
	scanInitial = 64 * 1024
	scanMax     = 16 * 1024 * 1024
)

// WriteJSONL writes one record per line.
func WriteJSONL(w io.Writer, records []Record) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode record %d (%s): %w", i, rec.ID, err)
		}
	}
	return nil
}

// ReadJSONL reads records from a newline-delimited JSON stream. Blank
// lines are skipped; a malformed line fails the read with its line number.
func ReadJSONL(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, scanInitial), scanMax)

	var records []Record
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read jsonl: %w", err)
	}
	return records, nil
}
