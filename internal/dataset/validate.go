package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/pedigest/internal/record"
)

// MinContentChars is the floor below which a record's content is
// considered too short to be useful.
const MinContentChars = 50

// minTextQuality is the lowest acceptable printable-text ratio before a
// record is flagged as extraction garbage.
const minTextQuality = 0.85

// Report summarizes a validation pass over a dataset file.
type Report struct {
	Total         int            `json:"total"`
	Valid         int            `json:"valid"`
	ContentErrors []string       `json:"content_errors,omitempty"`
	FieldErrors   []string       `json:"field_errors,omitempty"`
	Chapters      map[string]int `json:"chapters"`
	AvgContentLen int            `json:"avg_content_len"`
	MinContentLen int            `json:"min_content_len"`
	MaxContentLen int            `json:"max_content_len"`
	// QualityScore is the percentage of lines with no errors.
	QualityScore float64 `json:"quality_score"`
}

// Passed reports whether every line validated cleanly.
func (r *Report) Passed() bool {
	return len(r.ContentErrors) == 0 && len(r.FieldErrors) == 0
}

// Validate checks a JSONL dataset line by line: JSON decode, required
// fields, content length and text quality. It never stops at the first
// problem; the report carries everything found.
func Validate(r io.Reader) (*Report, error) {
	report := &Report{Chapters: make(map[string]int)}
	var totalLen, measured int

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		line++
		report.Total++

		var rec record.Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			report.FieldErrors = append(report.FieldErrors,
				fmt.Sprintf("line %d: invalid JSON: %v", line, err))
			continue
		}

		lineOK := true

		content := strings.TrimSpace(rec.Content)
		if len(content) < MinContentChars {
			report.ContentErrors = append(report.ContentErrors,
				fmt.Sprintf("line %d: content too short or empty", line))
			lineOK = false
		} else if TextQuality(content) < minTextQuality {
			report.ContentErrors = append(report.ContentErrors,
				fmt.Sprintf("line %d: content looks garbled", line))
			lineOK = false
		} else {
			n := len(rec.Content)
			totalLen += n
			measured++
			if report.MinContentLen == 0 || n < report.MinContentLen {
				report.MinContentLen = n
			}
			if n > report.MaxContentLen {
				report.MaxContentLen = n
			}
		}

		for _, missing := range missingFields(rec) {
			report.FieldErrors = append(report.FieldErrors,
				fmt.Sprintf("line %d: missing %s", line, missing))
			lineOK = false
		}

		if rec.Chapter != "" {
			report.Chapters[rec.Chapter]++
		}
		if lineOK {
			report.Valid++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}

	if measured > 0 {
		report.AvgContentLen = totalLen / measured
	}
	if report.Total > 0 {
		report.QualityScore = float64(report.Valid) / float64(report.Total) * 100
	}
	return report, nil
}

func missingFields(rec record.Record) []string {
	var missing []string
	if rec.ID == "" {
		missing = append(missing, "id")
	}
	if rec.Type == "" {
		missing = append(missing, "type")
	}
	if rec.Source == "" {
		missing = append(missing, "source")
	}
	if rec.Chapter == "" {
		missing = append(missing, "chapter")
	}
	if rec.MedicalCategory == "" {
		missing = append(missing, "medical_category")
	}
	if rec.AgeGroup == "" {
		missing = append(missing, "age_group")
	}
	if rec.Metadata.CreatedAt == "" {
		missing = append(missing, "metadata.created_at")
	}
	return missing
}

// TextQuality returns the fraction of runes that are letters, digits,
// spaces, or common punctuation. Scanned-text artifacts (control bytes,
// replacement runes) pull the ratio down.
func TextQuality(s string) float64 {
	if s == "" {
		return 0
	}
	total, good := 0, 0
	for _, r := range s {
		total++
		switch {
		case unicode.IsSpace(r):
			good++
		case r == utf8.RuneError, unicode.IsControl(r):
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsPunct(r), unicode.IsSymbol(r):
			good++
		}
	}
	return float64(good) / float64(total)
}
