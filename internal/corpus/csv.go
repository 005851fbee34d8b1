package corpus

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// CSVParser handles tabular sources. A content column is required;
// chapter, section and page_number columns are optional and pre-label
// each row so file-level labeling is bypassed.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	doc := &Document{Label: LabelFromFilename(filename)}
	if len(records) == 0 {
		return doc, nil
	}

	cols := make(map[string]int, len(records[0]))
	for i, h := range records[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	contentIdx, ok := cols["content"]
	if !ok {
		return nil, fmt.Errorf("csv %s: missing content column", filename)
	}
	chapterIdx, hasChapter := cols["chapter"]
	sectionIdx, hasSection := cols["section"]
	pageIdx, hasPage := cols["page_number"]

	cell := func(rec []string, idx int) string {
		if idx < len(rec) {
			return strings.TrimSpace(rec[idx])
		}
		return ""
	}

	for _, rec := range records[1:] {
		row := Row{
			Chapter: doc.Label,
			Content: cell(rec, contentIdx),
		}
		if row.Content == "" {
			continue
		}
		if hasChapter {
			if c := cell(rec, chapterIdx); c != "" {
				row.Chapter = c
			}
		}
		if hasSection {
			row.Section = cell(rec, sectionIdx)
		}
		if hasPage {
			if n, err := strconv.Atoi(cell(rec, pageIdx)); err == nil {
				row.PageNumber = n
			}
		}
		doc.Rows = append(doc.Rows, row)
	}
	return doc, nil
}
