package dataset

import (
	"sort"

	"github.com/dgallion1/pedigest/internal/embed"
	"github.com/dgallion1/pedigest/internal/record"
)

// Summary is a point-in-time aggregate of a record set.
type Summary struct {
	Total    int `json:"total"`
	Embedded int `json:"embedded"`

	Categories map[string]int `json:"categories"`
	AgeGroups  map[string]int `json:"age_groups"`
	Chapters   map[string]int `json:"chapters"`

	AvgContentChars float64 `json:"avg_content_chars"`
	MinContentChars int     `json:"min_content_chars"`
	MaxContentChars int     `json:"max_content_chars"`
	P50ContentChars float64 `json:"p50_content_chars"`
	P95ContentChars float64 `json:"p95_content_chars"`
}

// Summarize aggregates counts and content-length distribution for a
// record set.
func Summarize(records []record.Record) *Summary {
	s := &Summary{
		Total:      len(records),
		Categories: make(map[string]int),
		AgeGroups:  make(map[string]int),
		Chapters:   make(map[string]int),
	}
	if len(records) == 0 {
		return s
	}

	lengths := make([]int64, 0, len(records))
	var sum int64
	for _, rec := range records {
		if len(rec.Embedding) > 0 && !embed.IsZero(rec.Embedding) {
			s.Embedded++
		}
		if rec.MedicalCategory != "" {
			s.Categories[rec.MedicalCategory]++
		}
		if rec.AgeGroup != "" {
			s.AgeGroups[rec.AgeGroup]++
		}
		if rec.Chapter != "" {
			s.Chapters[rec.Chapter]++
		}
		n := int64(len(rec.Content))
		lengths = append(lengths, n)
		sum += n
	}

	sort.Slice(lengths, func(i, j int) bool { return lengths[i] < lengths[j] })
	s.MinContentChars = int(lengths[0])
	s.MaxContentChars = int(lengths[len(lengths)-1])
	s.AvgContentChars = float64(sum) / float64(len(lengths))
	s.P50ContentChars = percentile(lengths, 50)
	s.P95ContentChars = percentile(lengths, 95)
	return s
}

func percentile(sortedValues []int64, pct float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sortedValues[0])
	}
	if pct >= 100 {
		return float64(sortedValues[len(sortedValues)-1])
	}

	index := (float64(len(sortedValues)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sortedValues) {
		return float64(sortedValues[lower])
	}
	weight := index - float64(lower)
	lo := float64(sortedValues[lower])
	hi := float64(sortedValues[upper])
	return lo + ((hi - lo) * weight)
}
