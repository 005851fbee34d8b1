package dataset

import (
	"strings"
	"testing"

	"github.com/dgallion1/pedigest/internal/record"
)

func sizedRecord(id, chapter, category, ageGroup string, contentLen int, embedding []float32) record.Record {
	return record.Record{
		ID:              id,
		Chapter:         chapter,
		Content:         strings.Repeat("a", contentLen),
		MedicalCategory: category,
		AgeGroup:        ageGroup,
		Embedding:       embedding,
	}
}

func TestSummarize_Distribution(t *testing.T) {
	records := []record.Record{
		sizedRecord("a", "Fever", "Infectious Diseases", "Infant (1-12 months)", 100, []float32{1, 0}),
		sizedRecord("b", "Fever", "Infectious Diseases", "Infant (1-12 months)", 200, nil),
		sizedRecord("c", "Asthma", "Pulmonology", "School Age (5-12 years)", 300, []float32{0, 0}),
		sizedRecord("d", "Asthma", "Pulmonology", "School Age (5-12 years)", 400, []float32{0, 1}),
		sizedRecord("e", "Asthma", "Pulmonology", "Pediatric", 500, nil),
	}

	s := Summarize(records)
	if s.Total != 5 {
		t.Fatalf("expected total=5, got %d", s.Total)
	}
	// Zero vectors do not count as embedded.
	if s.Embedded != 2 {
		t.Errorf("expected embedded=2, got %d", s.Embedded)
	}
	if s.Categories["Pulmonology"] != 3 || s.Categories["Infectious Diseases"] != 2 {
		t.Errorf("Categories = %v", s.Categories)
	}
	if s.AgeGroups["School Age (5-12 years)"] != 2 {
		t.Errorf("AgeGroups = %v", s.AgeGroups)
	}
	if s.Chapters["Asthma"] != 3 {
		t.Errorf("Chapters = %v", s.Chapters)
	}
	if s.MinContentChars != 100 {
		t.Errorf("expected min=100, got %d", s.MinContentChars)
	}
	if s.MaxContentChars != 500 {
		t.Errorf("expected max=500, got %d", s.MaxContentChars)
	}
	if s.AvgContentChars != 300 {
		t.Errorf("expected avg=300, got %f", s.AvgContentChars)
	}
	if s.P50ContentChars != 300 {
		t.Errorf("expected p50=300, got %f", s.P50ContentChars)
	}
	if s.P95ContentChars != 480 {
		t.Errorf("expected p95=480, got %f", s.P95ContentChars)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	if s.Total != 0 || s.Embedded != 0 {
		t.Errorf("expected zero summary, got %+v", s)
	}
	if s.AvgContentChars != 0 {
		t.Errorf("expected avg=0, got %f", s.AvgContentChars)
	}
}

func TestPercentile_Bounds(t *testing.T) {
	values := []int64{10, 20, 30}
	if p := percentile(values, 0); p != 10 {
		t.Errorf("p0 = %f, want 10", p)
	}
	if p := percentile(values, 100); p != 30 {
		t.Errorf("p100 = %f, want 30", p)
	}
	if p := percentile(nil, 50); p != 0 {
		t.Errorf("empty p50 = %f, want 0", p)
	}
}
