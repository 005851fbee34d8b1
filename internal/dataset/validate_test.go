package dataset

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/dgallion1/pedigest/internal/record"
)

func validRecord(id, chapter string) record.Record {
	return record.Record{
		ID:              id,
		Type:            record.TypeTextbook,
		Source:          record.DefaultSource,
		Chapter:         chapter,
		Section:         chapter + " - Part 1",
		PageNumber:      100,
		Content:         "Fever in infants under 28 days of age requires a full sepsis evaluation including blood, urine and CSF cultures.",
		MedicalCategory: "Infectious Diseases",
		AgeGroup:        "Neonatal (0-28 days)",
		Keywords:        []string{"fever", "sepsis"},
		Metadata: record.Metadata{
			WordCount: 18,
			CreatedAt: "2025-01-01T00:00:00Z",
		},
	}
}

func datasetLines(t *testing.T, records ...record.Record) string {
	t.Helper()
	var sb strings.Builder
	for _, rec := range records {
		raw, err := json.Marshal(rec)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		sb.Write(raw)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func TestValidate_CleanDataset(t *testing.T) {
	input := datasetLines(t, validRecord("nelson_0001", "Fever"), validRecord("nelson_0002", "Fever"))

	report, err := Validate(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if report.Total != 2 || report.Valid != 2 {
		t.Errorf("Total=%d Valid=%d, want 2/2", report.Total, report.Valid)
	}
	if !report.Passed() {
		t.Errorf("expected pass, errors: %v %v", report.ContentErrors, report.FieldErrors)
	}
	if report.QualityScore != 100 {
		t.Errorf("QualityScore = %v, want 100", report.QualityScore)
	}
	if report.Chapters["Fever"] != 2 {
		t.Errorf("Chapters = %v", report.Chapters)
	}
	if report.AvgContentLen == 0 || report.MinContentLen == 0 {
		t.Errorf("content lengths not aggregated: %+v", report)
	}
}

func TestValidate_ShortContent(t *testing.T) {
	rec := validRecord("nelson_0001", "Fever")
	rec.Content = "tiny"
	input := datasetLines(t, rec)

	report, err := Validate(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if report.Valid != 0 {
		t.Errorf("Valid = %d, want 0", report.Valid)
	}
	if len(report.ContentErrors) != 1 || !strings.Contains(report.ContentErrors[0], "line 1") {
		t.Errorf("ContentErrors = %v", report.ContentErrors)
	}
	if report.QualityScore != 0 {
		t.Errorf("QualityScore = %v, want 0", report.QualityScore)
	}
}

func TestValidate_MissingFields(t *testing.T) {
	rec := validRecord("nelson_0001", "Fever")
	rec.MedicalCategory = ""
	rec.AgeGroup = ""
	input := datasetLines(t, rec)

	report, err := Validate(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if report.Valid != 0 {
		t.Errorf("Valid = %d, want 0", report.Valid)
	}
	joined := strings.Join(report.FieldErrors, "; ")
	if !strings.Contains(joined, "missing medical_category") {
		t.Errorf("expected medical_category error, got %v", report.FieldErrors)
	}
	if !strings.Contains(joined, "missing age_group") {
		t.Errorf("expected age_group error, got %v", report.FieldErrors)
	}
}

func TestValidate_InvalidJSONLine(t *testing.T) {
	input := datasetLines(t, validRecord("nelson_0001", "Fever")) + "{not json}\n"

	report, err := Validate(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if report.Total != 2 || report.Valid != 1 {
		t.Errorf("Total=%d Valid=%d, want 2/1", report.Total, report.Valid)
	}
	if len(report.FieldErrors) != 1 || !strings.Contains(report.FieldErrors[0], "line 2") {
		t.Errorf("FieldErrors = %v", report.FieldErrors)
	}
	if report.QualityScore != 50 {
		t.Errorf("QualityScore = %v, want 50", report.QualityScore)
	}
}

func TestValidate_GarbledContent(t *testing.T) {
	rec := validRecord("nelson_0001", "Fever")
	rec.Content = strings.Repeat("ab", 20)
	input := datasetLines(t, rec)

	report, err := Validate(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(report.ContentErrors) != 1 || !strings.Contains(report.ContentErrors[0], "garbled") {
		t.Errorf("ContentErrors = %v", report.ContentErrors)
	}
}

func TestValidate_SkipsBlankLines(t *testing.T) {
	input := "\n" + datasetLines(t, validRecord("nelson_0001", "Fever")) + "\n\n"

	report, err := Validate(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if report.Total != 1 {
		t.Errorf("Total = %d, want 1", report.Total)
	}
}

func TestTextQuality(t *testing.T) {
	clean := "Amoxicillin 80-90 mg/kg/day divided twice daily for acute otitis media."
	if q := TextQuality(clean); q < 0.99 {
		t.Errorf("clean text quality = %v, want >= 0.99", q)
	}
	garbage := strings.Repeat("\x00\x01", 30)
	if q := TextQuality(garbage); q != 0 {
		t.Errorf("garbage quality = %v, want 0", q)
	}
	if q := TextQuality(""); q != 0 {
		t.Errorf("empty quality = %v, want 0", q)
	}
}
