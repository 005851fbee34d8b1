// Package dataset produces and checks the JSONL artifacts: the main
// textbook dataset, the supplemental resources dataset, and a training
// dataset of message triples.
package dataset

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dgallion1/pedigest/internal/record"
)

// TrainingMessage is one chat turn in a training example.
type TrainingMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TrainingMetadata carries provenance for a training example. PageNumber
// is null when the source row had none.
type TrainingMetadata struct {
	Source     string `json:"source"`
	Chapter    string `json:"chapter"`
	Section    string `json:"section"`
	Category   string `json:"category"`
	AgeGroup   string `json:"age_group"`
	PageNumber *int   `json:"page_number"`
}

// TrainingRecord is one system/user/assistant triple.
type TrainingRecord struct {
	Messages []TrainingMessage `json:"messages"`
	Metadata TrainingMetadata  `json:"metadata"`
}

// TrainingFromRecord converts a corpus record into a training example.
// Records without content produce no example.
func TrainingFromRecord(rec record.Record) (TrainingRecord, bool) {
	content := strings.TrimSpace(rec.Content)
	if content == "" {
		return TrainingRecord{}, false
	}

	source := rec.Source
	if source == "" {
		source = record.DefaultSource
	}
	topic := strings.ToLower(strings.TrimSpace(rec.Section))
	if topic == "" {
		topic = strings.ToLower(strings.TrimSpace(rec.Chapter))
	}

	var page *int
	if rec.PageNumber > 0 {
		p := rec.PageNumber
		page = &p
	}

	return TrainingRecord{
		Messages: []TrainingMessage{
			{
				Role: "system",
				Content: fmt.Sprintf(
					"You are a pediatric medical expert. Provide accurate information from the %s about %s.",
					source, strings.ToLower(rec.MedicalCategory)),
			},
			{
				Role:    "user",
				Content: "Tell me about " + topic,
			},
			{
				Role:    "assistant",
				Content: content,
			},
		},
		Metadata: TrainingMetadata{
			Source:     source,
			Chapter:    rec.Chapter,
			Section:    rec.Section,
			Category:   rec.MedicalCategory,
			AgeGroup:   rec.AgeGroup,
			PageNumber: page,
		},
	}, true
}

// WriteTextbook writes the main dataset to path, one record per line.
func WriteTextbook(path string, records []record.Record) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := record.WriteJSONL(f, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

// WriteResources writes the supplemental resources dataset to path.
func WriteResources(path string, resources []record.ResourceRecord) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	for i, res := range resources {
		if err := enc.Encode(res); err != nil {
			return i, fmt.Errorf("encode resource %d: %w", i, err)
		}
	}
	return len(resources), nil
}

// WriteTraining writes the training dataset to path, skipping records
// without content. Returns the number of examples written.
func WriteTraining(path string, records []record.Record) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return writeTraining(f, records)
}

func writeTraining(w io.Writer, records []record.Record) (int, error) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	written := 0
	for _, rec := range records {
		tr, ok := TrainingFromRecord(rec)
		if !ok {
			continue
		}
		if err := enc.Encode(tr); err != nil {
			return written, fmt.Errorf("encode training record: %w", err)
		}
		written++
	}
	return written, nil
}
