// Package record defines the storable units produced by the ingest
// pipeline: classified textbook sections and supplemental clinical
// resources, plus their JSONL and Postgres wire formats.
package record

import (
	"fmt"
	"strings"
	"time"

	"github.com/dgallion1/pedigest/internal/classify"
)

// Record types as they appear in the "type" field.
const (
	TypeTextbook = "medical_textbook"
	TypeResource = "clinical_resource"
)

// DefaultSource is the attribution used when a document carries none.
const DefaultSource = "Nelson Textbook of Pediatrics"

// DefaultIDPrefix prefixes textbook record IDs.
const DefaultIDPrefix = "nelson"

// Metadata carries derived facts about a textbook record's content.
type Metadata struct {
	WordCount         int    `json:"word_count"`
	HasDosingInfo     bool   `json:"has_dosing_info"`
	HasDiagnosticInfo bool   `json:"has_diagnostic_info"`
	HasTreatmentInfo  bool   `json:"has_treatment_info"`
	CreatedAt         string `json:"created_at"`
}

// Record is one classified, embeddable section of textbook content.
type Record struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	Source          string    `json:"source"`
	Chapter         string    `json:"chapter"`
	Section         string    `json:"section"`
	PageNumber      int       `json:"page_number"`
	Content         string    `json:"content"`
	MedicalCategory string    `json:"medical_category"`
	AgeGroup        string    `json:"age_group"`
	Keywords        []string  `json:"keywords"`
	Embedding       []float32 `json:"embedding"`
	Metadata        Metadata  `json:"metadata"`
}

// ResourceMetadata carries derived facts about a clinical resource.
type ResourceMetadata struct {
	WordCount             int    `json:"word_count"`
	IsProtocol            bool   `json:"is_protocol"`
	IsDosageGuide         bool   `json:"is_dosage_guide"`
	HasAgeRestrictions    bool   `json:"has_age_restrictions"`
	HasWeightRestrictions bool   `json:"has_weight_restrictions"`
	CreatedAt             string `json:"created_at"`
}

// ResourceRecord is a supplemental clinical-resource row (protocols,
// dosage guides, reference material).
type ResourceRecord struct {
	ID           string           `json:"id"`
	Type         string           `json:"type"`
	Source       string           `json:"source"`
	Title        string           `json:"title"`
	Content      string           `json:"content"`
	ResourceType string           `json:"resource_type"`
	Category     string           `json:"category"`
	AgeRange     string           `json:"age_range,omitempty"`
	WeightRange  string           `json:"weight_range,omitempty"`
	Embedding    []float32        `json:"embedding"`
	Metadata     ResourceMetadata `json:"metadata"`
}

// TextbookID formats the canonical textbook record ID for a row number.
func TextbookID(prefix string, n int) string {
	if prefix == "" {
		prefix = DefaultIDPrefix
	}
	return fmt.Sprintf("%s_%04d", prefix, n)
}

// ResourceID formats the canonical resource record ID for a row number.
func ResourceID(n int) string {
	return fmt.Sprintf("resource_%03d", n)
}

// New assembles a Record from a classified section.
func New(id string, sec Section, cls classify.Result, source string) Record {
	if source == "" {
		source = DefaultSource
	}
	keywords := cls.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	return Record{
		ID:              id,
		Type:            TypeTextbook,
		Source:          source,
		Chapter:         sec.Chapter,
		Section:         sec.Title,
		PageNumber:      sec.PageNumber,
		Content:         sec.Content,
		MedicalCategory: cls.Category,
		AgeGroup:        cls.AgeGroup,
		Keywords:        keywords,
		Metadata:        BuildMetadata(sec.Content, time.Now()),
	}
}

// NewResource assembles a ResourceRecord for a supplemental row.
func NewResource(n int, title, content, resourceType, category, ageRange, weightRange, source string) ResourceRecord {
	if source == "" {
		source = "Clinical Guidelines"
	}
	if resourceType == "" {
		resourceType = "reference"
	}
	return ResourceRecord{
		ID:           ResourceID(n),
		Type:         TypeResource,
		Source:       source,
		Title:        title,
		Content:      content,
		ResourceType: resourceType,
		Category:     category,
		AgeRange:     ageRange,
		WeightRange:  weightRange,
		Metadata: ResourceMetadata{
			WordCount:             len(strings.Fields(content)),
			IsProtocol:            resourceType == "protocol",
			IsDosageGuide:         resourceType == "dosage",
			HasAgeRestrictions:    ageRange != "",
			HasWeightRestrictions: weightRange != "",
			CreatedAt:             time.Now().Format(time.RFC3339),
		},
	}
}

// BuildMetadata derives the metadata flags from record content.
func BuildMetadata(content string, now time.Time) Metadata {
	lower := strings.ToLower(content)
	return Metadata{
		WordCount:         len(strings.Fields(content)),
		HasDosingInfo:     containsAny(lower, "dose", "dosage", "mg/kg", "administration"),
		HasDiagnosticInfo: containsAny(lower, "diagnosis", "symptoms", "signs", "clinical"),
		HasTreatmentInfo:  containsAny(lower, "treatment", "therapy", "management", "intervention"),
		CreatedAt:         now.Format(time.RFC3339),
	}
}

func containsAny(s string, terms ...string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
