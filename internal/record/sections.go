package record

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"

	"github.com/dgallion1/pedigest/internal/segment"
)

// MinSectionChars is the shortest chunk worth keeping as a section.
const MinSectionChars = 50

// Section is one bounded span of chapter text with its derived position.
type Section struct {
	Chapter    string
	Title      string
	Content    string
	PageNumber int
	Index      int // chunk index within the source document
}

// headingTerms mark a chunk's first line as a usable section title.
var headingTerms = []string{"treatment", "diagnosis", "symptoms", "pathophysiology", "epidemiology"}

// BuildSections splits chapter text into sections. Chunks shorter than
// MinSectionChars are dropped, but their indexes still advance the page
// numbering, so pages stay aligned with the chunk sequence.
func BuildSections(text, chapter string, basePage int, seg *segment.Segmenter) []Section {
	if basePage <= 0 {
		basePage = 1
	}
	chunks := seg.Split(text)

	var sections []Section
	for i, chunk := range chunks {
		if len(strings.TrimSpace(chunk)) < MinSectionChars {
			continue
		}
		sections = append(sections, Section{
			Chapter:    chapter,
			Title:      sectionTitle(chunk, chapter, i),
			Content:    chunk,
			PageNumber: basePage + i,
			Index:      i,
		})
	}
	return sections
}

// sectionTitle prefers a short first line naming a clinical topic and
// falls back to "<chapter> - Part N".
func sectionTitle(chunk, chapter string, index int) string {
	firstLine := chunk
	if nl := strings.IndexByte(chunk, '\n'); nl >= 0 {
		firstLine = chunk[:nl]
	}
	firstLine = strings.TrimSpace(firstLine)

	if len(firstLine) < 100 && containsAny(strings.ToLower(firstLine), headingTerms...) {
		return firstLine
	}
	return fmt.Sprintf("%s - Part %d", chapter, index+1)
}

var chapterPrefix = regexp.MustCompile(`^(Chapter \d+:?\s*)`)

// SectionFromContent derives a section title from row content when no
// explicit section is available: the first sentence, or its first ten
// words when the sentence runs long.
func SectionFromContent(content string) string {
	first := content
	if dot := strings.IndexByte(content, '.'); dot >= 0 {
		first = content[:dot]
	}
	first = strings.TrimSpace(first)

	if len(first) > 100 {
		words := strings.Fields(first)
		if len(words) > 10 {
			words = words[:10]
		}
		first = strings.Join(words, " ")
	}

	first = chapterPrefix.ReplaceAllString(first, "")
	first = strings.TrimSpace(strings.ReplaceAll(first, "\n", " "))
	if first == "" {
		return "General Information"
	}
	if len(first) > 500 {
		first = first[:500]
	}
	return first
}

// RandomPageNumber fabricates a plausible page for rows that arrive
// without one.
func RandomPageNumber() int {
	return rand.IntN(2451) + 50
}
