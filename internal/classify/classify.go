// Package classify derives a medical category, an age group, and a keyword
// list from free-text medical content. Matching is purely lexical: ordered
// substring tables and fixed regular expressions, no models, no stemming.
package classify

import (
	"regexp"
	"strings"
)

// CategoryRule maps a chapter-label substring to a specialty name.
type CategoryRule struct {
	Match     string
	Specialty string
}

// AgeRule assigns an age group when any trigger term appears in the text.
type AgeRule struct {
	Group string
	Terms []string
}

// Config carries the static classification tables. Zero-value fields fall
// back to the built-in defaults, so Config{} yields the stock classifier.
type Config struct {
	Categories      []CategoryRule
	AgeGroups       []AgeRule
	KeywordPatterns []*regexp.Regexp
	KeywordTerms    []string
	MaxKeywords     int
}

// DefaultConfig returns the built-in classification tables.
func DefaultConfig() Config {
	return Config{
		Categories:      defaultCategories,
		AgeGroups:       defaultAgeGroups,
		KeywordPatterns: defaultPatterns,
		KeywordTerms:    defaultTerms,
		MaxKeywords:     10,
	}
}

// Result is the classification of one chunk of text.
type Result struct {
	Category string
	AgeGroup string
	Keywords []string
}

// DefaultCategory is returned when no category rule matches.
const DefaultCategory = "General Pediatrics"

// DefaultAgeGroup is returned when no age rule matches.
const DefaultAgeGroup = "Pediatric"

// Classifier evaluates the configured tables against text. It holds only
// read-only state and is safe for concurrent use.
type Classifier struct {
	categories  []CategoryRule
	ageGroups   []AgeRule
	patterns    []*regexp.Regexp
	terms       []string
	maxKeywords int
}

// New builds a Classifier, substituting defaults for zero config values.
func New(cfg Config) *Classifier {
	def := DefaultConfig()
	if cfg.Categories == nil {
		cfg.Categories = def.Categories
	}
	if cfg.AgeGroups == nil {
		cfg.AgeGroups = def.AgeGroups
	}
	if cfg.KeywordPatterns == nil {
		cfg.KeywordPatterns = def.KeywordPatterns
	}
	if cfg.KeywordTerms == nil {
		cfg.KeywordTerms = def.KeywordTerms
	}
	if cfg.MaxKeywords <= 0 {
		cfg.MaxKeywords = def.MaxKeywords
	}
	return &Classifier{
		categories:  cfg.Categories,
		ageGroups:   cfg.AgeGroups,
		patterns:    cfg.KeywordPatterns,
		terms:       cfg.KeywordTerms,
		maxKeywords: cfg.MaxKeywords,
	}
}

// Classify derives category, age group, and keywords for one chunk.
// It never fails: empty or unmatched input yields the documented defaults
// and an empty keyword list.
func (c *Classifier) Classify(text, sourceLabel string) Result {
	return Result{
		Category: c.Category(sourceLabel),
		AgeGroup: c.AgeGroup(text),
		Keywords: c.Keywords(text),
	}
}

// Category resolves a specialty from a chapter or document label. The first
// rule whose substring occurs in the lowercased label wins; rule order is
// part of the contract.
func (c *Classifier) Category(sourceLabel string) string {
	label := strings.ToLower(sourceLabel)
	for _, rule := range c.categories {
		if strings.Contains(label, rule.Match) {
			return rule.Specialty
		}
	}
	return DefaultCategory
}

// AgeGroup resolves an age group from chunk text. Rules are checked in
// priority order; the first rule with any trigger term present wins.
func (c *Classifier) AgeGroup(text string) string {
	lower := strings.ToLower(text)
	for _, rule := range c.ageGroups {
		for _, term := range rule.Terms {
			if strings.Contains(lower, term) {
				return rule.Group
			}
		}
	}
	return DefaultAgeGroup
}

// Keywords extracts at most MaxKeywords keywords from chunk text: all regex
// pattern matches plus any standalone terms present as substrings.
// Duplicates are dropped case-insensitively and first-seen order is kept,
// so truncation is deterministic for a given input.
func (c *Classifier) Keywords(text string) []string {
	lower := strings.ToLower(text)

	var keywords []string
	seen := make(map[string]struct{})
	add := func(k string) {
		k = strings.TrimSpace(k)
		if k == "" {
			return
		}
		key := strings.ToLower(k)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		keywords = append(keywords, k)
	}

	for _, pat := range c.patterns {
		for _, m := range pat.FindAllString(lower, -1) {
			add(m)
		}
	}
	for _, term := range c.terms {
		if strings.Contains(lower, term) {
			add(term)
		}
	}

	if len(keywords) > c.maxKeywords {
		keywords = keywords[:c.maxKeywords]
	}
	return keywords
}
