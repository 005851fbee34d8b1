package classify

import (
	"reflect"
	"strings"
	"testing"
)

func TestClassify_EmptyInputYieldsDefaults(t *testing.T) {
	c := New(Config{})
	res := c.Classify("", "")

	if res.Category != DefaultCategory {
		t.Errorf("category: expected %q, got %q", DefaultCategory, res.Category)
	}
	if res.AgeGroup != DefaultAgeGroup {
		t.Errorf("age group: expected %q, got %q", DefaultAgeGroup, res.AgeGroup)
	}
	if len(res.Keywords) != 0 {
		t.Errorf("keywords: expected none, got %v", res.Keywords)
	}
}

func TestClassify_WhitespaceOnlyInput(t *testing.T) {
	c := New(Config{})
	res := c.Classify("   \n\t  ", " .?! ")

	if res.Category != DefaultCategory || res.AgeGroup != DefaultAgeGroup {
		t.Errorf("expected defaults, got %q / %q", res.Category, res.AgeGroup)
	}
	if len(res.Keywords) != 0 {
		t.Errorf("keywords: expected none, got %v", res.Keywords)
	}
}

func TestCategory_LabelLookup(t *testing.T) {
	c := New(Config{})
	cases := []struct {
		label string
		want  string
	}{
		{"The Respiratory System", "Pulmonology"},
		{"CARDIOVASCULAR disorders", "Cardiology"},
		{"Diseases of the Blood", "Hematology"},
		{"The Skin", "Dermatology"},
		// "ear" sits earlier in the table and also matches inside "learning".
		{"Learning Disorders", "Otolaryngology"},
		{"Growth, Development, and Behavior", "Developmental Pediatrics"},
		{"Something Unrecognized", DefaultCategory},
		{"", DefaultCategory},
	}
	for _, tc := range cases {
		if got := c.Category(tc.label); got != tc.want {
			t.Errorf("Category(%q): expected %q, got %q", tc.label, tc.want, got)
		}
	}
}

func TestCategory_FirstMatchWins(t *testing.T) {
	c := New(Config{})
	// "blood" precedes "skin" in the table, so a label containing both
	// resolves to Hematology.
	if got := c.Category("Blood and Skin Manifestations"); got != "Hematology" {
		t.Errorf("expected first table entry to win, got %q", got)
	}
}

func TestAgeGroup_TriggerTerms(t *testing.T) {
	c := New(Config{})
	cases := []struct {
		text string
		want string
	}{
		{"screening of the newborn", "Neonatal"},
		{"feeding your baby well", "Infant"},
		{"toddler sleep patterns", "Toddler"},
		{"school attendance records", "School Age"},
		{"counseling the teenager", "Adolescent"},
		{"care plans for ages 0-2 years", "Infant"},
		{"no age markers here", DefaultAgeGroup},
		{"", DefaultAgeGroup},
	}
	for _, tc := range cases {
		if got := c.AgeGroup(tc.text); got != tc.want {
			t.Errorf("AgeGroup(%q): expected %q, got %q", tc.text, tc.want, got)
		}
	}
}

func TestAgeGroup_PriorityOrder(t *testing.T) {
	c := New(Config{})
	// Neonatal outranks Adolescent when both trigger.
	got := c.AgeGroup("adolescent mothers and their newborn infants")
	if got != "Neonatal" {
		t.Errorf("expected highest-priority rule to win, got %q", got)
	}
}

func TestClassify_NewbornScreening(t *testing.T) {
	c := New(Config{})
	res := c.Classify("newborn screening protocol", "Neonatology")

	if res.AgeGroup != "Neonatal" {
		t.Errorf("age group: expected Neonatal, got %q", res.AgeGroup)
	}
	// No category substring matches "neonatology", so the default applies.
	if res.Category != DefaultCategory {
		t.Errorf("category: expected %q, got %q", DefaultCategory, res.Category)
	}
}

func TestKeywords_PatternsAndTerms(t *testing.T) {
	c := New(Config{})
	got := c.Keywords("Amoxicillin 250 mg twice daily controls the fever and infection.")

	// Pattern table order first (amounts before drug names), then the flat
	// term scan.
	want := []string{"250 mg", "amoxicillin", "fever", "infection"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestKeywords_WeightBasedDosing(t *testing.T) {
	c := New(Config{})
	got := c.Keywords("Dose at 15 mg/kg every eight hours.")

	if len(got) == 0 || got[0] != "mg/kg" {
		t.Fatalf("expected mg/kg first, got %v", got)
	}
}

func TestKeywords_DedupAcrossPatternAndTerm(t *testing.T) {
	c := New(Config{})
	// "fever" matches both a regex pattern and the flat term list; it must
	// appear once.
	got := c.Keywords("Persistent fever with high temperature.")

	want := []string{"fever", "temperature"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestKeywords_CapAndDeterminism(t *testing.T) {
	c := New(Config{})
	text := "fever infection antibiotic treatment diagnosis symptoms pediatric " +
		"child infant adolescent dosage medication therapy management clinical patient"

	first := c.Keywords(text)
	if len(first) != 10 {
		t.Fatalf("expected cap of 10 keywords, got %d: %v", len(first), first)
	}
	second := c.Keywords(text)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("truncation not deterministic:\n first %v\nsecond %v", first, second)
	}
}

func TestKeywords_LongTextStaysCapped(t *testing.T) {
	c := New(Config{})
	text := strings.Repeat("Asthma and pneumonia need treatment; give amoxicillin 20 mg/kg with ibuprofen 10 mg. ", 200)

	got := c.Keywords(text)
	if len(got) > 10 {
		t.Errorf("keyword count %d exceeds cap", len(got))
	}
}

func TestClassify_Deterministic(t *testing.T) {
	c := New(Config{})
	text := "Infants with bronchitis may need albuterol 2.5 mg via nebulizer for symptoms."
	label := "Respiratory Disorders"

	a := c.Classify(text, label)
	b := c.Classify(text, label)
	if a.Category != b.Category || a.AgeGroup != b.AgeGroup || !reflect.DeepEqual(a.Keywords, b.Keywords) {
		t.Errorf("classification not deterministic:\n a %+v\n b %+v", a, b)
	}
}

func TestNew_CustomTables(t *testing.T) {
	c := New(Config{
		Categories:  []CategoryRule{{Match: "heart", Specialty: "Cardiology"}},
		MaxKeywords: 2,
	})

	if got := c.Category("Heart Failure"); got != "Cardiology" {
		t.Errorf("custom table: expected Cardiology, got %q", got)
	}
	got := c.Keywords("fever infection antibiotic treatment")
	if len(got) > 2 {
		t.Errorf("custom cap: expected at most 2 keywords, got %v", got)
	}
}
