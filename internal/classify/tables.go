package classify

import "regexp"

// defaultCategories maps substrings of chapter labels to specialty names.
// Order is significant: the first matching entry wins.
var defaultCategories = []CategoryRule{
	{Match: "allergic", Specialty: "Allergy and Immunology"},
	{Match: "cardiovascular", Specialty: "Cardiology"},
	{Match: "respiratory", Specialty: "Pulmonology"},
	{Match: "nervous", Specialty: "Neurology"},
	{Match: "endocrine", Specialty: "Endocrinology"},
	{Match: "digestive", Specialty: "Gastroenterology"},
	{Match: "blood", Specialty: "Hematology"},
	{Match: "skin", Specialty: "Dermatology"},
	{Match: "bone", Specialty: "Orthopedics"},
	{Match: "ear", Specialty: "Otolaryngology"},
	{Match: "fluid", Specialty: "Nephrology"},
	{Match: "growth", Specialty: "Developmental Pediatrics"},
	{Match: "metabolic", Specialty: "Metabolism"},
	{Match: "immunology", Specialty: "Immunology"},
	{Match: "cancer", Specialty: "Oncology"},
	{Match: "urology", Specialty: "Urology"},
	{Match: "gynecologic", Specialty: "Gynecology"},
	{Match: "rehabilitation", Specialty: "Rehabilitation Medicine"},
	{Match: "rheumatic", Specialty: "Rheumatology"},
	{Match: "behavioral", Specialty: "Psychiatry"},
	{Match: "learning", Specialty: "Developmental Pediatrics"},
}

// defaultAgeGroups is checked in priority order against chunk text; a rule
// fires when any of its trigger terms appears as a substring.
var defaultAgeGroups = []AgeRule{
	{Group: "Neonatal", Terms: []string{"newborn", "neonate", "birth"}},
	{Group: "Infant", Terms: []string{"infant", "baby", "0-2 years"}},
	{Group: "Toddler", Terms: []string{"toddler", "2-5 years"}},
	{Group: "School Age", Terms: []string{"school", "6-12 years"}},
	{Group: "Adolescent", Terms: []string{"adolescent", "teenager", "13-18 years"}},
}

// defaultPatterns are run over lowercased text; every match becomes a
// keyword candidate.
var defaultPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(?:mg/kg|mcg/kg|units/kg)\b`),                                             // weight-based dosing
	regexp.MustCompile(`\b\d+(?:-\d+)?\s*(?:mg|mcg|units|ml|cc)\b`),                                 // medication amounts
	regexp.MustCompile(`\b(?:amoxicillin|ibuprofen|acetaminophen|prednisone|albuterol|azithromycin)\b`), // common meds
	regexp.MustCompile(`\b(?:fever|temperature|°c|°f)\b`),                                           // temperature related
	regexp.MustCompile(`\b(?:asthma|pneumonia|bronchitis|otitis|dermatitis|eczema)\b`),              // common conditions
	regexp.MustCompile(`\b(?:infant|child|pediatric|neonatal|adolescent)\b`),                        // age terms
	regexp.MustCompile(`\b(?:treatment|therapy|management|diagnosis|symptoms)\b`),                   // clinical terms
}

// defaultTerms are standalone keywords added on substring presence.
var defaultTerms = []string{
	"fever", "infection", "antibiotic", "treatment", "diagnosis", "symptoms",
	"pediatric", "child", "infant", "adolescent", "dosage", "medication",
	"therapy", "management", "clinical", "patient", "disease", "disorder",
	"syndrome", "condition", "acute", "chronic", "severe", "mild",
}
