package insights

import (
	"regexp"
	"sort"
	"strings"
)

// medicationKeywords mark an item name as a probable medication or supplement.
var medicationKeywords = []string{
	"mg", "mcg",
	"tablet", "tab", "tabs",
	"capsule", "capsules", "pill",
	"caplet", "caplets",
	"ointment", "cream", "gel", "drops", "syrup",
	"vitamin", "supplement", "rx",
	"pain relief", "allergy", "sleep aid",
	"blood pressure", "cholesterol", "antibiotic",
}

// ingredientKeywords map a canonical active-ingredient key to the generic and
// brand names it appears under.
var ingredientKeywords = map[string][]string{
	"acetaminophen":   {"acetaminophen", "tylenol"},
	"ibuprofen":       {"ibuprofen", "advil", "motrin"},
	"naproxen":        {"naproxen", "aleve"},
	"omeprazole":      {"omeprazole", "prilosec"},
	"lansoprazole":    {"lansoprazole", "prevacid"},
	"loratadine":      {"loratadine", "claritin"},
	"cetirizine":      {"cetirizine", "zyrtec"},
	"diphenhydramine": {"diphenhydramine", "benadryl"},
	"simvastatin":     {"simvastatin"},
	"atorvastatin":    {"atorvastatin", "lipitor"},
	"amlodipine":      {"amlodipine"},
	"metformin":       {"metformin"},
	"insulin":         {"insulin"},
	"multivitamin":    {"multivitamin", "multi-vitamin"},
}

var (
	nonAlnumRe    = regexp.MustCompile(`[^a-z0-9\s]`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
	ingredientIdx = buildIngredientIndex()
)

type ingredientTerm struct {
	key  string
	term string
}

func buildIngredientIndex() []ingredientTerm {
	// Deterministic match order: longest term first, then lexicographic.
	var terms []ingredientTerm
	for key, values := range ingredientKeywords {
		for _, term := range values {
			terms = append(terms, ingredientTerm{key: key, term: NormalizeMedicationName(term)})
		}
	}
	sort.Slice(terms, func(i, j int) bool {
		if len(terms[i].term) != len(terms[j].term) {
			return len(terms[i].term) > len(terms[j].term)
		}
		return terms[i].term < terms[j].term
	})
	return terms
}

// NormalizeMedicationName lowercases a name and strips punctuation so lookups
// and grouping are insensitive to merchant formatting.
func NormalizeMedicationName(name string) string {
	cleaned := nonAlnumRe.ReplaceAllString(strings.ToLower(name), " ")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(cleaned, " "))
}

// classification describes how an item name was categorized.
type classification struct {
	IsMedication   bool
	NormalizedName string
	IngredientKey  string
}

// classifyMedication tags an item name with its ingredient key, if any, and
// whether it looks like a medication at all.
func classifyMedication(name string) classification {
	normalized := NormalizeMedicationName(name)
	if normalized == "" {
		return classification{}
	}

	var ingredientKey string
	for _, entry := range ingredientIdx {
		if strings.Contains(normalized, entry.term) {
			ingredientKey = entry.key
			break
		}
	}

	isMed := ingredientKey != ""
	if !isMed {
		for _, keyword := range medicationKeywords {
			if strings.Contains(normalized, keyword) {
				isMed = true
				break
			}
		}
	}

	if !isMed {
		return classification{}
	}
	return classification{
		IsMedication:   true,
		NormalizedName: normalized,
		IngredientKey:  ingredientKey,
	}
}
