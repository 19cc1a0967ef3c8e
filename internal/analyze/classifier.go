package analyze

import "strings"

// Classification is the routing decision for a data query.
type Classification string

const (
	// Simple queries are served by the deterministic analyzer.
	Simple Classification = "simple"
	// Complex queries are delegated to the AI analyzer.
	Complex Classification = "complex"
)

// Classifier decides which analyzer serves a natural-language query.
// It is a pluggable strategy so the keyword heuristic can be replaced
// by a learned classifier without touching callers.
type Classifier interface {
	Classify(query string) Classification
}

// Queries matching these patterns can be answered directly from the
// dataset without an AI call.
var simplePatterns = []string{
	"show", "preview", "display", "head", "first", "rows", "columns",
	"count", "length", "size", "shape", "info", "describe", "stats",
}

// Queries matching these patterns need AI-driven analysis. Complex
// patterns take precedence when both kinds are present.
var complexPatterns = []string{
	"correlation", "relationship", "pattern", "trend", "outlier",
	"insight", "analysis", "why", "how", "what if", "predict",
	"group by", "aggregate", "compare", "difference",
}

// KeywordClassifier classifies over the lower-cased query text. Single
// terms match at word starts ("how" must not fire inside "show", while
// "outlier" still catches "outliers"); multi-word phrases match as
// substrings. A query matching neither set
// defaults to complex, since the deterministic analyzer can only answer
// the enumerated intents.
type KeywordClassifier struct{}

// NewKeywordClassifier creates the default keyword classifier.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

// Classify is a pure function of the normalized query text.
func (c *KeywordClassifier) Classify(query string) Classification {
	normalized := strings.ToLower(query)

	if matchesTerms(normalized, complexPatterns) {
		return Complex
	}
	if matchesTerms(normalized, simplePatterns) {
		return Simple
	}
	return Complex
}

// HasSimpleIntent reports whether the query matches any simple pattern,
// regardless of complex-term precedence. Used to decide whether a
// deterministic fallback is feasible after an AI failure.
func HasSimpleIntent(query string) bool {
	return matchesTerms(strings.ToLower(query), simplePatterns)
}

func matchesTerms(normalized string, patterns []string) bool {
	var words []string
	for _, p := range patterns {
		if strings.Contains(p, " ") {
			if strings.Contains(normalized, p) {
				return true
			}
			continue
		}
		if words == nil {
			words = queryWords(normalized)
		}
		for _, w := range words {
			// Prefix match so "outlier" also catches "outliers".
			if strings.HasPrefix(w, p) {
				return true
			}
		}
	}
	return false
}

func queryWords(normalized string) []string {
	fields := strings.Fields(normalized)
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		if w := strings.Trim(f, `.,;:!?"'()`); w != "" {
			words = append(words, w)
		}
	}
	return words
}
