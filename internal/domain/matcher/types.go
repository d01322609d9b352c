package matcher

import (
	"github.com/shopspring/decimal"

	"github.com/eshaffer321/invoice-reconciler/internal/domain/reconcile"
)

// Config holds matcher configuration
type Config struct {
	DateTolerance       int             // Days either side of the invoice date (default: 2)
	FuzzyThreshold      float64         // Minimum description similarity, 0..1 (default: 0.85)
	FuzzyConfidenceMin  int             // Confidence at the threshold (default: 75)
	FuzzyConfidenceMax  int             // Confidence at similarity 1.0 (default: 90)
	PartialConfidence   int             // Fixed confidence of partial payment links (default: 85)
	SubsetTolerance     decimal.Decimal // Allowed gap between a subset sum and the invoice (default: 0.01)
	MinPartialPayments  int             // Smallest subset accepted as a partial payment (default: 2)
	MaxSubsetCandidates int             // Above this, the subset search switches to cent DP (default: 24)
	Similarity          string          // "jaro_winkler" (default) or "levenshtein"
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		DateTolerance:       2,
		FuzzyThreshold:      0.85,
		FuzzyConfidenceMin:  75,
		FuzzyConfidenceMax:  90,
		PartialConfidence:   85,
		SubsetTolerance:     decimal.New(1, -2),
		MinPartialPayments:  2,
		MaxSubsetCandidates: 24,
		Similarity:          SimilarityJaroWinkler,
	}
}

// Confidence of rules that leave no doubt.
const certain = 100

// RunResult summarises one pass of the cascade.
type RunResult struct {
	RemovedLinks int
	Links        []*reconcile.Link
	Counts       map[reconcile.MatchType]int
}

// LinksOf returns how many links of the given type the run produced.
func (r *RunResult) LinksOf(mt reconcile.MatchType) int {
	return r.Counts[mt]
}
