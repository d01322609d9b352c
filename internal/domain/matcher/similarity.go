package matcher

import (
	"fmt"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// Supported similarity metrics.
const (
	SimilarityJaroWinkler = "jaro_winkler"
	SimilarityLevenshtein = "levenshtein"
)

// Similarity scores two texts on a 0..1 scale, 1 being identical.
type Similarity interface {
	Score(a, b string) float64
}

// NewSimilarity returns the named metric. An empty name selects Jaro-Winkler.
func NewSimilarity(name string) (Similarity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", SimilarityJaroWinkler, "jarowinkler":
		return jaroWinkler{metric: metrics.NewJaroWinkler()}, nil
	case SimilarityLevenshtein:
		return levenshteinRatio{}, nil
	default:
		return nil, fmt.Errorf("unknown similarity metric %q", name)
	}
}

type jaroWinkler struct {
	metric *metrics.JaroWinkler
}

func (j jaroWinkler) Score(a, b string) float64 {
	return strutil.Similarity(a, b, j.metric)
}

// levenshteinRatio is (len(a)+len(b)-distance)/(len(a)+len(b)) with
// substitutions costing two edits.
type levenshteinRatio struct{}

func (levenshteinRatio) Score(a, b string) float64 {
	return levenshtein.RatioForStrings([]rune(a), []rune(b), levenshtein.DefaultOptions)
}

// normalizeText lower-cases and collapses whitespace.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
