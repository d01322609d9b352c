package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSimilarity(t *testing.T) {
	for _, name := range []string{"", "jaro_winkler", "JARO_WINKLER", "levenshtein"} {
		sim, err := NewSimilarity(name)
		require.NoError(t, err, name)
		assert.InDelta(t, 1.0, sim.Score("acme ltd", "acme ltd"), 1e-9, name)
	}

	_, err := NewSimilarity("cosine")
	assert.Error(t, err)
}

func TestSimilarity_Scores(t *testing.T) {
	jw, err := NewSimilarity(SimilarityJaroWinkler)
	require.NoError(t, err)
	lev, err := NewSimilarity(SimilarityLevenshtein)
	require.NoError(t, err)

	assert.Greater(t, jw.Score("martha", "marhta"), 0.9)
	assert.Less(t, jw.Score("inv-a", "tx-b"), 0.85)

	// Substitutions count as two edits: (6+7-5)/(6+7).
	assert.InDelta(t, 8.0/13.0, lev.Score("kitten", "sitting"), 0.001)
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "acme corp march", normalizeText("  ACME   Corp\tMarch "))
	assert.Equal(t, "", normalizeText("   "))
}
