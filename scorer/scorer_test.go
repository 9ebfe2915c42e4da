package scorer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHybrid_Bounds(t *testing.T) {
	weights := DefaultWeights()
	cases := []struct {
		prompt, content string
		failed          bool
		latencyMs       float64
	}{
		{"hello there", "hello there", false, 10},
		{"hello there", "", true, 0},
		{"", "", false, 5000},
		{"a", strings.Repeat("x", 10000), false, 1},
	}
	for _, c := range cases {
		score := Hybrid(c.prompt, c.content, c.failed, c.latencyMs, weights)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}
}

func TestHybrid_FailedResponseScoresLower(t *testing.T) {
	weights := DefaultWeights()
	ok := Hybrid("the sky is blue", "the sky is blue", false, 50, weights)
	failed := Hybrid("the sky is blue", "the sky is blue", true, 50, weights)
	assert.Greater(t, ok, failed)
}

func TestHybrid_IdenticalTextMaximizesSimilarity(t *testing.T) {
	weights := Weights{Similarity: 1}
	identical := Hybrid("same text here", "same text here", false, 0, weights)
	different := Hybrid("same text here", "completely unrelated content", false, 0, weights)
	assert.Greater(t, identical, different)
	assert.InDelta(t, 1.0, identical, 1e-9)
}

func TestHybrid_EmptyEitherSideYieldsZeroSimilarity(t *testing.T) {
	assert.Equal(t, 0.0, sequenceMatchRatio("", "anything"))
	assert.Equal(t, 0.0, sequenceMatchRatio("anything", ""))
	assert.Equal(t, 0.0, sequenceMatchRatio("", ""))
}

func TestWeights_NormalizedFallsBackOnZeroSum(t *testing.T) {
	w := Weights{}.Normalized()
	require.Equal(t, DefaultWeights(), w)
}

func TestWeights_NormalizedSumsToOne(t *testing.T) {
	w := Weights{Length: 1, Match: 1, Similarity: 1, Latency: 1}.Normalized()
	sum := w.Length + w.Match + w.Similarity + w.Latency
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestHybrid_LatencyMonotonicallyDecreasesScore(t *testing.T) {
	weights := Weights{Latency: 1}
	fast := Hybrid("p", "p", false, 1, weights)
	slow := Hybrid("p", "p", false, 10000, weights)
	assert.Greater(t, fast, slow)
}
