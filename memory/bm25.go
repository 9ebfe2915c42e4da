package memory

import (
	"math"
	"strings"
)

// bm25k1 and bm25b mirror the defaults in the retrieval pack's hybrid
// retriever (k1 1.2-2.0, b 0.75).
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// bm25Scores ranks docs against query using the classic BM25 formula,
// grounded on the retrieval package's bm25Retrieve/computeBM25Stats: term
// document-frequency IDF times a saturating term-frequency factor
// normalized by document length against the corpus average.
func bm25Scores(query string, docs []Entry) map[string]float64 {
	queryTerms := tokenize(query)
	scores := make(map[string]float64, len(docs))
	if len(docs) == 0 || len(queryTerms) == 0 {
		for _, d := range docs {
			scores[d.ID] = 0
		}
		return scores
	}

	docTerms := make([][]string, len(docs))
	docLens := make([]int, len(docs))
	totalLen := 0
	termDocCount := make(map[string]int)
	for i, d := range docs {
		terms := tokenize(d.Text)
		docTerms[i] = terms
		docLens[i] = len(terms)
		totalLen += len(terms)
		seen := make(map[string]struct{})
		for _, t := range terms {
			if _, ok := seen[t]; !ok {
				termDocCount[t]++
				seen[t] = struct{}{}
			}
		}
	}
	avgLen := float64(totalLen) / float64(len(docs))

	idf := make(map[string]float64, len(termDocCount))
	n := float64(len(docs))
	for term, df := range termDocCount {
		idf[term] = math.Log((n-float64(df)+0.5)/(float64(df)+0.5) + 1.0)
	}

	for i, d := range docs {
		termFreq := make(map[string]int)
		for _, t := range docTerms[i] {
			termFreq[t]++
		}
		docLen := float64(docLens[i])

		var score float64
		for _, qt := range queryTerms {
			tf, ok := termFreq[qt]
			if !ok {
				continue
			}
			numerator := float64(tf) * (bm25K1 + 1.0)
			denominator := float64(tf) + bm25K1*(1.0-bm25B+bm25B*(docLen/avgLen))
			score += idf[qt] * (numerator / denominator)
		}
		scores[d.ID] = score
	}
	return scores
}

func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}
