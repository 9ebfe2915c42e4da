package config

import (
	"github.com/tidwall/gjson"

	"github.com/Raebu/RaeburnBrainMonorepo/scorer"
)

// parseWeightsJSON parses the object form of RAEBURN_SCORE_WEIGHTS using
// gjson, consistent with how the registry reads the flexible cost/speed
// shapes in model_registry.json.
func parseWeightsJSON(raw string) (scorer.Weights, error) {
	root := gjson.Parse(raw)
	return scorer.Weights{
		Length:     root.Get("length").Float(),
		Match:      root.Get("match").Float(),
		Similarity: root.Get("similarity").Float(),
		Latency:    root.Get("latency").Float(),
	}, nil
}
