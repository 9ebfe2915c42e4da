package memory

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// §8: read-your-writes — whatever Add just wrote is found by Get
// immediately afterward, for any text/importance pair.
func TestProperty_Add_ThenGet_ReadYourWrites(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("an added entry is immediately visible to Get", prop.ForAll(
		func(text string, importance float64) bool {
			store := New(Config{BaseDir: t.TempDir(), ShardingEnabled: true}, nil)
			id, err := store.Add("agent-1", text, nil, importance, 0, "note", nil, nil)
			if err != nil {
				return false
			}
			entries, err := store.Get("agent-1", 10, false)
			if err != nil {
				return false
			}
			for _, e := range entries {
				if e.ID == id && e.Text == text {
					return true
				}
			}
			return false
		},
		gen.RegexMatch(`[a-zA-Z0-9 ]{1,60}`),
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}

// §8: soft-deleting an entry always removes it from the default (live-only)
// view, regardless of its content.
func TestProperty_SoftDelete_AlwaysHidesFromDefaultView(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("a soft-deleted entry never appears in Get(includeDeleted=false)", prop.ForAll(
		func(text string) bool {
			store := New(Config{BaseDir: t.TempDir(), ShardingEnabled: true}, nil)
			id, err := store.Add("agent-1", text, nil, 0.5, 0, "note", nil, nil)
			if err != nil {
				return false
			}
			if err := store.SoftDelete(id); err != nil {
				return false
			}
			entries, err := store.Get("agent-1", 10, false)
			if err != nil {
				return false
			}
			for _, e := range entries {
				if e.ID == id {
					return false
				}
			}
			return true
		},
		gen.RegexMatch(`[a-zA-Z0-9 ]{1,60}`),
	))

	properties.TestingRun(t)
}

// §8 invariant 8: no two entries GetRelevant returns share the same
// (text, tag-tuple). n separately-added entries here are all textually
// identical with identical tags, so IDs alone (always-unique UUIDs) can't
// exercise this — the assertion is on the (text, tags) pair.
func TestProperty_GetRelevant_DedupesByTextAndTags(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("get_relevant never returns duplicate (text, tags) pairs", prop.ForAll(
		func(n int) bool {
			store := New(Config{BaseDir: t.TempDir(), ShardingEnabled: true}, nil)
			for i := 0; i < n; i++ {
				if _, err := store.Add("agent-1", "note about roadmap planning", []string{"work"}, 0.5, 0, "note", nil, nil); err != nil {
					return false
				}
			}
			// Unrelated entry, distinct text, to confirm dedup doesn't
			// over-collapse unrelated candidates.
			if _, err := store.Add("agent-1", "note about roadmap review", []string{"work"}, 0.5, 0, "note", nil, nil); err != nil {
				return false
			}

			entries, err := store.GetRelevant("agent-1", "roadmap", nil, n+5)
			if err != nil {
				return false
			}

			seen := make(map[string]struct{}, len(entries))
			for _, e := range entries {
				key := e.Text + "\x1f" + strings.Join(e.Tags(), "\x1f")
				if _, ok := seen[key]; ok {
					return false
				}
				seen[key] = struct{}{}
			}
			if n > 0 && len(seen) > 2 {
				return false // only two distinct (text, tags) pairs were ever added
			}
			return true
		},
		gen.IntRange(0, 12),
	))

	properties.TestingRun(t)
}
