// Package injector implements C6: it augments a prompt with relevant
// memory entries fetched from the store, or passes the prompt through
// unchanged when nothing relevant is found.
package injector

import (
	"strings"

	"github.com/Raebu/RaeburnBrainMonorepo/memory"
)

// Store is the subset of *memory.Store the injector depends on.
type Store interface {
	GetRelevant(agent, query string, tags []string, limit int) ([]memory.Entry, error)
}

// Inject implements §4.6: fetch relevant context, de-duplicate by
// (text, tag-tuple) retaining the most recent, and render the literal
// "Context:\n- ...\n\nPrompt: ..." form. Returns prompt unchanged if the
// store has nothing relevant.
func Inject(store Store, agent, prompt string, tags []string, limit int) (string, error) {
	entries, err := store.GetRelevant(agent, prompt, tags, limit)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return prompt, nil
	}

	entries = dedupeByTextAndTags(entries)

	var b strings.Builder
	b.WriteString("Context:\n")
	for _, e := range entries {
		b.WriteString("- ")
		b.WriteString(e.Text)
		b.WriteString("\n")
	}
	b.WriteString("\nPrompt: ")
	b.WriteString(prompt)
	return b.String(), nil
}

// dedupeByTextAndTags keeps the most recent entry for each distinct
// (text, tag-tuple) pair while preserving the incoming ranking order of
// the first-seen (best-ranked) occurrence of each key.
func dedupeByTextAndTags(entries []memory.Entry) []memory.Entry {
	type key struct {
		text string
		tags string
	}
	seen := make(map[key]int) // key -> index in out
	var out []memory.Entry
	for _, e := range entries {
		k := key{text: e.Text, tags: strings.Join(e.Tags(), "\x1f")}
		if idx, ok := seen[k]; ok {
			if e.CreatedAt.After(out[idx].CreatedAt) {
				out[idx] = e
			}
			continue
		}
		seen[k] = len(out)
		out = append(out, e)
	}
	return out
}
