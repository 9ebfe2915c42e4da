package injector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raebu/RaeburnBrainMonorepo/memory"
)

type fakeStore struct {
	entries []memory.Entry
}

func (f fakeStore) GetRelevant(agent, query string, tags []string, limit int) ([]memory.Entry, error) {
	return f.entries, nil
}

func TestInject_PassesThroughWhenEmpty(t *testing.T) {
	out, err := Inject(fakeStore{}, "alice", "what's the plan?", nil, 5)
	require.NoError(t, err)
	assert.Equal(t, "what's the plan?", out)
}

func TestInject_RendersLiteralContextBlock(t *testing.T) {
	store := fakeStore{entries: []memory.Entry{
		{Text: "likes dark roast coffee"},
		{Text: "works on the infra team"},
	}}
	out, err := Inject(store, "alice", "what should I brew?", nil, 5)
	require.NoError(t, err)
	assert.Equal(t, "Context:\n- likes dark roast coffee\n- works on the infra team\n\nPrompt: what should I brew?", out)
}

func TestInject_DeduplicatesKeepingMostRecent(t *testing.T) {
	older := memory.Entry{Text: "same text", CreatedAt: time.Now().Add(-time.Hour)}
	newer := memory.Entry{Text: "same text", CreatedAt: time.Now()}
	store := fakeStore{entries: []memory.Entry{older, newer}}

	out, err := Inject(store, "alice", "prompt", nil, 5)
	require.NoError(t, err)
	assert.Equal(t, "Context:\n- same text\n\nPrompt: prompt", out)
}
