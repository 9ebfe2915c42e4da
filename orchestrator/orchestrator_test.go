package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raebu/RaeburnBrainMonorepo/memory"
	"github.com/Raebu/RaeburnBrainMonorepo/providers"
	"github.com/Raebu/RaeburnBrainMonorepo/registry"
	"github.com/Raebu/RaeburnBrainMonorepo/router"
)

func newRunnableOrchestrator(t *testing.T, mode Mode) (*Orchestrator, Store) {
	t.Helper()
	descriptors := []registry.Descriptor{{
		Name:         "local-echo",
		Provider:     providers.KindLocalEcho,
		Capabilities: registry.Capabilities{RolesSupported: []string{"user"}},
	}}
	reg := registry.New(descriptors, registry.Credentials{}, nil)
	store := memory.New(memory.Config{BaseDir: t.TempDir(), ShardingEnabled: true}, nil)
	return New(reg, store, nil, mode, nil), store
}

func TestRun_ProdModeRecordsQualityAndInteraction(t *testing.T) {
	o, store := newRunnableOrchestrator(t, ModeProd)
	result, err := o.Run(context.Background(), Task{UserInput: "summarize this"})
	require.NoError(t, err)

	assert.Equal(t, "generalist", result.Agent)
	assert.Equal(t, 1, result.Priority)
	assert.NotEmpty(t, result.SessionID)
	assert.Equal(t, "local-echo", result.ModelUsed)

	quality, err := store.ByTag("generalist", "quality", 10)
	require.NoError(t, err)
	assert.Len(t, quality, 1)

	all, err := store.Get("generalist", 10, false)
	require.NoError(t, err)
	assert.Len(t, all, 2) // quality record + interaction record
}

func TestRun_DryRunSkipsInteractionWrite(t *testing.T) {
	o, store := newRunnableOrchestrator(t, ModeDryRun)
	_, err := o.Run(context.Background(), Task{UserInput: "x", Priority: 1})
	require.NoError(t, err)

	all, err := store.Get("generalist", 10, false)
	require.NoError(t, err)
	assert.Len(t, all, 1) // quality record only
}

func TestRun_DefaultsAgentRoleAndPriority(t *testing.T) {
	o, _ := newRunnableOrchestrator(t, ModeTest)
	result, err := o.Run(context.Background(), Task{UserInput: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "generalist", result.Agent)
	assert.Equal(t, 1, result.Priority)
}

func TestJudge_RuleBackendAcceptsRouterRanking(t *testing.T) {
	o, _ := newRunnableOrchestrator(t, ModeTest)
	responses := []router.RoutedResponse{{Model: "top"}, {Model: "second"}}
	winner := o.judge(context.Background(), "prompt", "sess", responses)
	assert.Equal(t, "top", winner.Model)
}

func TestJudge_ModelBackendAsksRouterForANumberedCandidate(t *testing.T) {
	o, _ := newRunnableOrchestrator(t, ModeTest)
	o.JudgeBackend = JudgeModel
	responses := []router.RoutedResponse{{Model: "top"}, {Model: "second"}}

	winner := o.judge(context.Background(), "summarize this", "sess", responses)
	// local-echo (the only registered candidate) echoes the judge prompt
	// verbatim, so the first digit it contains is always "1" from the
	// "1. <candidate>" enumeration line: the model judge deterministically
	// selects the first-ranked candidate here, same as the rule backend
	// would, but via the model dispatch path.
	assert.Equal(t, "top", winner.Model)
}

func TestJudge_ModelBackendFallsBackToTopRankedOnSingleCandidate(t *testing.T) {
	o, _ := newRunnableOrchestrator(t, ModeTest)
	o.JudgeBackend = JudgeModel
	responses := []router.RoutedResponse{{Model: "only"}}
	winner := o.judge(context.Background(), "prompt", "sess", responses)
	assert.Equal(t, "only", winner.Model)
}

func TestBuildPrompt_OrdersSystemPromptUserAndStyle(t *testing.T) {
	p := Persona{SystemPrompt: "You are terse.", PromptStyle: "bullet points"}
	prompt := buildPrompt(p, "explain gravity", "explain gravity")
	assert.Equal(t, "You are terse.\n\nUser: explain gravity\n\nStyle: bullet points", prompt)
}
