package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raebu/RaeburnBrainMonorepo/orchestrator"
	"github.com/Raebu/RaeburnBrainMonorepo/scorer"
)

func TestLoad_DefaultsWhenUnset(t *testing.T) {
	for _, k := range []string{
		"RAEBURN_CONFIG_DIR", "RAEBURN_MEMORY_DIR", "RAEBURN_SCORE_WEIGHTS",
		"RAEBURN_JUDGE_BACKEND", "RAEBURN_ROUTER_TIMEOUT", "RAEBURN_ORCHESTRATOR_MODE",
	} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, defaultConfigDir, cfg.ConfigDir)
	assert.Equal(t, defaultMemoryDir, cfg.MemoryDir)
	assert.Equal(t, scorer.DefaultWeights(), cfg.ScoreWeights)
	assert.Equal(t, JudgeRule, cfg.JudgeBackend)
	assert.Equal(t, orchestrator.ModeProd, cfg.OrchestratorMode)
}

func TestLoad_ParsesCSVWeights(t *testing.T) {
	t.Setenv("RAEBURN_SCORE_WEIGHTS", "0.1,0.2,0.3,0.4")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, scorer.Weights{Length: 0.1, Match: 0.2, Similarity: 0.3, Latency: 0.4}, cfg.ScoreWeights)
}

func TestLoad_ParsesJSONWeights(t *testing.T) {
	t.Setenv("RAEBURN_SCORE_WEIGHTS", `{"length":0.1,"match":0.2,"similarity":0.3,"latency":0.4}`)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, scorer.Weights{Length: 0.1, Match: 0.2, Similarity: 0.3, Latency: 0.4}, cfg.ScoreWeights)
}

func TestLoad_RejectsUnrecognizedMode(t *testing.T) {
	t.Setenv("RAEBURN_ORCHESTRATOR_MODE", "bogus")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_ParallelEnabledDefaultsFalseAndParsesTruthyStrings(t *testing.T) {
	t.Setenv("RAEBURN_ORCHESTRATOR_PARALLEL", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.ParallelEnabled)

	for _, truthy := range []string{"1", "true", "True", "yes", "YES"} {
		t.Setenv("RAEBURN_ORCHESTRATOR_PARALLEL", truthy)
		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.ParallelEnabled, "expected %q to parse as enabled", truthy)
	}

	t.Setenv("RAEBURN_ORCHESTRATOR_PARALLEL", "0")
	cfg, err = Load()
	require.NoError(t, err)
	assert.False(t, cfg.ParallelEnabled)
}
