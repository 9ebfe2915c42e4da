// Package config loads the environment-driven settings of §6: registry and
// memory paths, score weights, the judge backend, router timeout, and the
// orchestrator mode.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Raebu/RaeburnBrainMonorepo/orchestrator"
	"github.com/Raebu/RaeburnBrainMonorepo/scorer"
)

// JudgeBackend and its two values are orchestrator.JudgeBackend re-exported
// under their §6 names, matching the existing orchestrator.Mode pattern
// below — config depends on orchestrator, not the other way round.
type JudgeBackend = orchestrator.JudgeBackend

const (
	JudgeRule  = orchestrator.JudgeRule
	JudgeModel = orchestrator.JudgeModel
)

// Config is the fully resolved runtime configuration.
type Config struct {
	ConfigDir        string
	MemoryDir        string
	ScoreWeights     scorer.Weights
	JudgeBackend     JudgeBackend
	RouterTimeout    time.Duration
	OrchestratorMode orchestrator.Mode

	// ParallelEnabled mirrors RAEBURN_ORCHESTRATOR_PARALLEL from the
	// original orchestrator: forces parallel candidate dispatch
	// regardless of task priority (§4.7 step 5).
	ParallelEnabled bool
}

// defaultConfigDir and defaultMemoryDir mirror §6's documented fallbacks
// relative to the repository root.
const (
	defaultConfigDir = "config"
	defaultMemoryDir = "memory_data"
)

// Load reads the recognized environment variables, applying the documented
// defaults for anything unset.
func Load() (Config, error) {
	cfg := Config{
		ConfigDir:        envOr("RAEBURN_CONFIG_DIR", defaultConfigDir),
		MemoryDir:        envOr("RAEBURN_MEMORY_DIR", defaultMemoryDir),
		ScoreWeights:     scorer.DefaultWeights(),
		JudgeBackend:     JudgeRule,
		RouterTimeout:    30 * time.Second,
		OrchestratorMode: orchestrator.ModeProd,
	}

	if raw := os.Getenv("RAEBURN_SCORE_WEIGHTS"); raw != "" {
		w, err := parseWeights(raw)
		if err != nil {
			return Config{}, fmt.Errorf("RAEBURN_SCORE_WEIGHTS: %w", err)
		}
		cfg.ScoreWeights = w
	}

	if raw := os.Getenv("RAEBURN_JUDGE_BACKEND"); raw != "" {
		switch JudgeBackend(raw) {
		case JudgeRule, JudgeModel:
			cfg.JudgeBackend = JudgeBackend(raw)
		default:
			return Config{}, fmt.Errorf("RAEBURN_JUDGE_BACKEND: unrecognized value %q", raw)
		}
	}

	if raw := os.Getenv("RAEBURN_ROUTER_TIMEOUT"); raw != "" {
		secs, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Config{}, fmt.Errorf("RAEBURN_ROUTER_TIMEOUT: %w", err)
		}
		cfg.RouterTimeout = time.Duration(secs * float64(time.Second))
	}

	if raw := os.Getenv("RAEBURN_ORCHESTRATOR_MODE"); raw != "" {
		switch orchestrator.Mode(raw) {
		case orchestrator.ModeProd, orchestrator.ModeDryRun, orchestrator.ModeTest:
			cfg.OrchestratorMode = orchestrator.Mode(raw)
		default:
			return Config{}, fmt.Errorf("RAEBURN_ORCHESTRATOR_MODE: unrecognized value %q", raw)
		}
	}

	cfg.ParallelEnabled = envTruthy("RAEBURN_ORCHESTRATOR_PARALLEL")

	return cfg, nil
}

// envTruthy mirrors the original orchestrator's
// `os.getenv(key, "0").lower() in ("1", "true", "yes")` parse.
func envTruthy(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parseWeights accepts either a CSV quad "length,match,similarity,latency"
// or a JSON object {"length":...,"match":...,"similarity":...,"latency":...}
// per §6's documented RAEBURN_SCORE_WEIGHTS shape.
func parseWeights(raw string) (scorer.Weights, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") {
		return parseWeightsJSON(trimmed)
	}
	parts := strings.Split(trimmed, ",")
	if len(parts) != 4 {
		return scorer.Weights{}, fmt.Errorf("expected 4 comma-separated values, got %d", len(parts))
	}
	values := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return scorer.Weights{}, fmt.Errorf("value %d: %w", i, err)
		}
		values[i] = v
	}
	return scorer.Weights{Length: values[0], Match: values[1], Similarity: values[2], Latency: values[3]}, nil
}
