// Package orchestrator implements C7: it resolves an agent persona,
// augments the prompt with injected context, dispatches through the
// router, and records the outcome to the memory store.
package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Raebu/RaeburnBrainMonorepo/injector"
	"github.com/Raebu/RaeburnBrainMonorepo/internal/raeberr"
	"github.com/Raebu/RaeburnBrainMonorepo/registry"
	"github.com/Raebu/RaeburnBrainMonorepo/router"
	"github.com/Raebu/RaeburnBrainMonorepo/scorer"
)

// JudgeBackend selects how the winning candidate among a routed response
// set is chosen (§6, RAEBURN_JUDGE_BACKEND). JudgeRule accepts the router's
// own rule-based hybrid-score ranking; JudgeModel asks the router itself,
// as an LLM judge, which numbered candidate is best.
type JudgeBackend string

const (
	JudgeRule  JudgeBackend = "rule"
	JudgeModel JudgeBackend = "model"
)

// Mode selects whether a run persists its interaction memory.
type Mode string

const (
	ModeProd   Mode = "prod"
	ModeDryRun Mode = "dry-run"
	ModeTest   Mode = "test"
)

// Persona is the resolved agent persona. Persona resolution is an
// external collaborator (§4.7 step 2 is out of core scope) — callers
// supply a PersonaResolver; DefaultPersonaResolver is a minimal stand-in.
type Persona struct {
	Role         string
	SystemPrompt string
	PromptStyle  string
}

type PersonaResolver interface {
	Resolve(role string) Persona
}

// DefaultPersonaResolver returns a bare persona carrying only the role,
// with no system prompt or style suffix.
type DefaultPersonaResolver struct{}

func (DefaultPersonaResolver) Resolve(role string) Persona { return Persona{Role: role} }

// Task is one orchestration request (§4.7).
type Task struct {
	UserInput string
	AgentRole string // default "generalist"
	Priority  int    // default 1
}

// Result is the orchestration outcome (§4.7 step 9).
type Result struct {
	Result     string
	ModelUsed  string
	Score      float64
	Agent      string
	SessionID  string
	Mode       Mode
	DurationMs float64
	Priority   int
}

// Store is the subset of *memory.Store the orchestrator needs.
type Store interface {
	injector.Store
	Add(agent, text string, tags []string, importance float64, ttl time.Duration, source string, metadata map[string]any, blob []byte) (string, error)
}

// Orchestrator wires C2-C6 together into the single run() entry point.
type Orchestrator struct {
	Registry        *registry.Registry
	Store           Store
	Personas        PersonaResolver
	Mode            Mode
	ParallelEnabled bool // env-enabled override for §4.7 step 5
	Weights         scorer.Weights
	JudgeBackend    JudgeBackend // defaults to JudgeRule when unset
	InjectLimit     int
	Logger          *zap.Logger
}

// New constructs an Orchestrator with sane defaults for unset fields.
func New(reg *registry.Registry, store Store, personas PersonaResolver, mode Mode, logger *zap.Logger) *Orchestrator {
	if personas == nil {
		personas = DefaultPersonaResolver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		Registry:    reg,
		Store:       store,
		Personas:    personas,
		Mode:        mode,
		InjectLimit: 5,
		Logger:      logger.With(zap.String("component", "orchestrator")),
	}
}

// Run implements §4.7's run(task) -> result.
func (o *Orchestrator) Run(ctx context.Context, task Task) (Result, error) {
	start := time.Now()
	if task.AgentRole == "" {
		task.AgentRole = "generalist"
	}
	if task.Priority == 0 {
		task.Priority = 1
	}

	sessionID, err := newSessionID()
	if err != nil {
		return Result{}, raeberr.Pipeline("session_id", err)
	}

	persona := o.Personas.Resolve(task.AgentRole)

	augmented, err := injector.Inject(o.Store, task.AgentRole, task.UserInput, nil, o.injectLimit())
	if err != nil {
		return Result{}, raeberr.Pipeline("inject", err)
	}

	prompt := buildPrompt(persona, task.UserInput, augmented)

	parallel := task.Priority > 1 || o.ParallelEnabled
	responses, err := router.Route(ctx, o.Registry, router.Request{
		Prompt:    prompt,
		SessionID: sessionID,
		Parallel:  parallel,
		Weights:   o.Weights,
	})
	if err != nil {
		return Result{}, raeberr.Pipeline("route", err)
	}

	winner := o.judge(ctx, prompt, sessionID, responses)
	now := time.Now()

	if _, err := o.Store.Add(task.AgentRole, "quality: "+winner.Model, []string{"quality"}, 0, 0, "orchestrator",
		map[string]any{
			"model":      winner.Model,
			"score":      winner.BiasedScore,
			"session_id": sessionID,
			"timestamp":  now.Format(time.RFC3339),
		}, nil); err != nil {
		return Result{}, raeberr.Pipeline("quality_write", err)
	}

	if o.Mode != ModeDryRun {
		if _, err := o.Store.Add(task.AgentRole, winner.Content, nil, 0, 0, "orchestrator",
			map[string]any{
				"kind":        "interaction",
				"session_id":  sessionID,
				"user_input":  task.UserInput,
				"agent_role":  task.AgentRole,
				"priority":    task.Priority,
				"chosen_model": winner.Model,
				"score":       winner.BiasedScore,
				"duration_ms": float64(time.Since(start).Milliseconds()),
				"mode":        string(o.Mode),
			}, nil); err != nil {
			return Result{}, raeberr.Pipeline("interaction_write", err)
		}
	}

	return Result{
		Result:     winner.Content,
		ModelUsed:  winner.Model,
		Score:      winner.BiasedScore,
		Agent:      task.AgentRole,
		SessionID:  sessionID,
		Mode:       o.Mode,
		DurationMs: float64(time.Since(start).Milliseconds()),
		Priority:   task.Priority,
	}, nil
}

var judgeIndexPattern = regexp.MustCompile(`\d+`)

// judge picks the winning response out of responses, which router.Route has
// already ranked best-first by rule-based hybrid score. JudgeRule (the
// default) simply accepts that ranking. JudgeModel instead asks the router
// itself, as an LLM judge, to pick the best numbered candidate — mirroring
// _model_judge's prompt-and-extract dispatch: on any failure to produce a
// parseable, in-range index it falls back to responses[0], same as the
// rule-based winner.
func (o *Orchestrator) judge(ctx context.Context, prompt, sessionID string, responses []router.RoutedResponse) router.RoutedResponse {
	if o.JudgeBackend != JudgeModel || len(responses) < 2 {
		return responses[0]
	}

	judgePrompt := buildJudgePrompt(prompt, responses)
	verdict, err := router.RouteFirst(ctx, o.Registry, router.Request{
		Prompt:    judgePrompt,
		SessionID: sessionID + "-judge",
		Weights:   o.Weights,
	})
	if err != nil || verdict.Failed() {
		return responses[0]
	}

	match := judgeIndexPattern.FindString(verdict.Content)
	idx, err := strconv.Atoi(match)
	if err != nil || idx < 1 || idx > len(responses) {
		return responses[0]
	}
	return responses[idx-1]
}

// buildJudgePrompt enumerates each candidate's content 1-based and asks the
// judge model to name the best one by number.
func buildJudgePrompt(prompt string, responses []router.RoutedResponse) string {
	var b strings.Builder
	b.WriteString("A user asked:\n")
	b.WriteString(prompt)
	b.WriteString("\n\nHere are the candidate answers:\n")
	for i, r := range responses {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r.Content)
	}
	b.WriteString("\nRespond with only the number of the best answer.")
	return b.String()
}

func (o *Orchestrator) injectLimit() int {
	if o.InjectLimit > 0 {
		return o.InjectLimit
	}
	return 5
}

// buildPrompt implements §4.7 step 4's construction order: system prompt
// first (if any), then "User: <input>", then the injected context block,
// then a "Style:" suffix (if any).
func buildPrompt(p Persona, userInput, augmented string) string {
	var b strings.Builder
	if p.SystemPrompt != "" {
		b.WriteString(p.SystemPrompt)
		b.WriteString("\n\n")
	}
	b.WriteString("User: ")
	b.WriteString(userInput)
	if augmented != userInput {
		b.WriteString("\n\n")
		b.WriteString(augmented)
	}
	if p.PromptStyle != "" {
		b.WriteString("\n\nStyle: ")
		b.WriteString(p.PromptStyle)
	}
	return b.String()
}

func newSessionID() (string, error) {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	if len(raw) < 8 {
		return "", fmt.Errorf("unexpected uuid length")
	}
	return "sess_" + raw[:8], nil
}
