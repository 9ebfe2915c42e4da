package providers

import (
	"context"
)

// LocalEcho is the zero-latency fallback adapter guaranteed to be
// selectable: it never fails and requires no credentials, which is why
// Registry.Choose falls back to it when every other candidate is filtered
// out.
type LocalEcho struct {
	name  string
	state *state
}

// NewLocalEcho builds the deterministic echo adapter for the given model
// name.
func NewLocalEcho(name string) *LocalEcho {
	return &LocalEcho{name: name, state: newState()}
}

func (a *LocalEcho) Name() string { return a.name }

func (a *LocalEcho) Generate(ctx context.Context, prompt, sessionID string) Response {
	content := prompt + " [local:" + a.name + "]"
	a.state.recordOutcome(0, false)
	return Response{Model: a.name, Content: content, LatencyMs: 0, HealthSnapshot: a.state.snapshot()}
}

func (a *LocalEcho) Probe(ctx context.Context) bool { return true }

func (a *LocalEcho) Health() HealthSnapshot { return a.state.snapshot() }
