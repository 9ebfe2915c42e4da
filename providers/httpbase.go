package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const perAttemptTimeout = 30 * time.Second

// httpAdapter is the shared skeleton for every HTTP-backed provider kind.
// Provider-specific request construction and body parsing are supplied as
// closures by the constructors in openaicompat.go (openai-compatible and
// openrouter), huggingface.go and ollama.go — this keeps the retry/timeout/health
// bookkeeping identical across providers, per §4.1's shared protocol.
type httpAdapter struct {
	name           string
	kind           Kind
	client         *http.Client
	limiter        *rate.Limiter
	state          *state
	hasCredentials bool

	buildRequest func(ctx context.Context, prompt string) (*http.Request, error)
	parseBody    func(body []byte, status int) (string, error)
}

func newHTTPAdapter(name string, kind Kind, hasCredentials bool) *httpAdapter {
	return &httpAdapter{
		name:           name,
		kind:           kind,
		client:         &http.Client{Timeout: perAttemptTimeout},
		limiter:        rate.NewLimiter(rate.Limit(5), 5), // 5 req/s, burst 5 per adapter
		state:          newState(),
		hasCredentials: hasCredentials,
	}
}

func (a *httpAdapter) Name() string          { return a.name }
func (a *httpAdapter) Health() HealthSnapshot { return a.state.snapshot() }

func (a *httpAdapter) Generate(ctx context.Context, prompt, sessionID string) Response {
	start := time.Now()

	if !a.hasCredentials {
		latency := timeSince(start)
		a.state.recordOutcome(latency, true)
		return Response{
			Model:          a.name,
			Content:        prompt + " - " + string(a.kind),
			LatencyMs:      latency,
			Error:          "missing_credentials",
			HealthSnapshot: a.state.snapshot(),
		}
	}

	result := retry(ctx, defaultBackoff(), func(ctx context.Context) attemptResult {
		return a.attempt(ctx, prompt)
	})

	latency := timeSince(start)
	resp := Response{Model: a.name, LatencyMs: latency}
	if result.err != nil {
		resp.Error = result.err.Error()
	} else {
		resp.Content = result.content
	}
	a.state.recordOutcome(latency, result.err != nil)
	resp.HealthSnapshot = a.state.snapshot()
	return resp
}

func (a *httpAdapter) attempt(ctx context.Context, prompt string) attemptResult {
	if err := a.limiter.Wait(ctx); err != nil {
		return attemptResult{err: err, retryable: false}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, perAttemptTimeout)
	defer cancel()

	req, err := a.buildRequest(attemptCtx, prompt)
	if err != nil {
		return attemptResult{err: fmt.Errorf("build request: %w", err), retryable: false}
	}

	resp, err := a.client.Do(req)
	if err != nil {
		// Distinguish the caller's own deadline (router-level cancellation,
		// §4.4) from this attempt's local 30s ceiling: only the former is
		// reported as "cancelled". ctx here is the caller-supplied context
		// threaded in by retry(), not the 30s-bounded attemptCtx.
		if ctx.Err() != nil {
			return attemptResult{err: errors.New("cancelled"), retryable: false}
		}
		return attemptResult{err: fmt.Errorf("transport error: %w", err), retryable: true}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return attemptResult{err: fmt.Errorf("read body: %w", err), retryable: true}
	}

	if resp.StatusCode >= 500 {
		return attemptResult{err: fmt.Errorf("upstream status %d: %s", resp.StatusCode, string(body)), retryable: true}
	}
	if resp.StatusCode >= 400 {
		return attemptResult{err: fmt.Errorf("upstream status %d: %s", resp.StatusCode, string(body)), retryable: false}
	}

	content, err := a.parseBody(body, resp.StatusCode)
	if err != nil {
		return attemptResult{err: fmt.Errorf("malformed response: %w", err), retryable: false}
	}
	return attemptResult{content: content}
}

func (a *httpAdapter) Probe(ctx context.Context) bool {
	if !a.hasCredentials {
		return false
	}
	resp := a.Generate(ctx, "ping", "probe")
	return !resp.Failed()
}
