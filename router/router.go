// Package router implements C4: it asks the registry for a candidate set,
// dispatches generation against each candidate (in parallel or in sequence),
// scores every response, applies the §4.4 bias multiplier table, and returns
// candidates ordered best-first. Route never returns an empty slice.
package router

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Raebu/RaeburnBrainMonorepo/internal/raeberr"
	"github.com/Raebu/RaeburnBrainMonorepo/providers"
	"github.com/Raebu/RaeburnBrainMonorepo/registry"
	"github.com/Raebu/RaeburnBrainMonorepo/scorer"
)

// Request is one routing request.
type Request struct {
	Prompt           string
	SessionID        string
	Parallel         bool
	Limit            int
	Task             string
	RequireJSON      bool
	RequireStreaming bool
	RequiredRoles    []string
	Weights          scorer.Weights // zero value normalizes to DefaultWeights

	// Deadline, if non-zero, bounds the whole dispatch. Candidates still
	// in flight when it passes are reported with error "cancelled".
	Deadline time.Time
}

// RoutedResponse is one candidate's outcome, ordered best-first in the
// slice Route returns.
type RoutedResponse struct {
	Model       string
	Content     string
	LatencyMs   float64
	Error       string
	Score       float64 // raw hybrid score, before bias
	BiasedScore float64
	Provider    providers.Response
}

func (r RoutedResponse) Failed() bool { return r.Error != "" }

// Route implements §4.4: select, dispatch, score, bias, sort. The returned
// slice is never empty.
func Route(ctx context.Context, reg *registry.Registry, req Request) ([]RoutedResponse, error) {
	if req.Prompt == "" {
		return nil, raeberr.Bad("empty prompt")
	}

	candidates := reg.Choose(registry.ChooseOptions{
		Limit:            req.Limit,
		Task:             req.Task,
		RequireJSON:      req.RequireJSON,
		RequireStreaming: req.RequireStreaming,
		RequiredRoles:    req.RequiredRoles,
	})

	// Open question (§9): require_json against a registry that can only
	// offer the local-echo fallback — which never speaks JSON — is
	// rejected outright rather than silently served a non-JSON response.
	if req.RequireJSON && len(candidates) == 1 &&
		candidates[0].Descriptor.Provider == providers.KindLocalEcho &&
		!candidates[0].Descriptor.Capabilities.JSONMode {
		return nil, raeberr.Bad("no candidate satisfies require_json")
	}

	if !req.Deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, req.Deadline)
		defer cancel()
	}

	responses := dispatch(ctx, candidates, req)

	for i := range responses {
		raw := responses[i].Provider
		base := scorer.Hybrid(req.Prompt, raw.Content, raw.Failed(), raw.LatencyMs, req.Weights)
		responses[i].Score = base
		responses[i].BiasedScore = applyBias(base, candidates[i].Descriptor, req.Task, raw)
	}

	sort.SliceStable(responses, func(i, j int) bool {
		return responses[i].BiasedScore > responses[j].BiasedScore
	})

	return responses, nil
}

// RouteFirst returns only the best-ranked response.
func RouteFirst(ctx context.Context, reg *registry.Registry, req Request) (RoutedResponse, error) {
	responses, err := Route(ctx, reg, req)
	if err != nil {
		return RoutedResponse{}, err
	}
	return responses[0], nil
}

// dispatch issues Generate against every candidate, preserving candidate
// order in the returned slice regardless of completion order.
func dispatch(ctx context.Context, candidates []registry.Candidate, req Request) []RoutedResponse {
	out := make([]RoutedResponse, len(candidates))

	runOne := func(i int) {
		c := candidates[i]
		if ctx.Err() != nil {
			out[i] = cancelled(c)
			return
		}
		resp := c.Adapter.Generate(ctx, req.Prompt, req.SessionID)
		if resp.Error == "" && ctx.Err() != nil {
			// The deadline passed while this candidate's own retries were
			// still resolving internally; report the dispatch as cancelled
			// rather than surface a stale success.
			out[i] = cancelled(c)
			return
		}
		out[i] = RoutedResponse{
			Model:     resp.Model,
			Content:   resp.Content,
			LatencyMs: resp.LatencyMs,
			Error:     resp.Error,
			Provider:  resp,
		}
	}

	if !req.Parallel {
		for i := range candidates {
			runOne(i)
		}
		return out
	}

	var wg sync.WaitGroup
	wg.Add(len(candidates))
	for i := range candidates {
		i := i
		go func() {
			defer wg.Done()
			runOne(i)
		}()
	}
	wg.Wait()
	return out
}

func cancelled(c registry.Candidate) RoutedResponse {
	return RoutedResponse{
		Model: c.Descriptor.Name,
		Error: "cancelled",
		Provider: providers.Response{
			Model: c.Descriptor.Name,
			Error: "cancelled",
		},
	}
}

// applyBias implements §4.4's multiplier table over the base hybrid score.
func applyBias(base float64, d registry.Descriptor, task string, resp providers.Response) float64 {
	score := base

	if task != "" {
		if containsTag(d.RouterBias.PreferFor, task) {
			score *= 1.20
		}
		if containsTag(d.RouterBias.AvoidFor, task) {
			score *= 0.70
		}
		if containsTag(d.Strengths, task) {
			score *= 1.15
		}
		if containsTag(d.Weaknesses, task) {
			score *= 0.85
		}
	}

	score *= 1.0 / (1.0 + maxFloat(d.CostPer1K, 0))
	score *= 1.0 + minFloat(d.SpeedTPS, 100)/1000.0

	if resp.HealthSnapshot.FailureCount > 0 {
		score *= maxFloat(0.2, 1.0-0.1*float64(resp.HealthSnapshot.FailureCount))
	}
	if !resp.HealthSnapshot.HealthOK {
		score *= 0.80
	}
	if d.LastPassedHealth == "" {
		score *= 0.90
	}

	return score
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func containsTag(set []string, tag string) bool {
	for _, t := range set {
		if t == tag {
			return true
		}
	}
	return false
}
