package router

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raebu/RaeburnBrainMonorepo/providers"
	"github.com/Raebu/RaeburnBrainMonorepo/registry"
)

func zeroHealthResponse() providers.Response {
	return providers.Response{HealthSnapshot: providers.HealthSnapshot{HealthOK: true}}
}

func descriptorWithCost(cost float64) registry.Descriptor {
	return registry.Descriptor{Name: "priced", CostPer1K: cost}
}

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	descriptors := []registry.Descriptor{
		{
			Name:         "local-echo",
			Provider:     "local-echo",
			Capabilities: registry.Capabilities{RolesSupported: []string{"user"}},
		},
	}
	return registry.New(descriptors, registry.Credentials{}, nil)
}

func TestRoute_NeverEmpty(t *testing.T) {
	reg := newTestRegistry(t)
	responses, err := Route(context.Background(), reg, Request{Prompt: "hello"})
	require.NoError(t, err)
	assert.NotEmpty(t, responses)
}

func TestRoute_RejectsEmptyPrompt(t *testing.T) {
	reg := newTestRegistry(t)
	_, err := Route(context.Background(), reg, Request{Prompt: ""})
	assert.Error(t, err)
}

func TestRoute_RequireJSONAgainstEchoOnlyRegistryIsBadRequest(t *testing.T) {
	reg := newTestRegistry(t)
	_, err := Route(context.Background(), reg, Request{Prompt: "hello", RequireJSON: true})
	assert.Error(t, err)
}

func TestRoute_ParallelAndSequentialAgree(t *testing.T) {
	reg := newTestRegistry(t)
	seq, err := Route(context.Background(), reg, Request{Prompt: "hi", Parallel: false})
	require.NoError(t, err)
	par, err := Route(context.Background(), reg, Request{Prompt: "hi", Parallel: true})
	require.NoError(t, err)
	require.Len(t, seq, 1)
	require.Len(t, par, 1)
	assert.Equal(t, seq[0].Model, par[0].Model)
}

func TestRoute_PastDeadlineProducesCancelled(t *testing.T) {
	reg := newTestRegistry(t)
	past := time.Now().Add(-time.Hour)
	responses, err := Route(context.Background(), reg, Request{Prompt: "hi", Deadline: past})
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, "cancelled", responses[0].Error)
}

func TestRouteFirst_ReturnsHighestBiasedScore(t *testing.T) {
	reg := newTestRegistry(t)
	best, err := RouteFirst(context.Background(), reg, Request{Prompt: "hello world"})
	require.NoError(t, err)
	assert.Equal(t, "local-echo", best.Model)
}

func TestApplyBias_PreferForRaisesScore(t *testing.T) {
	plain := registry.Descriptor{}
	preferred := registry.Descriptor{RouterBias: registry.RouterBias{PreferFor: []string{"summarize"}}}

	base := 0.5
	resp := zeroHealthResponse()
	plainScore := applyBias(base, plain, "summarize", resp)
	preferredScore := applyBias(base, preferred, "summarize", resp)
	assert.Greater(t, preferredScore, plainScore)
}

func TestApplyBias_UnhealthyLowersScore(t *testing.T) {
	d := registry.Descriptor{}
	healthy := zeroHealthResponse()
	healthy.HealthSnapshot.HealthOK = true

	unhealthy := zeroHealthResponse()
	unhealthy.HealthSnapshot.HealthOK = false

	assert.Greater(t, applyBias(0.5, d, "", healthy), applyBias(0.5, d, "", unhealthy))
}
