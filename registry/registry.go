package registry

import (
	"net/url"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/Raebu/RaeburnBrainMonorepo/providers"
)

// Credentials holds the environment-sourced secrets and endpoints
// recognized by §6's environment variable table.
type Credentials struct {
	OpenAIAPIKey     string
	OpenAIAPIBase    string
	OpenRouterAPIKey string
	HFAPIToken       string
	OllamaURL        string
}

// CredentialsFromEnv reads the recognized environment variables.
func CredentialsFromEnv() Credentials {
	return Credentials{
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIAPIBase:    os.Getenv("OPENAI_API_BASE"),
		OpenRouterAPIKey: os.Getenv("OPENROUTER_API_KEY"),
		HFAPIToken:       os.Getenv("HF_API_TOKEN"),
		OllamaURL:        os.Getenv("OLLAMA_URL"),
	}
}

// ChooseOptions parameterizes Registry.Choose, mirroring §4.2's selection
// signature.
type ChooseOptions struct {
	Limit             int
	Task              string
	RequireJSON       bool
	RequireStreaming  bool
	RequiredRoles     []string
}

// Registry owns descriptors and their adapter instances, and performs
// capability/health-gated selection.
type Registry struct {
	mu          sync.RWMutex
	descriptors []Descriptor
	adapters    map[string]providers.Adapter // keyed by descriptor name, built lazily
	creds       Credentials
	logger      *zap.Logger
}

// New constructs a Registry from an already-loaded descriptor set.
func New(descriptors []Descriptor, creds Credentials, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		descriptors: descriptors,
		adapters:    make(map[string]providers.Adapter),
		creds:       creds,
		logger:      logger.With(zap.String("component", "registry")),
	}
}

// Descriptors returns the full loaded descriptor set (for inspection/tests).
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// adapterFor returns the cached Adapter for d, constructing it on first use.
// Construction is the only writer to the adapter map; reads after that are
// effectively lock-free aside from the map guard itself (§5).
func (r *Registry) adapterFor(d Descriptor) providers.Adapter {
	r.mu.RLock()
	a, ok := r.adapters[d.Name]
	r.mu.RUnlock()
	if ok {
		return a
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.adapters[d.Name]; ok {
		return a
	}
	a = r.build(d)
	r.adapters[d.Name] = a
	return a
}

func (r *Registry) build(d Descriptor) providers.Adapter {
	switch d.Provider {
	case providers.KindOpenAICompatible:
		base := d.Endpoint
		if base == "" {
			base = r.creds.OpenAIAPIBase
		}
		return providers.NewOpenAICompatible(providers.OpenAICompatOptions{
			ModelName: d.Name, ModelID: d.ModelID, APIKey: r.creds.OpenAIAPIKey, BaseURL: base,
		})
	case providers.KindOpenRouter:
		return providers.NewOpenRouter(providers.OpenAICompatOptions{
			ModelName: d.Name, ModelID: d.ModelID, APIKey: r.creds.OpenRouterAPIKey,
			Referer: "https://raeburn.local", Title: "raeburn-router",
		})
	case providers.KindHuggingFace:
		return providers.NewHuggingFace(providers.HuggingFaceOptions{
			ModelName: d.Name, ModelID: d.ModelID, APIToken: r.creds.HFAPIToken,
		})
	case providers.KindOllama:
		base := d.Endpoint
		if base == "" {
			base = r.creds.OllamaURL
		}
		return providers.NewOllama(providers.OllamaOptions{ModelName: d.Name, ModelID: d.ModelID, BaseURL: base})
	default:
		return providers.NewLocalEcho(d.Name)
	}
}

// Choose implements §4.2's filtered, ordered selection, returning the
// adapters (paired with their descriptors) a Router dispatch should use.
// It never returns empty: if every descriptor is filtered out, the
// guaranteed local-echo fallback is returned.
func (r *Registry) Choose(opts ChooseOptions) []Candidate {
	r.mu.RLock()
	descriptors := make([]Descriptor, len(r.descriptors))
	copy(descriptors, r.descriptors)
	r.mu.RUnlock()

	var result []Candidate
	for _, d := range descriptors {
		if opts.Task != "" && d.hasTag(d.ForbiddenTasks, opts.Task) {
			continue
		}

		adapter := r.adapterFor(d)
		health := adapter.Health()

		if d.AutoDisableThreshold != nil && health.FailureCount >= *d.AutoDisableThreshold {
			continue
		}
		if opts.RequireJSON && !d.Capabilities.JSONMode {
			continue
		}
		if opts.RequireStreaming && !d.Capabilities.Streaming {
			continue
		}
		if len(opts.RequiredRoles) > 0 && !hasSubset(opts.RequiredRoles, d.Capabilities.RolesSupported) {
			continue
		}
		if len(d.AllowedHosts) > 0 && !hostAllowed(d) {
			continue
		}

		result = append(result, Candidate{Descriptor: d, Adapter: adapter})
		if opts.Limit > 0 && len(result) >= opts.Limit {
			break
		}
	}

	if len(result) == 0 {
		return []Candidate{r.fallback()}
	}
	return result
}

// fallback returns the guaranteed local-echo candidate, building one from
// scratch if no local-echo descriptor was loaded.
func (r *Registry) fallback() Candidate {
	for _, d := range r.descriptors {
		if d.Provider == providers.KindLocalEcho {
			return Candidate{Descriptor: d, Adapter: r.adapterFor(d)}
		}
	}
	d := syntheticLocalEcho()
	return Candidate{Descriptor: d, Adapter: providers.NewLocalEcho(d.Name)}
}

func hostAllowed(d Descriptor) bool {
	if d.Endpoint == "" {
		// No endpoint configured yet: can't evaluate the host restriction,
		// fail closed since the descriptor explicitly scoped allowed_hosts.
		return false
	}
	u, err := url.Parse(d.Endpoint)
	if err != nil {
		return false
	}
	for _, h := range d.AllowedHosts {
		if u.Hostname() == h {
			return true
		}
	}
	return false
}

// Candidate pairs a descriptor with its live adapter for downstream bias
// scoring in the Router.
type Candidate struct {
	Descriptor Descriptor
	Adapter    providers.Adapter
}
