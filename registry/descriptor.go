// Package registry implements C2, the Model Registry: it loads provider
// descriptors from configuration, instantiates one Adapter per model, and
// filters adapters by capability and health on selection.
package registry

import (
	"github.com/Raebu/RaeburnBrainMonorepo/providers"
)

// Capabilities mirrors §3's capability record.
type Capabilities struct {
	Streaming      bool     `json:"streaming"`
	JSONMode       bool     `json:"json_mode"`
	Multimodal     bool     `json:"multimodal"`
	RolesSupported []string `json:"roles_supported"`
	MaxContext     *int     `json:"max_context,omitempty"`
}

// RouterBias mirrors §3's two tag sets attached to a descriptor.
type RouterBias struct {
	PreferFor []string `json:"prefer_for"`
	AvoidFor  []string `json:"avoid_for"`
}

// Descriptor is the immutable-once-loaded Model Descriptor of §3.
type Descriptor struct {
	Name                   string
	Provider               providers.Kind
	CostPer1K              float64
	SpeedTPS               float64
	Strengths              []string
	Weaknesses             []string
	ForbiddenTasks         []string
	RouterBias             RouterBias
	AutoDisableThreshold   *int
	LastPassedHealth       string
	Capabilities           Capabilities
	AllowedHosts           []string
	Endpoint               string // resolved endpoint, incl. installed-models overlay
	ModelID                string // upstream model identifier (extras["model_id"] or Name)
	APIKeyHint             string
	Installed              bool
	Extras                 map[string]any // unrecognized descriptor fields, preserved verbatim
}

func (d Descriptor) hasTag(set []string, tag string) bool {
	for _, t := range set {
		if t == tag {
			return true
		}
	}
	return false
}

// hasSubset reports whether required is a subset of available.
func hasSubset(required, available []string) bool {
	set := make(map[string]struct{}, len(available))
	for _, a := range available {
		set[a] = struct{}{}
	}
	for _, r := range required {
		if _, ok := set[r]; !ok {
			return false
		}
	}
	return true
}
