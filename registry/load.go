package registry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"

	"github.com/Raebu/RaeburnBrainMonorepo/providers"
)

// knownDescriptorFields lists the recognized top-level keys of a model
// descriptor entry. Anything else in the JSON object is preserved into
// Descriptor.Extras instead of being silently dropped, per §9's "Dynamic
// config objects" re-architecture guidance.
var knownDescriptorFields = map[string]struct{}{
	"name": {}, "provider": {}, "cost": {}, "speed": {},
	"strengths": {}, "weaknesses": {}, "forbidden_tasks": {},
	"router_bias": {}, "auto_disable_threshold_failures": {},
	"last_passed_health": {}, "allowed_hosts": {}, "capabilities": {},
}

// LoadFile parses model_registry.json and merges the models_installed.json
// overlay (if present), returning the descriptor set. An empty or missing
// registry file yields a single synthetic local-echo descriptor so the
// registry is never empty (§4.2).
func LoadFile(configDir string) ([]Descriptor, error) {
	registryPath := filepath.Join(configDir, "model_registry.json")
	installedPath := filepath.Join(configDir, "models_installed.json")

	raw, err := os.ReadFile(registryPath)
	if err != nil {
		if os.IsNotExist(err) {
			return []Descriptor{syntheticLocalEcho()}, nil
		}
		return nil, fmt.Errorf("read model_registry.json: %w", err)
	}

	descriptors, err := parseRegistry(raw)
	if err != nil {
		return nil, fmt.Errorf("parse model_registry.json: %w", err)
	}

	if installedRaw, err := os.ReadFile(installedPath); err == nil {
		applyInstalledOverlay(descriptors, installedRaw)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read models_installed.json: %w", err)
	}

	if len(descriptors) == 0 {
		return []Descriptor{syntheticLocalEcho()}, nil
	}
	return descriptors, nil
}

func syntheticLocalEcho() Descriptor {
	return Descriptor{
		Name:     "local-echo",
		Provider: providers.KindLocalEcho,
		Capabilities: Capabilities{
			RolesSupported: []string{"user", "system", "assistant"},
		},
	}
}

func parseRegistry(raw []byte) ([]Descriptor, error) {
	root := gjson.ParseBytes(raw)
	models := root.Get("models")
	if !models.Exists() || !models.IsArray() {
		return nil, nil
	}

	var out []Descriptor
	for _, m := range models.Array() {
		d := Descriptor{
			Name:       m.Get("name").String(),
			Provider:   providers.Kind(m.Get("provider").String()),
			Strengths:  stringSlice(m.Get("strengths")),
			Weaknesses: stringSlice(m.Get("weaknesses")),
			ForbiddenTasks: stringSlice(m.Get("forbidden_tasks")),
			RouterBias: RouterBias{
				PreferFor: stringSlice(m.Get("router_bias.prefer_for")),
				AvoidFor:  stringSlice(m.Get("router_bias.avoid_for")),
			},
			LastPassedHealth: m.Get("last_passed_health").String(),
			AllowedHosts:     stringSlice(m.Get("allowed_hosts")),
			Capabilities: Capabilities{
				Streaming:      m.Get("capabilities.streaming").Bool(),
				JSONMode:       m.Get("capabilities.json_mode").Bool(),
				Multimodal:     m.Get("capabilities.multimodal").Bool(),
				RolesSupported: stringSlice(m.Get("capabilities.roles_supported")),
			},
			ModelID: m.Get("name").String(),
			Extras:  map[string]any{},
		}

		// cost may be a bare number or {usd_per_1k: float}.
		if c := m.Get("cost"); c.Exists() {
			if c.IsObject() {
				d.CostPer1K = c.Get("usd_per_1k").Float()
			} else {
				d.CostPer1K = c.Float()
			}
		}
		// speed may be a bare number or {tps_estimate: float}.
		if s := m.Get("speed"); s.Exists() {
			if s.IsObject() {
				d.SpeedTPS = s.Get("tps_estimate").Float()
			} else {
				d.SpeedTPS = s.Float()
			}
		}
		if mc := m.Get("capabilities.max_context"); mc.Exists() {
			v := int(mc.Int())
			d.Capabilities.MaxContext = &v
		}
		if th := m.Get("auto_disable_threshold_failures"); th.Exists() {
			v := int(th.Int())
			d.AutoDisableThreshold = &v
		}

		m.ForEach(func(key, value gjson.Result) bool {
			k := key.String()
			if _, known := knownDescriptorFields[k]; !known {
				d.Extras[k] = value.Value()
			}
			return true
		})

		out = append(out, d)
	}
	return out, nil
}

func applyInstalledOverlay(descriptors []Descriptor, raw []byte) {
	overlay := gjson.ParseBytes(raw)
	for i := range descriptors {
		entry := overlay.Get(gjsonEscape(descriptors[i].Name))
		if !entry.Exists() {
			continue
		}
		descriptors[i].Installed = entry.Get("installed").Bool()
		if ep := entry.Get("endpoint"); ep.Exists() {
			descriptors[i].Endpoint = ep.String()
		}
	}
}

// gjsonEscape escapes path-significant characters (., * and ?) in a raw map
// key before using it as a gjson path segment.
func gjsonEscape(key string) string {
	out := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c == '.' || c == '*' || c == '?' {
			out = append(out, '\\')
		}
		out = append(out, c)
	}
	return string(out)
}

func stringSlice(r gjson.Result) []string {
	if !r.Exists() || !r.IsArray() {
		return nil
	}
	arr := r.Array()
	out := make([]string, len(arr))
	for i, v := range arr {
		out[i] = v.String()
	}
	return out
}
