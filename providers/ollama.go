package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// OllamaOptions configures the ollama adapter.
type OllamaOptions struct {
	ModelName string
	ModelID   string // defaults to ModelName
	BaseURL   string // OLLAMA_URL, defaults to http://localhost:11434
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Output   string `json:"output"`
}

// NewOllama builds the `ollama` adapter. Ollama requires no API key, so
// credentials are always considered present; reachability failures surface
// as ordinary transient/upstream errors instead of missing_credentials.
func NewOllama(opt OllamaOptions) Adapter {
	modelID := opt.ModelID
	if modelID == "" {
		modelID = opt.ModelName
	}
	base := strings.TrimRight(opt.BaseURL, "/")
	if base == "" {
		base = "http://localhost:11434"
	}

	a := newHTTPAdapter(opt.ModelName, KindOllama, true)

	a.buildRequest = func(ctx context.Context, prompt string) (*http.Request, error) {
		payload, err := json.Marshal(ollamaRequest{Model: modelID, Prompt: prompt})
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/generate", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	a.parseBody = func(raw []byte, status int) (string, error) {
		var resp ollamaResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return "", err
		}
		if resp.Response != "" {
			return resp.Response, nil
		}
		if resp.Output != "" {
			return resp.Output, nil
		}
		return "", errors.New("ollama response missing response/output field")
	}

	return a
}
