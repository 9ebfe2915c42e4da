package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAICompatOptions configures the openai-compatible adapter.
type OpenAICompatOptions struct {
	ModelName string
	ModelID   string // the upstream model identifier, defaults to ModelName
	APIKey    string
	BaseURL   string // e.g. OPENAI_API_BASE, defaults to https://api.openai.com
	Referer   string // set for openrouter's HTTP-Referer
	Title     string // set for openrouter's X-Title
}

// NewOpenAICompatible builds the adapter for the `openai-compatible`
// provider tag: POST <base>/chat/completions with an OpenAI-shaped body,
// content read from choices[0].message.content (§4.1).
func NewOpenAICompatible(opt OpenAICompatOptions) Adapter {
	return buildOpenAIStyleAdapter(KindOpenAICompatible, opt)
}

// NewOpenRouter builds the `openrouter` adapter: identical body shape to
// openai-compatible, plus HTTP-Referer/X-Title headers and a fixed base URL.
func NewOpenRouter(opt OpenAICompatOptions) Adapter {
	if opt.BaseURL == "" {
		opt.BaseURL = "https://openrouter.ai/api/v1"
	}
	return buildOpenAIStyleAdapter(KindOpenRouter, opt)
}

func buildOpenAIStyleAdapter(kind Kind, opt OpenAICompatOptions) Adapter {
	hasCreds := opt.APIKey != ""
	modelID := opt.ModelID
	if modelID == "" {
		modelID = opt.ModelName
	}
	base := opt.BaseURL
	if base == "" {
		base = "https://api.openai.com"
	}

	a := newHTTPAdapter(opt.ModelName, kind, hasCreds)

	a.buildRequest = func(ctx context.Context, prompt string) (*http.Request, error) {
		body := openai.ChatCompletionRequest{
			Model: modelID,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			Stream: false,
		}
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+opt.APIKey)
		req.Header.Set("Content-Type", "application/json")
		if opt.Referer != "" {
			req.Header.Set("HTTP-Referer", opt.Referer)
		}
		if opt.Title != "" {
			req.Header.Set("X-Title", opt.Title)
		}
		return req, nil
	}

	a.parseBody = func(raw []byte, status int) (string, error) {
		var resp openai.ChatCompletionResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("empty choices array")
		}
		return resp.Choices[0].Message.Content, nil
	}

	return a
}
