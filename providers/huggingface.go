package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

// HuggingFaceOptions configures the huggingface adapter.
type HuggingFaceOptions struct {
	ModelName string
	ModelID   string // defaults to ModelName
	APIToken  string // HF_API_TOKEN
}

type hfRequest struct {
	Inputs string `json:"inputs"`
}

// hfGeneration covers both documented response shapes: a bare array of
// {generated_text} objects, or a single object with generated_text set
// directly (§4.1 table: "[0].generated_text OR generated_text").
type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
}

// NewHuggingFace builds the `huggingface` adapter.
func NewHuggingFace(opt HuggingFaceOptions) Adapter {
	hasCreds := opt.APIToken != ""
	modelID := opt.ModelID
	if modelID == "" {
		modelID = opt.ModelName
	}

	a := newHTTPAdapter(opt.ModelName, KindHuggingFace, hasCreds)

	a.buildRequest = func(ctx context.Context, prompt string) (*http.Request, error) {
		payload, err := json.Marshal(hfRequest{Inputs: prompt})
		if err != nil {
			return nil, err
		}
		url := "https://api-inference.huggingface.co/models/" + modelID
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+opt.APIToken)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	a.parseBody = func(raw []byte, status int) (string, error) {
		var asArray []hfGeneration
		if err := json.Unmarshal(raw, &asArray); err == nil && len(asArray) > 0 {
			return asArray[0].GeneratedText, nil
		}
		var asObject hfGeneration
		if err := json.Unmarshal(raw, &asObject); err == nil && asObject.GeneratedText != "" {
			return asObject.GeneratedText, nil
		}
		return "", errors.New("unrecognized huggingface response shape")
	}

	return a
}
