package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// OllamaProvider talks to a local Ollama model server through its generate
// endpoint. This is the primary judge in the default configuration: free,
// local, and tolerant of the large prompts code comparison produces.
type OllamaProvider struct {
	settings   Settings
	httpClient *http.Client
}

// NewOllamaProvider creates an Ollama provider from settings.
func NewOllamaProvider(settings Settings) *OllamaProvider {
	if settings.BaseURL == "" {
		settings.BaseURL = "http://localhost:11434"
	}
	return &OllamaProvider{
		settings:   settings,
		httpClient: &http.Client{Timeout: settings.Timeout},
	}
}

// Name implements Provider.
func (p *OllamaProvider) Name() string { return "ollama" }

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
	TopP        float64 `json:"top_p"`
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Format  string        `json:"format"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// GenerateResponse implements Provider with a single generate call.
func (p *OllamaProvider) GenerateResponse(ctx context.Context, prompt, purpose string) (string, error) {
	reqBody := ollamaRequest{
		Model:  p.settings.ModelFor(purpose),
		Prompt: prompt,
		Format: "json",
		Stream: false,
		Options: ollamaOptions{
			Temperature: p.settings.Temperature,
			NumPredict:  p.settings.MaxTokens,
			TopP:        p.settings.TopP,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", &ProviderError{Provider: p.Name(), Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.settings.BaseURL+"/api/generate", bytes.NewReader(jsonData))
	if err != nil {
		return "", &ProviderError{Provider: p.Name(), Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", &ProviderError{Provider: p.Name(), Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ProviderError{Provider: p.Name(), Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &ProviderError{Provider: p.Name(), Err: fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200))}
	}

	var parsed ollamaResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &ProviderError{Provider: p.Name(), Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if parsed.Error != "" {
		return "", &ProviderError{Provider: p.Name(), Err: fmt.Errorf("server error: %s", parsed.Error)}
	}
	return parsed.Response, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
