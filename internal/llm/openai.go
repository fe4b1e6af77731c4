package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

// OpenAIProvider talks to an OpenAI-compatible chat-completions API. It is
// the hosted fallback judge for when the local model server is down or not
// installed.
type OpenAIProvider struct {
	settings   Settings
	apiKey     string
	httpClient *http.Client
}

// NewOpenAIProvider creates the hosted provider. The API key comes from the
// OPENAI_API_KEY environment variable; a missing key is a construction-time
// error so a misconfigured fallback is discovered at startup, not mid-run.
func NewOpenAIProvider(settings Settings) (*OpenAIProvider, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, &ProviderError{Provider: "openai", Err: fmt.Errorf("OPENAI_API_KEY not set")}
	}
	if settings.BaseURL == "" {
		settings.BaseURL = "https://api.openai.com/v1"
	}
	return &OpenAIProvider{
		settings:   settings,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: settings.Timeout},
	}, nil
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string { return "openai" }

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
	TopP        float64         `json:"top_p,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// GenerateResponse implements Provider with a single chat-completions call.
func (p *OpenAIProvider) GenerateResponse(ctx context.Context, prompt, purpose string) (string, error) {
	reqBody := openAIRequest{
		Model:       p.settings.ModelFor(purpose),
		Messages:    []openAIMessage{{Role: "user", Content: prompt}},
		MaxTokens:   p.settings.MaxTokens,
		Temperature: p.settings.Temperature,
		TopP:        p.settings.TopP,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", &ProviderError{Provider: p.Name(), Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.settings.BaseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", &ProviderError{Provider: p.Name(), Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", &ProviderError{Provider: p.Name(), Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ProviderError{Provider: p.Name(), Err: fmt.Errorf("failed to read response: %w", err)}
	}

	var parsed openAIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &ProviderError{Provider: p.Name(), Err: fmt.Errorf("status %d: failed to decode response: %w", resp.StatusCode, err)}
	}
	if parsed.Error != nil {
		return "", &ProviderError{Provider: p.Name(), Err: fmt.Errorf("API error: %s", parsed.Error.Message)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &ProviderError{Provider: p.Name(), Err: fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200))}
	}
	if len(parsed.Choices) == 0 {
		return "", &ProviderError{Provider: p.Name(), Err: fmt.Errorf("response contained no choices")}
	}
	return parsed.Choices[0].Message.Content, nil
}
