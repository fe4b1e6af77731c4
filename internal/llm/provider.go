// Package llm orchestrates qualitative code evaluation through external
// text-generation providers. It manages provider selection with fallback,
// prompt construction, rate limiting, durable response caching and
// normalization of free-form judge output into structured verdicts.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// errEmptyResponse marks a provider call that returned no text; the contract
// guarantees a verdict only from non-empty responses.
var errEmptyResponse = errors.New("provider returned empty response")

// Purpose selects the model a provider should use for a request.
const (
	PurposeEducational     = "educational"
	PurposeCodeExplanation = "code_explanation"
	PurposeDefault         = "default"
)

// Provider is one text-generation backend. Implementations perform a single
// request per call; retry and fallback policy belongs to the Evaluator.
type Provider interface {
	// Name identifies the provider in logs and errors.
	Name() string
	// GenerateResponse sends a prompt and returns the raw response text.
	GenerateResponse(ctx context.Context, prompt, purpose string) (string, error)
}

// ProviderError reports a failed provider request.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// AllProvidersFailedError reports that every configured provider exhausted
// its retries for one comparison request. The request has no verdict; the
// caller records the section as an error rather than retrying further.
type AllProvidersFailedError struct {
	Tried []string
}

func (e *AllProvidersFailedError) Error() string {
	return fmt.Sprintf("all LLM providers failed to generate a response (tried %v)", e.Tried)
}

// Settings holds the request parameters shared by both provider kinds.
// Loaded once at construction and immutable afterwards.
type Settings struct {
	BaseURL       string
	Models        map[string]string // purpose -> model name
	Temperature   float64
	MaxTokens     int
	TopP          float64
	Timeout       time.Duration
	RetryAttempts int
}

// ModelFor resolves the model for a purpose, falling back to the default
// model when the purpose has no dedicated entry.
func (s Settings) ModelFor(purpose string) string {
	if m, ok := s.Models[purpose]; ok {
		return m
	}
	return s.Models[PurposeDefault]
}
