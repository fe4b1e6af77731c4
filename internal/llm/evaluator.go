package llm

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"attngrader/internal/logging"
)

// Evaluator coordinates the judge: rate limiting, verdict caching, prompt
// construction, the primary/fallback provider loop and response
// normalization. One Evaluator is constructed per process and owns all of
// its state; there are no package-level caches or limiters.
type Evaluator struct {
	providers []providerEntry

	cache   *VerdictCache // may be nil when caching is disabled
	limiter *RateLimiter
	prompts *PromptTemplates

	// Injectable for tests.
	sleep func(time.Duration)
	now   func() time.Time
}

// providerEntry pairs a provider with its configured retry budget.
type providerEntry struct {
	provider Provider
	retries  int
}

// EvaluatorOptions configures a new Evaluator. Fallback is optional; retry
// counts default to 3 per provider.
type EvaluatorOptions struct {
	Primary         Provider
	PrimaryRetries  int
	Fallback        Provider
	FallbackRetries int
	Cache           *VerdictCache
	Limiter         *RateLimiter
	Prompts         *PromptTemplates
}

// NewEvaluator builds an Evaluator.
func NewEvaluator(opts EvaluatorOptions) *Evaluator {
	if opts.PrimaryRetries <= 0 {
		opts.PrimaryRetries = 3
	}
	if opts.FallbackRetries <= 0 {
		opts.FallbackRetries = 3
	}
	if opts.Prompts == nil {
		opts.Prompts = NewPromptTemplates("")
	}
	if opts.Limiter == nil {
		opts.Limiter = NewRateLimiter(20)
	}
	e := &Evaluator{
		cache:   opts.Cache,
		limiter: opts.Limiter,
		prompts: opts.Prompts,
		sleep:   time.Sleep,
		now:     time.Now,
	}
	if opts.Primary != nil {
		e.providers = append(e.providers, providerEntry{provider: opts.Primary, retries: opts.PrimaryRetries})
	}
	if opts.Fallback != nil {
		e.providers = append(e.providers, providerEntry{provider: opts.Fallback, retries: opts.FallbackRetries})
	}
	return e
}

// CompareCode obtains a verdict on studentCode versus the reference
// implementation of functionName. Identical requests are served from the
// cache without touching any provider until the cache TTL expires.
func (e *Evaluator) CompareCode(ctx context.Context, studentCode, referenceCode, functionName string, extra map[string]interface{}) (*Verdict, error) {
	e.limiter.Wait()

	key := CacheKey(studentCode, referenceCode, functionName)
	if e.cache != nil {
		if v, ok := e.cache.Get(key); ok {
			logging.Cache("verdict cache hit for %s (%s)", functionName, key[:12])
			return v, nil
		}
	}

	prompt := e.prompts.CodeComparison(studentCode, referenceCode, functionName, extra)

	response, err := e.generate(ctx, prompt, PurposeEducational)
	if err != nil {
		return nil, err
	}

	verdict := e.parseComparisonResponse(response, functionName)
	if e.cache != nil {
		if err := e.cache.Set(key, verdict); err != nil {
			logging.LLMWarn("failed to cache verdict for %s: %v", functionName, err)
		}
	}
	return verdict, nil
}

// ExplainConcept asks the judge for an educational explanation of an
// attention concept. Explanations are conversational and not cached.
func (e *Evaluator) ExplainConcept(ctx context.Context, concept, studentLevel string) (string, error) {
	if studentLevel == "" {
		studentLevel = "intermediate"
	}
	return e.generate(ctx, e.prompts.ConceptExplanation(concept, studentLevel), PurposeEducational)
}

// GenerateTestCases asks the judge for test cases exercising one graded
// function. A response that cannot be parsed as a case list degrades to a
// single generic case rather than failing.
func (e *Evaluator) GenerateTestCases(ctx context.Context, functionName, functionSignature string) ([]TestCase, error) {
	response, err := e.generate(ctx, e.prompts.TestGeneration(functionName, functionSignature), PurposeCodeExplanation)
	if err != nil {
		return nil, err
	}
	return parseTestCases(response), nil
}

// generate runs the provider attempt loop: primary first, then fallback.
// Each provider gets retryAttempts tries with exponential backoff between
// them; a provider that exhausts its tries escalates to the next one.
func (e *Evaluator) generate(ctx context.Context, prompt, purpose string) (string, error) {
	var tried []string
	for _, entry := range e.providers {
		p := entry.provider
		tried = append(tried, p.Name())

		var lastErr error
		for attempt := 0; attempt < entry.retries; attempt++ {
			if attempt > 0 {
				e.sleep(time.Duration(1<<uint(attempt-1)) * time.Second)
			}

			response, err := p.GenerateResponse(ctx, prompt, purpose)
			if err != nil {
				lastErr = err
				logging.LLMWarn("provider %s attempt %d/%d failed: %v", p.Name(), attempt+1, entry.retries, err)
				continue
			}
			if strings.TrimSpace(response) == "" {
				lastErr = &ProviderError{Provider: p.Name(), Err: errEmptyResponse}
				continue
			}
			return response, nil
		}
		logging.LLMWarn("provider %s exhausted %d attempts: %v", p.Name(), entry.retries, lastErr)
	}
	return "", &AllProvidersFailedError{Tried: tried}
}

// parseComparisonResponse normalizes raw judge output into a verdict. A
// response carrying the fixed JSON schema is used directly; anything else
// goes through the keyword heuristic, so any non-empty response yields a
// well-formed verdict.
func (e *Evaluator) parseComparisonResponse(response, functionName string) *Verdict {
	text := stripCodeFences(response)

	if strings.HasPrefix(strings.TrimSpace(text), "{") {
		var v Verdict
		if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &v); err == nil {
			e.normalize(&v, functionName)
			return &v
		}
	}
	return e.parseTextResponse(response, functionName)
}

// parseTextResponse is the heuristic fallback: a line-by-line keyword scan
// assigning a coarse result and default score.
func (e *Evaluator) parseTextResponse(response, functionName string) *Verdict {
	v := &Verdict{
		ComparisonResult:    ResultUnknown,
		Score:               50,
		EducationalFeedback: response,
	}

	for _, line := range strings.Split(response, "\n") {
		line = strings.ToLower(strings.TrimSpace(line))
		switch {
		case strings.Contains(line, "incorrect") || strings.Contains(line, "error"):
			v.ComparisonResult = ResultIncorrect
			v.Score = 25
		case strings.Contains(line, "partially") || strings.Contains(line, "almost"):
			v.ComparisonResult = ResultPartiallyCorrect
			v.Score = 60
		case strings.Contains(line, "correct") && strings.Contains(line, "implementation"):
			v.ComparisonResult = ResultCorrect
			v.Score = 85
		}
	}

	e.normalize(v, functionName)
	return v
}

// normalize fills defaults and clamps fields so downstream code never sees
// an out-of-range verdict.
func (e *Evaluator) normalize(v *Verdict, functionName string) {
	if v.ComparisonResult == "" {
		v.ComparisonResult = ResultUnknown
	}
	if v.Score < 0 {
		v.Score = 0
	}
	if v.Score > 100 {
		v.Score = 100
	}
	if v.FunctionName == "" {
		v.FunctionName = functionName
	}
	if v.Timestamp == "" {
		v.Timestamp = e.now().Format(time.RFC3339)
	}
}

func parseTestCases(response string) []TestCase {
	text := strings.TrimSpace(stripCodeFences(response))
	if strings.HasPrefix(text, "[") {
		var cases []TestCase
		if err := json.Unmarshal([]byte(text), &cases); err == nil && len(cases) > 0 {
			return cases
		}
	}
	return []TestCase{{Description: "Basic functionality check", Input: "sample_input", Expected: "sample_output"}}
}

// stripCodeFences removes a surrounding markdown code fence; judges often
// wrap JSON that way despite instructions.
func stripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
