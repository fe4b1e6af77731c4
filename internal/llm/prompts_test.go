package llm

import (
	"strings"
	"testing"
)

func TestCodeComparisonPrompt(t *testing.T) {
	p := NewPromptTemplates("detailed")
	prompt := p.CodeComparison(
		"func aggregate_values(w, v *Tensor) *Tensor { return matmul(w, v) }",
		"func aggregate_values(weights, V *Tensor) *Tensor { return matmul(weights, V) }",
		"aggregate_values",
		map[string]interface{}{"section": "Value Aggregation"},
	)

	for _, want := range []string{
		"aggregate_values",
		"STUDENT CODE",
		"REFERENCE IMPLEMENTATION",
		"matmul(w, v)",
		"comparison_result",
		"Value Aggregation",
		"detailed",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestCodeComparisonPromptNoExtra(t *testing.T) {
	p := NewPromptTemplates("")
	prompt := p.CodeComparison("s", "r", "fn", nil)
	if strings.Contains(prompt, "Additional Context") {
		t.Error("empty extra produced a context section")
	}
	// Empty style falls back to detailed.
	if !strings.Contains(prompt, "detailed") {
		t.Error("default style not applied")
	}
}

func TestConceptExplanationPrompt(t *testing.T) {
	p := NewPromptTemplates("concise")
	prompt := p.ConceptExplanation("scaled dot-product attention", "beginner")
	for _, want := range []string{"scaled dot-product attention", "beginner", "concise"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestTestGenerationPrompt(t *testing.T) {
	p := NewPromptTemplates("detailed")
	prompt := p.TestGeneration("compute_attention_weights", "func compute_attention_weights(scores *Tensor) *Tensor")
	if !strings.Contains(prompt, "compute_attention_weights") {
		t.Error("prompt missing function name")
	}
	if !strings.Contains(prompt, "JSON array") {
		t.Error("prompt missing response format instruction")
	}
}
