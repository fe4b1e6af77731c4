package grader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"attngrader/internal/llm"
)

func TestLetterGrade(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{100, "A"},
		{90, "A"},
		{89.9, "B"},
		{80, "B"},
		{79.9, "C"},
		{70, "C"},
		{69.9, "D"},
		{60, "D"},
		{59.9, "F"},
		{0, "F"},
	}
	for _, tt := range tests {
		if got := LetterGrade(tt.score); got != tt.want {
			t.Errorf("LetterGrade(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestNextAttemptNumber(t *testing.T) {
	dir := t.TempDir()
	if got := NextAttemptNumber(dir); got != 1 {
		t.Errorf("empty dir: got %d, want 1", got)
	}

	for _, name := range []string{"attempt_1", "attempt_3", "attempt_notanumber", "unrelated"} {
		if err := os.Mkdir(filepath.Join(dir, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	// A stray file with the prefix is not an attempt directory.
	if err := os.WriteFile(filepath.Join(dir, "attempt_9"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if got := NextAttemptNumber(dir); got != 4 {
		t.Errorf("got %d, want 4", got)
	}
}

func TestNextAttemptNumberMissingDir(t *testing.T) {
	if got := NextAttemptNumber(filepath.Join(t.TempDir(), "nope")); got != 1 {
		t.Errorf("got %d, want 1", got)
	}
}

func TestFeedback(t *testing.T) {
	r := &Report{
		OverallScore: 81.25,
		OverallGrade: "B",
		Summary:      Summary{SectionsEvaluated: 4, SectionsImplemented: 4},
		SectionResults: map[string]*SectionResult{
			"section_1": {
				FunctionName: "create_qkv_projections",
				Title:        "Linear Projections (Q, K, V)",
				LLMEvaluation: &llm.Verdict{
					ComparisonResult:    llm.ResultCorrect,
					Score:               95,
					EducationalFeedback: "Projections look right.",
					Suggestions:         []string{"name the scale factor"},
				},
				TensorValidation: &TensorResult{Valid: true},
			},
			"section_2": {
				FunctionName: "compute_attention_scores",
				Title:        "Scaled Dot-Product Attention",
				LLMEvaluation: &llm.Verdict{
					ComparisonResult: llm.ResultIncorrect,
					Score:            25,
				},
				TensorValidation: &TensorResult{Valid: false, Error: "expected 1 return values, got 2"},
			},
		},
	}

	out := Feedback(r)
	for _, want := range []string{
		"81.2/100",
		"Grade: B",
		"Linear Projections",
		"score 95",
		"name the scale factor",
		"Tensor checks: passed",
		"expected 1 return values",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("feedback missing %q:\n%s", want, out)
		}
	}

	// Sections render in stable sorted order.
	if strings.Index(out, "Linear Projections") > strings.Index(out, "Scaled Dot-Product") {
		t.Error("sections out of order")
	}
}
