package grader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"attngrader/internal/llm"
)

// Section describes one graded notebook section.
type Section struct {
	Name     string
	Title    string
	Function string
}

// Sections lists the four graded sections in lesson order.
var Sections = []Section{
	{Name: "section_1", Title: "Linear Projections (Q, K, V)", Function: "create_qkv_projections"},
	{Name: "section_2", Title: "Scaled Dot-Product Attention", Function: "compute_attention_scores"},
	{Name: "section_3", Title: "Softmax & Attention Weights", Function: "compute_attention_weights"},
	{Name: "section_4", Title: "Value Aggregation", Function: "aggregate_values"},
}

// SectionResult merges the judge verdict and the tensor-test verdict for one
// function.
type SectionResult struct {
	FunctionName     string        `json:"function_name"`
	Title            string        `json:"title"`
	LLMEvaluation    *llm.Verdict  `json:"llm_evaluation"`
	TensorValidation *TensorResult `json:"tensor_validation"`
	CellOrdinal      int           `json:"cell_ordinal"`
	Timestamp        string        `json:"timestamp"`
}

// Summary aggregates section counts for the report header.
type Summary struct {
	SectionsEvaluated   int     `json:"sections_evaluated"`
	SectionsImplemented int     `json:"sections_implemented"`
	AverageScore        float64 `json:"average_score"`
	Timestamp           string  `json:"timestamp"`
}

// Report is the grade artifact for one attempt. It always covers every
// required function; unresolved sections carry explicit error or zero-score
// entries instead of being omitted.
type Report struct {
	AttemptNumber  int                       `json:"attempt_number"`
	RunID          string                    `json:"run_id"`
	OverallScore   float64                   `json:"overall_score"`
	OverallGrade   string                    `json:"overall_grade"`
	SectionResults map[string]*SectionResult `json:"section_results"`
	Summary        Summary                   `json:"summary"`
	GradeDirectory string                    `json:"grade_directory"`
	NotebookPath   string                    `json:"notebook_path"`
}

// LetterGrade converts a numeric score to the letter scale.
func LetterGrade(score float64) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

// save persists the report under its attempt directory.
func (r *Report) save() error {
	if err := os.MkdirAll(r.GradeDirectory, 0o755); err != nil {
		return fmt.Errorf("failed to create grade directory: %w", err)
	}
	path := filepath.Join(r.GradeDirectory, fmt.Sprintf("grade_report_attempt_%d.json", r.AttemptNumber))
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// NextAttemptNumber scans outputDir for attempt_<n> directories and returns
// the next free number, starting at 1. Attempt numbering is monotonically
// increasing per run.
func NextAttemptNumber(outputDir string) int {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return 1
	}
	highest := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "attempt_") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(entry.Name(), "attempt_"))
		if err == nil && n > highest {
			highest = n
		}
	}
	return highest + 1
}

// Feedback renders a human-readable summary of a report.
func Feedback(r *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Overall Score: %.1f/100 (Grade: %s)\n", r.OverallScore, r.OverallGrade)
	fmt.Fprintf(&b, "Sections implemented: %d/%d\n", r.Summary.SectionsImplemented, r.Summary.SectionsEvaluated)

	names := make([]string, 0, len(r.SectionResults))
	for name := range r.SectionResults {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		s := r.SectionResults[name]
		fmt.Fprintf(&b, "\n%s (%s)\n", s.Title, s.FunctionName)
		if s.LLMEvaluation != nil {
			fmt.Fprintf(&b, "  Result: %s (score %d)\n", s.LLMEvaluation.ComparisonResult, s.LLMEvaluation.Score)
			if s.LLMEvaluation.EducationalFeedback != "" {
				fmt.Fprintf(&b, "  Feedback: %s\n", s.LLMEvaluation.EducationalFeedback)
			}
			for _, sug := range s.LLMEvaluation.Suggestions {
				fmt.Fprintf(&b, "  Suggestion: %s\n", sug)
			}
		}
		if s.TensorValidation != nil {
			if s.TensorValidation.Valid {
				b.WriteString("  Tensor checks: passed\n")
			} else if s.TensorValidation.Error != "" {
				fmt.Fprintf(&b, "  Tensor checks: failed (%s)\n", s.TensorValidation.Error)
			} else {
				b.WriteString("  Tensor checks: failed\n")
			}
		}
	}
	return b.String()
}
