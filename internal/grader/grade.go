// Package grader sequences the grading pipeline across the four required
// functions and aggregates the results into a persisted grade report.
package grader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"attngrader/internal/attention"
	"attngrader/internal/config"
	"attngrader/internal/executor"
	"attngrader/internal/llm"
	"attngrader/internal/logging"
	"attngrader/internal/notebook"
)

// Grader wires the notebook executor and the judge into one grading run.
type Grader struct {
	cfg       *config.Config
	evaluator *llm.Evaluator

	// Injectable clock for tests.
	now func() time.Time
}

// New creates a Grader over a loaded configuration and a constructed
// evaluator. The evaluator may be nil for tensor-only grading in tests.
func New(cfg *config.Config, evaluator *llm.Evaluator) *Grader {
	return &Grader{cfg: cfg, evaluator: evaluator, now: time.Now}
}

// GradeNotebook evaluates every required function in the notebook at path
// and persists the grade report under an attempt-numbered directory. The
// report always covers all four sections; a section whose judge request
// failed is recorded with an error verdict and zero score rather than
// aborting the run. Only a notebook that cannot be loaded is fatal.
func (g *Grader) GradeNotebook(ctx context.Context, path string, attempt int) (*Report, error) {
	nb, err := notebook.Load(path)
	if err != nil {
		return nil, err
	}
	exec := executor.New(nb)

	report := &Report{
		AttemptNumber:  attempt,
		RunID:          uuid.NewString(),
		SectionResults: make(map[string]*SectionResult, len(Sections)),
		GradeDirectory: filepath.Join(g.cfg.Grading.OutputDir, fmt.Sprintf("attempt_%d", attempt)),
		NotebookPath:   path,
	}

	var scoreSum float64
	implemented := 0
	for _, section := range Sections {
		result := g.gradeSection(ctx, nb, exec, section)
		report.SectionResults[section.Name] = result
		scoreSum += float64(result.LLMEvaluation.Score)
		if result.LLMEvaluation.ComparisonResult != llm.ResultNotImplemented {
			implemented++
		}
	}

	report.OverallScore = scoreSum / float64(len(Sections))
	report.OverallGrade = LetterGrade(report.OverallScore)
	report.Summary = Summary{
		SectionsEvaluated:   len(Sections),
		SectionsImplemented: implemented,
		AverageScore:        report.OverallScore,
		Timestamp:           g.now().Format(time.RFC3339),
	}

	if err := report.save(); err != nil {
		return nil, err
	}
	logging.Grader("graded %s: %.1f/100 (%s)", path, report.OverallScore, report.OverallGrade)
	return report, nil
}

// gradeSection produces the merged judge and tensor verdicts for one
// section. Every failure mode short of a notebook load error resolves into
// an explicit section entry.
func (g *Grader) gradeSection(ctx context.Context, nb *notebook.Notebook, exec *executor.Executor, section Section) *SectionResult {
	result := &SectionResult{
		FunctionName: section.Function,
		Title:        section.Title,
		Timestamp:    g.now().Format(time.RFC3339),
	}

	ordinal := nb.FindFunctionCell(section.Function)
	result.CellOrdinal = ordinal
	if ordinal < 0 {
		result.LLMEvaluation = &llm.Verdict{
			ComparisonResult:    llm.ResultNotImplemented,
			Score:               0,
			EducationalFeedback: "Function not implemented",
			FunctionName:        section.Function,
			Timestamp:           result.Timestamp,
		}
		result.TensorValidation = &TensorResult{Valid: false, Error: "no implementation"}
		return result
	}

	studentCode := nb.Cells[ordinal].Source
	result.LLMEvaluation = g.judgeSection(ctx, studentCode, section, ordinal)
	result.TensorValidation = g.testSection(exec, section.Function)
	return result
}

// judgeSection obtains the qualitative verdict. An exhausted provider loop
// becomes an error verdict with zero score for this section only.
func (g *Grader) judgeSection(ctx context.Context, studentCode string, section Section, ordinal int) *llm.Verdict {
	if g.evaluator == nil {
		return &llm.Verdict{
			ComparisonResult:    llm.ResultUnknown,
			Score:               0,
			EducationalFeedback: "LLM evaluation disabled",
			FunctionName:        section.Function,
		}
	}

	extra := map[string]interface{}{
		"section":      section.Title,
		"cell_ordinal": ordinal,
	}
	verdict, err := g.evaluator.CompareCode(ctx, studentCode, attention.ReferenceSource(section.Function), section.Function, extra)
	if err != nil {
		var allFailed *llm.AllProvidersFailedError
		if !errors.As(err, &allFailed) {
			logging.Grader("unexpected judge failure for %s: %v", section.Function, err)
		}
		return &llm.Verdict{
			ComparisonResult:    llm.ResultError,
			Score:               0,
			EducationalFeedback: fmt.Sprintf("LLM evaluation failed: %v", err),
			FunctionName:        section.Function,
			Timestamp:           g.now().Format(time.RFC3339),
		}
	}
	return verdict
}

// testSection replays the notebook up to the defining cell and runs the
// tensor tests inside that context.
func (g *Grader) testSection(exec *executor.Executor, functionName string) *TensorResult {
	fn, ns, err := exec.FunctionWithContext(functionName)
	if err != nil {
		return &TensorResult{Valid: false, Error: err.Error()}
	}
	return RunFunctionTests(fn, functionName, ns)
}

// RunEvaluation grades the notebook under the next free attempt number.
func (g *Grader) RunEvaluation(ctx context.Context, path string) (*Report, error) {
	attempt := NextAttemptNumber(g.cfg.Grading.OutputDir)
	logging.Grader("starting evaluation of %s as attempt %d", path, attempt)
	return g.GradeNotebook(ctx, path, attempt)
}

// Completeness reports which required functions a notebook defines.
type Completeness struct {
	Complete     bool           `json:"complete"`
	Implemented  []string       `json:"implemented"`
	Missing      []string       `json:"missing"`
	CellOrdinals map[string]int `json:"cell_ordinals"`
}

// CheckCompleteness scans the notebook for the four required definitions
// without executing anything.
func CheckCompleteness(path string) (*Completeness, error) {
	nb, err := notebook.Load(path)
	if err != nil {
		return nil, err
	}

	c := &Completeness{CellOrdinals: make(map[string]int)}
	for _, fn := range executor.RequiredFunctions {
		ordinal := nb.FindFunctionCell(fn)
		c.CellOrdinals[fn] = ordinal
		if ordinal >= 0 {
			c.Implemented = append(c.Implemented, fn)
		} else {
			c.Missing = append(c.Missing, fn)
		}
	}
	c.Complete = len(c.Missing) == 0
	return c, nil
}
