package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"attngrader/internal/grader"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			MarginBottom(1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	passStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	gradeStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 2).
			Border(lipgloss.RoundedBorder())
)

func renderReport(w io.Writer, r *grader.Report) {
	fmt.Fprintln(w, titleStyle.Render("Attention Mechanism Tutorial - Grade Report"))
	fmt.Fprintf(w, "Attempt %d  %s\n\n", r.AttemptNumber, dimStyle.Render(r.RunID))

	names := make([]string, 0, len(r.SectionResults))
	for name := range r.SectionResults {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		res := r.SectionResults[name]
		fmt.Fprintln(w, sectionStyle.Render(res.Title))

		if res.TensorValidation != nil {
			if res.TensorValidation.Valid {
				fmt.Fprintf(w, "  tensors: %s\n", passStyle.Render("pass"))
			} else {
				fmt.Fprintf(w, "  tensors: %s  %s\n",
					failStyle.Render("fail"), res.TensorValidation.Error)
			}
		}
		if v := res.LLMEvaluation; v != nil {
			fmt.Fprintf(w, "  judge:   %s (%d/100)\n", v.ComparisonResult, v.Score)
			if v.EducationalFeedback != "" {
				fmt.Fprintf(w, "  %s\n", wrapIndent(v.EducationalFeedback, "  "))
			}
			for _, s := range v.Suggestions {
				fmt.Fprintf(w, "  - %s\n", s)
			}
		}
		fmt.Fprintln(w)
	}

	summary := fmt.Sprintf("Overall: %.1f/100  Grade: %s", r.OverallScore, r.OverallGrade)
	fmt.Fprintln(w, gradeStyle.Render(summary))
	fmt.Fprintf(w, "\nReport saved to %s\n", r.GradeDirectory)
}

func renderCompleteness(w io.Writer, c *grader.Completeness) {
	if c.Complete {
		fmt.Fprintln(w, passStyle.Render("All required functions implemented."))
	} else {
		fmt.Fprintln(w, failStyle.Render("Notebook is incomplete."))
	}
	for _, name := range c.Implemented {
		fmt.Fprintf(w, "  %s %s (cell %d)\n", passStyle.Render("+"), name, c.CellOrdinals[name])
	}
	for _, name := range c.Missing {
		fmt.Fprintf(w, "  %s %s\n", failStyle.Render("-"), name)
	}
}

// wrapIndent breaks long feedback lines at roughly 80 columns so terminal
// output stays readable.
func wrapIndent(s, indent string) string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return s
	}
	var b strings.Builder
	line := words[0]
	for _, word := range words[1:] {
		if len(line)+1+len(word) > 78 {
			b.WriteString(line)
			b.WriteString("\n")
			b.WriteString(indent)
			line = word
			continue
		}
		line += " " + word
	}
	b.WriteString(line)
	return b.String()
}
