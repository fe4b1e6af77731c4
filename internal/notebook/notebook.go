// Package notebook parses notebook documents into ordered code cells and
// locates function definitions within them.
package notebook

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"attngrader/internal/logging"
)

// LoadError reports a notebook document that could not be read or parsed.
// Grading cannot proceed without the document, so this error is fatal to the
// run that raised it.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load notebook %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// CodeCell is one code cell of the notebook. AbsoluteIndex is the position
// in the full cells array (markdown included) and is kept for diagnostics;
// Ordinal is the 0-based position among code cells only. Cells are immutable
// once parsed.
type CodeCell struct {
	AbsoluteIndex int
	Ordinal       int
	Source        string
}

// Notebook holds the ordered code cells of one notebook document.
type Notebook struct {
	Path  string
	Cells []CodeCell
}

// rawCell mirrors the on-disk cell schema. Source may be a single string or
// an array of line fragments.
type rawCell struct {
	CellType string          `json:"cell_type"`
	Source   json.RawMessage `json:"source"`
}

type rawNotebook struct {
	Cells []rawCell `json:"cells"`
}

// Load reads and parses a notebook document from disk.
func Load(path string) (*Notebook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return Parse(path, data)
}

// Parse parses notebook document bytes. Non-code cells are skipped while
// their absolute position is preserved on the surviving cells.
func Parse(path string, data []byte) (*Notebook, error) {
	var raw rawNotebook
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if raw.Cells == nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("document has no cells array")}
	}

	nb := &Notebook{Path: path}
	for idx, cell := range raw.Cells {
		if cell.CellType != "code" {
			continue
		}
		source, err := decodeSource(cell.Source)
		if err != nil {
			return nil, &LoadError{Path: path, Err: fmt.Errorf("cell %d: %w", idx, err)}
		}
		nb.Cells = append(nb.Cells, CodeCell{
			AbsoluteIndex: idx,
			Ordinal:       len(nb.Cells),
			Source:        source,
		})
	}
	logging.Get(logging.CategoryNotebook).Debugf("parsed %s: %d code cells", path, len(nb.Cells))
	return nb, nil
}

// decodeSource accepts the two source encodings notebooks use: one string,
// or an array of strings to concatenate.
func decodeSource(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var lines []string
	if err := json.Unmarshal(raw, &lines); err != nil {
		return "", fmt.Errorf("source is neither string nor string array")
	}
	return strings.Join(lines, ""), nil
}

// FindFunctionCell returns the ordinal of the first code cell defining the
// named function, or -1 if no cell defines it. A definition is a top-level
// function header anchored at line start, leading whitespace allowed. If a
// student redefines the function in a later cell the first definition stays
// authoritative.
func (nb *Notebook) FindFunctionCell(functionName string) int {
	pattern := regexp.MustCompile(`(?m)^\s*func\s+` + regexp.QuoteMeta(functionName) + `\s*\(`)
	for _, cell := range nb.Cells {
		if pattern.MatchString(cell.Source) {
			return cell.Ordinal
		}
	}
	return -1
}

// FunctionSource returns the source of the cell defining functionName, or ""
// when the function is absent. Judges receive the whole defining cell so
// surrounding scaffolding a student wrote stays visible.
func (nb *Notebook) FunctionSource(functionName string) string {
	ordinal := nb.FindFunctionCell(functionName)
	if ordinal < 0 {
		return ""
	}
	return nb.Cells[ordinal].Source
}
