// Package executor replays notebook code cells into an accumulating
// namespace so student functions can be tested inside the environment a live
// session would have given them. Cells are interpreted with yaegi; a broken
// cell is skipped with a warning instead of aborting the replay, because
// functions defined in later cells may not depend on it at all.
package executor

import (
	"bytes"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"attngrader/internal/logging"
	"attngrader/internal/notebook"
	"attngrader/internal/tensor"
)

// replaySeed makes synthesized randomness inside a replay reproducible, so
// two replays of the same notebook produce identical namespaces.
const replaySeed = 42

// Namespace is the set of bindings produced by replaying cells 0..k. It is
// backed by a live interpreter; lookups evaluate the identifier in the
// interpreter's top-level scope, which is authoritative even for names the
// static scan missed. A Namespace is owned by the Executor that built it and
// must be treated as read-only by callers.
type Namespace struct {
	interp *interp.Interpreter
	names  map[string]struct{}
}

// Has reports whether name is bound in the namespace.
func (ns *Namespace) Has(name string) bool {
	_, ok := ns.Lookup(name)
	return ok
}

// Lookup resolves a top-level identifier to its runtime value.
func (ns *Namespace) Lookup(name string) (reflect.Value, bool) {
	v, err := safeEval(ns.interp, name)
	if err != nil {
		return reflect.Value{}, false
	}
	return v, true
}

// Tensor resolves a binding and asserts it to a tensor value.
func (ns *Namespace) Tensor(name string) (*tensor.Tensor, bool) {
	v, ok := ns.Lookup(name)
	if !ok || !v.IsValid() || !v.CanInterface() {
		return nil, false
	}
	t, ok := v.Interface().(*tensor.Tensor)
	return t, ok
}

// Names returns the sorted identifiers known to the namespace. The set is
// accumulated from the prelude and from a static scan of each successfully
// executed cell.
func (ns *Namespace) Names() []string {
	out := make([]string, 0, len(ns.names))
	for name := range ns.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Executor replays one notebook's code cells. Results are memoized per
// target ordinal: an exact repeat request returns the cached namespace
// without re-execution. Not safe for concurrent use.
type Executor struct {
	nb    *notebook.Notebook
	cache map[int]*Namespace
}

// New creates an Executor for the notebook.
func New(nb *notebook.Notebook) *Executor {
	return &Executor{nb: nb, cache: make(map[int]*Namespace)}
}

// ExecuteUntil replays code cells 0..target inclusive and returns the
// resulting namespace. A negative target, or one beyond the last cell, is
// clamped to replaying every cell.
func (e *Executor) ExecuteUntil(target int) (*Namespace, error) {
	if target < 0 || target >= len(e.nb.Cells) {
		target = len(e.nb.Cells) - 1
	}
	if ns, ok := e.cache[target]; ok {
		logging.Executor("cache hit for target ordinal %d", target)
		return ns, nil
	}

	ns, err := e.replay(target)
	if err != nil {
		return nil, err
	}
	e.cache[target] = ns
	return ns, nil
}

// ContextForFunction replays every cell up to and including the one defining
// functionName.
func (e *Executor) ContextForFunction(functionName string) (*Namespace, error) {
	ordinal := e.nb.FindFunctionCell(functionName)
	if ordinal < 0 {
		return nil, fmt.Errorf("function %q not found in notebook", functionName)
	}
	return e.ExecuteUntil(ordinal)
}

// FunctionWithContext returns the callable bound to functionName together
// with its complete execution context.
func (e *Executor) FunctionWithContext(functionName string) (reflect.Value, *Namespace, error) {
	ns, err := e.ContextForFunction(functionName)
	if err != nil {
		return reflect.Value{}, nil, err
	}
	fn, ok := ns.Lookup(functionName)
	if !ok {
		return reflect.Value{}, ns, fmt.Errorf("function %q defined but not bound after replay", functionName)
	}
	return fn, ns, nil
}

// replay walks cells 0..target, keeping a list of sources that executed
// cleanly. A failing cell can leave the interpreter partially mutated, so on
// failure the namespace is rebuilt from the clean list, which restores the
// exact pre-cell state.
func (e *Executor) replay(target int) (*Namespace, error) {
	tensor.Seed(replaySeed)

	ns, err := newNamespace()
	if err != nil {
		return nil, err
	}

	var good []string
	for _, cell := range e.nb.Cells {
		if cell.Ordinal > target {
			break
		}
		if skipCell(cell.Source) {
			continue
		}

		if _, err := safeEval(ns.interp, cell.Source); err != nil {
			logging.ExecutorWarn("cell %d (notebook index %d) execution failed: %v", cell.Ordinal, cell.AbsoluteIndex, err)
			ns, err = rebuild(good)
			if err != nil {
				return nil, err
			}
			continue
		}

		good = append(good, cell.Source)
		for _, name := range scanDefinedNames(cell.Source) {
			ns.names[name] = struct{}{}
		}
	}
	return ns, nil
}

// rebuild replays known-good sources into a fresh interpreter. Each source
// already executed once, so failures here indicate interpreter-level
// non-determinism and are fatal.
func rebuild(good []string) (*Namespace, error) {
	tensor.Seed(replaySeed)
	ns, err := newNamespace()
	if err != nil {
		return nil, err
	}
	for i, src := range good {
		if _, err := safeEval(ns.interp, src); err != nil {
			return nil, fmt.Errorf("namespace rebuild failed at known-good cell %d: %w", i, err)
		}
		for _, name := range scanDefinedNames(src) {
			ns.names[name] = struct{}{}
		}
	}
	return ns, nil
}

// newNamespace builds a fresh interpreter with the stdlib, the injected
// helper package and the evaluated prelude. Cell stdout/stderr goes to
// capture buffers so student prints never leak to the grader's output.
func newNamespace() (*Namespace, error) {
	var stdout, stderr bytes.Buffer
	i := interp.New(interp.Options{Stdout: &stdout, Stderr: &stderr})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("failed to load interpreter stdlib: %w", err)
	}
	if err := i.Use(attnlabExports()); err != nil {
		return nil, fmt.Errorf("failed to load helper bindings: %w", err)
	}
	for _, stmt := range preludeStatements {
		if _, err := safeEval(i, stmt); err != nil {
			return nil, fmt.Errorf("failed to evaluate prelude statement %q: %w", stmt, err)
		}
	}

	ns := &Namespace{interp: i, names: make(map[string]struct{})}
	for _, name := range preludeNames {
		ns.names[name] = struct{}{}
	}
	return ns, nil
}

// safeEval evaluates src, converting interpreter panics into errors.
func safeEval(i *interp.Interpreter, src string) (v reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("interpreter panic: %v", r)
		}
	}()
	return i.Eval(src)
}

// skipCell reports whether a cell is excluded from replay: blank cells,
// shell/meta-command cells, and cells importing the grader itself (a student
// triggering their own grading mid-notebook must not recurse during replay).
func skipCell(source string) bool {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return true
	}
	if strings.HasPrefix(trimmed, "!") || strings.HasPrefix(trimmed, "%") {
		return true
	}
	if strings.Contains(trimmed, `"attngrader`) {
		return true
	}
	return false
}

var (
	shortDeclPattern = regexp.MustCompile(`(?m)^([A-Za-z_]\w*(?:\s*,\s*[A-Za-z_]\w*)*)\s*:=`)
	funcDeclPattern  = regexp.MustCompile(`(?m)^\s*func\s+([A-Za-z_]\w*)\s*\(`)
	varDeclPattern   = regexp.MustCompile(`(?m)^(?:var|const)\s+([A-Za-z_]\w*)`)
	typeDeclPattern  = regexp.MustCompile(`(?m)^type\s+([A-Za-z_]\w*)`)
)

// scanDefinedNames statically extracts the top-level names a cell introduces.
// Enumeration only; Lookup stays authoritative for membership.
func scanDefinedNames(source string) []string {
	var names []string
	for _, m := range shortDeclPattern.FindAllStringSubmatch(source, -1) {
		for _, name := range strings.Split(m[1], ",") {
			name = strings.TrimSpace(name)
			if name != "" && name != "_" {
				names = append(names, name)
			}
		}
	}
	for _, pat := range []*regexp.Regexp{funcDeclPattern, varDeclPattern, typeDeclPattern} {
		for _, m := range pat.FindAllStringSubmatch(source, -1) {
			names = append(names, m[1])
		}
	}
	return names
}
