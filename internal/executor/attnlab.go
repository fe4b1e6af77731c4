package executor

import (
	"reflect"

	"github.com/traefik/yaegi/interp"

	"attngrader/internal/attention"
	"attngrader/internal/tensor"
)

// The replay namespace is seeded with a synthetic "attnlab" package plus a
// prelude that binds its symbols under the notebook's lesson names. Student
// cells then call tokenize_text, create_embeddings and the visualization
// helpers exactly as the tutorial text shows, without the real lesson
// infrastructure being importable.

// Visualization stand-ins. The real lesson renders plots; during grading the
// calls must simply not crash.
func visualizeNoop(args ...interface{}) {}

// attnlabExports exposes the helper bindings to the interpreter.
func attnlabExports() interp.Exports {
	return interp.Exports{
		"attnlab/attnlab": {
			"Tensor":           reflect.ValueOf((*tensor.Tensor)(nil)),
			"TokenizeText":     reflect.ValueOf(attention.TokenizeText),
			"CreateEmbeddings": reflect.ValueOf(attention.CreateEmbeddings),
			"Randn":            reflect.ValueOf(tensor.Randn),
			"MatMul":           reflect.ValueOf(tensor.MatMul),
			"Softmax":          reflect.ValueOf(tensor.Softmax),

			"VisualizeQKVProjections":   reflect.ValueOf(visualizeNoop),
			"VisualizeAttentionScores":  reflect.ValueOf(visualizeNoop),
			"VisualizeAttentionWeights": reflect.ValueOf(visualizeNoop),
			"VisualizeAttendedOutput":   reflect.ValueOf(visualizeNoop),
		},
	}
}

// preludeStatements are evaluated one by one into every fresh interpreter
// before any student cell. Evaluating them individually keeps the
// interpreter in REPL mode: a combined source would parse as a Go file,
// where top-level short variable declarations are illegal. Each binding is a
// plain global so later cells may shadow or reassign them, matching
// live-session behavior.
var preludeStatements = []string{
	`import "math"`,
	`import "attnlab"`,
	`type Tensor = attnlab.Tensor`,
	`tokenize_text := attnlab.TokenizeText`,
	`create_embeddings := attnlab.CreateEmbeddings`,
	`randn := attnlab.Randn`,
	`matmul := attnlab.MatMul`,
	`softmax := attnlab.Softmax`,
	`sqrt := math.Sqrt`,
	`visualize_qkv_projections := attnlab.VisualizeQKVProjections`,
	`visualize_attention_scores := attnlab.VisualizeAttentionScores`,
	`visualize_attention_weights := attnlab.VisualizeAttentionWeights`,
	`visualize_attended_output := attnlab.VisualizeAttendedOutput`,
}

// preludeNames are the bindings the prelude introduces; they participate in
// namespace enumeration like any cell-defined name.
var preludeNames = []string{
	"tokenize_text",
	"create_embeddings",
	"randn",
	"matmul",
	"softmax",
	"sqrt",
	"visualize_qkv_projections",
	"visualize_attention_scores",
	"visualize_attention_weights",
	"visualize_attended_output",
}
