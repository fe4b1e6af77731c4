package executor

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"attngrader/internal/notebook"
	"attngrader/internal/tensor"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// nb builds an in-memory notebook from cell sources.
func nb(sources ...string) *notebook.Notebook {
	doc := &notebook.Notebook{Path: "test.ipynb"}
	for i, src := range sources {
		doc.Cells = append(doc.Cells, notebook.CodeCell{AbsoluteIndex: i, Ordinal: i, Source: src})
	}
	return doc
}

const pipelineQKV = `func create_qkv_projections(embeddings *Tensor) (*Tensor, *Tensor, *Tensor) {
	d_in := embeddings.Shape[len(embeddings.Shape)-1]
	scale := 1.0 / sqrt(float64(d_in))
	W_q := randn(d_in, 64).Scale(scale)
	W_k := randn(d_in, 64).Scale(scale)
	W_v := randn(d_in, 64).Scale(scale)
	return matmul(embeddings, W_q), matmul(embeddings, W_k), matmul(embeddings, W_v)
}`

const pipelineScores = `func compute_attention_scores(Q, K *Tensor) *Tensor {
	d_k := float64(K.Shape[len(K.Shape)-1])
	return matmul(Q, K.TransposeLast2()).Scale(1.0 / sqrt(d_k))
}`

const pipelineWeights = `func compute_attention_weights(scores *Tensor) *Tensor {
	return softmax(scores)
}`

const pipelineAggregate = `func aggregate_values(weights, V *Tensor) *Tensor {
	return matmul(weights, V)
}`

// fullPipeline is a complete, correct student notebook.
func fullPipeline() *notebook.Notebook {
	return nb(
		`tokens := tokenize_text("the cat sat on the mat")`,
		`embeddings := create_embeddings(tokens)`,
		pipelineQKV,
		`Q, K, V := create_qkv_projections(embeddings)`,
		pipelineScores,
		`attention_scores := compute_attention_scores(Q, K)`,
		pipelineWeights,
		`attention_weights := compute_attention_weights(attention_scores)`,
		pipelineAggregate,
		`attended_output := aggregate_values(attention_weights, V)`,
	)
}

func TestPreludeBindingsResolve(t *testing.T) {
	// A replay over zero cells must still yield a working namespace: the
	// prelude has to evaluate cleanly on its own.
	ns, err := New(nb()).ExecuteUntil(-1)
	if err != nil {
		t.Fatalf("empty replay: %v", err)
	}
	for _, name := range preludeNames {
		if !ns.Has(name) {
			t.Errorf("prelude binding %s not resolvable", name)
		}
	}

	fn, ok := ns.Lookup("tokenize_text")
	if !ok {
		t.Fatal("tokenize_text not bound")
	}
	call, ok := fn.Interface().(func(string) []string)
	if !ok {
		t.Fatalf("tokenize_text has type %v", fn.Type())
	}
	if got := call("the cat"); len(got) != 2 {
		t.Errorf("tokenize_text(\"the cat\") = %v", got)
	}
}

func TestExecuteUntilAccumulates(t *testing.T) {
	e := New(nb(
		`tokens := tokenize_text("the cat sat on the mat")`,
		`embeddings := create_embeddings(tokens)`,
	))

	ns0, err := e.ExecuteUntil(0)
	if err != nil {
		t.Fatalf("ExecuteUntil(0): %v", err)
	}
	if !ns0.Has("tokens") {
		t.Error("namespace after cell 0 is missing tokens")
	}
	if ns0.Has("embeddings") {
		t.Error("namespace after cell 0 already has embeddings")
	}

	ns1, err := e.ExecuteUntil(1)
	if err != nil {
		t.Fatalf("ExecuteUntil(1): %v", err)
	}
	// Everything visible at an earlier target stays visible at a later one.
	for _, name := range []string{"tokens", "embeddings"} {
		if !ns1.Has(name) {
			t.Errorf("namespace after cell 1 is missing %s", name)
		}
	}

	emb, ok := ns1.Tensor("embeddings")
	if !ok {
		t.Fatal("embeddings is not a tensor")
	}
	if !emb.ShapeEquals(1, 6, 512) {
		t.Errorf("embeddings shape = %v, want [1 6 512]", emb.Shape)
	}
}

func TestExecuteUntilMemoizes(t *testing.T) {
	e := New(nb(`x := 1`, `y := 2`))
	ns1, err := e.ExecuteUntil(1)
	if err != nil {
		t.Fatal(err)
	}
	ns2, err := e.ExecuteUntil(1)
	if err != nil {
		t.Fatal(err)
	}
	if ns1 != ns2 {
		t.Error("repeat request was re-executed instead of served from cache")
	}
}

func TestExecuteUntilClampsTarget(t *testing.T) {
	e := New(nb(`x := 1`, `y := 2`))
	last, err := e.ExecuteUntil(1)
	if err != nil {
		t.Fatal(err)
	}
	for _, target := range []int{-1, 2, 999} {
		ns, err := e.ExecuteUntil(target)
		if err != nil {
			t.Fatalf("ExecuteUntil(%d): %v", target, err)
		}
		if ns != last {
			t.Errorf("ExecuteUntil(%d) did not clamp to the final cell", target)
		}
	}
}

func TestFailingCellIsIsolated(t *testing.T) {
	e := New(nb(
		`x := 41`,
		`this_is_not_defined(x)`,
		`y := x + 1`,
	))

	ns, err := e.ExecuteUntil(2)
	if err != nil {
		t.Fatalf("ExecuteUntil: %v", err)
	}
	if !ns.Has("x") {
		t.Error("binding from before the failing cell was lost")
	}
	if !ns.Has("y") {
		t.Error("cell after the failure did not execute")
	}

	v, ok := ns.Lookup("y")
	if !ok {
		t.Fatal("y not resolvable")
	}
	if got := v.Interface(); got != 42 {
		t.Errorf("y = %v, want 42", got)
	}
}

func TestSyntaxErrorCellIsIsolated(t *testing.T) {
	e := New(nb(
		`x := 1`,
		`func broken( {`,
		`y := 2`,
	))
	ns, err := e.ExecuteUntil(2)
	if err != nil {
		t.Fatalf("ExecuteUntil: %v", err)
	}
	if !ns.Has("x") || !ns.Has("y") {
		t.Errorf("bindings around the broken cell were lost: %v", ns.Names())
	}
}

func TestFullPipelineReplay(t *testing.T) {
	e := New(fullPipeline())
	ns, err := e.ExecuteUntil(-1)
	if err != nil {
		t.Fatalf("ExecuteUntil: %v", err)
	}

	shapes := map[string][]int{
		"embeddings":        {1, 6, 512},
		"Q":                 {1, 6, 64},
		"K":                 {1, 6, 64},
		"V":                 {1, 6, 64},
		"attention_scores":  {1, 6, 6},
		"attention_weights": {1, 6, 6},
		"attended_output":   {1, 6, 64},
	}
	for name, want := range shapes {
		tt, ok := ns.Tensor(name)
		if !ok {
			t.Errorf("%s missing from namespace", name)
			continue
		}
		if !tt.ShapeEquals(want...) {
			t.Errorf("%s shape = %v, want %v", name, tt.Shape, want)
		}
	}

	weights, _ := ns.Tensor("attention_weights")
	sums := weights.SumLast()
	ones := tensor.New([]float64{1, 1, 1, 1, 1, 1}, 1, 6)
	if !tensor.AllClose(sums, ones, 1e-9) {
		t.Errorf("attention weight rows do not sum to 1: %v", sums.Data)
	}
}

func TestReplayIsDeterministic(t *testing.T) {
	first, err := New(fullPipeline()).ExecuteUntil(-1)
	if err != nil {
		t.Fatal(err)
	}
	second, err := New(fullPipeline()).ExecuteUntil(-1)
	if err != nil {
		t.Fatal(err)
	}

	a, _ := first.Tensor("attended_output")
	b, _ := second.Tensor("attended_output")
	if !tensor.AllClose(a, b, 0) {
		t.Error("two replays of the same notebook diverged")
	}
}

func TestContextForFunction(t *testing.T) {
	e := New(fullPipeline())
	ns, err := e.ContextForFunction("compute_attention_weights")
	if err != nil {
		t.Fatalf("ContextForFunction: %v", err)
	}
	// The defining cell's context includes everything before it.
	if !ns.Has("attention_scores") {
		t.Error("context is missing attention_scores")
	}
	// Bindings from cells after the defining cell are not visible.
	if ns.Has("attention_weights") {
		t.Error("context leaked bindings from later cells")
	}

	if _, err := e.ContextForFunction("undefined_function"); err == nil {
		t.Error("expected error for undefined function")
	}
}

func TestFunctionWithContext(t *testing.T) {
	e := New(fullPipeline())
	fn, ns, err := e.FunctionWithContext("compute_attention_weights")
	if err != nil {
		t.Fatalf("FunctionWithContext: %v", err)
	}
	if ns == nil {
		t.Fatal("nil namespace")
	}

	call, ok := fn.Interface().(func(*tensor.Tensor) *tensor.Tensor)
	if !ok {
		t.Fatalf("binding has type %v, not func(*Tensor) *Tensor", fn.Type())
	}
	weights := call(tensor.Randn(1, 3, 3))
	if !weights.ShapeEquals(1, 3, 3) {
		t.Fatalf("weights shape = %v", weights.Shape)
	}
	sums := weights.SumLast()
	ones := tensor.New([]float64{1, 1, 1}, 1, 3)
	if !tensor.AllClose(sums, ones, 1e-9) {
		t.Errorf("rows do not sum to 1: %v", sums.Data)
	}
}

func TestFunctionUsableDespiteEarlierBrokenCell(t *testing.T) {
	e := New(nb(
		`tokens := tokenize_text("the cat sat on the mat")`,
		`embeddings := create_embeddings(tokens)`,
		`broken_helper(embeddings)`,
		pipelineWeights,
	))

	fn, ns, err := e.FunctionWithContext("compute_attention_weights")
	if err != nil {
		t.Fatalf("FunctionWithContext: %v", err)
	}
	if !ns.Has("embeddings") {
		t.Error("bindings before the broken cell were lost")
	}

	call, ok := fn.Interface().(func(*tensor.Tensor) *tensor.Tensor)
	if !ok {
		t.Fatalf("binding has type %v", fn.Type())
	}
	weights := call(tensor.Randn(1, 4, 4))
	if !weights.ShapeEquals(1, 4, 4) {
		t.Errorf("weights shape = %v", weights.Shape)
	}
}

func TestValidateContext(t *testing.T) {
	full, err := New(fullPipeline()).ExecuteUntil(-1)
	if err != nil {
		t.Fatal(err)
	}
	for _, fn := range RequiredFunctions {
		ok, missing := ValidateContext(fn, full)
		if !ok {
			t.Errorf("ValidateContext(%s) missing %v in full pipeline", fn, missing)
		}
	}

	empty, err := New(nb()).ExecuteUntil(-1)
	if err != nil {
		t.Fatal(err)
	}
	ok, missing := ValidateContext("aggregate_values", empty)
	if ok {
		t.Fatal("empty namespace validated for aggregate_values")
	}
	// create_embeddings comes from the prelude and is never missing.
	want := []string{"V", "attention_weights"}
	if diff := cmp.Diff(want, missing); diff != "" {
		t.Errorf("missing mismatch (-want +got):\n%s", diff)
	}
}

func TestSkipCell(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   bool
	}{
		{"empty", "", true},
		{"whitespace", "  \n\t", true},
		{"shell command", "!ls -la", true},
		{"magic command", "%time x := 1", true},
		{"self import", `import "attngrader/internal/grader"`, true},
		{"plain code", "x := 1", false},
		{"bang inside code", `x := "hello!"`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := skipCell(tt.source); got != tt.want {
				t.Errorf("skipCell(%q) = %v, want %v", tt.source, got, tt.want)
			}
		})
	}
}

func TestScanDefinedNames(t *testing.T) {
	src := `x := 1
a, b := split()
func helper(n int) int { return n }
var total int
const limit = 10
type pair struct{ x, y int }
	func indented_def(n int) int { return n }
_, c := two()`
	got := scanDefinedNames(src)

	want := map[string]bool{
		"x": true, "a": true, "b": true, "c": true,
		"helper": true, "total": true, "limit": true, "pair": true,
		"indented_def": true,
	}
	for name := range want {
		found := false
		for _, g := range got {
			if g == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("scanDefinedNames missed %s (got %v)", name, got)
		}
	}
	for _, g := range got {
		if g == "_" {
			t.Error("blank identifier must not be recorded")
		}
	}
}

func TestNamespaceNamesIncludePrelude(t *testing.T) {
	ns, err := New(nb(`x := 1`)).ExecuteUntil(0)
	if err != nil {
		t.Fatal(err)
	}
	names := ns.Names()
	has := func(want string) bool {
		for _, n := range names {
			if n == want {
				return true
			}
		}
		return false
	}
	for _, want := range []string{"x", "create_embeddings", "tokenize_text", "softmax"} {
		if !has(want) {
			t.Errorf("Names() missing %s: %v", want, names)
		}
	}
}
