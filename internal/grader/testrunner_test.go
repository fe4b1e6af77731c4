package grader

import (
	"reflect"
	"strings"
	"testing"

	"attngrader/internal/attention"
	"attngrader/internal/executor"
	"attngrader/internal/notebook"
	"attngrader/internal/tensor"
)

// preludeNamespace returns a namespace with only the injected helper
// bindings, forcing the test runner onto synthesized inputs.
func preludeNamespace(t *testing.T) *executor.Namespace {
	t.Helper()
	ns, err := executor.New(&notebook.Notebook{Path: "empty.ipynb"}).ExecuteUntil(-1)
	if err != nil {
		t.Fatalf("empty replay: %v", err)
	}
	return ns
}

func TestRunFunctionTestsQKVProjections(t *testing.T) {
	ns := preludeNamespace(t)
	good := func(e *tensor.Tensor) (*tensor.Tensor, *tensor.Tensor, *tensor.Tensor) {
		return attention.CreateQKVProjections(e, 64)
	}

	res := RunFunctionTests(reflect.ValueOf(good), "create_qkv_projections", ns)
	if !res.Valid {
		t.Fatalf("correct projection rejected: %+v", res)
	}
	if res.UsedNotebookContext {
		t.Error("synthesized input reported as notebook context")
	}
	for _, name := range []string{"Q", "K", "V"} {
		shape := res.OutputShapes[name]
		if len(shape) != 3 || shape[2] != 64 {
			t.Errorf("%s shape = %v", name, shape)
		}
	}
	// embeddings was synthesized, so the context report names it.
	found := false
	for _, m := range res.MissingContext {
		if m == "embeddings" {
			found = true
		}
	}
	if !found {
		t.Errorf("MissingContext = %v, want embeddings listed", res.MissingContext)
	}
}

func TestRunFunctionTestsWrongShape(t *testing.T) {
	ns := preludeNamespace(t)
	wrong := func(e *tensor.Tensor) (*tensor.Tensor, *tensor.Tensor, *tensor.Tensor) {
		return tensor.Randn(1, 6, 32), tensor.Randn(1, 6, 32), tensor.Randn(1, 6, 32)
	}
	res := RunFunctionTests(reflect.ValueOf(wrong), "create_qkv_projections", ns)
	if res.Valid {
		t.Errorf("wrong projection dimension accepted: %+v", res)
	}
}

func TestRunFunctionTestsAttentionScores(t *testing.T) {
	ns := preludeNamespace(t)
	res := RunFunctionTests(reflect.ValueOf(attention.ComputeAttentionScores), "compute_attention_scores", ns)
	if !res.Valid {
		t.Fatalf("correct scores rejected: %+v", res)
	}
	if got := res.OutputShapes["scores"]; len(got) != 3 || got[1] != 6 || got[2] != 6 {
		t.Errorf("scores shape = %v", got)
	}
}

func TestRunFunctionTestsAttentionWeights(t *testing.T) {
	ns := preludeNamespace(t)

	res := RunFunctionTests(reflect.ValueOf(attention.ComputeAttentionWeights), "compute_attention_weights", ns)
	if !res.Valid {
		t.Fatalf("correct weights rejected: %+v", res)
	}
	if !res.WeightsSumToOne {
		t.Error("row sums not verified")
	}

	// Returning raw scores instead of a softmax fails the sum invariant.
	identity := func(s *tensor.Tensor) *tensor.Tensor { return s }
	res = RunFunctionTests(reflect.ValueOf(identity), "compute_attention_weights", ns)
	if res.Valid {
		t.Error("unnormalized weights accepted")
	}
	if res.WeightsSumToOne {
		t.Error("raw scores reported as summing to one")
	}
}

func TestRunFunctionTestsAggregateValues(t *testing.T) {
	ns := preludeNamespace(t)
	res := RunFunctionTests(reflect.ValueOf(attention.AggregateValues), "aggregate_values", ns)
	if !res.Valid {
		t.Fatalf("correct aggregation rejected: %+v", res)
	}
	if got := res.OutputShapes["output"]; len(got) != 3 || got[2] != 64 {
		t.Errorf("output shape = %v", got)
	}
}

func TestRunFunctionTestsPanicIsCaptured(t *testing.T) {
	ns := preludeNamespace(t)
	exploding := func(s *tensor.Tensor) *tensor.Tensor {
		panic("shape mismatch inside student code")
	}
	res := RunFunctionTests(reflect.ValueOf(exploding), "compute_attention_weights", ns)
	if res.Valid {
		t.Fatal("panicking function accepted")
	}
	if !strings.Contains(res.Error, "shape mismatch") {
		t.Errorf("Error = %q, want panic message", res.Error)
	}
}

func TestRunFunctionTestsWrongArity(t *testing.T) {
	ns := preludeNamespace(t)
	extraArg := func(a, b *tensor.Tensor) *tensor.Tensor { return a }
	res := RunFunctionTests(reflect.ValueOf(extraArg), "compute_attention_weights", ns)
	if res.Valid {
		t.Fatal("wrong arity accepted")
	}
	if res.Error == "" {
		t.Error("missing error for arity mismatch")
	}
}

func TestRunFunctionTestsNonTensorReturn(t *testing.T) {
	ns := preludeNamespace(t)
	wrongType := func(s *tensor.Tensor) int { return 42 }
	res := RunFunctionTests(reflect.ValueOf(wrongType), "compute_attention_weights", ns)
	if res.Valid {
		t.Fatal("non-tensor return accepted")
	}
}

func TestRunFunctionTestsUnknownFunction(t *testing.T) {
	ns := preludeNamespace(t)
	res := RunFunctionTests(reflect.ValueOf(func() {}), "mystery_function", ns)
	if res.Valid {
		t.Fatal("unknown function name accepted")
	}
	if !strings.Contains(res.Error, "unknown function") {
		t.Errorf("Error = %q", res.Error)
	}
}
