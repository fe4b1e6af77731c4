package grader

import (
	"fmt"
	"reflect"

	"attngrader/internal/executor"
	"attngrader/internal/tensor"
)

// TensorResult is the shape/value verdict for one student function. An
// invocation failure of any kind lands in Error with Valid=false; the test
// runner never lets a student function crash the grading run.
type TensorResult struct {
	Valid               bool             `json:"valid"`
	Error               string           `json:"error,omitempty"`
	OutputShapes        map[string][]int `json:"output_shapes,omitempty"`
	InputShapes         map[string][]int `json:"input_shapes,omitempty"`
	WeightsSumToOne     bool             `json:"weights_sum_to_one,omitempty"`
	UsedNotebookContext bool             `json:"used_notebook_context"`
	MissingContext      []string         `json:"missing_context,omitempty"`
}

// Default tensor dimensions for synthesized inputs when the notebook did not
// produce real ones: the canonical six-token sentence with 512-dim
// embeddings projected to 64.
const (
	fallbackSeqLen   = 6
	fallbackDIn      = 512
	fallbackDModel   = 64
	weightsTolerance = 1e-6
)

// RunFunctionTests invokes a located student function with
// namespace-supplied tensors where available, synthesized fallbacks
// otherwise, and checks the per-stage output shape and value invariants.
func RunFunctionTests(fn reflect.Value, functionName string, ns *executor.Namespace) *TensorResult {
	_, missing := executor.ValidateContext(functionName, ns)

	var res *TensorResult
	switch functionName {
	case "create_qkv_projections":
		res = testQKVProjections(fn, ns)
	case "compute_attention_scores":
		res = testAttentionScores(fn, ns)
	case "compute_attention_weights":
		res = testAttentionWeights(fn, ns)
	case "aggregate_values":
		res = testAggregateValues(fn, ns)
	default:
		res = &TensorResult{Valid: false, Error: fmt.Sprintf("unknown function type: %s", functionName)}
	}
	res.MissingContext = missing
	return res
}

func testQKVProjections(fn reflect.Value, ns *executor.Namespace) *TensorResult {
	embeddings, fromContext := ns.Tensor("embeddings")
	if !fromContext {
		embeddings = tensor.Randn(1, fallbackSeqLen, fallbackDIn)
	}

	outs, err := callTensorFunc(fn, 3, embeddings)
	if err != nil {
		return &TensorResult{Valid: false, Error: err.Error(), UsedNotebookContext: fromContext}
	}
	q, k, v := outs[0], outs[1], outs[2]

	want := []int{1, fallbackSeqLen, fallbackDModel}
	valid := q.ShapeEquals(want...) && k.ShapeEquals(q.Shape...) && v.ShapeEquals(q.Shape...)
	return &TensorResult{
		Valid:               valid,
		OutputShapes:        map[string][]int{"Q": q.Shape, "K": k.Shape, "V": v.Shape},
		InputShapes:         map[string][]int{"embeddings": embeddings.Shape},
		UsedNotebookContext: fromContext,
	}
}

func testAttentionScores(fn reflect.Value, ns *executor.Namespace) *TensorResult {
	q, haveQ := ns.Tensor("Q")
	k, haveK := ns.Tensor("K")
	fromContext := haveQ && haveK
	if !fromContext {
		q = tensor.Randn(1, fallbackSeqLen, fallbackDModel)
		k = tensor.Randn(1, fallbackSeqLen, fallbackDModel)
	}

	outs, err := callTensorFunc(fn, 1, q, k)
	if err != nil {
		return &TensorResult{Valid: false, Error: err.Error(), UsedNotebookContext: fromContext}
	}
	scores := outs[0]

	return &TensorResult{
		Valid:               scores.ShapeEquals(1, fallbackSeqLen, fallbackSeqLen),
		OutputShapes:        map[string][]int{"scores": scores.Shape},
		InputShapes:         map[string][]int{"Q": q.Shape, "K": k.Shape},
		UsedNotebookContext: fromContext,
	}
}

func testAttentionWeights(fn reflect.Value, ns *executor.Namespace) *TensorResult {
	scores, fromContext := ns.Tensor("attention_scores")
	if !fromContext {
		scores = tensor.Randn(1, fallbackSeqLen, fallbackSeqLen)
	}

	outs, err := callTensorFunc(fn, 1, scores)
	if err != nil {
		return &TensorResult{Valid: false, Error: err.Error(), UsedNotebookContext: fromContext}
	}
	weights := outs[0]

	shapeOK := weights.ShapeEquals(1, fallbackSeqLen, fallbackSeqLen)
	sumOK := false
	nonNegative := false
	if shapeOK {
		rowSums := weights.SumLast()
		ones := tensor.New([]float64{1, 1, 1, 1, 1, 1}, 1, fallbackSeqLen)
		sumOK = tensor.AllClose(rowSums, ones, weightsTolerance)
		nonNegative = weights.Min() >= 0
	}

	return &TensorResult{
		Valid:               shapeOK && sumOK && nonNegative,
		OutputShapes:        map[string][]int{"weights": weights.Shape},
		InputShapes:         map[string][]int{"scores": scores.Shape},
		WeightsSumToOne:     sumOK,
		UsedNotebookContext: fromContext,
	}
}

func testAggregateValues(fn reflect.Value, ns *executor.Namespace) *TensorResult {
	weights, haveW := ns.Tensor("attention_weights")
	v, haveV := ns.Tensor("V")
	fromContext := haveW && haveV
	if !fromContext {
		weights = tensor.Softmax(tensor.Randn(1, fallbackSeqLen, fallbackSeqLen))
		v = tensor.Randn(1, fallbackSeqLen, fallbackDModel)
	}

	outs, err := callTensorFunc(fn, 1, weights, v)
	if err != nil {
		return &TensorResult{Valid: false, Error: err.Error(), UsedNotebookContext: fromContext}
	}
	output := outs[0]

	return &TensorResult{
		Valid:               output.ShapeEquals(1, fallbackSeqLen, fallbackDModel),
		OutputShapes:        map[string][]int{"output": output.Shape},
		InputShapes:         map[string][]int{"weights": weights.Shape, "V": v.Shape},
		UsedNotebookContext: fromContext,
	}
}

// callTensorFunc invokes a student function with tensor arguments and
// asserts it returns wantOut tensor values. Panics inside student code
// (shape mismatches, nil dereferences) are converted into errors.
func callTensorFunc(fn reflect.Value, wantOut int, args ...*tensor.Tensor) (outs []*tensor.Tensor, err error) {
	defer func() {
		if r := recover(); r != nil {
			outs = nil
			err = fmt.Errorf("function call failed: %v", r)
		}
	}()

	if !fn.IsValid() || fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("binding is not callable (kind %s)", fn.Kind())
	}
	t := fn.Type()
	if t.NumIn() != len(args) {
		return nil, fmt.Errorf("expected %d parameters, function takes %d", len(args), t.NumIn())
	}

	in := make([]reflect.Value, len(args))
	for i, a := range args {
		in[i] = reflect.ValueOf(a)
	}

	results := fn.Call(in)
	if len(results) != wantOut {
		return nil, fmt.Errorf("expected %d return values, got %d", wantOut, len(results))
	}

	outs = make([]*tensor.Tensor, len(results))
	for i, r := range results {
		t, ok := r.Interface().(*tensor.Tensor)
		if !ok || t == nil {
			return nil, fmt.Errorf("return value %d is not a tensor", i)
		}
		outs[i] = t
	}
	return outs, nil
}
