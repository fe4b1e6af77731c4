// Package attention holds the reference implementation of the four-stage
// scaled dot-product attention pipeline being graded, together with the
// canonical source snippets shown to the LLM judge. The math itself is the
// well-known formula; the grader treats this package as a fixed collaborator.
package attention

import (
	"math"

	"attngrader/internal/tensor"
)

// DModel is the projection dimension used throughout the tutorial.
const DModel = 64

// EmbeddingDim is the input embedding dimension.
const EmbeddingDim = 512

// SeqLen is the length of the canonical tutorial sentence
// ("the cat sat on the mat").
const SeqLen = 6

// CreateQKVProjections projects input embeddings into Query, Key and Value
// spaces through three independent random linear maps (no bias).
func CreateQKVProjections(embeddings *tensor.Tensor, dModel int) (q, k, v *tensor.Tensor) {
	din := embeddings.Shape[embeddings.Dims()-1]
	scale := 1.0 / math.Sqrt(float64(din))
	wq := tensor.Randn(din, dModel).Scale(scale)
	wk := tensor.Randn(din, dModel).Scale(scale)
	wv := tensor.Randn(din, dModel).Scale(scale)
	return tensor.MatMul(embeddings, wq), tensor.MatMul(embeddings, wk), tensor.MatMul(embeddings, wv)
}

// ComputeAttentionScores computes (Q x K^T) / sqrt(d_k).
func ComputeAttentionScores(q, k *tensor.Tensor) *tensor.Tensor {
	dk := float64(k.Shape[k.Dims()-1])
	return tensor.MatMul(q, k.TransposeLast2()).Scale(1.0 / math.Sqrt(dk))
}

// ComputeAttentionWeights normalizes scores into a probability distribution
// per query position.
func ComputeAttentionWeights(scores *tensor.Tensor) *tensor.Tensor {
	return tensor.Softmax(scores)
}

// AggregateValues blends value vectors by their attention weights.
func AggregateValues(weights, v *tensor.Tensor) *tensor.Tensor {
	return tensor.MatMul(weights, v)
}

// Mechanism runs the complete pipeline and returns the attended output and
// the attention weights.
func Mechanism(embeddings *tensor.Tensor) (output, weights *tensor.Tensor) {
	q, k, v := CreateQKVProjections(embeddings, DModel)
	scores := ComputeAttentionScores(q, k)
	weights = ComputeAttentionWeights(scores)
	return AggregateValues(weights, v), weights
}

// referenceSources are the canonical implementations embedded into judge
// prompts. They mirror the functions above but use the identifiers students
// see inside the notebook environment.
var referenceSources = map[string]string{
	"create_qkv_projections": `func create_qkv_projections(embeddings *Tensor) (*Tensor, *Tensor, *Tensor) {
	// Three independent linear maps give three views of the same tokens:
	// Q "what am I looking for", K "what do I offer", V "what do I carry".
	d_in := embeddings.Shape[len(embeddings.Shape)-1]
	scale := 1.0 / math.Sqrt(float64(d_in))
	W_q := randn(d_in, 64).Scale(scale)
	W_k := randn(d_in, 64).Scale(scale)
	W_v := randn(d_in, 64).Scale(scale)
	Q := matmul(embeddings, W_q)
	K := matmul(embeddings, W_k)
	V := matmul(embeddings, W_v)
	return Q, K, V
}`,
	"compute_attention_scores": `func compute_attention_scores(Q, K *Tensor) *Tensor {
	// scores = (Q x K^T) / sqrt(d_k); the scaling keeps the softmax input
	// in a range where gradients stay useful.
	d_k := float64(K.Shape[len(K.Shape)-1])
	return matmul(Q, K.TransposeLast2()).Scale(1.0 / math.Sqrt(d_k))
}`,
	"compute_attention_weights": `func compute_attention_weights(scores *Tensor) *Tensor {
	// Softmax over the last axis turns each row of raw scores into a
	// probability distribution over key positions.
	return softmax(scores)
}`,
	"aggregate_values": `func aggregate_values(weights, V *Tensor) *Tensor {
	// Each output position is a weighted blend of all value vectors.
	return matmul(weights, V)
}`,
}

// ReferenceSource returns the canonical source for one of the four required
// functions, or an explanatory placeholder for unknown names.
func ReferenceSource(functionName string) string {
	if src, ok := referenceSources[functionName]; ok {
		return src
	}
	return "// no reference implementation for " + functionName
}
