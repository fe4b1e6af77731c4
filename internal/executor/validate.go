package executor

import "sort"

// requiredContextVars maps each graded function to the bindings that must be
// present before it can be tested with real notebook data. Every entry also
// requires create_embeddings, standing in for the numeric helper bindings
// the prelude injects.
var requiredContextVars = map[string][]string{
	"create_qkv_projections":    {"embeddings", "create_embeddings"},
	"compute_attention_scores":  {"Q", "K", "create_embeddings"},
	"compute_attention_weights": {"attention_scores", "create_embeddings"},
	"aggregate_values":          {"attention_weights", "V", "create_embeddings"},
}

// RequiredFunctions lists the four graded pipeline stages in lesson order.
var RequiredFunctions = []string{
	"create_qkv_projections",
	"compute_attention_scores",
	"compute_attention_weights",
	"aggregate_values",
}

// ValidateContext checks that the namespace holds every variable the named
// function needs. The missing list is sorted for stable reporting. No side
// effects on the namespace.
func ValidateContext(functionName string, ns *Namespace) (bool, []string) {
	var missing []string
	for _, name := range requiredContextVars[functionName] {
		if !ns.Has(name) {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return len(missing) == 0, missing
}
