package attention

import (
	"regexp"
	"strings"

	"attngrader/internal/tensor"
)

var tokenPattern = regexp.MustCompile(`\w+|[^\w\s]`)

// TokenizeText splits text into lowercase word-level tokens. The canonical
// tutorial sentence "the cat sat on the mat" yields exactly six tokens, which
// the expected tensor shapes are keyed to.
func TokenizeText(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// TokenizeTextSpecial tokenizes like TokenizeText but brackets the sequence
// with <BOS> and <EOS> markers, for lessons that cover special tokens.
func TokenizeTextSpecial(text string) []string {
	tokens := []string{"<BOS>"}
	tokens = append(tokens, TokenizeText(text)...)
	return append(tokens, "<EOS>")
}

// CreateEmbeddings produces random embeddings of shape [1, len(tokens), 512]
// for the given tokens. The tutorial uses random embeddings; real models
// would look up trained ones.
func CreateEmbeddings(tokens []string) *tensor.Tensor {
	return tensor.Randn(1, len(tokens), EmbeddingDim)
}

// CreateEmbeddingsDim is CreateEmbeddings with an explicit embedding
// dimension.
func CreateEmbeddingsDim(tokens []string, dim int) *tensor.Tensor {
	return tensor.Randn(1, len(tokens), dim)
}
