package llm

import (
	"crypto/sha256"
	"encoding/hex"
)

// Comparison results a verdict can carry.
const (
	ResultCorrect          = "correct"
	ResultPartiallyCorrect = "partially_correct"
	ResultIncorrect        = "incorrect"
	ResultUnknown          = "unknown"
	ResultError            = "error"
	ResultNotImplemented   = "not_implemented"
)

// Verdict is the structured outcome of comparing student code to a reference
// implementation. The JSON field names are the judge response schema and the
// cache payload shape.
type Verdict struct {
	ComparisonResult     string   `json:"comparison_result"`
	Score                int      `json:"score"`
	EducationalFeedback  string   `json:"educational_feedback"`
	Suggestions          []string `json:"suggestions"`
	UnderstandingCheck   []string `json:"understanding_check"`
	KeyConcepts          []string `json:"key_concepts,omitempty"`
	MathematicalAccuracy string   `json:"mathematical_accuracy,omitempty"`
	CommonMistakes       []string `json:"common_mistakes,omitempty"`
	FunctionName         string   `json:"function_name,omitempty"`
	Timestamp            string   `json:"timestamp,omitempty"`
}

// CacheKey produces the stable content hash identifying one comparison
// request. Identical (student, reference, function) triples share a key.
func CacheKey(studentCode, referenceCode, functionName string) string {
	h := sha256.New()
	h.Write([]byte(studentCode))
	h.Write([]byte{'|'})
	h.Write([]byte(referenceCode))
	h.Write([]byte{'|'})
	h.Write([]byte(functionName))
	return hex.EncodeToString(h.Sum(nil))
}

// TestCase is one judge-generated exercise for a graded function.
type TestCase struct {
	Description string `json:"description"`
	Input       string `json:"input"`
	Expected    string `json:"expected"`
}
