package llm

import (
	"encoding/json"
	"fmt"
)

// PromptTemplates builds the educational prompts sent to the judge. The
// templates instruct the model to answer with the fixed verdict schema;
// parsing still tolerates models that ignore the instruction.
type PromptTemplates struct {
	// Style is the explanation register, e.g. "detailed" or "concise".
	Style string
}

// NewPromptTemplates creates templates with the given explanation style.
func NewPromptTemplates(style string) *PromptTemplates {
	if style == "" {
		style = "detailed"
	}
	return &PromptTemplates{Style: style}
}

// CodeComparison builds the prompt comparing a student implementation
// against the reference. Extra context (test inputs, observed shapes) is
// embedded as JSON when present.
func (p *PromptTemplates) CodeComparison(studentCode, referenceCode, functionName string, extra map[string]interface{}) string {
	contextInfo := ""
	if len(extra) > 0 {
		if encoded, err := json.MarshalIndent(extra, "", "  "); err == nil {
			contextInfo = fmt.Sprintf("\nAdditional Context:\n%s\n", encoded)
		}
	}

	return fmt.Sprintf(`You are an expert educator helping students learn attention mechanisms in deep learning.
Your role is to provide educational feedback that helps students understand concepts rather than just identifying errors.

TASK: Compare the student's implementation of '%s' against the reference implementation and provide educational feedback.

STUDENT CODE:
`+"```go\n%s\n```"+`

REFERENCE IMPLEMENTATION:
`+"```go\n%s\n```"+`
%s
EVALUATION CRITERIA:
1. Correctness: Does the implementation produce correct results?
2. Understanding: Does the code demonstrate understanding of attention mechanisms?
3. Code Quality: Is the code well-structured and readable?
4. Mathematical Accuracy: Are the mathematical operations correct?

RESPONSE FORMAT:
Respond with a JSON object of the following structure:
{
    "comparison_result": "correct|partially_correct|incorrect",
    "score": <number 0-100>,
    "educational_feedback": "<detailed explanation focusing on learning>",
    "suggestions": ["<specific improvement suggestion 1>", "<suggestion 2>"],
    "understanding_check": ["<question to verify understanding>"],
    "key_concepts": ["<concept 1>", "<concept 2>"],
    "mathematical_accuracy": "<assessment of mathematical correctness>",
    "common_mistakes": ["<if any common mistakes are present>"]
}

EDUCATIONAL FOCUS:
- Explain WHY something is correct or incorrect, not just WHAT is wrong
- Connect implementation details to attention mechanism concepts
- Provide learning opportunities rather than just corrections
- Use %s explanations appropriate for intermediate level students
- Help the student understand the mathematical intuition behind the operations`,
		functionName, studentCode, referenceCode, contextInfo, p.Style)
}

// ConceptExplanation builds a prompt asking for an explanation of an
// attention concept at the given student level.
func (p *PromptTemplates) ConceptExplanation(concept, level string) string {
	return fmt.Sprintf(`You are an expert educator explaining attention mechanisms to students. Provide a clear, educational explanation of the concept '%s' at a %s level.

REQUIREMENTS:
- Use %s language
- Include mathematical intuition where appropriate
- Provide concrete examples when helpful
- Connect to the broader context of attention mechanisms
- Focus on building understanding step by step

Please explain '%s' in a way that helps the student build intuitive understanding of how attention mechanisms work.`,
		concept, level, p.Style, concept)
}

// TestGeneration builds a prompt asking for educational test cases for one
// graded function.
func (p *PromptTemplates) TestGeneration(functionName, functionSignature string) string {
	return fmt.Sprintf(`Generate educational test cases for the attention mechanism function '%s'.

FUNCTION SIGNATURE:
%s

Create test cases that help students understand:
1. Basic functionality
2. Edge cases
3. Expected input/output shapes
4. Mathematical properties (e.g., attention weights summing to 1)

Provide test cases as a JSON array of objects with "description", "input" and "expected" fields.`,
		functionName, functionSignature)
}
