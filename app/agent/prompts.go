package agent

import (
	"fmt"
	"strings"

	"coursebot/types"
)

// NoContextConfidence is reported whenever nothing in the corpus matched the
// question, whatever the model says.
const NoContextConfidence = 0.3

const systemRole = `You are a teaching assistant for university courses. Answer the student's question clearly and accurately.
Do not add introductions like "Of course!" or "Here's the answer:".`

// PromptBuilder turns a question and its retrieved chunks into a generation
// prompt. Which builder runs depends only on whether retrieval found
// anything.
type PromptBuilder interface {
	Build(question string, retrieved []types.RetrievedChunk) string
}

func selectPrompt(retrieved []types.RetrievedChunk) PromptBuilder {
	if len(retrieved) == 0 {
		return noContextPrompt{}
	}
	return contextPrompt{}
}

type noContextPrompt struct{}

func (noContextPrompt) Build(question string, _ []types.RetrievedChunk) string {
	return fmt.Sprintf(`%s

None of the uploaded course materials cover this question.
Start your answer by saying plainly that no relevant course material was found.
After that you may give a short general explanation from common reference knowledge, and say that it does not come from the course materials.

Question:
%s

Answer:`, systemRole, question)
}

type contextPrompt struct{}

func (contextPrompt) Build(question string, retrieved []types.RetrievedChunk) string {
	return fmt.Sprintf(`%s

Use only the course material below. Each excerpt starts with a reference tag.
Answer directly and follow this structure:
1. Definition: one or two sentences.
2. Explanation: how and why it works.
3. Key points: a short bulleted list.
4. Formulas: only if the material contains relevant ones.
5. Applications: only if the material mentions them.
Finish with a "Sources" section listing the reference tags you used.

Course material:
%s

Question:
%s

Answer:`, systemRole, buildContext(retrieved), question)
}

// buildContext keeps the retrieval order, best match first.
func buildContext(retrieved []types.RetrievedChunk) string {
	parts := make([]string, 0, len(retrieved))
	for _, r := range retrieved {
		parts = append(parts, fmt.Sprintf("[Ref: %s, Page %d]:\n%s", r.MaterialTitle, r.PageNumber, r.ChunkText))
	}
	return strings.Join(parts, "\n\n---\n\n")
}
