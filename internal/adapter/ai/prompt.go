package ai

import (
	"fmt"
	"strings"
)

// buildPrompt assembles the user message sent to the chat model. Retrieved
// document excerpts are prepended so the model answers from context only.
func buildPrompt(userPrompt string, contextChunks []string) string {
	if len(contextChunks) == 0 {
		return userPrompt
	}

	var b strings.Builder
	b.WriteString("Context from documents:\n\n")
	for i, chunk := range contextChunks {
		fmt.Fprintf(&b, "--- Excerpt %d ---\n%s\n\n", i+1, chunk)
	}
	b.WriteString("---\n\nQuestion: ")
	b.WriteString(userPrompt)
	b.WriteString("\n\nPlease answer the question based on the context provided above.")
	return b.String()
}
