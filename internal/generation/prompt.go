// Package generation turns retrieved context and conversation history into
// an answer.
package generation

import (
	"fmt"
	"strings"

	"docchat/internal/domain"
)

const preamble = `You answer questions about the user's documents.
Use only the numbered context passages below and the conversation so far.
If the context does not contain the answer, say that you don't know instead of guessing.`

// SystemPrompt renders the instructions followed by the retrieved passages,
// numbered in rank order.
func SystemPrompt(sources []domain.SearchResult) string {
	var b strings.Builder
	b.WriteString(preamble)
	b.WriteString("\n\nContext:\n")
	if len(sources) == 0 {
		b.WriteString("(no passages retrieved)\n")
	}
	for i, s := range sources {
		fmt.Fprintf(&b, "\n[%d] %s\n", i+1, strings.TrimSpace(s.Segment.Text))
	}
	return b.String()
}
