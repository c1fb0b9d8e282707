package conversation

import (
	"strings"

	"docchat/internal/domain"
)

// Message is a turn as it is sent to a chat model.
type Message struct {
	Role    domain.Role
	Content string
}

// Messages serialises turns for prompt assembly, keeping their order.
// Surrounding whitespace is trimmed and empty turns are left out.
func Messages(turns []domain.Turn) []Message {
	out := make([]Message, 0, len(turns))
	for _, t := range turns {
		text := strings.TrimSpace(t.Text)
		if text == "" {
			continue
		}
		out = append(out, Message{Role: t.Role, Content: text})
	}
	return out
}

// Transcript renders turns as plain "User:" / "Assistant:" lines.
func Transcript(turns []domain.Turn) string {
	var b strings.Builder
	for _, m := range Messages(turns) {
		switch m.Role {
		case domain.RoleUser:
			b.WriteString("User: ")
		default:
			b.WriteString("Assistant: ")
		}
		b.WriteString(m.Content)
		b.WriteByte('\n')
	}
	return b.String()
}
