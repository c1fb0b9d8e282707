package conversation

import (
	"sync"

	"docchat/internal/domain"
)

// Memory is the ordered turn history of one session. It only grows, one
// question/answer exchange at a time, until Reset.
type Memory struct {
	mu    sync.RWMutex
	turns []domain.Turn
}

func NewMemory() *Memory { return &Memory{} }

// AppendExchange records a question and its answer as one update, so readers
// never observe a user turn without the assistant turn that follows it.
func (m *Memory) AppendExchange(question, answer string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns,
		domain.Turn{Role: domain.RoleUser, Text: question},
		domain.Turn{Role: domain.RoleAssistant, Text: answer},
	)
}

// Turns returns a copy of the history, oldest first.
func (m *Memory) Turns() []domain.Turn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Turn, len(m.turns))
	copy(out, m.turns)
	return out
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.turns)
}

func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = nil
}
