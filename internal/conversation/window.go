package conversation

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"docchat/internal/domain"
)

// TokenCounter counts model tokens in a text.
type TokenCounter interface {
	Count(text string) int
}

// TiktokenCounter counts tokens with a tiktoken encoding.
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the named encoding, cl100k_base when empty.
func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %q: %w", encoding, err)
	}
	return &TiktokenCounter{encoding: enc}, nil
}

func (c *TiktokenCounter) Count(text string) int {
	if c == nil || c.encoding == nil {
		return 0
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// Window limits how much history is handed to the generator. Zero limits
// mean unlimited. Memory itself is never truncated.
type Window struct {
	MaxTurns  int
	MaxTokens int
	Counter   TokenCounter
}

// Unlimited reports whether Apply returns its input unchanged.
func (w Window) Unlimited() bool {
	return w.MaxTurns <= 0 && (w.MaxTokens <= 0 || w.Counter == nil)
}

// Apply drops whole exchanges from the front of turns until the limits hold.
// The latest exchange is always kept, even when it alone exceeds a limit.
func (w Window) Apply(turns []domain.Turn) []domain.Turn {
	if w.Unlimited() || len(turns) <= 2 {
		return turns
	}
	tokens := 0
	counts := make([]int, len(turns))
	if w.MaxTokens > 0 && w.Counter != nil {
		for i, t := range turns {
			counts[i] = w.Counter.Count(t.Text)
			tokens += counts[i]
		}
	}

	start := 0
	for len(turns)-start > 2 && w.exceeds(len(turns)-start, tokens) {
		tokens -= counts[start] + counts[start+1]
		start += 2
	}
	return turns[start:]
}

func (w Window) exceeds(turns, tokens int) bool {
	if w.MaxTurns > 0 && turns > w.MaxTurns {
		return true
	}
	return w.MaxTokens > 0 && w.Counter != nil && tokens > w.MaxTokens
}
