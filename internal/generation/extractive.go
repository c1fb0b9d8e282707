package generation

import (
	"context"
	"strings"

	"docchat/internal/domain"
)

// NoAnswer is returned by Extractive when no passage mentions the question.
const NoAnswer = "I could not find anything about that in the documents."

// Ranker picks the sentences of a text most relevant to a query.
type Ranker interface {
	Relevant(text, query string, maxSentences int) []string
}

// Extractive answers without a language model by quoting the retrieved
// sentences that best match the question.
type Extractive struct {
	ranker       Ranker
	maxSentences int
}

func NewExtractive(ranker Ranker, maxSentences int) *Extractive {
	if maxSentences <= 0 {
		maxSentences = 3
	}
	return &Extractive{ranker: ranker, maxSentences: maxSentences}
}

func (e *Extractive) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	texts := make([]string, len(req.Context))
	for i, s := range req.Context {
		texts[i] = s.Segment.Text
	}
	sentences := e.ranker.Relevant(strings.Join(texts, "\n\n"), req.Question, e.maxSentences)
	if len(sentences) == 0 {
		return NoAnswer, nil
	}
	return strings.Join(sentences, " "), nil
}

var _ domain.Generator = (*Extractive)(nil)
