package summarizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `Go is a statically typed language. Goroutines make concurrency cheap in Go.
The weather was pleasant yesterday. Channels connect goroutines in Go programs!
Bananas are yellow`

func TestSummarize_KeepsDocumentOrder(t *testing.T) {
	s := NewFrequency()
	got, err := s.Summarize(sample, 2)
	require.NoError(t, err)
	assert.Equal(t, "Goroutines make concurrency cheap in Go. Channels connect goroutines in Go programs!", got)
}

func TestSummarize_EdgeCases(t *testing.T) {
	s := NewFrequency()

	got, err := s.Summarize("   ", 3)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.Summarize("no terminal punctuation here", 0)
	require.NoError(t, err)
	assert.Equal(t, "no terminal punctuation here", got)

	got, err = s.Summarize("One. Two. Three.", 10)
	require.NoError(t, err)
	assert.Equal(t, "One. Two. Three.", got)
}

func TestRelevant(t *testing.T) {
	s := NewFrequency()

	got := s.Relevant(sample, "What are bananas?", 3)
	assert.Equal(t, []string{"Bananas are yellow"}, got)

	got = s.Relevant(sample, "How do channels work?", 1)
	assert.Equal(t, []string{"Channels connect goroutines in Go programs!"}, got)

	assert.Empty(t, s.Relevant(sample, "What is it?", 3), "only stopwords in the question")
	assert.Empty(t, s.Relevant(sample, "quantum chromodynamics", 3))
}
