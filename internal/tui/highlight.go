package tui

import (
	"regexp"
	"strings"
)

var (
	wordRe     = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)
	sentenceRe = regexp.MustCompile(`[^.!?]+(?:[.!?]+|$)`)
)

// highlightBestSentence renders text with the sentence sharing the most words
// with query highlighted. Whitespace runs are collapsed.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	var sentences []string
	for _, s := range sentenceRe.FindAllString(text, -1) {
		if s = strings.Join(strings.Fields(s), " "); s != "" {
			sentences = append(sentences, s)
		}
	}
	qTokens := tokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx, bestScore := -1, 0
	for i, s := range sentences {
		if score := overlap(qTokens, s); score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	if bestIdx >= 0 {
		sentences[bestIdx] = highlightStyle.Render(sentences[bestIdx])
	}
	return strings.Join(sentences, " ")
}

func tokenSet(s string) map[string]struct{} {
	tokens := wordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

// overlap counts distinct sentence words that also occur in the query.
func overlap(query map[string]struct{}, sentence string) int {
	score := 0
	for t := range tokenSet(sentence) {
		if _, ok := query[t]; ok {
			score++
		}
	}
	return score
}
