package summarizer

import (
	"cmp"
	"math"
	"regexp"
	"slices"
	"strings"
)

// DefaultSentences is used when a caller asks for zero or fewer sentences.
const DefaultSentences = 5

// Frequency ranks sentences by the normalised frequency of their content
// words (stopwords filtered).
type Frequency struct {
	tokenPattern    *regexp.Regexp
	sentencePattern *regexp.Regexp
	stopwords       map[string]struct{}
}

func NewFrequency() *Frequency {
	return &Frequency{
		tokenPattern:    regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`),
		sentencePattern: regexp.MustCompile(`[^.!?]+(?:[.!?]+|$)`),
		stopwords:       defaultStopwords(),
	}
}

type scored struct {
	idx   int
	score float64
}

// Summarize picks the maxSentences highest scoring sentences and returns them
// in document order.
func (s *Frequency) Summarize(text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = DefaultSentences
	}
	sentences := s.sentences(text)
	if len(sentences) == 0 {
		return strings.TrimSpace(text), nil
	}
	ranked := s.rank(sentences, nil)
	ranked = ranked[:min(maxSentences, len(ranked))]
	slices.SortFunc(ranked, func(a, b scored) int { return cmp.Compare(a.idx, b.idx) })

	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = sentences[r.idx]
	}
	return strings.Join(out, " "), nil
}

// Relevant returns up to maxSentences sentences of text that share at least
// one content word with query, best match first.
func (s *Frequency) Relevant(text, query string, maxSentences int) []string {
	if maxSentences <= 0 {
		maxSentences = DefaultSentences
	}
	terms := map[string]struct{}{}
	for _, tok := range s.tokens(query) {
		if _, stop := s.stopwords[tok]; !stop {
			terms[tok] = struct{}{}
		}
	}
	if len(terms) == 0 {
		return nil
	}
	sentences := s.sentences(text)
	var out []string
	for _, r := range s.rank(sentences, terms) {
		if r.score <= 0 || len(out) == maxSentences {
			break
		}
		out = append(out, sentences[r.idx])
	}
	return out
}

// rank scores sentences by word frequency. With terms set, only words in terms
// count and each match adds a full point on top of its frequency weight.
// The result is sorted by score, ties in document order.
func (s *Frequency) rank(sentences []string, terms map[string]struct{}) []scored {
	tokens := make([][]string, len(sentences))
	freq := map[string]float64{}
	for i, sent := range sentences {
		tokens[i] = s.tokens(sent)
		for _, tok := range tokens[i] {
			if _, ok := s.stopwords[tok]; ok {
				continue
			}
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = max(maxF, v)
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	scores := make([]scored, len(sentences))
	for i, toks := range tokens {
		score := 0.0
		for _, tok := range toks {
			w, ok := freq[tok]
			if !ok {
				continue
			}
			if terms != nil {
				if _, hit := terms[tok]; !hit {
					continue
				}
				w++
			}
			score += w
		}
		// length normalisation keeps long sentences from winning by size alone
		if l := float64(len(toks)); l > 0 {
			score /= math.Sqrt(l)
		}
		scores[i] = scored{i, score}
	}
	slices.SortStableFunc(scores, func(a, b scored) int { return cmp.Compare(b.score, a.score) })
	return scores
}

func (s *Frequency) sentences(text string) []string {
	var out []string
	for _, m := range s.sentencePattern.FindAllString(text, -1) {
		if m = strings.Join(strings.Fields(m), " "); m != "" {
			out = append(out, m)
		}
	}
	return out
}

func (s *Frequency) tokens(text string) []string {
	return s.tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "its", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "which", "who", "whom", "how", "why", "when", "where", "do", "does", "did", "i", "you", "we", "they", "me", "my", "your", "tell",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
