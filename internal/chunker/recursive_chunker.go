package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"docchat/internal/domain"
)

// DefaultSeparators are tried from coarsest to finest. The empty separator
// cuts at rune level and is always the last resort.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// RecursiveChunker splits text on a prioritised list of separators and merges
// the pieces into overlapping segments of bounded length. Lengths are counted
// in runes.
type RecursiveChunker struct {
	chunkSize  int
	overlap    int
	separators []string
}

// NewRecursiveChunker validates the size parameters and returns a chunker.
// A nil or empty separator list selects DefaultSeparators.
func NewRecursiveChunker(chunkSize, overlap int, separators []string) (*RecursiveChunker, error) {
	if err := validate(chunkSize, overlap); err != nil {
		return nil, err
	}
	if len(separators) == 0 {
		separators = DefaultSeparators
	}
	seps := make([]string, len(separators))
	copy(seps, separators)
	return &RecursiveChunker{chunkSize: chunkSize, overlap: overlap, separators: seps}, nil
}

// Chunk implements domain.Chunker.
func (c *RecursiveChunker) Chunk(text string) ([]domain.Segment, error) {
	return split(text, c.chunkSize, c.overlap, c.separators), nil
}

// Split chunks text with DefaultSeparators.
func Split(text string, chunkSize, overlap int) ([]domain.Segment, error) {
	if err := validate(chunkSize, overlap); err != nil {
		return nil, err
	}
	return split(text, chunkSize, overlap, DefaultSeparators), nil
}

func validate(chunkSize, overlap int) error {
	if chunkSize <= 0 {
		return fmt.Errorf("%w: chunk size %d", domain.ErrInvalidChunkParams, chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return fmt.Errorf("%w: overlap %d with chunk size %d", domain.ErrInvalidChunkParams, overlap, chunkSize)
	}
	return nil
}

// split merges units greedily. Every unit is at most chunkSize-overlap runes,
// so a unit always fits behind the overlap prefix, and a segment is only
// closed once it holds more than overlap runes.
func split(text string, chunkSize, overlap int, separators []string) []domain.Segment {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	units := splitUnits(text, separators, chunkSize-overlap)

	var (
		segments []domain.Segment
		cur      strings.Builder
		curLen   int
		start    int // rune offset of the current segment
		consumed int // runes of text merged so far
		fresh    = true
	)
	emit := func() {
		segments = append(segments, domain.Segment{
			Text:   cur.String(),
			Index:  len(segments),
			Offset: start,
		})
	}
	for _, u := range units {
		n := utf8.RuneCountInString(u)
		if !fresh && curLen+n > chunkSize {
			emit()
			prefix := lastRunes(cur.String(), overlap)
			cur.Reset()
			cur.WriteString(prefix)
			curLen = utf8.RuneCountInString(prefix)
			start = consumed - curLen
			fresh = true
		}
		cur.WriteString(u)
		curLen += n
		consumed += n
		fresh = false
	}
	if !fresh {
		emit()
	}
	return segments
}

// splitUnits cuts text into pieces of at most limit runes, preferring the
// coarsest separator present. Separators stay attached to the preceding piece
// so the pieces concatenate back to text.
func splitUnits(text string, separators []string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	for i, sep := range separators {
		if sep == "" {
			break
		}
		if !strings.Contains(text, sep) {
			continue
		}
		var units []string
		for _, piece := range strings.SplitAfter(text, sep) {
			if piece == "" {
				continue
			}
			if utf8.RuneCountInString(piece) <= limit {
				units = append(units, piece)
				continue
			}
			units = append(units, splitUnits(piece, separators[i+1:], limit)...)
		}
		return units
	}
	return cutRunes(text, limit)
}

func cutRunes(text string, limit int) []string {
	runes := []rune(text)
	out := make([]string, 0, len(runes)/limit+1)
	for len(runes) > 0 {
		n := min(limit, len(runes))
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	return out
}

func lastRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
