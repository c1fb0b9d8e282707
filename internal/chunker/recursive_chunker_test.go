package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/domain"
)

func runeLen(s string) int { return utf8.RuneCountInString(s) }

func reconstruct(segments []domain.Segment, overlap int) string {
	var sb strings.Builder
	for i, s := range segments {
		if i == 0 {
			sb.WriteString(s.Text)
			continue
		}
		sb.WriteString(string([]rune(s.Text)[overlap:]))
	}
	return sb.String()
}

func assertSegmentProperties(t *testing.T, text string, segments []domain.Segment, chunkSize, overlap int) {
	t.Helper()
	require.NotEmpty(t, segments)
	for i, s := range segments {
		assert.LessOrEqual(t, runeLen(s.Text), chunkSize, "segment %d too long", i)
		assert.Equal(t, i, s.Index)
		src := []rune(text)
		assert.Equal(t, s.Text, string(src[s.Offset:s.Offset+runeLen(s.Text)]), "segment %d offset", i)
	}
	for i := 0; i+1 < len(segments); i++ {
		prev := []rune(segments[i].Text)
		next := []rune(segments[i+1].Text)
		require.Greater(t, len(prev), overlap)
		assert.Equal(t, string(prev[len(prev)-overlap:]), string(next[:overlap]), "overlap between %d and %d", i, i+1)
	}
	assert.Equal(t, text, reconstruct(segments, overlap))
}

func TestSplit_Properties(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		chunkSize int
		overlap   int
	}{
		{name: "words", text: strings.Repeat("abcd ", 500), chunkSize: 1000, overlap: 200},
		{name: "paragraphs", text: strings.Repeat("First line of a paragraph.\nSecond line.\n\n", 40), chunkSize: 120, overlap: 30},
		{name: "no overlap", text: strings.Repeat("lorem ipsum dolor ", 30), chunkSize: 50, overlap: 0},
		{name: "single long token", text: strings.Repeat("x", 250), chunkSize: 100, overlap: 10},
		{name: "multibyte", text: strings.Repeat("日本語のテキスト です。\n", 30), chunkSize: 40, overlap: 8},
		{name: "leading and trailing whitespace", text: "\n\n  hello world  \n\n", chunkSize: 5, overlap: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segments, err := Split(tt.text, tt.chunkSize, tt.overlap)
			require.NoError(t, err)
			assertSegmentProperties(t, tt.text, segments, tt.chunkSize, tt.overlap)
		})
	}
}

func TestSplit_ScenarioThreeSegments(t *testing.T) {
	text := strings.Repeat("abcd ", 500)
	require.Equal(t, 2500, len(text))

	segments, err := Split(text, 1000, 200)
	require.NoError(t, err)
	require.Len(t, segments, 3)

	assert.Equal(t, 1000, runeLen(segments[0].Text))
	assert.Equal(t, 1000, runeLen(segments[1].Text))
	assert.Equal(t, 900, runeLen(segments[2].Text))
	assert.Equal(t, 800, segments[1].Offset)
	assert.Equal(t, 1600, segments[2].Offset)
}

func TestSplit_KeepsSemanticUnits(t *testing.T) {
	text := "para one is here.\n\npara two is a bit longer than one.\n\nthree"
	segments, err := Split(text, 30, 5)
	require.NoError(t, err)
	require.Len(t, segments, 3)

	// The first paragraph fits and is not cut mid-word.
	assert.Equal(t, "para one is here.\n\npara two ", segments[0].Text)
	assert.True(t, strings.HasSuffix(segments[2].Text, "three"))
	assertSegmentProperties(t, text, segments, 30, 5)
}

func TestSplit_HardTruncatesLongToken(t *testing.T) {
	segments, err := Split(strings.Repeat("x", 25), 10, 3)
	require.NoError(t, err)
	for _, s := range segments {
		assert.LessOrEqual(t, runeLen(s.Text), 10)
	}
	assert.Equal(t, strings.Repeat("x", 25), reconstruct(segments, 3))
}

func TestSplit_EmptyInput(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\n\t"} {
		segments, err := Split(text, 100, 10)
		require.NoError(t, err)
		assert.Empty(t, segments)
	}
}

func TestSplit_InvalidParams(t *testing.T) {
	tests := []struct {
		name      string
		chunkSize int
		overlap   int
	}{
		{"zero size", 0, 0},
		{"negative size", -5, 0},
		{"negative overlap", 10, -1},
		{"overlap equals size", 10, 10},
		{"overlap exceeds size", 10, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Split("some text", tt.chunkSize, tt.overlap)
			assert.ErrorIs(t, err, domain.ErrInvalidChunkParams)

			_, err = NewRecursiveChunker(tt.chunkSize, tt.overlap, nil)
			assert.ErrorIs(t, err, domain.ErrInvalidChunkParams)
		})
	}
}

func TestRecursiveChunker_CustomSeparators(t *testing.T) {
	c, err := NewRecursiveChunker(20, 4, []string{". ", ""})
	require.NoError(t, err)

	text := "One sentence. Two sentence. Three sentence. Four."
	segments, err := c.Chunk(text)
	require.NoError(t, err)
	assertSegmentProperties(t, text, segments, 20, 4)
	assert.True(t, strings.HasPrefix(segments[0].Text, "One sentence. "))
}

func TestRecursiveChunker_Deterministic(t *testing.T) {
	c, err := NewRecursiveChunker(64, 16, nil)
	require.NoError(t, err)

	text := strings.Repeat("The quick brown fox jumps over the lazy dog.\n", 20)
	a, err := c.Chunk(text)
	require.NoError(t, err)
	b, err := c.Chunk(text)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
