// Package extract turns uploaded files into plain text.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ErrUnsupportedFormat is returned for files no extractor can read.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Extractor returns the text of a file. An empty string with a nil error
// means the file holds no extractable text.
type Extractor interface {
	Extract(name string, data []byte) (string, error)
}

// Text reads UTF-8 text files.
type Text struct{}

func (Text) Extract(name string, data []byte) (string, error) {
	if bytes.IndexByte(data, 0) >= 0 {
		return "", fmt.Errorf("%w: %s looks binary", ErrUnsupportedFormat, name)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return strings.ToValidUTF8(string(data), "�"), nil
	}
	return string(data), nil
}

// Registry dispatches on the file extension. Unknown extensions fall back to
// Text, which rejects binary content.
type Registry struct {
	byExt    map[string]Extractor
	fallback Extractor
}

type Option func(*Registry)

// WithExtractor registers e for the given extension (".pdf", ".md", ...).
func WithExtractor(ext string, e Extractor) Option {
	return func(r *Registry) { r.byExt[strings.ToLower(ext)] = e }
}

// NewRegistry returns a registry that knows PDF and plain text files.
func NewRegistry(logger *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		byExt: map[string]Extractor{
			".pdf": NewPDF(logger),
			".txt": Text{},
			".md":  Text{},
		},
		fallback: Text{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Extract(name string, data []byte) (string, error) {
	if e, ok := r.byExt[strings.ToLower(filepath.Ext(name))]; ok {
		return e.Extract(name, data)
	}
	return r.fallback.Extract(name, data)
}
