package extract

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDF extracts the text layer of a PDF page by page. Pages that fail to
// decode are logged and skipped; the remaining pages still count.
type PDF struct {
	logger *slog.Logger
}

func NewPDF(logger *slog.Logger) *PDF {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDF{logger: logger}
}

func (p *PDF) Extract(name string, data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", name, err)
	}
	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := pageText(page)
		if err != nil {
			p.logger.Warn("skipping unreadable pdf page", "file", name, "page", i, "error", err)
			continue
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

// pageText converts panics from malformed content streams into errors.
func pageText(page pdf.Page) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed page: %v", r)
		}
	}()
	return page.GetPlainText(nil)
}
