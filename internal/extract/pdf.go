// Package extract pulls the first page's text out of PDF uploads.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ledongthuc/pdf"
	rscpdf "rsc.io/pdf"
)

const (
	headerWindow = 1024
	wordGapRatio = 0.15
)

var (
	ErrEmpty   = errors.New("empty document")
	ErrNoPages = errors.New("document has no pages")
	ErrNoText  = errors.New("no text on first page")
)

// Result is the outcome of a first-page extraction. Err is nil on success,
// in which case Text is non-empty and trimmed.
type Result struct {
	Text  string
	Pages int
	Err   error
}

// OK reports whether text was extracted.
func (r Result) OK() bool {
	return r.Err == nil
}

// FirstPageText parses content in memory and returns the text of page one.
// It never panics: reader panics on malformed input become failures.
func FirstPageText(content []byte) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			res = Result{Err: fmt.Errorf("parse pdf: %v", rec)}
		}
	}()
	if len(content) == 0 {
		return Result{Err: ErrEmpty}
	}
	if off := HeaderOffset(content); off > 0 {
		content = content[off:]
	}

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return Result{Err: fmt.Errorf("parse pdf: %w", err)}
	}
	total := reader.NumPage()
	if total == 0 {
		return Result{Err: ErrNoPages}
	}
	page := reader.Page(1)
	if page.V.IsNull() {
		return Result{Pages: total, Err: ErrNoText}
	}

	text, err := page.GetPlainText(nil)
	if err != nil || strings.TrimSpace(text) == "" {
		// ledongthuc cannot decode some content streams rsc.io/pdf handles.
		if alt := fallbackFirstPage(content); alt != "" {
			text, err = alt, nil
		}
	}
	if err != nil {
		debugLog("extract: primary reader failed on page 1: %v", err)
		return Result{Pages: total, Err: fmt.Errorf("read first page: %w", err)}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{Pages: total, Err: ErrNoText}
	}
	return Result{Text: text, Pages: total}
}

func fallbackFirstPage(content []byte) (text string) {
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
		}
	}()
	reader, err := rscpdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil || reader.NumPage() == 0 {
		return ""
	}
	page := reader.Page(1)
	if page.V.IsNull() {
		return ""
	}
	return strings.TrimSpace(joinRuns(page.Content().Text))
}

// joinRuns rebuilds words from positioned glyphs. rsc.io/pdf drops space
// glyphs, so a horizontal gap wider than a fraction of the font size becomes
// a space and a baseline change becomes a newline.
func joinRuns(runs []rscpdf.Text) string {
	var b strings.Builder
	for i, t := range runs {
		if i > 0 {
			prev := runs[i-1]
			size := t.FontSize
			if size <= 0 {
				size = 1
			}
			switch {
			case math.Abs(t.Y-prev.Y) > size/2:
				b.WriteByte('\n')
			case t.X-(prev.X+prev.W) > size*wordGapRatio:
				b.WriteByte(' ')
			}
		}
		b.WriteString(t.S)
	}
	return b.String()
}

// HeaderOffset returns the position of the "%PDF-" marker within the first
// kilobyte of content, or -1. Readers tolerate leading junk before it.
func HeaderOffset(content []byte) int {
	head := content
	if len(head) > headerWindow {
		head = head[:headerWindow]
	}
	return bytes.Index(head, []byte("%PDF-"))
}
