package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dslipak/pdf"
	"github.com/lu4p/cat"
)

var (
	// ErrUnsupportedFormat is returned for file extensions ExtractText cannot read.
	ErrUnsupportedFormat = errors.New("ingestion: unsupported file format")

	// ErrEmptyContent is returned when a file yields no text.
	ErrEmptyContent = errors.New("ingestion: file contains no text")

	// ErrInvalidEncoding is returned when a plain-text file is not valid UTF-8.
	ErrInvalidEncoding = errors.New("ingestion: file must be UTF-8 encoded")
)

// pageTimeout bounds text extraction from a single PDF page. Malformed
// content streams can make the parser spin.
const pageTimeout = 10 * time.Second

// ExtractText returns the plain text of the file at path. Supported formats:
// .txt and .md (UTF-8), .pdf, and .docx/.odt/.rtf. The result is trimmed and
// never empty on success.
func ExtractText(ctx context.Context, path string) (string, error) {
	var (
		text string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		text, err = readUTF8(path)
	case ".pdf":
		text, err = extractPDF(ctx, path)
	case ".docx", ".odt", ".rtf":
		text, err = cat.File(path)
		if err != nil {
			err = fmt.Errorf("ingestion: extracting %s: %w", filepath.Base(path), err)
		}
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyContent, filepath.Base(path))
	}
	return text, nil
}

// DecodeText validates raw upload bytes as UTF-8 and returns them as a string.
func DecodeText(raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", ErrInvalidEncoding
	}
	return string(raw), nil
}

func readUTF8(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("ingestion: reading %s: %w", filepath.Base(path), err)
	}
	text, err := DecodeText(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %s", err, filepath.Base(path))
	}
	return text, nil
}

// extractPDF concatenates the plain text of every readable page. Pages that
// fail or time out are skipped.
func extractPDF(ctx context.Context, path string) (string, error) {
	r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("ingestion: opening pdf %s: %w", filepath.Base(path), err)
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := pageText(ctx, page)
		if err != nil {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(content)
	}
	return b.String(), nil
}

// pageText extracts one page on a separate goroutine so a stuck parse can be
// abandoned after pageTimeout.
func pageText(ctx context.Context, page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("pdf parser panic: %v", r)}
			}
		}()
		content, err := page.GetPlainText(nil)
		ch <- result{content, err}
	}()

	ctx, cancel := context.WithTimeout(ctx, pageTimeout)
	defer cancel()
	select {
	case r := <-ch:
		return r.content, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
