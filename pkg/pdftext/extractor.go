// Package pdftext extracts plain text from PDF submissions for grading.
package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// TruncationMarker is appended when the extracted text exceeds MaxChars.
const TruncationMarker = "\n\n[Document truncated due to length...]"

var (
	// ErrNotPDF is returned when the payload lacks the PDF header.
	ErrNotPDF = errors.New("payload is not a pdf document")
	// ErrNoText is returned when no page yielded text.
	ErrNoText = errors.New("pdf contains no extractable text")
)

// Options bounds extraction work.
type Options struct {
	MaxPages        int
	MaxChars        int
	DownloadTimeout time.Duration
}

// Extractor turns PDF bytes, files or URLs into page-annotated text.
type Extractor struct {
	http   *resty.Client
	opts   Options
	logger *zap.Logger
}

// NewExtractor constructs an extractor.
func NewExtractor(opts Options, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 50
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = 50000
	}
	if opts.DownloadTimeout <= 0 {
		opts.DownloadTimeout = 30 * time.Second
	}
	return &Extractor{
		http:   resty.New().SetTimeout(opts.DownloadTimeout),
		opts:   opts,
		logger: logger,
	}
}

// FromURL downloads a PDF and extracts its text.
func (e *Extractor) FromURL(ctx context.Context, fileURL string) (string, error) {
	resp, err := e.http.R().SetContext(ctx).Get(fileURL)
	if err != nil {
		return "", fmt.Errorf("download pdf: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("download pdf: status %d", resp.StatusCode())
	}
	return e.FromBytes(resp.Body())
}

// FromBytes extracts text from at most MaxPages pages. Encrypted documents are
// opened with the empty user password.
func (e *Extractor) FromBytes(data []byte) (string, error) {
	reader, err := open(data)
	if err != nil {
		return "", err
	}

	total := reader.NumPage()
	limit := total
	if limit > e.opts.MaxPages {
		limit = e.opts.MaxPages
		e.logger.Warn("pdf page limit reached", zap.Int("pages", total), zap.Int("limit", limit))
	}

	pages := make([]string, 0, limit)
	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= limit; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := page.Font(name)
				fonts[name] = &f
			}
		}
		text, err := pageText(page, fonts)
		if err != nil {
			e.logger.Warn("pdf page extraction failed", zap.Int("page", i), zap.Error(err))
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}

	text, truncated := Assemble(pages, e.opts.MaxChars)
	if truncated {
		e.logger.Warn("pdf text truncated", zap.Int("max_chars", e.opts.MaxChars))
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrNoText
	}
	return text, nil
}

// Assemble joins per-page text with page headers, skipping blank pages, and
// truncates the result to maxChars characters.
func Assemble(pages []string, maxChars int) (string, bool) {
	parts := make([]string, 0, len(pages))
	for i, text := range pages {
		if strings.TrimSpace(text) == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("--- Page %d ---\n%s\n", i+1, text))
	}
	full := strings.Join(parts, "\n")
	if maxChars <= 0 || utf8.RuneCountInString(full) <= maxChars {
		return full, false
	}
	runes := []rune(full)
	return string(runes[:maxChars]) + TruncationMarker, true
}

func open(data []byte) (*pdf.Reader, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), []byte("%PDF")) {
		return nil, ErrNotPDF
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return reader, nil
}

func pageText(page pdf.Page, fonts map[string]*pdf.Font) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed page content: %v", r)
		}
	}()
	return page.GetPlainText(fonts)
}
