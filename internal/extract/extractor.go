// Package extract reads positioned, coloured words out of PDF documents.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/hyperjump/specsheet/internal/models"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"
)

var (
	// ErrNotPDF is returned for empty content or content without a PDF header.
	ErrNotPDF = errors.New("not a PDF document")
	// ErrMalformed is returned when the document structure or a content stream cannot be read.
	ErrMalformed = errors.New("malformed PDF")
	// ErrTooLarge is returned when the document exceeds the configured size limit.
	ErrTooLarge = errors.New("document exceeds size limit")
)

const (
	// DefaultXTolerance is the largest horizontal gap, in points, between glyphs of one word.
	DefaultXTolerance = 3.0
	// DefaultMaxSize is the default document size limit in bytes.
	DefaultMaxSize int64 = 50 << 20
	// DefaultPageHeight is used when a page has no usable MediaBox (US Letter).
	DefaultPageHeight = 792.0

	headerWindow = 1024
)

var disableConfigDir sync.Once

// Extractor turns PDF bytes into pages of words.
type Extractor struct {
	maxSize    int64
	xTolerance float64
	logger     *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxSize sets the size limit in bytes. Zero or negative disables the limit.
func WithMaxSize(n int64) Option {
	return func(e *Extractor) {
		e.maxSize = n
	}
}

// WithXTolerance sets the word-break gap in points.
func WithXTolerance(tol float64) Option {
	return func(e *Extractor) {
		if tol > 0 {
			e.xTolerance = tol
		}
	}
}

// WithLogger sets the logger for page-level diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExtractor returns a new Extractor.
func NewExtractor(opts ...Option) *Extractor {
	disableConfigDir.Do(api.DisableConfigDir)
	e := &Extractor{
		maxSize:    DefaultMaxSize,
		xTolerance: DefaultXTolerance,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractFile reads the file at path and returns its pages.
func (e *Extractor) ExtractFile(path string) ([]models.Page, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return e.Extract(content)
}

// Extract validates content and returns its pages in document order.
func (e *Extractor) Extract(content []byte) ([]models.Page, error) {
	if _, err := e.Validate(content); err != nil {
		return nil, err
	}
	return e.Pages(content)
}

// Validate checks that content is a readable PDF and returns its page count.
func (e *Extractor) Validate(content []byte) (n int, err error) {
	if err := e.check(content); err != nil {
		return 0, err
	}
	defer func() {
		if r := recover(); r != nil {
			n = 0
			err = fmt.Errorf("%w: %v", ErrMalformed, r)
		}
	}()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(content), conf)
	if err != nil {
		return 0, fmt.Errorf("%w: read context: %v", ErrMalformed, err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return 0, fmt.Errorf("%w: page count: %v", ErrMalformed, err)
	}
	return ctx.PageCount, nil
}

// Pages interprets every page's content stream and returns the words found.
// Any unreadable page fails the whole document.
func (e *Extractor) Pages(content []byte) (pages []models.Page, err error) {
	if err := e.check(content); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: %v", ErrMalformed, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", ErrMalformed, err)
	}
	n := r.NumPage()
	pages = make([]models.Page, 0, n)
	for i := 1; i <= n; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			return nil, fmt.Errorf("%w: page %d not found", ErrMalformed, i)
		}
		words := e.readPage(page)
		e.logger.Debug("page read", zap.Int("page", i), zap.Int("words", len(words)))
		pages = append(pages, models.Page{Number: i, Words: words})
	}
	return pages, nil
}

func (e *Extractor) check(content []byte) error {
	if len(content) == 0 {
		return ErrNotPDF
	}
	if e.maxSize > 0 && int64(len(content)) > e.maxSize {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, len(content), e.maxSize)
	}
	head := content
	if len(head) > headerWindow {
		head = head[:headerWindow]
	}
	if !bytes.Contains(head, []byte("%PDF-")) {
		return ErrNotPDF
	}
	return nil
}
