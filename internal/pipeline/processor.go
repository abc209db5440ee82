// Package pipeline turns batches of PDF documents into spreadsheet rows, one row per page.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/specsheet/internal/extract"
	"github.com/hyperjump/specsheet/internal/fields"
	"github.com/hyperjump/specsheet/internal/fileid"
	"github.com/hyperjump/specsheet/internal/models"
	"github.com/hyperjump/specsheet/internal/pagefields"
	"go.uber.org/zap"
)

// PageReader reads the pages of one PDF document.
type PageReader interface {
	Extract(content []byte) ([]models.Page, error)
}

// FieldExtractor finds field values among the words of one page.
type FieldExtractor interface {
	Extract(words []models.Word) map[string]string
}

// DocumentError reports which document of a batch could not be read.
type DocumentError struct {
	Name string
	Err  error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("document %q: %v", e.Name, e.Err)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

// Processor converts documents to rows using a fixed field set.
type Processor struct {
	set            *fields.Set
	reader         PageReader
	fields         FieldExtractor
	skipUnreadable bool
	logger         *zap.Logger
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithLogger sets a logger for per-document progress.
func WithLogger(l *zap.Logger) ProcessorOption {
	return func(p *Processor) { p.logger = l }
}

// WithSkipUnreadable records unreadable documents as batch failures instead of failing the batch.
func WithSkipUnreadable(skip bool) ProcessorOption {
	return func(p *Processor) { p.skipUnreadable = skip }
}

// WithPageReader replaces the default PDF reader.
func WithPageReader(r PageReader) ProcessorOption {
	return func(p *Processor) { p.reader = r }
}

// WithFieldExtractor replaces the default page field extractor.
func WithFieldExtractor(e FieldExtractor) ProcessorOption {
	return func(p *Processor) { p.fields = e }
}

// NewProcessor returns a processor over set. Without options it reads PDFs with
// extract.NewExtractor and finds fields with the default pagefields extractor.
func NewProcessor(set *fields.Set, opts ...ProcessorOption) *Processor {
	p := &Processor{
		set:    set,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.reader == nil {
		p.reader = extract.NewExtractor(extract.WithLogger(p.logger))
	}
	if p.fields == nil {
		p.fields = pagefields.NewExtractor(fields.NewMatcher(set))
	}
	return p
}

// Columns returns the batch column order.
func (p *Processor) Columns() []string {
	return p.set.Columns()
}

// Process converts docs in order. Rows come out document by document, pages in order.
// An unreadable document fails the whole batch unless unreadable documents are skipped.
func (p *Processor) Process(ctx context.Context, docs []models.DocumentInput) (*models.Batch, error) {
	batch := &models.Batch{
		ID:        uuid.New().String(),
		Columns:   p.set.Columns(),
		Rows:      []models.Row{},
		CreatedAt: time.Now().UTC(),
	}
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := p.ProcessDocument(doc)
		if err != nil {
			if !p.skipUnreadable {
				return nil, err
			}
			p.logger.Warn("skipping unreadable document", zap.String("document", doc.Name), zap.Error(err))
			batch.Failures = append(batch.Failures, models.Failure{DocumentName: doc.Name, Error: err.Error()})
			continue
		}
		batch.Rows = append(batch.Rows, rows...)
	}
	p.logger.Debug("batch processed",
		zap.String("batch", batch.ID),
		zap.Int("documents", len(docs)),
		zap.Int("rows", len(batch.Rows)),
		zap.Int("failures", len(batch.Failures)))
	return batch, nil
}

// ProcessDocument returns one row per page of doc. Every row holds every column.
func (p *Processor) ProcessDocument(doc models.DocumentInput) ([]models.Row, error) {
	if doc.ID == "" {
		doc.ID = fileid.ContentID(doc.Content)
	}
	pages, err := p.reader.Extract(doc.Content)
	if err != nil {
		return nil, &DocumentError{Name: doc.Name, Err: err}
	}
	rows := make([]models.Row, 0, len(pages))
	for _, page := range pages {
		values := p.set.EmptyRow()
		for field, v := range p.fields.Extract(page.Words) {
			if _, ok := values[field]; ok {
				values[field] = v
			}
		}
		rows = append(rows, models.Row{
			DocumentID:   doc.ID,
			DocumentName: doc.Name,
			Page:         page.Number,
			Values:       values,
		})
	}
	p.logger.Debug("document processed", zap.String("document", doc.Name), zap.Int("pages", len(pages)))
	return rows, nil
}

// ProcessFiles reads each path and processes the files as one batch named after the first file.
func (p *Processor) ProcessFiles(ctx context.Context, paths ...string) (*models.Batch, error) {
	docs := make([]models.DocumentInput, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read file: %w", err)
		}
		docs = append(docs, models.DocumentInput{Name: filepath.Base(path), Content: content})
	}
	batch, err := p.Process(ctx, docs)
	if err != nil {
		return nil, err
	}
	if len(paths) > 0 {
		batch.Name = filepath.Base(paths[0])
	}
	return batch, nil
}
