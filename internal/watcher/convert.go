package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hyperjump/specsheet/internal/fileid"
	"github.com/hyperjump/specsheet/internal/models"
	"github.com/hyperjump/specsheet/internal/sheet"
	"go.uber.org/zap"
)

// BatchProcessor turns documents into a batch. *pipeline.Processor satisfies it.
type BatchProcessor interface {
	Process(ctx context.Context, docs []models.DocumentInput) (*models.Batch, error)
}

// BatchStore persists converted batches. *storage.SQLiteStorage satisfies it.
type BatchStore interface {
	CreateBatch(ctx context.Context, batch *models.Batch) error
}

// Converter writes one spreadsheet per inbox PDF into an output directory, or next to the
// PDF when no output directory is set. Content already converted from the same path is skipped.
type Converter struct {
	processor BatchProcessor
	outputDir string
	sheetOpts sheet.Options
	store     BatchStore
	logger    *zap.Logger

	mu   sync.Mutex
	seen map[string]string // path -> content id of the last conversion
}

// ConverterOption configures a Converter.
type ConverterOption func(*Converter)

// WithConverterLogger sets the converter's logger.
func WithConverterLogger(l *zap.Logger) ConverterOption {
	return func(c *Converter) { c.logger = l }
}

// WithSheetOptions sets the worksheet options used for every written file.
func WithSheetOptions(opts sheet.Options) ConverterOption {
	return func(c *Converter) { c.sheetOpts = opts }
}

// WithStore also saves each converted batch, so it shows up in the server's batch list.
func WithStore(s BatchStore) ConverterOption {
	return func(c *Converter) { c.store = s }
}

// NewConverter returns a converter writing into outputDir.
func NewConverter(processor BatchProcessor, outputDir string, opts ...ConverterOption) *Converter {
	c := &Converter{
		processor: processor,
		outputDir: outputDir,
		logger:    zap.NewNop(),
		seen:      make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OutputPath returns where the spreadsheet for the PDF at path is written.
func (c *Converter) OutputPath(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	dir := c.outputDir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	return filepath.Join(dir, sheet.SanitizeFileName(base, sheet.DefaultFileName))
}

// Convert processes the PDF at path and writes its rows to OutputPath(path).
// It returns the written path, or "" with a nil error when the content is unchanged
// since the last conversion of the same path.
func (c *Converter) Convert(ctx context.Context, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	id := fileid.ContentID(content)
	c.mu.Lock()
	unchanged := c.seen[path] == id
	c.mu.Unlock()
	if unchanged {
		c.logger.Debug("skipping unchanged document", zap.String("path", path))
		return "", nil
	}

	name := filepath.Base(path)
	batch, err := c.processor.Process(ctx, []models.DocumentInput{{ID: id, Name: name, Content: content}})
	if err != nil {
		return "", err
	}
	batch.Name = name

	out := c.OutputPath(path)
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	if err := sheet.WriteFile(out, batch.Columns, batch.Rows, c.sheetOpts); err != nil {
		return "", err
	}
	if c.store != nil {
		if err := c.store.CreateBatch(ctx, batch); err != nil {
			c.logger.Warn("failed to store converted batch", zap.String("batch", batch.ID), zap.Error(err))
		}
	}

	c.mu.Lock()
	c.seen[path] = id
	c.mu.Unlock()
	c.logger.Info("converted document",
		zap.String("path", path),
		zap.String("output", out),
		zap.Int("rows", len(batch.Rows)))
	return out, nil
}

// Handle is an onDocument callback for NewWatcher. Errors are logged, not returned.
func (c *Converter) Handle(ctx context.Context) func(path string) {
	return func(path string) {
		if _, err := c.Convert(ctx, path); err != nil {
			c.logger.Error("failed to convert document", zap.String("path", path), zap.Error(err))
		}
	}
}
