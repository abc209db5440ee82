// Package storage defines the persistence interface for extraction batches.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/specsheet/internal/models"
)

// ErrNotFound is returned when a batch does not exist.
var ErrNotFound = errors.New("not found")

// Storage defines batch persistence operations.
type Storage interface {
	// Batch operations
	CreateBatch(ctx context.Context, batch *models.Batch) error
	GetBatch(ctx context.Context, id string) (*models.Batch, error)
	ListBatches(ctx context.Context, offset, limit int) ([]*models.BatchSummary, error)
	DeleteBatch(ctx context.Context, id string) error

	// Stats
	CountBatches(ctx context.Context) (int64, error)
	CountRows(ctx context.Context) (int64, error)

	Close() error
}
