// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/specsheet/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS batches (
		id TEXT PRIMARY KEY,
		name TEXT,
		columns TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_batches_created_at ON batches(created_at);

	CREATE TABLE IF NOT EXISTS batch_rows (
		batch_id TEXT NOT NULL,
		row_index INTEGER NOT NULL,
		document_id TEXT,
		document_name TEXT,
		page INTEGER NOT NULL,
		"values" TEXT NOT NULL,
		PRIMARY KEY (batch_id, row_index),
		FOREIGN KEY (batch_id) REFERENCES batches(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS batch_failures (
		batch_id TEXT NOT NULL,
		failure_index INTEGER NOT NULL,
		document_name TEXT NOT NULL,
		error TEXT NOT NULL,
		PRIMARY KEY (batch_id, failure_index),
		FOREIGN KEY (batch_id) REFERENCES batches(id) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.path
}

// CreateBatch inserts a batch with its rows and failures in one transaction.
// A zero CreatedAt is set to the current time.
func (s *SQLiteStorage) CreateBatch(ctx context.Context, batch *models.Batch) error {
	columnsJSON, err := json.Marshal(batch.Columns)
	if err != nil {
		return fmt.Errorf("failed to marshal columns: %w", err)
	}
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO batches (id, name, columns, created_at) VALUES (?, ?, ?, ?)`,
		batch.ID, batch.Name, string(columnsJSON), batch.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}

	rowStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO batch_rows (batch_id, row_index, document_id, document_name, page, "values")
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer rowStmt.Close()

	for i, row := range batch.Rows {
		valuesJSON, err := json.Marshal(row.Values)
		if err != nil {
			return fmt.Errorf("failed to marshal row %d: %w", i, err)
		}
		if _, err := rowStmt.ExecContext(ctx, batch.ID, i, row.DocumentID, row.DocumentName, row.Page, string(valuesJSON)); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}

	for i, f := range batch.Failures {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO batch_failures (batch_id, failure_index, document_name, error) VALUES (?, ?, ?, ?)`,
			batch.ID, i, f.DocumentName, f.Error,
		); err != nil {
			return fmt.Errorf("failed to insert failure %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// GetBatch returns a batch by ID with rows in their original order.
func (s *SQLiteStorage) GetBatch(ctx context.Context, id string) (*models.Batch, error) {
	var batch models.Batch
	var name sql.NullString
	var columnsJSON string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, columns, created_at FROM batches WHERE id = ?`, id,
	).Scan(&batch.ID, &name, &columnsJSON, &batch.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("batch %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	batch.Name = name.String
	if err := json.Unmarshal([]byte(columnsJSON), &batch.Columns); err != nil {
		return nil, fmt.Errorf("failed to unmarshal columns: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT document_id, document_name, page, "values"
		 FROM batch_rows WHERE batch_id = ? ORDER BY row_index`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	batch.Rows = []models.Row{}
	for rows.Next() {
		var row models.Row
		var docID, docName sql.NullString
		var valuesJSON string
		if err := rows.Scan(&docID, &docName, &row.Page, &valuesJSON); err != nil {
			return nil, err
		}
		row.DocumentID = docID.String
		row.DocumentName = docName.String
		if err := json.Unmarshal([]byte(valuesJSON), &row.Values); err != nil {
			return nil, fmt.Errorf("failed to unmarshal row values: %w", err)
		}
		batch.Rows = append(batch.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	failures, err := s.getFailures(ctx, id)
	if err != nil {
		return nil, err
	}
	batch.Failures = failures
	return &batch, nil
}

func (s *SQLiteStorage) getFailures(ctx context.Context, batchID string) ([]models.Failure, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT document_name, error FROM batch_failures WHERE batch_id = ? ORDER BY failure_index`, batchID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var failures []models.Failure
	for rows.Next() {
		var f models.Failure
		if err := rows.Scan(&f.DocumentName, &f.Error); err != nil {
			return nil, err
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

// ListBatches returns batch summaries, newest first, with offset and limit.
func (s *SQLiteStorage) ListBatches(ctx context.Context, offset, limit int) ([]*models.BatchSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT b.id, b.name, b.created_at,
		        (SELECT COUNT(*) FROM batch_rows r WHERE r.batch_id = b.id)
		 FROM batches b ORDER BY b.created_at DESC, b.rowid DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.BatchSummary
	for rows.Next() {
		var sum models.BatchSummary
		var name sql.NullString
		if err := rows.Scan(&sum.ID, &name, &sum.CreatedAt, &sum.RowCount); err != nil {
			return nil, err
		}
		sum.Name = name.String
		out = append(out, &sum)
	}
	return out, rows.Err()
}

// DeleteBatch removes a batch with its rows and failures.
func (s *SQLiteStorage) DeleteBatch(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM batch_rows WHERE batch_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM batch_failures WHERE batch_id = ?`, id); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM batches WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("batch %s: %w", id, ErrNotFound)
	}
	return tx.Commit()
}

// CountBatches returns the total number of batches.
func (s *SQLiteStorage) CountBatches(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM batches`).Scan(&count)
	return count, err
}

// CountRows returns the total number of stored rows across batches.
func (s *SQLiteStorage) CountRows(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM batch_rows`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
