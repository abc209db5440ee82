// Package models defines core data structures for documents, words, rows, and batches.
package models

import "time"

// Word is one extracted word on a PDF page. Top grows downward from the top edge of the page.
// Color is the fill colour the word was painted with, one entry per channel in [0,1].
type Word struct {
	Text  string    `json:"text"`
	X0    float64   `json:"x0"`
	Top   float64   `json:"top"`
	Color []float64 `json:"color,omitempty"`
}

// Page is the ordered word list of one PDF page.
type Page struct {
	Number int    `json:"number"`
	Words  []Word `json:"words"`
}

// DocumentInput is an uploaded or watched PDF waiting to be processed.
type DocumentInput struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Content []byte `json:"-"`
}

// Row is the extracted field values of one page. Values holds every column of the batch,
// missing fields as empty strings.
type Row struct {
	DocumentID   string            `json:"document_id,omitempty" db:"document_id"`
	DocumentName string            `json:"document_name,omitempty" db:"document_name"`
	Page         int               `json:"page" db:"page"`
	Values       map[string]string `json:"values" db:"values"`
}

// Get returns the value for column, or "" when absent.
func (r Row) Get(column string) string {
	if r.Values == nil {
		return ""
	}
	return r.Values[column]
}

// Failure records a document that could not be read when unreadable documents are skipped.
type Failure struct {
	DocumentName string `json:"document_name" db:"document_name"`
	Error        string `json:"error" db:"error"`
}

// Batch is the result of processing one set of documents.
type Batch struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name,omitempty" db:"name"`
	Columns   []string  `json:"columns" db:"columns"`
	Rows      []Row     `json:"rows"`
	Failures  []Failure `json:"failures,omitempty"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// BatchSummary is a batch without its rows, used for listings.
type BatchSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	RowCount  int       `json:"row_count"`
	CreatedAt time.Time `json:"created_at"`
}
