// Package cli renders batches, rows, and field sets for the specsheet command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/hyperjump/specsheet/internal/fields"
	"github.com/hyperjump/specsheet/internal/models"
	"github.com/hyperjump/specsheet/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const maxValueLen = 80

// ParseOutputFormat accepts "text", "json", or "" (text).
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want %q or %q)", s, OutputText, OutputJSON)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteBatch writes the rows of batch to w in the given format.
// Text output lists each page with its non-empty fields in column order.
func WriteBatch(w io.Writer, batch *models.Batch, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, batch)
	}
	fmt.Fprintf(w, "\n%d rows from batch %s\n", len(batch.Rows), batch.ID)
	for _, row := range batch.Rows {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "%s, page %d\n", row.DocumentName, row.Page)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		found := 0
		for _, col := range batch.Columns {
			if v := row.Get(col); v != "" {
				fmt.Fprintf(tw, "  %s\t%s\n", col, utils.Truncate(v, maxValueLen))
				found++
			}
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if found == 0 {
			fmt.Fprintln(w, "  (no fields found)")
		}
	}
	for _, f := range batch.Failures {
		fmt.Fprintf(w, "skipped %s: %s\n", f.DocumentName, f.Error)
	}
	fmt.Fprintln(w)
	return nil
}

// BatchList is one page of stored batches.
type BatchList struct {
	Batches []models.BatchSummary `json:"batches"`
	Total   int64                 `json:"total"`
}

// WriteBatchList writes a batch listing to w in the given format.
func WriteBatchList(w io.Writer, list *BatchList, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, list)
	}
	if len(list.Batches) == 0 {
		fmt.Fprintln(w, "No batches.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tROWS\tCREATED")
	for _, b := range list.Batches {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", b.ID, utils.Truncate(b.Name, 40), b.RowCount, b.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if int64(len(list.Batches)) < list.Total {
		fmt.Fprintf(w, "(%d of %d)\n", len(list.Batches), list.Total)
	}
	return nil
}

// WriteFields writes the field set, one canonical name per line with its aliases.
func WriteFields(w io.Writer, set *fields.Set, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, set.Definitions())
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, d := range set.Definitions() {
		fmt.Fprintf(tw, "%2d\t%s\t%s\n", i+1, d.Name, strings.Join(d.Aliases, ", "))
	}
	return tw.Flush()
}
