package server

import (
	"html/template"
	"net/http"
	"time"

	"github.com/hyperjump/specsheet/internal/models"
	"github.com/hyperjump/specsheet/pkg/utils"
	"go.uber.org/zap"
)

const recentBatches = 10

var templateFuncs = template.FuncMap{
	"truncate": utils.Truncate,
	"datetime": func(t time.Time) string { return t.Local().Format("2006-01-02 15:04") },
}

type indexPage struct {
	Error   string
	MaxMB   int
	Batches []*models.BatchSummary
}

type previewPage struct {
	Batch       *models.Batch
	Columns     []string
	Rows        []previewRow
	DefaultName string
}

type previewRow struct {
	Document string
	Page     int
	Cells    []string
}

func newPreviewPage(batch *models.Batch, defaultName string) previewPage {
	rows := make([]previewRow, len(batch.Rows))
	for i, r := range batch.Rows {
		cells := make([]string, len(batch.Columns))
		for j, c := range batch.Columns {
			cells[j] = r.Get(c)
		}
		rows[i] = previewRow{Document: r.DocumentName, Page: r.Page, Cells: cells}
	}
	return previewPage{
		Batch:       batch,
		Columns:     batch.Columns,
		Rows:        rows,
		DefaultName: defaultName,
	}
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.pages.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("render page failed", zap.String("page", name), zap.Error(err))
	}
}

// renderIndex shows the upload form with the most recent batches and an optional error.
func (s *Server) renderIndex(w http.ResponseWriter, r *http.Request, status int, message string) {
	batches, err := s.storage.ListBatches(r.Context(), 0, recentBatches)
	if err != nil {
		s.logger.Warn("list recent batches failed", zap.Error(err))
	}
	s.render(w, status, "index.html", indexPage{
		Error:   message,
		MaxMB:   s.config.Server.MaxUploadMB,
		Batches: batches,
	})
}
