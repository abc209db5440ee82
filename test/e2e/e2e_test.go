package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/specsheet/internal/config"
	"github.com/hyperjump/specsheet/internal/fields"
	"github.com/hyperjump/specsheet/internal/models"
	"github.com/hyperjump/specsheet/internal/pipeline"
	"github.com/hyperjump/specsheet/internal/server"
	"github.com/hyperjump/specsheet/internal/sheet"
	"github.com/hyperjump/specsheet/internal/storage"
	"go.uber.org/zap"
)

const e2eDocs = 24

func newE2EServer(t *testing.T) (*httptest.Server, *fields.Set) {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.DatabasePath = filepath.Join(t.TempDir(), "batches.db")
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	set := fields.Default()
	srv := server.NewServer(pipeline.NewProcessor(set), set, store, cfg, zap.NewNop(), nil, "")
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, set
}

func uploadBody(t *testing.T, c *Corpus) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, s := range c.Sheets {
		part, err := mw.CreateFormFile("files", s.Name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(s.Content); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func compareRows(t *testing.T, columns []string, got, want []models.Row) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d rows, want %d", len(got), len(want))
	}
	for i := range want {
		for _, col := range columns {
			if got[i].Get(col) != want[i].Get(col) {
				t.Errorf("row %d (%s page %d) %q = %q, want %q",
					i, want[i].DocumentName, want[i].Page, col, got[i].Get(col), want[i].Get(col))
			}
		}
	}
}

func TestE2E_UploadPreviewDownload(t *testing.T) {
	ts, set := newE2EServer(t)
	corpus := BuildCorpus(e2eDocs)
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	body, contentType := uploadBody(t, corpus)
	resp, err := client.Post(ts.URL+"/upload", contentType, body)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("upload status = %d, want 303", resp.StatusCode)
	}
	preview := resp.Header.Get("Location")
	if !strings.HasPrefix(preview, "/batches/") {
		t.Fatalf("redirect to %q", preview)
	}
	t.Logf("uploaded %d documents (%d pages)", corpus.TotalDocs, corpus.TotalPages)

	resp, err = client.Get(ts.URL + preview)
	if err != nil {
		t.Fatal(err)
	}
	page, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	for _, name := range customers {
		if !strings.Contains(string(page), name) {
			t.Errorf("preview is missing customer %q", name)
		}
	}

	resp, err = client.Get(ts.URL + preview + "/download?name=corpus")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("download status = %d", resp.StatusCode)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "corpus.xlsx") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	columns, rows, err := sheet.Read(resp.Body)
	if err != nil {
		t.Fatalf("read downloaded sheet: %v", err)
	}
	if strings.Join(columns, "|") != strings.Join(set.Columns(), "|") {
		t.Errorf("columns = %v", columns)
	}
	compareRows(t, set.Columns(), rows, corpus.ExpectedRows(set))
}

func TestE2E_ExtractAPI(t *testing.T) {
	ts, set := newE2EServer(t)
	corpus := BuildCorpus(e2eDocs / 2)

	body, contentType := uploadBody(t, corpus)
	resp, err := http.Post(ts.URL+"/api/v1/extract", contentType, body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("extract status = %d", resp.StatusCode)
	}
	var batch models.Batch
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		t.Fatal(err)
	}
	want := corpus.ExpectedRows(set)
	compareRows(t, set.Columns(), batch.Rows, want)
	for i := range want {
		if batch.Rows[i].DocumentName != want[i].DocumentName || batch.Rows[i].Page != want[i].Page {
			t.Errorf("row %d is %s page %d, want %s page %d", i,
				batch.Rows[i].DocumentName, batch.Rows[i].Page, want[i].DocumentName, want[i].Page)
		}
	}

	resp, err = http.Get(ts.URL + "/api/v1/batches/" + batch.ID)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var stored models.Batch
	if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil {
		t.Fatal(err)
	}
	compareRows(t, set.Columns(), stored.Rows, want)
}

// TestE2E_FileExtraction reads the corpus from disk as the extract command does.
func TestE2E_FileExtraction(t *testing.T) {
	corpus := BuildCorpus(e2eDocs)
	paths, err := WriteCorpus(filepath.Join(t.TempDir(), "pdfs"), corpus)
	if err != nil {
		t.Fatal(err)
	}
	set := fields.Default()
	batch, err := pipeline.NewProcessor(set).ProcessFiles(context.Background(), paths...)
	if err != nil {
		t.Fatal(err)
	}
	compareRows(t, set.Columns(), batch.Rows, corpus.ExpectedRows(set))
}
