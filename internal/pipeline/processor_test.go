package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/specsheet/internal/extract"
	"github.com/hyperjump/specsheet/internal/fields"
	"github.com/hyperjump/specsheet/internal/fileid"
	"github.com/hyperjump/specsheet/internal/models"
	"github.com/hyperjump/specsheet/internal/pdftest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var gold = []float64{0.86, 0.65, 0}

// labelled returns a label in black followed by a gold value on the same baseline.
func labelled(y float64, label, value string) []pdftest.Text {
	return []pdftest.Text{
		{X: 72, Y: y, Text: label},
		{X: 250, Y: y, Color: gold, Text: value},
	}
}

func page(pairs ...[]pdftest.Text) pdftest.Page {
	var p pdftest.Page
	for _, t := range pairs {
		p.Texts = append(p.Texts, t...)
	}
	return p
}

func specSheet() []byte {
	return pdftest.Build(
		page(
			labelled(700, "Customer:", "Acme Foods"),
			labelled(680, "Design:", "RSC 12x10x8"),
			labelled(660, "Len. Cutting Rule (in):", "142.5"),
		),
		page(
			labelled(700, "Customer:", "Beta Corp"),
			labelled(680, "Blank Width:", "24.125"),
		),
	)
}

func TestProcess_rowsPerPageInOrder(t *testing.T) {
	p := NewProcessor(fields.Default())
	docs := []models.DocumentInput{
		{Name: "a.pdf", Content: specSheet()},
		{Name: "b.pdf", Content: pdftest.Build(page(labelled(700, "Board:", "32 ECT")))},
	}
	batch, err := p.Process(context.Background(), docs)
	require.NoError(t, err)

	require.Len(t, batch.Rows, 3)
	assert.NotEmpty(t, batch.ID)
	assert.Equal(t, fields.Default().Columns(), batch.Columns)
	assert.Empty(t, batch.Failures)

	order := make([][2]any, len(batch.Rows))
	for i, r := range batch.Rows {
		order[i] = [2]any{r.DocumentName, r.Page}
	}
	assert.Equal(t, [][2]any{{"a.pdf", 1}, {"a.pdf", 2}, {"b.pdf", 1}}, order)

	first := batch.Rows[0]
	assert.Equal(t, "Acme Foods", first.Get("customer"))
	assert.Equal(t, "RSC 12x10x8", first.Get("design"))
	assert.Equal(t, "142.5", first.Get("inches of rule"))
	assert.Equal(t, "", first.Get("board"))
	assert.Equal(t, fileid.ContentID(docs[0].Content), first.DocumentID)

	assert.Equal(t, "Beta Corp", batch.Rows[1].Get("customer"))
	assert.Equal(t, "24.125", batch.Rows[1].Get("blank width"))
	assert.Equal(t, "32 ECT", batch.Rows[2].Get("board"))
}

func TestProcess_everyRowHasEveryColumn(t *testing.T) {
	p := NewProcessor(fields.Default())
	empty := pdftest.Build(pdftest.Page{}, page(labelled(700, "Nothing here:", "at all")))
	batch, err := p.Process(context.Background(), []models.DocumentInput{{Name: "empty.pdf", Content: empty}})
	require.NoError(t, err)
	require.Len(t, batch.Rows, 2)
	for _, r := range batch.Rows {
		assert.Len(t, r.Values, 17)
		for _, c := range batch.Columns {
			v, ok := r.Values[c]
			assert.True(t, ok, "column %q missing", c)
			assert.Equal(t, "", v)
		}
	}
}

func TestProcess_unreadableFailsBatch(t *testing.T) {
	p := NewProcessor(fields.Default())
	docs := []models.DocumentInput{
		{Name: "good.pdf", Content: specSheet()},
		{Name: "notes.txt", Content: []byte("just some text")},
	}
	batch, err := p.Process(context.Background(), docs)
	require.Error(t, err)
	assert.Nil(t, batch)
	assert.True(t, errors.Is(err, extract.ErrNotPDF))

	var docErr *DocumentError
	require.True(t, errors.As(err, &docErr))
	assert.Equal(t, "notes.txt", docErr.Name)
}

func TestProcess_skipUnreadable(t *testing.T) {
	p := NewProcessor(fields.Default(), WithSkipUnreadable(true))
	docs := []models.DocumentInput{
		{Name: "broken.pdf", Content: []byte("%PDF-1.4\ntruncated")},
		{Name: "good.pdf", Content: specSheet()},
	}
	batch, err := p.Process(context.Background(), docs)
	require.NoError(t, err)
	require.Len(t, batch.Failures, 1)
	assert.Equal(t, "broken.pdf", batch.Failures[0].DocumentName)
	assert.NotEmpty(t, batch.Failures[0].Error)
	require.Len(t, batch.Rows, 2)
	for _, r := range batch.Rows {
		assert.Equal(t, "good.pdf", r.DocumentName)
	}
}

func TestProcess_cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewProcessor(fields.Default()).Process(ctx, []models.DocumentInput{{Name: "a.pdf", Content: specSheet()}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcess_noDocuments(t *testing.T) {
	batch, err := NewProcessor(fields.Default()).Process(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, batch.Rows)
	assert.NotNil(t, batch.Rows)
}

type stubReader struct {
	pages map[string][]models.Page
}

func (s stubReader) Extract(content []byte) ([]models.Page, error) {
	pages, ok := s.pages[string(content)]
	if !ok {
		return nil, extract.ErrMalformed
	}
	return pages, nil
}

type stubFields map[string]string

func (s stubFields) Extract(words []models.Word) map[string]string {
	out := map[string]string{}
	for _, w := range words {
		if f, ok := s[w.Text]; ok {
			out[f] = w.Text
		}
	}
	return out
}

func TestProcess_customCollaborators(t *testing.T) {
	set := fields.MustNewSet([]fields.Definition{{Name: "a"}, {Name: "b"}})
	reader := stubReader{pages: map[string][]models.Page{
		"doc": {
			{Number: 1, Words: []models.Word{{Text: "x"}, {Text: "unknown"}}},
			{Number: 2, Words: []models.Word{{Text: "y"}}},
		},
	}}
	p := NewProcessor(set,
		WithPageReader(reader),
		WithFieldExtractor(stubFields{"x": "a", "y": "b", "unknown": "not-a-column"}))

	batch, err := p.Process(context.Background(), []models.DocumentInput{{ID: "fixed", Name: "doc.pdf", Content: []byte("doc")}})
	require.NoError(t, err)
	require.Len(t, batch.Rows, 2)
	assert.Equal(t, map[string]string{"a": "x", "b": ""}, batch.Rows[0].Values)
	assert.Equal(t, map[string]string{"a": "", "b": "y"}, batch.Rows[1].Values)
	assert.Equal(t, "fixed", batch.Rows[0].DocumentID)
	assert.Equal(t, []string{"a", "b"}, p.Columns())
}

func TestProcessFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "first.pdf")
	b := filepath.Join(dir, "second.pdf")
	require.NoError(t, os.WriteFile(a, specSheet(), 0644))
	require.NoError(t, os.WriteFile(b, pdftest.Build(page(labelled(700, "Date:", "2024-05-01"))), 0644))

	batch, err := NewProcessor(fields.Default()).ProcessFiles(context.Background(), a, b)
	require.NoError(t, err)
	assert.Equal(t, "first.pdf", batch.Name)
	require.Len(t, batch.Rows, 3)
	assert.Equal(t, "second.pdf", batch.Rows[2].DocumentName)
	assert.Equal(t, "2024-05-01", batch.Rows[2].Get("date"))

	_, err = NewProcessor(fields.Default()).ProcessFiles(context.Background(), filepath.Join(dir, "missing.pdf"))
	assert.Error(t, err)
}
