// Package e2e runs a generated corpus of spec sheets through upload, preview and download.
package e2e

import (
	"fmt"

	"github.com/hyperjump/specsheet/internal/fields"
	"github.com/hyperjump/specsheet/internal/models"
	"github.com/hyperjump/specsheet/internal/pdftest"
)

// SpecSheet is one generated PDF and the field values each of its pages must yield.
type SpecSheet struct {
	Name    string
	Content []byte
	Pages   []map[string]string
}

// Corpus holds generated spec sheets in upload order.
type Corpus struct {
	Sheets     []SpecSheet
	TotalDocs  int
	TotalPages int
}

// fieldLabels lists, per canonical field, the label spellings a sheet may print.
// Every spelling matches its field exactly after normalization.
var fieldLabels = []struct {
	field  string
	labels []string
}{
	{"customer", []string{"Customer:", "CUSTOMER"}},
	{"design", []string{"Design:", "Design"}},
	{"rev.", []string{"Rev.:", "Revision:"}},
	{"part", []string{"Part:"}},
	{"oppty/proj. #", []string{"Oppty/Proj. #:", "Project #:", "Opportunity:"}},
	{"pieces per set", []string{"Pieces per Set:"}},
	{"board", []string{"Board:"}},
	{"corr direction", []string{"Corr Direction:", "Grain Direction:", "Corrugation:"}},
	{"view", []string{"View:", "Side Shown:"}},
	{"project mngr.", []string{"Project Mngr.:", "Project Manager:"}},
	{"designer", []string{"Designer:", "Engineer:"}},
	{"id", []string{"ID:"}},
	{"area", []string{"Area:"}},
	{"blank width", []string{"Blank Width:"}},
	{"blank height", []string{"Blank Height:"}},
	{"inches of rule", []string{"Inches of Rule:", "Length Cutting Rule:"}},
	{"date", []string{"Date:"}},
}

// valueColors are the non-black fills values are painted with: two gold RGB tones, a
// CMYK gold and a mid gray.
var valueColors = [][]float64{
	{0.86, 0.65, 0},
	{0.94669, 0.78061, 0},
	{0, 0.25, 1, 0.06},
	{0.4},
}

var customers = []string{"Acme Foods", "Beta Corp", "Northwind Produce", "Harbor Brewing", "Summit Labs"}

// BuildCorpus returns n spec sheets. Every third sheet has two pages and every fourth
// leaves some fields blank.
func BuildCorpus(n int) *Corpus {
	c := &Corpus{}
	for i := 0; i < n; i++ {
		pageCount := 1
		if i%3 == 2 {
			pageCount = 2
		}
		sheet := SpecSheet{Name: fmt.Sprintf("spec-%03d.pdf", i+1)}
		pdfPages := make([]pdftest.Page, pageCount)
		for p := 0; p < pageCount; p++ {
			values := sheetValues(i, p)
			pdfPages[p] = layoutPage(i, values)
			sheet.Pages = append(sheet.Pages, values)
		}
		sheet.Content = pdftest.Build(pdfPages...)
		c.Sheets = append(c.Sheets, sheet)
		c.TotalPages += pageCount
	}
	c.TotalDocs = len(c.Sheets)
	return c
}

func sheetValues(doc, page int) map[string]string {
	n := doc*10 + page
	values := map[string]string{
		"customer":       customers[doc%len(customers)],
		"design":         fmt.Sprintf("RSC %dx%dx%d", 10+n%7, 8+n%5, 6+n%3),
		"rev.":           fmt.Sprintf("R%d", n%4),
		"part":           fmt.Sprintf("P-%05d", 1000+n),
		"oppty/proj. #":  fmt.Sprintf("OP-%d", 7000+n),
		"pieces per set": fmt.Sprintf("%d", 1+n%3),
		"board":          []string{"32 ECT", "44 ECT B-Flute", "200# C-Flute"}[n%3],
		"corr direction": []string{"Vertical", "Horizontal"}[n%2],
		"view":           []string{"Outside", "Inside"}[n%2],
		"project mngr.":  []string{"Dana Reyes", "Sam Okafor"}[n%2],
		"designer":       []string{"Lee Park", "Ari Novak", "Jo Chen"}[n%3],
		"id":             fmt.Sprintf("%d", 40000+n),
		"area":           fmt.Sprintf("%d.%02d sq ft", 3+n%9, n%100),
		"blank width":    fmt.Sprintf("%d.125", 20+n%10),
		"blank height":   fmt.Sprintf("%d.5", 14+n%6),
		"inches of rule": fmt.Sprintf("%d.75", 120+n),
		"date":           fmt.Sprintf("2024-%02d-%02d", 1+n%12, 1+n%28),
	}
	if doc%4 == 3 {
		values["view"] = ""
		values["area"] = ""
	}
	return values
}

// layoutPage prints one label line per field, 20pt apart, skipping blank values.
func layoutPage(doc int, values map[string]string) pdftest.Page {
	var p pdftest.Page
	y := 740.0
	for i, fl := range fieldLabels {
		v := values[fl.field]
		if v == "" {
			continue
		}
		label := fl.labels[doc%len(fl.labels)]
		color := valueColors[(doc+i)%len(valueColors)]
		p.Texts = append(p.Texts,
			pdftest.Text{X: 72, Y: y, Text: label},
			pdftest.Text{X: 250, Y: y, Color: color, Text: v},
		)
		y -= 20
	}
	return p
}

// Documents returns the corpus as pipeline input.
func (c *Corpus) Documents() []models.DocumentInput {
	out := make([]models.DocumentInput, len(c.Sheets))
	for i, s := range c.Sheets {
		out[i] = models.DocumentInput{Name: s.Name, Content: s.Content}
	}
	return out
}

// ExpectedRows returns the rows the corpus must produce, in document then page order,
// with every column of set present.
func (c *Corpus) ExpectedRows(set *fields.Set) []models.Row {
	var rows []models.Row
	for _, s := range c.Sheets {
		for p, values := range s.Pages {
			row := set.EmptyRow()
			for k, v := range values {
				row[k] = v
			}
			rows = append(rows, models.Row{DocumentName: s.Name, Page: p + 1, Values: row})
		}
	}
	return rows
}
