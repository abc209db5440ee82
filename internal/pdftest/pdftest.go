// Package pdftest builds small, valid PDF documents in memory for tests.
//
// Every page uses one Helvetica font resource (/F1) with a fixed advance of
// 500/1000 em for the printable ASCII range, so a 12pt glyph is 6pt wide.
package pdftest

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

const (
	// PageWidth and PageHeight are the MediaBox dimensions of every page (US Letter).
	PageWidth  = 612.0
	PageHeight = 792.0
	// GlyphWidth is the advance of one glyph in em.
	GlyphWidth = 0.5
)

// Text is one run of text drawn at (X, Y) in PDF user space (origin bottom-left).
type Text struct {
	X, Y  float64
	Size  float64   // defaults to 12
	Color []float64 // one value is gray, three are RGB, four are CMYK; nil is black
	Text  string
}

// Page is a page made of text runs followed by Raw content stream operators.
// Forms are registered as XObject resources /Fm1, /Fm2, ... in order; Raw draws them with Do.
type Page struct {
	Texts []Text
	Raw   string
	Forms []Form
}

// Form is a form XObject. Matrix, when set, is its six-element /Matrix. A form without
// OwnFonts has no /Resources and uses the page's font.
type Form struct {
	Matrix   []float64
	Texts    []Text
	Raw      string
	OwnFonts bool
}

// Build returns a PDF document with the given pages.
func Build(pages ...Page) []byte {
	if len(pages) == 0 {
		pages = []Page{{}}
	}
	w := &writer{}
	w.buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	// 1 catalog, 2 page tree, 3 font, then per page: page, content, forms.
	first := make([]int, len(pages))
	next := 4
	kids := make([]string, len(pages))
	for i, p := range pages {
		first[i] = next
		kids[i] = fmt.Sprintf("%d 0 R", next)
		next += 2 + len(p.Forms)
	}
	w.object("<< /Type /Catalog /Pages 2 0 R >>")
	w.object(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	w.object(fontDict())
	for i, p := range pages {
		var xobjects string
		if len(p.Forms) > 0 {
			refs := make([]string, len(p.Forms))
			for j := range p.Forms {
				refs[j] = fmt.Sprintf("/Fm%d %d 0 R", j+1, first[i]+2+j)
			}
			xobjects = " /XObject << " + strings.Join(refs, " ") + " >>"
		}
		w.object(fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %s %s] /Resources << /Font << /F1 3 0 R >>%s >> /Contents %d 0 R >>",
			num(PageWidth), num(PageHeight), xobjects, first[i]+1))
		w.stream("", content(p.Texts, p.Raw))
		for _, f := range p.Forms {
			w.stream(f.dict(), content(f.Texts, f.Raw))
		}
	}
	return w.finish()
}

func (f Form) dict() string {
	d := fmt.Sprintf("/Type /XObject /Subtype /Form /BBox [0 0 %s %s]", num(PageWidth), num(PageHeight))
	if len(f.Matrix) == 6 {
		parts := make([]string, 6)
		for i, v := range f.Matrix {
			parts[i] = num(v)
		}
		d += " /Matrix [" + strings.Join(parts, " ") + "]"
	}
	if f.OwnFonts {
		d += " /Resources << /Font << /F1 3 0 R >> >>"
	}
	return d
}

// Simple returns a one-page document with a text run per line, top to bottom, 20pt apart.
func Simple(lines ...string) []byte {
	texts := make([]Text, len(lines))
	for i, l := range lines {
		texts[i] = Text{X: 72, Y: 720 - float64(i)*20, Text: l}
	}
	return Build(Page{Texts: texts})
}

func fontDict() string {
	widths := make([]string, 126-32+1)
	for i := range widths {
		widths[i] = strconv.Itoa(int(GlyphWidth * 1000))
	}
	return "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding " +
		"/FirstChar 32 /LastChar 126 /Widths [" + strings.Join(widths, " ") + "] >>"
}

func content(texts []Text, raw string) string {
	var sb strings.Builder
	for _, t := range texts {
		size := t.Size
		if size == 0 {
			size = 12
		}
		fmt.Fprintf(&sb, "BT /F1 %s Tf %s 1 0 0 1 %s %s Tm (%s) Tj ET\n",
			num(size), colorOp(t.Color), num(t.X), num(t.Y), escape(t.Text))
	}
	sb.WriteString(raw)
	return strings.TrimRight(sb.String(), "\n")
}

func colorOp(c []float64) string {
	parts := make([]string, len(c))
	for i, v := range c {
		parts[i] = num(v)
	}
	switch len(c) {
	case 1:
		return parts[0] + " g"
	case 3:
		return strings.Join(parts, " ") + " rg"
	case 4:
		return strings.Join(parts, " ") + " k"
	default:
		return "0 g"
	}
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

type writer struct {
	buf     bytes.Buffer
	offsets []int
}

func (w *writer) object(body string) {
	w.offsets = append(w.offsets, w.buf.Len())
	fmt.Fprintf(&w.buf, "%d 0 obj\n%s\nendobj\n", len(w.offsets), body)
}

func (w *writer) stream(dict, data string) {
	if dict != "" {
		dict += " "
	}
	w.object(fmt.Sprintf("<< %s/Length %d >>\nstream\n%s\nendstream", dict, len(data), data))
}

func (w *writer) finish() []byte {
	xref := w.buf.Len()
	fmt.Fprintf(&w.buf, "xref\n0 %d\n", len(w.offsets)+1)
	w.buf.WriteString("0000000000 65535 f \n")
	for _, off := range w.offsets {
		fmt.Fprintf(&w.buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&w.buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(w.offsets)+1, xref)
	return w.buf.Bytes()
}
