package extract

import (
	"math"
	"strings"
	"unicode"

	"github.com/hyperjump/specsheet/internal/models"
)

// baselineTolerance is how far, in points, glyph baselines may drift within one word.
const baselineTolerance = 1.0

type glyph struct {
	r        rune
	x0, x1   float64
	baseline float64
	size     float64
	color    [3]float64
}

// wordBuilder groups glyphs into words in content stream order.
type wordBuilder struct {
	top       float64
	tolerance float64
	cur       []glyph
	words     []models.Word
}

func newWordBuilder(top, tolerance float64) *wordBuilder {
	return &wordBuilder{top: top, tolerance: tolerance}
}

func (b *wordBuilder) add(g glyph) {
	if g.r == 0 || unicode.IsSpace(g.r) {
		b.flush()
		return
	}
	if len(b.cur) > 0 && b.breaks(g) {
		b.flush()
	}
	b.cur = append(b.cur, g)
}

// breaks reports whether g starts a new word: a different fill colour, another baseline,
// or a horizontal gap (either direction) wider than the tolerance.
func (b *wordBuilder) breaks(g glyph) bool {
	first, last := b.cur[0], b.cur[len(b.cur)-1]
	if g.color != first.color {
		return true
	}
	if math.Abs(g.baseline-first.baseline) > baselineTolerance {
		return true
	}
	gap := g.x0 - last.x1
	return gap > b.tolerance || gap < -b.tolerance
}

func (b *wordBuilder) flush() {
	if len(b.cur) == 0 {
		return
	}
	var sb strings.Builder
	x0 := b.cur[0].x0
	size := 0.0
	for _, g := range b.cur {
		sb.WriteRune(g.r)
		x0 = math.Min(x0, math.Min(g.x0, g.x1))
		size = math.Max(size, g.size)
	}
	first := b.cur[0]
	b.words = append(b.words, models.Word{
		Text:  sb.String(),
		X0:    x0,
		Top:   b.top - (first.baseline + size),
		Color: []float64{first.color[0], first.color[1], first.color[2]},
	})
	b.cur = b.cur[:0]
}

func (b *wordBuilder) finish() []models.Word {
	b.flush()
	return b.words
}
