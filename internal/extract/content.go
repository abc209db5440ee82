package extract

import (
	"github.com/hyperjump/specsheet/internal/models"
	"github.com/hyperjump/specsheet/pkg/utils"
	"github.com/ledongthuc/pdf"
)

// fallbackWidth is the glyph advance, in text space units, used when a font has no width for a code.
const fallbackWidth = 0.5

// maxFormDepth bounds nested form XObjects, which may reference each other.
const maxFormDepth = 8

type colorSpace int

const (
	spaceGray colorSpace = iota
	spaceRGB
	spaceCMYK
	spaceOther
)

// graphicsState is the part of the PDF graphics state that affects word position and colour.
// Text state parameters live here too since q/Q save and restore them.
type graphicsState struct {
	ctm   matrix
	fill  [3]float64
	space colorSpace

	font      string
	fontSize  float64
	charSpace float64
	wordSpace float64
	hscale    float64
	leading   float64
	rise      float64
}

type fontInfo struct {
	font pdf.Font
	enc  pdf.TextEncoding
}

type pageReader struct {
	page  pdf.Page
	state graphicsState
	saved []graphicsState
	tm    matrix
	tlm   matrix
	words *wordBuilder

	// resources and fonts belong to the content stream being interpreted:
	// the page, or the form XObject drawn by Do.
	resources pdf.Value
	fonts     map[string]*fontInfo
	depth     int
}

func (e *Extractor) readPage(page pdf.Page) []models.Word {
	contents := page.V.Key("Contents")
	if contents.IsNull() {
		return nil
	}
	pr := &pageReader{
		page: page,
		state: graphicsState{
			ctm:    identity,
			space:  spaceGray,
			hscale: 1,
		},
		tm:        identity,
		tlm:       identity,
		words:     newWordBuilder(pageTop(page), e.xTolerance),
		resources: page.Resources(),
		fonts:     make(map[string]*fontInfo),
	}
	pdf.Interpret(contents, pr.do)
	return pr.words.finish()
}

// pageTop returns the upper y coordinate of the page's MediaBox, walking up the page tree.
func pageTop(page pdf.Page) float64 {
	for v := page.V; !v.IsNull(); v = v.Key("Parent") {
		box := v.Key("MediaBox")
		if box.Kind() != pdf.Array || box.Len() < 4 {
			continue
		}
		y0, y1 := box.Index(1).Float64(), box.Index(3).Float64()
		if y1 < y0 {
			y0, y1 = y1, y0
		}
		if y1 > 0 {
			return y1
		}
	}
	return DefaultPageHeight
}

func (pr *pageReader) do(stk *pdf.Stack, op string) {
	args := make([]pdf.Value, stk.Len())
	for i := len(args) - 1; i >= 0; i-- {
		args[i] = stk.Pop()
	}
	st := &pr.state

	switch op {
	case "q":
		pr.saved = append(pr.saved, *st)
	case "Q":
		if n := len(pr.saved); n > 0 {
			*st = pr.saved[n-1]
			pr.saved = pr.saved[:n-1]
		}
	case "cm":
		if v := numbers(args); len(v) == 6 {
			st.ctm = newMatrix(v[0], v[1], v[2], v[3], v[4], v[5]).mul(st.ctm)
		}

	case "BT":
		pr.tm, pr.tlm = identity, identity
	case "Tf":
		if len(args) == 2 {
			st.font = args[0].Name()
			st.fontSize = args[1].Float64()
		}
	case "Tc":
		if len(args) == 1 {
			st.charSpace = args[0].Float64()
		}
	case "Tw":
		if len(args) == 1 {
			st.wordSpace = args[0].Float64()
		}
	case "Tz":
		if len(args) == 1 {
			st.hscale = args[0].Float64() / 100
		}
	case "TL":
		if len(args) == 1 {
			st.leading = args[0].Float64()
		}
	case "Ts":
		if len(args) == 1 {
			st.rise = args[0].Float64()
		}
	case "Td":
		if v := numbers(args); len(v) == 2 {
			pr.moveLine(v[0], v[1])
		}
	case "TD":
		if v := numbers(args); len(v) == 2 {
			st.leading = -v[1]
			pr.moveLine(v[0], v[1])
		}
	case "Tm":
		if v := numbers(args); len(v) == 6 {
			pr.tlm = newMatrix(v[0], v[1], v[2], v[3], v[4], v[5])
			pr.tm = pr.tlm
		}
	case "T*":
		pr.moveLine(0, -st.leading)

	case "Tj":
		if len(args) == 1 {
			pr.show(args[0].RawString())
		}
	case "'":
		if len(args) == 1 {
			pr.moveLine(0, -st.leading)
			pr.show(args[0].RawString())
		}
	case "\"":
		if len(args) == 3 {
			st.wordSpace = args[0].Float64()
			st.charSpace = args[1].Float64()
			pr.moveLine(0, -st.leading)
			pr.show(args[2].RawString())
		}
	case "TJ":
		if len(args) == 1 && args[0].Kind() == pdf.Array {
			arr := args[0]
			for i := 0; i < arr.Len(); i++ {
				item := arr.Index(i)
				switch item.Kind() {
				case pdf.String:
					pr.show(item.RawString())
				case pdf.Integer, pdf.Real:
					tx := -item.Float64() / 1000 * st.fontSize * st.hscale
					pr.tm = translate(tx, 0).mul(pr.tm)
				}
			}
		}

	case "g":
		if pr.setFill(spaceGray, numbers(args)) {
			st.space = spaceGray
		}
	case "rg":
		if pr.setFill(spaceRGB, numbers(args)) {
			st.space = spaceRGB
		}
	case "k":
		if pr.setFill(spaceCMYK, numbers(args)) {
			st.space = spaceCMYK
		}
	case "cs":
		if len(args) == 1 {
			st.space = pr.resolveSpace(args[0].Name())
			st.fill = [3]float64{}
		}
	case "sc", "scn":
		pr.setFill(st.space, numbers(args))

	case "Do":
		if len(args) == 1 {
			pr.drawForm(args[0].Name())
		}
	}
}

// drawForm interprets a form XObject in place: its /Matrix is applied on top of the
// current transformation, its own resources are used when present, and the graphics
// and text state are restored afterwards. Image XObjects are ignored.
func (pr *pageReader) drawForm(name string) {
	xobj := pr.resources.Key("XObject").Key(name)
	if xobj.Kind() != pdf.Stream || xobj.Key("Subtype").Name() != "Form" || pr.depth >= maxFormDepth {
		return
	}

	state, saved := pr.state, len(pr.saved)
	tm, tlm := pr.tm, pr.tlm
	resources, fonts := pr.resources, pr.fonts

	if m := xobj.Key("Matrix"); m.Kind() == pdf.Array && m.Len() == 6 {
		v := make([]float64, 6)
		for i := range v {
			v[i] = m.Index(i).Float64()
		}
		pr.state.ctm = newMatrix(v[0], v[1], v[2], v[3], v[4], v[5]).mul(pr.state.ctm)
	}
	if res := xobj.Key("Resources"); res.Kind() == pdf.Dict {
		pr.resources = res
		pr.fonts = make(map[string]*fontInfo)
	}

	pr.depth++
	pdf.Interpret(xobj, pr.do)
	pr.depth--

	pr.state, pr.saved = state, pr.saved[:saved]
	pr.tm, pr.tlm = tm, tlm
	pr.resources, pr.fonts = resources, fonts
}

// resource looks up a named entry of a resource category in the current stream's
// resources, falling back to the page's.
func (pr *pageReader) resource(category, name string) pdf.Value {
	if v := pr.resources.Key(category).Key(name); !v.IsNull() {
		return v
	}
	return pr.page.Resources().Key(category).Key(name)
}

func (pr *pageReader) moveLine(tx, ty float64) {
	pr.tlm = translate(tx, ty).mul(pr.tlm)
	pr.tm = pr.tlm
}

func (pr *pageReader) fontFor(name string) *fontInfo {
	if fi, ok := pr.fonts[name]; ok {
		return fi
	}
	f := pdf.Font{V: pr.resource("Font", name)}
	fi := &fontInfo{font: f}
	if !f.V.IsNull() {
		fi.enc = f.Encoder()
	}
	pr.fonts[name] = fi
	return fi
}

// show emits one glyph per decoded rune and advances the text matrix.
func (pr *pageReader) show(raw string) {
	if raw == "" {
		return
	}
	st := &pr.state
	fi := pr.fontFor(st.font)

	text := raw
	if fi.enc != nil {
		text = fi.enc.Decode(raw)
	}
	runes := []rune(text)
	// Per-code widths and word spacing only apply when each byte decodes to one rune.
	singleByte := len(runes) == len(raw)

	for i, r := range runes {
		w0 := 0.0
		space := false
		if singleByte {
			w0 = fi.font.Width(int(raw[i])) / 1000
			space = raw[i] == ' '
		}
		if w0 <= 0 {
			w0 = fallbackWidth
		}

		render := newMatrix(st.fontSize*st.hscale, 0, 0, st.fontSize, 0, st.rise)
		trm := render.mul(pr.tm).mul(st.ctm)
		x0, baseline := trm.origin()

		tx := w0*st.fontSize + st.charSpace
		if space {
			tx += st.wordSpace
		}
		pr.tm = translate(tx*st.hscale, 0).mul(pr.tm)
		x1, _ := render.mul(pr.tm).mul(st.ctm).origin()

		pr.words.add(glyph{
			r:        r,
			x0:       x0,
			x1:       x1,
			baseline: baseline,
			size:     trm.yScale(),
			color:    st.fill,
		})
	}
}

// resolveSpace maps a colour space name, either a device family or a page resource, to its component model.
func (pr *pageReader) resolveSpace(name string) colorSpace {
	switch name {
	case "DeviceGray", "CalGray", "G":
		return spaceGray
	case "DeviceRGB", "CalRGB", "RGB":
		return spaceRGB
	case "DeviceCMYK", "CMYK":
		return spaceCMYK
	}
	cs := pr.resource("ColorSpace", name)
	if cs.Kind() != pdf.Array || cs.Len() == 0 {
		return spaceOther
	}
	switch cs.Index(0).Name() {
	case "CalGray":
		return spaceGray
	case "CalRGB":
		return spaceRGB
	case "ICCBased":
		if cs.Len() > 1 {
			switch cs.Index(1).Key("N").Int64() {
			case 1:
				return spaceGray
			case 3:
				return spaceRGB
			case 4:
				return spaceCMYK
			}
		}
	}
	return spaceOther
}

// setFill converts operands in the given space to RGB and reports whether the fill changed.
func (pr *pageReader) setFill(space colorSpace, v []float64) bool {
	if space == spaceOther {
		switch len(v) {
		case 1:
			space = spaceGray
		case 3:
			space = spaceRGB
		case 4:
			space = spaceCMYK
		default:
			return false
		}
	}
	for i := range v {
		v[i] = utils.Clamp01(v[i])
	}
	st := &pr.state
	switch {
	case space == spaceGray && len(v) >= 1:
		st.fill = [3]float64{v[0], v[0], v[0]}
	case space == spaceRGB && len(v) >= 3:
		st.fill = [3]float64{v[0], v[1], v[2]}
	case space == spaceCMYK && len(v) >= 4:
		st.fill = cmykToRGB(v[0], v[1], v[2], v[3])
	default:
		return false
	}
	return true
}

func cmykToRGB(c, m, y, k float64) [3]float64 {
	return [3]float64{(1 - c) * (1 - k), (1 - m) * (1 - k), (1 - y) * (1 - k)}
}

// numbers returns the numeric operands, skipping names such as a pattern in scn.
func numbers(args []pdf.Value) []float64 {
	out := make([]float64, 0, len(args))
	for _, a := range args {
		switch a.Kind() {
		case pdf.Integer, pdf.Real:
			out = append(out, a.Float64())
		}
	}
	return out
}
