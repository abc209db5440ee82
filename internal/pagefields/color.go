package pagefields

import "math"

// RGB is a fill colour reduced to three channels.
type RGB [3]float64

// NormalizeColor maps any colour shape to exactly three channels:
//   - a slice or array of numbers keeps its first three entries, padding missing ones with 0
//     (a one-entry gray slice therefore becomes (g, 0, 0), not a gray triple);
//   - a bare number g becomes the gray triple (g, g, g);
//   - anything else, including nil, is black (0, 0, 0).
func NormalizeColor(v any) RGB {
	switch c := v.(type) {
	case RGB:
		return c
	case []float64:
		return fromSlice(c)
	case []float32:
		f := make([]float64, len(c))
		for i, x := range c {
			f[i] = float64(x)
		}
		return fromSlice(f)
	case []int:
		f := make([]float64, len(c))
		for i, x := range c {
			f[i] = float64(x)
		}
		return fromSlice(f)
	case [3]float64:
		return RGB(c)
	case []any:
		f := make([]float64, 0, len(c))
		for _, x := range c {
			n, ok := number(x)
			if !ok {
				return RGB{}
			}
			f = append(f, n)
		}
		return fromSlice(f)
	default:
		if n, ok := number(v); ok {
			return RGB{n, n, n}
		}
		return RGB{}
	}
}

func fromSlice(c []float64) RGB {
	var out RGB
	for i := 0; i < len(c) && i < 3; i++ {
		out[i] = c[i]
	}
	return out
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// DefaultBlackThreshold is the per-channel ceiling below which a colour counts as black ink.
const DefaultBlackThreshold = 0.05

// DefaultGoldTolerance is the per-channel distance within which a colour matches a gold tone.
const DefaultGoldTolerance = 0.13

// DefaultGoldTones are the value-ink colours seen on spec sheets.
var DefaultGoldTones = []RGB{
	{0.86, 0.65, 0.0},
	{0.94669, 0.78061, 0.0},
}

// Mode selects which non-black runs count as values.
type Mode string

const (
	// ModeAnyColor treats every non-black run as a value candidate.
	ModeAnyColor Mode = "any"
	// ModeGold accepts only runs close to one of the gold tones as values.
	ModeGold Mode = "gold"
)

// Kind is the classification of a colour run.
type Kind int

const (
	// KindOther is neither label nor value; it ends a label's value scan.
	KindOther Kind = iota
	// KindLabel is black text.
	KindLabel
	// KindValue is coloured text that may hold a field value.
	KindValue
)

// Classifier decides whether a colour is label ink, value ink, or neither.
type Classifier struct {
	Mode           Mode
	BlackThreshold float64
	GoldTones      []RGB
	GoldTolerance  float64
}

// DefaultClassifier returns the any-colour classifier with default thresholds.
func DefaultClassifier() Classifier {
	return Classifier{
		Mode:           ModeAnyColor,
		BlackThreshold: DefaultBlackThreshold,
		GoldTones:      DefaultGoldTones,
		GoldTolerance:  DefaultGoldTolerance,
	}
}

// IsBlack reports whether every channel of c is below the black threshold.
func (cl Classifier) IsBlack(c RGB) bool {
	return c[0] < cl.BlackThreshold && c[1] < cl.BlackThreshold && c[2] < cl.BlackThreshold
}

// IsGold reports whether c is within tolerance of any gold tone on every channel.
func (cl Classifier) IsGold(c RGB) bool {
	for _, g := range cl.GoldTones {
		if math.Abs(c[0]-g[0]) < cl.GoldTolerance &&
			math.Abs(c[1]-g[1]) < cl.GoldTolerance &&
			math.Abs(c[2]-g[2]) < cl.GoldTolerance {
			return true
		}
	}
	return false
}

// Classify returns the run kind for colour c.
func (cl Classifier) Classify(c RGB) Kind {
	if cl.IsBlack(c) {
		return KindLabel
	}
	if cl.Mode == ModeGold && !cl.IsGold(c) {
		return KindOther
	}
	return KindValue
}
