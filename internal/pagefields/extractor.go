// Package pagefields turns the words of one PDF page into field values. Labels are printed in
// black; the coloured text that follows a label on the same visual line is its value.
package pagefields

import (
	"math"
	"sort"
	"strings"

	"github.com/hyperjump/specsheet/internal/models"
	"github.com/hyperjump/specsheet/pkg/utils"
	"go.uber.org/zap"
)

// Collision selects what happens when a field is matched more than once on a page.
type Collision string

const (
	// CollisionConcatenate appends later values to earlier ones with a single space.
	CollisionConcatenate Collision = "concatenate"
	// CollisionOverwrite keeps only the last value.
	CollisionOverwrite Collision = "overwrite"
)

// LabelMatcher resolves a raw label to a canonical field name.
type LabelMatcher interface {
	Match(label string) (string, bool)
}

// Extractor extracts field values from page words.
type Extractor struct {
	matcher    LabelMatcher
	classifier Classifier
	collision  Collision
	logger     *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithClassifier replaces the default any-colour classifier.
func WithClassifier(c Classifier) Option {
	return func(e *Extractor) { e.classifier = c }
}

// WithCollision sets the within-page collision policy.
func WithCollision(c Collision) Option {
	return func(e *Extractor) { e.collision = c }
}

// WithLogger sets a logger for debug output (dropped labels, collisions).
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// NewExtractor returns an extractor that resolves labels with matcher.
// Defaults: any non-black run is a value; repeated fields are concatenated.
func NewExtractor(matcher LabelMatcher, opts ...Option) *Extractor {
	e := &Extractor{
		matcher:    matcher,
		classifier: DefaultClassifier(),
		collision:  CollisionConcatenate,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type run struct {
	kind  Kind
	words []models.Word
}

// Extract returns the field values found on a page. Fields that do not appear are absent.
func (e *Extractor) Extract(words []models.Word) map[string]string {
	out := make(map[string]string)
	for _, line := range groupLines(words) {
		e.pairLine(e.splitRuns(line), out)
	}
	return out
}

// groupLines buckets words by rounded top (half to even) and returns the lines top to bottom,
// each ordered left to right.
func groupLines(words []models.Word) [][]models.Word {
	byTop := make(map[int][]models.Word)
	for _, w := range words {
		y := int(math.RoundToEven(w.Top))
		byTop[y] = append(byTop[y], w)
	}
	tops := make([]int, 0, len(byTop))
	for y := range byTop {
		tops = append(tops, y)
	}
	sort.Ints(tops)

	lines := make([][]models.Word, 0, len(tops))
	for _, y := range tops {
		line := byTop[y]
		sort.SliceStable(line, func(i, j int) bool { return line[i].X0 < line[j].X0 })
		lines = append(lines, line)
	}
	return lines
}

// splitRuns cuts a line wherever the colour differs from the previous word's.
func (e *Extractor) splitRuns(line []models.Word) []run {
	if len(line) == 0 {
		return nil
	}
	var runs []run
	runColor := NormalizeColor(line[0].Color)
	cur := run{kind: e.classifier.Classify(runColor), words: []models.Word{line[0]}}
	prev := runColor
	for _, w := range line[1:] {
		c := NormalizeColor(w.Color)
		if c == prev {
			cur.words = append(cur.words, w)
			continue
		}
		runs = append(runs, cur)
		cur = run{kind: e.classifier.Classify(c), words: []models.Word{w}}
		prev = c
	}
	return append(runs, cur)
}

func (e *Extractor) pairLine(runs []run, out map[string]string) {
	for i := 0; i < len(runs); {
		if runs[i].kind != KindLabel {
			i++
			continue
		}
		var values []string
		j := i + 1
		for ; j < len(runs) && runs[j].kind == KindValue; j++ {
			for _, w := range runs[j].words {
				if strings.TrimSpace(w.Text) != "" {
					values = append(values, w.Text)
				}
			}
		}
		if len(values) > 0 {
			e.record(labelText(runs[i].words), utils.CollapseSpace(strings.Join(values, " ")), out)
		} else if e.logger != nil {
			e.logger.Debug("label without value", zap.String("label", labelText(runs[i].words)))
		}
		i = j
	}
}

func (e *Extractor) record(label, value string, out map[string]string) {
	if value == "" {
		return
	}
	field, ok := e.matcher.Match(label)
	if !ok {
		return
	}
	prev, seen := out[field]
	if seen && prev != "" && e.collision == CollisionConcatenate {
		out[field] = strings.TrimSpace(prev + " " + value)
	} else {
		out[field] = value
	}
	if seen && e.logger != nil {
		e.logger.Debug("field repeated on page", zap.String("field", field), zap.String("policy", string(e.collision)))
	}
}

func labelText(words []models.Word) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Text
	}
	return strings.TrimSpace(strings.ReplaceAll(strings.Join(parts, " "), ":", ""))
}
