package pagefields

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeColor(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want RGB
	}{
		{"rgb slice", []float64{0.1, 0.2, 0.3}, RGB{0.1, 0.2, 0.3}},
		{"cmyk truncated", []float64{0.1, 0.2, 0.3, 0.4}, RGB{0.1, 0.2, 0.3}},
		{"one channel padded", []float64{0.5}, RGB{0.5, 0, 0}},
		{"empty slice", []float64{}, RGB{}},
		{"nil slice", []float64(nil), RGB{}},
		{"float32 slice", []float32{1, 0.5}, RGB{1, 0.5, 0}},
		{"int slice", []int{1, 0, 1}, RGB{1, 0, 1}},
		{"any slice", []any{1.0, 0.5, 0.25}, RGB{1, 0.5, 0.25}},
		{"any slice with junk", []any{"x"}, RGB{}},
		{"array", [3]float64{0.3, 0.3, 0.3}, RGB{0.3, 0.3, 0.3}},
		{"bare float", 0.7, RGB{0.7, 0.7, 0.7}},
		{"bare int", 1, RGB{1, 1, 1}},
		{"nil", nil, RGB{}},
		{"string", "red", RGB{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeColor(tt.in))
		})
	}
}

func TestClassifier(t *testing.T) {
	cl := DefaultClassifier()
	assert.Equal(t, KindLabel, cl.Classify(RGB{0, 0, 0}))
	assert.Equal(t, KindLabel, cl.Classify(RGB{0.049, 0.01, 0}))
	assert.Equal(t, KindValue, cl.Classify(RGB{0.05, 0, 0}))
	assert.Equal(t, KindValue, cl.Classify(RGB{1, 0, 0}))

	cl.Mode = ModeGold
	assert.Equal(t, KindValue, cl.Classify(RGB{0.9, 0.7, 0.05}))
	assert.Equal(t, KindValue, cl.Classify(RGB{0.94669, 0.78061, 0}))
	assert.Equal(t, KindOther, cl.Classify(RGB{1, 0, 0}))
	assert.Equal(t, KindLabel, cl.Classify(RGB{}))
}
