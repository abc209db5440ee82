package extract

import "math"

// matrix is a PDF transformation matrix in row-vector form:
// [x y 1] × m maps user space to device space.
type matrix [3][3]float64

var identity = matrix{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

func newMatrix(a, b, c, d, e, f float64) matrix {
	return matrix{{a, b, 0}, {c, d, 0}, {e, f, 1}}
}

func translate(x, y float64) matrix {
	return newMatrix(1, 0, 0, 1, x, y)
}

func (m matrix) mul(n matrix) matrix {
	var out matrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				out[i][j] += m[i][k] * n[k][j]
			}
		}
	}
	return out
}

// origin is the image of (0, 0).
func (m matrix) origin() (float64, float64) {
	return m[2][0], m[2][1]
}

// yScale is the length of the unit y vector after transformation.
func (m matrix) yScale() float64 {
	return math.Hypot(m[1][0], m[1][1])
}
