// Package similarity holds vector similarity primitives.
package similarity

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/vecmatch/internal/domain"
)

// Cosine returns dot(a, b) / (|a| * |b|), in [-1, 1].
// Vectors of unequal length yield domain.ErrDimensionMismatch; a zero or empty
// vector yields domain.ErrDegenerateVector.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("cosine %d vs %d: %w", len(a), len(b), domain.ErrDimensionMismatch)
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, fmt.Errorf("cosine: %w", domain.ErrDegenerateVector)
	}
	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// float rounding can push identical vectors slightly past 1
	return math.Max(-1, math.Min(1, s)), nil
}

// FromDistance converts a cosine distance reported by an index (1 - cos) into
// a similarity score clamped at zero.
func FromDistance(d float64) float64 {
	return math.Max(0, 1-d)
}
