// Package similarity compares embedding vectors.
package similarity

import "math"

// Cosine returns the cosine similarity of a and b in [-1, 1]. Empty vectors, vectors of
// different length and zero-norm vectors carry no signal and yield 0.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// float error can push identical vectors slightly past 1
	return math.Max(-1, math.Min(1, sim))
}

// ToScore maps a similarity in [-1, 1] onto an integer score in [0, 100].
func ToScore(sim float64) int {
	if math.IsNaN(sim) {
		return 50
	}
	sim = math.Max(-1, math.Min(1, sim))
	return int(math.Round((sim + 1) / 2 * 100))
}
