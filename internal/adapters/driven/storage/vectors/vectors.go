// Package vectors holds the vector math shared by the brute-force index backends.
package vectors

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/custodia-labs/askdocs/internal/core/domain"
)

// Cosine returns the cosine similarity of a and b in [-1, 1].
// Zero vectors and vectors of different length score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Encode packs a vector as little-endian float32s.
func Encode(v []float32) []byte {
	blob := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(f))
	}
	return blob
}

// Decode unpacks a vector written by Encode.
func Decode(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(blob))
	}
	v := make([]float32, len(blob)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return v, nil
}

// CheckDimension returns a DimensionMismatchError when v does not have dim elements.
func CheckDimension(v []float32, dim int) error {
	if len(v) != dim {
		return &domain.DimensionMismatchError{Expected: dim, Actual: len(v)}
	}
	return nil
}

// TopK keeps the k best results seen so far, ordered by descending score
// with ties broken by ascending id.
type TopK struct {
	k       int
	results []domain.RetrievalResult
}

// NewTopK creates a collector for the k best results.
func NewTopK(k int) *TopK {
	return &TopK{k: k, results: make([]domain.RetrievalResult, 0, k+1)}
}

// Add offers a result to the collector.
func (t *TopK) Add(r domain.RetrievalResult) {
	if t.k <= 0 {
		return
	}
	i, _ := slices.BinarySearchFunc(t.results, r, compare)
	if i >= t.k {
		return
	}
	t.results = slices.Insert(t.results, i, r)
	if len(t.results) > t.k {
		t.results = t.results[:t.k]
	}
}

// Results returns the collected results, best first.
func (t *TopK) Results() []domain.RetrievalResult {
	return t.results
}

func compare(a, b domain.RetrievalResult) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	return cmp.Compare(a.Record.ID, b.Record.ID)
}
