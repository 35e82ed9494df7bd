package search

import (
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"scaled", []float32{1, 1}, []float32{3, 3}, 1},
		{"zero norm", []float32{0, 0}, []float32{1, 1}, 0},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.IsNaN(got) {
				t.Fatalf("got NaN")
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("CosineSimilarity(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCosineSimilaritySymmetric(t *testing.T) {
	a := []float32{0.3, -1.2, 4.5, 0.01}
	b := []float32{2.2, 0.4, -0.7, 9}
	if CosineSimilarity(a, b) != CosineSimilarity(b, a) {
		t.Fatalf("similarity is not symmetric")
	}
}
