// Package ecdf builds empirical cumulative distributions from latency
// observations and renders the two summary figures.
package ecdf

import "sort"

// XY converts day-count observations into ECDF step points: values
// sorted ascending, the i-th smallest (0-indexed) at rank (i+1)/n.
// Duplicate values keep their own ranks. Empty input yields no points;
// callers skip the curve rather than plot it.
func XY(values []int) (xs, ys []float64) {
	if len(values) == 0 {
		return nil, nil
	}
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)

	n := len(sorted)
	xs = make([]float64, n)
	ys = make([]float64, n)
	for i, v := range sorted {
		xs[i] = float64(v)
		ys[i] = float64(i+1) / float64(n)
	}
	return xs, ys
}
