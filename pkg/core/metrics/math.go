// Package metrics provides the five pure metric extractors that turn a
// company's financial history into flagged results. All functions are
// stateless and perform no I/O; they are safe to call concurrently.
package metrics

import (
	"math"
	"sort"
)

// CAGR calculates compound annual growth rate over the given span.
// Returns false when the start value or span makes the growth rate undefined.
func CAGR(start, end float64, years float64) (float64, bool) {
	if start <= 0 || years <= 0 {
		return 0, false
	}
	return math.Pow(end/start, 1/years) - 1, true
}

// Mean calculates the arithmetic mean.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Median calculates the median of the values.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Slope fits y = a + b*x by least squares over x = 0..n-1 and returns b.
// Returns false when fewer than two points are given.
func Slope(values []float64) (float64, bool) {
	n := float64(len(values))
	if n < 2 {
		return 0, false
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, false
	}
	return (n*sumXY - sumX*sumY) / denom, true
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
