package app

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

const (
	lowerQuantile = 0.05
	upperQuantile = 0.95
)

// PowerBounds holds the power range mapped onto the color gradient.
type PowerBounds struct {
	Min float64 // dB
	Max float64 // dB
}

// powerBounds derives display bounds from the 5th and 95th power
// percentiles, so a handful of hot pixels cannot wash out the gradient.
func powerBounds(data [][]float64) PowerBounds {
	var flat []float64
	for _, row := range data {
		flat = append(flat, row...)
	}
	if len(flat) == 0 {
		return PowerBounds{Min: 0, Max: 1}
	}
	sort.Float64s(flat)

	b := PowerBounds{
		Min: stat.Quantile(lowerQuantile, stat.Empirical, flat, nil),
		Max: stat.Quantile(upperQuantile, stat.Empirical, flat, nil),
	}
	if b.Min >= b.Max {
		b.Max = b.Min + 1
	}
	return b
}
