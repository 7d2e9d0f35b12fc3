// Package grid provides a 2D numeric grid indexed by physical axis
// coordinates rather than array offsets. A Grid pairs a rectangular matrix
// with an ordered coordinate array per axis, so callers can ask for the
// value nearest (y, x) in axis units, or carve out a sub-grid between
// coordinate bounds, without tracking index arithmetic themselves.
//
// Everything is indexed first with respect to y, then with respect to x.
package grid

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrDimensionMismatch is returned when the matrix shape does not match
	// the axis lengths, or the matrix is not rectangular.
	ErrDimensionMismatch = errors.New("grid: data dimensions do not match axes")

	// ErrEmptyAxis is returned when an axis has no elements.
	ErrEmptyAxis = errors.New("grid: axis must not be empty")

	// ErrOutOfRange is returned when a requested coordinate bound lies
	// outside the axis extent.
	ErrOutOfRange = errors.New("grid: coordinate out of axis range")
)

// Grid is an immutable 2D matrix with coordinate axes. The y axis runs over
// rows, the x axis over columns. Range produces new grids; the receiver is
// never modified after construction.
type Grid struct {
	data  [][]float64
	yAxis []float64
	xAxis []float64
}

// New builds a Grid from a rectangular matrix and its two coordinate axes.
// The inputs are copied, so later mutation of the arguments does not affect
// the grid.
func New(data [][]float64, yAxis, xAxis []float64) (*Grid, error) {
	if len(yAxis) == 0 || len(xAxis) == 0 {
		return nil, ErrEmptyAxis
	}
	if len(data) != len(yAxis) {
		return nil, fmt.Errorf("%w: %d rows vs %d y-axis values", ErrDimensionMismatch, len(data), len(yAxis))
	}

	g := Grid{
		data:  make([][]float64, len(data)),
		yAxis: append([]float64(nil), yAxis...),
		xAxis: append([]float64(nil), xAxis...),
	}
	for i, row := range data {
		if len(row) != len(xAxis) {
			return nil, fmt.Errorf("%w: row %d has %d columns vs %d x-axis values", ErrDimensionMismatch, i, len(row), len(xAxis))
		}
		g.data[i] = append([]float64(nil), row...)
	}
	return &g, nil
}

// Rows returns the number of rows (y-axis length).
func (g *Grid) Rows() int { return len(g.yAxis) }

// Cols returns the number of columns (x-axis length).
func (g *Grid) Cols() int { return len(g.xAxis) }

// Data returns the underlying matrix. The caller must treat it as read-only.
func (g *Grid) Data() [][]float64 { return g.data }

// YAxis returns the row coordinate array. Read-only.
func (g *Grid) YAxis() []float64 { return g.yAxis }

// XAxis returns the column coordinate array. Read-only.
func (g *Grid) XAxis() []float64 { return g.xAxis }

// Value returns the cell at integer indices (i, j).
func (g *Grid) Value(i, j int) float64 { return g.data[i][j] }

// At returns the grid value whose axis coordinates are closest to the
// requested (y, x). Ties resolve to the lower index.
func (g *Grid) At(y, x float64) float64 {
	return g.data[nearestIndex(g.yAxis, y)][nearestIndex(g.xAxis, x)]
}

// Range returns a new grid covering the inclusive index window whose axis
// coordinates are nearest the given bounds. A nil bound defaults to the
// corresponding axis extreme. A non-nil bound outside [min(axis), max(axis)]
// fails with ErrOutOfRange.
func (g *Grid) Range(yLo, yHi, xLo, xHi *float64) (*Grid, error) {
	y0, y1, err := boundIndices(g.yAxis, yLo, yHi)
	if err != nil {
		return nil, fmt.Errorf("y axis: %w", err)
	}
	x0, x1, err := boundIndices(g.xAxis, xLo, xHi)
	if err != nil {
		return nil, fmt.Errorf("x axis: %w", err)
	}

	data := make([][]float64, 0, y1-y0+1)
	for i := y0; i <= y1; i++ {
		data = append(data, g.data[i][x0:x1+1])
	}
	return New(data, g.yAxis[y0:y1+1], g.xAxis[x0:x1+1])
}

// nearestIndex returns the index of the axis value with the minimum absolute
// difference from v, preferring the lowest index on ties.
func nearestIndex(axis []float64, v float64) int {
	best := 0
	bestDiff := math.Abs(axis[0] - v)
	for i := 1; i < len(axis); i++ {
		if d := math.Abs(axis[i] - v); d < bestDiff {
			best, bestDiff = i, d
		}
	}
	return best
}

func boundIndices(axis []float64, lo, hi *float64) (int, int, error) {
	axisMin, axisMax := axisExtent(axis)

	i0 := 0
	if lo != nil {
		if *lo < axisMin || *lo > axisMax {
			return 0, 0, fmt.Errorf("%w: %v not in [%v, %v]", ErrOutOfRange, *lo, axisMin, axisMax)
		}
		i0 = nearestIndex(axis, *lo)
	}

	i1 := len(axis) - 1
	if hi != nil {
		if *hi < axisMin || *hi > axisMax {
			return 0, 0, fmt.Errorf("%w: %v not in [%v, %v]", ErrOutOfRange, *hi, axisMin, axisMax)
		}
		i1 = nearestIndex(axis, *hi)
	}

	if i0 > i1 {
		i0, i1 = i1, i0
	}
	return i0, i1, nil
}

func axisExtent(axis []float64) (min, max float64) {
	min, max = axis[0], axis[0]
	for _, v := range axis[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}
