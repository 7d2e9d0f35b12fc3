package grid

import (
	"errors"
	"testing"
)

func testGrid(t *testing.T) *Grid {
	t.Helper()
	g, err := New(
		[][]float64{
			{1, 2, 3, 4},
			{5, 6, 7, 8},
			{9, 10, 11, 12},
		},
		[]float64{0, 10, 20},
		[]float64{-1, 0, 1, 2},
	)
	if err != nil {
		t.Fatalf("Failed to create grid: %v", err)
	}
	return g
}

func TestNew_Validation(t *testing.T) {
	testCases := []struct {
		name  string
		data  [][]float64
		yAxis []float64
		xAxis []float64
		want  error
	}{
		{"row count mismatch", [][]float64{{1, 2}}, []float64{0, 1}, []float64{0, 1}, ErrDimensionMismatch},
		{"column count mismatch", [][]float64{{1, 2}, {3, 4}}, []float64{0, 1}, []float64{0}, ErrDimensionMismatch},
		{"ragged rows", [][]float64{{1, 2}, {3}}, []float64{0, 1}, []float64{0, 1}, ErrDimensionMismatch},
		{"empty y axis", [][]float64{}, []float64{}, []float64{0}, ErrEmptyAxis},
		{"empty x axis", [][]float64{{}}, []float64{0}, []float64{}, ErrEmptyAxis},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.data, tc.yAxis, tc.xAxis); !errors.Is(err, tc.want) {
				t.Errorf("New() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestNew_CopiesInput(t *testing.T) {
	data := [][]float64{{1, 2}, {3, 4}}
	yAxis := []float64{0, 1}
	xAxis := []float64{0, 1}

	g, err := New(data, yAxis, xAxis)
	if err != nil {
		t.Fatalf("Failed to create grid: %v", err)
	}

	data[0][0] = 99
	yAxis[0] = 99
	if got := g.Value(0, 0); got != 1 {
		t.Errorf("Grid data mutated through input slice: got %v, want 1", got)
	}
	if got := g.YAxis()[0]; got != 0 {
		t.Errorf("Grid axis mutated through input slice: got %v, want 0", got)
	}
}

func TestAt_NearestCoordinate(t *testing.T) {
	g := testGrid(t)

	testCases := []struct {
		name string
		y, x float64
		want float64
	}{
		{"exact", 10, 0, 6},
		{"nearest y", 12, 0, 6},
		{"nearest x", 0, 0.4, 2},
		{"beyond extremes clamps to nearest", 100, 100, 12},
		{"tie resolves to lower index", 5, -0.5, 1}, // y=5 between 0 and 10, x=-0.5 between -1 and 0
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := g.At(tc.y, tc.x); got != tc.want {
				t.Errorf("At(%v, %v) = %v, want %v", tc.y, tc.x, got, tc.want)
			}
		})
	}
}

func TestRange_FullExtentIsIdentity(t *testing.T) {
	g := testGrid(t)

	yLo, yHi := 0.0, 20.0
	xLo, xHi := -1.0, 2.0
	sub, err := g.Range(&yLo, &yHi, &xLo, &xHi)
	if err != nil {
		t.Fatalf("Range() failed: %v", err)
	}

	if sub.Rows() != g.Rows() || sub.Cols() != g.Cols() {
		t.Fatalf("Range() shape = %dx%d, want %dx%d", sub.Rows(), sub.Cols(), g.Rows(), g.Cols())
	}
	for i := 0; i < g.Rows(); i++ {
		for j := 0; j < g.Cols(); j++ {
			if sub.Value(i, j) != g.Value(i, j) {
				t.Errorf("Range()[%d][%d] = %v, want %v", i, j, sub.Value(i, j), g.Value(i, j))
			}
		}
	}
}

func TestRange_NilBoundsDefaultToExtremes(t *testing.T) {
	g := testGrid(t)

	sub, err := g.Range(nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("Range() failed: %v", err)
	}
	if sub.Rows() != g.Rows() || sub.Cols() != g.Cols() {
		t.Errorf("Range() shape = %dx%d, want %dx%d", sub.Rows(), sub.Cols(), g.Rows(), g.Cols())
	}
}

func TestRange_SubWindow(t *testing.T) {
	g := testGrid(t)

	yLo := 10.0
	xHi := 0.4 // nearest to x-axis value 0 (index 1)
	sub, err := g.Range(&yLo, nil, nil, &xHi)
	if err != nil {
		t.Fatalf("Range() failed: %v", err)
	}

	if sub.Rows() != 2 || sub.Cols() != 2 {
		t.Fatalf("Range() shape = %dx%d, want 2x2", sub.Rows(), sub.Cols())
	}
	if got := sub.Value(0, 0); got != 5 {
		t.Errorf("Range()[0][0] = %v, want 5", got)
	}
	if got := sub.Value(1, 1); got != 10 {
		t.Errorf("Range()[1][1] = %v, want 10", got)
	}
}

func TestRange_OutOfRange(t *testing.T) {
	g := testGrid(t)

	bad := 21.0
	if _, err := g.Range(&bad, nil, nil, nil); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Range() error = %v, want ErrOutOfRange", err)
	}

	badX := -1.5
	if _, err := g.Range(nil, nil, &badX, nil); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Range() error = %v, want ErrOutOfRange", err)
	}
}
