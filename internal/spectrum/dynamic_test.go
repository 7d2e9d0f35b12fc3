package spectrum

import (
	"errors"
	"math"
	"testing"
)

func testMeta(nchan, nsub int) Metadata {
	return Metadata{
		Source:          "B0834+06",
		Filename:        "B0834+06_430MHz.fits",
		MJD:             53812.4,
		CenterFrequency: 430,
		Bandwidth:       10,
		IntegrationTime: 3600,
		ChannelCount:    nchan,
		SubintCount:     nsub,
	}
}

func TestNewDynamic_InvalidMetadata(t *testing.T) {
	meta := testMeta(2, 2)
	meta.Filename = ""

	_, err := NewDynamic([][]float64{{1, 1}, {1, 1}}, meta)
	if !errors.Is(err, ErrMissingMetadata) {
		t.Fatalf("NewDynamic() error = %v, want ErrMissingMetadata", err)
	}
}

func TestNewDynamic_MedianFill(t *testing.T) {
	raw := [][]float64{
		{1, 2, 0},
		{3, math.NaN(), 4},
		{5, math.Inf(1), 6},
	}

	d, err := NewDynamic(raw, testMeta(3, 3), WithTimeNormalization(false))
	if err != nil {
		t.Fatalf("NewDynamic() error = %v", err)
	}

	// Median of {1, 2, 3, 4, 5, 6} is 3.5.
	if got := d.FillValue(); got != 3.5 {
		t.Errorf("FillValue() = %v, want 3.5", got)
	}
	for _, idx := range [][2]int{{0, 2}, {1, 1}, {2, 1}} {
		if got := d.Grid().Value(idx[0], idx[1]); got != 3.5 {
			t.Errorf("cell [%d][%d] = %v, want fill value 3.5", idx[0], idx[1], got)
		}
	}
	if got := d.Grid().Value(0, 0); got != 1 {
		t.Errorf("untouched cell [0][0] = %v, want 1", got)
	}
}

func TestNewDynamic_ClipsOutliers(t *testing.T) {
	raw := [][]float64{
		{1, 1, 1, 1},
		{1, 1000, 1, 1},
		{1, 1, 1, 1},
		{1, 1, 1, 1},
	}

	d, err := NewDynamic(raw, testMeta(4, 4),
		WithClipSigma(2),
		WithTimeNormalization(false))
	if err != nil {
		t.Fatalf("NewDynamic() error = %v", err)
	}

	if got := d.Grid().Value(1, 1); got != 1 {
		t.Errorf("spike cell = %v, want clipped to median 1", got)
	}
	if got := d.Grid().Value(0, 0); got != 1 {
		t.Errorf("untouched cell = %v, want 1", got)
	}
}

func TestNewDynamic_Rotate(t *testing.T) {
	raw := [][]float64{
		{1, 2, 3},
		{4, 5, 6},
	}
	meta := testMeta(3, 2)
	meta.Rotate = true

	d, err := NewDynamic(raw, meta, WithTimeNormalization(false))
	if err != nil {
		t.Fatalf("NewDynamic() error = %v", err)
	}

	g := d.Grid()
	if g.Rows() != 3 || g.Cols() != 2 {
		t.Fatalf("grid is %dx%d, want 3x2", g.Rows(), g.Cols())
	}
	if got := g.Value(0, 1); got != 4 {
		t.Errorf("Value(0, 1) = %v, want transposed 4", got)
	}
	if got := g.Value(2, 0); got != 3 {
		t.Errorf("Value(2, 0) = %v, want transposed 3", got)
	}
}

func TestNewDynamic_Axes(t *testing.T) {
	raw := [][]float64{
		{1, 2, 3, 4},
		{5, 6, 7, 8},
		{9, 10, 11, 12},
		{13, 14, 15, 16},
	}

	d, err := NewDynamic(raw, testMeta(4, 4))
	if err != nil {
		t.Fatalf("NewDynamic() error = %v", err)
	}

	freq := d.Grid().YAxis()
	if len(freq) != 4 {
		t.Fatalf("frequency axis has %d points, want 4", len(freq))
	}
	if !approx(freq[0], 425, 1e-9) || !approx(freq[3], 435, 1e-9) {
		t.Errorf("frequency axis spans [%v, %v], want [425, 435]", freq[0], freq[3])
	}

	tm := d.Grid().XAxis()
	if !approx(tm[0], 0, 1e-9) || !approx(tm[3], 3600, 1e-9) {
		t.Errorf("time axis spans [%v, %v], want [0, 3600]", tm[0], tm[3])
	}
}

func TestNewDynamic_TimeNormalizationDefault(t *testing.T) {
	raw := [][]float64{
		{1, 4},
		{1, 4},
	}

	d, err := NewDynamic(raw, testMeta(2, 2))
	if err != nil {
		t.Fatalf("NewDynamic() error = %v", err)
	}

	g := d.Grid()
	m0 := (g.Value(0, 0) + g.Value(1, 0)) / 2
	m1 := (g.Value(0, 1) + g.Value(1, 1)) / 2
	if !approx(m0, m1, 1e-12) {
		t.Errorf("column means %v and %v differ, want equalized by default", m0, m1)
	}
}

func TestMedianFiniteNonzero(t *testing.T) {
	tests := []struct {
		name string
		data [][]float64
		want float64
	}{
		{"odd count", [][]float64{{3, 1, 2}}, 2},
		{"even count", [][]float64{{1, 2}, {3, 4}}, 2.5},
		{"ignores zeros and non-finite", [][]float64{{0, math.NaN(), 5}, {math.Inf(-1), 0, 7}}, 6},
		{"no usable cells", [][]float64{{0, 0}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := medianFiniteNonzero(tt.data); got != tt.want {
				t.Errorf("medianFiniteNonzero() = %v, want %v", got, tt.want)
			}
		})
	}
}
