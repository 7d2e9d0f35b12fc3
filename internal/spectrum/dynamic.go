package spectrum

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pulsarpkg/arcfinder/internal/grid"
)

const defaultClipSigma = 7.0

// Dynamic is a cleaned dynamic spectrum: intensity over frequency (rows)
// and observation time (columns), with its provenance metadata. It is never
// mutated after construction.
type Dynamic struct {
	meta Metadata
	grid *grid.Grid

	// fill is the median of finite, non-zero raw cells, used to patch
	// dropouts and clip RFI spikes.
	fill float64
}

type dynamicConfig struct {
	clipSigma          float64
	normalizeFrequency bool
	normalizeTime      bool
}

// DynamicOption configures spectrum cleaning.
type DynamicOption func(*dynamicConfig)

// WithClipSigma sets the outlier threshold: cells at or above
// median + k*stddev are reset to the median. Default is 7.
func WithClipSigma(k float64) DynamicOption {
	return func(c *dynamicConfig) { c.clipSigma = k }
}

// WithFrequencyNormalization toggles per-channel mean equalization, which
// removes horizontal gain striping. Default off.
func WithFrequencyNormalization(on bool) DynamicOption {
	return func(c *dynamicConfig) { c.normalizeFrequency = on }
}

// WithTimeNormalization toggles per-subintegration mean equalization, which
// removes vertical gain striping. Default on.
func WithTimeNormalization(on bool) DynamicOption {
	return func(c *dynamicConfig) { c.normalizeTime = on }
}

// NewDynamic builds a cleaned dynamic spectrum from a raw intensity matrix
// and its observation metadata.
//
// The raw matrix is transposed first when meta.Rotate is set, then dropouts
// (zero or non-finite cells) are patched with the median of the remaining
// cells, positive outliers are clipped back to that median, and optional
// per-axis normalization equalizes channel/subintegration gain. Low or
// negative values are left untouched; only positive spikes distort arc
// power and need removing.
func NewDynamic(raw [][]float64, meta Metadata, opts ...DynamicOption) (*Dynamic, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}

	cfg := dynamicConfig{
		clipSigma:     defaultClipSigma,
		normalizeTime: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	work := copyMatrix(raw)
	if meta.Rotate {
		work = transpose(work)
	}

	fill := medianFiniteNonzero(work)
	for _, row := range work {
		for j, v := range row {
			if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				row[j] = fill
			}
		}
	}

	flat := flatten(work)
	threshold := fill + cfg.clipSigma*stat.StdDev(deviationsFrom(flat, fill), nil)
	for _, row := range work {
		for j, v := range row {
			if v >= threshold {
				row[j] = fill
			}
		}
	}

	if cfg.normalizeFrequency {
		normalizeRows(work, nil)
	}
	if cfg.normalizeTime {
		normalizeColumns(work, nil)
	}

	bw := math.Abs(meta.Bandwidth)
	freqAxis := make([]float64, meta.ChannelCount)
	floats.Span(freqAxis, meta.CenterFrequency-bw/2, meta.CenterFrequency+bw/2)
	timeAxis := make([]float64, meta.SubintCount)
	floats.Span(timeAxis, 0, meta.IntegrationTime)

	g, err := grid.New(work, freqAxis, timeAxis)
	if err != nil {
		return nil, err
	}

	return &Dynamic{meta: meta, grid: g, fill: fill}, nil
}

// Meta returns the observation metadata.
func (d *Dynamic) Meta() Metadata { return d.meta }

// Grid returns the cleaned spectrum grid (frequency rows, time columns).
func (d *Dynamic) Grid() *grid.Grid { return d.grid }

// FillValue returns the median used to patch dropouts and clip outliers.
func (d *Dynamic) FillValue() float64 { return d.fill }

// medianFiniteNonzero returns the median over all finite, non-zero cells,
// or 0 when no such cell exists.
func medianFiniteNonzero(data [][]float64) float64 {
	var vals []float64
	for _, row := range data {
		for _, v := range row {
			if v != 0 && !math.IsNaN(v) && !math.IsInf(v, 0) {
				vals = append(vals, v)
			}
		}
	}
	if len(vals) == 0 {
		return 0
	}
	sort.Float64s(vals)
	if n := len(vals); n%2 == 1 {
		return vals[n/2]
	} else {
		return (vals[n/2-1] + vals[n/2]) / 2
	}
}

func copyMatrix(data [][]float64) [][]float64 {
	out := make([][]float64, len(data))
	for i, row := range data {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

func flatten(data [][]float64) []float64 {
	if len(data) == 0 {
		return nil
	}
	out := make([]float64, 0, len(data)*len(data[0]))
	for _, row := range data {
		out = append(out, row...)
	}
	return out
}

func deviationsFrom(vals []float64, center float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = v - center
	}
	return out
}
