package spectrum

import (
	"errors"
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pulsarpkg/arcfinder/internal/grid"
)

// ErrInvalidScale is returned when a crop scale falls outside (0, 1].
var ErrInvalidScale = errors.New("spectrum: crop scale must be in (0, 1]")

const (
	backgroundBins   = 25
	backgroundMargin = 3.0 // dB above the modal bin's lower edge
)

// Secondary is the secondary spectrum of a dynamic spectrum: log power over
// differential delay (rows, us) and fringe frequency (columns, mHz). The
// peak is always at 0 dB. It is never mutated after construction.
type Secondary struct {
	dyn  *Dynamic
	grid *grid.Grid
}

type secondaryConfig struct {
	subtractBackground bool
	normalizeFrequency bool
	normalizeTime      bool
	xScale             float64
	yScale             float64
	fullDelay          bool
}

// SecondaryOption configures the secondary spectrum transform.
type SecondaryOption func(*secondaryConfig)

// WithBackgroundSubtraction toggles clipping of the noise floor, estimated
// from the modal histogram bin of the log power. Default on.
func WithBackgroundSubtraction(on bool) SecondaryOption {
	return func(c *secondaryConfig) { c.subtractBackground = on }
}

// WithSecondaryFrequencyNormalization toggles row equalization against the
// outer fringe-frequency quarters, where arc power is absent. Default on.
func WithSecondaryFrequencyNormalization(on bool) SecondaryOption {
	return func(c *secondaryConfig) { c.normalizeFrequency = on }
}

// WithSecondaryTimeNormalization toggles column equalization against the
// highest-delay quarter of rows. Default on.
func WithSecondaryTimeNormalization(on bool) SecondaryOption {
	return func(c *secondaryConfig) { c.normalizeTime = on }
}

// WithCropScales narrows the retained window to the given fractions of the
// fringe-frequency and delay extents, centered on the origin. Both scales
// must be in (0, 1]. Default 1, 1.
func WithCropScales(x, y float64) SecondaryOption {
	return func(c *secondaryConfig) {
		c.xScale = x
		c.yScale = y
	}
}

// WithFullDelayAxis retains the mirrored positive-delay half instead of
// cutting at zero delay.
func WithFullDelayAxis() SecondaryOption {
	return func(c *secondaryConfig) { c.fullDelay = true }
}

// NewSecondary computes the secondary spectrum of d.
//
// The mean-subtracted dynamic spectrum is Fourier transformed in both
// dimensions, shifted so zero delay and zero fringe frequency sit at the
// center, and converted to squared magnitude. Dead cells are patched with
// the median power, power is rescaled to dB below the peak, both axes are
// gain-equalized against arc-free regions, and the noise floor is clipped.
// By default only the non-mirrored delay half is kept, so the delay axis
// runs from the negative Nyquist delay up to zero.
func NewSecondary(d *Dynamic, opts ...SecondaryOption) (*Secondary, error) {
	cfg := secondaryConfig{
		subtractBackground: true,
		normalizeFrequency: true,
		normalizeTime:      true,
		xScale:             1,
		yScale:             1,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.xScale <= 0 || cfg.xScale > 1 || cfg.yScale <= 0 || cfg.yScale > 1 {
		return nil, ErrInvalidScale
	}

	src := d.Grid().Data()
	h, w := len(src), len(src[0])

	work := copyMatrix(src)
	mean := stat.Mean(flatten(work), nil)
	for _, row := range work {
		for j := range row {
			row[j] -= mean
		}
	}

	coeffs := fft2(work)
	power := fftshiftPower(coeffs)

	fill := medianFiniteNonzero(power)
	for _, row := range power {
		for j, v := range row {
			if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				row[j] = fill
			}
		}
	}

	logScale(power)

	if cfg.normalizeFrequency {
		normalizeRows(power, outerQuartersMask(w))
	}
	if cfg.normalizeTime {
		normalizeColumns(power, firstQuarterMask(h))
	}
	if cfg.subtractBackground {
		clipBackground(power)
	}

	meta := d.Meta()
	xAxis := make([]float64, w)
	xNyquist := 1000 / (2 * meta.IntegrationTime)
	floats.Span(xAxis, -xNyquist, xNyquist)

	yNyquist := float64(meta.ChannelCount) / (2 * math.Abs(meta.Bandwidth))

	xMin := w/2 - int(cfg.xScale*float64(w)/2)
	xMax := w/2 + int(cfg.xScale*float64(w)/2)

	var yAxis []float64
	var yMin, yMax int
	if cfg.fullDelay {
		yAxis = make([]float64, h)
		floats.Span(yAxis, -yNyquist, yNyquist)
		yMin = h/2 - int(cfg.yScale*float64(h)/2)
		yMax = h/2 + int(cfg.yScale*float64(h)/2)
	} else {
		// Ascending from the negative Nyquist delay to zero, matching
		// the retained non-mirrored half.
		yAxis = make([]float64, h/2)
		floats.Span(yAxis, 0, yNyquist)
		reverseNegate(yAxis)
		yMin = h/2 - int(cfg.yScale*float64(h)/2)
		yMax = h / 2
	}

	cropped := make([][]float64, 0, yMax-yMin)
	for i := yMin; i < yMax; i++ {
		cropped = append(cropped, power[i][xMin:xMax])
	}

	g, err := grid.New(cropped, yAxis[yMin:yMax], xAxis[xMin:xMax])
	if err != nil {
		return nil, err
	}

	return &Secondary{dyn: d, grid: g}, nil
}

// Meta returns the observation metadata.
func (s *Secondary) Meta() Metadata { return s.dyn.Meta() }

// Dynamic returns the dynamic spectrum this secondary spectrum was
// computed from.
func (s *Secondary) Dynamic() *Dynamic { return s.dyn }

// Grid returns the log power grid (delay rows, fringe frequency columns).
func (s *Secondary) Grid() *grid.Grid { return s.grid }

// Crop returns the coordinate window of the spectrum bounded by the given
// delay and fringe frequency values. Nil bounds extend to the axis extremes.
func (s *Secondary) Crop(delayLo, delayHi, fringeLo, fringeHi *float64) (*grid.Grid, error) {
	return s.grid.Range(delayLo, delayHi, fringeLo, fringeHi)
}

// fft2 computes the two-dimensional Fourier transform of data, rows first
// then columns.
func fft2(data [][]float64) [][]complex128 {
	h, w := len(data), len(data[0])

	out := make([][]complex128, h)
	rowFFT := fourier.NewCmplxFFT(w)
	row := make([]complex128, w)
	for i := range data {
		for j, v := range data[i] {
			row[j] = complex(v, 0)
		}
		out[i] = rowFFT.Coefficients(nil, row)
	}

	colFFT := fourier.NewCmplxFFT(h)
	col := make([]complex128, h)
	for j := 0; j < w; j++ {
		for i := 0; i < h; i++ {
			col[i] = out[i][j]
		}
		res := colFFT.Coefficients(nil, col)
		for i := 0; i < h; i++ {
			out[i][j] = res[i]
		}
	}
	return out
}

// fftshiftPower rolls the zero-frequency bin to the center of both axes and
// returns the squared magnitude.
func fftshiftPower(coeffs [][]complex128) [][]float64 {
	h, w := len(coeffs), len(coeffs[0])
	out := make([][]float64, h)
	for i := range out {
		out[i] = make([]float64, w)
	}
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			m := cmplx.Abs(coeffs[i][j])
			out[(i+h/2)%h][(j+w/2)%w] = m * m
		}
	}
	return out
}

// logScale rescales power in place to decibels below its peak, so the
// maximum cell becomes 0 dB. An all-zero matrix is left untouched.
func logScale(power [][]float64) {
	max := floats.Max(flatten(power))
	if max == 0 {
		return
	}
	for _, row := range power {
		for j, v := range row {
			row[j] = 10 * math.Log10(v/max)
		}
	}
}

// clipBackground raises every cell below the noise floor up to it. The
// floor is the lower edge of the most populated of 25 histogram bins,
// plus a 3 dB margin.
func clipBackground(power [][]float64) {
	vals := flatten(power)
	sort.Float64s(vals)
	lo, hi := vals[0], vals[len(vals)-1]
	if lo == hi {
		return
	}

	dividers := make([]float64, backgroundBins+1)
	floats.Span(dividers, lo, hi)
	dividers[backgroundBins] = math.Nextafter(hi, math.Inf(1))
	counts := stat.Histogram(nil, dividers, vals, nil)

	modal := floats.MaxIdx(counts)
	floor := dividers[modal] + backgroundMargin
	for _, row := range power {
		for j, v := range row {
			if v < floor {
				row[j] = floor
			}
		}
	}
}

// outerQuartersMask weights the first and last quarter of w columns, the
// fringe frequencies far enough from the arc to carry only noise.
func outerQuartersMask(w int) []float64 {
	mask := make([]float64, w)
	for j := range mask {
		if j < w/4 || j >= w-w/4 {
			mask[j] = 1
		}
	}
	return mask
}

// firstQuarterMask weights the first quarter of h rows, the highest delays
// where arc power has died off.
func firstQuarterMask(h int) []float64 {
	mask := make([]float64, h)
	for i := 0; i < h/4; i++ {
		mask[i] = 1
	}
	return mask
}

func reverseNegate(axis []float64) {
	for i, j := 0, len(axis)-1; i < j; i, j = i+1, j-1 {
		axis[i], axis[j] = axis[j], axis[i]
	}
	for i := range axis {
		axis[i] = -axis[i]
	}
}
