package arcfind

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/pulsarpkg/arcfinder/internal/grid"
)

// ErrInvalidParameter is returned for search parameters outside their
// valid domain: a curvature range with max below min, non-positive
// curvatures, or sample counts too small to form a sweep.
var ErrInvalidParameter = errors.New("arcfind: invalid search parameter")

// Source supplies the read-only grid a search runs against. A grid is
// never mutated during a search, so searches may run concurrently against
// the same source.
type Source interface {
	Grid() *grid.Grid
}

// EtaPower is one curvature sample: the weighted arc power integrated
// along the parabola y = Eta*x^2.
type EtaPower struct {
	Eta   float64
	Power float64
}

// CurvatureProfile is a curvature sweep result, ordered by ascending eta.
type CurvatureProfile []EtaPower

// Peak returns the sample with the highest power. Ok is false for an
// empty profile.
func (p CurvatureProfile) Peak() (EtaPower, bool) {
	if len(p) == 0 {
		return EtaPower{}, false
	}
	best := p[0]
	for _, s := range p[1:] {
		if s.Power > best.Power {
			best = s
		}
	}
	return best, true
}

// ArcPower is the power near one sample point on a parabola.
type ArcPower struct {
	X     float64
	Y     float64
	Power float64
}

// OffsetProfile is an along-parabola power profile, ordered by ascending x.
type OffsetProfile []ArcPower

// OffsetPower is the arc power at one parabola offset.
type OffsetPower struct {
	Offset float64
	Power  float64
}

// WidthProfile is a parabola-width sweep result, ordered by ascending
// offset.
type WidthProfile []OffsetPower

// Engine runs curvature searches against one spectrum. The three search
// kinds each overwrite their own stored profile; the source grid is never
// touched.
type Engine struct {
	g       *grid.Grid
	log     *slog.Logger
	workers int

	pxY, pxX       float64
	sigmaY, sigmaX float64

	mu        sync.Mutex
	curvature CurvatureProfile
	offsets   OffsetProfile
	widths    WidthProfile
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers sets the search pool size. Values below 1 fall back to the
// default of available CPUs minus one, floor one.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n >= 1 {
			e.workers = n
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithSigma overrides the kernel widths in axis units. A sigma below the
// grid pixel spacing is clamped up to the spacing.
func WithSigma(sigmaY, sigmaX float64) Option {
	return func(e *Engine) {
		e.sigmaY = sigmaY
		e.sigmaX = sigmaX
	}
}

// New builds a search engine over the source's grid.
func New(src Source, opts ...Option) *Engine {
	g := src.Grid()
	e := &Engine{
		g:       g,
		log:     slog.Default(),
		workers: defaultWorkers(),
		pxY:     axisSpacing(g.YAxis()),
		pxX:     axisSpacing(g.XAxis()),
	}
	e.sigmaY = e.pxY
	e.sigmaX = e.pxX
	for _, opt := range opts {
		opt(e)
	}
	if e.sigmaY < e.pxY {
		e.sigmaY = e.pxY
	}
	if e.sigmaX < e.pxX {
		e.sigmaX = e.pxX
	}
	return e
}

func defaultWorkers() int {
	if n := runtime.NumCPU() - 1; n > 1 {
		return n
	}
	return 1
}

func axisSpacing(axis []float64) float64 {
	if len(axis) < 2 {
		return 1
	}
	return math.Abs(axis[1] - axis[0])
}

// CurvatureSweep integrates the weighted arc power of y = eta*x^2 for
// numEtas curvatures spanning [etaMin, etaMax]. The curvatures are sampled
// uniformly in sqrt(1/eta), which gives equal resolution in arc width
// rather than in curvature. With numEtas of 1 the midpoint of the range is
// evaluated directly, without dispatching workers.
//
// The result is returned ordered by ascending eta and stored as the
// engine's curvature profile.
func (e *Engine) CurvatureSweep(etaMin, etaMax float64, numEtas int) (CurvatureProfile, error) {
	switch {
	case numEtas < 1:
		return nil, fmt.Errorf("%w: curvature count %d", ErrInvalidParameter, numEtas)
	case etaMin <= 0:
		return nil, fmt.Errorf("%w: curvature range must be positive", ErrInvalidParameter)
	case etaMax < etaMin:
		return nil, fmt.Errorf("%w: curvature range max %v below min %v",
			ErrInvalidParameter, etaMax, etaMin)
	}

	if numEtas == 1 {
		eta := (etaMin + etaMax) / 2
		profile := CurvatureProfile{{Eta: eta, Power: e.parabolaPower(eta)}}
		e.storeCurvature(profile)
		return profile, nil
	}

	// Ascending in sqrt(1/eta) means descending in eta.
	xs := make([]float64, numEtas)
	floats.Span(xs, math.Sqrt(1/etaMax), math.Sqrt(1/etaMin))
	etas := make([]float64, numEtas)
	for i, x := range xs {
		etas[i] = 1 / (x * x)
	}

	e.log.Debug("curvature sweep",
		"eta_min", etaMin, "eta_max", etaMax, "samples", numEtas, "workers", e.workers)

	powers, err := runTasks(e.workers, etas, func(eta float64) (float64, error) {
		return e.parabolaPower(eta), nil
	})
	if err != nil {
		return nil, err
	}

	profile := make(CurvatureProfile, numEtas)
	for i := range etas {
		// Reverse into ascending eta order.
		profile[numEtas-1-i] = EtaPower{Eta: etas[i], Power: powers[i]}
	}
	e.storeCurvature(profile)
	return profile, nil
}

// PowerAlongParabola resolves how the arc power of y = eta*x^2 is
// distributed along the parabola, e.g. whether one side of the arc is
// brighter than the other. Sample points are spaced quadratically in x,
// denser near the origin, symmetric about x = 0, and each is integrated
// with a plain Gaussian kernel of sigmaPx pixel-widths. The two end points
// instead use the spacing to their single neighbor, never below the pixel
// spacing.
//
// The result is returned ordered by ascending x and stored as the
// engine's offset profile.
func (e *Engine) PowerAlongParabola(eta float64, numPoints int, sigmaPx float64) (OffsetProfile, error) {
	switch {
	case eta <= 0:
		return nil, fmt.Errorf("%w: curvature %v", ErrInvalidParameter, eta)
	case numPoints < 4:
		return nil, fmt.Errorf("%w: need at least 4 sample points, got %d",
			ErrInvalidParameter, numPoints)
	case sigmaPx <= 0:
		return nil, fmt.Errorf("%w: sigma %v pixels", ErrInvalidParameter, sigmaPx)
	}

	maxX := math.Sqrt(axisReach(e.g.YAxis()) / eta)
	if reach := axisReach(e.g.XAxis()); maxX > reach {
		maxX = reach
	}

	half := numPoints / 2
	ts := make([]float64, half)
	floats.Span(ts, 0, 1)
	xs := make([]float64, 0, 2*half-1)
	for i := half - 1; i > 0; i-- {
		xs = append(xs, -maxX*ts[i]*ts[i])
	}
	for _, t := range ts {
		xs = append(xs, maxX*t*t)
	}

	pts := make([]ArcPower, len(xs))
	for i, x := range xs {
		pts[i] = ArcPower{X: x, Y: eta * x * x}
	}

	sigmaY := e.clampSigmaY(sigmaPx * e.pxY)
	sigmaX := e.clampSigmaX(sigmaPx * e.pxX)
	sigmas := make([][2]float64, len(pts))
	for i := range pts {
		switch i {
		case 0:
			sigmas[i] = e.clampSigmas(neighborSigma(pts[0], pts[1]))
		case len(pts) - 1:
			sigmas[i] = e.clampSigmas(neighborSigma(pts[len(pts)-1], pts[len(pts)-2]))
		default:
			sigmas[i] = [2]float64{sigmaY, sigmaX}
		}
	}

	e.log.Debug("along-parabola sweep", "eta", eta, "samples", len(pts), "workers", e.workers)

	idx := make([]int, len(pts))
	for i := range idx {
		idx[i] = i
	}
	powers, err := runTasks(e.workers, idx, func(i int) (float64, error) {
		return e.pointPower(pts[i].Y, pts[i].X, sigmas[i][0], sigmas[i][1]), nil
	})
	if err != nil {
		return nil, err
	}

	profile := make(OffsetProfile, len(pts))
	for i, p := range pts {
		p.Power = powers[i]
		profile[i] = p
	}
	e.storeOffsets(profile)
	return profile, nil
}

// ParabolaWidth measures arc thickness by integrating the curvature kernel
// at square-root-spaced offsets perpendicular to the parabola, symmetric
// in [-maxOffset, maxOffset]. Each offset shifts the kernel target by
// (y + eta*offset^2, x - offset) while cell radii stay unshifted.
//
// The result is returned ordered by ascending offset and stored as the
// engine's width profile.
func (e *Engine) ParabolaWidth(eta, maxOffset float64, numOffsets int) (WidthProfile, error) {
	switch {
	case eta <= 0:
		return nil, fmt.Errorf("%w: curvature %v", ErrInvalidParameter, eta)
	case maxOffset <= 0:
		return nil, fmt.Errorf("%w: max offset %v", ErrInvalidParameter, maxOffset)
	case numOffsets < 4:
		return nil, fmt.Errorf("%w: need at least 4 offsets, got %d",
			ErrInvalidParameter, numOffsets)
	}

	half := numOffsets / 2
	ts := make([]float64, half)
	floats.Span(ts, 0, 1)
	offsets := make([]float64, 0, 2*half-1)
	for i := half - 1; i > 0; i-- {
		offsets = append(offsets, -maxOffset*math.Sqrt(ts[i]))
	}
	for _, t := range ts {
		offsets = append(offsets, maxOffset*math.Sqrt(t))
	}

	e.log.Debug("width sweep",
		"eta", eta, "max_offset", maxOffset, "samples", len(offsets), "workers", e.workers)

	powers, err := runTasks(e.workers, offsets, func(off float64) (float64, error) {
		return e.offsetPower(eta, off), nil
	})
	if err != nil {
		return nil, err
	}

	profile := make(WidthProfile, len(offsets))
	for i, off := range offsets {
		profile[i] = OffsetPower{Offset: off, Power: powers[i]}
	}
	e.storeWidths(profile)
	return profile, nil
}

// Profiles returns the profiles stored by previous searches, in the order
// curvature, along-parabola, width. Unsearched kinds are nil.
func (e *Engine) Profiles() (CurvatureProfile, OffsetProfile, WidthProfile) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.curvature, e.offsets, e.widths
}

func (e *Engine) storeCurvature(p CurvatureProfile) {
	e.mu.Lock()
	e.curvature = p
	e.mu.Unlock()
}

func (e *Engine) storeOffsets(p OffsetProfile) {
	e.mu.Lock()
	e.offsets = p
	e.mu.Unlock()
}

func (e *Engine) storeWidths(p WidthProfile) {
	e.mu.Lock()
	e.widths = p
	e.mu.Unlock()
}

// parabolaPower is the variance-weighted mean of the grid under the
// curvature kernel for one eta. Weighting by 1/variance rather than
// summing raw products keeps sparse kernel coverage from biasing the
// result toward zero.
func (e *Engine) parabolaPower(eta float64) float64 {
	return e.reduce(func(y, x float64) float64 {
		return parabolaWeight(eta, x, y, e.sigmaY, e.sigmaX)
	})
}

func (e *Engine) pointPower(py, px, sigmaY, sigmaX float64) float64 {
	return e.reduce(func(y, x float64) float64 {
		return pointWeight(y, x, py, px, sigmaY, sigmaX)
	})
}

func (e *Engine) offsetPower(eta, offset float64) float64 {
	return e.reduce(func(y, x float64) float64 {
		yEff := y + eta*offset*offset
		xEff := x - offset
		return offsetWeight(eta, y, x, yEff, xEff, e.sigmaY, e.sigmaX)
	})
}

func (e *Engine) reduce(weight func(y, x float64) float64) float64 {
	data, ys, xs := e.g.Data(), e.g.YAxis(), e.g.XAxis()
	var num, den float64
	for i, row := range data {
		y := ys[i]
		for j, v := range row {
			w := weight(y, xs[j])
			if w < weightFloor {
				continue
			}
			num += v * w
			den += w
		}
	}
	if den == 0 {
		return 0
	}
	return num / den
}

func (e *Engine) clampSigmaY(s float64) float64 {
	if s < e.pxY {
		return e.pxY
	}
	return s
}

func (e *Engine) clampSigmaX(s float64) float64 {
	if s < e.pxX {
		return e.pxX
	}
	return s
}

func (e *Engine) clampSigmas(s [2]float64) [2]float64 {
	return [2]float64{e.clampSigmaY(s[0]), e.clampSigmaX(s[1])}
}

// axisReach is the largest absolute coordinate on an axis, the furthest a
// parabola sample point can sit in either direction.
func axisReach(axis []float64) float64 {
	return math.Max(math.Abs(floats.Min(axis)), math.Abs(floats.Max(axis)))
}

func neighborSigma(p, neighbor ArcPower) [2]float64 {
	return [2]float64{math.Abs(p.Y - neighbor.Y), math.Abs(p.X - neighbor.X)}
}
