package arcfind

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"

	"github.com/pulsarpkg/arcfinder/internal/grid"
)

type gridSource struct {
	g *grid.Grid
}

func (s gridSource) Grid() *grid.Grid { return s.g }

// arcSource builds a synthetic spectrum whose power all sits on the
// parabola y = eta0*x^2, blurred by a narrow Gaussian.
func arcSource(t *testing.T, eta0 float64) gridSource {
	t.Helper()

	xAxis := make([]float64, 41)
	floats.Span(xAxis, -10, 10)
	yAxis := make([]float64, 21)
	floats.Span(yAxis, 0, 10)

	const blur = 0.3
	data := make([][]float64, len(yAxis))
	for i, y := range yAxis {
		data[i] = make([]float64, len(xAxis))
		for j, x := range xAxis {
			d := y - eta0*x*x
			data[i][j] = math.Exp(-d * d / (2 * blur * blur))
		}
	}

	g, err := grid.New(data, yAxis, xAxis)
	if err != nil {
		t.Fatalf("grid.New() error = %v", err)
	}
	return gridSource{g: g}
}

func TestCurvatureSweep_PeakAtTrueCurvature(t *testing.T) {
	const eta0 = 0.1
	e := New(arcSource(t, eta0), WithWorkers(2))

	profile, err := e.CurvatureSweep(0.05, 0.2, 13)
	if err != nil {
		t.Fatalf("CurvatureSweep() error = %v", err)
	}
	if len(profile) != 13 {
		t.Fatalf("profile has %d samples, want 13", len(profile))
	}
	for i := 1; i < len(profile); i++ {
		if profile[i].Eta <= profile[i-1].Eta {
			t.Fatalf("profile not ascending in eta at %d", i)
		}
	}

	nearest := profile[0]
	for _, s := range profile[1:] {
		if math.Abs(s.Eta-eta0) < math.Abs(nearest.Eta-eta0) {
			nearest = s
		}
	}
	peak, ok := profile.Peak()
	if !ok {
		t.Fatal("Peak() found no samples")
	}
	if peak.Eta != nearest.Eta {
		t.Errorf("peak at eta %v, want the sample nearest %v (eta %v)", peak.Eta, eta0, nearest.Eta)
	}
}

func TestCurvatureSweep_SingleSampleIsMidpoint(t *testing.T) {
	e := New(arcSource(t, 0.1), WithWorkers(1))

	profile, err := e.CurvatureSweep(0.08, 0.12, 1)
	if err != nil {
		t.Fatalf("CurvatureSweep() error = %v", err)
	}
	if len(profile) != 1 {
		t.Fatalf("profile has %d samples, want 1", len(profile))
	}
	if want := 0.1; math.Abs(profile[0].Eta-want) > 1e-12 {
		t.Errorf("eta = %v, want midpoint %v", profile[0].Eta, want)
	}
}

func TestCurvatureSweep_WorkerCountInvariance(t *testing.T) {
	src := arcSource(t, 0.1)

	serial, err := New(src, WithWorkers(1)).CurvatureSweep(0.05, 0.2, 9)
	if err != nil {
		t.Fatalf("CurvatureSweep(1 worker) error = %v", err)
	}
	parallel, err := New(src, WithWorkers(4)).CurvatureSweep(0.05, 0.2, 9)
	if err != nil {
		t.Fatalf("CurvatureSweep(4 workers) error = %v", err)
	}

	if len(serial) != len(parallel) {
		t.Fatalf("profile lengths differ: %d vs %d", len(serial), len(parallel))
	}
	for i := range serial {
		if serial[i] != parallel[i] {
			t.Errorf("sample %d differs: %+v vs %+v", i, serial[i], parallel[i])
		}
	}
}

func TestCurvatureSweep_InvalidParameters(t *testing.T) {
	e := New(arcSource(t, 0.1))

	tests := []struct {
		name     string
		min, max float64
		n        int
	}{
		{"zero samples", 0.05, 0.2, 0},
		{"max below min", 0.2, 0.05, 5},
		{"non-positive min", 0, 0.2, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.CurvatureSweep(tt.min, tt.max, tt.n)
			if !errors.Is(err, ErrInvalidParameter) {
				t.Errorf("CurvatureSweep() error = %v, want ErrInvalidParameter", err)
			}
		})
	}
}

func TestPowerAlongParabola(t *testing.T) {
	const eta0 = 0.1
	e := New(arcSource(t, eta0), WithWorkers(2))

	profile, err := e.PowerAlongParabola(eta0, 12, 3)
	if err != nil {
		t.Fatalf("PowerAlongParabola() error = %v", err)
	}
	// 12 requested points fold into 2*(12/2)-1 symmetric samples.
	if len(profile) != 11 {
		t.Fatalf("profile has %d samples, want 11", len(profile))
	}
	for i := 1; i < len(profile); i++ {
		if profile[i].X <= profile[i-1].X {
			t.Fatalf("profile not ascending in x at %d", i)
		}
	}

	mid := len(profile) / 2
	if profile[mid].X != 0 {
		t.Errorf("middle sample at x = %v, want 0", profile[mid].X)
	}
	// Power on the arc is even in x, so the profile must be symmetric.
	for i := 0; i < mid; i++ {
		l, r := profile[i], profile[len(profile)-1-i]
		if math.Abs(l.Power-r.Power) > 1e-6*math.Max(math.Abs(l.Power), 1) {
			t.Errorf("asymmetric power at x %v: %v vs %v", l.X, l.Power, r.Power)
		}
	}
}

// uniformSource builds a grid where every cell holds the same power, so
// any weighted mean over it must return exactly that power.
func uniformSource(t *testing.T, power float64) gridSource {
	t.Helper()

	xAxis := make([]float64, 21)
	floats.Span(xAxis, -10, 10)
	yAxis := make([]float64, 21)
	floats.Span(yAxis, 0, 10)

	data := make([][]float64, len(yAxis))
	for i := range data {
		data[i] = make([]float64, len(xAxis))
		for j := range data[i] {
			data[i][j] = power
		}
	}

	g, err := grid.New(data, yAxis, xAxis)
	if err != nil {
		t.Fatalf("grid.New() error = %v", err)
	}
	return gridSource{g: g}
}

func TestPowerAlongParabola_DenseSamplingKeepsBoundaryPower(t *testing.T) {
	const power = 5.0
	e := New(uniformSource(t, power), WithWorkers(1))

	// With 400 points the end samples sit closer to their neighbor than
	// one pixel; their kernel widths must clamp up to the pixel spacing
	// so at least the nearest cells still carry weight.
	profile, err := e.PowerAlongParabola(0.35, 400, 3)
	if err != nil {
		t.Fatalf("PowerAlongParabola() error = %v", err)
	}

	for _, s := range []ArcPower{profile[0], profile[len(profile)-1]} {
		if math.Abs(s.Power-power) > 1e-9 {
			t.Errorf("boundary sample at x = %v: power = %v, want %v", s.X, s.Power, power)
		}
	}
	for _, s := range profile {
		if math.Abs(s.Power-power) > 1e-9 {
			t.Fatalf("sample at x = %v: power = %v, want %v", s.X, s.Power, power)
		}
	}
}

func TestPowerAlongParabola_InvalidParameters(t *testing.T) {
	e := New(arcSource(t, 0.1))

	tests := []struct {
		name    string
		eta     float64
		n       int
		sigmaPx float64
	}{
		{"non-positive eta", 0, 10, 3},
		{"too few points", 0.1, 3, 3},
		{"non-positive sigma", 0.1, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.PowerAlongParabola(tt.eta, tt.n, tt.sigmaPx)
			if !errors.Is(err, ErrInvalidParameter) {
				t.Errorf("PowerAlongParabola() error = %v, want ErrInvalidParameter", err)
			}
		})
	}
}

func TestParabolaWidth(t *testing.T) {
	const eta0 = 0.1
	e := New(arcSource(t, eta0), WithWorkers(2))

	profile, err := e.ParabolaWidth(eta0, 2, 10)
	if err != nil {
		t.Fatalf("ParabolaWidth() error = %v", err)
	}
	if len(profile) != 9 {
		t.Fatalf("profile has %d samples, want 9", len(profile))
	}
	for i := 1; i < len(profile); i++ {
		if profile[i].Offset <= profile[i-1].Offset {
			t.Fatalf("profile not ascending in offset at %d", i)
		}
	}

	// All power sits on the unshifted parabola, so zero offset wins.
	mid := len(profile) / 2
	if profile[mid].Offset != 0 {
		t.Fatalf("middle sample at offset %v, want 0", profile[mid].Offset)
	}
	for i, s := range profile {
		if i != mid && s.Power >= profile[mid].Power {
			t.Errorf("offset %v power %v not below zero-offset power %v",
				s.Offset, s.Power, profile[mid].Power)
		}
	}
}

func TestParabolaWidth_InvalidParameters(t *testing.T) {
	e := New(arcSource(t, 0.1))

	tests := []struct {
		name      string
		eta       float64
		maxOffset float64
		n         int
	}{
		{"non-positive eta", -1, 2, 10},
		{"non-positive offset", 0.1, 0, 10},
		{"too few offsets", 0.1, 2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.ParabolaWidth(tt.eta, tt.maxOffset, tt.n)
			if !errors.Is(err, ErrInvalidParameter) {
				t.Errorf("ParabolaWidth() error = %v, want ErrInvalidParameter", err)
			}
		})
	}
}

func TestEngine_ProfilesStoredPerKind(t *testing.T) {
	e := New(arcSource(t, 0.1), WithWorkers(1))

	c, o, w := e.Profiles()
	if c != nil || o != nil || w != nil {
		t.Fatal("Profiles() non-nil before any search")
	}

	want, err := e.CurvatureSweep(0.05, 0.2, 5)
	if err != nil {
		t.Fatalf("CurvatureSweep() error = %v", err)
	}
	c, _, _ = e.Profiles()
	if len(c) != len(want) || c[0] != want[0] {
		t.Error("stored curvature profile does not match the returned one")
	}

	again, err := e.CurvatureSweep(0.08, 0.12, 3)
	if err != nil {
		t.Fatalf("CurvatureSweep() error = %v", err)
	}
	c, _, _ = e.Profiles()
	if len(c) != len(again) {
		t.Error("second sweep did not overwrite the stored profile")
	}
}

func TestEngine_TinySigmaClampedToPixel(t *testing.T) {
	src := arcSource(t, 0.1)

	clamped, err := New(src, WithWorkers(1), WithSigma(1e-9, 1e-9)).CurvatureSweep(0.05, 0.2, 5)
	if err != nil {
		t.Fatalf("CurvatureSweep() error = %v", err)
	}
	def, err := New(src, WithWorkers(1)).CurvatureSweep(0.05, 0.2, 5)
	if err != nil {
		t.Fatalf("CurvatureSweep() error = %v", err)
	}
	for i := range def {
		if clamped[i] != def[i] {
			t.Fatalf("sample %d differs: sigma below pixel spacing must clamp to the default", i)
		}
	}
}
