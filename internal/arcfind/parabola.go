// Package arcfind locates scintillation arcs in a secondary spectrum by
// sweeping candidate parabola curvatures with a weighted-integration
// reducer. Arcs are modeled as y = eta*x^2 in the delay (y) versus fringe
// frequency (x) plane.
package arcfind

import (
	"math"
	"math/cmplx"
)

// weightFloor excludes cells whose kernel weight is too small to matter.
// Excluded cells contribute to neither side of the weighted mean.
var weightFloor = math.Exp(-3)

// gaussian is the unnormalized Gaussian kernel exp(-(x-mu)^2 / (2*sigma^2)).
func gaussian(x, mu, sigma float64) float64 {
	d := x - mu
	return math.Exp(-d * d / (2 * sigma * sigma))
}

// ClosestPointOnParabola returns the x coordinate of the point on
// y = eta*x^2 nearest to (px, py).
//
// Minimizing the squared distance yields the cubic
//
//	2*eta^2*X^3 + (1 - 2*eta*py)*X - px = 0
//
// which is solved in closed form with complex intermediates (Cardano).
// Among the three candidate real parts, the one closest to px is taken;
// tests cross-check this choice against brute-force minimization.
func ClosestPointOnParabola(eta, px, py float64) float64 {
	a := eta
	t1 := 2 * a * py
	u := complex(-1+t1, 0)

	sqrt3i := cmplx.Sqrt(complex(-3, 0))
	c13 := complex(math.Cbrt(2), 0)
	c23 := c13 * c13

	a4 := a * a * a * a
	a6 := a4 * a * a
	a8 := a4 * a4

	disc := cmplx.Sqrt(complex(11664*a8*px*px, 0) - complex(864*a6, 0)*u*u*u)
	inner := cmplx.Pow(complex(-108*a4*px, 0)+disc, 1.0/3)

	quad := complex(6*math.Cbrt(2)*a*a, 0)

	rootA := -real(c13*u/inner + inner/quad)
	rootB := real((1+sqrt3i)*u/(c23*inner) + (1-sqrt3i)*inner/(2*quad))
	rootC := real((1-sqrt3i)*u/(c23*inner) + (1+sqrt3i)*inner/(2*quad))

	best := rootA
	for _, r := range []float64{rootB, rootC} {
		if math.Abs(r-px) < math.Abs(best-px) {
			best = r
		}
	}
	return best
}

// parabolaWeight is the curvature-sweep kernel: the Gaussian falloff from
// the nearest point on y = eta*x^2, multiplied by the cell's distance from
// the origin. The distance factor counters the noise concentration near DC
// by favoring high-radius cells, where curvature discriminates best.
func parabolaWeight(eta, x, y, sigmaY, sigmaX float64) float64 {
	px := ClosestPointOnParabola(eta, x, y)
	py := eta * px * px
	g := math.Sqrt(gaussian(y-py, 0, sigmaY) * gaussian(x-px, 0, sigmaX))
	return math.Hypot(x, y) * g
}

// pointWeight is the along-parabola kernel: a plain axis-aligned Gaussian
// centered on a fixed sample point, with no projection step and no
// origin-distance factor.
func pointWeight(y, x, py, px, sigmaY, sigmaX float64) float64 {
	return math.Sqrt(gaussian(y-py, 0, sigmaY) * gaussian(x-px, 0, sigmaX))
}

// offsetWeight is the width-sweep kernel: the curvature-sweep kernel
// evaluated at coordinates shifted by the arclet offset, while the
// origin-distance factor keeps the cell's unshifted radius.
func offsetWeight(eta, y, x, yEff, xEff, sigmaY, sigmaX float64) float64 {
	px := ClosestPointOnParabola(eta, xEff, yEff)
	py := eta * px * px
	g := math.Sqrt(gaussian(yEff-py, 0, sigmaY) * gaussian(xEff-px, 0, sigmaX))
	return math.Hypot(x, y) * g
}
