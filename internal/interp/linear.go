// Package interp provides a piecewise-linear interpolant over sampled
// (x, y) pairs.
package interp

import (
	"sort"

	"github.com/rotisserie/eris"
)

// Curve is a piecewise-linear interpolant fitted to ascending sample
// points. The zero value is not usable; construct with Fit.
type Curve struct {
	xs []float64
	ys []float64
}

// Fit constructs a Curve from paired samples. xs must be non-decreasing;
// duplicate abscissae are permitted and evaluate to the first sample at
// that point. Both slices are copied, so callers may reuse their buffers.
func Fit(xs, ys []float64) (*Curve, error) {
	if len(xs) != len(ys) {
		return nil, eris.Errorf("interp: sample length mismatch (%d x vs %d y)", len(xs), len(ys))
	}
	if len(xs) == 0 {
		return nil, eris.New("interp: no samples")
	}
	for i := 1; i < len(xs); i++ {
		if xs[i] < xs[i-1] {
			return nil, eris.Errorf("interp: abscissae not ascending at index %d (%g < %g)", i, xs[i], xs[i-1])
		}
	}

	c := &Curve{
		xs: make([]float64, len(xs)),
		ys: make([]float64, len(ys)),
	}
	copy(c.xs, xs)
	copy(c.ys, ys)
	return c, nil
}

// At evaluates the curve at x, interpolating linearly between samples.
// Outside the fitted domain the nearest endpoint value is returned.
func (c *Curve) At(x float64) float64 {
	if x <= c.xs[0] {
		return c.ys[0]
	}
	last := len(c.xs) - 1
	if x >= c.xs[last] {
		return c.ys[last]
	}

	// First sample strictly greater than x; x is inside the domain so
	// 0 < i <= last.
	i := sort.SearchFloat64s(c.xs, x)
	if c.xs[i] == x {
		return c.ys[i]
	}

	x0, x1 := c.xs[i-1], c.xs[i]
	y0, y1 := c.ys[i-1], c.ys[i]
	if x1 == x0 {
		return y1
	}
	return y0 + (y1-y0)*(x-x0)/(x1-x0)
}

// AtStrict is like At but returns an error instead of clamping when x
// falls outside the fitted domain.
func (c *Curve) AtStrict(x float64) (float64, error) {
	lo, hi := c.Domain()
	if x < lo || x > hi {
		return 0, eris.Errorf("interp: %g outside domain [%g, %g]", x, lo, hi)
	}
	return c.At(x), nil
}

// Domain returns the inclusive [min, max] range of fitted abscissae.
func (c *Curve) Domain() (lo, hi float64) {
	return c.xs[0], c.xs[len(c.xs)-1]
}

// Points returns copies of the fitted sample points.
func (c *Curve) Points() (xs, ys []float64) {
	xs = make([]float64, len(c.xs))
	ys = make([]float64, len(c.ys))
	copy(xs, c.xs)
	copy(ys, c.ys)
	return xs, ys
}

// Len returns the number of fitted samples.
func (c *Curve) Len() int { return len(c.xs) }
