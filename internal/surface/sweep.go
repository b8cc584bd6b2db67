package surface

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/dgnsrekt/bsdash/internal/pricing"
)

// Axis is the parameter varied by a sweep.
type Axis string

const (
	AxisSpot       Axis = "spot"
	AxisVolatility Axis = "volatility"
	AxisMaturity   Axis = "maturity"
)

// Curve is a 1D sweep of one metric along one axis.
type Curve struct {
	Axis   Axis           `json:"axis"`
	Metric pricing.Metric `json:"metric"`
	X      []float64      `json:"x"`
	Y      []float64      `json:"y"`
}

// Sweep evaluates metric at each sample of axis, holding every other
// parameter of base fixed.
func Sweep(base pricing.Params, axis Axis, samples []float64, metric pricing.Metric) (Curve, error) {
	var vary func(pricing.Params, float64) pricing.Params
	switch axis {
	case AxisSpot:
		vary = pricing.Params.WithSpot
	case AxisVolatility:
		vary = pricing.Params.WithVolatility
	case AxisMaturity:
		vary = pricing.Params.WithMaturity
	default:
		return Curve{}, fmt.Errorf("unknown sweep axis: %q", axis)
	}
	if !metric.Valid() {
		return Curve{}, fmt.Errorf("unknown metric: %q", metric)
	}

	c := Curve{
		Axis:   axis,
		Metric: metric,
		X:      append([]float64(nil), samples...),
		Y:      make([]float64, len(samples)),
	}
	for i, x := range c.X {
		c.Y[i] = metric.Evaluate(vary(base, x))
	}
	return c, nil
}

// Linspace returns n evenly spaced samples over [lo, hi], both inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []float64{lo}
	}
	xs := floats.Span(make([]float64, n), lo, hi)
	xs[n-1] = hi
	return xs
}
