package pricing

import "math"

// DaysPerYear converts annual theta into calendar-day theta.
const DaysPerYear = 365.0

// Greeks are the first and second order sensitivities of the option price.
//
// Theta is reported per calendar day and Vega per one percentage point of
// volatility.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
}

// ComputeGreeks returns Delta, Gamma, Theta and Vega for p.
// All four are zero in the flat regime (Maturity <= 0 or Volatility <= 0).
func ComputeGreeks(p Params) Greeks {
	if p.Degenerate() {
		return Greeks{}
	}

	d1, d2 := D1D2(p)
	sqrtT := math.Sqrt(p.Maturity)
	pdf := NormPDF(d1)
	discountedStrike := p.Strike * math.Exp(-p.Rate*p.Maturity)
	decay := -p.Spot * pdf * p.Volatility / (2 * sqrtT)

	g := Greeks{
		Gamma: pdf / (p.Spot * p.Volatility * sqrtT),
		Vega:  p.Spot * pdf * sqrtT / 100,
	}

	switch p.Kind {
	case Put:
		g.Delta = NormCDF(d1) - 1
		g.Theta = (decay + p.Rate*discountedStrike*NormCDF(-d2)) / DaysPerYear
	default:
		g.Delta = NormCDF(d1)
		g.Theta = (decay - p.Rate*discountedStrike*NormCDF(d2)) / DaysPerYear
	}

	return g
}

// Metric selects a single output of the pricing core.
type Metric string

const (
	MetricPrice Metric = "price"
	MetricDelta Metric = "delta"
	MetricGamma Metric = "gamma"
	MetricTheta Metric = "theta"
	MetricVega  Metric = "vega"
)

// Valid reports whether m names a known metric.
func (m Metric) Valid() bool {
	switch m {
	case MetricPrice, MetricDelta, MetricGamma, MetricTheta, MetricVega:
		return true
	}
	return false
}

// Evaluate returns the selected metric for p.
func (m Metric) Evaluate(p Params) float64 {
	if m == MetricPrice {
		return Price(p)
	}
	g := ComputeGreeks(p)
	switch m {
	case MetricDelta:
		return g.Delta
	case MetricGamma:
		return g.Gamma
	case MetricTheta:
		return g.Theta
	case MetricVega:
		return g.Vega
	}
	return 0
}
