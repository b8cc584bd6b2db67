package pricing

import "math"

// Intrinsic returns the exercise value of an option at the given spot.
func Intrinsic(spot, strike float64, kind Kind) float64 {
	if kind == Put {
		return math.Max(strike-spot, 0)
	}
	return math.Max(spot-strike, 0)
}

// D1D2 returns the standardized log-moneyness terms of the closed form.
// Only meaningful when Maturity > 0 and Volatility > 0.
func D1D2(p Params) (d1, d2 float64) {
	volSqrtT := p.Volatility * math.Sqrt(p.Maturity)
	d1 = (math.Log(p.Spot/p.Strike) + (p.Rate+0.5*p.Volatility*p.Volatility)*p.Maturity) / volSqrtT
	d2 = d1 - volSqrtT
	return d1, d2
}

// Price returns the Black-Scholes value of a European option.
//
// An expired option (Maturity <= 0) is worth its intrinsic value. With zero
// volatility the underlying grows deterministically at the risk-free rate, so
// the value is the discounted intrinsic value of the forward.
func Price(p Params) float64 {
	if p.Maturity <= 0 {
		return Intrinsic(p.Spot, p.Strike, p.Kind)
	}

	discount := math.Exp(-p.Rate * p.Maturity)

	if p.Volatility <= 0 {
		forward := p.Spot * math.Exp(p.Rate*p.Maturity)
		return discount * Intrinsic(forward, p.Strike, p.Kind)
	}

	d1, d2 := D1D2(p)

	var price float64
	switch p.Kind {
	case Put:
		price = p.Strike*discount*NormCDF(-d2) - p.Spot*NormCDF(-d1)
	default:
		price = p.Spot*NormCDF(d1) - p.Strike*discount*NormCDF(d2)
	}

	// Deep out-of-the-money values can round to a tiny negative number.
	return math.Max(price, 0)
}

// TimeValue is the part of the price above intrinsic value at the current spot.
func TimeValue(p Params) float64 {
	return Price(p) - Intrinsic(p.Spot, p.Strike, p.Kind)
}
