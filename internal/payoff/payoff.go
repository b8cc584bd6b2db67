// Package payoff models the profit and loss of a single option position
// held to expiration.
package payoff

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/dgnsrekt/bsdash/internal/pricing"
)

// Long returns the expiration P&L of a bought option: intrinsic value at
// spot minus the premium paid.
func Long(spot, strike float64, kind pricing.Kind, premium float64) float64 {
	return pricing.Intrinsic(spot, strike, kind) - premium
}

// Short returns the expiration P&L of a written option. It is the exact
// negation of Long.
func Short(spot, strike float64, kind pricing.Kind, premium float64) float64 {
	return -Long(spot, strike, kind, premium)
}

// Breakeven returns the spot at expiration where the long P&L is zero.
func Breakeven(strike, premium float64, kind pricing.Kind) float64 {
	if kind == pricing.Put {
		return strike - premium
	}
	return strike + premium
}

// Point is one sample of the payoff diagram.
type Point struct {
	Spot      float64 `json:"spot"`
	Long      float64 `json:"long"`
	Short     float64 `json:"short"`
	Intrinsic float64 `json:"intrinsic"`
}

// Curve evaluates the payoff diagram at each spot sample.
func Curve(spots []float64, strike float64, kind pricing.Kind, premium float64) []Point {
	points := make([]Point, len(spots))
	for i, s := range spots {
		long := Long(s, strike, kind, premium)
		points[i] = Point{
			Spot:      s,
			Long:      long,
			Short:     -long,
			Intrinsic: pricing.Intrinsic(s, strike, kind),
		}
	}
	return points
}

// Summary holds the headline figures of a long position.
//
// The sampled figures are the extrema of the long P&L over the rendered spot
// range. The theoretical figures are the closed-form bounds; MaxProfit is nil
// when the profit is unbounded (long call).
type Summary struct {
	Premium          float64  `json:"premium"`
	Breakeven        float64  `json:"breakeven"`
	SampledMaxProfit float64  `json:"sampled_max_profit"`
	SampledMaxLoss   float64  `json:"sampled_max_loss"`
	MaxProfit        *float64 `json:"max_profit"`
	MaxProfitBounded bool     `json:"max_profit_bounded"`
	MaxLoss          float64  `json:"max_loss"`
}

// Summarize computes the payoff metrics shown next to the diagram.
func Summarize(points []Point, strike float64, kind pricing.Kind, premium float64) Summary {
	s := Summary{
		Premium:   premium,
		Breakeven: Breakeven(strike, premium, kind),
		MaxLoss:   -premium,
	}

	if len(points) > 0 {
		longs := make([]float64, len(points))
		for i, p := range points {
			longs[i] = p.Long
		}
		s.SampledMaxProfit = floats.Max(longs)
		s.SampledMaxLoss = floats.Min(longs)
	}

	if kind == pricing.Put {
		// Spot cannot fall below zero, so the put payoff is capped at the strike.
		maxProfit := strike - premium
		s.MaxProfit = &maxProfit
		s.MaxProfitBounded = true
	}

	return s
}

// SpotRange returns the default payoff range used by the dashboard:
// [max(floor, lowFactor*strike), highFactor*strike].
func SpotRange(strike, lowFactor, highFactor, floor float64) (lo, hi float64) {
	return math.Max(floor, lowFactor*strike), highFactor * strike
}
