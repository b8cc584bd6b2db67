// Package dashboard assembles the views of the option dashboard from the
// pricing core: the current quote, the payoff diagram, the price surface and
// the Greeks sensitivity curves.
package dashboard

import (
	"fmt"
	"math"

	"github.com/dgnsrekt/bsdash/internal/payoff"
	"github.com/dgnsrekt/bsdash/internal/pricing"
	"github.com/dgnsrekt/bsdash/internal/request"
	"github.com/dgnsrekt/bsdash/internal/surface"
)

// Quote is the "current option metrics" panel.
type Quote struct {
	Params    pricing.Params `json:"params"`
	Price     float64        `json:"price"`
	Intrinsic float64        `json:"intrinsic"`
	TimeValue float64        `json:"time_value"`
	D1        *float64       `json:"d1,omitempty"`
	D2        *float64       `json:"d2,omitempty"`
	Greeks    pricing.Greeks `json:"greeks"`
}

type PayoffView struct {
	Strike  float64        `json:"strike"`
	Spot    float64        `json:"spot"`
	Summary payoff.Summary `json:"summary"`
	Points  []payoff.Point `json:"points"`
}

type SurfaceView struct {
	surface.Grid
	Current surface.Marker `json:"current"`
}

// SensitivityView is one Greek plotted against the parameter it is most
// sensitive to. Theta is plotted against maturity; XDays carries the same
// axis in calendar days.
type SensitivityView struct {
	Greek     pricing.Metric `json:"greek"`
	Parameter surface.Axis   `json:"parameter"`
	X         []float64      `json:"x"`
	XDays     []float64      `json:"x_days,omitempty"`
	Y         []float64      `json:"y"`
	Current   float64        `json:"current"`
}

// Snapshot is the whole dashboard for one set of inputs.
type Snapshot struct {
	Quote       Quote             `json:"quote"`
	Payoff      PayoffView        `json:"payoff"`
	Surface     SurfaceView       `json:"surface"`
	Sensitivity []SensitivityView `json:"sensitivity"`
}

// Greeks lists the sensitivity tabs in display order.
var Greeks = []pricing.Metric{
	pricing.MetricDelta,
	pricing.MetricGamma,
	pricing.MetricTheta,
	pricing.MetricVega,
}

// NewQuote prices p and computes its Greeks.
func NewQuote(p pricing.Params) Quote {
	q := Quote{
		Params:    p,
		Price:     pricing.Price(p),
		Intrinsic: pricing.Intrinsic(p.Spot, p.Strike, p.Kind),
		Greeks:    pricing.ComputeGreeks(p),
	}
	q.TimeValue = q.Price - q.Intrinsic
	if !p.Degenerate() {
		d1, d2 := pricing.D1D2(p)
		q.D1, q.D2 = &d1, &d2
	}
	return q
}

// Payoff builds the expiration diagram. A nil premium defaults to the model
// price at the current point.
func (o Options) Payoff(p pricing.Params, premium *float64, r *request.RangeRequest) PayoffView {
	prem := pricing.Price(p)
	if premium != nil {
		prem = *premium
	}

	lo, hi := payoff.SpotRange(p.Strike, o.PayoffLowFactor, o.PayoffHighFactor, o.PayoffFloor)
	if r != nil {
		lo, hi = r.Min, r.Max
	}
	spots := surface.Linspace(lo, hi, resolution(o.PayoffPoints, r))
	points := payoff.Curve(spots, p.Strike, p.Kind, prem)

	return PayoffView{
		Strike:  p.Strike,
		Spot:    p.Spot,
		Summary: payoff.Summarize(points, p.Strike, p.Kind, prem),
		Points:  points,
	}
}

// Surface evaluates the spot × volatility price grid.
func (o Options) Surface(p pricing.Params, spotRange, volRange *request.RangeRequest) SurfaceView {
	gen := surface.Generator{Workers: o.Workers}
	grid := gen.Generate(o.SpotAxis(p.Spot, spotRange), o.VolAxis(volRange), p.Strike, p.Maturity, p.Rate, p.Kind)
	return SurfaceView{Grid: grid, Current: surface.Point(p)}
}

// Sensitivity evaluates one Greek curve:
//   - delta and gamma against spot over the surface spot range
//   - theta against maturity from MinMaturity to MaturityFactor*T
//   - vega against volatility over the surface vol range, floored at SensitivityMinVol
//
// A positive points overrides the configured resolution.
func (o Options) Sensitivity(p pricing.Params, greek pricing.Metric, spotRange, volRange *request.RangeRequest, points int) (SensitivityView, error) {
	n := o.SensitivityPoints
	if points > 0 {
		n = points
	}

	var (
		ax      surface.Axis
		samples []float64
	)
	switch greek {
	case pricing.MetricDelta, pricing.MetricGamma:
		ax = surface.AxisSpot
		lo, hi := o.spotBounds(p.Spot, spotRange)
		samples = surface.Linspace(lo, hi, n)
	case pricing.MetricTheta:
		ax = surface.AxisMaturity
		hi := math.Max(o.MaturityFactor*p.Maturity, o.MinMaturity)
		samples = surface.Linspace(o.MinMaturity, hi, n)
	case pricing.MetricVega:
		ax = surface.AxisVolatility
		lo, hi := o.volBounds(volRange)
		samples = surface.Linspace(math.Max(o.SensitivityMinVol, lo), hi, n)
	default:
		return SensitivityView{}, fmt.Errorf("unsupported sensitivity greek: %q", greek)
	}

	curve, err := surface.Sweep(p, ax, samples, greek)
	if err != nil {
		return SensitivityView{}, err
	}

	view := SensitivityView{
		Greek:     greek,
		Parameter: ax,
		X:         curve.X,
		Y:         curve.Y,
		Current:   greek.Evaluate(p),
	}
	if ax == surface.AxisMaturity {
		view.XDays = make([]float64, len(curve.X))
		for i, t := range curve.X {
			view.XDays[i] = t * pricing.DaysPerYear
		}
	}
	return view, nil
}

// Build computes the full snapshot. It holds no state between calls.
func (o Options) Build(p pricing.Params, req *request.DashboardRequest) (Snapshot, error) {
	var spotRange, volRange *request.RangeRequest
	var premium *float64
	if req != nil {
		spotRange, volRange, premium = req.SpotRange, req.VolRange, req.Premium
	}

	snap := Snapshot{
		Quote:       NewQuote(p),
		Payoff:      o.Payoff(p, premium, nil),
		Surface:     o.Surface(p, spotRange, volRange),
		Sensitivity: make([]SensitivityView, 0, len(Greeks)),
	}

	for _, g := range Greeks {
		view, err := o.Sensitivity(p, g, spotRange, volRange, 0)
		if err != nil {
			return Snapshot{}, err
		}
		snap.Sensitivity = append(snap.Sensitivity, view)
	}

	return snap, nil
}
