package dashboard

import (
	"math"

	"github.com/dgnsrekt/bsdash/internal/config"
	"github.com/dgnsrekt/bsdash/internal/request"
	"github.com/dgnsrekt/bsdash/internal/surface"
)

// Options are the sampling defaults applied when a request leaves a range
// or resolution unset.
type Options struct {
	SpotPoints     int
	VolPoints      int
	MinVol         float64
	MaxVol         float64
	SpotLowFactor  float64
	SpotHighFactor float64
	SpotFloor      float64

	PayoffPoints     int
	PayoffLowFactor  float64
	PayoffHighFactor float64
	PayoffFloor      float64

	SensitivityPoints int
	SensitivityMinVol float64
	MinMaturity       float64
	MaturityFactor    float64

	Workers int
}

// DefaultOptions matches the stock dashboard layout.
func DefaultOptions() Options {
	return Options{
		SpotPoints:     80,
		VolPoints:      80,
		MinVol:         0.05,
		MaxVol:         0.80,
		SpotLowFactor:  0.5,
		SpotHighFactor: 1.5,
		SpotFloor:      1.0,

		PayoffPoints:     200,
		PayoffLowFactor:  0.5,
		PayoffHighFactor: 2.0,
		PayoffFloor:      1.0,

		SensitivityPoints: 100,
		SensitivityMinVol: 0.01,
		MinMaturity:       0.01,
		MaturityFactor:    1.5,
	}
}

// OptionsFromConfig builds Options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SpotPoints:     cfg.Grid.SpotPoints,
		VolPoints:      cfg.Grid.VolPoints,
		MinVol:         cfg.Grid.MinVol,
		MaxVol:         cfg.Grid.MaxVol,
		SpotLowFactor:  cfg.Grid.SpotLowFactor,
		SpotHighFactor: cfg.Grid.SpotHighFactor,
		SpotFloor:      cfg.Grid.SpotFloor,

		PayoffPoints:     cfg.Payoff.Points,
		PayoffLowFactor:  cfg.Payoff.LowFactor,
		PayoffHighFactor: cfg.Payoff.HighFactor,
		PayoffFloor:      cfg.Payoff.Floor,

		SensitivityPoints: cfg.Sensitivity.Points,
		SensitivityMinVol: cfg.Sensitivity.MinVol,
		MinMaturity:       cfg.Sensitivity.MinMaturity,
		MaturityFactor:    cfg.Sensitivity.MaturityFactor,

		Workers: cfg.Grid.Workers,
	}
}

// SpotAxis samples the spot axis of the surface.
func (o Options) SpotAxis(spot float64, r *request.RangeRequest) []float64 {
	lo, hi := o.spotBounds(spot, r)
	return surface.Linspace(lo, hi, resolution(o.SpotPoints, r))
}

// VolAxis samples the volatility axis of the surface.
func (o Options) VolAxis(r *request.RangeRequest) []float64 {
	lo, hi := o.volBounds(r)
	return surface.Linspace(lo, hi, resolution(o.VolPoints, r))
}

// spotBounds defaults to [max(floor, low*spot), high*spot].
func (o Options) spotBounds(spot float64, r *request.RangeRequest) (lo, hi float64) {
	if r != nil {
		return r.Min, r.Max
	}
	return math.Max(o.SpotFloor, o.SpotLowFactor*spot), o.SpotHighFactor * spot
}

func (o Options) volBounds(r *request.RangeRequest) (lo, hi float64) {
	if r != nil {
		return r.Min, r.Max
	}
	return o.MinVol, o.MaxVol
}

func resolution(def int, r *request.RangeRequest) int {
	if r != nil && r.Points > 0 {
		return r.Points
	}
	return def
}
