package main

import (
	"context"
	"time"

	"github.com/dgnsrekt/bsdash/internal/client"
	"github.com/dgnsrekt/bsdash/internal/config"
	"github.com/dgnsrekt/bsdash/internal/dashboard"
	"github.com/dgnsrekt/bsdash/internal/maturity"
	"github.com/dgnsrekt/bsdash/internal/pricing"
	"github.com/dgnsrekt/bsdash/internal/request"
)

// local evaluates requests in-process with the same validation the HTTP API
// applies.
type local struct {
	opts   dashboard.Options
	limits request.Limits
	conv   *maturity.Converter
	now    func() time.Time
}

var _ client.Client = (*local)(nil)

func newLocal(cfg *config.Config, now func() time.Time) *local {
	return &local{
		opts:   dashboard.OptionsFromConfig(cfg),
		limits: request.Limits{MinPoints: cfg.Grid.MinPoints, MaxPoints: cfg.Grid.MaxPoints},
		conv:   maturity.NewConverter(),
		now:    now,
	}
}

func (l *local) params(opt *request.OptionRequest) (pricing.Params, error) {
	if err := opt.Validate(); err != nil {
		return pricing.Params{}, err
	}
	return opt.Resolve(l.conv, l.now())
}

func (l *local) Price(_ context.Context, opt request.OptionRequest) (*client.PriceResult, error) {
	p, err := l.params(&opt)
	if err != nil {
		return nil, err
	}
	price := pricing.Price(p)
	intrinsic := pricing.Intrinsic(p.Spot, p.Strike, p.Kind)
	return &client.PriceResult{Price: price, Intrinsic: intrinsic, TimeValue: price - intrinsic}, nil
}

func (l *local) Greeks(_ context.Context, opt request.OptionRequest) (*pricing.Greeks, error) {
	p, err := l.params(&opt)
	if err != nil {
		return nil, err
	}
	g := pricing.ComputeGreeks(p)
	return &g, nil
}

func (l *local) Quote(_ context.Context, opt request.OptionRequest) (*dashboard.Quote, error) {
	p, err := l.params(&opt)
	if err != nil {
		return nil, err
	}
	q := dashboard.NewQuote(p)
	return &q, nil
}

func (l *local) Payoff(_ context.Context, req request.PayoffRequest) (*dashboard.PayoffView, error) {
	if err := req.Validate(l.limits); err != nil {
		return nil, err
	}
	p, err := req.Resolve(l.conv, l.now())
	if err != nil {
		return nil, err
	}
	opts := l.opts
	if req.Points > 0 {
		opts.PayoffPoints = req.Points
	}
	view := opts.Payoff(p, req.Premium, req.Range)
	return &view, nil
}

func (l *local) Sensitivity(_ context.Context, req request.SensitivityRequest) (*dashboard.SensitivityView, error) {
	if err := req.Validate(l.limits); err != nil {
		return nil, err
	}
	p, err := req.Resolve(l.conv, l.now())
	if err != nil {
		return nil, err
	}
	view, err := l.opts.Sensitivity(p, pricing.Metric(req.Greek), req.SpotRange, req.VolRange, req.Points)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (l *local) Surface(_ context.Context, req request.SurfaceRequest) (*dashboard.SurfaceView, error) {
	if err := req.Validate(l.limits); err != nil {
		return nil, err
	}
	p, err := req.Resolve(l.conv, l.now())
	if err != nil {
		return nil, err
	}
	view := l.opts.Surface(p, req.SpotRange, req.VolRange)
	return &view, nil
}

func (l *local) Dashboard(_ context.Context, req request.DashboardRequest) (*dashboard.Snapshot, error) {
	if err := req.Validate(l.limits); err != nil {
		return nil, err
	}
	p, err := req.Resolve(l.conv, l.now())
	if err != nil {
		return nil, err
	}
	snap, err := l.opts.Build(p, &req)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}
