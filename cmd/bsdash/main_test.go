package main

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/bsdash/internal/config"
	"github.com/dgnsrekt/bsdash/internal/request"
)

func loadTestConfig(t *testing.T) {
	t.Helper()
	c, err := config.Load("")
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	cfg = c
}

func TestOptionFlags_Defaults(t *testing.T) {
	loadTestConfig(t)

	var opt optionFlags
	cmd := &cobra.Command{Use: "test"}
	opt.register(cmd)
	if err := cmd.ParseFlags([]string{"--strike", "110", "--kind", "put"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	req := opt.request(cmd)
	if req.Spot != cfg.Defaults.Spot {
		t.Errorf("expected default spot %v, got %v", cfg.Defaults.Spot, req.Spot)
	}
	if req.Strike != 110 {
		t.Errorf("expected strike 110, got %v", req.Strike)
	}
	if req.Kind != "put" {
		t.Errorf("expected kind put, got %s", req.Kind)
	}
	if req.Maturity == nil || *req.Maturity != cfg.Defaults.Maturity {
		t.Errorf("expected default maturity, got %v", req.Maturity)
	}
}

func TestOptionFlags_Expiry(t *testing.T) {
	loadTestConfig(t)

	var opt optionFlags
	cmd := &cobra.Command{Use: "test"}
	opt.register(cmd)
	if err := cmd.ParseFlags([]string{"--expiry", "2026-12-18", "--basis", "trading"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	req := opt.request(cmd)
	if req.Maturity != nil {
		t.Errorf("expected no maturity when expiry is set, got %v", *req.Maturity)
	}
	if req.Expiry != "2026-12-18" || req.Basis != "trading" {
		t.Errorf("unexpected expiry/basis: %s/%s", req.Expiry, req.Basis)
	}
}

func TestRangeFlags_FillsMissingBounds(t *testing.T) {
	loadTestConfig(t)

	r := rangeFlags{name: "vol"}
	cmd := &cobra.Command{Use: "test"}
	r.register(cmd, "volatility")

	if got := r.value(cmd, volDefaults); got != nil {
		t.Errorf("expected nil range without flags, got %+v", got)
	}

	if err := cmd.ParseFlags([]string{"--vol-points", "10", "--vol-max", "0.6"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	got := r.value(cmd, volDefaults)
	if got == nil {
		t.Fatal("expected a range")
	}
	if got.Min != cfg.Grid.MinVol || got.Max != 0.6 || got.Points != 10 {
		t.Errorf("unexpected range: %+v", got)
	}
}

func TestLocal_MatchesValidation(t *testing.T) {
	loadTestConfig(t)
	l := newLocal(cfg, func() time.Time { return time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC) })

	maturity := 1.0
	opt := request.OptionRequest{Spot: 100, Strike: 100, Maturity: &maturity, Volatility: 0.2, Rate: 0.03, Kind: "call"}

	res, err := l.Price(context.Background(), opt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(res.Price-9.4134) > 1e-3 {
		t.Errorf("expected price ~9.4134, got %v", res.Price)
	}

	bad := opt
	bad.Spot = -1
	_, err = l.Greeks(context.Background(), bad)
	var verrs *request.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}

	_, err = l.Payoff(context.Background(), request.PayoffRequest{OptionRequest: opt, Points: 1})
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors for points, got %v", err)
	}
}

func TestLocal_RejectsNonFinite(t *testing.T) {
	loadTestConfig(t)
	l := newLocal(cfg, time.Now)

	maturity := 1.0
	opt := request.OptionRequest{Spot: 100, Strike: 100, Maturity: &maturity, Volatility: 0.2, Rate: math.NaN(), Kind: "call"}
	res, err := l.Price(context.Background(), opt)
	var verrs *request.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors for NaN rate, got %v (result %+v)", err, res)
	}

	opt.Rate = 0.03
	opt.Spot = math.Inf(1)
	if _, err := l.Quote(context.Background(), opt); !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors for infinite spot, got %v", err)
	}
}

func TestFormatNonFinite(t *testing.T) {
	if got := money(math.NaN()); got != "NaN" {
		t.Errorf("expected NaN, got %s", got)
	}
	if got := num(math.Inf(-1), 4); got != "-Inf" {
		t.Errorf("expected -Inf, got %s", got)
	}
	if got := money(-1.234); got != "-$1.23" {
		t.Errorf("expected -$1.23, got %s", got)
	}
}

func TestLocal_Dashboard(t *testing.T) {
	loadTestConfig(t)
	l := newLocal(cfg, time.Now)

	maturity := 0.5
	snap, err := l.Dashboard(context.Background(), request.DashboardRequest{
		OptionRequest: request.OptionRequest{Spot: 100, Strike: 95, Maturity: &maturity, Volatility: 0.25, Rate: 0.01, Kind: "put"},
		SpotRange:     &request.RangeRequest{Min: 50, Max: 150, Points: 5},
		VolRange:      &request.RangeRequest{Min: 0.1, Max: 0.5, Points: 3},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Surface.Cells() != 15 {
		t.Errorf("expected 15 cells, got %d", snap.Surface.Cells())
	}
	if len(snap.Sensitivity) != 4 {
		t.Errorf("expected 4 sensitivity views, got %d", len(snap.Sensitivity))
	}
}

func TestSample(t *testing.T) {
	got := sample(3, 8)
	if len(got) != 3 {
		t.Fatalf("expected 3 indexes, got %v", got)
	}

	got = sample(200, 11)
	if len(got) != 11 || got[0] != 0 || got[10] != 199 {
		t.Errorf("unexpected sample: %v", got)
	}
}
