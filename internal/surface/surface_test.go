package surface

import (
	"testing"

	"github.com/dgnsrekt/bsdash/internal/pricing"
)

func TestGenerate_GridConsistency(t *testing.T) {
	spots := Linspace(50, 150, 37)
	vols := Linspace(0.05, 0.8, 23)

	for _, kind := range []pricing.Kind{pricing.Call, pricing.Put} {
		grid := Generator{Workers: 4}.Generate(spots, vols, 100, 1, 0.03, kind)

		if len(grid.Prices) != len(vols) {
			t.Fatalf("expected %d rows, got %d", len(vols), len(grid.Prices))
		}
		if grid.Cells() != len(spots)*len(vols) {
			t.Errorf("expected %d cells, got %d", len(spots)*len(vols), grid.Cells())
		}

		for i, v := range vols {
			if len(grid.Prices[i]) != len(spots) {
				t.Fatalf("row %d: expected %d columns, got %d", i, len(spots), len(grid.Prices[i]))
			}
			for j, s := range spots {
				want := pricing.Price(pricing.Params{Spot: s, Strike: 100, Maturity: 1, Volatility: v, Rate: 0.03, Kind: kind})
				if got := grid.At(i, j); got != want {
					t.Fatalf("%s cell (%d,%d): expected %v, got %v", kind, i, j, want, got)
				}
			}
		}
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	spots := Linspace(80, 120, 50)
	vols := Linspace(0.1, 0.5, 50)

	a := Generator{Workers: 1}.Generate(spots, vols, 100, 0.5, 0.01, pricing.Put)
	b := Generator{Workers: 8}.Generate(spots, vols, 100, 0.5, 0.01, pricing.Put)

	for i := range a.Prices {
		for j := range a.Prices[i] {
			if a.Prices[i][j] != b.Prices[i][j] {
				t.Fatalf("cell (%d,%d) differs between worker counts", i, j)
			}
		}
	}
}

func TestGenerate_CopiesSamples(t *testing.T) {
	spots := []float64{90, 100, 110}
	vols := []float64{0.1, 0.2}
	grid := Generate(spots, vols, 100, 1, 0.03, pricing.Call)

	spots[0] = -1
	vols[0] = -1
	if grid.Spots[0] != 90 || grid.Volatilities[0] != 0.1 {
		t.Error("grid should not alias caller samples")
	}
}

func TestGenerate_Empty(t *testing.T) {
	grid := Generate(nil, nil, 100, 1, 0.03, pricing.Call)
	if grid.Cells() != 0 || len(grid.Prices) != 0 {
		t.Errorf("expected empty grid, got %+v", grid)
	}
}

func TestPoint(t *testing.T) {
	p := pricing.Params{Spot: 100, Strike: 100, Maturity: 1, Volatility: 0.2, Rate: 0.03, Kind: pricing.Call}
	m := Point(p)
	if m.Spot != 100 || m.Volatility != 0.2 || m.Price != pricing.Price(p) {
		t.Errorf("unexpected marker: %+v", m)
	}
}

func TestSweep(t *testing.T) {
	base := pricing.Params{Spot: 100, Strike: 100, Maturity: 1, Volatility: 0.2, Rate: 0.03, Kind: pricing.Call}
	spots := Linspace(50, 150, 11)

	c, err := Sweep(base, AxisSpot, spots, pricing.MetricDelta)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, s := range spots {
		want := pricing.ComputeGreeks(base.WithSpot(s)).Delta
		if c.Y[i] != want {
			t.Errorf("delta at %v: expected %v, got %v", s, want, c.Y[i])
		}
		if i > 0 && c.Y[i] < c.Y[i-1] {
			t.Errorf("call delta should increase with spot")
		}
	}

	vols := Linspace(0.01, 0.8, 9)
	c, err = Sweep(base, AxisVolatility, vols, pricing.MetricVega)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, v := range vols {
		if want := pricing.ComputeGreeks(base.WithVolatility(v)).Vega; c.Y[i] != want {
			t.Errorf("vega at %v: expected %v, got %v", v, want, c.Y[i])
		}
	}

	maturities := Linspace(0.01, 1.5, 5)
	c, err = Sweep(base, AxisMaturity, maturities, pricing.MetricTheta)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, T := range maturities {
		if c.Y[i] >= 0 {
			t.Errorf("ATM call theta should be negative at T=%v, got %v", T, c.Y[i])
		}
	}
}

func TestSweep_Invalid(t *testing.T) {
	base := pricing.Params{Spot: 100, Strike: 100, Maturity: 1, Volatility: 0.2, Kind: pricing.Call}
	if _, err := Sweep(base, Axis("rate"), []float64{0.01}, pricing.MetricPrice); err == nil {
		t.Error("expected error for unknown axis")
	}
	if _, err := Sweep(base, AxisSpot, []float64{100}, pricing.Metric("rho")); err == nil {
		t.Error("expected error for unknown metric")
	}
}

func TestLinspace(t *testing.T) {
	xs := Linspace(0.05, 0.8, 80)
	if len(xs) != 80 {
		t.Fatalf("expected 80 samples, got %d", len(xs))
	}
	if xs[0] != 0.05 || xs[79] != 0.8 {
		t.Errorf("endpoints should be inclusive, got %v and %v", xs[0], xs[79])
	}
	for i := 1; i < len(xs); i++ {
		if xs[i] <= xs[i-1] {
			t.Fatalf("samples should be strictly increasing at %d", i)
		}
	}

	if got := Linspace(1, 2, 1); len(got) != 1 || got[0] != 1 {
		t.Errorf("expected [1], got %v", got)
	}
	if got := Linspace(1, 2, 0); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}
