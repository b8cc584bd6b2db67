// Package surface evaluates the pricing core over ordered sample sequences:
// the spot × volatility price grid behind the 3D surface and the 1D sweeps
// behind the Greeks sensitivity curves.
package surface

import (
	"github.com/sourcegraph/conc/iter"

	"github.com/dgnsrekt/bsdash/internal/pricing"
)

// Grid holds option prices over spot and volatility samples.
// Prices[i][j] is the price at Volatilities[i] and Spots[j].
type Grid struct {
	Spots        []float64   `json:"spots"`
	Volatilities []float64   `json:"volatilities"`
	Prices       [][]float64 `json:"prices"`
}

// Cells returns the number of evaluated prices.
func (g Grid) Cells() int {
	return len(g.Spots) * len(g.Volatilities)
}

// At returns the price at volatility index i and spot index j.
func (g Grid) At(i, j int) float64 {
	return g.Prices[i][j]
}

// Generator evaluates grids with a bounded number of goroutines.
// Zero Workers means GOMAXPROCS.
type Generator struct {
	Workers int
}

// Generate evaluates the grid with the default Generator.
func Generate(spots, vols []float64, strike, maturity, rate float64, kind pricing.Kind) Grid {
	return Generator{}.Generate(spots, vols, strike, maturity, rate, kind)
}

// Generate prices every (spot, volatility) pair. Rows are independent and are
// mapped in parallel; each cell depends only on its own pair, so the result is
// identical to a sequential evaluation.
func (gen Generator) Generate(spots, vols []float64, strike, maturity, rate float64, kind pricing.Kind) Grid {
	grid := Grid{
		Spots:        append([]float64(nil), spots...),
		Volatilities: append([]float64(nil), vols...),
	}

	base := pricing.Params{
		Strike:   strike,
		Maturity: maturity,
		Rate:     rate,
		Kind:     kind,
	}

	mapper := iter.Mapper[float64, []float64]{MaxGoroutines: gen.Workers}
	grid.Prices = mapper.Map(grid.Volatilities, func(vol *float64) []float64 {
		row := make([]float64, len(grid.Spots))
		p := base.WithVolatility(*vol)
		for j, s := range grid.Spots {
			row[j] = pricing.Price(p.WithSpot(s))
		}
		return row
	})

	return grid
}

// Marker is a single point drawn on top of the surface.
type Marker struct {
	Spot       float64 `json:"spot"`
	Volatility float64 `json:"volatility"`
	Price      float64 `json:"price"`
}

// Point evaluates the overlay marker for the current parameters.
func Point(p pricing.Params) Marker {
	return Marker{
		Spot:       p.Spot,
		Volatility: p.Volatility,
		Price:      pricing.Price(p),
	}
}
