package pricing

// Params are the inputs of a single Black-Scholes evaluation.
//
// Rates and volatility are decimals (0.20 = 20%) and Maturity is in years.
// Spot and Strike must be strictly positive; that is checked by the caller,
// not here.
type Params struct {
	Spot       float64 `json:"spot"`
	Strike     float64 `json:"strike"`
	Maturity   float64 `json:"maturity"`
	Volatility float64 `json:"volatility"`
	Rate       float64 `json:"rate"`
	Kind       Kind    `json:"kind"`
}

// WithSpot returns a copy of p with a different spot.
func (p Params) WithSpot(spot float64) Params {
	p.Spot = spot
	return p
}

// WithVolatility returns a copy of p with a different volatility.
func (p Params) WithVolatility(vol float64) Params {
	p.Volatility = vol
	return p
}

// WithMaturity returns a copy of p with a different time to maturity.
func (p Params) WithMaturity(maturity float64) Params {
	p.Maturity = maturity
	return p
}

// Degenerate reports whether p falls in the flat regime (expired or
// zero volatility) where the closed form is not used.
func (p Params) Degenerate() bool {
	return p.Maturity <= 0 || p.Volatility <= 0
}
