package pricing

import "math"

// Price evaluates the model's closed form for q at volatility sigma.
func (m Model) Price(q Quote, sigma float64) float64 {
	switch m {
	case BlackScholes:
		return BlackScholesPrice(q.Type, q.Spot, q.Strike, q.Expiry, q.Rate, sigma)
	case Bachelier:
		return BachelierPrice(q.Type, q.Spot, q.Strike, q.Expiry, q.Rate, sigma)
	}
	return math.NaN()
}

// Vega evaluates ∂price/∂σ for q at volatility sigma.
func (m Model) Vega(q Quote, sigma float64) float64 {
	switch m {
	case BlackScholes:
		return BlackScholesVega(q.Spot, q.Strike, q.Expiry, q.Rate, sigma)
	case Bachelier:
		return BachelierVega(q.Spot, q.Strike, q.Expiry, q.Rate, sigma)
	}
	return math.NaN()
}

// volScale converts a lognormal-sized volatility into the model's own units.
// Bachelier volatilities are quoted in price units, so seeds and bounds scale with the forward.
func (m Model) volScale(q Quote) float64 {
	if m == Bachelier {
		return math.Max(1, q.Forward())
	}
	return 1
}

func (m Model) valid() bool {
	return m == BlackScholes || m == Bachelier
}
