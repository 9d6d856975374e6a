package pricing

import "math"

// minStdDev is the σ√T below which a model is treated as deterministic.
const minStdDev = 1e-14

// BlackScholesPrice calculates the price of a European option under a lognormal underlying.
//
// Parameters:
//   - optType: Call or Put
//   - S: spot price of the underlying asset
//   - K: strike price of the option
//   - T: time to expiry in years
//   - r: risk-free interest rate (annual, continuously compounded)
//   - sigma: volatility of the underlying asset (annual, as a decimal)
//
// Returns:
//
//	The theoretical price, discounted from the forward F = S·e^(rT). If σ√T is numerically
//	zero the price is the discounted intrinsic value of the forward.
func BlackScholesPrice(
	optType OptionType,
	S float64, // spot
	K float64, // strike
	T float64, // time to expiry in years
	r float64, // risk-free rate
	sigma float64, // volatility
) float64 {

	F := S * math.Exp(r*T)
	df := math.Exp(-r * T)

	stdDev := sigma * math.Sqrt(math.Max(T, 0))
	if stdDev < minStdDev {
		return discountedIntrinsic(optType, F, K, df)
	}

	d1 := (math.Log(F/K) + 0.5*stdDev*stdDev) / stdDev
	d2 := d1 - stdDev

	var price float64
	if optType == Call {
		price = df * (F*normCDF(d1) - K*normCDF(d2))
	} else {
		price = df * (K*normCDF(-d2) - F*normCDF(-d1))
	}
	return math.Max(price, 0)
}

// BlackScholesVega calculates ∂price/∂σ under Black-Scholes: e^(-rT)·F·φ(d1)·√T.
// It is the same for calls and puts and is zero when σ√T is numerically zero.
func BlackScholesVega(
	S float64,
	K float64,
	T float64,
	r float64,
	sigma float64,
) float64 {

	if T <= 0 {
		return 0
	}
	sqrtT := math.Sqrt(T)
	stdDev := sigma * sqrtT
	if stdDev < minStdDev {
		return 0
	}

	F := S * math.Exp(r*T)
	d1 := (math.Log(F/K) + 0.5*stdDev*stdDev) / stdDev
	return math.Exp(-r*T) * F * normPDF(d1) * sqrtT
}

// discountedIntrinsic is e^(-rT)·max(F-K, 0) for calls and e^(-rT)·max(K-F, 0) for puts.
func discountedIntrinsic(optType OptionType, F, K, df float64) float64 {
	if optType == Call {
		return df * math.Max(F-K, 0)
	}
	return df * math.Max(K-F, 0)
}
