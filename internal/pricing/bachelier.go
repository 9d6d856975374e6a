package pricing

import "math"

// BachelierPrice prices a European option on a normally distributed forward.
// sigma is an absolute volatility in price units per √year.
func BachelierPrice(optType OptionType, S, K, T, r, sigma float64) float64 {
	F := S * math.Exp(r*T)
	df := math.Exp(-r * T)

	stdDev := sigma * math.Sqrt(math.Max(T, 0))
	if stdDev < minStdDev {
		return discountedIntrinsic(optType, F, K, df)
	}

	d := (F - K) / stdDev
	var price float64
	if optType == Call {
		price = df * ((F-K)*normCDF(d) + stdDev*normPDF(d))
	} else {
		price = df * ((K-F)*normCDF(-d) + stdDev*normPDF(d))
	}
	return math.Max(price, 0)
}

// BachelierVega is e^(-rT)·√T·φ(d), identical for calls and puts.
func BachelierVega(S, K, T, r, sigma float64) float64 {
	if T <= 0 {
		return 0
	}
	sqrtT := math.Sqrt(T)
	stdDev := sigma * sqrtT
	if stdDev < minStdDev {
		return 0
	}
	d := (S*math.Exp(r*T) - K) / stdDev
	return math.Exp(-r*T) * sqrtT * normPDF(d)
}
