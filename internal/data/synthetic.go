package data

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/contactkeval/implied-vol/internal/pricing"
)

// SyntheticSource generates quotes priced from known volatilities, so a run
// over it doubles as an end-to-end accuracy check of the solver.
type SyntheticSource struct {
	n     int
	seed  int64
	truth map[string]float64
}

// NewSyntheticSource returns a source of n quotes. The same seed always yields the same quotes.
func NewSyntheticSource(n int, seed int64) *SyntheticSource {
	return &SyntheticSource{n: n, seed: seed}
}

func (s *SyntheticSource) Name() string {
	return fmt.Sprintf("synthetic:%d", s.n)
}

// TrueVol returns the volatility the quote with this id was priced at.
// It is only populated after Records has run.
func (s *SyntheticSource) TrueVol(id string) (float64, bool) {
	v, ok := s.truth[id]
	return v, ok
}

func (s *SyntheticSource) Records(ctx context.Context) ([]Record, error) {
	rng := rand.New(rand.NewSource(s.seed))
	s.truth = make(map[string]float64, s.n)

	out := make([]Record, 0, s.n)
	for i := 0; i < s.n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		model := pricing.BlackScholes
		if rng.Intn(2) == 1 {
			model = pricing.Bachelier
		}
		optType := pricing.Call
		if rng.Intn(2) == 1 {
			optType = pricing.Put
		}

		spot := 1.0 + math.Abs(rng.NormFloat64()*0.5)*100
		q := pricing.Quote{
			Spot:   round(spot, 4),
			Strike: round(spot*(0.85+0.3*rng.Float64()), 4),
			Rate:   round(-0.01+0.06*rng.Float64(), 4),
			Expiry: float64(7+rng.Intn(720)) / DaysPerYear,
			Type:   optType,
		}

		// lognormal vol between 5% and 150%; Bachelier vol is the same size relative to spot
		vol := 0.05 + 1.45*rng.Float64()
		if model == pricing.Bachelier {
			vol *= q.Spot
		}
		q.MarketPrice = model.Price(q, vol)

		id := fmt.Sprintf("SYN-%06d", i+1)
		s.truth[id] = vol
		out = append(out, NewRecord(id, q, model))
	}
	return out, nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
