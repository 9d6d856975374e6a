package pricing

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// SolverConfig holds the numeric knobs of the implied volatility solver.
// Tolerances are absolute: PriceTolerance in price units, StepTolerance in volatility units.
type SolverConfig struct {
	PriceTolerance float64 `mapstructure:"price_tolerance" json:"price_tolerance"` // default 1e-6
	StepTolerance  float64 `mapstructure:"step_tolerance" json:"step_tolerance"`   // default 1e-8
	MaxIterations  int     `mapstructure:"max_iterations" json:"max_iterations"`   // default 100
	InitialGuess   float64 `mapstructure:"initial_guess" json:"initial_guess"`     // default 0.2
	MaxVol         float64 `mapstructure:"max_vol" json:"max_vol"`                 // default 5.0 (500%)
	VegaFloor      float64 `mapstructure:"vega_floor" json:"vega_floor"`           // default 1e-10
}

// DefaultSolverConfig returns the documented defaults.
func DefaultSolverConfig() SolverConfig {
	return SolverConfig{
		PriceTolerance: 1e-6,
		StepTolerance:  1e-8,
		MaxIterations:  100,
		InitialGuess:   0.2,
		MaxVol:         5.0,
		VegaFloor:      1e-10,
	}
}

// withDefaults fills zero or nonsensical fields from DefaultSolverConfig.
func (c SolverConfig) withDefaults() SolverConfig {
	d := DefaultSolverConfig()
	if !(c.PriceTolerance > 0) {
		c.PriceTolerance = d.PriceTolerance
	}
	if !(c.StepTolerance > 0) {
		c.StepTolerance = d.StepTolerance
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = d.MaxIterations
	}
	if !(c.InitialGuess > 0) {
		c.InitialGuess = d.InitialGuess
	}
	if !(c.MaxVol > 0) {
		c.MaxVol = d.MaxVol
	}
	if !(c.VegaFloor > 0) {
		c.VegaFloor = d.VegaFloor
	}
	return c
}

// Reason explains why a solve did not produce a volatility.
type Reason int

const (
	ReasonNone           Reason = iota
	ReasonBelowIntrinsic        // market price under the σ=0 price
	ReasonAboveMaximum          // market price over the price at the volatility cap
	ReasonIterationLimit        // budget exhausted before either tolerance was met
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return ""
	case ReasonBelowIntrinsic:
		return "below intrinsic value"
	case ReasonAboveMaximum:
		return "above maximum achievable price"
	case ReasonIterationLimit:
		return "iteration limit reached"
	}
	return fmt.Sprintf("Reason(%d)", int(r))
}

// Result is the outcome of one implied volatility solve.
// When Converged is false, Vol is the last best estimate rather than an answer.
type Result struct {
	Vol        float64
	Converged  bool
	Iterations int
	Reason     Reason
}

// Solver inverts a pricing model for volatility using Newton-Raphson safeguarded by bisection.
// A Solver only reads its configuration, so one instance may serve many goroutines.
type Solver struct {
	cfg SolverConfig
}

// NewSolver builds a solver, replacing unset fields of cfg with defaults.
func NewSolver(cfg SolverConfig) *Solver {
	return &Solver{cfg: cfg.withDefaults()}
}

// Config returns the effective configuration.
func (s *Solver) Config() SolverConfig {
	return s.cfg
}

// Solve finds the volatility that reproduces q.MarketPrice under model m,
// starting from the configured initial guess.
//
// The returned error is non-nil only for invalid input (wrapping ErrInvalidInput).
// A market price the model cannot reach is reported through Result.Converged.
func (s *Solver) Solve(m Model, q Quote) (Result, error) {
	return s.solve(m, q, s.cfg.InitialGuess*m.volScale(q))
}

// SolveFrom is Solve with a caller-supplied starting volatility, in the model's own units.
func (s *Solver) SolveFrom(m Model, q Quote, guess float64) (Result, error) {
	return s.solve(m, q, guess)
}

func (s *Solver) solve(m Model, q Quote, guess float64) (Result, error) {
	if !m.valid() {
		return Result{}, errors.Wrapf(ErrInvalidInput, "unknown model %v", m)
	}
	if err := q.Validate(); err != nil {
		return Result{}, err
	}

	cfg := s.cfg
	target := q.MarketPrice

	lo, hi := 0.0, cfg.MaxVol*m.volScale(q)
	pLo := m.Price(q, lo)
	pHi := m.Price(q, hi)

	// σ→0 boundary: the price is intrinsic and vega vanishes, so answer directly.
	if math.Abs(target-pLo) < cfg.PriceTolerance {
		return Result{Vol: 0, Converged: true}, nil
	}
	if target < pLo {
		return Result{Vol: lo, Reason: ReasonBelowIntrinsic}, nil
	}
	if target > pHi {
		return Result{Vol: hi, Reason: ReasonAboveMaximum}, nil
	}

	sigma := guess
	if !(sigma > lo && sigma < hi) {
		sigma = 0.5 * (lo + hi)
	}

	for i := 1; i <= cfg.MaxIterations; i++ {
		diff := m.Price(q, sigma) - target
		if math.Abs(diff) < cfg.PriceTolerance {
			return Result{Vol: sigma, Converged: true, Iterations: i}, nil
		}

		// price is increasing in σ, so the sign of diff tells which side the root is on
		if diff < 0 {
			lo = sigma
		} else {
			hi = sigma
		}

		next := math.NaN()
		if vega := m.Vega(q, sigma); vega >= cfg.VegaFloor {
			next = sigma - diff/vega
		}
		if !(next > lo && next < hi) {
			next = 0.5 * (lo + hi)
		}

		if math.Abs(next-sigma) < cfg.StepTolerance {
			return Result{Vol: next, Converged: true, Iterations: i}, nil
		}
		sigma = next
	}

	return Result{Vol: sigma, Iterations: cfg.MaxIterations, Reason: ReasonIterationLimit}, nil
}
