package pricing

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidInput marks a quote that cannot be priced or inverted.
// Use errors.Is to detect it; the wrapped message names the offending field.
var ErrInvalidInput = errors.New("invalid input")

// OptionType is the European payoff direction.
type OptionType int

const (
	Call OptionType = iota
	Put
)

func (o OptionType) String() string {
	switch o {
	case Call:
		return "Call"
	case Put:
		return "Put"
	}
	return fmt.Sprintf("OptionType(%d)", int(o))
}

// ParseOptionType accepts "call"/"put" in any case, plus the one letter forms "c"/"p".
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c":
		return Call, nil
	case "put", "p":
		return Put, nil
	}
	return 0, errors.Wrapf(ErrInvalidInput, "unknown option type %q", s)
}

// Model selects the closed-form family used to price a quote.
type Model int

const (
	BlackScholes Model = iota
	Bachelier
)

func (m Model) String() string {
	switch m {
	case BlackScholes:
		return "BlackScholes"
	case Bachelier:
		return "Bachelier"
	}
	return fmt.Sprintf("Model(%d)", int(m))
}

// ParseModel accepts "BlackScholes" and "Bachelier", case-insensitively.
func ParseModel(s string) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "blackscholes", "black-scholes":
		return BlackScholes, nil
	case "bachelier":
		return Bachelier, nil
	}
	return 0, errors.Wrapf(ErrInvalidInput, "unknown model type %q", s)
}

// Quote is one observed European option price with its market parameters.
// Expiry is measured in years; Rate is a continuously compounded annual rate.
type Quote struct {
	Spot        float64
	Strike      float64
	Rate        float64
	Expiry      float64
	Type        OptionType
	MarketPrice float64
}

// Forward returns S·e^(rT).
func (q Quote) Forward() float64 {
	return q.Spot * math.Exp(q.Rate*q.Expiry)
}

// Discount returns e^(-rT).
func (q Quote) Discount() float64 {
	return math.Exp(-q.Rate * q.Expiry)
}

// Validate reports the first field that makes q unusable, wrapped around ErrInvalidInput.
func (q Quote) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"spot", q.Spot},
		{"strike", q.Strike},
		{"rate", q.Rate},
		{"expiry", q.Expiry},
		{"market price", q.MarketPrice},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return errors.Wrapf(ErrInvalidInput, "%s is not finite", f.name)
		}
	}

	switch {
	case q.Spot <= 0:
		return errors.Wrapf(ErrInvalidInput, "spot must be positive, got %g", q.Spot)
	case q.Strike <= 0:
		return errors.Wrapf(ErrInvalidInput, "strike must be positive, got %g", q.Strike)
	case q.Expiry < 0:
		return errors.Wrapf(ErrInvalidInput, "time to expiry must be non-negative, got %g", q.Expiry)
	case q.MarketPrice < 0:
		return errors.Wrapf(ErrInvalidInput, "market price must be non-negative, got %g", q.MarketPrice)
	case q.Type != Call && q.Type != Put:
		return errors.Wrapf(ErrInvalidInput, "unknown option type %v", q.Type)
	}
	return nil
}
