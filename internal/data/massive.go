package data

// This file contains a Massive-backed Source that turns live or historical
// market data into quote records: the underlying and each option contract are
// priced from Massive minute aggregates around an as-of timestamp.

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/contactkeval/implied-vol/internal/logger"
	"github.com/contactkeval/implied-vol/internal/pricing"
)

// DefaultMassiveBaseURL is the production Massive API root.
const DefaultMassiveBaseURL = "https://api.massive.com"

// Contract identifies one listed option on the configured underlying.
type Contract struct {
	Strike float64            `mapstructure:"strike" json:"strike"`
	Expiry time.Time          `mapstructure:"expiry" json:"expiry"`
	Type   pricing.OptionType `mapstructure:"type" json:"type"`
}

// MassiveOptions configures a MassiveSource.
type MassiveOptions struct {
	APIKey     string
	BaseURL    string // defaults to DefaultMassiveBaseURL
	Underlying string
	Contracts  []Contract
	AsOf       time.Time
	Rate       float64       // risk-free rate applied to every quote
	Model      pricing.Model // model used to solve every quote
	Timeout    time.Duration // per request, defaults to 60s
	RetryWait  time.Duration // initial back-off on HTTP 429, defaults to 1s
}

// MassiveSource implements Source using the Massive aggregates API.
type MassiveSource struct {
	opts   MassiveOptions
	client *resty.Client
}

// massiveAggsResp models the response of /v2/aggs/ticker/{ticker}/range/...
type massiveAggsResp struct {
	Ticker  string `json:"ticker"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Results []struct {
		Open      float64 `json:"o"`
		Close     float64 `json:"c"`
		High      float64 `json:"h"`
		Low       float64 `json:"l"`
		Volume    float64 `json:"v"`
		Timestamp int64   `json:"t"` // epoch millis
	} `json:"results"`
}

// NewMassiveSource constructs a Massive-backed source. Requests carry the API
// key both as a bearer token and as the apiKey query parameter, and are retried
// with back-off when Massive answers 429.
func NewMassiveSource(opts MassiveOptions) *MassiveSource {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultMassiveBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = time.Second
	}
	logger.Infof("initializing Massive quote source for %s (%d contracts)", opts.Underlying, len(opts.Contracts))

	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetAuthToken(opts.APIKey).
		SetQueryParam("apiKey", opts.APIKey).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "ivcalc/1.0").
		SetRetryCount(5).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(time.Minute).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return resp != nil && resp.StatusCode() == http.StatusTooManyRequests
		})

	return &MassiveSource{opts: opts, client: client}
}

func (s *MassiveSource) Name() string {
	return "massive:" + s.opts.Underlying
}

// Records prices the underlying once and then every contract. Failing to price
// the underlying is fatal; failing to price a contract only marks its record.
func (s *MassiveSource) Records(ctx context.Context) ([]Record, error) {
	spot, err := s.priceAt(ctx, s.opts.Underlying, s.opts.AsOf)
	if err != nil {
		return nil, fmt.Errorf("price underlying %s: %w", s.opts.Underlying, err)
	}
	logger.Debugf("underlying %s = %.4f at %s", s.opts.Underlying, spot, s.opts.AsOf.Format(time.RFC3339))

	out := make([]Record, 0, len(s.opts.Contracts))
	for _, c := range s.opts.Contracts {
		symbol := OptionSymbolFromParts(s.opts.Underlying, c.Expiry, c.Type, c.Strike)

		price, err := s.priceAt(ctx, symbol, s.opts.AsOf)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		q := pricing.Quote{
			Spot:        spot,
			Strike:      c.Strike,
			Rate:        s.opts.Rate,
			Expiry:      YearsBetween(s.opts.AsOf, c.Expiry),
			Type:        c.Type,
			MarketPrice: price,
		}
		rec := NewRecord(symbol, q, s.opts.Model)
		if err != nil {
			logger.Errorf("no price for %s: %v", symbol, err)
			rec.Err = err
			rec.Raw[7] = ""
		}
		out = append(out, rec)
	}
	return out, nil
}

// priceAt returns the last close in the five minutes up to asOf, or failing
// that the first open in the five minutes after it.
func (s *MassiveSource) priceAt(ctx context.Context, ticker string, asOf time.Time) (float64, error) {
	bars, err := s.minuteBars(ctx, ticker, asOf.Add(-5*time.Minute), asOf)
	if err != nil {
		return 0, err
	}
	if len(bars.Results) > 0 {
		return bars.Results[len(bars.Results)-1].Close, nil
	}

	logger.Tracef("no bars before %s for %s, trying forward window", asOf.Format(time.RFC3339), ticker)
	bars, err = s.minuteBars(ctx, ticker, asOf, asOf.Add(5*time.Minute))
	if err != nil {
		return 0, err
	}
	if len(bars.Results) == 0 {
		return 0, fmt.Errorf("no bars for %s around %s", ticker, asOf.Format("2006-01-02 15:04"))
	}
	return bars.Results[0].Open, nil
}

func (s *MassiveSource) minuteBars(ctx context.Context, ticker string, from, to time.Time) (*massiveAggsResp, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"ticker": ticker,
			"from":   strconv.FormatInt(from.UnixMilli(), 10),
			"to":     strconv.FormatInt(to.UnixMilli(), 10),
		}).
		SetQueryParams(map[string]string{
			"adjusted": "true",
			"sort":     "asc",
			"limit":    "50000",
		}).
		Get("/v2/aggs/ticker/{ticker}/range/1/minute/{from}/{to}")
	if err != nil {
		return nil, fmt.Errorf("massive request: %w", err)
	}

	var body massiveAggsResp
	if resp.IsError() {
		_ = json.Unmarshal(resp.Body(), &body)
		logger.Errorf("massive aggregates API error status=%d message=%s", resp.StatusCode(), body.Message)
		return nil, fmt.Errorf("massive returned status %d: %s", resp.StatusCode(), body.Message)
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	logger.Tracef("%s: %d bars", ticker, len(body.Results))
	return &body, nil
}

// ParseContracts reads a comma separated list of STRIKE:YYYY-MM-DD:TYPE entries,
// e.g. "580:2025-01-17:call,575:2025-01-17:put".
func ParseContracts(s string) ([]Contract, error) {
	var out []Contract
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("contract %q: want STRIKE:YYYY-MM-DD:TYPE", item)
		}
		strike, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, fmt.Errorf("contract %q: strike: %w", item, err)
		}
		expiry, err := time.Parse("2006-01-02", parts[1])
		if err != nil {
			return nil, fmt.Errorf("contract %q: expiry: %w", item, err)
		}
		optType, err := pricing.ParseOptionType(parts[2])
		if err != nil {
			return nil, fmt.Errorf("contract %q: %w", item, err)
		}
		out = append(out, Contract{Strike: strike, Expiry: expiry, Type: optType})
	}
	return out, nil
}
