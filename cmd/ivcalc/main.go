package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/contactkeval/implied-vol/internal/config"
	"github.com/contactkeval/implied-vol/internal/data"
	"github.com/contactkeval/implied-vol/internal/engine"
	"github.com/contactkeval/implied-vol/internal/logger"
	"github.com/contactkeval/implied-vol/internal/metrics"
	"github.com/contactkeval/implied-vol/internal/pricing"
	"github.com/contactkeval/implied-vol/internal/report"
	"github.com/contactkeval/implied-vol/internal/server"
)

func main() {
	err := run(os.Args[1:])
	if err != nil && !errors.Is(err, flag.ErrHelp) {
		logger.Fatalf("%v", err)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("ivcalc", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional config file (json, yaml or toml)")
	input := fs.String("input", "", "input CSV file")
	output := fs.String("output", "-", "output CSV file, - for stdout")
	comma := fs.String("comma", ",", "input field delimiter")
	reportDir := fs.String("report-dir", "", "write summary.json to this directory")
	workers := fs.Int("workers", 0, "parallel solves, 0 = GOMAXPROCS")
	verbosity := fs.Int("v", 1, "log verbosity: 0=error 1=info 2=debug 3=trace")

	rest := fs.Bool("rest", false, "run as REST server")
	port := fs.String("port", ":8080", "REST server listen address")

	synthetic := fs.Int("synthetic", 0, "solve N generated quotes instead of reading input")
	seed := fs.Int64("seed", 1, "seed for -synthetic")

	underlying := fs.String("underlying", "", "fetch quotes for this underlying from Massive")
	contracts := fs.String("contracts", "", "Massive contracts, STRIKE:YYYY-MM-DD:TYPE,...")
	asOf := fs.String("asof", "", "Massive as-of time, RFC3339")
	rate := fs.Float64("rate", 0, "risk-free rate for Massive quotes")
	model := fs.String("model", "BlackScholes", "model for Massive quotes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// flags given explicitly win over file and environment
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "workers":
			cfg.Run.Workers = *workers
		case "report-dir":
			cfg.Run.ReportDir = *reportDir
		case "v":
			cfg.Log.Verbosity = *verbosity
		case "port":
			cfg.Server.Addr = *port
		}
	})
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	closer, err := logger.Configure(cfg.Log)
	if err != nil {
		return fmt.Errorf("log setup: %w", err)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	runner := engine.NewRunner(engine.Config{Workers: cfg.Run.Workers, Solver: cfg.Solver}, engine.WithObserver(m))

	if *rest {
		gin.SetMode(gin.ReleaseMode)
		if err := server.New(runner, m).ListenAndServe(ctx, cfg.Server.Addr); err != nil {
			return fmt.Errorf("REST server: %w", err)
		}
		return nil
	}

	var src data.Source
	switch {
	case *synthetic > 0:
		src = data.NewSyntheticSource(*synthetic, *seed)
	case *underlying != "":
		if src, err = massiveSource(cfg, *underlying, *contracts, *asOf, *rate, *model); err != nil {
			return err
		}
	case *input != "":
		r, size := utf8.DecodeRuneInString(*comma)
		if size == 0 || size != len(*comma) {
			return fmt.Errorf("-comma must be a single character, got %q", *comma)
		}
		src = data.NewCSVSource(*input, r)
	default:
		return errors.New("one of -input, -synthetic, -underlying or -rest is required")
	}

	start := time.Now()
	outcomes, summary, err := runner.RunSource(ctx, src)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	if err := report.WriteCSVFile(*output, outcomes); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if cfg.Run.ReportDir != "" {
		if err := report.WriteJSON(summary, cfg.Run.ReportDir); err != nil {
			logger.Errorf("could not write summary to %s: %v", cfg.Run.ReportDir, err)
		}
	}

	if s, ok := src.(*data.SyntheticSource); ok {
		checkSynthetic(s, outcomes)
	}
	logger.Infof("finished in %v: %d solved of %d", time.Since(start), summary.Solved, summary.Total)
	return nil
}

func massiveSource(cfg *config.Config, underlying, contractList, asOf string, rate float64, modelName string) (data.Source, error) {
	apiKey := cfg.Massive.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("MASSIVE_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("Massive API key not set (massive.api_key or MASSIVE_API_KEY)")
	}

	cs, err := data.ParseContracts(contractList)
	if err != nil {
		return nil, fmt.Errorf("-contracts: %w", err)
	}
	if len(cs) == 0 {
		return nil, errors.New("-contracts: no contracts given")
	}
	at := time.Now()
	if asOf != "" {
		if at, err = time.Parse(time.RFC3339, asOf); err != nil {
			return nil, fmt.Errorf("-asof: %w", err)
		}
	}
	m, err := pricing.ParseModel(modelName)
	if err != nil {
		return nil, fmt.Errorf("-model: %w", err)
	}

	return data.NewMassiveSource(data.MassiveOptions{
		APIKey:     apiKey,
		BaseURL:    cfg.Massive.BaseURL,
		Underlying: underlying,
		Contracts:  cs,
		AsOf:       at,
		Rate:       rate,
		Model:      m,
	}), nil
}

// checkSynthetic logs how far solved vols are from the ones the quotes were generated with.
func checkSynthetic(s *data.SyntheticSource, outcomes []engine.Outcome) {
	var worst float64
	var worstID string
	for _, o := range outcomes {
		vol, ok := o.ImpliedVol()
		if !ok {
			continue
		}
		truth, _ := s.TrueVol(o.Record.ID)
		if d := relDiff(vol, truth); d > worst {
			worst, worstID = d, o.Record.ID
		}
	}
	logger.Infof("synthetic check: worst relative vol error %.3g (%s)", worst, worstID)
}

func relDiff(a, b float64) float64 {
	d := a - b
	if d < 0 {
		d = -d
	}
	if b != 0 {
		d /= b
	}
	return d
}
