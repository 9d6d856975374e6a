// Package config loads calculator settings. Precedence, lowest first: built-in
// defaults, an optional config file (JSON, YAML or TOML by extension), IVCALC_*
// environment variables, and finally command-line flags applied by the caller.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/contactkeval/implied-vol/internal/data"
	"github.com/contactkeval/implied-vol/internal/logger"
	"github.com/contactkeval/implied-vol/internal/pricing"
)

// EnvPrefix prefixes every environment override, e.g. IVCALC_SOLVER_MAX_VOL.
const EnvPrefix = "IVCALC"

type Config struct {
	Solver  pricing.SolverConfig `mapstructure:"solver"`
	Run     RunConfig            `mapstructure:"run"`
	Log     logger.Options       `mapstructure:"log"`
	Server  ServerConfig         `mapstructure:"server"`
	Massive MassiveConfig        `mapstructure:"massive"`
}

type RunConfig struct {
	Workers   int    `mapstructure:"workers"`    // 0 = GOMAXPROCS
	ReportDir string `mapstructure:"report_dir"` // empty: no summary.json
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type MassiveConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// Load reads configuration from path (optional) and the environment.
// A non-empty path that cannot be read is an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate rejects settings the solver or runner cannot work with.
func (c *Config) Validate() error {
	s := c.Solver
	if !(s.PriceTolerance > 0) || !(s.StepTolerance > 0) {
		return fmt.Errorf("solver tolerances must be positive")
	}
	if s.MaxIterations <= 0 {
		return fmt.Errorf("invalid solver.max_iterations: %d", s.MaxIterations)
	}
	if !(s.MaxVol > 0) || !(s.InitialGuess > 0) || s.InitialGuess >= s.MaxVol {
		return fmt.Errorf("solver.initial_guess (%g) must lie in (0, solver.max_vol=%g)", s.InitialGuess, s.MaxVol)
	}
	if !(s.VegaFloor > 0) {
		return fmt.Errorf("solver.vega_floor must be positive")
	}
	if c.Run.Workers < 0 {
		return fmt.Errorf("invalid run.workers: %d", c.Run.Workers)
	}
	if c.Log.Verbosity < int(logger.Error) || c.Log.Verbosity > int(logger.Trace) {
		return fmt.Errorf("log.verbosity must be between %d and %d", logger.Error, logger.Trace)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	d := pricing.DefaultSolverConfig()
	v.SetDefault("solver.price_tolerance", d.PriceTolerance)
	v.SetDefault("solver.step_tolerance", d.StepTolerance)
	v.SetDefault("solver.max_iterations", d.MaxIterations)
	v.SetDefault("solver.initial_guess", d.InitialGuess)
	v.SetDefault("solver.max_vol", d.MaxVol)
	v.SetDefault("solver.vega_floor", d.VegaFloor)

	v.SetDefault("run.workers", 0)
	v.SetDefault("run.report_dir", "")

	v.SetDefault("log.verbosity", int(logger.Info))
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)

	v.SetDefault("server.addr", ":8080")

	v.SetDefault("massive.api_key", "")
	v.SetDefault("massive.base_url", data.DefaultMassiveBaseURL)
}
