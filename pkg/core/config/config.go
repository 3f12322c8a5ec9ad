// Package config loads and validates the engine's startup configuration.
// Configuration is static: it is read and validated once at startup and never
// mutated at request time. Any violation surfaces as a configuration-kind
// error before the first analysis runs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"github.com/adityaloshali/stonky/pkg/core/metrics"
	"github.com/adityaloshali/stonky/pkg/core/scoring"
	"github.com/adityaloshali/stonky/pkg/core/sector"
	"github.com/adityaloshali/stonky/pkg/models"
)

// Config holds all application configuration.
type Config struct {
	Engine struct {
		FreshnessHours int     `yaml:"freshness_hours" validate:"gt=0"`
		JobTimeoutSecs int     `yaml:"job_timeout_secs" validate:"gt=0"`
		Weights        Weights `yaml:"weights"`
		// Points subtracted when the forensic check fires.
		ForensicPenalty float64 `yaml:"forensic_penalty" validate:"gte=0"`
	} `yaml:"engine"`
	Valuation struct {
		DiscountRate   float64 `yaml:"discount_rate" validate:"gt=0,lt=1"`
		TerminalGrowth float64 `yaml:"terminal_growth" validate:"gte=0,lt=1"`
	} `yaml:"valuation"`
	Sector struct {
		Rules []sector.Rule `yaml:"rules" validate:"dive"`
	} `yaml:"sector"`
	Screener struct {
		BaseURL       string  `yaml:"base_url" validate:"url"`
		SessionCookie string  `yaml:"session_cookie"`
		TimeoutSecs   int     `yaml:"timeout_secs" validate:"gt=0"`
		RatePerSec    float64 `yaml:"rate_per_sec" validate:"gt=0"`
	} `yaml:"screener"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Refresh struct {
		Cron      string   `yaml:"cron"`
		Watchlist []string `yaml:"watchlist"`
	} `yaml:"refresh"`
}

// Weights are the five metric weights; they must sum to 1.0 within epsilon.
type Weights struct {
	Quality   float64 `yaml:"quality" validate:"gte=0,lte=1"`
	Risk      float64 `yaml:"risk" validate:"gte=0,lte=1"`
	Valuation float64 `yaml:"valuation" validate:"gte=0,lte=1"`
	Growth    float64 `yaml:"growth" validate:"gte=0,lte=1"`
	Ownership float64 `yaml:"ownership" validate:"gte=0,lte=1"`
}

// Map converts the weights to the scoring package's keyed form.
func (w Weights) Map() map[string]float64 {
	return map[string]float64{
		models.MetricQuality:   w.Quality,
		models.MetricRisk:      w.Risk,
		models.MetricValuation: w.Valuation,
		models.MetricGrowth:    w.Growth,
		models.MetricOwnership: w.Ownership,
	}
}

// FreshnessWindow returns the cache freshness window as a duration.
func (c *Config) FreshnessWindow() time.Duration {
	return time.Duration(c.Engine.FreshnessHours) * time.Hour
}

// JobTimeout returns the per-job wall-clock budget.
func (c *Config) JobTimeout() time.Duration {
	return time.Duration(c.Engine.JobTimeoutSecs) * time.Second
}

// ValuationParams returns the DCF rates in the extractor's form.
func (c *Config) ValuationParams() metrics.ValuationParams {
	return metrics.ValuationParams{
		DiscountRate:   c.Valuation.DiscountRate,
		TerminalGrowth: c.Valuation.TerminalGrowth,
	}
}

// Load reads config from a YAML file (missing file means defaults), applies
// environment variable overrides, then validates. The returned error, if any,
// always carries the configuration kind.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, models.NewError(models.KindConfiguration, "", fmt.Errorf("read config: %w", err))
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, models.NewError(models.KindConfiguration, "", fmt.Errorf("parse config: %w", err))
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.Engine.FreshnessHours = 24
	cfg.Engine.JobTimeoutSecs = 20
	cfg.Engine.ForensicPenalty = scoring.DefaultForensicPenalty
	cfg.Engine.Weights = Weights{Quality: 0.30, Risk: 0.25, Valuation: 0.25, Growth: 0.15, Ownership: 0.05}
	cfg.Valuation.DiscountRate = 0.10
	cfg.Valuation.TerminalGrowth = 0.03
	cfg.Sector.Rules = sector.DefaultRules()
	cfg.Screener.BaseURL = "https://www.screener.in"
	cfg.Screener.TimeoutSecs = 30
	cfg.Screener.RatePerSec = 0.5
	cfg.Server.Addr = ":8080"
	cfg.Refresh.Cron = "0 7 * * *"
	return cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SCREENER_COOKIE"); v != "" {
		cfg.Screener.SessionCookie = v
	}
	if v := os.Getenv("SCREENER_BASE_URL"); v != "" {
		cfg.Screener.BaseURL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("FRESHNESS_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.FreshnessHours = n
		}
	}
	if v := os.Getenv("JOB_TIMEOUT_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.JobTimeoutSecs = n
		}
	}
}

// Validate runs struct-tag validation plus the cross-field rules the tags
// cannot express: weights summing to 1.0 and the terminal growth rate lying
// strictly below the discount rate.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return models.NewError(models.KindConfiguration, "", fmt.Errorf("config validation: %w", err))
	}
	if err := scoring.ValidateWeights(c.Engine.Weights.Map()); err != nil {
		return err
	}
	if c.Valuation.TerminalGrowth >= c.Valuation.DiscountRate {
		return models.Errorf(models.KindConfiguration, "",
			"terminal growth %.3f must be below discount rate %.3f",
			c.Valuation.TerminalGrowth, c.Valuation.DiscountRate)
	}
	return nil
}
