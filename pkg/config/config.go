// Package config loads runtime settings from YAML, .env and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error fatal panic disabled"`
		Format string `yaml:"format" default:"console" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stderr" validate:"required"`
	} `yaml:"log"`

	Market struct {
		BaseURL           string        `yaml:"base_url" default:"https://query1.finance.yahoo.com" validate:"required,url"`
		QuoteBaseURL      string        `yaml:"quote_base_url" default:"https://finance.yahoo.com" validate:"required,url"`
		FundamentalsURL   string        `yaml:"fundamentals_url" validate:"omitempty,url"`
		StatementsDir     string        `yaml:"statements_dir" default:"data/statements"`
		RiskFreeSymbol    string        `yaml:"risk_free_symbol" default:"^TNX" validate:"required"`
		IndexSymbol       string        `yaml:"index_symbol" default:"^GSPC" validate:"required"`
		BondSpread        float64       `yaml:"bond_spread" default:"0.02" validate:"gte=0"`
		DefaultTaxRate    float64       `yaml:"default_tax_rate" default:"0.21" validate:"gte=0,lte=1"`
		RequestsPerSecond float64       `yaml:"requests_per_second" default:"2" validate:"gte=0"`
		Timeout           time.Duration `yaml:"timeout" default:"15s"`
	} `yaml:"market"`

	Valuation struct {
		Strategy       string  `yaml:"strategy" default:"revenue_margin" validate:"required"`
		HorizonYears   int     `yaml:"horizon_years" default:"5" validate:"gte=1,lte=50"`
		TerminalGrowth float64 `yaml:"terminal_growth" default:"0.03" validate:"gt=-1,lt=1"`
		Concurrency    int     `yaml:"concurrency" default:"4" validate:"gte=1"`
	} `yaml:"valuation"`

	Cache struct {
		RedisAddr     string        `yaml:"redis_addr"`
		RedisPassword string        `yaml:"redis_password"`
		RedisDB       int           `yaml:"redis_db"`
		Prefix        string        `yaml:"prefix" default:"dcf"`
		TTL           time.Duration `yaml:"ttl" default:"6h"`
	} `yaml:"cache"`

	Store struct {
		DatabaseURL string `yaml:"database_url"`
		Dir         string `yaml:"dir" default:".cache/valuations"`
	} `yaml:"store"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr" default:":9108"`
	} `yaml:"metrics"`
}

var validate = validator.New()

// Load applies defaults, overlays an optional YAML file and environment
// overrides, and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	var c Config
	// Defaults first so explicit zeros in the file survive
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithDotenv loads .env files into the environment before Load.
// Missing .env files are not an error.
func LoadWithDotenv(path string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return Load(path)
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("DCF_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("DCF_MARKET_BASE_URL"); v != "" {
		c.Market.BaseURL = v
	}
	if v := os.Getenv("DCF_FUNDAMENTALS_URL"); v != "" {
		c.Market.FundamentalsURL = v
	}
	if v := os.Getenv("DCF_REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
	}
	if v := os.Getenv("DCF_DATABASE_URL"); v != "" {
		c.Store.DatabaseURL = v
	}
	if v := os.Getenv("DCF_TERMINAL_GROWTH"); v != "" {
		g, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("DCF_TERMINAL_GROWTH: %w", err)
		}
		c.Valuation.TerminalGrowth = g
	}
	return nil
}
