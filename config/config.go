// Package config loads, validates and saves btledger run configuration.
//
// Files are YAML or JSON. Every key can be overridden from the environment
// with the BTLEDGER_ prefix, dots replaced by underscores; for example
// BTLEDGER_ACCOUNT_INITIAL_CASH or BTLEDGER_RUN_SEED.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rustyeddy/btledger/backtest"
	"github.com/rustyeddy/btledger/dataguard"
	"github.com/rustyeddy/btledger/internal/logging"
	"github.com/rustyeddy/btledger/journal"
	"github.com/rustyeddy/btledger/market"
	"github.com/rustyeddy/btledger/strategies"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "BTLEDGER"

// Config represents a complete run configuration. Money and basis-point
// values are decimal strings so they load exactly.
type Config struct {
	Account  AccountConfig  `json:"account" yaml:"account" mapstructure:"account"`
	Costs    CostsConfig    `json:"costs" yaml:"costs" mapstructure:"costs"`
	Run      RunConfig      `json:"run" yaml:"run" mapstructure:"run"`
	Data     DataConfig     `json:"data" yaml:"data" mapstructure:"data"`
	Journal  JournalConfig  `json:"journal" yaml:"journal" mapstructure:"journal"`
	Manifest ManifestConfig `json:"manifest" yaml:"manifest" mapstructure:"manifest"`
	Strategy StrategyConfig `json:"strategy" yaml:"strategy" mapstructure:"strategy"`
	Log      LogConfig      `json:"log" yaml:"log" mapstructure:"log"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
}

type AccountConfig struct {
	InitialCash      string `json:"initial_cash" yaml:"initial_cash" mapstructure:"initial_cash" validate:"required,numeric"`
	PositionFraction string `json:"position_fraction" yaml:"position_fraction" mapstructure:"position_fraction" validate:"required,numeric"`
}

type CostsConfig struct {
	FeeBps   string         `json:"fee_bps" yaml:"fee_bps" mapstructure:"fee_bps" validate:"omitempty,numeric"`
	Slippage SlippageConfig `json:"slippage" yaml:"slippage" mapstructure:"slippage"`
}

type SlippageConfig struct {
	Model        string `json:"model" yaml:"model" mapstructure:"model" validate:"omitempty,oneof=static uniform volume"`
	Bps          string `json:"bps" yaml:"bps" mapstructure:"bps" validate:"omitempty,numeric"`
	MinBps       string `json:"min_bps,omitempty" yaml:"min_bps,omitempty" mapstructure:"min_bps" validate:"omitempty,numeric"`
	MaxBps       string `json:"max_bps,omitempty" yaml:"max_bps,omitempty" mapstructure:"max_bps" validate:"omitempty,numeric"`
	ImpactBps    string `json:"impact_bps,omitempty" yaml:"impact_bps,omitempty" mapstructure:"impact_bps" validate:"omitempty,numeric"`
	MaxImpactBps string `json:"max_impact_bps,omitempty" yaml:"max_impact_bps,omitempty" mapstructure:"max_impact_bps" validate:"omitempty,numeric"`
}

type RunConfig struct {
	Seed           *int64 `json:"seed,omitempty" yaml:"seed,omitempty" mapstructure:"seed"`
	RunID          string `json:"run_id,omitempty" yaml:"run_id,omitempty" mapstructure:"run_id"`
	FillAt         string `json:"fill_at" yaml:"fill_at" mapstructure:"fill_at" validate:"omitempty,oneof=open close"`
	PeriodsPerYear int    `json:"periods_per_year" yaml:"periods_per_year" mapstructure:"periods_per_year" validate:"gte=0"`
}

type DataConfig struct {
	Strict               bool `json:"strict" yaml:"strict" mapstructure:"strict"`
	ExpectSorted         bool `json:"expect_sorted" yaml:"expect_sorted" mapstructure:"expect_sorted"`
	AllowEqualTimestamps bool `json:"allow_equal_timestamps" yaml:"allow_equal_timestamps" mapstructure:"allow_equal_timestamps"`
	MinLength            int  `json:"min_length" yaml:"min_length" mapstructure:"min_length" validate:"gte=0"`
}

type JournalConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Dir         string `json:"dir" yaml:"dir" mapstructure:"dir"`
	PricePlaces int32  `json:"price_places" yaml:"price_places" mapstructure:"price_places" validate:"gte=0,lte=18"`
	SizePlaces  int32  `json:"size_places" yaml:"size_places" mapstructure:"size_places" validate:"gte=0,lte=18"`
}

type ManifestConfig struct {
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`
	// SecretEnv names the environment variable holding the seal key. The
	// key itself never lives in a config file.
	SecretEnv string `json:"secret_env" yaml:"secret_env" mapstructure:"secret_env"`
	Org       bool   `json:"org" yaml:"org" mapstructure:"org"`
}

type StrategyConfig struct {
	Name         string  `json:"name" yaml:"name" mapstructure:"name" validate:"required"`
	Fast         int     `json:"fast,omitempty" yaml:"fast,omitempty" mapstructure:"fast" validate:"gte=0"`
	Slow         int     `json:"slow,omitempty" yaml:"slow,omitempty" mapstructure:"slow" validate:"gte=0"`
	Script       string  `json:"script,omitempty" yaml:"script,omitempty" mapstructure:"script"`
	ADXPeriod    int     `json:"adx_period,omitempty" yaml:"adx_period,omitempty" mapstructure:"adx_period" validate:"gte=0"`
	ADXThreshold float64 `json:"adx_threshold,omitempty" yaml:"adx_threshold,omitempty" mapstructure:"adx_threshold" validate:"gte=0,lte=100"`
}

type LogConfig struct {
	Level      string `json:"level" yaml:"level" mapstructure:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format     string `json:"format" yaml:"format" mapstructure:"format" validate:"omitempty,oneof=text json"`
	File       string `json:"file,omitempty" yaml:"file,omitempty" mapstructure:"file"`
	MaxSize    int    `json:"max_size,omitempty" yaml:"max_size,omitempty" mapstructure:"max_size" validate:"gte=0"`
	MaxBackups int    `json:"max_backups,omitempty" yaml:"max_backups,omitempty" mapstructure:"max_backups" validate:"gte=0"`
	MaxAge     int    `json:"max_age,omitempty" yaml:"max_age,omitempty" mapstructure:"max_age" validate:"gte=0"`
	Compress   bool   `json:"compress,omitempty" yaml:"compress,omitempty" mapstructure:"compress"`
}

type MetricsConfig struct {
	// Textfile, when set, receives the run's Prometheus metrics for the
	// node-exporter textfile collector.
	Textfile string `json:"textfile,omitempty" yaml:"textfile,omitempty" mapstructure:"textfile"`
}

// Default returns a default configuration
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			InitialCash:      "10000",
			PositionFraction: "1",
		},
		Costs: CostsConfig{
			FeeBps:   "0",
			Slippage: SlippageConfig{Model: backtest.SlippageStatic, Bps: "0"},
		},
		Run: RunConfig{
			FillAt:         string(market.FieldClose),
			PeriodsPerYear: 252,
		},
		Data: DataConfig{
			ExpectSorted: true,
			MinLength:    2,
		},
		Journal: JournalConfig{
			Enabled:     true,
			Dir:         "out",
			PricePlaces: 8,
			SizePlaces:  8,
		},
		Manifest: ManifestConfig{
			Dir:       "out",
			SecretEnv: "BTLEDGER_SEAL_SECRET",
		},
		Strategy: StrategyConfig{
			Name: "buy-and-hold",
			Fast: 12,
			Slow: 26,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path (YAML or JSON by extension) over the defaults, applies
// BTLEDGER_* environment overrides and validates the result. An empty path
// loads the defaults plus environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range keys(reflect.TypeOf(Config{}), "") {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// keys lists the dotted mapstructure keys of every leaf field in t.
func keys(t reflect.Type, prefix string) []string {
	var out []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := f.Tag.Get("mapstructure")
		if name == "" || name == "-" {
			continue
		}
		if prefix != "" {
			name = prefix + "." + name
		}
		if f.Type.Kind() == reflect.Struct {
			out = append(out, keys(f.Type, name)...)
			continue
		}
		out = append(out, name)
	}
	return out
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

var validate = validator.New()

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	var errs []error
	check := func(cond bool, format string, args ...any) {
		if !cond {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	cash := dec(c.Account.InitialCash)
	check(cash.IsPositive(), "account.initial_cash must be positive")
	frac := dec(c.Account.PositionFraction)
	check(frac.IsPositive() && frac.LessThanOrEqual(decimal.NewFromInt(1)), "account.position_fraction must be in (0, 1]")

	maxBps := decimal.NewFromInt(10_000)
	fee := dec(c.Costs.FeeBps)
	check(!fee.IsNegative() && fee.LessThan(maxBps), "costs.fee_bps must be in [0, 10000)")

	s := c.Costs.Slippage
	for name, v := range map[string]string{
		"bps": s.Bps, "min_bps": s.MinBps, "max_bps": s.MaxBps,
		"impact_bps": s.ImpactBps, "max_impact_bps": s.MaxImpactBps,
	} {
		d := dec(v)
		check(!d.IsNegative() && d.LessThan(maxBps), "costs.slippage.%s must be in [0, 10000)", name)
	}
	if s.Model == backtest.SlippageUniform {
		check(dec(s.MaxBps).GreaterThanOrEqual(dec(s.MinBps)), "costs.slippage.max_bps must not be below min_bps")
	}

	if p, err := c.StrategyParams(); err != nil {
		errs = append(errs, err)
	} else if _, err := strategies.ByName(c.Strategy.Name, p, rand.New(rand.NewSource(0))); err != nil {
		errs = append(errs, fmt.Errorf("strategy: %w", err))
	}

	return errors.Join(errs...)
}

// dec parses a validated decimal string; empty means zero.
func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// StrategyParams converts the strategy section.
func (c *Config) StrategyParams() (strategies.Params, error) {
	p := strategies.Params{
		Fast:         c.Strategy.Fast,
		Slow:         c.Strategy.Slow,
		ADXPeriod:    c.Strategy.ADXPeriod,
		ADXThreshold: c.Strategy.ADXThreshold,
	}
	if c.Strategy.Script != "" {
		script, err := strategies.ParseScript(c.Strategy.Script)
		if err != nil {
			return p, fmt.Errorf("strategy.script: %w", err)
		}
		p.Script = script
	}
	return p, nil
}

// EngineConfig maps the file configuration onto the engine's. The seal key
// is read from the environment variable named by manifest.secret_env.
func (c *Config) EngineConfig() backtest.Config {
	s := c.Costs.Slippage
	ec := backtest.Config{
		InitialCash:      dec(c.Account.InitialCash),
		PositionFraction: dec(c.Account.PositionFraction),
		FeeRate:          dec(c.Costs.FeeBps).Shift(-4),
		Slippage: backtest.Slippage{
			Model:        s.Model,
			Bps:          dec(s.Bps),
			MinBps:       dec(s.MinBps),
			MaxBps:       dec(s.MaxBps),
			ImpactBps:    dec(s.ImpactBps),
			MaxImpactBps: dec(s.MaxImpactBps),
		},
		FillAt:         market.Field(c.Run.FillAt),
		RunID:          c.Run.RunID,
		PeriodsPerYear: c.Run.PeriodsPerYear,
		Data: dataguard.Options{
			Strict:               c.Data.Strict,
			ExpectSorted:         c.Data.ExpectSorted,
			AllowEqualTimestamps: c.Data.AllowEqualTimestamps,
			MinLength:            c.Data.MinLength,
		},
		Journal:    c.Journal.Enabled,
		JournalDir: c.Journal.Dir,
		Precision: journal.Precision{
			PricePlaces: c.Journal.PricePlaces,
			SizePlaces:  c.Journal.SizePlaces,
		},
		ManifestDir: c.Manifest.Dir,
		OrgReport:   c.Manifest.Org,
	}
	if c.Run.Seed != nil {
		seed := *c.Run.Seed
		ec.Seed = &seed
	}
	if c.Manifest.SecretEnv != "" {
		if secret := os.Getenv(c.Manifest.SecretEnv); secret != "" {
			ec.Secret = []byte(secret)
		}
	}
	return ec
}

// LoggingConfig converts the log section.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		File:       c.Log.File,
		MaxSize:    c.Log.MaxSize,
		MaxBackups: c.Log.MaxBackups,
		MaxAge:     c.Log.MaxAge,
		Compress:   c.Log.Compress,
	}
}
