// Package config loads the simulator settings from YAML or JSON.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/swingsim/internal/logger"
	"github.com/rustyeddy/swingsim/internal/validate"
	"github.com/rustyeddy/swingsim/journal"
	"github.com/rustyeddy/swingsim/pricing"
	"github.com/rustyeddy/swingsim/risk"
	"github.com/rustyeddy/swingsim/sim"
)

// Config represents the complete simulator configuration
type Config struct {
	Account AccountConfig `json:"account" yaml:"account"`
	Session SessionConfig `json:"session" yaml:"session"`
	Trading TradingConfig `json:"trading" yaml:"trading"`
	Rules   RulesConfig   `json:"rules" yaml:"rules"`
	Data    DataConfig    `json:"data" yaml:"data"`
	Journal JournalConfig `json:"journal" yaml:"journal"`
	Log     LogConfig     `json:"log" yaml:"log"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// AccountConfig identifies the practicing user and their starting cash
type AccountConfig struct {
	Owner          string  `json:"owner" yaml:"owner" default:"local" validate:"required"`
	InitialCapital float64 `json:"initial_capital" yaml:"initial_capital" default:"1000000" validate:"gt=0"`
}

// SessionConfig shapes new practice sessions
type SessionConfig struct {
	PeriodDays     int           `json:"period_days" yaml:"period_days" default:"60" validate:"gt=0"`
	HistoricalDays int           `json:"historical_days" yaml:"historical_days" default:"120" validate:"gte=0"`
	PlaybackSpeed  time.Duration `json:"playback_speed" yaml:"playback_speed" default:"1s" validate:"gt=0"`
	MAPeriods      []int         `json:"ma_periods" yaml:"ma_periods" default:"[5,25,75]" validate:"dive,gt=0"`
}

// TradingConfig is the cost model
type TradingConfig struct {
	FeeRate        float64 `json:"fee_rate" yaml:"fee_rate" default:"0.001" validate:"gte=0,lt=1"`
	MinFee         float64 `json:"min_fee" yaml:"min_fee" default:"55" validate:"gte=0"`
	MaxFee         float64 `json:"max_fee" yaml:"max_fee" default:"1070" validate:"gte=0"`
	SlippageRate   float64 `json:"slippage_rate" yaml:"slippage_rate" default:"0.0005" validate:"gte=0,lt=1"`
	MarginLeverage float64 `json:"margin_leverage" yaml:"margin_leverage" default:"3" validate:"gte=1"`
}

// RulesConfig is the rulebook the compliance monitor enforces
type RulesConfig struct {
	StopLossPct      float64 `json:"stop_loss_pct" yaml:"stop_loss_pct" default:"10" validate:"gt=0,lte=100"`
	MaxPositionPct   float64 `json:"max_position_pct" yaml:"max_position_pct" default:"30" validate:"gt=0,lte=100"`
	MaxOpenPositions int     `json:"max_open_positions" yaml:"max_open_positions" default:"3" validate:"gt=0"`
	MaxLeverage      float64 `json:"max_leverage" yaml:"max_leverage" default:"2" validate:"gt=0"`
}

// DataConfig points at the daily bar files
type DataConfig struct {
	Format string `json:"format" yaml:"format" default:"csv" validate:"oneof=csv parquet"`
	Dir    string `json:"dir" yaml:"dir" default:"./data" validate:"required"`
}

// JournalConfig contains persistence parameters
type JournalConfig struct {
	DBPath        string        `json:"db_path" yaml:"db_path" default:"./swingsim.db" validate:"required"`
	ExportDir     string        `json:"export_dir" yaml:"export_dir" default:"./exports" validate:"required"`
	RetryAttempts int           `json:"retry_attempts" yaml:"retry_attempts" default:"3" validate:"gte=1"`
	RetryBackoff  time.Duration `json:"retry_backoff" yaml:"retry_backoff" default:"200ms" validate:"gt=0"`
	SaveTimeout   time.Duration `json:"save_timeout" yaml:"save_timeout" default:"5s" validate:"gt=0"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `json:"format" yaml:"format" default:"console" validate:"oneof=json console"`
	Output string `json:"output" yaml:"output" default:"stderr" validate:"required"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr" default:":9090" validate:"required"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	c := &Config{}
	// The tags are constants; TestDefault fails if one is malformed.
	_ = defaults.Set(c)
	return c
}

// LoadFromFile loads configuration from a file. YAML is tried first, then
// JSON. Missing fields take their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = &Config{}
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := validate.WithDefaults(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.check(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes YAML for .yaml/.yml paths and indented JSON otherwise
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks field tags, then the rules that span fields
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	return c.check()
}

func (c *Config) check() error {
	if c.Trading.MaxFee > 0 && c.Trading.MaxFee < c.Trading.MinFee {
		return fmt.Errorf("trading.max_fee must be zero or at least trading.min_fee")
	}
	if err := c.Trading.Schedule().Validate(); err != nil {
		return fmt.Errorf("trading: %w", err)
	}
	if err := c.Rules.Policy().Validate(); err != nil {
		return fmt.Errorf("rules: %w", err)
	}
	return nil
}

func (t TradingConfig) Schedule() pricing.Schedule {
	return pricing.Schedule{
		FeeRate:      t.FeeRate,
		MinFee:       t.MinFee,
		MaxFee:       t.MaxFee,
		SlippageRate: t.SlippageRate,
	}
}

func (r RulesConfig) Policy() risk.Policy {
	return risk.Policy{
		StopLossPct:      r.StopLossPct,
		MaxPositionPct:   r.MaxPositionPct,
		MaxOpenPositions: r.MaxOpenPositions,
		MaxLeverage:      r.MaxLeverage,
	}
}

// EngineOptions carries the cost model and rulebook. Logger, metrics and
// syncer are left for the caller.
func (c *Config) EngineOptions() sim.Options {
	opts := sim.DefaultOptions()
	opts.Schedule = c.Trading.Schedule()
	opts.Policy = c.Rules.Policy()
	opts.MarginLeverage = c.Trading.MarginLeverage
	return opts
}

// SessionRequest builds a new-session request from the account and session
// sections.
func (c *Config) SessionRequest(name string) sim.SessionRequest {
	return sim.SessionRequest{
		OwnerID:        c.Account.Owner,
		Name:           name,
		InitialCapital: c.Account.InitialCapital,
		PeriodDays:     c.Session.PeriodDays,
		PlaybackSpeed:  c.Session.PlaybackSpeed,
		MAPeriods:      append([]int(nil), c.Session.MAPeriods...),
	}
}

func (j JournalConfig) SyncOptions() journal.SyncOptions {
	opts := journal.DefaultSyncOptions()
	opts.RetryAttempts = j.RetryAttempts
	opts.RetryBackoff = j.RetryBackoff
	opts.Timeout = j.SaveTimeout
	return opts
}

func (l LogConfig) Logger() logger.Config {
	return logger.Config{Level: l.Level, Format: l.Format, Output: l.Output}
}
