// Package config handles application configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines the structure for all application configuration.
type Config struct {
	// Portfolio construction
	Region        []string           `yaml:"region"`
	Home          string             `yaml:"home"`
	HubCurrencies []string           `yaml:"hub_currencies"`
	RiskTarget    float64            `yaml:"risk_target"`
	LeverageCap   float64            `yaml:"leverage_cap"`
	NoShort       FlexBool           `yaml:"no_short"`
	ForceMaxCash  FlexBool           `yaml:"force_max_cash"`
	FactorWeights map[string]float64 `yaml:"factor_weights"`
	TradingLag    int                `yaml:"trading_lag"`

	// Market data
	BarPeriodSeconds int       `yaml:"bar_period_seconds"`
	StartDate        string    `yaml:"start_date"`
	SnapTime         ClockTime `yaml:"snap_time"`
	StreamQuotes     FlexBool  `yaml:"stream_quotes"`

	// Risk model
	CovWindowDays      int `yaml:"cov_window_days"`
	CovMinObservations int `yaml:"cov_min_observations"`

	Execution ExecutionConf `yaml:"execution"`
	Alert     AlertConf     `yaml:"alert"`

	TradeLogDir string `yaml:"trade_log_dir"`

	// Loaded from env, never from the YAML file.
	APIKey      string `yaml:"-"`
	APISecret   string `yaml:"-"`
	DatabaseURL string `yaml:"-"`
	LogLevel    string `yaml:"-"`
}

// ExecutionConf holds the order execution knobs.
type ExecutionConf struct {
	SpreadFraction      float64 `yaml:"spread_fraction"`
	MaxFillAttempts     int     `yaml:"max_fill_attempts"`
	PollIntervalSeconds int     `yaml:"poll_interval_seconds"`
}

// AlertConf holds the completion-mail settings. Password comes from env.
type AlertConf struct {
	Enabled  FlexBool `yaml:"enabled"`
	SMTPHost string   `yaml:"smtp_host"`
	SMTPPort int      `yaml:"smtp_port"`
	From     string   `yaml:"from"`
	To       string   `yaml:"to"`
	Password string   `yaml:"-"`
}

// defaultRegion is the liquid cross section traded when the file does not
// name one.
var defaultRegion = []string{"BTC", "ETH", "XRP", "LTC", "DASH", "DGB"}

// LoadConfig loads configuration from the specified YAML file path and
// environment variables. Zero-valued numeric knobs are resolved to their
// documented defaults in applyDefaults, so "not provided" and "provided as
// zero" behave identically and explicitly.
func LoadConfig(configPath string) (*Config, error) {
	cfg := &Config{
		LogLevel: "info",
	}

	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(file, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Secrets and overrides from the environment.
	if v := os.Getenv("POLONIEX_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("POLONIEX_API_SECRET"); v != "" {
		cfg.APISecret = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.Alert.Password = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	cfg.applyDefaults()
	return cfg, cfg.validate()
}

func (c *Config) applyDefaults() {
	if len(c.Region) == 0 {
		c.Region = append([]string(nil), defaultRegion...)
	}
	if c.Home == "" {
		c.Home = "BTC"
	}
	if len(c.HubCurrencies) == 0 {
		c.HubCurrencies = []string{"BTC", "ETH", "XMR"}
	}
	if c.RiskTarget == 0 {
		c.RiskTarget = 1.00
	}
	if c.LeverageCap == 0 {
		c.LeverageCap = 0.98
	}
	if len(c.FactorWeights) == 0 {
		c.FactorWeights = map[string]float64{"mom 1m": 1.00}
	}
	if c.TradingLag == 0 {
		c.TradingLag = 1
	}
	if c.BarPeriodSeconds == 0 {
		c.BarPeriodSeconds = 7200
	}
	if c.StartDate == "" {
		c.StartDate = "2015-09-01"
	}
	if c.SnapTime.IsZero() {
		c.SnapTime = ClockTime{Hour: 9, Minute: 1}
	}
	if c.CovWindowDays == 0 {
		c.CovWindowDays = 260
	}
	if c.CovMinObservations == 0 {
		c.CovMinObservations = 500
	}
	if c.Execution.SpreadFraction == 0 {
		c.Execution.SpreadFraction = 0.05
	}
	if c.Execution.MaxFillAttempts == 0 {
		c.Execution.MaxFillAttempts = 59
	}
	if c.Execution.PollIntervalSeconds == 0 {
		c.Execution.PollIntervalSeconds = 60
	}
	if c.TradeLogDir == "" {
		c.TradeLogDir = "logs"
	}
}

func (c *Config) validate() error {
	if !contains(c.Region, c.Home) {
		return fmt.Errorf("home currency %s is not part of the trading region", c.Home)
	}
	if c.LeverageCap < 0 {
		return fmt.Errorf("leverage_cap must be non-negative, got %v", c.LeverageCap)
	}
	if _, err := c.Start(); err != nil {
		return err
	}
	return nil
}

// Start parses the configured backtest start date.
func (c *Config) Start() (time.Time, error) {
	t, err := time.Parse("2006-01-02", c.StartDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid start_date %q: %w", c.StartDate, err)
	}
	return t.UTC(), nil
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
