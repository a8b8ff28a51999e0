package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete paper trader configuration
type Config struct {
	Account   AccountConfig `json:"account" yaml:"account"`
	Trading   TradingConfig `json:"trading" yaml:"trading"`
	Feed      FeedConfig    `json:"feed" yaml:"feed"`
	Store     StoreConfig   `json:"store" yaml:"store"`
	Server    ServerConfig  `json:"server" yaml:"server"`
	LogLevel  string        `json:"log_level" yaml:"log_level"`
	LogPretty bool          `json:"log_pretty" yaml:"log_pretty"`
}

// AccountConfig contains account initialization parameters
type AccountConfig struct {
	InitialCapital float64 `json:"initial_capital" yaml:"initial_capital"`
	BrokerageRate  float64 `json:"brokerage_rate" yaml:"brokerage_rate"`
}

// TradingConfig contains the instrument and scheduling parameters
type TradingConfig struct {
	Symbol          string  `json:"symbol" yaml:"symbol"`
	Quantity        float64 `json:"quantity" yaml:"quantity"`
	Strategy        string  `json:"strategy" yaml:"strategy"`
	IntervalMinutes int     `json:"interval_minutes" yaml:"interval_minutes"`
}

// FeedConfig selects and tunes the price source
type FeedConfig struct {
	Type       string  `json:"type" yaml:"type"` // "random" or "rest"
	StartPrice float64 `json:"start_price,omitempty" yaml:"start_price,omitempty"`
	Volatility float64 `json:"volatility,omitempty" yaml:"volatility,omitempty"`
	URL        string  `json:"url,omitempty" yaml:"url,omitempty"`
	TimeoutSec int     `json:"timeout_sec,omitempty" yaml:"timeout_sec,omitempty"`
}

// StoreConfig contains persistence parameters
type StoreConfig struct {
	DBPath string `json:"db_path" yaml:"db_path"`
}

// ServerConfig contains HTTP server parameters
type ServerConfig struct {
	Port int `json:"port" yaml:"port"`
}

// LoadFromFile loads configuration from a file (JSON or YAML based on
// content), then applies environment overrides.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Load returns the default configuration with environment overrides
// applied. Used when no config file is given.
func Load() (*Config, error) {
	cfg := Default()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyEnv overlays PAPERTRADER_* environment variables, loading a .env
// file first if one exists.
func (c *Config) applyEnv() {
	_ = godotenv.Load()

	c.Store.DBPath = getEnv("PAPERTRADER_DB_PATH", c.Store.DBPath)
	c.Trading.Symbol = getEnv("PAPERTRADER_SYMBOL", c.Trading.Symbol)
	c.Trading.Strategy = getEnv("PAPERTRADER_STRATEGY", c.Trading.Strategy)
	c.LogLevel = getEnv("PAPERTRADER_LOG_LEVEL", c.LogLevel)
	c.Server.Port = getEnvAsInt("PAPERTRADER_PORT", c.Server.Port)
	c.Trading.IntervalMinutes = getEnvAsInt("PAPERTRADER_INTERVAL_MINUTES", c.Trading.IntervalMinutes)
	c.Account.InitialCapital = getEnvAsFloat("PAPERTRADER_INITIAL_CAPITAL", c.Account.InitialCapital)
	c.Feed.Type = getEnv("PAPERTRADER_FEED", c.Feed.Type)
	c.Feed.URL = getEnv("PAPERTRADER_FEED_URL", c.Feed.URL)
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account.InitialCapital <= 0 {
		return fmt.Errorf("account.initial_capital must be positive")
	}
	if c.Account.BrokerageRate < 0 || c.Account.BrokerageRate >= 1 {
		return fmt.Errorf("account.brokerage_rate must be in [0, 1)")
	}
	if c.Trading.Symbol == "" {
		return fmt.Errorf("trading.symbol is required")
	}
	if c.Trading.Quantity <= 0 {
		return fmt.Errorf("trading.quantity must be positive")
	}
	if c.Trading.Strategy == "" {
		return fmt.Errorf("trading.strategy is required")
	}
	if c.Trading.IntervalMinutes <= 0 {
		return fmt.Errorf("trading.interval_minutes must be positive")
	}
	if c.Feed.Type != "random" && c.Feed.Type != "rest" {
		return fmt.Errorf("feed.type must be 'random' or 'rest'")
	}
	if c.Feed.Type == "rest" && c.Feed.URL == "" {
		return fmt.Errorf("feed.url required for REST feed")
	}
	if c.Feed.Type == "random" && c.Feed.StartPrice <= 0 {
		return fmt.Errorf("feed.start_price must be positive for random feed")
	}
	if c.Store.DBPath == "" {
		return fmt.Errorf("store.db_path is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port")
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			InitialCapital: 100000,
			BrokerageRate:  0.0005,
		},
		Trading: TradingConfig{
			Symbol:          "RELIANCE.NS",
			Quantity:        10,
			Strategy:        "random",
			IntervalMinutes: 5,
		},
		Feed: FeedConfig{
			Type:       "random",
			StartPrice: 2500,
			Volatility: 0.002,
			TimeoutSec: 8,
		},
		Store: StoreConfig{
			DBPath: "./papertrader.db",
		},
		Server: ServerConfig{
			Port: 8000,
		},
		LogLevel:  "info",
		LogPretty: true,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
