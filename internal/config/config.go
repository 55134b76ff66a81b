// Package config loads the application's YAML configuration and applies
// defaults for anything the file leaves out.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// RPCConfig holds the Solana RPC endpoint pool configuration.
type RPCConfig struct {
	Endpoints          []string `yaml:"endpoints"`
	EndpointIntervalMs int64    `yaml:"endpointIntervalMs"`
	RequestTimeoutMs   int64    `yaml:"requestTimeoutMs"`
	MaxAttempts        int      `yaml:"maxAttempts"`
	WSEndpoint         string   `yaml:"wsEndpoint"`
}

// AggregatorConfig holds the swap-aggregation service configuration.
type AggregatorConfig struct {
	BaseURL           string `yaml:"baseURL"`
	QuoteIntervalMs   int64  `yaml:"quoteIntervalMs"`
	InterTokenDelayMs int64  `yaml:"interTokenDelayMs"`
	SlippageBps       int    `yaml:"slippageBps"`
}

// SwapConfig holds the execution pipeline configuration.
type SwapConfig struct {
	MaxAttempts         int    `yaml:"maxAttempts"`
	InterTokenDelayMs   int64  `yaml:"interTokenDelayMs"`
	ConfirmIntervalMs   int64  `yaml:"confirmIntervalMs"`
	PriorityFeeLamports uint64 `yaml:"priorityFeeLamports"`
}

// DatabaseConfig holds the Postgres connection configuration. An empty
// DSN means run without persistence (in-memory stores).
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// ServerConfig holds the HTTP API server configuration.
type ServerConfig struct {
	Addr           string `yaml:"addr"`
	ReadTimeoutSec int    `yaml:"readTimeoutSec"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // "debug", "info", "warn", "error"
}

// Config is the top-level configuration structure.
type Config struct {
	RPC        RPCConfig        `yaml:"rpc"`
	Aggregator AggregatorConfig `yaml:"aggregator"`
	Swap       SwapConfig       `yaml:"swap"`
	Database   DatabaseConfig   `yaml:"database"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// Load reads the YAML configuration file from the given path, unmarshals
// it, and fills in defaults. A missing file is an error; an empty path
// returns the pure-default config.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
		}
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.RPC.EndpointIntervalMs <= 0 {
		c.RPC.EndpointIntervalMs = 200
	}
	if c.RPC.RequestTimeoutMs <= 0 {
		c.RPC.RequestTimeoutMs = 15000
	}
	if c.RPC.MaxAttempts <= 0 {
		c.RPC.MaxAttempts = 3
	}

	if c.Aggregator.BaseURL == "" {
		c.Aggregator.BaseURL = "https://quote-api.jup.ag/v6"
	}
	if c.Aggregator.QuoteIntervalMs <= 0 {
		c.Aggregator.QuoteIntervalMs = 250
	}
	if c.Aggregator.InterTokenDelayMs <= 0 {
		c.Aggregator.InterTokenDelayMs = 100
	}
	if c.Aggregator.SlippageBps <= 0 {
		c.Aggregator.SlippageBps = 50
	}

	if c.Swap.MaxAttempts <= 0 {
		c.Swap.MaxAttempts = 3
	}
	if c.Swap.InterTokenDelayMs <= 0 {
		c.Swap.InterTokenDelayMs = 2000
	}
	if c.Swap.ConfirmIntervalMs <= 0 {
		c.Swap.ConfirmIntervalMs = 2000
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = 15
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// EndpointInterval returns the per-endpoint rate limit interval.
func (c *Config) EndpointInterval() time.Duration {
	return time.Duration(c.RPC.EndpointIntervalMs) * time.Millisecond
}

// RequestTimeout returns the RPC request timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RPC.RequestTimeoutMs) * time.Millisecond
}

// QuoteInterval returns the minimum spacing between pricing quotes.
func (c *Config) QuoteInterval() time.Duration {
	return time.Duration(c.Aggregator.QuoteIntervalMs) * time.Millisecond
}

// PricingDelay returns the fixed delay between priced tokens.
func (c *Config) PricingDelay() time.Duration {
	return time.Duration(c.Aggregator.InterTokenDelayMs) * time.Millisecond
}

// SwapDelay returns the fixed delay between executed tokens.
func (c *Config) SwapDelay() time.Duration {
	return time.Duration(c.Swap.InterTokenDelayMs) * time.Millisecond
}

// ConfirmInterval returns the confirmation polling cadence.
func (c *Config) ConfirmInterval() time.Duration {
	return time.Duration(c.Swap.ConfirmIntervalMs) * time.Millisecond
}
