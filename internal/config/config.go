// Package config defines the top-level configuration for the exchange
// simulator and provides validation helpers.
package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Mode selects the order-source variant at startup.
const (
	ModeSimulation = "simulation"
	ModeCore       = "core"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by EXSIM_* environment variables.
type Config struct {
	Exchange ExchangeConfig `toml:"exchange"`
	Upstream UpstreamConfig `toml:"upstream"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	S3       S3Config       `toml:"s3"`
	Data     DataConfig     `toml:"data"`
	Server   ServerConfig   `toml:"server"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// TokenConfig declares one supported token and the scale of its smallest
// unit.
type TokenConfig struct {
	Symbol   string `toml:"symbol"`
	Decimals int32  `toml:"decimals"`
}

// ExchangeConfig holds the read-only parameters the engine is constructed
// with.
type ExchangeConfig struct {
	Name               string        `toml:"name"`
	Tokens             []TokenConfig `toml:"tokens"`
	FeeFraction        float64       `toml:"fee_fraction"`
	RefreshIntervalSec int64         `toml:"refresh_interval_sec"`
	WalletAddress      string        `toml:"wallet_address"`
	BankAddress        string        `toml:"bank_address"`
}

// UpstreamConfig points the live order source at its depth endpoint.
type UpstreamConfig struct {
	BaseURL    string `toml:"base_url"`
	TimeoutSec int    `toml:"timeout_sec"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds PostgreSQL connection parameters for the withdrawal
// journal.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds optional S3-compatible object storage parameters for the
// order-book dump import. Unused when the dump is a local file.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// DataConfig locates the simulation order-book dump.
type DataConfig struct {
	OrderBookFile string `toml:"order_book_file"`
}

// ServerConfig holds the HTTP boundary parameters.
type ServerConfig struct {
	Port int `toml:"port"`
}

// Defaults returns the built-in configuration, matching the historical
// simulator deployment: KNC/ETH/OMG with 300s depth refresh.
func Defaults() Config {
	return Config{
		Exchange: ExchangeConfig{
			Name: "liqui",
			Tokens: []TokenConfig{
				{Symbol: "KNC", Decimals: 8},
				{Symbol: "ETH", Decimals: 8},
				{Symbol: "OMG", Decimals: 8},
			},
			FeeFraction:        0.0025,
			RefreshIntervalSec: 300,
		},
		Upstream: UpstreamConfig{
			TimeoutSec: 10,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "exchangesim",
			User:          "exchangesim",
			SSLMode:       "disable",
			RunMigrations: true,
		},
		Data: DataConfig{
			OrderBookFile: "data/full_ob.dat",
		},
		Server: ServerConfig{
			Port: 5000,
		},
		Mode:     ModeSimulation,
		LogLevel: "info",
	}
}

// Validate checks the configuration for consistency before wiring.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Mode) {
	case ModeSimulation:
		if c.Data.OrderBookFile == "" {
			return fmt.Errorf("config: simulation mode requires data.order_book_file")
		}
	case ModeCore:
		if c.Upstream.BaseURL == "" {
			return fmt.Errorf("config: core mode requires upstream.base_url")
		}
	default:
		return fmt.Errorf("config: unsupported mode %q", c.Mode)
	}

	if len(c.Exchange.Tokens) < 2 {
		return fmt.Errorf("config: at least two tokens must be configured")
	}
	for _, tok := range c.Exchange.Tokens {
		if strings.TrimSpace(tok.Symbol) == "" {
			return fmt.Errorf("config: token with empty symbol")
		}
		// Balances are int64 smallest units; beyond 12 decimals the usable
		// whole-token range collapses.
		if tok.Decimals < 0 || tok.Decimals > 12 {
			return fmt.Errorf("config: token %s: decimals must be in [0, 12]", tok.Symbol)
		}
	}

	if c.Exchange.FeeFraction < 0 || c.Exchange.FeeFraction >= 1 {
		return fmt.Errorf("config: fee_fraction must be in [0, 1)")
	}
	if c.Exchange.RefreshIntervalSec <= 0 {
		return fmt.Errorf("config: refresh_interval_sec must be positive")
	}

	if c.Exchange.WalletAddress != "" && !common.IsHexAddress(c.Exchange.WalletAddress) {
		return fmt.Errorf("config: invalid wallet_address %q", c.Exchange.WalletAddress)
	}
	if c.Exchange.BankAddress != "" && !common.IsHexAddress(c.Exchange.BankAddress) {
		return fmt.Errorf("config: invalid bank_address %q", c.Exchange.BankAddress)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" || c.S3.Region == "" {
			return fmt.Errorf("config: s3 requires bucket and region")
		}
	}

	return nil
}
