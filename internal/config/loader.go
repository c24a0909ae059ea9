package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies EXSIM_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known EXSIM_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Exchange ──
	setStr(&cfg.Exchange.Name, "EXSIM_EXCHANGE_NAME")
	setFloat64(&cfg.Exchange.FeeFraction, "EXSIM_EXCHANGE_FEE_FRACTION")
	setInt64(&cfg.Exchange.RefreshIntervalSec, "EXSIM_EXCHANGE_REFRESH_INTERVAL_SEC")
	setStr(&cfg.Exchange.WalletAddress, "EXSIM_EXCHANGE_WALLET_ADDRESS")
	setStr(&cfg.Exchange.BankAddress, "EXSIM_EXCHANGE_BANK_ADDRESS")

	// ── Upstream ──
	setStr(&cfg.Upstream.BaseURL, "EXSIM_UPSTREAM_BASE_URL")
	setInt(&cfg.Upstream.TimeoutSec, "EXSIM_UPSTREAM_TIMEOUT_SEC")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "EXSIM_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "EXSIM_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "EXSIM_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "EXSIM_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "EXSIM_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "EXSIM_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "EXSIM_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "EXSIM_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "EXSIM_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "EXSIM_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "EXSIM_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "EXSIM_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "EXSIM_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "EXSIM_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "EXSIM_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "EXSIM_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "EXSIM_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "EXSIM_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "EXSIM_S3_REGION")
	setStr(&cfg.S3.Bucket, "EXSIM_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "EXSIM_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "EXSIM_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "EXSIM_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "EXSIM_S3_FORCE_PATH_STYLE")

	// ── Data ──
	setStr(&cfg.Data.OrderBookFile, "EXSIM_DATA_ORDER_BOOK_FILE")

	// ── Server ──
	setInt(&cfg.Server.Port, "EXSIM_SERVER_PORT")

	// ── Top-level ──
	setStr(&cfg.Mode, "EXSIM_MODE")
	setStr(&cfg.LogLevel, "EXSIM_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = strings.TrimSpace(v)
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
