package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("file values merge over defaults", func(t *testing.T) {
		path := writeConfig(t, `
mode = "core"

[exchange]
name = "binance"
fee_fraction = 0.001

[upstream]
base_url = "https://api.example.com/api/3"

[redis]
addr = "redis.internal:6379"
`)
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "core", cfg.Mode)
		assert.Equal(t, "binance", cfg.Exchange.Name)
		assert.Equal(t, 0.001, cfg.Exchange.FeeFraction)
		assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr)

		// Untouched fields keep their defaults.
		assert.Equal(t, int64(300), cfg.Exchange.RefreshIntervalSec)
		assert.Equal(t, 5000, cfg.Server.Port)
		assert.Len(t, cfg.Exchange.Tokens, 3)
	})

	t.Run("environment overrides win over the file", func(t *testing.T) {
		path := writeConfig(t, `
[redis]
addr = "from-file:6379"
`)
		t.Setenv("EXSIM_REDIS_ADDR", "from-env:6379")
		t.Setenv("EXSIM_SERVER_PORT", "8080")
		t.Setenv("EXSIM_EXCHANGE_FEE_FRACTION", "0.005")
		t.Setenv("EXSIM_POSTGRES_RUN_MIGRATIONS", "false")

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "from-env:6379", cfg.Redis.Addr)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 0.005, cfg.Exchange.FeeFraction)
		assert.False(t, cfg.Postgres.RunMigrations)
	})

	t.Run("unparseable env values are ignored", func(t *testing.T) {
		path := writeConfig(t, ``)
		t.Setenv("EXSIM_SERVER_PORT", "not-a-number")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 5000, cfg.Server.Port)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
		require.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Defaults()
		cfg.Exchange.WalletAddress = "0x2222222222222222222222222222222222222222"
		cfg.Exchange.BankAddress = "0x3333333333333333333333333333333333333333"
		return cfg
	}

	t.Run("defaults with addresses pass", func(t *testing.T) {
		cfg := valid()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("core mode requires an upstream URL", func(t *testing.T) {
		cfg := valid()
		cfg.Mode = ModeCore
		require.Error(t, cfg.Validate())

		cfg.Upstream.BaseURL = "https://api.example.com/api/3"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("simulation mode requires a dump file", func(t *testing.T) {
		cfg := valid()
		cfg.Data.OrderBookFile = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown mode is rejected", func(t *testing.T) {
		cfg := valid()
		cfg.Mode = "replay"
		assert.Error(t, cfg.Validate())
	})

	t.Run("token constraints", func(t *testing.T) {
		cfg := valid()
		cfg.Exchange.Tokens = cfg.Exchange.Tokens[:1]
		assert.Error(t, cfg.Validate(), "fewer than two tokens")

		cfg = valid()
		cfg.Exchange.Tokens[0].Decimals = 18
		assert.Error(t, cfg.Validate(), "decimals beyond the int64 range")

		cfg = valid()
		cfg.Exchange.Tokens[0].Symbol = "  "
		assert.Error(t, cfg.Validate(), "blank symbol")
	})

	t.Run("fee and refresh bounds", func(t *testing.T) {
		cfg := valid()
		cfg.Exchange.FeeFraction = 1.0
		assert.Error(t, cfg.Validate())

		cfg = valid()
		cfg.Exchange.FeeFraction = -0.1
		assert.Error(t, cfg.Validate())

		cfg = valid()
		cfg.Exchange.RefreshIntervalSec = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("addresses must be hex when set", func(t *testing.T) {
		cfg := valid()
		cfg.Exchange.WalletAddress = "not-an-address"
		assert.Error(t, cfg.Validate())

		cfg = valid()
		cfg.Exchange.WalletAddress = ""
		assert.NoError(t, cfg.Validate(), "empty address is allowed")
	})

	t.Run("server port range", func(t *testing.T) {
		cfg := valid()
		cfg.Server.Port = 0
		assert.Error(t, cfg.Validate())

		cfg = valid()
		cfg.Server.Port = 70000
		assert.Error(t, cfg.Validate())
	})

	t.Run("enabled s3 requires bucket and region", func(t *testing.T) {
		cfg := valid()
		cfg.S3.Enabled = true
		require.Error(t, cfg.Validate())

		cfg.S3.Bucket = "dumps"
		cfg.S3.Region = "us-east-1"
		assert.NoError(t, cfg.Validate())
	})
}
