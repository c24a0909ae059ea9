package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	s3blob "github.com/alanyoungcy/exchangesim/internal/blob/s3"
	"github.com/alanyoungcy/exchangesim/internal/config"
	"github.com/alanyoungcy/exchangesim/internal/depth"
	"github.com/alanyoungcy/exchangesim/internal/domain"
	"github.com/alanyoungcy/exchangesim/internal/exchange"
	"github.com/alanyoungcy/exchangesim/internal/ledger"
	"github.com/alanyoungcy/exchangesim/internal/source"
	"github.com/alanyoungcy/exchangesim/internal/store/postgres"
	"github.com/alanyoungcy/exchangesim/internal/store/redis"
)

// Dependencies bundles everything the application needs to serve requests.
// It is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Tokens   *domain.TokenSet
	KV       domain.KV
	Books    domain.BookStore
	Importer *source.Importer // nil outside simulation mode
	Ledger   *ledger.Ledger
	Engine   *exchange.Engine
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Token set ---
	tokens := make([]domain.Token, 0, len(cfg.Exchange.Tokens))
	for _, tc := range cfg.Exchange.Tokens {
		tokens = append(tokens, domain.Token{Symbol: tc.Symbol, Decimals: tc.Decimals})
	}
	tokenSet, err := domain.NewTokenSet(tokens)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: tokens: %w", err)
	}
	deps.Tokens = tokenSet

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.KV = redis.NewKV(redisClient)
	deps.Books = redis.NewBookStore(redisClient)

	// --- PostgreSQL (withdrawal journal) ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}
	withdrawals := postgres.NewWithdrawalStore(pgClient.Pool())

	// --- Order source by mode ---
	var orderSource domain.OrderSource
	switch strings.ToLower(cfg.Mode) {
	case config.ModeSimulation:
		var blobs source.BlobOpener
		if cfg.S3.Enabled {
			s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
				Endpoint:       cfg.S3.Endpoint,
				Region:         cfg.S3.Region,
				Bucket:         cfg.S3.Bucket,
				AccessKey:      cfg.S3.AccessKey,
				SecretKey:      cfg.S3.SecretKey,
				UseSSL:         cfg.S3.UseSSL,
				ForcePathStyle: cfg.S3.ForcePathStyle,
			})
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: s3: %w", err)
			}
			blobs = s3blob.NewReader(s3Client)
		}
		deps.Importer = source.NewImporter(deps.KV, deps.Books, blobs, cfg.Exchange.RefreshIntervalSec, logger)
		orderSource = source.NewSimulator(deps.Books, cfg.Exchange.RefreshIntervalSec)
	case config.ModeCore:
		orderSource = source.NewCore(cfg.Upstream.BaseURL, time.Duration(cfg.Upstream.TimeoutSec)*time.Second)
	default:
		cleanup()
		return nil, nil, fmt.Errorf("wire: unsupported mode %q", cfg.Mode)
	}

	// --- Core components ---
	depthCache := depth.NewCache(orderSource, cfg.Exchange.RefreshIntervalSec, logger)
	deps.Ledger = ledger.New(deps.KV, withdrawals, tokenSet, logger)
	deps.Engine = exchange.New(exchange.Config{
		Name:          cfg.Exchange.Name,
		Tokens:        tokenSet,
		FeeFraction:   feeFraction(cfg.Exchange.FeeFraction),
		WalletAddress: cfg.Exchange.WalletAddress,
		BankAddress:   cfg.Exchange.BankAddress,
	}, depthCache, deps.Ledger, logger)

	return deps, cleanup, nil
}

// feeFraction converts the configured fee into an exact decimal once, at
// wire time, so the money paths never touch the float again.
func feeFraction(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}
