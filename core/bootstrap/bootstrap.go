package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	coreconfig "github.com/m3rciful/tourbot/core/config"
	coredatabase "github.com/m3rciful/tourbot/core/database"
	"github.com/m3rciful/tourbot/core/logger"
	"github.com/m3rciful/tourbot/core/telegram/dedupe"
)

// Options control the bootstrap pipeline. Nil hooks fall back to the real
// logger, connection and migration code.
type Options struct {
	Config *coreconfig.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coreconfig.DatabaseConfig) (*sqlx.DB, error)
	Migrate    func(coreconfig.DatabaseConfig) error
	DialRedis  func(ctx context.Context, cfg coreconfig.RedisConfig) (*redis.Client, error)
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
// DB and Redis stay nil when not configured.
type Result struct {
	DB    *sqlx.DB
	Redis *redis.Client
}

// Close releases what Run opened.
func (r *Result) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.DB != nil {
		errs = append(errs, r.DB.Close())
	}
	if r.Redis != nil {
		errs = append(errs, r.Redis.Close())
	}
	return errors.Join(errs...)
}

func dialRedis(ctx context.Context, cfg coreconfig.RedisConfig) (*redis.Client, error) {
	return dedupe.Dial(ctx, cfg.Addr, cfg.Password, cfg.DB)
}

// Run initializes the logger, then the optional database (connection and
// migrations) and the optional Redis.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	res := &Result{}
	if err := openDatabase(opts, res); err != nil {
		return nil, err
	}
	if err := openRedis(opts, res); err != nil {
		_ = res.Close()
		return nil, err
	}
	return res, nil
}

func openDatabase(opts Options, res *Result) error {
	dbCfg := opts.Config.Database
	if !dbCfg.Enabled() {
		logger.Info(context.Background(), "db", "db.skip",
			slog.String("status", "skip"),
			slog.String("reason", "not_configured"),
		)
		return nil
	}

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(dbCfg)
	if err != nil {
		return fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}

	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}
	if err := migrate(dbCfg); err != nil {
		if db != nil {
			_ = db.Close()
		}
		return fmt.Errorf("bootstrap: migrations failed: %w", err)
	}
	res.DB = db
	return nil
}

func openRedis(opts Options, res *Result) error {
	rcfg := opts.Config.Redis
	if !rcfg.Enabled() {
		return nil
	}
	dial := opts.DialRedis
	if dial == nil {
		dial = dialRedis
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := dial(ctx, rcfg)
	if err != nil {
		return fmt.Errorf("bootstrap: redis initialization failed: %w", err)
	}
	logger.Info(ctx, "redis", "redis.connect",
		slog.String("status", "ok"),
		slog.String("addr", rcfg.Addr),
	)
	res.Redis = client
	return nil
}
