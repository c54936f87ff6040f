package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	coreconfig "github.com/m3rciful/tourbot/core/config"
	"github.com/m3rciful/tourbot/core/logger"
	"github.com/m3rciful/tourbot/core/netutil"
)

const (
	connectTimeout = 5 * time.Second
	waitTimeout    = 30 * time.Second
	waitInterval   = 2 * time.Second
)

// dsn renders cfg as a postgres:// URL, understood by both lib/pq and
// golang-migrate. Credentials are escaped.
func dsn(cfg coreconfig.DatabaseConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, cfg.Port),
		Path:   "/" + cfg.Name,
	}
	if cfg.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {cfg.SSLMode}}.Encode()
	}
	return u.String()
}

func dbAttrs(cfg coreconfig.DatabaseConfig) []slog.Attr {
	return []slog.Attr{
		slog.String("host", cfg.Host),
		slog.String("port", cfg.Port),
		slog.String("db", cfg.Name),
	}
}

// Connect opens the journal database, sizes the pool and pings it.
func Connect(cfg coreconfig.DatabaseConfig) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn(cfg))
	if err != nil {
		logger.Error(ctx, "db", "connect", append(dbAttrs(cfg),
			slog.String("status", "fail"),
			slog.Duration("duration", logger.Took(start)),
			slog.String("err", err.Error()),
		)...)
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
		db.SetMaxIdleConns(cfg.MaxConnections)
	}

	logger.Info(ctx, "db", "connect", append(dbAttrs(cfg),
		slog.String("status", "ok"),
		slog.Int("pool_open", cfg.MaxConnections),
		slog.Duration("duration", logger.Took(start)),
	)...)
	return db, nil
}

// WaitForPostgres pings the server every two seconds until it answers or
// timeout passes. Containers often start the bot before the database.
func WaitForPostgres(ctx context.Context, source string, timeout time.Duration) error {
	db, err := sql.Open("postgres", source)
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer db.Close()

	policy := netutil.Policy{
		Attempts: int(timeout/waitInterval) + 1,
		Backoff:  netutil.Constant(waitInterval),
	}
	err = netutil.Retry(ctx, policy, func(attempt int) error {
		pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		err := db.PingContext(pingCtx)
		if err != nil {
			logger.Debug(ctx, "db", "wait", slog.Int("attempts", attempt), slog.String("err", err.Error()))
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("database not ready after %s: %w", timeout, err)
	}
	return nil
}
