package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	uuid "github.com/vgarvardt/pgx-google-uuid/v5"

	"github.com/FACorreiaa/go-trip-planner-ai/config"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const (
	pingAttempts = 5
	pingBackoff  = 200 * time.Millisecond
)

// Querier is the subset of *pgxpool.Pool the repositories use. pgxmock pools satisfy it too.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Querier = (*pgxpool.Pool)(nil)

type DatabaseConfig struct {
	ConnectionURL string
}

// WaitForDB pings the pool with a linear backoff. It gives up early when ctx ends.
func WaitForDB(ctx context.Context, pgpool *pgxpool.Pool, logger *slog.Logger) bool {
	for attempt := 1; attempt <= pingAttempts; attempt++ {
		err := pgpool.Ping(ctx)
		if err == nil {
			logger.InfoContext(ctx, "Database reachable", slog.Int("attempt", attempt))
			return true
		}
		wait := time.Duration(attempt) * pingBackoff
		logger.WarnContext(ctx, "Database ping failed",
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", wait),
			slog.Any("error", err),
		)
		if attempt == pingAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
	}
	logger.ErrorContext(ctx, "Database unreachable", slog.Int("attempts", pingAttempts))
	return false
}

// RunMigrations applies the embedded trip and bucket list schema. A dirty schema is an error.
func RunMigrations(databaseURL string, logger *slog.Logger) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("opening embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("preparing migrations: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warn("Closing migrator failed", slog.Any("source_error", srcErr), slog.Any("db_error", dbErr))
		}
	}()

	upErr := m.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", upErr)
	}

	version, dirty, err := m.Version()
	if err != nil {
		logger.Warn("Migration version unknown", slog.Any("error", err))
		return nil
	}
	if dirty {
		return fmt.Errorf("schema is dirty at migration %d", version)
	}
	logger.Info("Schema up to date",
		slog.Uint64("version", uint64(version)),
		slog.Bool("changed", upErr == nil))
	return nil
}

// NewDatabaseConfig builds the postgres URL from repositories.postgres.
func NewDatabaseConfig(cfg *config.Config, logger *slog.Logger) (*DatabaseConfig, error) {
	if cfg == nil || cfg.Repositories.Postgres.Host == "" {
		return nil, errors.New("repositories.postgres.host is not configured")
	}
	pg := cfg.Repositories.Postgres

	sslMode := pg.SSLMODE
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(pg.Username, pg.Password),
		Host:     pg.Host + ":" + pg.Port,
		Path:     pg.DB,
		RawQuery: url.Values{"sslmode": {sslMode}, "timezone": {"utc"}}.Encode(),
	}
	logger.Info("Database target", slog.String("host", u.Host), slog.String("database", pg.DB))
	return &DatabaseConfig{ConnectionURL: u.String()}, nil
}

// MaxConnWait converts MAXCONWAITINGTIME, given in seconds.
func MaxConnWait(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Repositories.Postgres.MAXCONWAITINGTIME) * time.Second
}

// Init opens the pool and registers google/uuid as the UUID codec on every connection.
func Init(ctx context.Context, connectionURL string, maxConnWait time.Duration, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(connectionURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	poolCfg.AfterConnect = func(_ context.Context, conn *pgx.Conn) error {
		uuid.Register(conn.TypeMap())
		return nil
	}
	if maxConnWait > 0 {
		poolCfg.ConnConfig.ConnectTimeout = maxConnWait
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating database pool: %w", err)
	}
	logger.Info("Database pool ready", slog.Int("max_conns", int(poolCfg.MaxConns)))
	return pool, nil
}
