package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/i474232898/earwax-monitoring/internal/config"
	"github.com/i474232898/earwax-monitoring/internal/earwax"
)

const (
	defaultMaxOpenConns = 10
	defaultMaxIdleConns = 5
	defaultConnLifetime = time.Hour
	defaultPingTimeout  = 5 * time.Second
)

// Open returns a pooled *sql.DB for the configured driver and validates the connection.
func Open(ctx context.Context, cfg config.StoreConfig) (*sql.DB, error) {
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}

	if cfg.Driver == config.DriverSQLite {
		// One writer keeps "database is locked" out of the picture.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(defaultMaxOpenConns)
		db.SetMaxIdleConns(defaultMaxIdleConns)
	}
	db.SetConnMaxLifetime(defaultConnLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// NewLedger builds the ledger selected by cfg. The returned close function
// releases the underlying connection pool, if any.
func NewLedger(ctx context.Context, cfg config.StoreConfig) (earwax.Ledger, func() error, error) {
	if cfg.Driver == config.DriverMemory {
		return NewMemoryLedger(), func() error { return nil }, nil
	}

	db, err := Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	ledger := NewSQLLedger(db, cfg.Driver)
	if err := ledger.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return ledger, db.Close, nil
}

func buildDSN(cfg config.StoreConfig) (string, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		if strings.TrimSpace(cfg.DSN) == "" {
			return "", errors.New("db: empty DSN")
		}
		return cfg.DSN, nil
	case config.DriverSQLite:
	default:
		return "", fmt.Errorf("db: unsupported driver %q", cfg.Driver)
	}

	if cfg.DSN != "" {
		return cfg.DSN, nil
	}

	path := cfg.SQLitePath
	if path == "" {
		return "", errors.New("db: sqlite path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	params := []string{
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}
