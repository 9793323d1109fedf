package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"eventspool/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// DefaultDriver is the pure-Go modernc driver. "sqlite3" (mattn) is available
// in cgo builds.
const DefaultDriver = "sqlite"

func init() {
	// sqlx only knows "sqlite3" as a '?' bindvar driver.
	sqlx.BindDriver(DefaultDriver, sqlx.QUESTION)
}

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
}

// conn owns the single handle to the database file. Nothing else touches db.
type conn struct {
	db     *sqlx.DB
	path   string
	logger *slog.Logger
}

// openConn opens or creates the database at path and makes sure the events
// table exists. An empty path selects config.DefaultDBPath().
func openConn(path, driver string, logger *slog.Logger) (*conn, error) {
	if path == "" {
		path = config.DefaultDBPath()
	}
	if driver == "" {
		driver = DefaultDriver
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &InitError{Path: path, Op: "mkdir", Cause: err}
	}

	db, err := sqlx.Open(driver, path)
	if err != nil {
		return nil, &InitError{Path: path, Op: "open", Cause: err}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &InitError{Path: path, Op: "open", Cause: err}
	}

	// SQLite allows one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, &InitError{Path: path, Op: "pragma", Cause: fmt.Errorf("%q: %w", pragma, err)}
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, &InitError{Path: path, Op: "schema", Cause: err}
	}

	logger.Debug("event store opened", "path", path, "driver", driver)
	return &conn{db: db, path: path, logger: logger}, nil
}

// withTx runs body inside a write transaction. The transaction commits when
// body returns nil and rolls back on error or panic.
func (c *conn) withTx(ctx context.Context, body func(tx *sqlx.Tx) error) (err error) {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return storageErr("begin", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				c.logger.Error("rollback failed", "err", rbErr)
			}
		}
	}()

	if err = body(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return storageErr("commit", err)
	}
	return nil
}

func (c *conn) close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}
