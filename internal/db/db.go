// Package db opens the SQL driver and owns the table layout.
package db

import (
	"database/sql"
	"strings"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/m-mizutani/goerr/v2"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver for PostgreSQL
	_ "modernc.org/sqlite"             // register pure-go sqlite driver

	"tracker-api/internal/config"
	"tracker-api/internal/logx"
)

var dbLogger = logx.GetScope("db")

var baseDB *sql.DB

// Open opens the configured database and returns an ent SQL driver.
func Open(cfg *config.Config) (*entsql.Driver, func(), error) {
	switch strings.ToLower(cfg.DB.Driver) {
	case "sqlite", "sqlite3":
		return OpenSQLite(cfg.DB.SQLiteDSN)
	default:
		return openPostgres(cfg)
	}
}

func openPostgres(cfg *config.Config) (*entsql.Driver, func(), error) {
	sqldb, err := sql.Open("pgx", cfg.PG.URL)
	if err != nil {
		return nil, func() {}, goerr.Wrap(err, "failed to open postgres")
	}
	sqldb.SetMaxOpenConns(cfg.PG.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.PG.MaxIdleConns)
	baseDB = sqldb
	return wrap(dialect.Postgres, sqldb)
}

// OpenSQLite opens a sqlite database through modernc.org/sqlite. The pool is
// pinned to one connection so shared in-memory databases see a single writer.
func OpenSQLite(dsn string) (*entsql.Driver, func(), error) {
	if dsn == "" {
		dsn = "file:tracker?mode=memory&cache=shared"
	}
	if !strings.Contains(dsn, "foreign_keys") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=foreign_keys(1)"
	}
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, func() {}, goerr.Wrap(err, "failed to open sqlite", goerr.V("dsn", dsn))
	}
	sqldb.SetMaxOpenConns(1)
	return wrap(dialect.SQLite, sqldb)
}

func wrap(name string, sqldb *sql.DB) (*entsql.Driver, func(), error) {
	drv := entsql.OpenDB(name, sqldb)
	closer := func() {
		if baseDB == sqldb {
			baseDB = nil
		}
		if err := drv.Close(); err != nil {
			dbLogger.Sugar().Errorf("close db: %v", err)
		}
	}
	return drv, closer, nil
}

// UpdatePool updates DB pool settings at runtime.
func UpdatePool(maxOpen, maxIdle int) {
	if baseDB == nil {
		return
	}
	if maxOpen > 0 {
		baseDB.SetMaxOpenConns(maxOpen)
	}
	if maxIdle >= 0 {
		baseDB.SetMaxIdleConns(maxIdle)
	}
}
