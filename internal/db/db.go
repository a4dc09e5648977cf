// Package db opens the application database. A postgres:// DSN connects through
// pgx; anything else is treated as a SQLite file path, which is the default for
// desktop installs where the database lives under DATA_DIR.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect identifies the SQL dialect behind a DB handle.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// DB bundles the sql.DB handle with its dialect so repositories can rebind
// placeholders without caring which engine they run on.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// IsPostgres reports whether dsn addresses a Postgres server.
func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open opens the database for dsn. Caller must call Close when done.
// SQLite files get WAL mode and foreign keys enabled; the parent directory is
// created on demand so a fresh install works from an empty DATA_DIR.
func Open(dsn string) (*DB, error) {
	if dsn == "" {
		return nil, errors.New("db: DSN is empty")
	}

	if IsPostgres(dsn) {
		sqlDB, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, err
		}
		if err := sqlDB.Ping(); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
		return &DB{DB: sqlDB, Dialect: DialectPostgres}, nil
	}

	path := filepath.Clean(dsn)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("db: create data dir: %w", err)
		}
	}
	sqlDB, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer at a time; a single pooled connection avoids
	// SQLITE_BUSY on concurrent rotation updates.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return &DB{DB: sqlDB, Dialect: DialectSQLite}, nil
}

// Rebind rewrites ? placeholders to $1..$n for Postgres. SQLite takes ? natively.
func (d *DB) Rebind(query string) string {
	if d.Dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
