package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

type Dialect string

const (
	SQLite   Dialect = "sqlite3"
	Postgres Dialect = "pgx"
)

// DialectFor picks the driver from the URI: postgres:// URIs go to pgx, anything else is an SQLite DSN.
func DialectFor(uri string) Dialect {
	if strings.HasPrefix(uri, "postgres://") || strings.HasPrefix(uri, "postgresql://") {
		return Postgres
	}
	return SQLite
}

type DB struct {
	*sql.DB
	Dialect Dialect
}

// SQLite connection options every DSN gets unless it sets them itself: foreign keys on,
// and a busy wait short enough that the write retry policy stays in charge of waiting.
var sqliteDefaults = []struct {
	keys  []string
	param string
}{
	{keys: []string{"_fk", "_foreign_keys"}, param: "_fk=1"},
	{keys: []string{"_busy_timeout", "_timeout"}, param: "_busy_timeout=50"},
}

// SQLiteDSN adds the default connection options missing from dsn.
func SQLiteDSN(dsn string) string {
	query := ""
	if i := strings.IndexByte(dsn, '?'); i >= 0 {
		query = dsn[i+1:]
	}
	values, _ := url.ParseQuery(query)

	var missing []string
	for _, d := range sqliteDefaults {
		set := false
		for _, k := range d.keys {
			if values.Has(k) {
				set = true
				break
			}
		}
		if !set {
			missing = append(missing, d.param)
		}
	}
	if len(missing) == 0 {
		return dsn
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
		if strings.HasSuffix(dsn, "?") || strings.HasSuffix(dsn, "&") {
			sep = ""
		}
	}
	return dsn + sep + strings.Join(missing, "&")
}

func NewDB(ctx context.Context, uri string) (*DB, error) {
	dialect := DialectFor(uri)
	if dialect == SQLite {
		uri = SQLiteDSN(uri)
	}

	db, err := sql.Open(string(dialect), uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &DB{DB: db, Dialect: dialect}, nil
}

func CloseDB(db *DB) error {
	if err := db.Close(); err != nil {
		return fmt.Errorf("failed to close db: %w", err)
	}
	return nil
}
