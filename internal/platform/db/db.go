package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Open connects to a postgres database through the pgx stdlib driver.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "openDB: open postgres database")
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "openDB: verify postgres connection")
	}

	return db, nil
}

// OpenSQLite opens a SQLite database file. A read-only open requires the file
// to exist; a writable one creates it.
func OpenSQLite(ctx context.Context, path string, writable bool) (*sql.DB, error) {
	mode := "ro"
	if writable {
		mode = "rwc"
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode="+mode)
	if err != nil {
		return nil, errors.Wrap(err, "openDB: open sqlite database")
	}

	// SQLite serializes access; a single connection avoids lock contention.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "openDB: verify sqlite database %s", path)
	}

	return db, nil
}
