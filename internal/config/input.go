package config

import (
	"path/filepath"
	"strings"
)

// Input source kinds.
const (
	KindCSV      = "csv"
	KindXLSX     = "xlsx"
	KindSQLite   = "sqlite"
	KindPostgres = "postgres"
)

// SQLitePrefix marks an input path as a SQLite database file.
const SQLitePrefix = "sqlite://"

// Kind reports which tabular source reads Path.
func (in Input) Kind() string {
	lower := strings.ToLower(in.Path)

	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return KindPostgres
	case strings.HasPrefix(lower, SQLitePrefix):
		return KindSQLite
	}

	switch filepath.Ext(lower) {
	case ".xlsx":
		return KindXLSX
	case ".db", ".sqlite", ".sqlite3":
		return KindSQLite
	default:
		return KindCSV
	}
}

// SQLitePath returns the database file path of a SQLite input.
func (in Input) SQLitePath() string {
	if strings.HasPrefix(strings.ToLower(in.Path), SQLitePrefix) {
		return in.Path[len(SQLitePrefix):]
	}
	return in.Path
}
