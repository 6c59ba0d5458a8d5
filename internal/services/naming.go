package services

import (
	"path/filepath"
	"strings"
	"time"

	"distance-matrix-batch/internal/config"
)

// TimestampLayout renders MM-DD-YYYY--HH-MM-SS.
const TimestampLayout = "01-02-2006--15-04-05"

// OutputPaths names the results table and the status log of one run.
type OutputPaths struct {
	Results string
	Log     string
}

// NewOutputPaths derives both file names from the input: the input's directory
// (or outDir when set) joined with the input name up to its first ".", then
// "--" and the timestamp. SQL inputs are named after their table, without schema.
func NewOutputPaths(in config.Input, outDir string, now time.Time) OutputPaths {
	var dir, name string

	switch in.Kind() {
	case config.KindPostgres:
		dir, name = ".", tableName(in.Table)
	case config.KindSQLite:
		dir, name = filepath.Dir(in.SQLitePath()), tableName(in.Table)
	default:
		dir, name = filepath.Dir(in.Path), filepath.Base(in.Path)
	}

	if outDir != "" {
		dir = outDir
	}

	if i := strings.Index(name, "."); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		name = "output"
	}

	base := filepath.Join(dir, name) + "--" + now.Format(TimestampLayout)

	return OutputPaths{Results: base + ".csv", Log: base + ".log"}
}

func tableName(table string) string {
	return table[strings.LastIndex(table, ".")+1:]
}
