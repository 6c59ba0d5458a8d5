package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"distance-matrix-batch/internal/adapters/tabular"
	"distance-matrix-batch/internal/config"
	"distance-matrix-batch/internal/platform/db"
	"distance-matrix-batch/internal/platform/logs"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// dbtool loads a delimited pairs file into the SQL table that distbatch reads
// when input.path points at a SQLite file or a postgres URL.
func main() {
	configPath := flag.String("config", "config.yaml", "YAML configuration file")
	from := flag.String("from", "", "delimited pairs file to load")
	to := flag.String("to", "", "target SQLite file or postgres:// URL (default input.path)")
	table := flag.String("table", "", "target table (default input.table)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found (using environment variables)")
	}

	cfg, err := config.Load(*configPath, false)
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger, err := logs.New(cfg.Env.Log, os.Stderr)
	if err != nil {
		slog.Error("create logger", "err", err)
		os.Exit(1)
	}

	target := config.Input{Path: *to, Table: *table}
	if target.Path == "" {
		target.Path = cfg.Input.Path
	}
	if target.Table == "" {
		target.Table = cfg.Input.Table
	}
	if *from == "" || target.Table == "" {
		logger.Error("-from and a target table are required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := seed(ctx, *from, cfg.Input.Delimiter, target, logger); err != nil {
		logger.Error("seeding failed", "err", err)
		stop()
		os.Exit(1)
	}
}

func seed(ctx context.Context, from, delimiter string, target config.Input, logger *slog.Logger) error {
	src, err := tabular.OpenCSV(from, delimiter)
	if err != nil {
		return err
	}
	defer src.Close()

	var (
		conn *sql.DB
		ph   tabular.Placeholder
	)
	switch target.Kind() {
	case config.KindPostgres:
		conn, err = db.Open(ctx, target.Path)
		ph = tabular.Dollar
	case config.KindSQLite:
		conn, err = db.OpenSQLite(ctx, target.SQLitePath(), true)
		ph = tabular.Question
	default:
		return errors.Errorf("target %q is neither a SQLite file nor a postgres URL", target.Path)
	}
	if err != nil {
		return err
	}
	defer conn.Close()

	logger.Info("seeding input table", "from", from, "table", target.Table)
	n, err := tabular.SeedTable(ctx, conn, target.Table, src.Headers(), src, ph)
	if err != nil {
		return err
	}
	logger.Info("seeding complete", "rows", n)

	return nil
}
