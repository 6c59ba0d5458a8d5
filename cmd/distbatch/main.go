package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"distance-matrix-batch/internal/adapters/routing"
	"distance-matrix-batch/internal/adapters/tabular"
	"distance-matrix-batch/internal/config"
	"distance-matrix-batch/internal/platform/logs"
	"distance-matrix-batch/internal/platform/prompt"
	"distance-matrix-batch/internal/services"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// now stamps output file names.
var now = time.Now

// exitInterrupted is the conventional status after SIGINT.
const exitInterrupted = 130

// main is the composition root. It wires the routing provider and the
// tabular adapters behind ports and runs one batch.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		// Restore default handling: a second interrupt kills the process.
		stop()
	}()

	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("distbatch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "config.yaml", "YAML configuration file")
	input := fs.String("input", "", "input table: .csv/.txt, .xlsx, SQLite file or postgres:// URL")
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	workers := fs.Int("workers", 0, "concurrent routing requests (default from config)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	explicitConfig := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicitConfig = true
		}
	})

	envErr := godotenv.Load()

	cfg, err := config.Load(*configPath, explicitConfig)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	if *input != "" {
		cfg.Input.Path = *input
	}
	if *yes {
		cfg.Run.AssumeYes = true
	}
	if *workers > 0 {
		cfg.Run.Workers = *workers
	}

	logger, err := logs.New(cfg.Env.Log, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "create logger: %v\n", err)
		return 1
	}
	if envErr != nil {
		logger.Debug("no .env file found (using environment variables)")
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("startup failed", "err", err)
		return 1
	}

	if !cfg.Run.AssumeYes {
		ok, err := prompt.NewConfirm(stdin, stdout).Gate(ctx)
		if ctx.Err() != nil {
			fmt.Fprintln(stdout)
			fmt.Fprintln(stdout, prompt.Exited)
			return exitInterrupted
		}
		if err != nil {
			logger.Error("confirmation failed", "err", err)
			return 1
		}
		if !ok {
			fmt.Fprintln(stdout, prompt.Exited)
			return 0
		}
	}

	interrupted, err := runBatch(ctx, cfg, stdout, logger)
	if err != nil {
		logger.Error("batch failed", "err", err)
		return 1
	}
	if interrupted {
		return exitInterrupted
	}

	return 0
}

func runBatch(ctx context.Context, cfg *config.Config, stdout io.Writer, logger *slog.Logger) (interrupted bool, err error) {
	// Interrupted before any file exists.
	if ctx.Err() != nil {
		return true, nil
	}

	provider, err := routing.New(cfg.Routing)
	if err != nil {
		return false, err
	}

	src, err := tabular.Open(ctx, cfg.Input)
	if err != nil {
		return false, err
	}
	defer src.Close()

	if cfg.Output.Dir != "" {
		if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
			return false, errors.Wrap(err, "create output dir")
		}
	}

	batch := &services.Batch{
		Provider: provider,
		Input:    cfg.Input.Labels,
		Output:   cfg.Output.Labels,
		Status:   cfg.Status,
		Workers:  cfg.Run.Workers,
		Drain:    cfg.Run.Drain,
		Out:      stdout,
		Logger:   logger,
	}

	paths := services.NewOutputPaths(cfg.Input, cfg.Output.Dir, now())

	results, err := tabular.CreateCSV(paths.Results, batch.ResultHeader())
	if err != nil {
		return false, err
	}

	statuses, err := tabular.CreateCSV(paths.Log, batch.LogHeader())
	if err != nil {
		// Never leave a results table without its log.
		results.Close()
		os.Remove(paths.Results)
		return false, err
	}
	defer closeWriter(results, &err)
	defer closeWriter(statuses, &err)

	logger.Info("batch started",
		"input", cfg.Input.Path,
		"results", paths.Results,
		"log", paths.Log,
		"provider", cfg.Routing.Provider,
		"workers", cfg.Run.Workers,
	)

	summary, err := batch.Run(ctx, src, results, statuses)
	return summary.Interrupted, err
}

func closeWriter(w io.Closer, errp *error) {
	if err := w.Close(); err != nil && *errp == nil {
		*errp = err
	}
}
