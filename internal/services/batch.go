package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"distance-matrix-batch/internal/config"
	"distance-matrix-batch/internal/domain"
	"distance-matrix-batch/internal/platform/obs"
	"distance-matrix-batch/internal/ports"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Batch routes every input row once and records the outcome.
type Batch struct {
	Provider ports.RouteProvider
	Input    config.InputLabels
	Output   config.OutputLabels
	Status   config.Status

	// Concurrent route calls; below 1 means 1.
	Workers int

	// How long rows in flight may keep running after ctx is canceled
	// before their route calls are canceled too. Zero cancels them at once.
	Drain time.Duration

	// Operator progress lines.
	Out    io.Writer
	Logger *slog.Logger
}

// Summary describes a finished run.
type Summary struct {
	RunID     string
	Rows      int
	Successes int
	Failures  map[domain.Cause]int
	Elapsed   time.Duration

	// Set when the run stopped before the input was exhausted.
	Interrupted bool
}

// Failed returns the total number of failed rows.
func (s Summary) Failed() int {
	n := 0
	for _, c := range s.Failures {
		n += c
	}
	return n
}

// ResultHeader is the header row of the results table.
func (b *Batch) ResultHeader() []string {
	h := []string{b.Input.ID, b.Output.Distance, b.Output.Duration, b.Output.DurationValue, b.Output.JSON}
	if b.Output.StraightLine != "" {
		h = append(h, b.Output.StraightLine)
	}
	return h
}

// LogHeader is the header row of the status log.
func (b *Batch) LogHeader() []string {
	h := []string{b.Input.ID, b.Status.Label}
	if b.Status.CauseLabel != "" {
		h = append(h, b.Status.CauseLabel)
	}
	return h
}

type outcome struct {
	seq      int
	line     int
	id       string
	query    ports.RouteQuery
	result   ports.RouteResult
	straight float64
	err      error
}

// Run reads src until it is exhausted or ctx is canceled. Rows already handed
// to a worker get b.Drain to finish; past that their route calls are canceled
// and they are logged as failures. A row failure never stops the run; reading
// the input or writing the outputs does.
func (b *Batch) Run(ctx context.Context, src ports.RowSource, results, statuses ports.RowWriter) (Summary, error) {
	start := time.Now()
	summary := Summary{RunID: uuid.NewString(), Failures: map[domain.Cause]int{}}

	logger := b.logger().With("run_id", summary.RunID)
	ctx = obs.WithLogger(obs.WithRunID(ctx, summary.RunID), logger)

	workers := b.Workers
	if workers < 1 {
		workers = 1
	}

	// Workers get Drain to finish their row once ctx is canceled.
	work, abort := context.WithCancel(context.WithoutCancel(ctx))
	defer abort()

	finished := make(chan struct{})
	defer close(finished)
	go b.abortAfterDrain(ctx, finished, abort)

	// Stops the reader once the writer has failed.
	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()

	outcomes := make(chan outcome, workers)

	var (
		writeErr error
		wg       sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		writeErr = b.write(outcomes, results, statuses, &summary, logger, stopReading)
	}()

	var pool errgroup.Group
	pool.SetLimit(workers)

	var readErr error
	for seq := 0; ; seq++ {
		if readCtx.Err() != nil {
			summary.Interrupted = ctx.Err() != nil
			break
		}

		row, err := src.Next(readCtx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if readCtx.Err() == nil {
				readErr = errors.Wrap(err, "read input")
			}
			summary.Interrupted = ctx.Err() != nil
			break
		}

		pool.Go(func() error {
			outcomes <- b.process(work, seq, row)
			return nil
		})
	}

	pool.Wait()
	close(outcomes)
	wg.Wait()

	if ctx.Err() != nil {
		summary.Interrupted = true
	}
	summary.Elapsed = time.Since(start)

	logger.InfoContext(ctx, "batch finished",
		"rows", summary.Rows,
		"success", summary.Successes,
		"failed", summary.Failed(),
		"failures", summary.Failures,
		"interrupted", summary.Interrupted,
		"elapsed", summary.Elapsed.Round(time.Millisecond).String(),
	)

	if writeErr != nil {
		return summary, writeErr
	}
	return summary, readErr
}

func (b *Batch) abortAfterDrain(ctx context.Context, finished <-chan struct{}, abort context.CancelFunc) {
	select {
	case <-ctx.Done():
	case <-finished:
		return
	}

	if b.Drain > 0 {
		timer := time.NewTimer(b.Drain)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-finished:
			return
		}
	}

	obs.Logger(ctx).Warn("interrupted, canceling rows in flight")
	abort()
}

func (b *Batch) process(ctx context.Context, seq int, row domain.Row) outcome {
	o := outcome{seq: seq, line: row.Line}

	id, err := row.Field(b.Input.ID)
	if err != nil {
		o.err = domain.Fail(domain.CauseInput, err)
		return o
	}
	o.id = id

	fields := [4]string{}
	for i, label := range []string{b.Input.FromLat, b.Input.FromLong, b.Input.ToLat, b.Input.ToLong} {
		v, err := row.Field(label)
		if err != nil {
			o.err = domain.Fail(domain.CauseInput, err)
			return o
		}
		fields[i] = v
	}
	o.query = ports.RouteQuery{FromLat: fields[0], FromLon: fields[1], ToLat: fields[2], ToLon: fields[3]}

	if b.Output.StraightLine != "" {
		from, to, err := o.query.Coordinates()
		if err != nil {
			o.err = domain.Fail(domain.CauseInput, err)
			return o
		}
		o.straight = domain.StraightLineMeters(from, to)
	}

	o.result, o.err = b.Provider.Route(ctx, o.query)
	return o
}

// write is the only user of the output writers. It emits outcomes in input
// order and keeps draining after a write error so workers never block.
func (b *Batch) write(
	outcomes <-chan outcome,
	results, statuses ports.RowWriter,
	summary *Summary,
	logger *slog.Logger,
	stop context.CancelFunc,
) error {
	pending := make(map[int]outcome)
	next := 0

	var firstErr error
	for o := range outcomes {
		pending[o.seq] = o

		for {
			o, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++

			if firstErr != nil {
				continue
			}
			if err := b.emit(o, results, statuses, summary, logger); err != nil {
				firstErr = err
				stop()
			}
		}
	}

	return firstErr
}

func (b *Batch) emit(
	o outcome,
	results, statuses ports.RowWriter,
	summary *Summary,
	logger *slog.Logger,
) error {
	summary.Rows++
	q := o.query

	if o.err != nil {
		cause := domain.CauseOf(o.err)
		summary.Failures[cause]++

		logger.Warn("row failed", "line", o.line, "id", o.id, "cause", string(cause), "err", o.err)

		if err := statuses.Write(b.logRow(o.id, domain.StatusFailure, string(cause))); err != nil {
			return errors.Wrap(err, "write status log")
		}
		fmt.Fprintf(b.out(), "[%s %s] An error has occured.\n", b.Input.ID, o.id)
		return nil
	}

	r := o.result
	record := []string{o.id, r.DistanceText, r.DurationText, strconv.Itoa(r.DurationSeconds), string(r.Raw)}
	if b.Output.StraightLine != "" {
		record = append(record, strconv.FormatFloat(o.straight, 'f', 1, 64))
	}
	if err := results.Write(record); err != nil {
		return errors.Wrap(err, "write results")
	}
	if err := statuses.Write(b.logRow(o.id, domain.StatusSuccess, "")); err != nil {
		return errors.Wrap(err, "write status log")
	}
	summary.Successes++

	fmt.Fprintf(b.out(), "[%s %s] (%s, %s) -> (%s, %s) - %s - %s\n",
		b.Input.ID, o.id, q.FromLat, q.FromLon, q.ToLat, q.ToLon, r.DistanceText, r.DurationText)

	return nil
}

func (b *Batch) logRow(id, status, cause string) []string {
	if b.Status.CauseLabel == "" {
		return []string{id, status}
	}
	return []string{id, status, cause}
}

func (b *Batch) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

func (b *Batch) out() io.Writer {
	if b.Out != nil {
		return b.Out
	}
	return io.Discard
}
