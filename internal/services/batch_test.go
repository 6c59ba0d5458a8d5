package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"distance-matrix-batch/internal/adapters/routing"
	"distance-matrix-batch/internal/config"
	"distance-matrix-batch/internal/domain"
	"distance-matrix-batch/internal/ports"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sliceSource struct {
	rows []domain.Row
	err  error // returned after rows are exhausted instead of io.EOF
	next int
}

func (s *sliceSource) Next(ctx context.Context) (domain.Row, error) {
	if err := ctx.Err(); err != nil {
		return domain.Row{}, err
	}
	if s.next >= len(s.rows) {
		if s.err != nil {
			return domain.Row{}, s.err
		}
		return domain.Row{}, io.EOF
	}
	r := s.rows[s.next]
	s.next++
	return r, nil
}

func (s *sliceSource) Close() error { return nil }

type memWriter struct {
	mu      sync.Mutex
	records [][]string
	failOn  int // 1-based record number that fails; 0 never
}

func (w *memWriter) Write(record []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failOn > 0 && len(w.records)+1 == w.failOn {
		return errors.New("disk full")
	}
	w.records = append(w.records, record)
	return nil
}

func (w *memWriter) Close() error { return nil }

func pairRow(line int, id, fromLat, fromLong, toLat, toLong string) domain.Row {
	return domain.Row{Line: line, Values: map[string]string{
		"FID": id, "FROM_Y": fromLat, "FROM_X": fromLong, "NEAR_Y": toLat, "NEAR_X": toLong,
	}}
}

func newBatch(provider ports.RouteProvider, out io.Writer) *Batch {
	return &Batch{
		Provider: provider,
		Input:    config.InputLabels{ID: "FID", FromLong: "FROM_X", FromLat: "FROM_Y", ToLong: "NEAR_X", ToLat: "NEAR_Y"},
		Output:   config.OutputLabels{Distance: "Distance", Duration: "Duration", DurationValue: "Duration (seconds)", JSON: "JSON"},
		Status:   config.Status{Label: "Status"},
		Workers:  1,
		Drain:    time.Minute,
		Out:      out,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

var scenarioResult = ports.RouteResult{
	DistanceText:    "5.2 mi",
	DurationText:    "12 mins",
	DistanceMeters:  8369,
	DurationSeconds: 720,
	Raw:             []byte(`{"legs":[{"distance":{"text":"5.2 mi","value":8369}}]}`),
}

func TestBatchSuccess(t *testing.T) {
	provider := routing.NewMockProvider([]routing.MockPair{
		{From: "33.7, -84.3", To: "33.8, -84.4", Result: scenarioResult},
	})
	var out bytes.Buffer
	b := newBatch(provider, &out)

	results, statuses := &memWriter{}, &memWriter{}
	src := &sliceSource{rows: []domain.Row{pairRow(1, "1", "33.7", "-84.3", "33.8", "-84.4")}}

	summary, err := b.Run(context.Background(), src, results, statuses)
	require.NoError(t, err)

	require.Len(t, results.records, 1)
	assert.Equal(t, []string{"1", "5.2 mi", "12 mins", "720", string(scenarioResult.Raw)}, results.records[0])
	assert.Equal(t, [][]string{{"1", "Success"}}, statuses.records)
	assert.Equal(t, "[FID 1] (33.7, -84.3) -> (33.8, -84.4) - 5.2 mi - 12 mins\n", out.String())

	assert.Equal(t, 1, summary.Rows)
	assert.Equal(t, 1, summary.Successes)
	assert.Zero(t, summary.Failed())
	assert.NotEmpty(t, summary.RunID)
	assert.False(t, summary.Interrupted)
}

func TestBatchServiceFailure(t *testing.T) {
	provider := routing.NewMockProvider([]routing.MockPair{
		{From: "33.7, -84.3", To: "33.8, -84.4", Err: domain.Fail(domain.CauseService, routing.ErrZeroResults)},
	})
	var out bytes.Buffer
	b := newBatch(provider, &out)
	b.Status.CauseLabel = "Cause"

	results, statuses := &memWriter{}, &memWriter{}
	src := &sliceSource{rows: []domain.Row{pairRow(1, "1", "33.7", "-84.3", "33.8", "-84.4")}}

	summary, err := b.Run(context.Background(), src, results, statuses)
	require.NoError(t, err)

	assert.Empty(t, results.records)
	assert.Equal(t, [][]string{{"1", "An error has occured", "service"}}, statuses.records)
	assert.Equal(t, "[FID 1] An error has occured.\n", out.String())
	assert.Equal(t, map[domain.Cause]int{domain.CauseService: 1}, summary.Failures)
}

func TestBatchMixedRows(t *testing.T) {
	provider := routing.NewMockProvider([]routing.MockPair{
		{From: "1, 1", To: "2, 2", Result: scenarioResult},
		{From: "3, 3", To: "4, 4", Result: scenarioResult},
	})
	b := newBatch(provider, io.Discard)
	b.Status.CauseLabel = "Cause"

	missingID := domain.Row{Line: 3, Values: map[string]string{"FROM_Y": "1", "FROM_X": "1", "NEAR_Y": "2", "NEAR_X": "2"}}
	missingCoord := domain.Row{Line: 4, Values: map[string]string{"FID": "d", "FROM_Y": "1"}}

	src := &sliceSource{rows: []domain.Row{
		pairRow(1, "a", "1", "1", "2", "2"),
		pairRow(2, "b", "9", "9", "9", "9"),
		missingID,
		missingCoord,
		pairRow(5, "a", "3", "3", "4", "4"),
	}}
	results, statuses := &memWriter{}, &memWriter{}

	summary, err := b.Run(context.Background(), src, results, statuses)
	require.NoError(t, err)

	// Every input row is logged, only successes reach the results.
	assert.Equal(t, [][]string{
		{"a", "Success", ""},
		{"b", "An error has occured", "service"},
		{"", "An error has occured", "input"},
		{"d", "An error has occured", "input"},
		{"a", "Success", ""},
	}, statuses.records)
	require.Len(t, results.records, 2)
	assert.Equal(t, "a", results.records[0][0])
	assert.Equal(t, "a", results.records[1][0])

	assert.Equal(t, 5, summary.Rows)
	assert.Equal(t, 2, summary.Successes)
	assert.Equal(t, 3, summary.Failed())
	assert.Equal(t, 3, provider.Calls(), "rows with missing labels never reach the provider")
}

type slowProvider struct{}

func (slowProvider) Route(ctx context.Context, q ports.RouteQuery) (ports.RouteResult, error) {
	n, _ := strconv.Atoi(q.FromLat)
	// Later rows finish first.
	time.Sleep(time.Duration(20-n) * time.Millisecond)
	return ports.RouteResult{DistanceText: q.FromLat, DurationText: "1 min", DurationSeconds: 60, Raw: []byte(`{}`)}, nil
}

func TestBatchWorkersKeepInputOrder(t *testing.T) {
	b := newBatch(slowProvider{}, io.Discard)
	b.Workers = 8

	var rows []domain.Row
	for i := 0; i < 20; i++ {
		rows = append(rows, pairRow(i+1, strconv.Itoa(i), strconv.Itoa(i), "0", "0", "0"))
	}
	results, statuses := &memWriter{}, &memWriter{}

	summary, err := b.Run(context.Background(), &sliceSource{rows: rows}, results, statuses)
	require.NoError(t, err)
	assert.Equal(t, 20, summary.Successes)

	require.Len(t, results.records, 20)
	for i, rec := range results.records {
		assert.Equal(t, strconv.Itoa(i), rec[0])
		assert.Equal(t, strconv.Itoa(i), statuses.records[i][0])
	}
}

func TestBatchStraightLine(t *testing.T) {
	provider := routing.NewMockProvider([]routing.MockPair{
		{From: "33.7, -84.3", To: "33.8, -84.4", Result: scenarioResult},
	})
	b := newBatch(provider, io.Discard)
	b.Output.StraightLine = "Straight (m)"

	assert.Equal(t, []string{"FID", "Distance", "Duration", "Duration (seconds)", "JSON", "Straight (m)"}, b.ResultHeader())

	results, statuses := &memWriter{}, &memWriter{}
	src := &sliceSource{rows: []domain.Row{
		pairRow(1, "1", "33.7", "-84.3", "33.8", "-84.4"),
		pairRow(2, "2", "north", "-84.3", "33.8", "-84.4"),
	}}

	_, err := b.Run(context.Background(), src, results, statuses)
	require.NoError(t, err)

	require.Len(t, results.records, 1)
	meters, err := strconv.ParseFloat(results.records[0][5], 64)
	require.NoError(t, err)
	assert.InDelta(t, 14420, meters, 200)

	assert.Equal(t, "An error has occured", statuses.records[1][1])
	assert.Equal(t, 1, provider.Calls())
}

func TestBatchHeaders(t *testing.T) {
	b := newBatch(nil, io.Discard)
	assert.Equal(t, []string{"FID", "Distance", "Duration", "Duration (seconds)", "JSON"}, b.ResultHeader())
	assert.Equal(t, []string{"FID", "Status"}, b.LogHeader())

	b.Status.CauseLabel = "Cause"
	assert.Equal(t, []string{"FID", "Status", "Cause"}, b.LogHeader())
}

func TestBatchReadErrorStopsRun(t *testing.T) {
	provider := routing.NewMockProvider([]routing.MockPair{{From: "1, 1", To: "2, 2", Result: scenarioResult}})
	b := newBatch(provider, io.Discard)

	src := &sliceSource{rows: []domain.Row{pairRow(1, "a", "1", "1", "2", "2")}, err: errors.New("bad quote")}
	results, statuses := &memWriter{}, &memWriter{}

	summary, err := b.Run(context.Background(), src, results, statuses)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad quote")
	assert.Equal(t, 1, summary.Rows, "rows read before the error are written")
	assert.Len(t, statuses.records, 1)
}

func TestBatchWriteErrorStopsRun(t *testing.T) {
	var pairs []routing.MockPair
	var rows []domain.Row
	for i := 0; i < 10; i++ {
		v := strconv.Itoa(i)
		pairs = append(pairs, routing.MockPair{From: v + ", 0", To: "0, 0", Result: scenarioResult})
		rows = append(rows, pairRow(i+1, v, v, "0", "0", "0"))
	}
	b := newBatch(routing.NewMockProvider(pairs), io.Discard)

	results, statuses := &memWriter{failOn: 2}, &memWriter{}

	_, err := b.Run(context.Background(), &sliceSource{rows: rows}, results, statuses)
	require.Error(t, err)
	assert.Len(t, results.records, 1)
	assert.Len(t, statuses.records, 1)
}

func TestBatchCanceledBeforeStart(t *testing.T) {
	provider := routing.NewMockProvider(nil)
	b := newBatch(provider, io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, statuses := &memWriter{}, &memWriter{}
	summary, err := b.Run(ctx, &sliceSource{rows: []domain.Row{pairRow(1, "a", "1", "1", "2", "2")}}, results, statuses)
	require.NoError(t, err)
	assert.True(t, summary.Interrupted)
	assert.Zero(t, summary.Rows)
	assert.Zero(t, provider.Calls())
}

type cancelingSource struct {
	sliceSource
	cancel context.CancelFunc
	after  int
}

func (s *cancelingSource) Next(ctx context.Context) (domain.Row, error) {
	if s.next == s.after {
		s.cancel()
	}
	return s.sliceSource.Next(ctx)
}

func TestBatchCanceledMidRun(t *testing.T) {
	provider := routing.NewMockProvider([]routing.MockPair{{From: "1, 1", To: "2, 2", Result: scenarioResult}})
	b := newBatch(provider, io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var rows []domain.Row
	for i := 0; i < 5; i++ {
		rows = append(rows, pairRow(i+1, fmt.Sprint(i), "1", "1", "2", "2"))
	}
	src := &cancelingSource{sliceSource: sliceSource{rows: rows}, cancel: cancel, after: 2}
	results, statuses := &memWriter{}, &memWriter{}

	summary, err := b.Run(ctx, src, results, statuses)
	require.NoError(t, err)
	assert.True(t, summary.Interrupted)
	assert.Equal(t, 2, summary.Rows)
	assert.Equal(t, 2, summary.Successes, "rows in flight finish despite cancellation")
	assert.Len(t, results.records, 2)
}

// hangingProvider blocks until its context is canceled, like a stalled connection.
type hangingProvider struct {
	started chan struct{}
}

func (p hangingProvider) Route(ctx context.Context, q ports.RouteQuery) (ports.RouteResult, error) {
	close(p.started)
	<-ctx.Done()
	return ports.RouteResult{}, domain.Fail(domain.CauseNetwork, ctx.Err())
}

func TestBatchInterruptAbortsHungCall(t *testing.T) {
	provider := hangingProvider{started: make(chan struct{})}
	b := newBatch(provider, io.Discard)
	b.Drain = 50 * time.Millisecond
	b.Status.CauseLabel = "Cause"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results, statuses := &memWriter{}, &memWriter{}
	src := &sliceSource{rows: []domain.Row{pairRow(1, "1", "33.7", "-84.3", "33.8", "-84.4")}}

	type ran struct {
		summary Summary
		err     error
	}
	done := make(chan ran, 1)
	go func() {
		summary, err := b.Run(ctx, src, results, statuses)
		done <- ran{summary, err}
	}()

	<-provider.started
	cancel()

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.True(t, r.summary.Interrupted)
		assert.Equal(t, map[domain.Cause]int{domain.CauseNetwork: 1}, r.summary.Failures)
	case <-time.After(5 * time.Second):
		t.Fatal("run still blocked after interrupt")
	}

	assert.Empty(t, results.records)
	assert.Equal(t, [][]string{{"1", "An error has occured", "network"}}, statuses.records)
}

func TestBatchDrainLetsSlowRowFinish(t *testing.T) {
	b := newBatch(slowProvider{}, io.Discard)
	b.Drain = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	src := &cancelingSource{sliceSource: sliceSource{rows: []domain.Row{pairRow(1, "0", "0", "0", "0", "0")}}, cancel: cancel, after: 1}
	results, statuses := &memWriter{}, &memWriter{}

	summary, err := b.Run(ctx, src, results, statuses)
	require.NoError(t, err)
	assert.True(t, summary.Interrupted)
	assert.Equal(t, 1, summary.Successes, "a row finishing within the drain window is kept")
	assert.Len(t, results.records, 1)
}
