package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceansentinel/threat-scoring/internal/domain"
	"github.com/oceansentinel/threat-scoring/internal/observability"
	"github.com/oceansentinel/threat-scoring/internal/pipeline"
)

// --- mocks ---

type mockExtractor struct {
	batches [][]domain.RawMessage
	index   atomic.Int64
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, _ int) ([]domain.RawMessage, error) {
	i := int(m.index.Add(1) - 1)
	if i >= len(m.batches) {
		// block until context cancelled to simulate waiting for messages
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.batches[i], nil
}

type mockScorer struct {
	err   error
	calls atomic.Int64
}

func (m *mockScorer) ScoreBatch(_ context.Context, batch domain.Batch) (*domain.ScoringReport, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	report := domain.NewReport(batch.Location)
	report.WindowStart, report.WindowEnd = batch.Window()
	return report, nil
}

type mockLoader struct {
	mu     sync.Mutex
	loaded []*domain.ScoringReport
	err    error
}

func (m *mockLoader) LoadBatch(_ context.Context, reports []*domain.ScoringReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.loaded = append(m.loaded, reports...)
	return nil
}

func (m *mockLoader) reports() []*domain.ScoringReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.ScoringReport(nil), m.loaded...)
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

const validBatchJSON = `{
	"location": {"lat": 29.76, "lon": -95.37},
	"records": [
		{"timestamp": "2024-04-26T06:00:00Z", "temperature": 22, "humidity": 60},
		{"timestamp": "2024-04-26T07:00:00Z", "temperature": 23, "humidity": 62},
		{"timestamp": "2024-04-26T08:00:00Z", "temperature": 24, "humidity": 64}
	]
}`

func rawBatchMessage(offset int64, commit func(ctx context.Context) error) domain.RawMessage {
	return domain.RawMessage{
		Topic:  "environmental-readings",
		Offset: offset,
		Value:  []byte(validBatchJSON),
		Commit: commit,
	}
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	ext := &mockExtractor{batches: [][]domain.RawMessage{
		{rawBatchMessage(1, nil), rawBatchMessage(2, nil)},
	}}
	scorer := &mockScorer{}
	ldr := &mockLoader{}

	p := pipeline.New(ext, scorer, ldr, slog.Default(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := p.Run(ctx)
	require.NoError(t, err)

	loaded := ldr.reports()
	require.Len(t, loaded, 2)
	assert.Equal(t, int64(2), scorer.calls.Load())
	assert.NoError(t, p.CheckReadiness(context.Background()))

	type reportSummary struct {
		Lat, Lon    float64
		WindowStart time.Time
	}
	expected := reportSummary{
		Lat: 29.76, Lon: -95.37,
		WindowStart: time.Date(2024, time.April, 26, 6, 0, 0, 0, time.UTC),
	}
	actual := reportSummary{
		Lat: loaded[0].Location.Lat, Lon: loaded[0].Location.Lon,
		WindowStart: loaded[0].WindowStart,
	}
	if diff := cmp.Diff(expected, actual); diff != "" {
		t.Fatalf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ext := &mockExtractor{} // no batches, will block
	p := pipeline.New(ext, &mockScorer{}, &mockLoader{}, slog.Default(), newTestMetrics(), 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	err := p.Run(ctx)
	require.NoError(t, err)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_MalformedMessageSkipped(t *testing.T) {
	var committedOffsets []int64
	var mu sync.Mutex
	commit := func(offset int64) func(context.Context) error {
		return func(_ context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			committedOffsets = append(committedOffsets, offset)
			return nil
		}
	}

	malformed := domain.RawMessage{
		Topic:  "environmental-readings",
		Offset: 1,
		Value:  []byte("not json"),
		Commit: commit(1),
	}
	ext := &mockExtractor{batches: [][]domain.RawMessage{
		{malformed, rawBatchMessage(2, commit(2))},
	}}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockScorer{}, ldr, slog.Default(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))

	assert.Len(t, ldr.reports(), 1)
	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []int64{1, 2}, committedOffsets)
}

func TestPipeline_Run_ScoringErrorSkipsMessage(t *testing.T) {
	committed := false
	ext := &mockExtractor{batches: [][]domain.RawMessage{
		{rawBatchMessage(1, func(_ context.Context) error {
			committed = true
			return nil
		})},
	}}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockScorer{err: errors.New("bad location")}, ldr, slog.Default(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))

	assert.Empty(t, ldr.reports())
	assert.True(t, committed)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_LoadErrorDoesNotCommit(t *testing.T) {
	committed := false
	ext := &mockExtractor{batches: [][]domain.RawMessage{
		{rawBatchMessage(1, func(_ context.Context) error {
			committed = true
			return nil
		})},
	}}
	ldr := &mockLoader{err: errors.New("broker unavailable")}

	p := pipeline.New(ext, &mockScorer{}, ldr, slog.Default(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 700*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))

	assert.False(t, committed)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_CheckReadinessBeforeRun(t *testing.T) {
	p := pipeline.New(&mockExtractor{}, &mockScorer{}, &mockLoader{}, slog.Default(), newTestMetrics(), 10)
	assert.Error(t, p.CheckReadiness(context.Background()))
}
