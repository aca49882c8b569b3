package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/and161185/elasticsearch-exporter/internal/observability"
	"github.com/and161185/elasticsearch-exporter/internal/poller/mocks"
	"github.com/and161185/elasticsearch-exporter/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func batchWithOneBad() []model.RawMetric {
	return []model.RawMetric{
		{Key: "cluster", Value: model.String("prod")},
		{Key: "status", Value: model.String("green")},
		{Key: "node_total", Value: model.String("3")},
		{Key: "node_data", Value: model.String("2")},
		{Key: "shards", Value: model.Int(10)},
		{Key: "store_size", Value: model.String("not-bytes")},
		{Key: "active_shards_percent", Value: model.String("100.0%")},
		{Key: "epoch", Value: model.String("1700000000")},
		{Key: "timed_out", Value: model.Bool(false)},
		{Key: "unassign", Value: model.Null()},
	}
}

func TestProcess_SkipsUnclassifiableMetric(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockSink(ctrl)

	sink.EXPECT().Collect(gomock.Any()).Return(nil).Times(9)
	sink.EXPECT().Commit().Times(1)

	core, logs := observer.New(zapcore.WarnLevel)
	p := New("cat/health", nil, sink, model.SubsystemConfig{}, Options{Logger: zap.New(core).Sugar()})

	require.Equal(t, 9, p.process(batchWithOneBad()))

	warns := logs.FilterMessage("skip unclassifiable metric").All()
	require.Len(t, warns, 1)
	require.Equal(t, "store_size", warns[0].ContextMap()["key"])
	require.Equal(t, "cat/health", warns[0].ContextMap()["subsystem"])
}

func TestProcess_SinkErrorsDoNotStopBatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockSink(ctrl)

	gomock.InOrder(
		sink.EXPECT().Collect(model.Sample{Key: "docs_count", Row: 0, Type: model.Gauge(1)}).Return(errors.New("boom")),
		sink.EXPECT().Collect(model.Sample{Key: "docs_count", Row: 1, Type: model.Gauge(2)}).Return(nil),
		sink.EXPECT().Commit(),
	)

	p := New("cat/indices", nil, sink, model.SubsystemConfig{}, Options{})
	n := p.process([]model.RawMetric{
		{Key: "docs_count", Value: model.String("1"), Row: 0},
		{Key: "docs_count", Value: model.String("2"), Row: 1},
	})
	require.Equal(t, 2, n)
}

func TestCycle_FetchErrorSkipsSink(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)
	sink := mocks.NewMockSink(ctrl)

	fetcher.EXPECT().Fetch(gomock.Any()).Return(nil, errors.New("connection refused"))

	core, logs := observer.New(zapcore.ErrorLevel)
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	p := New("nodes/stats", fetcher, sink, model.SubsystemConfig{}, Options{
		Logger: zap.New(core).Sugar(),
		Errors: m.ErrorsTotal,
	})
	p.cycle(context.Background())

	require.Equal(t, 1, logs.Len())
	require.Contains(t, logs.All()[0].Message, "nodes/stats")
	require.Contains(t, logs.All()[0].Message, "connection refused")
	require.Equal(t, float64(1), testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("nodes/stats", observability.ErrorFetch)))
}

func TestCycle_FetcherPanicIsRecovered(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockSink(ctrl)

	core, logs := observer.New(zapcore.ErrorLevel)
	p := New("stats", FetcherFunc(func(context.Context) ([]model.RawMetric, error) {
		panic("bad payload")
	}), sink, model.SubsystemConfig{}, Options{Logger: zap.New(core).Sugar()})

	require.NotPanics(t, func() { p.cycle(context.Background()) })
	require.Equal(t, 1, logs.Len())
	require.Contains(t, logs.All()[0].Message, "fetcher panicked")
}

func TestCycle_ObservesDuration(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockSink(ctrl)
	sink.EXPECT().Collect(gomock.Any()).Return(nil)
	sink.EXPECT().Commit()

	h := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "cycle_seconds"})
	p := New("cat/nodes", FetcherFunc(func(context.Context) ([]model.RawMetric, error) {
		return []model.RawMetric{{Key: "heap_percent", Value: model.String("42")}}, nil
	}), sink, model.SubsystemConfig{}, Options{Observer: h})

	p.cycle(context.Background())
	require.Equal(t, uint64(1), sampleCount(t, h))
}

func TestCycle_FetchTimeout(t *testing.T) {
	var deadline atomic.Bool
	p := New("cat/shards", FetcherFunc(func(ctx context.Context) ([]model.RawMetric, error) {
		_, ok := ctx.Deadline()
		deadline.Store(ok)
		return nil, nil
	}), &recordingSink{}, model.SubsystemConfig{}, Options{FetchTimeout: time.Second})

	p.cycle(context.Background())
	require.True(t, deadline.Load())
}

func TestNew_Interval(t *testing.T) {
	p := New("a", nil, nil, model.SubsystemConfig{}, Options{})
	require.Equal(t, DefaultInterval, p.Interval())

	p = New("a", nil, nil, model.SubsystemConfig{}, Options{DefaultInterval: time.Minute})
	require.Equal(t, time.Minute, p.Interval())

	p = New("a", nil, nil, model.SubsystemConfig{PollInterval: time.Second}, Options{DefaultInterval: time.Minute})
	require.Equal(t, time.Second, p.Interval())
	require.Equal(t, "a", p.Name())
}

func TestJitter(t *testing.T) {
	require.Zero(t, Jitter(0))
	require.Zero(t, Jitter(-time.Second))

	limit := 50 * time.Millisecond
	for i := 0; i < 10000; i++ {
		d := Jitter(limit)
		require.GreaterOrEqual(t, d, time.Duration(0))
		require.Less(t, d, limit)
	}
}

func TestRun_FailureDoesNotStopNextCycle(t *testing.T) {
	var calls atomic.Int32
	sink := &recordingSink{}

	p := New("cluster/health", FetcherFunc(func(context.Context) ([]model.RawMetric, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("first cycle fails")
		}
		return []model.RawMetric{{Key: "number_of_nodes", Value: model.Int(3)}}, nil
	}), sink, model.SubsystemConfig{PollInterval: 10 * time.Millisecond}, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return sink.commits.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	require.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestRun_CyclesAreSequential(t *testing.T) {
	var (
		inFlight atomic.Int32
		maxSeen  atomic.Int32
		cycles   atomic.Int32
	)
	sink := &recordingSink{}

	p := New("nodes/stats", FetcherFunc(func(context.Context) ([]model.RawMetric, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		if n > maxSeen.Load() {
			maxSeen.Store(n)
		}
		cycles.Add(1)
		// Longer than the period: the next tick is already pending.
		time.Sleep(15 * time.Millisecond)
		return []model.RawMetric{{Key: "docs_count", Value: model.Int(1)}}, nil
	}), sink, model.SubsystemConfig{PollInterval: 5 * time.Millisecond}, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, p.Run(ctx), context.DeadlineExceeded)

	require.Equal(t, int32(1), maxSeen.Load())
	require.GreaterOrEqual(t, cycles.Load(), int32(5))
	require.Equal(t, sink.commits.Load(), cycles.Load())
}

func TestRun_CancelledDuringJitter(t *testing.T) {
	var calls atomic.Int32
	p := New("stats", FetcherFunc(func(context.Context) ([]model.RawMetric, error) {
		calls.Add(1)
		return nil, nil
	}), &recordingSink{}, model.SubsystemConfig{}, Options{MaxJitter: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, p.Run(ctx), context.Canceled)
	require.Zero(t, calls.Load())
}

func TestRunAll_IndependentSubsystems(t *testing.T) {
	good := &recordingSink{}
	slowDone := make(chan struct{})

	fast := New("cat/health", FetcherFunc(func(context.Context) ([]model.RawMetric, error) {
		return []model.RawMetric{{Key: "shards", Value: model.Int(1)}}, nil
	}), good, model.SubsystemConfig{PollInterval: 5 * time.Millisecond}, Options{})

	stuck := New("nodes/stats", FetcherFunc(func(ctx context.Context) ([]model.RawMetric, error) {
		<-ctx.Done()
		close(slowDone)
		return nil, ctx.Err()
	}), &recordingSink{}, model.SubsystemConfig{PollInterval: 5 * time.Millisecond}, Options{})

	broken := New("stats", FetcherFunc(func(context.Context) ([]model.RawMetric, error) {
		return nil, errors.New("always down")
	}), &recordingSink{}, model.SubsystemConfig{PollInterval: 5 * time.Millisecond}, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunAll(ctx, fast, stuck, broken) }()

	require.Eventually(t, func() bool { return good.commits.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	<-slowDone
}

type recordingSink struct {
	mu      sync.Mutex
	samples []model.Sample
	commits atomic.Int32
}

func (s *recordingSink) Collect(sm model.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sm)
	return nil
}

func (s *recordingSink) Commit() { s.commits.Add(1) }

func sampleCount(t *testing.T, h prometheus.Histogram) uint64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, h.Write(&m))
	return m.GetHistogram().GetSampleCount()
}
