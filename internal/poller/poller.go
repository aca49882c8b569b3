// Package poller drives the per-subsystem fetch, classify and collect cycle.
package poller

import (
	"context"
	"fmt"
	"math/rand"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/and161185/elasticsearch-exporter/internal/classifier"
	"github.com/and161185/elasticsearch-exporter/internal/observability"
	"github.com/and161185/elasticsearch-exporter/model"
	"github.com/and161185/elasticsearch-exporter/storage"
)

// DefaultInterval is used when neither the subsystem nor the options set one.
const DefaultInterval = 5 * time.Second

//go:generate mockgen -destination=mocks/mocks.go -package=mocks github.com/and161185/elasticsearch-exporter/internal/poller Fetcher
//go:generate mockgen -destination=mocks/sink.go -package=mocks github.com/and161185/elasticsearch-exporter/storage Sink

// Fetcher performs the network calls of one subsystem.
type Fetcher interface {
	Fetch(ctx context.Context) ([]model.RawMetric, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) ([]model.RawMetric, error)

func (f FetcherFunc) Fetch(ctx context.Context) ([]model.RawMetric, error) { return f(ctx) }

// Options holds the process-wide poller settings.
type Options struct {
	DefaultInterval time.Duration
	MaxJitter       time.Duration
	FetchTimeout    time.Duration
	Observer        prometheus.Observer    // cycle duration, already bound to subsystem and cluster
	Errors          *prometheus.CounterVec // labels: subsystem, kind
	Logger          *zap.SugaredLogger
}

// Poller runs one subsystem forever: fetch, classify each metric, forward to the sink.
type Poller struct {
	name     string
	fetcher  Fetcher
	sink     storage.Sink
	cfg      model.SubsystemConfig
	interval time.Duration
	opts     Options

	classifier classifier.Classifier
	logger     *zap.SugaredLogger
	observer   prometheus.Observer
}

// New creates a poller for subsystem name.
func New(name string, f Fetcher, s storage.Sink, cfg model.SubsystemConfig, opts Options) *Poller {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	logger = logger.With("subsystem", name)

	interval := cfg.PollInterval
	if interval <= 0 {
		interval = opts.DefaultInterval
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	observer := opts.Observer
	if observer == nil {
		observer = prometheus.ObserverFunc(func(float64) {})
	}

	return &Poller{
		name:     name,
		fetcher:  f,
		sink:     s,
		cfg:      cfg,
		interval: interval,
		opts:     opts,
		classifier: classifier.New(classifier.WithCatchAllHook(func(key string, v model.Scalar) {
			logger.Debugw("unhandled numeric value", "key", key, "value", v.String())
		})),
		logger:   logger,
		observer: observer,
	}
}

// Name returns the subsystem name.
func (p *Poller) Name() string { return p.name }

// Interval returns the effective poll interval.
func (p *Poller) Interval() time.Duration { return p.interval }

// Run waits a random jitter, then runs a cycle on every tick of a fixed-rate
// ticker anchored at the first cycle. A cycle that overruns the period is
// followed immediately by the next one; missed ticks do not pile up.
// Run returns only when ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	delay := Jitter(p.opts.MaxJitter)
	p.logger.Infof("starting subsystem %s with poll interval %s after %s", p.name, p.interval, delay)

	if delay > 0 {
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.cycle(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// cycle runs one fetch/classify/collect pass and records its duration.
func (p *Poller) cycle(ctx context.Context) {
	timer := prometheus.NewTimer(p.observer)
	defer timer.ObserveDuration()

	fctx := ctx
	if p.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, p.opts.FetchTimeout)
		defer cancel()
	}

	metrics, err := p.safeFetch(fctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.Errorf("poll %s metrics err %v", p.name, err)
		p.countError(observability.ErrorFetch)
		return
	}

	p.process(metrics)
}

// process classifies and forwards a batch, then commits it. It returns the
// number of samples forwarded. Unclassifiable metrics are logged and skipped;
// sink errors are ignored.
func (p *Poller) process(metrics []model.RawMetric) int {
	forwarded := 0
	for _, m := range metrics {
		t, err := p.classifier.ClassifyRaw(m)
		if err != nil {
			p.logger.Warnw("skip unclassifiable metric", "key", m.Key, "value", m.Value.String(), "error", err)
			p.countError(observability.ErrorClassify)
			continue
		}
		_ = p.sink.Collect(model.Sample{Key: m.Key, Row: m.Row, Type: t})
		forwarded++
	}
	p.sink.Commit()
	return forwarded
}

// safeFetch calls the fetcher with panic recovery.
func (p *Poller) safeFetch(ctx context.Context) (metrics []model.RawMetric, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("fetcher panicked: %v\n%s", v, debug.Stack())
		}
	}()
	return p.fetcher.Fetch(ctx)
}

func (p *Poller) countError(kind string) {
	if p.opts.Errors != nil {
		p.opts.Errors.WithLabelValues(p.name, kind).Inc()
	}
}

// Jitter returns a random delay in [0, limit). It is zero when limit <= 0.
func Jitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(limit)))
}

// RunAll runs every poller in its own goroutine and blocks until ctx is
// cancelled and all of them have returned.
func RunAll(ctx context.Context, pollers ...*Poller) error {
	var wg sync.WaitGroup
	for _, p := range pollers {
		wg.Add(1)
		go func(p *Poller) {
			defer wg.Done()
			_ = p.Run(ctx)
		}(p)
	}
	wg.Wait()
	return ctx.Err()
}
