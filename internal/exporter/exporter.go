// Package exporter wires the pollers, their collections and the HTTP server.
package exporter

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/and161185/elasticsearch-exporter/internal/buildinfo"
	"github.com/and161185/elasticsearch-exporter/internal/config"
	"github.com/and161185/elasticsearch-exporter/internal/elastic"
	"github.com/and161185/elasticsearch-exporter/internal/observability"
	"github.com/and161185/elasticsearch-exporter/internal/poller"
	"github.com/and161185/elasticsearch-exporter/internal/server"
	"github.com/and161185/elasticsearch-exporter/storage/inmemory"
)

// Upstream is the Elasticsearch API as seen by the exporter.
type Upstream interface {
	elastic.Getter
	ClusterName(ctx context.Context) (string, error)
}

// Exporter owns everything one process runs.
type Exporter struct {
	cfg      *config.ExporterConfig
	logger   *zap.SugaredLogger
	cluster  string
	registry *prometheus.Registry
	metrics  *observability.Metrics

	pollers     []*poller.Poller
	collections map[string]*inmemory.Collection
	server      *server.Server
}

// New resolves the cluster name and builds one poller and collection per
// enabled subsystem, all registered on a fresh registry.
func New(ctx context.Context, cfg *config.ExporterConfig, up Upstream) (*Exporter, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	names, err := enabledSubsystems(cfg)
	if err != nil {
		return nil, err
	}

	cluster, err := up.ClusterName(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve cluster name: %w", err)
	}
	logger.Infof("connected to cluster %s at %s", cluster, cfg.ElasticURL)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		buildinfo.Collector(),
	)
	m, err := observability.NewMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("register exporter metrics: %w", err)
	}

	e := &Exporter{
		cfg:         cfg,
		logger:      logger,
		cluster:     cluster,
		registry:    reg,
		metrics:     m,
		collections: make(map[string]*inmemory.Collection, len(names)),
	}

	for _, name := range names {
		fetcher, err := elastic.NewFetcher(name, up)
		if err != nil {
			return nil, err
		}

		sc := cfg.Subsystem(name)
		if _, ok := sc.ConstLabels["cluster"]; !ok {
			sc.ConstLabels["cluster"] = cluster
		}

		col := inmemory.NewCollection(name, sc, logger)
		if err := reg.Register(col.Collector()); err != nil {
			return nil, fmt.Errorf("register %s: %w", name, err)
		}
		e.collections[name] = col

		e.pollers = append(e.pollers, poller.New(name, fetcher, col, sc, poller.Options{
			DefaultInterval: cfg.PollInterval,
			MaxJitter:       cfg.MaxJitter,
			FetchTimeout:    cfg.Timeout,
			Observer:        m.CycleObserver("/"+name, cluster),
			Errors:          m.ErrorsTotal,
			Logger:          logger,
		}))
	}

	e.server = server.NewServer(cfg.ListenAddr, reg, names, cluster, logger)
	return e, nil
}

func enabledSubsystems(cfg *config.ExporterConfig) ([]string, error) {
	if len(cfg.Subsystems) == 0 {
		return elastic.Subsystems(), nil
	}
	seen := make(map[string]struct{}, len(cfg.Subsystems))
	var names []string
	for _, name := range cfg.Subsystems {
		if _, ok := elastic.Lookup(name); !ok {
			return nil, fmt.Errorf("%w: %s (known: %v)", elastic.ErrUnknownSubsystem, name, elastic.Subsystems())
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names, nil
}

// Cluster returns the resolved cluster name.
func (e *Exporter) Cluster() string { return e.cluster }

// Registry returns the registry served on /metrics.
func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

// Pollers returns the pollers in subsystem order.
func (e *Exporter) Pollers() []*poller.Poller { return e.pollers }

// Server returns the HTTP server.
func (e *Exporter) Server() *server.Server { return e.server }

// Run serves HTTP and polls every subsystem until ctx is cancelled or the
// server fails. Poller failures never stop the exporter.
func (e *Exporter) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return e.server.Run(gctx)
	})
	g.Go(func() error {
		_ = poller.RunAll(gctx, e.pollers...)
		return nil
	})

	return g.Wait()
}
