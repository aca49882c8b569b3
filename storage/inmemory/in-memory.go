// Package inmemory keeps the last committed samples of a subsystem in memory
// and exposes them to a Prometheus registry.
package inmemory

import (
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/and161185/elasticsearch-exporter/model"
	"github.com/and161185/elasticsearch-exporter/storage"
)

// Namespace prefixes every exported metric name.
const Namespace = "elasticsearch"

type row struct {
	labels map[string]string
	values map[string]float64
}

// Collection is the metric sink of one subsystem. Collect and Commit are
// called by the subsystem's poller; the registry reads the committed
// snapshot concurrently through Collector.
type Collection struct {
	subsystem string
	prefix    string
	cfg       model.SubsystemConfig
	logger    *zap.SugaredLogger

	mu      sync.Mutex
	pending map[int]*row

	snapMu   sync.RWMutex
	snapshot []prometheus.Metric
}

// NewCollection creates an empty collection for subsystem.
func NewCollection(subsystem string, cfg model.SubsystemConfig, logger *zap.SugaredLogger) *Collection {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Collection{
		subsystem: subsystem,
		prefix:    SanitizeName(subsystem),
		cfg:       cfg,
		logger:    logger,
		pending:   make(map[int]*row),
	}
}

// Subsystem returns the subsystem name the collection was created for.
func (c *Collection) Subsystem() string { return c.subsystem }

// Collect stages one sample into the running cycle.
func (c *Collection) Collect(s model.Sample) error {
	if _, skip := c.cfg.SkipMetrics[s.Key]; skip {
		return storage.ErrSkipped
	}
	if s.Type.Kind == model.KindNull {
		return storage.ErrSkipped
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.pending[s.Row]
	if !ok {
		r = &row{labels: map[string]string{}, values: map[string]float64{}}
		c.pending[s.Row] = r
	}

	if s.Type.Kind == model.KindLabel {
		r.labels[SanitizeName(s.Key)] = s.Type.Text
		return nil
	}
	if v, ok := s.Type.Sample(); ok {
		r.values[s.Key] = v
	}
	return nil
}

// Commit turns the staged rows into series and replaces the snapshot.
func (c *Collection) Commit() {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[int]*row)
	c.mu.Unlock()

	metrics := c.build(pending)

	c.snapMu.Lock()
	c.snapshot = metrics
	c.snapMu.Unlock()
}

// Len returns the number of series in the committed snapshot.
func (c *Collection) Len() int {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return len(c.snapshot)
}

type family struct {
	name   string
	key    string
	labels map[string]struct{}
	rows   []int
}

func (c *Collection) build(pending map[int]*row) []prometheus.Metric {
	rowIDs := make([]int, 0, len(pending))
	for id := range pending {
		rowIDs = append(rowIDs, id)
	}
	sort.Ints(rowIDs)

	rowLabels := make(map[int]map[string]string, len(pending))
	families := map[string]*family{}
	for _, id := range rowIDs {
		r := pending[id]
		labels := c.labelsFor(r)
		rowLabels[id] = labels

		for key := range r.values {
			name := prometheus.BuildFQName(Namespace, c.prefix, SanitizeName(key))
			f, ok := families[name]
			if !ok {
				f = &family{name: name, key: key, labels: map[string]struct{}{}}
				families[name] = f
			}
			for l := range labels {
				f.labels[l] = struct{}{}
			}
			f.rows = append(f.rows, id)
		}
	}

	names := make([]string, 0, len(families))
	for n := range families {
		names = append(names, n)
	}
	sort.Strings(names)

	var (
		res  []prometheus.Metric
		seen = map[uint64]struct{}{}
	)
	for _, n := range names {
		f := families[n]
		labelNames := make([]string, 0, len(f.labels))
		for l := range f.labels {
			labelNames = append(labelNames, l)
		}
		sort.Strings(labelNames)

		desc := prometheus.NewDesc(f.name, "Elasticsearch "+c.subsystem+" "+f.key, labelNames, nil)
		for _, id := range f.rows {
			values := make([]string, len(labelNames))
			for i, l := range labelNames {
				values[i] = rowLabels[id][l]
			}

			h := seriesHash(f.name, values)
			if _, dup := seen[h]; dup {
				continue
			}
			seen[h] = struct{}{}

			m, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, pending[id].values[f.key], values...)
			if err != nil {
				c.logger.Debugw("drop series", "subsystem", c.subsystem, "metric", f.name, "error", err)
				continue
			}
			res = append(res, m)
		}
	}
	return res
}

// labelsFor applies skip/include filters to the row labels and adds the const labels.
func (c *Collection) labelsFor(r *row) map[string]string {
	res := make(map[string]string, len(r.labels)+len(c.cfg.ConstLabels))
	for k, v := range r.labels {
		if _, skip := c.cfg.SkipLabels[k]; skip {
			continue
		}
		if len(c.cfg.IncludeLabels) > 0 {
			if _, ok := c.cfg.IncludeLabels[k]; !ok {
				continue
			}
		}
		res[k] = v
	}
	for k, v := range c.cfg.ConstLabels {
		res[SanitizeName(k)] = v
	}
	return res
}

func seriesHash(name string, values []string) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(name)
	for _, v := range values {
		_, _ = d.Write([]byte{0xff})
		_, _ = d.WriteString(v)
	}
	return d.Sum64()
}

// Collector exposes the committed snapshot to a Prometheus registry.
// It is unchecked: label sets follow the upstream data.
func (c *Collection) Collector() prometheus.Collector {
	return exposition{c: c}
}

type exposition struct {
	c *Collection
}

func (e exposition) Describe(chan<- *prometheus.Desc) {}

func (e exposition) Collect(ch chan<- prometheus.Metric) {
	e.c.snapMu.RLock()
	defer e.c.snapMu.RUnlock()
	for _, m := range e.c.snapshot {
		ch <- m
	}
}

// SanitizeName maps an arbitrary key onto the Prometheus name alphabet.
func SanitizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 1)
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
