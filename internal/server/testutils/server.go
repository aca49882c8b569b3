// Package testutils builds servers pre-loaded with exporter data for tests.
package testutils

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/and161185/elasticsearch-exporter/internal/server"
	"github.com/and161185/elasticsearch-exporter/model"
	"github.com/and161185/elasticsearch-exporter/storage/inmemory"
)

// NewTestServer returns a server whose registry holds one committed
// cat/health snapshot for cluster "test".
func NewTestServer() (*server.Server, *inmemory.Collection) {
	col := inmemory.NewCollection("cat/health", model.SubsystemConfig{
		ConstLabels: map[string]string{"cluster": "test"},
	}, nil)
	for _, s := range []model.Sample{
		{Key: "status", Type: model.Label("green")},
		{Key: "node_total", Type: model.Gauge(3)},
		{Key: "active_shards_percent", Type: model.GaugeF(99.5)},
	} {
		_ = col.Collect(s)
	}
	col.Commit()

	reg := prometheus.NewRegistry()
	reg.MustRegister(col.Collector())

	return server.NewServer("127.0.0.1:0", reg, []string{"cat/health", "nodes/stats"}, "test", zap.NewNop().Sugar()), col
}
