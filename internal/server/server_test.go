package server_test

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/require"

	"github.com/and161185/elasticsearch-exporter/internal/server/testutils"
	"github.com/and161185/elasticsearch-exporter/model"
)

func TestRoutes(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		url        string
		wantStatus int
	}{
		{"metrics", http.MethodGet, "/metrics", http.StatusOK},
		{"metrics_trailing_slash", http.MethodGet, "/metrics/", http.StatusOK},
		{"health", http.MethodGet, "/health", http.StatusOK},
		{"index", http.MethodGet, "/", http.StatusOK},
		{"post_metrics", http.MethodPost, "/metrics", http.StatusMethodNotAllowed},
		{"unknown", http.MethodGet, "/update/gauge/x/1", http.StatusNotFound},
	}

	srv, _ := testutils.NewTestServer()
	r := srv.Router()

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.url, nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			resp := w.Result()
			defer resp.Body.Close()

			require.Equal(t, tc.wantStatus, resp.StatusCode)
		})
	}
}

func TestMetricsHandler_Exposition(t *testing.T) {
	srv, _ := testutils.NewTestServer()

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(w.Body)
	require.NoError(t, err)

	nodes, ok := families["elasticsearch_cat_health_node_total"]
	require.True(t, ok)
	require.Len(t, nodes.GetMetric(), 1)
	require.Equal(t, float64(3), nodes.GetMetric()[0].GetGauge().GetValue())

	labels := map[string]string{}
	for _, lp := range nodes.GetMetric()[0].GetLabel() {
		labels[lp.GetName()] = lp.GetValue()
	}
	require.Equal(t, map[string]string{"cluster": "test", "status": "green"}, labels)

	pct := families["elasticsearch_cat_health_active_shards_percent"]
	require.NotNil(t, pct)
	require.Equal(t, 99.5, pct.GetMetric()[0].GetGauge().GetValue())

	require.NotContains(t, families, "elasticsearch_cat_health_status")
}

func TestMetricsHandler_FollowsCommits(t *testing.T) {
	srv, col := testutils.NewTestServer()
	r := srv.Router()

	_ = col.Collect(model.Sample{Key: "node_total", Type: model.Gauge(5)})
	col.Commit()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(w.Body)
	require.NoError(t, err)
	require.Equal(t, float64(5), families["elasticsearch_cat_health_node_total"].GetMetric()[0].GetGauge().GetValue())
	require.NotContains(t, families, "elasticsearch_cat_health_active_shards_percent")
}

func TestIndexHandler(t *testing.T) {
	srv, _ := testutils.NewTestServer()
	srv.Cluster = "<prod>"

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	require.Contains(t, w.Header().Get("Content-Type"), "text/html")
	require.Contains(t, string(body), "<li>cat/health</li>")
	require.Contains(t, string(body), "<li>nodes/stats</li>")
	require.Contains(t, string(body), "&lt;prod&gt;")
}

func TestHealthHandler(t *testing.T) {
	srv, _ := testutils.NewTestServer()

	w := httptest.NewRecorder()
	srv.HealthHandler(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, "ok", w.Body.String())
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestRun_GracefulShutdown(t *testing.T) {
	srv, _ := testutils.NewTestServer()
	srv.Addr = freeAddr(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + srv.Addr + "/health")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRun_ListenError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	srv, _ := testutils.NewTestServer()
	srv.Addr = l.Addr().String()

	err = srv.Run(context.Background())
	require.ErrorContains(t, err, "listen")
}
