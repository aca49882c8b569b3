package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/elasticsearch-exporter/internal/config"
	"github.com/and161185/elasticsearch-exporter/internal/utils"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return NewClient(&config.ExporterConfig{ElasticURL: ts.URL + "/", Timeout: time.Second})
}

func fastRetries(t *testing.T) {
	t.Helper()
	old := utils.RetryDelays
	utils.RetryDelays = []time.Duration{time.Millisecond, time.Millisecond}
	t.Cleanup(func() { utils.RetryDelays = old })
}

func TestGetJSON_KeepsNumbers(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/_cluster/health", r.URL.Path)
		require.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{"number_of_nodes": 3, "big": 9007199254740993, "ratio": 0.5}`))
	})

	var doc map[string]any
	require.NoError(t, c.GetJSON(context.Background(), "/_cluster/health", &doc))

	require.Equal(t, json.Number("3"), doc["number_of_nodes"])
	require.Equal(t, json.Number("9007199254740993"), doc["big"])
	require.Equal(t, json.Number("0.5"), doc["ratio"])
}

func TestGetJSON_StatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`  {"error":"master_not_discovered_exception"}  `))
	})

	var doc any
	err := c.GetJSON(context.Background(), "/_nodes/stats", &doc)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusServiceUnavailable, se.Code)
	require.True(t, se.Retriable())
	require.Contains(t, err.Error(), "/_nodes/stats")
	require.Contains(t, err.Error(), `{"error":"master_not_discovered_exception"}`)
	require.True(t, utils.IsRetriable(err))
}

func TestGetJSON_BadBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})

	var doc any
	err := c.GetJSON(context.Background(), "/", &doc)
	require.ErrorContains(t, err, "decode /")
	require.False(t, utils.IsRetriable(err))
}

func TestGetJSON_BasicAuth(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u, p, ok := r.BasicAuth(); !ok || u != "elastic" || p != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	c := NewClient(&config.ExporterConfig{ElasticURL: ts.URL, Timeout: time.Second, Username: "elastic", Password: "pw"})
	var doc any
	require.NoError(t, c.GetJSON(context.Background(), "/", &doc))

	anon := NewClient(&config.ExporterConfig{ElasticURL: ts.URL, Timeout: time.Second})
	var se *StatusError
	require.ErrorAs(t, anon.GetJSON(context.Background(), "/", &doc), &se)
	require.False(t, se.Retriable())
}

func TestGetJSON_ContextCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var doc any
	err := c.GetJSON(ctx, "/", &doc)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestClusterName(t *testing.T) {
	fastRetries(t)

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"name":"node-1","cluster_name":"prod-logs","version":{"number":"8.13.0"}}`))
	})

	name, err := c.ClusterName(context.Background())
	require.NoError(t, err)
	require.Equal(t, "prod-logs", name)
	require.Equal(t, int32(2), calls.Load())
}

func TestClusterName_Empty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"node-1"}`))
	})

	_, err := c.ClusterName(context.Background())
	require.ErrorContains(t, err, "cluster_name")
}

func TestNewClientWithHTTP_TrimsSlash(t *testing.T) {
	c := NewClientWithHTTP("http://es:9200///", http.DefaultClient)
	require.Equal(t, "http://es:9200", c.URL())
}
