// Package client provides functions for reading the Elasticsearch REST API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/and161185/elasticsearch-exporter/internal/client/transport"
	"github.com/and161185/elasticsearch-exporter/internal/config"
	"github.com/and161185/elasticsearch-exporter/internal/utils"
)

// maxErrorBody caps how much of a failed response ends up in the error.
const maxErrorBody = 2048

// StatusError is returned for non-2xx upstream responses.
type StatusError struct {
	Path   string
	Status string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("GET %s: unexpected status %s", e.Path, e.Status)
	}
	return fmt.Sprintf("GET %s: unexpected status %s: %s", e.Path, e.Status, e.Body)
}

// Retriable reports whether the upstream may answer differently later.
func (e *StatusError) Retriable() bool {
	return e.Code >= http.StatusInternalServerError || e.Code == http.StatusTooManyRequests
}

// Client reads JSON documents from one Elasticsearch cluster.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the cluster configured in cfg.
func NewClient(cfg *config.ExporterConfig) *Client {
	return NewClientWithHTTP(cfg.ElasticURL, NewHTTPClient(cfg))
}

// DI: ready http.Client
func NewClientWithHTTP(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: hc}
}

// fabric http-client
func NewHTTPClient(cfg *config.ExporterConfig) *http.Client {
	hc := &http.Client{Timeout: cfg.Timeout}
	var rt http.RoundTripper = http.DefaultTransport
	if cfg.Username != "" {
		rt = &transport.BasicAuthRoundTripper{Base: rt, Username: cfg.Username, Password: cfg.Password}
	}
	hc.Transport = rt
	return hc
}

// URL returns the cluster base URL.
func (c *Client) URL() string { return c.baseURL }

// GetJSON performs GET path and decodes the body into out. Numbers are kept
// as json.Number so integers survive without float rounding.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Path:   path,
			Status: resp.Status,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(body)),
		}
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// ClusterName reads cluster_name from the root endpoint, retrying transient failures.
func (c *Client) ClusterName(ctx context.Context) (string, error) {
	var root struct {
		ClusterName string `json:"cluster_name"`
	}
	err := utils.WithRetry(ctx, func() error {
		return c.GetJSON(ctx, "/", &root)
	})
	if err != nil {
		return "", err
	}
	if root.ClusterName == "" {
		return "", errors.New("cluster_name is empty")
	}
	return root.ClusterName, nil
}
