// Package server exposes the exporter over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/and161185/elasticsearch-exporter/internal/server/middleware"
)

// ShutdownTimeout bounds the graceful shutdown in Run.
const ShutdownTimeout = 5 * time.Second

// Server serves /metrics, /health and an index page.
type Server struct {
	Addr       string
	Gatherer   prometheus.Gatherer
	Subsystems []string
	Cluster    string
	Logger     *zap.SugaredLogger
}

// NewServer creates a server; a nil logger is replaced by a no-op one.
func NewServer(addr string, g prometheus.Gatherer, subsystems []string, cluster string, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Server{
		Addr:       addr,
		Gatherer:   g,
		Subsystems: subsystems,
		Cluster:    cluster,
		Logger:     logger,
	}
}

// Router builds the HTTP routes.
func (srv *Server) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(chiMiddleware.StripSlashes)
	router.Use(chiMiddleware.Recoverer)
	router.Use(middleware.LogMiddleware(srv.Logger))

	router.Method(http.MethodGet, "/metrics", srv.MetricsHandler())
	router.Get("/health", srv.HealthHandler)
	router.With(middleware.CompressMiddleware).Get("/", srv.IndexHandler)

	return router
}

// Run listens on Addr until ctx is cancelled, then shuts down gracefully.
func (srv *Server) Run(ctx context.Context) error {
	hs := &http.Server{
		Addr:              srv.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		srv.Logger.Infof("listening on %s", srv.Addr)
		errCh <- hs.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen %s: %w", srv.Addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// MetricsHandler serves the registry in the Prometheus exposition format.
func (srv *Server) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(srv.Gatherer, promhttp.HandlerOpts{
		ErrorLog:      zap.NewStdLog(srv.Logger.Desugar()),
		ErrorHandling: promhttp.ContinueOnError,
	})
}

func (srv *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (srv *Server) IndexHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	_, err := fmt.Fprintf(w, "<html><head><title>Elasticsearch exporter</title></head><body>"+
		"<h1>Elasticsearch exporter</h1><p>cluster: %s</p><p><a href=\"/metrics\">metrics</a></p><ul>",
		html.EscapeString(srv.Cluster))
	if err != nil {
		srv.Logger.Errorf("failed to start response body for index: %v", err)
		return
	}

	for _, s := range srv.Subsystems {
		if _, err = fmt.Fprintf(w, "<li>%s</li>", html.EscapeString(s)); err != nil {
			srv.Logger.Errorf("failed to write index entry for subsystem [name=%s]: %v", s, err)
			return
		}
	}

	if _, err = fmt.Fprintln(w, "</ul></body></html>"); err != nil {
		srv.Logger.Errorf("failed to end response body for index: %v", err)
	}
}
