// Package buildinfo carries the version stamped in at link time.
package buildinfo

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Set with -ldflags "-X github.com/and161185/elasticsearch-exporter/internal/buildinfo.BuildVersion=..."
var (
	BuildVersion string
	BuildDate    string
	BuildCommit  string
)

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// LogBuildInfo writes the build banner.
func LogBuildInfo(logger *zap.SugaredLogger) {
	logger.Infof("Build version: %s", orNA(BuildVersion))
	logger.Infof("Build date: %s", orNA(BuildDate))
	logger.Infof("Build commit: %s", orNA(BuildCommit))
}

// Collector exports elasticsearch_exporter_build_info, constant 1.
func Collector() prometheus.Collector {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "elasticsearch_exporter",
		Name:      "build_info",
		Help:      "Build information of the exporter, value is always 1.",
		ConstLabels: prometheus.Labels{
			"version": orNA(BuildVersion),
			"date":    orNA(BuildDate),
			"commit":  orNA(BuildCommit),
		},
	}, func() float64 { return 1 })
}
