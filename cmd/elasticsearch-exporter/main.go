package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/and161185/elasticsearch-exporter/internal/buildinfo"
	"github.com/and161185/elasticsearch-exporter/internal/client"
	"github.com/and161185/elasticsearch-exporter/internal/config"
	"github.com/and161185/elasticsearch-exporter/internal/exporter"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.NewExporterConfig()
	if err != nil {
		panic(err)
	}
	defer func() { _ = cfg.Logger.Sync() }()

	buildinfo.LogBuildInfo(cfg.Logger)

	cfg.Logger.Infof("Exporter config: Addr=%s, ElasticURL=%s, PollInterval=%s, MaxJitter=%s, Timeout=%s, Subsystems=%v, Auth set=%t, Config=%q",
		cfg.ListenAddr,
		cfg.ElasticURL,
		cfg.PollInterval,
		cfg.MaxJitter,
		cfg.Timeout,
		cfg.Subsystems,
		cfg.Username != "",
		cfg.ConfigPath,
	)

	exp, err := exporter.New(ctx, cfg, client.NewClient(cfg))
	if err != nil {
		cfg.Logger.Fatal(err)
	}
	if err := exp.Run(ctx); err != nil {
		cfg.Logger.Fatal(err)
	}
	cfg.Logger.Info("exporter stopped")
}
