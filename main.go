package main

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/arung-agamani/edifm/config"
	"github.com/arung-agamani/edifm/internal/auth"
	"github.com/arung-agamani/edifm/internal/broadcast"
	"github.com/arung-agamani/edifm/internal/control"
	"github.com/arung-agamani/edifm/internal/control/service"
	"github.com/arung-agamani/edifm/internal/metrics"
	"github.com/arung-agamani/edifm/internal/schedule"
	"github.com/arung-agamani/edifm/internal/selector"
	"github.com/arung-agamani/edifm/internal/sink"
	"github.com/arung-agamani/edifm/internal/station"
	"github.com/arung-agamani/edifm/internal/supervisor"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()

	slog.Info("Starting station",
		"target", cfg.Target,
		"catalog_dir", cfg.CatalogDir,
		"database_url", cfg.DatabaseURL,
	)

	metrics.Register(prometheus.DefaultRegisterer)

	ctx := context.Background()

	store, err := schedule.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to open schedule store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	pipelines, err := buildPipelines(cfg)
	if err != nil {
		slog.Error("Failed to build broadcast pipelines", "error", err)
		os.Exit(1)
	}

	fanout, err := broadcast.New(pipelines)
	if err != nil {
		slog.Error("Failed to initialize fan-out encoder", "error", err)
		os.Exit(1)
	}

	sel := selector.New(store)

	var stopFlag atomic.Bool
	loop := station.New(store, sel, fanout, cfg.CatalogDir, &stopFlag)
	sup := supervisor.New(store, fanout, loop, &stopFlag)

	if cfg.ControlAddr != "" {
		a := auth.New(auth.Config{
			Username:  cfg.ControlUsername,
			Password:  cfg.ControlPassword,
			JWTSecret: cfg.JWTSecret,
		})
		svc := service.NewRadioService(loop, sup, len(pipelines))
		controlServer := control.NewServer(cfg.ControlAddr, a, svc)

		controlCtx, cancelControl := context.WithCancel(ctx)
		defer cancelControl()
		go func() {
			if err := controlServer.Start(controlCtx); err != nil {
				slog.Error("Control surface exited with error", "error", err)
			}
		}()
		slog.Info("Control surface listening", "addr", cfg.ControlAddr)
	}

	if err := sup.Run(ctx); err != nil {
		slog.Error("Station exited with error", "error", err)
		os.Exit(1)
	}

	slog.Info("Station stopped")
}

// buildPipelines translates EDIFM_TARGET into the fan-out's pipeline
// configuration: two Icecast mountpoints at fixed bitrates, or a single
// local-file sink, per spec.md §6.
func buildPipelines(cfg *config.Config) ([]broadcast.PipelineConfig, error) {
	if cfg.Target == "icecast" {
		live := sink.NewNetworkSink(cfg.IcecastAddr, "/live.mp3", cfg.IcecastUser, cfg.IcecastPassword)
		low := sink.NewNetworkSink(cfg.IcecastAddr, "/low.mp3", cfg.IcecastUser, cfg.IcecastPassword)
		return []broadcast.PipelineConfig{
			{Name: "live", BitrateKbps: 320, Sink: live},
			{Name: "low", BitrateKbps: 128, Sink: low},
		}, nil
	}

	fileSink, err := sink.NewLocalFileSink(cfg.LocalStreamFile)
	if err != nil {
		return nil, err
	}
	return []broadcast.PipelineConfig{
		{Name: "file", BitrateKbps: 192, Sink: fileSink},
	}, nil
}
