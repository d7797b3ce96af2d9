package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/headway-transit/headway"
	"github.com/headway-transit/headway/gtfs"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("config error", "error", err)
		os.Exit(1)
	}

	planner := *headway.DefaultHeadway
	planner.Logger = logger
	if cfg.Workers > 0 {
		planner.WorkerCount = cfg.Workers
	}
	if cfg.QueryTimeout > 0 {
		planner.QueryTimeout = cfg.QueryTimeout
	}

	metrics := headway.NewMetrics()

	loader := func(window headway.Window) (*headway.Snapshot, error) {
		if cfg.CachePath != "" {
			if sn, err := headway.ReadSnapshotFile(cfg.CachePath); err == nil && sn.Window.Hour.Equal(window.Hour) {
				logger.Info("loaded snapshot from cache", "path", cfg.CachePath, "hour", window.Hour)
				return sn, nil
			}
		}

		sn, err := gtfs.Load(cfg.DataDir, gtfs.Options{
			Window:  window,
			Planner: &planner,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}

		if cfg.CachePath != "" {
			if err := headway.WriteSnapshotFile(cfg.CachePath, sn); err != nil {
				logger.Warn("failed to write snapshot cache", "path", cfg.CachePath, "error", err)
			}
		}
		return sn, nil
	}

	manager := headway.NewManager(loader, headway.RealClock{}, logger, metrics)

	srv := &server{
		planner: &planner,
		manager: manager,
		metrics: metrics,
		logger:  logger,
	}

	manager.Subscribe(func(info headway.SyncInfo) {
		srv.rebuildIndexes()
		logger.Info("sync_complete",
			"last_synced_hour", info.LastSyncedHour,
			"window_start", info.WindowStart,
			"window_end", info.WindowEnd)
	})

	logger.Info("loading schedule", "dataDir", cfg.DataDir)
	start := time.Now()
	if _, err := manager.Refresh(time.Now()); err != nil {
		logger.Error("initial schedule load failed", "error", err)
		os.Exit(1)
	}
	logger.Info("schedule loaded", "took", time.Since(start))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	go manager.Run(ctx)

	engine := gin.Default()

	engine.GET("/api/route", srv.handleRoute)
	engine.GET("/api/stops", srv.handleStops)
	engine.GET("/api/nearest-stop", srv.handleNearestStop)
	engine.GET("/api/all-stops-geojson", srv.handleAllStopsGeoJSON)
	engine.GET("/health", srv.handleHealth)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	if err := engine.Run(cfg.Addr); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}
