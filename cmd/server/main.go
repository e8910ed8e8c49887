package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yegors/gnss-jamming/internal/analysis"
	"github.com/yegors/gnss-jamming/internal/api"
	"github.com/yegors/gnss-jamming/internal/config"
	"github.com/yegors/gnss-jamming/internal/harvest"
	"github.com/yegors/gnss-jamming/internal/region"
	"github.com/yegors/gnss-jamming/internal/storage/sqlite"
	"github.com/yegors/gnss-jamming/internal/websocket"
	"github.com/yegors/gnss-jamming/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting GNSS jamming server",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
	)

	// Per-day observation store
	store, err := sqlite.NewObservationStorage(cfg.Storage.SQLiteBasePath, cfg.Storage.FilePrefix, log)
	if err != nil {
		log.Error("Failed to create SQLite storage", logger.Error(err))
		os.Exit(1)
	}

	// Country borders tag harvested observations and fill the region list
	var tagger harvest.Tagger
	var countries []string
	if path := cfg.Maps.CountriesShapefile; path != "" {
		index, err := region.LoadCountries(path, cfg.Maps.CountryNameField, log)
		if err != nil {
			log.Warn("Country borders unavailable, observations will not be tagged",
				logger.String("path", path),
				logger.Error(err))
		} else {
			tagger = index
			countries = index.Names()
		}
	}

	var polygons *region.PolygonDir
	var polygonSource region.PolygonSource
	var polygonNames api.NameLister
	if cfg.Maps.CustomPolygonsDir != "" {
		polygons = region.NewPolygonDir(cfg.Maps.CustomPolygonsDir, log)
		polygonSource = polygons
		polygonNames = polygons
	}

	// Create WebSocket server
	wsServer := websocket.NewServer(log)
	go wsServer.Run()
	notifier := websocket.NewNotifier(wsServer)

	analysisService := analysis.NewService(store, polygonSource, cfg.Analysis.CellSizeDeg, log)
	analysisService.SetEvents(notifier)

	harvester, err := harvest.NewHarvester(harvest.Options{
		BaseURL:                 cfg.Harvest.BaseURL,
		SamplingIntervalMinutes: cfg.Harvest.SamplingIntervalMinutes,
		RequestTimeout:          time.Duration(cfg.Harvest.RequestTimeoutSecs) * time.Second,
		UserAgent:               cfg.Harvest.UserAgent,
	}, tagger, store, log)
	if err != nil {
		log.Error("Failed to create harvester", logger.Error(err))
		os.Exit(1)
	}
	harvester.SetEvents(notifier)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var scheduler *harvest.Scheduler
	if cfg.Harvest.Enabled {
		scheduler, err = harvest.NewScheduler(harvester, cfg.Harvest.Schedule, cfg.Harvest.LagDays, log)
		if err != nil {
			log.Error("Failed to create harvest scheduler", logger.Error(err))
			os.Exit(1)
		}
		if err := scheduler.Start(); err != nil {
			log.Error("Failed to start harvest scheduler", logger.Error(err))
			os.Exit(1)
		}
	} else {
		log.Info("Scheduled harvest disabled in configuration")
	}

	// Create API router
	router := api.NewRouter(ctx, store, analysisService, harvester, countries, polygonNames, cfg, log, wsServer)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", logger.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", logger.String("addr", addr), logger.Error(err))
			cancel()
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")

	if scheduler != nil {
		log.Info("Stopping harvest scheduler...")
		scheduler.Stop()
	}

	// Cancel the main context, stopping harvests started through the API
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", logger.Error(err))
	}

	log.Info("Server fully stopped")
}
