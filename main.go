package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"aurafx-engine/config"
	"aurafx-engine/internal/analysis"
	"aurafx-engine/internal/analyzer"
	"aurafx-engine/internal/api"
	"aurafx-engine/internal/binance"
	"aurafx-engine/internal/cache"
	"aurafx-engine/internal/database"
	"aurafx-engine/internal/events"
	"aurafx-engine/internal/logging"
	"aurafx-engine/internal/metrics"
	"aurafx-engine/internal/scanner"
)

func main() {
	configPath := flag.String("config", "", "config file (JSON or YAML); defaults to $AURAFX_CONFIG or config.json")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(&logging.Config{
		Level:       cfg.LoggingConfig.Level,
		Output:      cfg.LoggingConfig.Output,
		JSONFormat:  cfg.LoggingConfig.JSONFormat,
		IncludeFile: cfg.LoggingConfig.IncludeFile,
		Component:   "main",
	})
	logging.SetDefault(logger)
	logger.Info("Structured logging initialized")

	ctx := context.Background()

	// Initialize event bus
	eventBus := events.GetEventBus()

	// Initialize database
	var db *database.DB
	if cfg.DatabaseConfig.Enabled {
		d := cfg.DatabaseConfig
		db, err = database.NewDB(ctx, database.Config{
			Host:     d.Host,
			Port:     d.Port,
			User:     d.User,
			Password: d.Password,
			Database: d.Database,
			SSLMode:  d.SSLMode,
			MaxConns: d.MaxConns,
			MinConns: d.MinConns,
		})
		if err != nil {
			logger.Fatal("Failed to connect to database", "error", err.Error())
		}
		defer db.Close()

		if err := db.RunMigrations(ctx); err != nil {
			logger.Fatal("Failed to run migrations", "error", err.Error())
		}
	}

	// Initialize Redis; the engine runs without it
	var (
		cacheService *cache.CacheService
		store        cache.Store
	)
	if cfg.RedisConfig.Enabled {
		cacheService, err = cache.NewCacheService(cfg.RedisConfig)
		if err != nil {
			logger.WithError(err).Warn("Redis cache disabled")
		} else {
			defer cacheService.Close()
			store = cacheService
		}
	}

	// Candle source
	var (
		upstream  analysis.CandleSource
		klineAPI  *binance.Client
		candleDB  *database.CandleRepository
		reportsDB *database.ReportRepository
	)
	if db != nil {
		candleDB = database.NewCandleRepository(db.Pool)
		reportsDB = database.NewReportRepository(db.Pool)
	}
	switch cfg.SourceConfig.Provider {
	case "mock":
		upstream = binance.NewMockClient()
	case "postgres":
		upstream = candleDB
	default:
		klineAPI = binance.NewClient(cfg.BinanceConfig.BaseURL, cfg.BinanceConfig.TimeoutDuration())
		upstream = klineAPI
	}
	source := cache.NewCachedCandleSource(upstream, store)
	logger.Info("Candle source initialized", "provider", cfg.SourceConfig.Provider, "redis", store != nil)

	// Analyzer service
	opts, err := cfg.AnalysisConfig.Options()
	if err != nil {
		logger.Fatal("Invalid analysis config", "error", err.Error())
	}
	primaryTF, _ := analysis.ParseTimeframe(cfg.AnalysisConfig.PrimaryTimeframe)
	higherTF, _ := analysis.ParseTimeframe(cfg.AnalysisConfig.HigherTimeframe)

	svc := analyzer.NewService(source, analyzer.Config{
		Options:          opts,
		PrimaryTimeframe: primaryTF,
		HigherTimeframe:  higherTF,
		CandleLimit:      cfg.AnalysisConfig.CandleLimit,
	})
	svc.SetEventBus(eventBus)

	var reportCache *cache.ReportCache
	if store != nil {
		reportCache = cache.NewReportCache(store, cache.DefaultReportTTL)
		svc.SetReportCache(reportCache)
	}
	if reportsDB != nil {
		svc.SetReportStore(reportsDB)
	}
	if cfg.SourceConfig.Archive && candleDB != nil && cfg.SourceConfig.Provider != "postgres" {
		svc.SetCandleArchive(candleDB)
	}

	// Watchlist scanner
	var watchlist *scanner.Scanner
	if cfg.ScannerConfig.Enabled {
		watchlist, err = scanner.NewScanner(svc, scanner.ScannerConfig{
			Enabled:     true,
			Schedule:    cfg.ScannerConfig.Schedule,
			Symbols:     cfg.ScannerConfig.Symbols,
			WorkerCount: cfg.ScannerConfig.WorkerCount,
			Timeout:     time.Duration(cfg.ScannerConfig.Timeout) * time.Second,
		})
		if err != nil {
			logger.Fatal("Invalid scanner config", "error", err.Error())
		}
		watchlist.SetEventBus(eventBus)
		if reportCache != nil {
			watchlist.SetReportCache(reportCache)
		}
	}

	// Metrics
	metricsPath := ""
	var metricsServer interface{ Shutdown(context.Context) error }
	if cfg.MetricsConfig.Enabled {
		if cfg.MetricsConfig.Port > 0 {
			metricsServer = metrics.Serve(fmt.Sprintf(":%d", cfg.MetricsConfig.Port))
			logger.Info("Metrics listener started", "port", cfg.MetricsConfig.Port)
		} else {
			metricsPath = cfg.MetricsConfig.Path
		}
	}

	// HTTP API
	srvCfg := cfg.ServerConfig
	server := api.NewServer(api.ServerConfig{
		Port:           srvCfg.Port,
		Host:           srvCfg.Host,
		ProductionMode: cfg.LoggingConfig.Level != "debug",
		AllowedOrigins: splitOrigins(srvCfg.AllowedOrigins),
		ReadTimeout:    time.Duration(srvCfg.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(srvCfg.WriteTimeout) * time.Second,
		RateLimit:      srvCfg.RateLimit,
		MetricsPath:    metricsPath,
	}, svc, eventBus)

	if watchlist != nil {
		server.SetScanner(watchlist)
	}
	if reportCache != nil {
		server.SetReportCache(reportCache)
	}
	if db != nil {
		server.AddHealthCheck("database", db.HealthCheck)
		server.SetReportHistory(reportsDB)
	}
	if store != nil {
		server.AddHealthCheck("redis", cacheService.Ping)
		server.SetCacheInvalidator(cacheService)
		server.AddStatusProvider("redis", func() interface{} { return cacheService.GetStats() })
	}
	if klineAPI != nil {
		server.AddStatusProvider("binance", func() interface{} { return klineAPI.RateLimiter().GetStatus() })
	}
	server.AddStatusProvider("candle_cache", func() interface{} {
		hits, misses, rate := source.Memory().GetStats()
		return map[string]interface{}{
			"entries":  source.Memory().Len(),
			"hits":     hits,
			"misses":   misses,
			"hit_rate": rate,
		}
	})

	// Expired in-process candle windows are purged periodically
	janitorDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := source.Memory().Purge(); n > 0 {
					logger.Debug("Purged expired candle windows", "count", n)
				}
			case <-janitorDone:
				return
			}
		}
	}()

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("HTTP server failed", "error", err.Error())
		}
	}()

	if watchlist != nil {
		if err := watchlist.Start(); err != nil {
			logger.Fatal("Failed to start scanner", "error", err.Error())
		}
	}

	logger.Info("AuraFX engine started",
		"port", srvCfg.Port,
		"primary", string(primaryTF),
		"higher", string(higherTF),
		"scanner", watchlist != nil)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(srvCfg.ShutdownTimeout)*time.Second)
	defer cancel()

	if watchlist != nil {
		watchlist.Stop()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Error shutting down web server")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Error shutting down metrics listener")
		}
	}
	close(janitorDone)

	logger.Info("Shutdown complete")
}

func splitOrigins(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
