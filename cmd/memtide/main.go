package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/memtide/memtide/config"
	"github.com/memtide/memtide/pkg/api"
	"github.com/memtide/memtide/pkg/api/handlers"
	"github.com/memtide/memtide/pkg/cache"
	"github.com/memtide/memtide/pkg/engine"
	"github.com/memtide/memtide/pkg/logger"
	"github.com/memtide/memtide/pkg/memory"
	"github.com/memtide/memtide/pkg/metrics"
	"github.com/memtide/memtide/pkg/telemetry/tracing"
	"github.com/memtide/memtide/pkg/version"
)

var (
	configPath  = flag.String("config", "", "Path to configuration file")
	versionFlag = flag.Bool("version", false, "Print version information")
	helpFlag    = flag.Bool("help", false, "Print help information")

	// CLI overrides
	appName    = flag.String("app-name", "", "Override app name")
	serverPort = flag.Int("port", 0, "Override server port")
	logLevel   = flag.String("log-level", "", "Override log level")
	debugMode  = flag.Bool("debug", false, "Enable debug mode")
)

func main() {
	flag.Parse()

	// Print help
	if *helpFlag {
		printHelp()
		os.Exit(0)
	}

	// Print version
	if *versionFlag {
		printVersion()
		os.Exit(0)
	}

	// Build CLI overrides map
	overrides := buildOverrides()

	// Load configuration
	cfg, err := config.Load(*configPath, overrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration:\n%s\n", err)
		os.Exit(1)
	}

	// Initialize logger with configuration
	logCfg := &logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	if cfg.App.Debug || *debugMode {
		logCfg.Level = logger.DebugLevel
	}
	log := logger.New(logCfg)
	logger.SetGlobal(log)

	log.Info("Starting Memtide",
		"version", version.Version,
		"buildTime", version.BuildTime,
		"gitCommit", version.GitCommit,
		"app", cfg.App.Name,
		"environment", cfg.App.Environment,
	)

	log.Debug("Configuration loaded", "config", cfg.String())

	// Create root context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Initialize tracing
	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, cfg.App.Name, version.Version)
	if err != nil {
		log.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Initialize cache backend
	memCache, cacheCheck, err := buildCache(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize cache", "error", err)
		os.Exit(1)
	}

	// Initialize metrics manager
	metricsCfg := metrics.DefaultConfig()
	metricsCfg.Enabled = cfg.Metrics.Enabled
	metricsCfg.Port = cfg.Metrics.Port
	metricsCfg.Path = cfg.Metrics.Path
	metricsManager := metrics.NewManager(metricsCfg)

	// Mirror cache counters and snapshot gauges into Prometheus
	if memCache != nil {
		memCache.Metrics().SetRecorder(metricsManager)
		go runCacheMetricsPublisher(ctx, memCache, metricsManager, 15*time.Second)
	}

	// Start metrics server if enabled
	if metricsManager.Enabled() {
		go func() {
			log.Info("Starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
			if err := metricsManager.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
				log.Error("Metrics server error", "error", err)
			}
		}()
	}

	// Initialize the retention engine
	engCfg := engine.Config{
		Decay: memory.DecayParams{
			BaseDecayRate:       cfg.Decay.BaseDecayRate,
			AccessBoostFactor:   cfg.Decay.AccessBoostFactor,
			ImportanceThreshold: cfg.Decay.ImportanceThreshold,
			ArchiveThreshold:    cfg.Decay.ArchiveThreshold,
			CheckInterval:       cfg.Decay.CheckInterval,
		},
		Cluster: memory.ClusterParams{
			MinClusterSize:      cfg.Clustering.MinClusterSize,
			SimilarityThreshold: cfg.Clustering.SimilarityThreshold,
			MergeThreshold:      cfg.Clustering.MergeThreshold,
			CoherenceThreshold:  cfg.Clustering.CoherenceThreshold,
			MaxClusters:         cfg.Clustering.MaxClusters,
			AttachThreshold:     cfg.Clustering.AttachThreshold,
		},
		Search: engine.SearchParams{
			SparseWeight: cfg.Search.SparseWeight,
			DenseWeight:  cfg.Search.DenseWeight,
			TopK:         cfg.Search.TopK,
			RRFConstant:  cfg.Search.RRFConstant,
		},
		BM25: memory.BM25Params{
			K1: cfg.BM25.K1,
			B:  cfg.BM25.B,
		},
		CacheTTL: cfg.Cache.DefaultTTL,
	}
	engOpts := []engine.Option{
		engine.WithLogger(log),
		engine.WithMetrics(metricsManager),
	}
	if memCache != nil {
		engOpts = append(engOpts, engine.WithCache(memCache))
	}
	eng := engine.New(engCfg, engOpts...)

	// Initialize HTTP server with handlers
	readyChecks := map[string]handlers.ReadyCheck{}
	if cacheCheck != nil {
		readyChecks["cache"] = cacheCheck
	}

	apiHandlers := &api.Handlers{
		Memory:  handlers.NewMemoryHandler(eng, log),
		Search:  handlers.NewSearchHandler(eng, log),
		Profile: handlers.NewProfileHandler(eng, log),
		Cache:   handlers.NewCacheHandler(memCache, log),
		Health:  handlers.NewHealthHandler(version.Version, readyChecks),
		Metrics: metricsManager,
	}

	httpServer := api.NewHTTPServer(cfg, log, apiHandlers)

	// Start HTTP server in a separate goroutine
	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
		if err := httpServer.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	log.Info("Memtide is running",
		"http_port", cfg.Server.Port,
		"metrics_port", cfg.Metrics.Port,
		"cache_backend", cfg.Cache.Backend,
	)
	log.Info("Press Ctrl+C to stop")

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigChan:
		log.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErrChan:
		log.Error("HTTP server error", "error", err)
	case <-ctx.Done():
		log.Info("Context cancelled")
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	// Shutdown HTTP server first
	log.Info("Shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down HTTP server", "error", err)
	}

	log.Info("Flushing traces")
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("Error shutting down tracing", "error", err)
	}

	log.Info("Memtide stopped gracefully")
}

// buildCache constructs the configured cache layer. The "none" backend
// returns a nil cache; every caller treats that as cache-disabled.
func buildCache(ctx context.Context, cfg *config.Config, log logger.Logger) (*cache.Cache, handlers.ReadyCheck, error) {
	cacheCfg := cache.Config{
		Prefix:         cfg.Cache.Prefix,
		DefaultTTL:     cfg.Cache.DefaultTTL,
		MaxRetries:     cfg.Cache.MaxRetries,
		RetryBaseDelay: cfg.Cache.RetryBaseDelay,
		OpTimeout:      cfg.Cache.OpTimeout,
	}

	switch cfg.Cache.Backend {
	case "redis":
		backend, err := cache.NewRedisBackend(ctx, cfg.Cache.Redis.Address, cfg.Cache.Redis.Password, cfg.Cache.Redis.DB)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis cache: %w", err)
		}
		log.Info("Initialized Redis cache", "address", cfg.Cache.Redis.Address)
		check := func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_, err := backend.Get(pingCtx, cfg.Cache.Prefix+"readiness-probe")
			if err == cache.ErrCacheMiss {
				return nil
			}
			return err
		}
		return cache.New(backend, cacheCfg), check, nil
	case "badger":
		backend, err := cache.NewBadgerBackend(cfg.Cache.Badger.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open badger cache: %w", err)
		}
		log.Info("Initialized Badger cache", "path", cfg.Cache.Badger.Path)
		return cache.New(backend, cacheCfg), nil, nil
	case "none":
		log.Info("Cache disabled")
		return nil, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

// runCacheMetricsPublisher republishes the cache metrics snapshot into
// the Prometheus gauges until ctx is cancelled.
func runCacheMetricsPublisher(ctx context.Context, c *cache.Cache, m *metrics.Manager, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			publishCacheSnapshot(c, m)
		}
	}
}

func publishCacheSnapshot(c *cache.Cache, m *metrics.Manager) {
	snap := c.Metrics().Snapshot()
	m.PublishCacheSnapshot(snap.HitRate, snap.MeanLatency, snap.P95Latency, snap.P99Latency)
}

func buildOverrides() map[string]interface{} {
	overrides := make(map[string]interface{})

	if *appName != "" {
		overrides["app.name"] = *appName
	}
	if *serverPort != 0 {
		overrides["server.port"] = *serverPort
	}
	if *logLevel != "" {
		overrides["log.level"] = *logLevel
	}
	if *debugMode {
		overrides["app.debug"] = true
	}

	return overrides
}

func printVersion() {
	fmt.Printf("Memtide - Adaptive Memory Retention Engine\n")
	fmt.Printf("Version:    %s\n", version.Version)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Printf("Git Commit: %s\n", version.GitCommit)
	fmt.Printf("Go Version: %s\n", version.GoVersion)
}

func printHelp() {
	fmt.Printf("Memtide - Adaptive memory retention and retrieval engine\n\n")
	fmt.Printf("Usage: memtide [options]\n\n")
	fmt.Printf("Options:\n")
	flag.PrintDefaults()
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  memtide                                   # Run with default config\n")
	fmt.Printf("  memtide -config config.yaml               # Use specific config file\n")
	fmt.Printf("  memtide -port 9090 -log-level debug       # Override specific options\n")
	fmt.Printf("  memtide -version                          # Print version info\n")
}
