package config

import "time"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "memtide",
			Version:     "dev",
			Environment: "development",
			Debug:       false,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
			HTTP: HTTPConfig{
				ReadTimeout:     30 * time.Second,
				WriteTimeout:    30 * time.Second,
				IdleTimeout:     120 * time.Second,
				ShutdownTimeout: 10 * time.Second,
				MaxHeaderBytes:  1 << 20, // 1MB
			},
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerSecond: 50,
				Burst:             100,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Decay: DecayConfig{
			BaseDecayRate:       0.05,
			AccessBoostFactor:   0.5,
			ImportanceThreshold: 0.3,
			ArchiveThreshold:    0.1,
			CheckInterval:       24 * time.Hour,
		},
		Clustering: ClusteringConfig{
			MinClusterSize:      2,
			SimilarityThreshold: 0.4,
			MergeThreshold:      0.6,
			CoherenceThreshold:  0.6,
			MaxClusters:         20,
			AttachThreshold:     0.7,
		},
		BM25: BM25Config{
			K1: 1.2,
			B:  0.75,
		},
		Search: SearchConfig{
			SparseWeight: 0.3,
			DenseWeight:  0.7,
			TopK:         10,
			RRFConstant:  60,
		},
		Cache: CacheConfig{
			Backend:        "badger",
			Prefix:         "memtide:",
			DefaultTTL:     time.Hour,
			MaxRetries:     3,
			RetryBaseDelay: 50 * time.Millisecond,
			OpTimeout:      2 * time.Second,
			Redis: RedisConfig{
				Address:  "localhost:6379",
				Password: "",
				DB:       0,
			},
			Badger: BadgerConfig{
				Path: "./data/cache",
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9091,
		},
		Tracing: TracingConfig{
			Enabled:    false,
			Exporter:   "otlpgrpc",
			Endpoint:   "localhost:4317",
			Timeout:    10 * time.Second,
			Sampler:    "parentbased_traceidratio",
			SampleRate: 0.1,
		},
	}
}
