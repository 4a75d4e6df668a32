// Package config provides configuration management for Memtide.
package config

import (
	"fmt"
	"time"
)

// Config is the global configuration for Memtide.
type Config struct {
	// App is the application configuration.
	App AppConfig `mapstructure:"app" validate:"required"`

	// Server is the HTTP server configuration.
	Server ServerConfig `mapstructure:"server" validate:"required"`

	// Log is the logging configuration.
	Log LogConfig `mapstructure:"log" validate:"required"`

	// Decay is the retention model configuration.
	Decay DecayConfig `mapstructure:"decay"`

	// Clustering is the clustering engine configuration.
	Clustering ClusteringConfig `mapstructure:"clustering"`

	// BM25 is the sparse lexical scorer configuration.
	BM25 BM25Config `mapstructure:"bm25"`

	// Search is the hybrid retrieval configuration.
	Search SearchConfig `mapstructure:"search"`

	// Cache is the tiered cache configuration.
	Cache CacheConfig `mapstructure:"cache"`

	// Metrics is the observability configuration.
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Tracing is the distributed tracing configuration.
	Tracing TracingConfig `mapstructure:"tracing"`
}

// AppConfig holds application metadata and settings.
type AppConfig struct {
	// Name is the application name.
	Name string `mapstructure:"name" validate:"required"`

	// Version is the application version.
	Version string `mapstructure:"version"`

	// Environment is the runtime environment (development, staging, production).
	Environment string `mapstructure:"environment" validate:"oneof=development staging production"`

	// Debug enables debug mode with verbose logging.
	Debug bool `mapstructure:"debug"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	// Host is the bind address.
	Host string `mapstructure:"host"`

	// Port is the HTTP API port.
	Port int `mapstructure:"port" validate:"required,min=1,max=65535"`

	// HTTP is the HTTP server configuration.
	HTTP HTTPConfig `mapstructure:"http"`

	// CORS is the CORS configuration.
	CORS CORSConfig `mapstructure:"cors"`

	// RateLimit is the per-client rate limit configuration.
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// HTTPConfig holds HTTP-specific settings.
type HTTPConfig struct {
	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// MaxHeaderBytes limits the size of request headers.
	MaxHeaderBytes int `mapstructure:"max_header_bytes"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	// Enabled enables CORS support.
	Enabled bool `mapstructure:"enabled"`

	// AllowedOrigins is the list of allowed origins.
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// AllowedMethods is the list of allowed HTTP methods.
	AllowedMethods []string `mapstructure:"allowed_methods"`

	// AllowedHeaders is the list of allowed headers.
	AllowedHeaders []string `mapstructure:"allowed_headers"`

	// ExposedHeaders is the list of headers exposed to the client.
	ExposedHeaders []string `mapstructure:"exposed_headers"`

	// AllowCredentials indicates whether credentials are allowed.
	AllowCredentials bool `mapstructure:"allow_credentials"`

	// MaxAge is the maximum age of CORS preflight cache in seconds.
	MaxAge int `mapstructure:"max_age"`
}

// RateLimitConfig holds per-client rate limit settings.
type RateLimitConfig struct {
	// Enabled enables rate limiting.
	Enabled bool `mapstructure:"enabled"`

	// RequestsPerSecond is the sustained request rate per client.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"min=0"`

	// Burst is the burst allowance per client.
	Burst int `mapstructure:"burst" validate:"min=0"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`

	// Format is the output format (json, text).
	Format string `mapstructure:"format" validate:"oneof=json text"`

	// Output is the output destination (stdout, stderr, or file path).
	Output string `mapstructure:"output"`
}

// DecayConfig holds retention model settings.
type DecayConfig struct {
	// BaseDecayRate is the per-pass decay rate before modifiers.
	BaseDecayRate float64 `mapstructure:"base_decay_rate" validate:"min=0,max=1"`

	// AccessBoostFactor scales access-density decay suppression.
	AccessBoostFactor float64 `mapstructure:"access_boost_factor" validate:"min=0"`

	// ImportanceThreshold separates active from fading memories.
	ImportanceThreshold float64 `mapstructure:"importance_threshold" validate:"min=0,max=1"`

	// ArchiveThreshold separates fading from archived memories.
	ArchiveThreshold float64 `mapstructure:"archive_threshold" validate:"min=0,max=1"`

	// CheckInterval is the re-evaluation cadence.
	CheckInterval time.Duration `mapstructure:"check_interval"`
}

// ClusteringConfig holds clustering engine settings.
type ClusteringConfig struct {
	// MinClusterSize is the smallest cluster that survives filtering.
	MinClusterSize int `mapstructure:"min_cluster_size" validate:"min=1"`

	// SimilarityThreshold is the split threshold for greedy refinement.
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" validate:"min=0,max=1"`

	// MergeThreshold is the cluster merge threshold.
	MergeThreshold float64 `mapstructure:"merge_threshold" validate:"min=0,max=1"`

	// CoherenceThreshold is the minimum surviving cluster coherence.
	CoherenceThreshold float64 `mapstructure:"coherence_threshold" validate:"min=0,max=1"`

	// MaxClusters caps clusters produced per topic group.
	MaxClusters int `mapstructure:"max_clusters" validate:"min=1"`

	// AttachThreshold is the incremental placement threshold.
	AttachThreshold float64 `mapstructure:"attach_threshold" validate:"min=0,max=1"`
}

// BM25Config holds sparse scorer settings.
type BM25Config struct {
	// K1 is the term frequency saturation parameter.
	K1 float64 `mapstructure:"k1" validate:"min=0"`

	// B is the document length normalization parameter.
	B float64 `mapstructure:"b" validate:"min=0,max=1"`
}

// SearchConfig holds hybrid retrieval settings.
type SearchConfig struct {
	// SparseWeight is the lexical score weight in fusion.
	SparseWeight float64 `mapstructure:"sparse_weight" validate:"min=0,max=1"`

	// DenseWeight is the vector score weight in fusion.
	DenseWeight float64 `mapstructure:"dense_weight" validate:"min=0,max=1"`

	// TopK is the default result count.
	TopK int `mapstructure:"top_k" validate:"min=1"`

	// RRFConstant is the k constant for reciprocal rank fusion.
	RRFConstant int `mapstructure:"rrf_constant" validate:"min=1"`
}

// CacheConfig holds tiered cache settings.
type CacheConfig struct {
	// Backend is the cache backend (redis, badger, none).
	Backend string `mapstructure:"backend" validate:"oneof=redis badger none"`

	// Prefix is prepended to every cache key.
	Prefix string `mapstructure:"prefix"`

	// DefaultTTL applies when a write specifies no TTL.
	DefaultTTL time.Duration `mapstructure:"default_ttl"`

	// MaxRetries is the retry attempt count after the first failure.
	MaxRetries int `mapstructure:"max_retries" validate:"min=0"`

	// RetryBaseDelay seeds the exponential backoff.
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`

	// OpTimeout bounds each backend operation.
	OpTimeout time.Duration `mapstructure:"op_timeout"`

	// Redis is the Redis backend configuration.
	Redis RedisConfig `mapstructure:"redis"`

	// Badger is the Badger backend configuration.
	Badger BadgerConfig `mapstructure:"badger"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	// Address is the Redis server address.
	Address string `mapstructure:"address"`

	// Password is the Redis password.
	Password string `mapstructure:"password"`

	// DB is the Redis database number.
	DB int `mapstructure:"db"`
}

// BadgerConfig holds BadgerDB-specific settings.
type BadgerConfig struct {
	// Path is the database directory path. Empty runs in memory.
	Path string `mapstructure:"path"`
}

// MetricsConfig holds observability settings.
type MetricsConfig struct {
	// Enabled enables metrics collection.
	Enabled bool `mapstructure:"enabled"`

	// Path is the metrics endpoint path.
	Path string `mapstructure:"path"`

	// Port is the metrics server port.
	Port int `mapstructure:"port" validate:"min=1,max=65535"`
}

// TracingConfig holds distributed tracing settings.
type TracingConfig struct {
	// Enabled enables distributed tracing.
	Enabled bool `mapstructure:"enabled"`

	// Exporter is the span exporter (otlpgrpc).
	Exporter string `mapstructure:"exporter"`

	// Endpoint is the OTLP collector endpoint.
	Endpoint string `mapstructure:"endpoint"`

	// Headers are extra headers sent to the collector.
	Headers map[string]string `mapstructure:"headers"`

	// Timeout bounds exporter calls.
	Timeout time.Duration `mapstructure:"timeout"`

	// Sampler selects the sampling strategy
	// (always_on, always_off, parentbased_traceidratio).
	Sampler string `mapstructure:"sampler"`

	// SampleRate is the fraction of traces to sample (0.0-1.0).
	SampleRate float64 `mapstructure:"sample_rate" validate:"min=0,max=1"`
}

// Validate performs validation on the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// String returns a string representation of the configuration (without sensitive data).
func (c *Config) String() string {
	return fmt.Sprintf("Config{App: %s, Server: :%d, Env: %s, Cache: %s}",
		c.App.Name, c.Server.Port, c.App.Environment, c.Cache.Backend)
}
