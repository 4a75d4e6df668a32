package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Test App defaults
	if cfg.App.Name != "memtide" {
		t.Errorf("expected app name 'memtide', got %s", cfg.App.Name)
	}
	if cfg.App.Environment != "development" {
		t.Errorf("expected environment 'development', got %s", cfg.App.Environment)
	}

	// Test Server defaults
	if cfg.Server.Port != 8080 {
		t.Errorf("expected server port 8080, got %d", cfg.Server.Port)
	}

	// Test Log defaults
	if cfg.Log.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("expected log format 'json', got %s", cfg.Log.Format)
	}

	// Test Decay defaults
	if cfg.Decay.BaseDecayRate != 0.05 {
		t.Errorf("expected base_decay_rate 0.05, got %v", cfg.Decay.BaseDecayRate)
	}
	if cfg.Decay.CheckInterval != 24*time.Hour {
		t.Errorf("expected check_interval 24h, got %v", cfg.Decay.CheckInterval)
	}

	// Test Clustering defaults
	if cfg.Clustering.MinClusterSize != 2 {
		t.Errorf("expected min_cluster_size 2, got %d", cfg.Clustering.MinClusterSize)
	}
	if cfg.Clustering.SimilarityThreshold != 0.4 {
		t.Errorf("expected similarity_threshold 0.4, got %v", cfg.Clustering.SimilarityThreshold)
	}
	if cfg.Clustering.MergeThreshold != 0.6 {
		t.Errorf("expected merge_threshold 0.6, got %v", cfg.Clustering.MergeThreshold)
	}

	// Test BM25 defaults
	if cfg.BM25.K1 != 1.2 || cfg.BM25.B != 0.75 {
		t.Errorf("expected k1=1.2 b=0.75, got k1=%v b=%v", cfg.BM25.K1, cfg.BM25.B)
	}

	// Test Cache defaults
	if cfg.Cache.Backend != "badger" {
		t.Errorf("expected cache backend 'badger', got %s", cfg.Cache.Backend)
	}
	if cfg.Cache.MaxRetries != 3 {
		t.Errorf("expected max_retries 3, got %d", cfg.Cache.MaxRetries)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: func() *Config {
				cfg := DefaultConfig()
				cfg.App.Name = "test"
				cfg.App.Environment = "development"
				cfg.Server.Port = 8080
				cfg.Log.Level = "info"
				cfg.Log.Format = "json"
				return cfg
			}(),
			wantErr: false,
		},
		{
			name: "missing app name",
			cfg: func() *Config {
				cfg := DefaultConfig()
				cfg.App.Name = ""
				return cfg
			}(),
			wantErr: true,
		},
		{
			name: "invalid port",
			cfg: func() *Config {
				cfg := DefaultConfig()
				cfg.Server.Port = 99999
				return cfg
			}(),
			wantErr: true,
		},
		{
			name: "invalid log level",
			cfg: func() *Config {
				cfg := DefaultConfig()
				cfg.Log.Level = "trace"
				return cfg
			}(),
			wantErr: true,
		},
		{
			name: "invalid environment",
			cfg: func() *Config {
				cfg := DefaultConfig()
				cfg.App.Environment = "invalid"
				return cfg
			}(),
			wantErr: true,
		},
		{
			name: "invalid cache backend",
			cfg: func() *Config {
				cfg := DefaultConfig()
				cfg.Cache.Backend = "memcached"
				return cfg
			}(),
			wantErr: true,
		},
		{
			name: "decay rate out of range",
			cfg: func() *Config {
				cfg := DefaultConfig()
				cfg.Decay.BaseDecayRate = 1.5
				return cfg
			}(),
			wantErr: true,
		},
		{
			name: "clustering threshold out of range",
			cfg: func() *Config {
				cfg := DefaultConfig()
				cfg.Clustering.MergeThreshold = 2.0
				return cfg
			}(),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{
		{Field: "server.port", Message: "must be between 1 and 65535", Value: 99999},
		{Field: "log.level", Message: "must be one of [debug info warn error]", Value: "trace"},
	}

	errMsg := errs.Error()
	if errMsg == "" {
		t.Error("expected error message")
	}
	if errMsg == "no validation errors" {
		t.Error("expected error details")
	}
}

func TestConfig_String(t *testing.T) {
	cfg := &Config{
		App: AppConfig{
			Name:        "test",
			Environment: "development",
		},
		Server: ServerConfig{
			Port: 8080,
		},
	}

	s := cfg.String()
	if s == "" {
		t.Error("expected non-empty string representation")
	}
}

func TestDurationParsing(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.HTTP.ReadTimeout != 30*time.Second {
		t.Errorf("expected read timeout 30s, got %v", cfg.Server.HTTP.ReadTimeout)
	}
	if cfg.Cache.DefaultTTL != time.Hour {
		t.Errorf("expected default ttl 1h, got %v", cfg.Cache.DefaultTTL)
	}
}

func TestLoader_Get(t *testing.T) {
	loader := NewLoader()
	_, _ = loader.Load("", nil) // Load defaults

	val := loader.Get("app.name")
	if val == nil {
		t.Error("expected non-nil value for app.name")
	}

	str := loader.GetString("app.name")
	if str != "memtide" {
		t.Errorf("expected 'memtide', got '%s'", str)
	}

	port := loader.GetInt("server.port")
	if port != 8080 {
		t.Errorf("expected 8080, got %d", port)
	}

	enabled := loader.GetBool("metrics.enabled")
	if !enabled {
		t.Error("expected metrics.enabled to be true")
	}
}

func TestLoader_Set(t *testing.T) {
	loader := NewLoader()
	_, _ = loader.Load("", nil)

	err := loader.Set("app.name", "custom-app")
	if err != nil {
		t.Errorf("unexpected error setting value: %v", err)
	}

	if loader.GetString("app.name") != "custom-app" {
		t.Errorf("expected 'custom-app', got '%s'", loader.GetString("app.name"))
	}
}

func TestLoad(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg == nil {
		t.Error("expected non-nil config")
	}
}

func TestLoadOrDie_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for invalid config file")
		}
	}()

	LoadOrDie("/nonexistent/path/config.yaml", nil)
}

func TestLoader_LoadFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
app:
  name: yaml-test
  environment: production
server:
  port: 9999
log:
  level: debug
  format: text
decay:
  base_decay_rate: 0.08
  check_interval: 12h
clustering:
  min_cluster_size: 3
  merge_threshold: 0.7
cache:
  backend: redis
  default_ttl: 30m
  redis:
    address: redis.internal:6379
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	loader := NewLoader()
	cfg, err := loader.Load(configPath, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.App.Name != "yaml-test" {
		t.Errorf("expected 'yaml-test', got '%s'", cfg.App.Name)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("expected 9999, got %d", cfg.Server.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected 'debug', got '%s'", cfg.Log.Level)
	}
	if cfg.Decay.BaseDecayRate != 0.08 {
		t.Errorf("expected 0.08, got %v", cfg.Decay.BaseDecayRate)
	}
	if cfg.Decay.CheckInterval != 12*time.Hour {
		t.Errorf("expected 12h, got %v", cfg.Decay.CheckInterval)
	}
	if cfg.Clustering.MinClusterSize != 3 {
		t.Errorf("expected 3, got %d", cfg.Clustering.MinClusterSize)
	}
	if cfg.Cache.Backend != "redis" {
		t.Errorf("expected 'redis', got '%s'", cfg.Cache.Backend)
	}
	if cfg.Cache.Redis.Address != "redis.internal:6379" {
		t.Errorf("expected 'redis.internal:6379', got '%s'", cfg.Cache.Redis.Address)
	}

	// Unset sections keep their defaults.
	if cfg.BM25.K1 != 1.2 {
		t.Errorf("expected default k1 1.2, got %v", cfg.BM25.K1)
	}
}

func TestLoader_LoadJSONFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	jsonContent := `{
		"app": {
			"name": "json-test",
			"environment": "staging"
		},
		"server": {
			"port": 8888
		},
		"log": {
			"level": "warn",
			"format": "json"
		}
	}`
	if err := os.WriteFile(configPath, []byte(jsonContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	loader := NewLoader()
	cfg, err := loader.Load(configPath, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.App.Name != "json-test" {
		t.Errorf("expected 'json-test', got '%s'", cfg.App.Name)
	}
	if cfg.Server.Port != 8888 {
		t.Errorf("expected 8888, got %d", cfg.Server.Port)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("expected 'warn', got '%s'", cfg.Log.Level)
	}
}

func TestLoader_LoadInvalidFile(t *testing.T) {
	loader := NewLoader()

	_, err := loader.Load("/nonexistent/config.yaml", nil)
	if err == nil {
		t.Error("expected error for non-existent file")
	}
}

func TestLoader_LoadUnsupportedFormat(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	if err := os.WriteFile(configPath, []byte("app = 'test'"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	loader := NewLoader()
	_, err := loader.Load(configPath, nil)
	if err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestLoader_Overrides(t *testing.T) {
	loader := NewLoader()
	cfg, err := loader.Load("", map[string]interface{}{
		"server.port": 7070,
		"log.level":   "error",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("expected override port 7070, got %d", cfg.Server.Port)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("expected override level 'error', got '%s'", cfg.Log.Level)
	}
}

func TestValidation_InvalidPort(t *testing.T) {
	tests := []struct {
		name    string
		port    int
		wantErr bool
	}{
		{"valid port 80", 80, false},
		{"valid port 8080", 8080, false},
		{"valid port 65535", 65535, false},
		{"invalid port 0", 0, true},
		{"invalid port -1", -1, true},
		{"invalid port 65536", 65536, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Server.Port = tt.port
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("port %d: expected error=%v, got error=%v", tt.port, tt.wantErr, err)
			}
		})
	}
}

func TestValidateWithDetails(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 0
	cfg.Log.Level = "trace"

	err := ValidateWithDetails(cfg)
	if err == nil {
		t.Fatal("expected validation error details")
	}

	details, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(details) < 2 {
		t.Fatalf("expected at least 2 errors, got %d", len(details))
	}
}
