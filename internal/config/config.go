package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/neuralquery/internal/domain"
	"github.com/kailas-cloud/neuralquery/internal/domain/search/request"
)

// Config holds the neuralquery configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Service   ServiceConfig   `yaml:"service"`
	Backend   BackendConfig   `yaml:"backend"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Auth      AuthConfig      `yaml:"auth"`
	Search    SearchConfig    `yaml:"search"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// ServiceConfig holds the identity reported by / and /health.
type ServiceConfig struct {
	Name    string `yaml:"name"`
	Title   string `yaml:"title"`
	Version string `yaml:"version"`
}

// BackendConfig holds vector backend settings.
type BackendConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis, memory (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	APIKey           string   `yaml:"api_key"`
	Collection       string   `yaml:"collection"`
	Metric           string   `yaml:"metric"` // cosine, l2, ip
	BatchSize        int      `yaml:"batch_size"`
	KeyPrefix        string   `yaml:"key_prefix"`
	HNSWM            int      `yaml:"hnsw_m"`
	HNSWEFConstruct  int      `yaml:"hnsw_ef_construction"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	RequestTimeoutMs int      `yaml:"request_timeout_ms"`
}

// Networked reports whether the driver talks to a remote server.
func (b BackendConfig) Networked() bool {
	return b.Driver != "memory"
}

// EmbeddingConfig holds embedding model settings.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // openai, hashing
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	// RequestDimensions sends dimensions to the provider; only for models that truncate (OpenAI v3).
	RequestDimensions bool `yaml:"request_dimensions"`
	BatchSize         int  `yaml:"batch_size"`
	Cache             bool `yaml:"cache"`
	CacheTTLSec       int  `yaml:"cache_ttl_sec"`
}

// SearchConfig holds request validation limits.
type SearchConfig struct {
	DefaultTopK    int `yaml:"default_top_k"`
	MaxTopK        int `yaml:"max_top_k"`
	MinQueryLength int `yaml:"min_query_length"`
	MaxQueryLength int `yaml:"max_query_length"`
}

// IngestConfig holds ingestion job settings.
type IngestConfig struct {
	StateDir string `yaml:"state_dir"` // checkpoint DB and lock file
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit YAML path.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("%w: read config %s: %w", domain.ErrConfiguration, path, err)
	}

	return Parse(data)
}

// Parse expands env variables in a raw YAML document, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parse config: %w", domain.ErrConfiguration, err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Service.Name == "" {
		c.Service.Name = "NeuralQuery API"
	}
	if c.Service.Title == "" {
		c.Service.Title = "NeuralQuery Semantic Search API"
	}
	if c.Service.Version == "" {
		c.Service.Version = "1.0.0"
	}
	if c.Backend.Driver == "" {
		c.Backend.Driver = "valkey"
	}
	if c.Backend.Collection == "" {
		c.Backend.Collection = "neural-search"
	}
	if c.Backend.Metric == "" {
		c.Backend.Metric = "cosine"
	}
	if c.Backend.BatchSize <= 0 {
		c.Backend.BatchSize = 100
	}
	if c.Backend.KeyPrefix == "" {
		c.Backend.KeyPrefix = "nq:"
	}
	if c.Backend.HNSWM <= 0 {
		c.Backend.HNSWM = 16
	}
	if c.Backend.HNSWEFConstruct <= 0 {
		c.Backend.HNSWEFConstruct = 200
	}
	if c.Backend.ReadinessTimeout <= 0 {
		c.Backend.ReadinessTimeout = 10
	}
	if c.Backend.RequestTimeoutMs <= 0 {
		c.Backend.RequestTimeoutMs = 5000
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "all-minilm"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 384
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 64
	}
	if c.Embedding.CacheTTLSec <= 0 {
		c.Embedding.CacheTTLSec = 86400
	}
	if c.Search.DefaultTopK <= 0 {
		c.Search.DefaultTopK = 3
	}
	if c.Search.MaxTopK <= 0 {
		c.Search.MaxTopK = 10
	}
	if c.Search.MinQueryLength <= 0 {
		c.Search.MinQueryLength = 3
	}
	if c.Search.MaxQueryLength <= 0 {
		c.Search.MaxQueryLength = 4096
	}
	if c.Ingest.StateDir == "" {
		c.Ingest.StateDir = ".neuralquery"
	}
}

// Validate checks the configuration for correctness.
// All failures wrap domain.ErrConfiguration.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return configErr("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Backend.Driver {
	case "valkey", "redis", "memory":
	default:
		return configErr("backend.driver must be one of valkey, redis, memory, got %q", c.Backend.Driver)
	}
	if strings.TrimSpace(c.Backend.Collection) == "" {
		return configErr("backend.collection is required")
	}
	switch c.Backend.Metric {
	case "cosine", "l2", "ip":
	default:
		return configErr("backend.metric must be one of cosine, l2, ip, got %q", c.Backend.Metric)
	}
	if c.Backend.Networked() {
		if len(c.Backend.Addrs) == 0 {
			return configErr("backend.addrs is required for driver %q", c.Backend.Driver)
		}
		if c.Backend.APIKey == "" {
			return configErr("backend.api_key is required for driver %q (set VECTOR_API_KEY)", c.Backend.Driver)
		}
	}
	switch c.Embedding.Provider {
	case "openai":
		if c.Embedding.BaseURL == "" && c.Embedding.APIKey == "" {
			return configErr("embedding.api_key or embedding.base_url is required for provider \"openai\"")
		}
	case "hashing":
	default:
		return configErr("embedding.provider must be \"openai\" or \"hashing\", got %q", c.Embedding.Provider)
	}
	if c.Embedding.Cache && !c.Backend.Networked() {
		return configErr("embedding.cache requires a valkey or redis backend")
	}
	if c.Search.MaxTopK > request.MaxTopK {
		return configErr("search.max_top_k (%d) must not exceed %d", c.Search.MaxTopK, request.MaxTopK)
	}
	if c.Search.MaxTopK < 1 || c.Search.DefaultTopK > c.Search.MaxTopK {
		return configErr("search.default_top_k (%d) must be within [1, %d]", c.Search.DefaultTopK, c.Search.MaxTopK)
	}
	if c.Search.MinQueryLength > c.Search.MaxQueryLength {
		return configErr("search.min_query_length (%d) exceeds max_query_length (%d)",
			c.Search.MinQueryLength, c.Search.MaxQueryLength)
	}
	return nil
}

func configErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrConfiguration, fmt.Sprintf(format, args...))
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
