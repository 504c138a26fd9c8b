package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/scorpius/internal/domain"
)

// Config holds the scorpius configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Cache     CacheConfig     `yaml:"cache"`
	Search    SearchConfig    `yaml:"search"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	APIKeys         []string      `yaml:"api_keys"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds vector store connection settings.
type DatabaseConfig struct {
	Addrs            []string      `yaml:"addrs"`
	Username         string        `yaml:"username"`
	Password         string        `yaml:"password"`
	DB               int           `yaml:"db"`
	QueryTimeout     time.Duration `yaml:"query_timeout"`
	ReadinessTimeout time.Duration `yaml:"readiness_timeout"`
	HNSWM            int           `yaml:"hnsw_m"`
	HNSWEFConstruct  int           `yaml:"hnsw_ef_construction"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// Enabled reports whether any limit is set.
func (b BudgetConfig) Enabled() bool {
	return b.DailyTokenLimit > 0 || b.MonthlyTokenLimit > 0
}

// EmbeddingConfig holds provider and batching settings.
type EmbeddingConfig struct {
	Provider          string        `yaml:"provider"`
	Model             string        `yaml:"model"`
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url"`
	Dimensions        int           `yaml:"dimensions"`
	Timeout           time.Duration `yaml:"timeout"`
	BatchSize         int           `yaml:"batch_size"`
	Concurrency       int           `yaml:"concurrency"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	RetryBackoff      time.Duration `yaml:"retry_backoff"`
	Budget            BudgetConfig  `yaml:"budget"`
}

// Cache backends.
const (
	CacheBackendRedis  = "redis"
	CacheBackendSQLite = "sqlite"
)

// CacheConfig holds embedding cache settings.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Backend      string        `yaml:"backend"` // redis | sqlite
	Dir          string        `yaml:"dir"`     // sqlite cache directory
	TTL          time.Duration `yaml:"ttl"`
	MaxSizeMB    int64         `yaml:"max_size_mb"`
	MaxEntryMB   int64         `yaml:"max_entry_mb"`
	LowWatermark float64       `yaml:"low_watermark"`
}

// SearchConfig holds retrieval defaults.
type SearchConfig struct {
	DefaultCollection  string   `yaml:"default_collection"`
	MinScore           float64  `yaml:"min_score"`
	Oversample         int      `yaml:"oversample"`
	DefaultCollections []string `yaml:"default_collections"` // created at start-up; empty means all
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse expands ${VAR:-default} references, decodes YAML, applies defaults
// and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
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
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	if c.Database.QueryTimeout <= 0 {
		c.Database.QueryTimeout = 10 * time.Second
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10 * time.Second
	}
	if c.Database.HNSWM <= 0 {
		c.Database.HNSWM = 16
	}
	if c.Database.HNSWEFConstruct <= 0 {
		c.Database.HNSWEFConstruct = 200
	}

	e := &c.Embedding
	if e.Provider == "" {
		e.Provider = "openai"
	}
	if e.Model == "" {
		e.Model = domain.DefaultModel
	}
	if e.Dimensions <= 0 {
		if m, ok := domain.LookupModel(e.Model); ok {
			e.Dimensions = m.Dimensions
		}
	}
	if e.Timeout <= 0 {
		e.Timeout = 30 * time.Second
	}
	if e.BatchSize <= 0 {
		e.BatchSize = 100
	}
	if e.Concurrency <= 0 {
		e.Concurrency = 5
	}
	if e.RequestsPerMinute <= 0 {
		e.RequestsPerMinute = 3000
	}
	if e.RetryBackoff <= 0 {
		e.RetryBackoff = time.Second
	}
	if e.Budget.Action == "" {
		e.Budget.Action = "warn"
	}

	if c.Cache.Backend == "" {
		c.Cache.Backend = CacheBackendRedis
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = "cache/embeddings"
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = 7 * 24 * time.Hour
	}
	if c.Cache.MaxSizeMB <= 0 {
		c.Cache.MaxSizeMB = 1024
	}
	if c.Cache.MaxEntryMB <= 0 {
		c.Cache.MaxEntryMB = 10
	}
	if c.Cache.LowWatermark <= 0 {
		c.Cache.LowWatermark = 0.8
	}

	if c.Search.DefaultCollection == "" {
		c.Search.DefaultCollection = "historique_ao"
	}
	if c.Search.MinScore == 0 {
		c.Search.MinScore = 0.5
	}
	if c.Search.Oversample <= 0 {
		c.Search.Oversample = 2
	}
}

// Validate checks the configuration for correctness. Every problem is
// reported, joined into one error.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		add("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if len(c.Database.Addrs) == 0 {
		add("database.addrs is required")
	}

	e := c.Embedding
	if e.Provider != "openai" {
		add("embedding.provider must be \"openai\", got %q", e.Provider)
	}
	if strings.TrimSpace(e.APIKey) == "" {
		add("embedding.api_key is required")
	}
	if e.Dimensions <= 0 {
		add("embedding.dimensions is required for unknown model %q", e.Model)
	}
	switch e.Budget.Action {
	case "warn", "reject":
	default:
		add("embedding.budget.action must be \"warn\" or \"reject\", got %q", e.Budget.Action)
	}
	if e.Budget.DailyTokenLimit < 0 || e.Budget.MonthlyTokenLimit < 0 {
		add("embedding.budget limits must not be negative")
	}

	switch c.Cache.Backend {
	case CacheBackendRedis, CacheBackendSQLite:
	default:
		add("cache.backend must be %q or %q, got %q", CacheBackendRedis, CacheBackendSQLite, c.Cache.Backend)
	}
	if c.Cache.LowWatermark > 1 {
		add("cache.low_watermark must be at most 1, got %v", c.Cache.LowWatermark)
	}
	if c.Cache.MaxEntryMB > c.Cache.MaxSizeMB {
		add("cache.max_entry_mb must not exceed cache.max_size_mb")
	}

	if c.Search.MinScore < 0 || c.Search.MinScore > 1 {
		add("search.min_score must be between 0 and 1, got %v", c.Search.MinScore)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", domain.ErrConfiguration, errors.Join(errs...))
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
