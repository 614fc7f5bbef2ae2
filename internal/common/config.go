package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Storage     StorageConfig    `toml:"storage"`
	Scheduler   SchedulerConfig  `toml:"scheduler"`
	Queue       QueueConfig      `toml:"queue"`
	Upload      UploadConfig     `toml:"upload"`
	LLM         LLMConfig        `toml:"llm"`
	Embeddings  EmbeddingsConfig `toml:"embeddings"`
	Enrichment  EnrichmentConfig `toml:"enrichment"`
	Matching    MatchingConfig   `toml:"matching"`
	Audit       AuditConfig      `toml:"audit"`
	Logging     LoggingConfig    `toml:"logging"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gt=0,lte=65535"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	SQLite SQLiteConfig `toml:"sqlite"`
	Badger BadgerConfig `toml:"badger"`
}

// SQLiteConfig represents SQLite-specific configuration
type SQLiteConfig struct {
	Path          string `toml:"path" validate:"required"` // Database file path
	CacheSizeMB   int    `toml:"cache_size_mb"`
	WALMode       bool   `toml:"wal_mode"`
	BusyTimeoutMS int    `toml:"busy_timeout_ms"`
}

// BadgerConfig represents the key/value store used for API keys
type BadgerConfig struct {
	Path     string `toml:"path"`
	InMemory bool   `toml:"in_memory"` // For tests
}

// SchedulerConfig controls the durable queue scheduler. When Enabled is false
// uploads take the legacy in-process async path instead of the queue.
type SchedulerConfig struct {
	Enabled            bool   `toml:"enabled"`
	PollInterval       string `toml:"poll_interval"`       // e.g. "5s" - pickup loop cadence
	BatchSize          int    `toml:"batch_size"`          // Max jobs claimed per tick
	WorkerCount        int    `toml:"worker_count"`        // Bounded worker pool size
	StaleThreshold     string `toml:"stale_threshold"`     // Lease age before a PROCESSING job is considered dead
	StaleSweepInterval string `toml:"stale_sweep_interval"`
	CleanupCron        string `toml:"cleanup_cron"` // Standard 5-field cron
	RetentionDays      int    `toml:"retention_days"`
	MetricsInterval    string `toml:"metrics_interval"`
}

type QueueConfig struct {
	MaxRetries         int    `toml:"max_retries"`
	RetryDelay         string `toml:"retry_delay"` // Base delay before a retried job is rescheduled
	ExponentialBackoff bool   `toml:"exponential_backoff"`
	MaxPending         int    `toml:"max_pending"` // Backpressure cap on PENDING rows
}

type UploadConfig struct {
	AllowedExtensions []string `toml:"allowed_extensions"`
	MaxFileSizeMB     int      `toml:"max_file_size_mb"`
}

// LLMConfig points at an OpenAI-compatible chat + embeddings endpoint.
type LLMConfig struct {
	BaseURL            string  `toml:"base_url" validate:"required"`
	APIKey             string  `toml:"api_key"`
	ChatModel          string  `toml:"chat_model"`
	EmbeddingModel     string  `toml:"embedding_model"`
	MaxTokens          int     `toml:"max_tokens"`
	Temperature        float32 `toml:"temperature"`
	ChatTimeout        string  `toml:"chat_timeout"`
	EmbedTimeout       string  `toml:"embed_timeout"`
	EmbeddingDimension int     `toml:"embedding_dimension"`
	RequestsPerSecond  float64 `toml:"requests_per_second"` // Outbound rate limit
}

type EmbeddingsConfig struct {
	ChunkSize    int `toml:"chunk_size" validate:"gt=0"`
	ChunkOverlap int `toml:"chunk_overlap" validate:"gte=0"`
	BatchSize    int `toml:"batch_size" validate:"gt=0"`
}

type EnrichmentConfig struct {
	StalenessTTLDays       int    `toml:"staleness_ttl_days"`
	SourceSelectionEnabled bool   `toml:"source_selection_enabled"`
	TavilyAPIKey           string `toml:"tavily_api_key"`
	SearchBaseURL          string `toml:"search_base_url"` // Tavily-compatible search endpoint
	GitHubToken            string `toml:"github_token"`
	RequestTimeout         string `toml:"request_timeout"`
}

type MatchingConfig struct {
	MultiPassEnabled   bool    `toml:"multi_pass_enabled"`
	BorderlineMin      float64 `toml:"borderline_min"`
	BorderlineMax      float64 `toml:"borderline_max"`
	ShortlistThreshold float64 `toml:"shortlist_threshold"`
	Parallelism        int     `toml:"parallelism" validate:"gte=1"` // Bounded parallel group for match-all
}

type AuditConfig struct {
	EstimatedTokensPerCandidate int `toml:"estimated_tokens_per_candidate"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "0.0.0.0",
		},
		Storage: StorageConfig{
			SQLite: SQLiteConfig{
				Path:          "./data/aptus.db",
				CacheSizeMB:   64,
				WALMode:       true,
				BusyTimeoutMS: 5000,
			},
			Badger: BadgerConfig{
				Path: "./data/keys",
			},
		},
		Scheduler: SchedulerConfig{
			Enabled:            false, // Uploads take the inline async path until enabled
			PollInterval:       "5s",
			BatchSize:          5,
			WorkerCount:        5,
			StaleThreshold:     "10m",
			StaleSweepInterval: "1m",
			CleanupCron:        "0 2 * * *", // Daily at 02:00
			RetentionDays:      30,
			MetricsInterval:    "5m",
		},
		Queue: QueueConfig{
			MaxRetries:         3,
			RetryDelay:         "5m",
			ExponentialBackoff: false,
			MaxPending:         1000,
		},
		Upload: UploadConfig{
			AllowedExtensions: []string{".pdf", ".doc", ".docx", ".zip"},
			MaxFileSizeMB:     50,
		},
		LLM: LLMConfig{
			BaseURL:            "http://localhost:8081",
			ChatModel:          "llama-3.1-8b-instruct",
			EmbeddingModel:     "nomic-embed-text-v1.5",
			MaxTokens:          4000,
			Temperature:        0.7,
			ChatTimeout:        "120s",
			EmbedTimeout:       "60s",
			EmbeddingDimension: 768,
			RequestsPerSecond:  4,
		},
		Embeddings: EmbeddingsConfig{
			ChunkSize:    1000,
			ChunkOverlap: 200,
			BatchSize:    10,
		},
		Enrichment: EnrichmentConfig{
			StalenessTTLDays:       7,
			SourceSelectionEnabled: false,
			SearchBaseURL:          "https://api.tavily.com/search",
			RequestTimeout:         "15s",
		},
		Matching: MatchingConfig{
			MultiPassEnabled:   true,
			BorderlineMin:      50,
			BorderlineMax:      75,
			ShortlistThreshold: 70,
			Parallelism:        1, // Serial match-all by default
		},
		Audit: AuditConfig{
			EstimatedTokensPerCandidate: 1500,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
	}
}

// LoadFromFile loads configuration with priority: defaults -> file -> env -> CLI
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files. Later files override
// earlier files; environment variables override all files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("APTUS_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server
	if port := os.Getenv("APTUS_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("APTUS_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage
	if path := os.Getenv("APTUS_SQLITE_PATH"); path != "" {
		config.Storage.SQLite.Path = path
	}
	if path := os.Getenv("APTUS_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}

	// Scheduler
	if enabled := os.Getenv("APTUS_SCHEDULER_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Scheduler.Enabled = e
		}
	}
	if interval := os.Getenv("APTUS_SCHEDULER_POLL_INTERVAL"); interval != "" {
		config.Scheduler.PollInterval = interval
	}
	if batchSize := os.Getenv("APTUS_SCHEDULER_BATCH_SIZE"); batchSize != "" {
		if bs, err := strconv.Atoi(batchSize); err == nil {
			config.Scheduler.BatchSize = bs
		}
	}
	if workers := os.Getenv("APTUS_SCHEDULER_WORKER_COUNT"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil {
			config.Scheduler.WorkerCount = w
		}
	}
	if threshold := os.Getenv("APTUS_SCHEDULER_STALE_THRESHOLD"); threshold != "" {
		config.Scheduler.StaleThreshold = threshold
	}
	if cronExpr := os.Getenv("APTUS_SCHEDULER_CLEANUP_CRON"); cronExpr != "" {
		config.Scheduler.CleanupCron = cronExpr
	}
	if retention := os.Getenv("APTUS_SCHEDULER_RETENTION_DAYS"); retention != "" {
		if r, err := strconv.Atoi(retention); err == nil {
			config.Scheduler.RetentionDays = r
		}
	}

	// Queue
	if maxRetries := os.Getenv("APTUS_QUEUE_MAX_RETRIES"); maxRetries != "" {
		if mr, err := strconv.Atoi(maxRetries); err == nil {
			config.Queue.MaxRetries = mr
		}
	}
	if retryDelay := os.Getenv("APTUS_QUEUE_RETRY_DELAY"); retryDelay != "" {
		config.Queue.RetryDelay = retryDelay
	}
	if backoff := os.Getenv("APTUS_QUEUE_EXPONENTIAL_BACKOFF"); backoff != "" {
		if b, err := strconv.ParseBool(backoff); err == nil {
			config.Queue.ExponentialBackoff = b
		}
	}
	if maxPending := os.Getenv("APTUS_QUEUE_MAX_PENDING"); maxPending != "" {
		if mp, err := strconv.Atoi(maxPending); err == nil {
			config.Queue.MaxPending = mp
		}
	}

	// Upload
	if maxSize := os.Getenv("APTUS_UPLOAD_MAX_FILE_SIZE_MB"); maxSize != "" {
		if ms, err := strconv.Atoi(maxSize); err == nil {
			config.Upload.MaxFileSizeMB = ms
		}
	}
	if extensions := os.Getenv("APTUS_UPLOAD_ALLOWED_EXTENSIONS"); extensions != "" {
		exts := []string{}
		for _, e := range strings.Split(extensions, ",") {
			if trimmed := strings.TrimSpace(e); trimmed != "" {
				exts = append(exts, trimmed)
			}
		}
		if len(exts) > 0 {
			config.Upload.AllowedExtensions = exts
		}
	}

	// LLM
	if baseURL := os.Getenv("APTUS_LLM_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if apiKey := os.Getenv("APTUS_LLM_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}
	if model := os.Getenv("APTUS_LLM_CHAT_MODEL"); model != "" {
		config.LLM.ChatModel = model
	}
	if model := os.Getenv("APTUS_LLM_EMBEDDING_MODEL"); model != "" {
		config.LLM.EmbeddingModel = model
	}
	if maxTokens := os.Getenv("APTUS_LLM_MAX_TOKENS"); maxTokens != "" {
		if mt, err := strconv.Atoi(maxTokens); err == nil {
			config.LLM.MaxTokens = mt
		}
	}
	if temperature := os.Getenv("APTUS_LLM_TEMPERATURE"); temperature != "" {
		if t, err := strconv.ParseFloat(temperature, 32); err == nil {
			config.LLM.Temperature = float32(t)
		}
	}
	if timeout := os.Getenv("APTUS_LLM_CHAT_TIMEOUT"); timeout != "" {
		config.LLM.ChatTimeout = timeout
	}
	if timeout := os.Getenv("APTUS_LLM_EMBED_TIMEOUT"); timeout != "" {
		config.LLM.EmbedTimeout = timeout
	}
	if dimension := os.Getenv("APTUS_LLM_EMBEDDING_DIMENSION"); dimension != "" {
		if d, err := strconv.Atoi(dimension); err == nil {
			config.LLM.EmbeddingDimension = d
		}
	}

	// Embeddings
	if chunkSize := os.Getenv("APTUS_EMBEDDINGS_CHUNK_SIZE"); chunkSize != "" {
		if cs, err := strconv.Atoi(chunkSize); err == nil {
			config.Embeddings.ChunkSize = cs
		}
	}
	if overlap := os.Getenv("APTUS_EMBEDDINGS_CHUNK_OVERLAP"); overlap != "" {
		if co, err := strconv.Atoi(overlap); err == nil {
			config.Embeddings.ChunkOverlap = co
		}
	}
	if batchSize := os.Getenv("APTUS_EMBEDDINGS_BATCH_SIZE"); batchSize != "" {
		if bs, err := strconv.Atoi(batchSize); err == nil {
			config.Embeddings.BatchSize = bs
		}
	}

	// Enrichment
	if ttl := os.Getenv("APTUS_ENRICHMENT_STALENESS_TTL_DAYS"); ttl != "" {
		if t, err := strconv.Atoi(ttl); err == nil {
			config.Enrichment.StalenessTTLDays = t
		}
	}
	if enabled := os.Getenv("APTUS_ENRICHMENT_SOURCE_SELECTION_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Enrichment.SourceSelectionEnabled = e
		}
	}
	if apiKey := os.Getenv("APTUS_ENRICHMENT_TAVILY_API_KEY"); apiKey != "" {
		config.Enrichment.TavilyAPIKey = apiKey
	}
	if baseURL := os.Getenv("APTUS_ENRICHMENT_SEARCH_BASE_URL"); baseURL != "" {
		config.Enrichment.SearchBaseURL = baseURL
	}
	if token := os.Getenv("APTUS_ENRICHMENT_GITHUB_TOKEN"); token != "" {
		config.Enrichment.GitHubToken = token
	} else if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		config.Enrichment.GitHubToken = token
	}

	// Matching
	if enabled := os.Getenv("APTUS_MATCHING_MULTI_PASS_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Matching.MultiPassEnabled = e
		}
	}
	if parallelism := os.Getenv("APTUS_MATCHING_PARALLELISM"); parallelism != "" {
		if p, err := strconv.Atoi(parallelism); err == nil && p >= 1 {
			config.Matching.Parallelism = p
		}
	}

	// Logging
	if level := os.Getenv("APTUS_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("APTUS_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config.
// Command-line flags have highest priority.
func ApplyFlagOverrides(config *Config, port int, host string, schedulerEnabled *bool) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
	if schedulerEnabled != nil {
		config.Scheduler.Enabled = *schedulerEnabled
	}
}

// Validate fails fast on misconfiguration so jobs never hit it at runtime.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	for name, value := range map[string]string{
		"scheduler.poll_interval":        c.Scheduler.PollInterval,
		"scheduler.stale_threshold":      c.Scheduler.StaleThreshold,
		"scheduler.stale_sweep_interval": c.Scheduler.StaleSweepInterval,
		"scheduler.metrics_interval":     c.Scheduler.MetricsInterval,
		"queue.retry_delay":              c.Queue.RetryDelay,
		"llm.chat_timeout":               c.LLM.ChatTimeout,
		"llm.embed_timeout":              c.LLM.EmbedTimeout,
		"enrichment.request_timeout":     c.Enrichment.RequestTimeout,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %q", name, value)
		}
	}

	if _, err := cron.ParseStandard(c.Scheduler.CleanupCron); err != nil {
		return fmt.Errorf("invalid scheduler.cleanup_cron %q: %w", c.Scheduler.CleanupCron, err)
	}

	if c.Embeddings.ChunkOverlap >= c.Embeddings.ChunkSize {
		return fmt.Errorf("embeddings.chunk_overlap (%d) must be smaller than chunk_size (%d)",
			c.Embeddings.ChunkOverlap, c.Embeddings.ChunkSize)
	}

	if c.Matching.BorderlineMin > c.Matching.BorderlineMax {
		return fmt.Errorf("matching.borderline_min (%.0f) must not exceed borderline_max (%.0f)",
			c.Matching.BorderlineMin, c.Matching.BorderlineMax)
	}

	return nil
}

// Duration helpers. Values are validated at startup; parse errors here fall
// back to the documented defaults.

func (c *SchedulerConfig) PollIntervalDuration() time.Duration {
	return parseDurationOr(c.PollInterval, 5*time.Second)
}

func (c *SchedulerConfig) StaleThresholdDuration() time.Duration {
	return parseDurationOr(c.StaleThreshold, 10*time.Minute)
}

func (c *SchedulerConfig) StaleSweepIntervalDuration() time.Duration {
	return parseDurationOr(c.StaleSweepInterval, time.Minute)
}

func (c *SchedulerConfig) MetricsIntervalDuration() time.Duration {
	return parseDurationOr(c.MetricsInterval, 5*time.Minute)
}

func (c *QueueConfig) RetryDelayDuration() time.Duration {
	return parseDurationOr(c.RetryDelay, 5*time.Minute)
}

func (c *LLMConfig) ChatTimeoutDuration() time.Duration {
	return parseDurationOr(c.ChatTimeout, 120*time.Second)
}

func (c *LLMConfig) EmbedTimeoutDuration() time.Duration {
	return parseDurationOr(c.EmbedTimeout, 60*time.Second)
}

func (c *EnrichmentConfig) RequestTimeoutDuration() time.Duration {
	return parseDurationOr(c.RequestTimeout, 15*time.Second)
}

func (c *EnrichmentConfig) StalenessTTL() time.Duration {
	days := c.StalenessTTLDays
	if days <= 0 {
		days = 7
	}
	return time.Duration(days) * 24 * time.Hour
}

func (c *UploadConfig) MaxFileSizeBytes() int64 {
	mb := c.MaxFileSizeMB
	if mb <= 0 {
		mb = 50
	}
	return int64(mb) * 1024 * 1024
}

// IsAllowedExtension reports whether the filename carries a permitted
// extension. Comparison is case-insensitive.
func (c *UploadConfig) IsAllowedExtension(filename string) bool {
	lower := strings.ToLower(filename)
	for _, ext := range c.AllowedExtensions {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// IsProduction returns true when running in production mode
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return fallback
}
