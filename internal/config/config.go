package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server     ServerConfig
	Logging    LoggingConfig
	Storage    StorageConfig
	OpenAI     OpenAIConfig
	Apify      ApifyConfig
	NoteStore  NoteStoreConfig
	Compliance ComplianceConfig
	Jobs       JobsConfig
	Metadata   MetadataConfig
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// StorageConfig selects shared backends. Empty values keep state in memory
// and disable the failure log.
type StorageConfig struct {
	RedisURL    string
	DatabaseURL string
}

// OpenAIConfig configures text recognition and recipe structuring.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	VisionModel string
}

// Enabled reports whether an API key was provided.
func (c OpenAIConfig) Enabled() bool { return c.APIKey != "" }

// ApifyConfig configures the social media scrapers.
type ApifyConfig struct {
	Token string
}

// NoteStoreConfig configures note imports.
type NoteStoreConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
}

// Enabled reports whether a note store endpoint was provided.
func (c NoteStoreConfig) Enabled() bool { return c.BaseURL != "" }

// ComplianceConfig points at policy overrides.
type ComplianceConfig struct {
	PolicyFile string
	UserAgent  string
}

// JobsConfig tunes the import tracker.
type JobsConfig struct {
	Retention     time.Duration
	SweepInterval time.Duration
	MaxConcurrent int
}

// MetadataConfig tunes the metadata cache.
type MetadataConfig struct {
	MaxAge time.Duration
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 120 * time.Second
	defaultShutdownTimeout = 15 * time.Second

	defaultLogFormat = "json"

	defaultJobRetention     = 24 * time.Hour
	defaultJobSweepInterval = 10 * time.Minute
	defaultMetadataMaxAge   = 24 * time.Hour
)

// Load reads configuration from environment variables, applying defaults when
// values are not provided or invalid.
func Load() (Config, error) {
	// PORT wins so container platforms can assign it.
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Storage: StorageConfig{
			RedisURL:    os.Getenv("REDIS_URL"),
			DatabaseURL: os.Getenv("DATABASE_URL"),
		},
		OpenAI: OpenAIConfig{
			APIKey:      os.Getenv("OPENAI_API_KEY"),
			BaseURL:     os.Getenv("OPENAI_BASE_URL"),
			Model:       os.Getenv("OPENAI_MODEL"),
			VisionModel: os.Getenv("OPENAI_VISION_MODEL"),
		},
		Apify: ApifyConfig{
			Token: os.Getenv("APIFY_API_TOKEN"),
		},
		NoteStore: NoteStoreConfig{
			BaseURL:      os.Getenv("NOTESTORE_BASE_URL"),
			ClientID:     os.Getenv("NOTESTORE_CLIENT_ID"),
			ClientSecret: os.Getenv("NOTESTORE_CLIENT_SECRET"),
		},
		Compliance: ComplianceConfig{
			PolicyFile: os.Getenv("COMPLIANCE_POLICY_FILE"),
			UserAgent:  os.Getenv("COMPLIANCE_USER_AGENT"),
		},
		Jobs: JobsConfig{
			Retention:     defaultJobRetention,
			SweepInterval: defaultJobSweepInterval,
		},
		Metadata: MetadataConfig{
			MaxAge: defaultMetadataMaxAge,
		},
	}

	durations := []struct {
		key  string
		unit time.Duration
		dst  *time.Duration
	}{
		{"SERVER_READ_TIMEOUT_SECONDS", time.Second, &cfg.Server.ReadTimeout},
		{"SERVER_WRITE_TIMEOUT_SECONDS", time.Second, &cfg.Server.WriteTimeout},
		{"SERVER_SHUTDOWN_TIMEOUT_SECONDS", time.Second, &cfg.Server.ShutdownTimeout},
		{"JOB_RETENTION_HOURS", time.Hour, &cfg.Jobs.Retention},
		{"JOB_SWEEP_INTERVAL_SECONDS", time.Second, &cfg.Jobs.SweepInterval},
		{"METADATA_MAX_AGE_HOURS", time.Hour, &cfg.Metadata.MaxAge},
	}
	for _, d := range durations {
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		n, err := parseCount(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = time.Duration(n) * d.unit
	}

	if v := os.Getenv("JOB_MAX_CONCURRENT"); v != "" {
		n, err := parseCount(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid JOB_MAX_CONCURRENT: %w", err)
		}
		cfg.Jobs.MaxConcurrent = n
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	if cfg.Jobs.Retention == 0 {
		return Config{}, fmt.Errorf("invalid JOB_RETENTION_HOURS: must be positive")
	}
	if cfg.Jobs.SweepInterval == 0 {
		return Config{}, fmt.Errorf("invalid JOB_SWEEP_INTERVAL_SECONDS: must be positive")
	}

	return cfg, nil
}

func parseCount(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return n, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
