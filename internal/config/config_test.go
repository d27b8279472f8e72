package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Server.Port != defaultPort {
		t.Errorf("expected default port %q, got %q", defaultPort, cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != defaultReadTimeout {
		t.Errorf("expected default read timeout %v, got %v", defaultReadTimeout, cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != defaultWriteTimeout {
		t.Errorf("expected default write timeout %v, got %v", defaultWriteTimeout, cfg.Server.WriteTimeout)
	}
	if cfg.Logging.Level != slog.LevelInfo || cfg.Logging.Format != defaultLogFormat {
		t.Errorf("unexpected logging defaults: %+v", cfg.Logging)
	}
	if cfg.Jobs.Retention != 24*time.Hour || cfg.Jobs.SweepInterval != 10*time.Minute || cfg.Jobs.MaxConcurrent != 0 {
		t.Errorf("unexpected job defaults: %+v", cfg.Jobs)
	}
	if cfg.Metadata.MaxAge != 24*time.Hour {
		t.Errorf("expected default metadata max age 24h, got %v", cfg.Metadata.MaxAge)
	}
	if cfg.OpenAI.Enabled() || cfg.NoteStore.Enabled() || cfg.Storage.RedisURL != "" {
		t.Errorf("optional integrations should be off by default: %+v", cfg)
	}
}

func TestLoadWithOverrides(t *testing.T) {
	clearConfigEnv(t)

	overrides := map[string]string{
		"SERVER_PORT":                "9090",
		"SERVER_READ_TIMEOUT_SECONDS": "30",
		"LOG_LEVEL":                  "debug",
		"LOG_FORMAT":                 "text",
		"REDIS_URL":                  "redis://cache:6379/0",
		"DATABASE_URL":               "postgres://mealvault@db/mealvault",
		"OPENAI_API_KEY":             "sk-test",
		"OPENAI_VISION_MODEL":        "gpt-4o",
		"APIFY_API_TOKEN":            "apify-token",
		"NOTESTORE_BASE_URL":         "https://notes.example.com/api",
		"COMPLIANCE_POLICY_FILE":     "/etc/mealvault/policies.yaml",
		"COMPLIANCE_USER_AGENT":      "MealVaultBot/2.0",
		"JOB_RETENTION_HOURS":        "48",
		"JOB_SWEEP_INTERVAL_SECONDS": "60",
		"JOB_MAX_CONCURRENT":         "4",
		"METADATA_MAX_AGE_HOURS":     "6",
	}
	for key, value := range overrides {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Server.Port != "9090" || cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Logging.Level != slog.LevelDebug || cfg.Logging.Format != "text" {
		t.Errorf("unexpected logging config: %+v", cfg.Logging)
	}
	if cfg.Storage.RedisURL != overrides["REDIS_URL"] || cfg.Storage.DatabaseURL != overrides["DATABASE_URL"] {
		t.Errorf("unexpected storage config: %+v", cfg.Storage)
	}
	if !cfg.OpenAI.Enabled() || cfg.OpenAI.VisionModel != "gpt-4o" {
		t.Errorf("unexpected openai config: %+v", cfg.OpenAI)
	}
	if cfg.Apify.Token != "apify-token" || !cfg.NoteStore.Enabled() {
		t.Errorf("unexpected collaborator config: %+v %+v", cfg.Apify, cfg.NoteStore)
	}
	if cfg.Compliance.PolicyFile != overrides["COMPLIANCE_POLICY_FILE"] || cfg.Compliance.UserAgent != "MealVaultBot/2.0" {
		t.Errorf("unexpected compliance config: %+v", cfg.Compliance)
	}
	if cfg.Jobs.Retention != 48*time.Hour || cfg.Jobs.SweepInterval != time.Minute || cfg.Jobs.MaxConcurrent != 4 {
		t.Errorf("unexpected job config: %+v", cfg.Jobs)
	}
	if cfg.Metadata.MaxAge != 6*time.Hour {
		t.Errorf("expected metadata max age 6h, got %v", cfg.Metadata.MaxAge)
	}
}

func TestLoadPrefersPort(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("PORT", "7000")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Server.Port != "7000" {
		t.Errorf("expected PORT to win, got %q", cfg.Server.Port)
	}
}

func TestLoadWithInvalidValues(t *testing.T) {
	tests := map[string]string{
		"SERVER_READ_TIMEOUT_SECONDS":     "-1",
		"SERVER_WRITE_TIMEOUT_SECONDS":    "abc",
		"SERVER_SHUTDOWN_TIMEOUT_SECONDS": "3.5",
		"LOG_LEVEL":                       "verbose",
		"LOG_FORMAT":                      "xml",
		"JOB_RETENTION_HOURS":             "0",
		"JOB_SWEEP_INTERVAL_SECONDS":      "0",
		"JOB_MAX_CONCURRENT":              "many",
		"METADATA_MAX_AGE_HOURS":          "-6",
	}

	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			clearConfigEnv(t)
			t.Setenv(key, value)

			if _, err := Load(); err == nil {
				t.Fatalf("expected error when %s=%q", key, value)
			}
		})
	}
}

func TestParseLogLevelAliases(t *testing.T) {
	tests := map[string]slog.Level{
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
	}

	for input, expected := range tests {
		level, err := parseLogLevel(input)
		if err != nil {
			t.Fatalf("parseLogLevel(%q) returned error: %v", input, err)
		}
		if level != expected {
			t.Errorf("parseLogLevel(%q) = %v, want %v", input, level, expected)
		}
	}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"PORT",
		"SERVER_PORT",
		"SERVER_READ_TIMEOUT_SECONDS",
		"SERVER_WRITE_TIMEOUT_SECONDS",
		"SERVER_SHUTDOWN_TIMEOUT_SECONDS",
		"LOG_LEVEL",
		"LOG_FORMAT",
		"REDIS_URL",
		"DATABASE_URL",
		"OPENAI_API_KEY",
		"OPENAI_BASE_URL",
		"OPENAI_MODEL",
		"OPENAI_VISION_MODEL",
		"APIFY_API_TOKEN",
		"NOTESTORE_BASE_URL",
		"NOTESTORE_CLIENT_ID",
		"NOTESTORE_CLIENT_SECRET",
		"COMPLIANCE_POLICY_FILE",
		"COMPLIANCE_USER_AGENT",
		"JOB_RETENTION_HOURS",
		"JOB_SWEEP_INTERVAL_SECONDS",
		"JOB_MAX_CONCURRENT",
		"METADATA_MAX_AGE_HOURS",
	}

	for _, key := range keys {
		t.Setenv(key, "")
	}
}
