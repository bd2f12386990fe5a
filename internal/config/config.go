package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config server configuration
type Config struct {
	// Server
	Port string `json:"port"`

	// Storage
	DatabasePath string        `json:"database_path"`
	Retention    time.Duration `json:"retention"`

	// Uploads
	MaxUploadBytes int64 `json:"max_upload_bytes"`

	// Pipeline
	ProcessingTimeout time.Duration `json:"processing_timeout"`
	JanitorInterval   time.Duration `json:"janitor_interval"`

	// AI configuration
	OpenAIAPIKey string `json:"-"`
	OpenAIModel  string `json:"openai_model"`
}

// Load reads configuration from environment variables with defaults
func Load() (*Config, error) {
	config := &Config{
		Port:              getEnv("PORT", "8080"),
		DatabasePath:      getEnv("DATABASE_PATH", "./recserver.db"),
		Retention:         time.Duration(getEnvInt("RETENTION_DAYS", 1)) * 24 * time.Hour,
		MaxUploadBytes:    int64(getEnvInt("MAX_FILE_SIZE", 5*1024*1024)),
		ProcessingTimeout: getEnvDuration("PROCESSING_TIMEOUT", 30*time.Minute),
		JanitorInterval:   getEnvDuration("JANITOR_INTERVAL", time.Hour),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// Validate checks the configuration for usable values
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port must not be empty")
	}
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid port: %s", c.Port)
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database path must not be empty")
	}
	if c.Retention <= 0 {
		return fmt.Errorf("retention must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload size must be positive")
	}
	if c.ProcessingTimeout <= 0 {
		return fmt.Errorf("processing timeout must be positive")
	}
	if c.JanitorInterval <= 0 {
		return fmt.Errorf("janitor interval must be positive")
	}
	if c.OpenAIModel == "" {
		return fmt.Errorf("openai model must not be empty")
	}
	return nil
}

// AIEnabled reports whether enrichment should run
func (c *Config) AIEnabled() bool {
	return c.OpenAIAPIKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
