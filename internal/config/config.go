package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Benchmark BenchmarkConfig `mapstructure:"benchmark"`
	Ollama    OllamaConfig    `mapstructure:"ollama"`
	Report    ReportConfig    `mapstructure:"report"`
	Remote    RemoteConfig    `mapstructure:"remote"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// BenchmarkConfig holds sweep configuration
type BenchmarkConfig struct {
	Prompt  string        `mapstructure:"prompt"`
	Timeout time.Duration `mapstructure:"timeout"`
	Pacing  time.Duration `mapstructure:"pacing"` // minimum interval between model runs
	Models  []string      `mapstructure:"models"` // empty means benchmark every installed model
}

// OllamaConfig holds Ollama CLI configuration
type OllamaConfig struct {
	Binary       string        `mapstructure:"binary"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

// ReportConfig holds report output configuration
type ReportConfig struct {
	Output string `mapstructure:"output"`
}

// RemoteConfig holds SSH configuration for benchmarking a remote host
type RemoteConfig struct {
	Host    string        `mapstructure:"host"` // user@host[:port]; empty means local
	KeyPath string        `mapstructure:"key_path"`
	Timeout time.Duration `mapstructure:"timeout"` // dial timeout
}

// UploadConfig holds SFTP report upload configuration
type UploadConfig struct {
	Destination string `mapstructure:"destination"` // user@host:/path; empty disables upload
	KeyPath     string `mapstructure:"key_path"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig holds HTTP server configuration for the serve command
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "text"
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Config file is optional
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Read from environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Bind specific environment variables
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Benchmark defaults
	v.SetDefault("benchmark.prompt", "Explain the concept of machine learning in 50 words.")
	v.SetDefault("benchmark.timeout", 300*time.Second)
	v.SetDefault("benchmark.pacing", time.Duration(0))

	// Ollama defaults
	v.SetDefault("ollama.binary", "ollama")
	v.SetDefault("ollama.probe_timeout", 10*time.Second)

	// Report defaults
	v.SetDefault("report.output", "ollama_benchmark_report.md")

	// Remote defaults
	v.SetDefault("remote.timeout", 15*time.Second)

	// Database defaults
	v.SetDefault("database.path", "./data/ollama-bench.db")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

func bindEnvVars(v *viper.Viper) {
	// Helper to bind and log errors (BindEnv errors are non-fatal but should be logged)
	bindEnv := func(key string, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			slog.Warn("failed to bind environment variable",
				slog.String("key", key),
				slog.String("env_var", envVar),
				slog.String("error", err.Error()))
		}
	}

	// Benchmark knobs
	bindEnv("benchmark.prompt", "BENCHMARK_PROMPT")
	bindEnv("benchmark.timeout", "BENCHMARK_TIMEOUT")
	bindEnv("ollama.binary", "OLLAMA_BINARY")

	// Report output
	bindEnv("report.output", "REPORT_OUTPUT")

	// Remote benchmarking
	bindEnv("remote.host", "REMOTE_HOST")
	bindEnv("remote.key_path", "REMOTE_KEY_PATH")

	// Report upload
	bindEnv("upload.destination", "UPLOAD_DESTINATION")
	bindEnv("upload.key_path", "UPLOAD_KEY_PATH")

	// Database path
	bindEnv("database.path", "DATABASE_PATH")

	// Server config
	bindEnv("server.host", "SERVER_HOST")
	bindEnv("server.port", "SERVER_PORT")

	// Logging
	bindEnv("logging.level", "LOG_LEVEL")
	bindEnv("logging.format", "LOG_FORMAT")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Benchmark.Prompt) == "" {
		return fmt.Errorf("benchmark prompt must not be empty")
	}
	if c.Benchmark.Timeout <= 0 {
		return fmt.Errorf("benchmark timeout must be positive")
	}
	if c.Benchmark.Pacing < 0 {
		return fmt.Errorf("benchmark pacing must not be negative")
	}

	if c.Ollama.Binary == "" {
		return fmt.Errorf("ollama binary must not be empty")
	}

	if c.Remote.Host != "" && c.Remote.KeyPath == "" {
		return fmt.Errorf("REMOTE_KEY_PATH is required when a remote host is configured")
	}

	if c.Upload.Destination != "" && c.Upload.KeyPath == "" {
		return fmt.Errorf("UPLOAD_KEY_PATH is required when an upload destination is configured")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}

	return nil
}
