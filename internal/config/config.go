package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the main configuration structure
type Config struct {
	Compression CompressionConfig `mapstructure:"compression"`
	Web         WebConfig         `mapstructure:"web"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// CompressionConfig holds the fixed options handed to the compressor
type CompressionConfig struct {
	MaxSizeMB        float64 `mapstructure:"max_size_mb"`
	MaxWidthOrHeight int     `mapstructure:"max_width_or_height"`
	UseWebWorker     bool    `mapstructure:"use_web_worker"`
	InitialQuality   int     `mapstructure:"initial_quality"`
	MaxIteration     int     `mapstructure:"max_iteration"`
	Workers          int     `mapstructure:"workers"`
}

// WebConfig contains HTTP server settings
type WebConfig struct {
	Port           int           `mapstructure:"port"`
	MaxUploadMB    int           `mapstructure:"max_upload_mb"`
	SessionTTL     time.Duration `mapstructure:"session_ttl"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Compression: CompressionConfig{
			MaxSizeMB:        1,
			MaxWidthOrHeight: 1920,
			UseWebWorker:     true,
			InitialQuality:   90,
			MaxIteration:     10,
			Workers:          2,
		},
		Web: WebConfig{
			Port:         8080,
			MaxUploadMB:  32,
			SessionTTL:   30 * time.Minute,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			FilePath:   "image-workbench.log",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

// LoadConfig loads configuration from file and environment variables.
// An empty configPath searches the default locations; a missing file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.image-workbench")
		v.AddConfigPath("/etc/image-workbench")
	}

	v.SetEnvPrefix("IMAGE_WORKBENCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// bindEnv registers every key so AutomaticEnv overrides apply to Unmarshal
// even when no config file mentions them.
func bindEnv(v *viper.Viper) {
	keys := []string{
		"compression.max_size_mb",
		"compression.max_width_or_height",
		"compression.use_web_worker",
		"compression.initial_quality",
		"compression.max_iteration",
		"compression.workers",
		"web.port",
		"web.max_upload_mb",
		"web.session_ttl",
		"web.read_timeout",
		"web.write_timeout",
		"web.idle_timeout",
		"web.allowed_origins",
		"logging.level",
		"logging.file_path",
		"logging.max_size",
		"logging.max_backups",
		"logging.max_age",
		"logging.compress",
	}
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// MinSessionTTL is the shortest idle timeout accepted for web sessions.
const MinSessionTTL = time.Second

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Compression.MaxSizeMB <= 0 {
		return fmt.Errorf("compression.max_size_mb must be positive, got %v", c.Compression.MaxSizeMB)
	}
	if c.Compression.MaxWidthOrHeight <= 0 {
		return fmt.Errorf("compression.max_width_or_height must be positive, got %d", c.Compression.MaxWidthOrHeight)
	}
	if c.Compression.InitialQuality < 1 || c.Compression.InitialQuality > 100 {
		return fmt.Errorf("compression.initial_quality must be within 1..100, got %d", c.Compression.InitialQuality)
	}
	if c.Compression.MaxIteration <= 0 {
		c.Compression.MaxIteration = 10
	}
	if c.Compression.Workers <= 0 {
		c.Compression.Workers = 2
	}

	if c.Web.Port < 0 || c.Web.Port > 65535 {
		return fmt.Errorf("invalid web.port: %d", c.Web.Port)
	}
	if c.Web.MaxUploadMB <= 0 {
		c.Web.MaxUploadMB = 32
	}
	if c.Web.SessionTTL <= 0 {
		c.Web.SessionTTL = 30 * time.Minute
	}
	if c.Web.SessionTTL < MinSessionTTL {
		return fmt.Errorf("web.session_ttl must be at least %s, got %s", MinSessionTTL, c.Web.SessionTTL)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}

// MaxSizeBytes returns the compression target in bytes.
func (c CompressionConfig) MaxSizeBytes() int64 {
	return int64(c.MaxSizeMB * 1024 * 1024)
}

// MaxUploadBytes returns the request body limit for uploads.
func (c WebConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}
