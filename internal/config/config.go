package config

import "time"

// BlobConfig holds attachment storage (MinIO) settings. Uploads are
// disabled when Endpoint is empty.
type BlobConfig struct {
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl" yaml:"use_ssl"`
	PublicURL string `mapstructure:"public_url" yaml:"public_url"`
}

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	TokenTTL    time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`

	HistoryPageSize    int   `mapstructure:"history_page_size" yaml:"history_page_size"`
	HistoryPageMax     int   `mapstructure:"history_page_max" yaml:"history_page_max"`
	EventBufferSize    int   `mapstructure:"event_buffer_size" yaml:"event_buffer_size"`
	AuthRatePerMinute  int   `mapstructure:"auth_rate_per_minute" yaml:"auth_rate_per_minute"`
	MaxAttachmentBytes int64 `mapstructure:"max_attachment_bytes" yaml:"max_attachment_bytes"`

	Blob BlobConfig `mapstructure:"blob" yaml:"blob"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:               ":8080",
		ReadHeaderTimeout:  5 * time.Second,
		ShutdownTimeout:    5 * time.Second,
		DatabasePath:       "deskchat.db",
		LogLevel:           "info",
		JWTIssuer:          "deskchat",
		JWTAudience:        "deskchat",
		TokenTTL:           24 * time.Hour,
		HistoryPageSize:    30,
		HistoryPageMax:     100,
		EventBufferSize:    16,
		AuthRatePerMinute:  30,
		MaxAttachmentBytes: 10 << 20,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.JWTSecret != "" {
		c.JWTSecret = other.JWTSecret
	}
}
