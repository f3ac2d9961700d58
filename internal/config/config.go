// Package config provides configuration types and helpers for convolog.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/bimmerbailey/convolog/internal/normalize"
	"github.com/bimmerbailey/convolog/internal/pipeline"
	"github.com/bimmerbailey/convolog/internal/redact"
)

// Config holds the application-wide configuration.
type Config struct {
	Format           string          `mapstructure:"format"`
	Verbose          bool            `mapstructure:"verbose"`
	LogLevel         string          `mapstructure:"log_level"`
	LogPretty        bool            `mapstructure:"log_pretty"`
	TimestampFormats []string        `mapstructure:"timestamp_formats"`
	DataDir          string          `mapstructure:"data_dir"`
	Redaction        RedactionConfig `mapstructure:"redaction"`
	Pipeline         pipeline.Config `mapstructure:"pipeline"`
	Server           ServerConfig    `mapstructure:"server"`
	S3               S3Config        `mapstructure:"s3"`
}

// RedactionConfig controls display-time masking of sensitive text.
type RedactionConfig struct {
	// Enabled turns all masking off when false, regardless of the toggles.
	Enabled    bool `mapstructure:"enabled"`
	Emails     bool `mapstructure:"emails"`
	Tokens     bool `mapstructure:"tokens"`
	LongDigits bool `mapstructure:"long_digits"`
}

// Options returns the redactor options in effect.
func (r RedactionConfig) Options() redact.Options {
	if !r.Enabled {
		return redact.Options{}
	}
	return redact.Options{
		Emails:     r.Emails,
		Tokens:     r.Tokens,
		LongDigits: r.LongDigits,
	}
}

// ServerConfig holds settings for "convolog serve".
type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
	URLHosts          []string      `mapstructure:"url_hosts"` // empty allows any public host
	AllowPrivateURLs  bool          `mapstructure:"allow_private_urls"`
}

// S3Config holds settings for s3:// sources.
type S3Config struct {
	Region string `mapstructure:"region"` // empty uses the AWS default chain
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	p := pipeline.DefaultConfig()

	v.SetDefault("format", "text")
	v.SetDefault("verbose", false)
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_pretty", true)
	v.SetDefault("timestamp_formats", normalize.DefaultTimestampLayouts)
	v.SetDefault("data_dir", filepath.Join(".", "data", "logs"))

	v.SetDefault("redaction.enabled", true)
	v.SetDefault("redaction.emails", true)
	v.SetDefault("redaction.tokens", true)
	v.SetDefault("redaction.long_digits", true)

	v.SetDefault("pipeline.batch_size", p.BatchSize)
	v.SetDefault("pipeline.batch_interval", p.BatchInterval)
	v.SetDefault("pipeline.whole_document_limit", p.WholeDocumentLimit)
	v.SetDefault("pipeline.max_error_samples", p.MaxErrorSamples)
	v.SetDefault("pipeline.chunk_size", p.ChunkSize)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_header_timeout", 10*time.Second)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.url_hosts", []string{})
	v.SetDefault("server.allow_private_urls", false)
	v.SetDefault("s3.region", "")
}

// Load decodes the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Default returns the configuration with every default applied.
func Default() Config {
	v := viper.New()
	SetDefaults(v)
	cfg, _ := Load(v)
	return cfg
}
