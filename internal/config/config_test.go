package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/bimmerbailey/convolog/internal/pipeline"
	"github.com/bimmerbailey/convolog/internal/redact"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Format != "text" {
		t.Errorf("Format = %q", cfg.Format)
	}
	if cfg.Pipeline != pipeline.DefaultConfig() {
		t.Errorf("Pipeline = %+v, want %+v", cfg.Pipeline, pipeline.DefaultConfig())
	}
	if cfg.Server.Addr != ":8080" || cfg.Server.ReadHeaderTimeout != 10*time.Second {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Server.AllowPrivateURLs || len(cfg.Server.URLHosts) != 0 || len(cfg.Server.AllowedOrigins) != 0 {
		t.Errorf("Server guard defaults = %+v", cfg.Server)
	}
	if cfg.Redaction.Options() != redact.DefaultOptions() {
		t.Errorf("Redaction = %+v", cfg.Redaction)
	}
	if len(cfg.TimestampFormats) == 0 {
		t.Error("TimestampFormats empty")
	}
}

func TestLoad_FromYAML(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")

	yaml := `
format: json
log_level: debug
redaction:
  tokens: false
pipeline:
  batch_size: 50
  batch_interval: 250ms
server:
  addr: 127.0.0.1:9000
s3:
  region: eu-west-1
`
	if err := v.ReadConfig(strings.NewReader(yaml)); err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"format", cfg.Format, "json"},
		{"log level", cfg.LogLevel, "debug"},
		{"batch size", cfg.Pipeline.BatchSize, 50},
		{"batch interval", cfg.Pipeline.BatchInterval, 250 * time.Millisecond},
		{"max samples kept default", cfg.Pipeline.MaxErrorSamples, 5},
		{"addr", cfg.Server.Addr, "127.0.0.1:9000"},
		{"region", cfg.S3.Region, "eu-west-1"},
		{"tokens off", cfg.Redaction.Options().Tokens, false},
		{"emails on", cfg.Redaction.Options().Emails, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestRedactionConfig_Disabled(t *testing.T) {
	r := RedactionConfig{Enabled: false, Emails: true, Tokens: true, LongDigits: true}
	if r.Options() != (redact.Options{}) {
		t.Errorf("disabled redaction returned %+v", r.Options())
	}
}
