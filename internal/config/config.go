// Package config handles application configuration loading from a YAML file
// with environment variable overrides.
package config

import (
	"os"
	"strconv"
	"time"

	contextutils "examgen/internal/utils"

	"gopkg.in/yaml.v3"
)

// AIModel represents a single allow-listed AI model.
type AIModel struct {
	Name      string `json:"name" yaml:"name"`
	Code      string `json:"code" yaml:"code"`
	MaxTokens int    `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// ProviderConfig defines a chat-completion provider and its allow-listed models.
type ProviderConfig struct {
	Name   string    `json:"name" yaml:"name"`
	Code   string    `json:"code" yaml:"code"`
	URL    string    `json:"url" yaml:"url"`
	APIKey string    `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Models []AIModel `json:"models" yaml:"models"`
}

// GenerationConfig carries the tunable policy knobs of the generation pipeline.
// These are injected configuration data rather than package constants so the
// prompt builder and image selector stay independently testable.
type GenerationConfig struct {
	// QualityThreshold is the score below which a question counts as weak.
	QualityThreshold int `json:"quality_threshold" yaml:"quality_threshold"`
	// MaxRegenerate bounds how many weak questions one run will regenerate.
	MaxRegenerate int `json:"max_regenerate" yaml:"max_regenerate"`
	// RegeneratedScore is the optimistic quality score assigned to replacements.
	RegeneratedScore int `json:"regenerated_score" yaml:"regenerated_score"`
	// ParseRetries is how many extra attempts follow a malformed AI response.
	ParseRetries int `json:"parse_retries" yaml:"parse_retries"`
	// MaxDocumentBytes caps uploaded source documents.
	MaxDocumentBytes int64 `json:"max_document_bytes" yaml:"max_document_bytes"`
	// ImageTriggerPhrases are the Arabic phrases that mark a question as
	// referencing a figure in auto image mode.
	ImageTriggerPhrases []string `json:"image_trigger_phrases" yaml:"image_trigger_phrases"`
}

// EndpointConfig points at one of the best-effort collaborator services
// (diagram generation, document extraction).
type EndpointConfig struct {
	URL     string        `json:"url" yaml:"url"`
	APIKey  string        `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Port        string   `json:"port" yaml:"port"`
	Debug       bool     `json:"debug" yaml:"debug"`
	LogLevel    string   `json:"log_level" yaml:"log_level"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins"`
}

// DatabaseConfig represents database connection configuration.
type DatabaseConfig struct {
	URL             string        `json:"url" yaml:"url"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	MigrationsPath  string        `json:"migrations_path" yaml:"migrations_path"`
}

// OpenTelemetryConfig represents observability configuration.
type OpenTelemetryConfig struct {
	Endpoint       string  `json:"endpoint" yaml:"endpoint"`
	Protocol       string  `json:"protocol" yaml:"protocol"`
	ServiceName    string  `json:"service_name" yaml:"service_name"`
	ServiceVersion string  `json:"service_version" yaml:"service_version"`
	EnableTracing  bool    `json:"enable_tracing" yaml:"enable_tracing"`
	EnableMetrics  bool    `json:"enable_metrics" yaml:"enable_metrics"`
	EnableLogging  bool    `json:"enable_logging" yaml:"enable_logging"`
	Insecure       bool    `json:"insecure" yaml:"insecure"`
	SamplingRate   float64 `json:"sampling_rate" yaml:"sampling_rate"`
}

// Config holds all configuration for the application.
type Config struct {
	Server        ServerConfig        `json:"server" yaml:"server"`
	Database      DatabaseConfig      `json:"database" yaml:"database"`
	Providers     []ProviderConfig    `json:"providers" yaml:"providers"`
	Generation    GenerationConfig    `json:"generation" yaml:"generation"`
	Diagram       EndpointConfig      `json:"diagram" yaml:"diagram"`
	Extractor     EndpointConfig      `json:"extractor" yaml:"extractor"`
	OpenTelemetry OpenTelemetryConfig `json:"open_telemetry" yaml:"open_telemetry"`

	IsTest bool `json:"is_test" yaml:"is_test"`
}

// NewConfig returns a configuration populated with defaults, the optional YAML
// file named by EXAMGEN_CONFIG_FILE, and environment overrides, in that order.
func NewConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("EXAMGEN_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, contextutils.WrapErrorf(err, "failed to read config file %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, contextutils.WrapErrorf(err, "failed to parse config file %s", path)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8080",
			LogLevel:    "info",
			CORSOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: DatabaseConnMaxLifetime,
			MigrationsPath:  "migrations",
		},
		Providers: []ProviderConfig{
			{
				Name: "AI Gateway",
				Code: DefaultProviderCode,
				URL:  "https://ai.gateway.lovable.dev/v1",
				Models: []AIModel{
					{Name: "Gemini 2.5 Pro", Code: "google/gemini-2.5-pro", MaxTokens: 8192},
					{Name: "MiMo v2 Flash", Code: "xiaomi/mimo-v2-flash:free", MaxTokens: 4096},
					{Name: "Nemotron 3 Nano", Code: "nvidia/nemotron-3-nano-30b-a3b:free", MaxTokens: 4096},
				},
			},
		},
		Generation: GenerationConfig{
			QualityThreshold:    DefaultQualityThreshold,
			MaxRegenerate:       DefaultMaxRegenerate,
			RegeneratedScore:    DefaultRegeneratedScore,
			ParseRetries:        DefaultParseRetries,
			MaxDocumentBytes:    DefaultMaxDocumentBytes,
			ImageTriggerPhrases: DefaultImageTriggerPhrases(),
		},
		Diagram: EndpointConfig{
			Timeout: DefaultCollaboratorTimeout,
		},
		Extractor: EndpointConfig{
			Timeout: DefaultCollaboratorTimeout,
		},
		OpenTelemetry: OpenTelemetryConfig{
			ServiceName:    "examgen",
			ServiceVersion: "1.0.0",
			Protocol:       "grpc",
			SamplingRate:   1.0,
		},
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("EXAMGEN_PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("EXAMGEN_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("EXAMGEN_DEBUG"); v != "" {
		c.Server.Debug, _ = strconv.ParseBool(v)
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("EXAMGEN_AI_API_KEY"); v != "" {
		for i := range c.Providers {
			c.Providers[i].APIKey = v
		}
	}
	if v := os.Getenv("EXAMGEN_AI_URL"); v != "" && len(c.Providers) > 0 {
		c.Providers[0].URL = v
	}
	if v := os.Getenv("EXAMGEN_DIAGRAM_URL"); v != "" {
		c.Diagram.URL = v
	}
	if v := os.Getenv("EXAMGEN_EXTRACTOR_URL"); v != "" {
		c.Extractor.URL = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.OpenTelemetry.Endpoint = v
		c.OpenTelemetry.EnableTracing = true
		c.OpenTelemetry.EnableLogging = true
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return contextutils.WrapError(contextutils.ErrAIConfigInvalid, "at least one AI provider must be configured")
	}
	for _, p := range c.Providers {
		if p.Code == "" || p.URL == "" {
			return contextutils.WrapErrorf(contextutils.ErrAIConfigInvalid, "provider %q needs both code and url", p.Name)
		}
		if len(p.Models) == 0 {
			return contextutils.WrapErrorf(contextutils.ErrAIConfigInvalid, "provider %q has no allow-listed models", p.Name)
		}
	}
	if c.Generation.QualityThreshold < 1 || c.Generation.QualityThreshold > 10 {
		return contextutils.WrapError(contextutils.ErrValidationFailed, "generation.quality_threshold must be within 1-10")
	}
	if c.Generation.MaxRegenerate < 0 {
		return contextutils.WrapError(contextutils.ErrValidationFailed, "generation.max_regenerate must not be negative")
	}
	return nil
}

// ModelAllowed reports whether the model code appears in any provider's allow-list.
func (c *Config) ModelAllowed(code string) bool {
	_, _, ok := c.lookupModel(code)
	return ok
}

// ProviderForModel returns the provider and model entry for an allow-listed
// model code.
func (c *Config) ProviderForModel(code string) (*ProviderConfig, *AIModel, error) {
	p, m, ok := c.lookupModel(code)
	if !ok {
		return nil, nil, contextutils.WrapErrorf(contextutils.ErrAIConfigInvalid, "model %q is not allow-listed", code)
	}
	return p, m, nil
}

// DefaultModel returns the first allow-listed model code.
func (c *Config) DefaultModel() string {
	for _, p := range c.Providers {
		if len(p.Models) > 0 {
			return p.Models[0].Code
		}
	}
	return ""
}

func (c *Config) lookupModel(code string) (*ProviderConfig, *AIModel, bool) {
	for i := range c.Providers {
		for j := range c.Providers[i].Models {
			if c.Providers[i].Models[j].Code == code {
				return &c.Providers[i], &c.Providers[i].Models[j], true
			}
		}
	}
	return nil, nil, false
}
