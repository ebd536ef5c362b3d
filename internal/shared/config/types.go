// Package config loads the retouch runtime configuration from retouch.yaml,
// RETOUCH_* environment variables and command-line overrides.
package config

import "time"

// Config is the fully resolved runtime configuration.
type Config struct {
	LLM           LLMConfig           `mapstructure:"llm" yaml:"llm"`
	Session       SessionConfig       `mapstructure:"session" yaml:"session"`
	Adjust        AdjustConfig        `mapstructure:"adjust" yaml:"adjust"`
	Automation    AutomationConfig    `mapstructure:"automation" yaml:"automation"`
	Observability ObservabilityConfig `mapstructure:"observability" yaml:"observability"`
	Logging       LoggingConfig       `mapstructure:"logging" yaml:"logging"`

	// Source is the config file that was read, empty when only defaults and
	// environment applied.
	Source string `mapstructure:"-" yaml:"-"`
}

// LLMConfig selects and tunes the decision-maker.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	ScriptPath  string        `mapstructure:"script_path" yaml:"script_path"`
	RateLimit   float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst   int           `mapstructure:"rate_burst" yaml:"rate_burst"`
	MaxRetries  int           `mapstructure:"max_retries" yaml:"max_retries"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// SessionConfig bounds one retouching session and says where it is written.
type SessionConfig struct {
	OutputDir         string        `mapstructure:"output_dir" yaml:"output_dir"`
	RetryCeiling      int           `mapstructure:"retry_ceiling" yaml:"retry_ceiling"`
	StepTimeout       time.Duration `mapstructure:"step_timeout" yaml:"step_timeout"`
	HistoryLimit      int           `mapstructure:"history_limit" yaml:"history_limit"`
	PreviewShortEdge  int           `mapstructure:"preview_short_edge" yaml:"preview_short_edge"`
	AttachmentMaxEdge int           `mapstructure:"attachment_max_edge" yaml:"attachment_max_edge"`
	GlobalStyle       string        `mapstructure:"global_style" yaml:"global_style"`
	Concurrency       int           `mapstructure:"concurrency" yaml:"concurrency"`
}

// AdjustConfig picks the adjustment variants.
type AdjustConfig struct {
	ContrastMode string `mapstructure:"contrast_mode" yaml:"contrast_mode"`
	WhitesMode   string `mapstructure:"whites_mode" yaml:"whites_mode"`
	LUTCacheSize int    `mapstructure:"lut_cache_size" yaml:"lut_cache_size"`
}

// AutomationConfig mirrors operations onto an on-screen editor.
type AutomationConfig struct {
	Enabled         bool          `mapstructure:"enabled" yaml:"enabled"`
	CalibrationPath string        `mapstructure:"calibration_path" yaml:"calibration_path"`
	SettleDelay     time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
}

// ObservabilityConfig groups metrics and tracing.
type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing" yaml:"tracing"`
}

type MetricsConfig struct {
	Enabled        bool `mapstructure:"enabled" yaml:"enabled"`
	PrometheusPort int  `mapstructure:"prometheus_port" yaml:"prometheus_port"`
}

type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled" yaml:"enabled"`
	Exporter       string  `mapstructure:"exporter" yaml:"exporter"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	SampleRate     float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
	ServiceName    string  `mapstructure:"service_name" yaml:"service_name"`
	ServiceVersion string  `mapstructure:"service_version" yaml:"service_version"`
}

// LoggingConfig controls the diagnostic log, not the per-session
// processing log.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	Dir   string `mapstructure:"dir" yaml:"dir"`
}
