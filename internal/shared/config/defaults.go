package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultProvider          = "openai"
	DefaultModel             = "gpt-4o"
	DefaultLLMTimeout        = 2 * time.Minute
	DefaultMaxRetries        = 3
	DefaultTemperature       = 0.2
	DefaultMaxTokens         = 1024
	DefaultOutputDir         = "./retouch-output"
	DefaultRetryCeiling      = 5
	DefaultStepTimeout       = 2 * time.Minute
	DefaultHistoryLimit      = 16
	DefaultPreviewShortEdge  = 512
	DefaultAttachmentMaxEdge = 1024
	DefaultConcurrency       = 2
	DefaultSettleDelay       = 300 * time.Millisecond
	DefaultPrometheusPort    = 9464
)

// setDefaults registers every key so AutomaticEnv can override it and
// Unmarshal sees a complete tree.
func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", DefaultProvider)
	v.SetDefault("llm.model", DefaultModel)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout", DefaultLLMTimeout)
	v.SetDefault("llm.script_path", "")
	v.SetDefault("llm.rate_limit", 0.0)
	v.SetDefault("llm.rate_burst", 1)
	v.SetDefault("llm.max_retries", DefaultMaxRetries)
	v.SetDefault("llm.temperature", DefaultTemperature)
	v.SetDefault("llm.max_tokens", DefaultMaxTokens)

	v.SetDefault("session.output_dir", DefaultOutputDir)
	v.SetDefault("session.retry_ceiling", DefaultRetryCeiling)
	v.SetDefault("session.step_timeout", DefaultStepTimeout)
	v.SetDefault("session.history_limit", DefaultHistoryLimit)
	v.SetDefault("session.preview_short_edge", DefaultPreviewShortEdge)
	v.SetDefault("session.attachment_max_edge", DefaultAttachmentMaxEdge)
	v.SetDefault("session.global_style", "")
	v.SetDefault("session.concurrency", DefaultConcurrency)

	v.SetDefault("adjust.contrast_mode", "linear")
	v.SetDefault("adjust.whites_mode", "threshold")
	v.SetDefault("adjust.lut_cache_size", 512)

	v.SetDefault("automation.enabled", false)
	v.SetDefault("automation.calibration_path", "")
	v.SetDefault("automation.settle_delay", DefaultSettleDelay)

	v.SetDefault("observability.metrics.enabled", false)
	v.SetDefault("observability.metrics.prometheus_port", DefaultPrometheusPort)
	v.SetDefault("observability.tracing.enabled", false)
	v.SetDefault("observability.tracing.exporter", "otlp")
	v.SetDefault("observability.tracing.otlp_endpoint", "localhost:4318")
	v.SetDefault("observability.tracing.sample_rate", 1.0)
	v.SetDefault("observability.tracing.service_name", "retouch")
	v.SetDefault("observability.tracing.service_version", "dev")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.dir", "")
}
