package config

import (
	"fmt"
	"strings"
)

// ValidationIssue is a single finding.
type ValidationIssue struct {
	ID      string
	Message string
	Hint    string
}

func (i ValidationIssue) String() string {
	if i.Hint == "" {
		return fmt.Sprintf("%s: %s", i.ID, i.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", i.ID, i.Message, i.Hint)
}

// ValidationReport collects blocking errors and advisory warnings.
type ValidationReport struct {
	Errors   []ValidationIssue
	Warnings []ValidationIssue
}

// HasErrors reports whether the configuration cannot be used.
func (r ValidationReport) HasErrors() bool {
	return len(r.Errors) > 0
}

// Err folds the blocking errors into one error, or nil.
func (r ValidationReport) Err() error {
	if !r.HasErrors() {
		return nil
	}
	parts := make([]string, 0, len(r.Errors))
	for _, issue := range r.Errors {
		parts = append(parts, issue.String())
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(parts, "; "))
}

func (r *ValidationReport) fail(id, message, hint string) {
	r.Errors = append(r.Errors, ValidationIssue{ID: id, Message: message, Hint: hint})
}

func (r *ValidationReport) warn(id, message, hint string) {
	r.Warnings = append(r.Warnings, ValidationIssue{ID: id, Message: message, Hint: hint})
}

// ProviderRequiresAPIKey reports whether the provider authenticates with a
// key.
func ProviderRequiresAPIKey(provider string) bool {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "scripted":
		return false
	default:
		return true
	}
}

// Validate checks the configuration for a decision-driven run. Offline
// commands skip the llm checks with ValidateOffline.
func (c Config) Validate() ValidationReport {
	report := c.ValidateOffline()

	switch c.LLM.Provider {
	case "openai":
		if c.LLM.Model == "" {
			report.fail("llm-model", "llm.model is required", "Set llm.model or RETOUCH_LLM_MODEL.")
		}
		if c.LLM.APIKey == "" && c.LLM.BaseURL == "" {
			report.fail("llm-api-key", "llm.api_key is required for provider openai",
				"Set RETOUCH_LLM_API_KEY or OPENAI_API_KEY.")
		} else if c.LLM.APIKey == "" {
			report.warn("llm-api-key", "llm.api_key is empty", "The endpoint at llm.base_url must not need a key.")
		}
	case "scripted":
		if strings.TrimSpace(c.LLM.ScriptPath) == "" {
			report.fail("llm-script", "llm.script_path is required for provider scripted", "")
		}
	default:
		report.fail("llm-provider", fmt.Sprintf("unknown llm.provider %q", c.LLM.Provider), "Use openai or scripted.")
	}
	if c.LLM.Timeout <= 0 {
		report.fail("llm-timeout", "llm.timeout must be positive", "")
	}
	if c.LLM.RateLimit < 0 {
		report.fail("llm-rate-limit", "llm.rate_limit must not be negative", "")
	}
	if c.LLM.RateLimit > 0 && c.LLM.RateBurst < 1 {
		report.fail("llm-rate-burst", "llm.rate_burst must be at least 1 when rate limiting", "")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		report.fail("llm-temperature", "llm.temperature must be within [0, 2]", "")
	}
	return report
}

// ValidateOffline checks every section except the decision-maker.
func (c Config) ValidateOffline() ValidationReport {
	var report ValidationReport

	s := c.Session
	if strings.TrimSpace(s.OutputDir) == "" {
		report.fail("session-output-dir", "session.output_dir is required", "")
	}
	if s.RetryCeiling < 1 {
		report.fail("session-retry-ceiling", "session.retry_ceiling must be at least 1", "")
	}
	if s.StepTimeout < 0 {
		report.fail("session-step-timeout", "session.step_timeout must not be negative", "Use 0 to disable the per-step bound.")
	}
	if s.HistoryLimit < 1 {
		report.fail("session-history-limit", "session.history_limit must be at least 1", "")
	}
	if s.PreviewShortEdge < 0 {
		report.fail("session-preview", "session.preview_short_edge must not be negative", "Use 0 to work at full resolution.")
	}
	if s.AttachmentMaxEdge < 1 {
		report.fail("session-attachment-edge", "session.attachment_max_edge must be at least 1", "")
	}
	if s.Concurrency < 1 {
		report.fail("session-concurrency", "session.concurrency must be at least 1", "")
	}

	switch c.Adjust.ContrastMode {
	case "linear":
	case "calibrated":
		report.warn("adjust-contrast-mode", "calibrated contrast differs from the canonical mapping", "")
	default:
		report.fail("adjust-contrast-mode", fmt.Sprintf("unknown adjust.contrast_mode %q", c.Adjust.ContrastMode), "Use linear or calibrated.")
	}
	switch c.Adjust.WhitesMode {
	case "threshold", "percentile":
	default:
		report.fail("adjust-whites-mode", fmt.Sprintf("unknown adjust.whites_mode %q", c.Adjust.WhitesMode), "Use threshold or percentile.")
	}

	if c.Automation.Enabled && strings.TrimSpace(c.Automation.CalibrationPath) == "" {
		report.fail("automation-calibration", "automation.calibration_path is required when automation is enabled", "")
	}
	if c.Automation.SettleDelay < 0 {
		report.fail("automation-settle", "automation.settle_delay must not be negative", "")
	}

	tracing := c.Observability.Tracing
	if tracing.Enabled && tracing.Exporter != "otlp" {
		report.fail("tracing-exporter", fmt.Sprintf("unsupported tracing exporter %q", tracing.Exporter), "Only otlp is built in.")
	}
	if tracing.SampleRate < 0 || tracing.SampleRate > 1 {
		report.fail("tracing-sample-rate", "observability.tracing.sample_rate must be within [0, 1]", "")
	}
	if m := c.Observability.Metrics; m.Enabled && (m.PrometheusPort <= 0 || m.PrometheusPort > 65535) {
		report.fail("metrics-port", "observability.metrics.prometheus_port is out of range", "")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		report.warn("logging-level", fmt.Sprintf("unknown logging.level %q, using info", c.Logging.Level), "")
	}
	return report
}
