package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"retouch/internal/app/di"
	"retouch/internal/domain/agent/loop"
	"retouch/internal/shared/config"
	"retouch/internal/shared/logging"
)

// flagBinding maps a persistent flag onto a dotted config key.
type flagBinding struct {
	flag string
	key  string
	kind string
}

var flagBindings = []flagBinding{
	{"output", "session.output_dir", "string"},
	{"provider", "llm.provider", "string"},
	{"model", "llm.model", "string"},
	{"script", "llm.script_path", "string"},
	{"style", "session.global_style", "string"},
	{"retry-ceiling", "session.retry_ceiling", "int"},
	{"concurrency", "session.concurrency", "int"},
	{"preview-edge", "session.preview_short_edge", "int"},
	{"log-level", "logging.level", "string"},
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "retouch",
		Short:         "Decision-driven photo retouching",
		Long:          "retouch runs an analyse/plan/execute/reflect loop over a photo, one catalogue adjustment at a time, and keeps every version it produces.",
		Version:       appVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default ./retouch.yaml or $HOME/.retouch/retouch.yaml)")
	flags.StringP("output", "o", "", "directory that receives one folder per session")
	flags.String("provider", "", "decision-maker provider: openai or scripted")
	flags.String("model", "", "decision-maker model")
	flags.String("script", "", "scripted decision file for --provider scripted")
	flags.String("style", "", "global style hint for the retouching concept")
	flags.Int("retry-ceiling", 0, "maximum execute attempts per session")
	flags.Int("concurrency", 0, "sessions run in parallel by batch")
	flags.Int("preview-edge", 0, "short edge of the working preview, 0 for full resolution")
	flags.String("log-level", "", "diagnostic log level: debug, info, warn, error")

	root.AddCommand(
		newRunCommand(),
		newBatchCommand(),
		newApplyCommand(),
		newCatalogCommand(),
		newCalibrateCheckCommand(),
	)
	return root
}

// loadConfig resolves configuration for cmd, reports warnings and applies
// the logging section. offline skips the decision-maker checks.
func loadConfig(cmd *cobra.Command, offline bool) (config.Config, error) {
	overrides, err := flagOverrides(cmd)
	if err != nil {
		return config.Config{}, err
	}
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(config.LoadOptions{Path: path, Overrides: overrides})
	if err != nil {
		return config.Config{}, err
	}

	report := cfg.Validate()
	if offline {
		report = cfg.ValidateOffline()
	}
	for _, issue := range report.Warnings {
		fmt.Fprintln(cmd.ErrOrStderr(), warningText(issue.String()))
	}
	if err := report.Err(); err != nil {
		return config.Config{}, err
	}

	logging.SetLogDirectory(cfg.Logging.Dir)
	logging.SetDefaultLevel(logging.ParseLevel(cfg.Logging.Level))
	if cfg.Source != "" {
		logging.NewComponentLogger("cli").Info("Loaded config from %s", cfg.Source)
	}
	return cfg, nil
}

func flagOverrides(cmd *cobra.Command) (map[string]any, error) {
	overrides := map[string]any{}
	flags := cmd.Flags()
	for _, binding := range flagBindings {
		if !flags.Changed(binding.flag) {
			continue
		}
		var (
			value any
			err   error
		)
		switch binding.kind {
		case "int":
			value, err = flags.GetInt(binding.flag)
		default:
			value, err = flags.GetString(binding.flag)
		}
		if err != nil {
			return nil, fmt.Errorf("flag --%s: %w", binding.flag, err)
		}
		overrides[binding.key] = value
	}
	return overrides, nil
}

// withContainer builds the container, runs fn and flushes telemetry.
func withContainer(cmd *cobra.Command, cfg config.Config, fn func(*di.Container) error) error {
	container, err := di.BuildContainer(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := container.Shutdown(context.WithoutCancel(cmd.Context())); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), warningText(err.Error()))
		}
	}()
	return fn(container)
}

// sessionExit maps a session error or outcome to the process result.
func sessionExit(ctx context.Context, err error, outcome loop.Outcome) error {
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return &ExitCodeError{Code: exitInterrupted, Err: err}
		}
		return &ExitCodeError{Code: exitFailure, Err: err}
	}
	if outcome != loop.OutcomeSatisfied {
		return &ExitCodeError{Code: exitUnsatisfied, Err: fmt.Errorf("session ended %s", outcome)}
	}
	return nil
}
