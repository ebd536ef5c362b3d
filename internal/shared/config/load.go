package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "RETOUCH"

// LoadOptions customises Load. The zero value reads the default search path
// and the process environment.
type LoadOptions struct {
	// Path is the --config flag value.
	Path      string
	EnvLookup EnvLookup
	HomeDir   func() (string, error)
	// Overrides are applied last, keyed by dotted config key
	// ("session.retry_ceiling"). The CLI fills it from flags the user set.
	Overrides map[string]any
}

// Load resolves the configuration: defaults, then retouch.yaml, then
// RETOUCH_* environment variables, then overrides. A missing file is only an
// error when it was named explicitly.
func Load(opts LoadOptions) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Explicit names bypass the prefix, so the bare OpenAI variable also works.
	if err := v.BindEnv("llm.api_key", envPrefix+"_LLM_API_KEY", "OPENAI_API_KEY"); err != nil {
		return Config{}, fmt.Errorf("bind api key env: %w", err)
	}

	source := ""
	if path := explicitPath(opts.Path, opts.EnvLookup); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		source = path
	} else {
		v.SetConfigName(defaultConfigName)
		v.SetConfigType(defaultConfigType)
		for _, dir := range SearchPaths(opts.HomeDir) {
			v.AddConfigPath(dir)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		} else {
			source = v.ConfigFileUsed()
		}
	}

	for key, value := range opts.Overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Source = source
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	c.Adjust.ContrastMode = strings.ToLower(strings.TrimSpace(c.Adjust.ContrastMode))
	c.Adjust.WhitesMode = strings.ToLower(strings.TrimSpace(c.Adjust.WhitesMode))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
}
