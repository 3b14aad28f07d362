// Package config resolves dagsim's run configuration: cobra flags, layered
// with DAGSIM_* environment variables and an optional YAML file, all via
// viper.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is one run's fully resolved configuration.
type Config struct {
	Executors         int      `mapstructure:"executors" yaml:"executors"`
	Cores             int      `mapstructure:"cores" yaml:"cores"`
	DAGFile           string   `mapstructure:"dag_file" yaml:"dag_file"`
	ScriptedFailures  []string `mapstructure:"scripted_failures" yaml:"scripted_failures,omitempty"`
	ScriptedAutoscale []string `mapstructure:"scripted_autoscale" yaml:"scripted_autoscale,omitempty"`
	AutoReplace       bool     `mapstructure:"auto_replace" yaml:"auto_replace"`
	AutoReplaceDelay  int      `mapstructure:"auto_replace_delay" yaml:"auto_replace_delay"`
	Seed              int64    `mapstructure:"seed" yaml:"seed"`
	MetricsAddr       string   `mapstructure:"metrics_addr" yaml:"metrics_addr,omitempty"`
	Verbose           bool     `mapstructure:"verbose" yaml:"verbose"`
	DryRun            bool     `mapstructure:"dry_run" yaml:"dry_run"`
}

// DefaultConfig returns the baseline defaults for a run.
func DefaultConfig() *Config {
	return &Config{
		Executors:        1,
		Cores:            1,
		AutoReplace:      false,
		AutoReplaceDelay: 1,
		Seed:             0,
	}
}

// Load resolves the configuration: flags (already bound onto the package
// viper instance by the caller), layered under DAGSIM_* environment
// variables and, optionally, a YAML file.
func Load(configFile string) (*Config, error) {
	cfg := DefaultConfig()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	viper.SetEnvPrefix("DAGSIM")
	viper.AutomaticEnv()

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate rejects configurations the rest of the pipeline cannot run.
func (c *Config) Validate() error {
	if c.DAGFile == "" {
		return fmt.Errorf("dag file is required (-f)")
	}
	if c.Executors < 1 {
		return fmt.Errorf("executors must be >= 1, got %d", c.Executors)
	}
	if c.Cores < 1 {
		return fmt.Errorf("cores must be >= 1, got %d", c.Cores)
	}
	if c.AutoReplaceDelay < 0 {
		return fmt.Errorf("auto-replace delay must be >= 0, got %d", c.AutoReplaceDelay)
	}
	return nil
}

// YAML renders the fully resolved configuration in the same format the
// --config file accepts, so a --dry-run can echo exactly what a real run
// would use.
func (c *Config) YAML() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// FailureSpec is one parsed "--sf eid,t" entry.
type FailureSpec struct {
	EID int
	At  time.Duration
}

// ParseFailures parses repeated "--sf eid,t" flag values.
func ParseFailures(raw []string) ([]FailureSpec, error) {
	out := make([]FailureSpec, 0, len(raw))
	for _, s := range raw {
		parts := strings.SplitN(s, ",", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid --sf entry %q: want eid,t", s)
		}
		eid, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid --sf eid in %q: %w", s, err)
		}
		secs, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --sf time in %q: %w", s, err)
		}
		out = append(out, FailureSpec{EID: eid, At: time.Duration(secs * float64(time.Second))})
	}
	return out, nil
}

// ParseAutoscales parses repeated "--sa t" flag values.
func ParseAutoscales(raw []string) ([]time.Duration, error) {
	out := make([]time.Duration, 0, len(raw))
	for _, s := range raw {
		secs, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --sa time %q: %w", s, err)
		}
		out = append(out, time.Duration(secs*float64(time.Second)))
	}
	return out, nil
}
