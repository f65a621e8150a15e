// Package config loads the htmlnorm YAML configuration.
package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/htmlnorm/internal/foundation/errors"
	"git.home.luguber.info/inful/htmlnorm/internal/rewrite"
)

// DefaultPath is the configuration file looked up when --config is not given.
const DefaultPath = "htmlnorm.yaml"

// Config is the complete configuration.
type Config struct {
	Root     string         `yaml:"root"`
	Prefix   string         `yaml:"prefix"`
	Sections []string       `yaml:"sections,omitempty"`
	Rules    []rewrite.Rule `yaml:"rules,omitempty"` // Replaces the rules derived from prefix and sections
	Include  []string       `yaml:"include,omitempty"`
	Exclude  []string       `yaml:"exclude,omitempty"`
	Workers  int            `yaml:"workers,omitempty"`

	SSI       SSIConfig       `yaml:"ssi"`
	Structure StructureConfig `yaml:"structure"`
	Canonical CanonicalConfig `yaml:"canonical"`
	Compose   ComposeConfig   `yaml:"compose"`
	History   HistoryConfig   `yaml:"history"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Watch     WatchConfig     `yaml:"watch"`
	VCS       VCSConfig       `yaml:"vcs"`
}

// SSIConfig controls include expansion during a rewrite run.
type SSIConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseDir string `yaml:"base_dir,omitempty"` // Defaults to Root
}

// StructureConfig controls the layout normalizer.
type StructureConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Wrapper    string `yaml:"wrapper,omitempty"`
	Stylesheet string `yaml:"stylesheet,omitempty"`
	MainScript string `yaml:"main_script,omitempty"`
}

// CanonicalConfig defines which documents are left alone entirely.
type CanonicalConfig struct {
	Markers  []string `yaml:"markers,omitempty"`
	Disabled bool     `yaml:"disabled,omitempty"`
}

// ComposeConfig configures page generation.
type ComposeConfig struct {
	Skeleton    string `yaml:"skeleton,omitempty"`
	Manifest    string `yaml:"manifest,omitempty"`    // YAML map of output path to descriptor
	Descriptors string `yaml:"descriptors,omitempty"` // Directory of .md/.html descriptor files
	OutputDir   string `yaml:"output_dir,omitempty"`  // Defaults to Root
}

// HistoryConfig enables the sqlite run ledger when Path is set.
type HistoryConfig struct {
	Path string `yaml:"path,omitempty"`
}

// MetricsConfig configures Prometheus export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"` // Written after each batch run
	Listen   string `yaml:"listen,omitempty"`   // /metrics address in watch mode
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	Debounce      string `yaml:"debounce,omitempty"`
	SweepInterval string `yaml:"sweep_interval,omitempty"`
}

// DebounceDuration returns the parsed debounce; Validate guarantees it parses.
func (w WatchConfig) DebounceDuration() time.Duration {
	d, _ := time.ParseDuration(w.Debounce)
	return d
}

// SweepDuration returns the parsed sweep interval; zero disables sweeps.
func (w WatchConfig) SweepDuration() time.Duration {
	if w.SweepInterval == "" {
		return 0
	}
	d, _ := time.ParseDuration(w.SweepInterval)
	return d
}

// VCSConfig controls the clean-worktree pre-flight check.
type VCSConfig struct {
	RequireClean bool `yaml:"require_clean"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	_ = applyDefaults(cfg)
	return cfg
}

// Load reads configPath, expands environment variables (after loading
// .env files), applies defaults and validates.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(configPath) // #nosec G304 -- user-supplied config path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ferrors.ConfigError("configuration file not found").
				WithContext("path", configPath).Build()
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to read config file").
			WithContext("path", configPath).Fatal().Build()
	}
	return Parse([]byte(os.ExpandEnv(string(data))))
}

// LoadOrDefault is Load, except that a missing file at DefaultPath yields
// Default().
func LoadOrDefault(configPath string) (*Config, error) {
	if configPath == DefaultPath {
		if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
			loadEnvFiles()
			cfg := Default()
			return cfg, cfg.Validate()
		}
	}
	return Load(configPath)
}

// Parse decodes YAML bytes, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to unmarshal config").Fatal().Build()
	}
	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return ferrors.ConfigError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).Build()
	}

	example := Default()
	example.Root = "./frontend"
	example.Workers = 0
	example.Exclude = []string{"**/node_modules/**", "**/*_processed.html"}
	example.SSI = SSIConfig{Enabled: false, BaseDir: "./frontend"}
	example.Structure.Enabled = false
	example.Compose = ComposeConfig{
		Skeleton:  "./templates/base.html",
		Manifest:  "./templates/calculators.yaml",
		OutputDir: "./frontend",
	}
	example.History.Path = "./.htmlnorm/history.db"
	example.Metrics.Textfile = "./.htmlnorm/htmlnorm.prom"

	data, err := yaml.Marshal(example)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "failed to marshal config").Build()
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to write config file").
			WithContext("path", configPath).Fatal().Build()
	}
	return nil
}
