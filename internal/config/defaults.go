package config

import (
	"runtime"

	"git.home.luguber.info/inful/htmlnorm/internal/rewrite"
	"git.home.luguber.info/inful/htmlnorm/internal/structure"
)

// DefaultApplier applies defaults for one configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

type siteDefaults struct{}

func (siteDefaults) Domain() string { return "site" }

func (siteDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Root == "" {
		cfg.Root = "."
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "/calculator"
	}
	if len(cfg.Sections) == 0 {
		cfg.Sections = append([]string(nil), rewrite.DefaultSections...)
	}
	if len(cfg.Include) == 0 {
		cfg.Include = []string{"**/*.html"}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return nil
}

type stageDefaults struct{}

func (stageDefaults) Domain() string { return "stages" }

func (stageDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.SSI.BaseDir == "" {
		cfg.SSI.BaseDir = cfg.Root
	}
	n := structure.DefaultNormalizer()
	if cfg.Structure.Wrapper == "" {
		cfg.Structure.Wrapper = n.Wrapper
	}
	if cfg.Structure.Stylesheet == "" {
		cfg.Structure.Stylesheet = n.Stylesheet
	}
	if cfg.Structure.MainScript == "" {
		cfg.Structure.MainScript = n.MainScript
	}
	if len(cfg.Canonical.Markers) == 0 {
		cfg.Canonical.Markers = append([]string(nil), structure.DefaultMarkers...)
	}
	if cfg.Compose.OutputDir == "" {
		cfg.Compose.OutputDir = cfg.Root
	}
	return nil
}

type watchDefaults struct{}

func (watchDefaults) Domain() string { return "watch" }

func (watchDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Watch.Debounce == "" {
		cfg.Watch.Debounce = "500ms"
	}
	if cfg.Watch.SweepInterval == "" {
		cfg.Watch.SweepInterval = "10m"
	}
	return nil
}

// applyDefaults runs every domain applier in order; site defaults first
// because later domains derive from Root.
func applyDefaults(cfg *Config) error {
	for _, a := range []DefaultApplier{siteDefaults{}, stageDefaults{}, watchDefaults{}} {
		if err := a.ApplyDefaults(cfg); err != nil {
			return err
		}
	}
	return nil
}
