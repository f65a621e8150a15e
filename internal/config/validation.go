package config

import (
	"fmt"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	ferrors "git.home.luguber.info/inful/htmlnorm/internal/foundation/errors"
)

// Validate checks the configuration after defaults have been applied.
func (c *Config) Validate() error {
	v := &configurationValidator{config: c}
	return v.validate()
}

type configurationValidator struct {
	config *Config
}

func (cv *configurationValidator) validate() error {
	for _, check := range []func() error{
		cv.validateRules,
		cv.validatePatterns,
		cv.validateWatch,
		cv.validateCompose,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

// validateRules compiles the effective ruleset once so rule errors surface
// at load time.
func (cv *configurationValidator) validateRules() error {
	if _, err := cv.config.Ruleset(); err != nil {
		return err
	}
	return nil
}

func (cv *configurationValidator) validatePatterns() error {
	for _, group := range [][]string{cv.config.Include, cv.config.Exclude} {
		for _, p := range group {
			if !doublestar.ValidatePattern(p) {
				return ferrors.ValidationError(fmt.Sprintf("invalid glob pattern %q", p)).Build()
			}
		}
	}
	return nil
}

func (cv *configurationValidator) validateWatch() error {
	w := cv.config.Watch
	d, err := time.ParseDuration(w.Debounce)
	if err != nil || d < 0 {
		return ferrors.ValidationError(fmt.Sprintf("invalid watch.debounce %q", w.Debounce)).WithCause(err).Build()
	}
	if w.SweepInterval != "" {
		s, err := time.ParseDuration(w.SweepInterval)
		if err != nil || s < 0 {
			return ferrors.ValidationError(fmt.Sprintf("invalid watch.sweep_interval %q", w.SweepInterval)).WithCause(err).Build()
		}
	}
	return nil
}

func (cv *configurationValidator) validateCompose() error {
	c := cv.config.Compose
	if c.Manifest != "" && c.Descriptors != "" {
		return ferrors.ValidationError("compose.manifest and compose.descriptors are mutually exclusive").Build()
	}
	return nil
}
