package config

import (
	ferrors "git.home.luguber.info/inful/htmlnorm/internal/foundation/errors"
	"git.home.luguber.info/inful/htmlnorm/internal/rewrite"
	"git.home.luguber.info/inful/htmlnorm/internal/structure"
)

// Ruleset compiles the explicit rules, or the site defaults derived from
// Prefix and Sections when none are configured.
func (c *Config) Ruleset() (*rewrite.Ruleset, error) {
	rules := c.Rules
	if len(rules) == 0 {
		rules = rewrite.DefaultRules(c.Prefix, c.Sections)
	}
	rs, err := rewrite.Compile(rules)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryValidation, "invalid rewrite rules").Fatal().Build()
	}
	return rs, nil
}

// Normalizer returns the structure normalizer for this configuration.
func (c *Config) Normalizer() *structure.Normalizer {
	n := structure.DefaultNormalizer()
	n.Wrapper = c.Structure.Wrapper
	n.Stylesheet = c.Structure.Stylesheet
	n.MainScript = c.Structure.MainScript
	n.Prefix = c.Prefix
	return n
}

// CanonicalMarkers returns the canonical-document predicate; nil when
// disabled.
func (c *Config) CanonicalMarkers() structure.Markers {
	if c.Canonical.Disabled {
		return nil
	}
	return structure.Markers(c.Canonical.Markers)
}
