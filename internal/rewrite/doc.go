// Package rewrite relocates root-relative resource references in HTML text.
//
// A Ruleset is an ordered list of rules. Each rule is one of three kinds:
//
//   - attribute-prefix: `href="/css/…"` → `href="/calculator/css/…"`
//   - section-link:     `href="/health/…"` → `href="/calculator/health/…"`,
//     only for an enumerated set of site sections
//   - root-link:        `href="/"` → `href="/calculator/"`
//
// Matching is textual. A rule only fires when its attribute name is
// preceded by whitespace and immediately followed by `=` and a quote, and
// the quote character found in the input is kept in the output. Absolute
// URLs never match because every rule needs the quote directly before the
// leading slash.
//
// Compile rejects rulesets that are not idempotent, so applying a compiled
// ruleset to its own output is always a no-op.
package rewrite
