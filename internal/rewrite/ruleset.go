package rewrite

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"git.home.luguber.info/inful/htmlnorm/internal/textedit"
)

// ErrNotIdempotent is returned by Compile when a rule's output would be
// matched again by a rule in the same set.
var ErrNotIdempotent = errors.New("ruleset is not idempotent")

// Ruleset is a compiled, ordered, immutable list of rules.
type Ruleset struct {
	rules    []Rule
	compiled []compiledRule
}

type compiledRule struct {
	rule Rule
	re   *regexp.Regexp
	// value returns the byte range of the matched path head and its replacement.
	value func(doc string, m []int) (int, int, string)
}

// Stats counts replacements per rule name.
type Stats map[string]int

// Total returns the number of replacements across all rules.
func (s Stats) Total() int {
	n := 0
	for _, v := range s {
		n += v
	}
	return n
}

// Compile validates rules and builds their matchers, preserving order.
func Compile(rules []Rule) (*Ruleset, error) {
	rs := &Ruleset{rules: append([]Rule(nil), rules...)}
	for _, r := range rs.rules {
		if err := r.validate(); err != nil {
			return nil, err
		}
		rs.compiled = append(rs.compiled, compile(r))
	}
	if err := checkIdempotent(rs.rules); err != nil {
		return nil, err
	}
	return rs, nil
}

// MustCompile is Compile that panics on error; for static rule tables.
func MustCompile(rules []Rule) *Ruleset {
	rs, err := Compile(rules)
	if err != nil {
		panic(err)
	}
	return rs
}

// Rules returns a copy of the ordered rule list.
func (rs *Ruleset) Rules() []Rule {
	return append([]Rule(nil), rs.rules...)
}

func checkIdempotent(rules []Rule) error {
	for _, producer := range rules {
		for _, out := range producer.outputs() {
			for _, consumer := range rules {
				if consumer.couldMatch(out) {
					return fmt.Errorf("%w: output %q of rule %s is matched by rule %s",
						ErrNotIdempotent, out.value, producer.Name(), consumer.Name())
				}
			}
		}
	}
	return nil
}

func compile(r Rule) compiledRule {
	switch r.Kind {
	case KindSectionLink:
		prefix := normalizePrefix(r.To)
		sections := append([]string(nil), r.Sections...)
		sort.SliceStable(sections, func(i, j int) bool { return len(sections[i]) > len(sections[j]) })
		quoted := make([]string, len(sections))
		for i, s := range sections {
			quoted[i] = regexp.QuoteMeta(s)
		}
		re := regexp.MustCompile(attrPrefix(r.Attr) + `["'](/(?:` + strings.Join(quoted, "|") + `)/)`)
		return compiledRule{rule: r, re: re, value: func(doc string, m []int) (int, int, string) {
			return m[2], m[3], prefix + doc[m[2]:m[3]]
		}}
	case KindRootLink:
		replacement := normalizePrefix(r.To) + "/"
		re := regexp.MustCompile(attrPrefix(r.Attr) + `(?:"(/)"|'(/)')`)
		return compiledRule{rule: r, re: re, value: func(_ string, m []int) (int, int, string) {
			if m[2] >= 0 {
				return m[2], m[3], replacement
			}
			return m[4], m[5], replacement
		}}
	default:
		re := regexp.MustCompile(attrPrefix(r.Attr) + `["'](` + regexp.QuoteMeta(r.From) + `)`)
		to := r.To
		return compiledRule{rule: r, re: re, value: func(_ string, m []int) (int, int, string) {
			return m[2], m[3], to
		}}
	}
}

// Apply runs every rule in order over doc. Each rule sees the output of the
// previous one. Text outside matched path heads, including the quote
// characters, is copied unchanged.
func (rs *Ruleset) Apply(doc string) (string, Stats) {
	stats := make(Stats)
	for _, c := range rs.compiled {
		matches := c.re.FindAllStringSubmatchIndex(doc, -1)
		if len(matches) == 0 {
			continue
		}
		edits := make([]textedit.Edit, 0, len(matches))
		for _, m := range matches {
			start, end, replacement := c.value(doc, m)
			edits = append(edits, textedit.Edit{Start: start, End: end, Replacement: replacement})
		}
		out, err := textedit.Apply(doc, edits)
		if err != nil {
			// FindAll never yields overlapping matches.
			panic(fmt.Sprintf("rewrite: rule %s produced invalid edits: %v", c.rule.Name(), err))
		}
		doc = out
		stats[c.rule.Name()] += len(edits)
	}
	return doc, stats
}

// Rewrite is the functional form of Ruleset.Apply.
func Rewrite(doc string, rs *Ruleset) string {
	out, _ := rs.Apply(doc)
	return out
}
