package rewrite

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind selects how a Rule matches and what it replaces.
type Kind int

const (
	KindAttributePrefix Kind = iota
	KindSectionLink
	KindRootLink
)

var kindNames = map[Kind]string{
	KindAttributePrefix: "attribute-prefix",
	KindSectionLink:     "section-link",
	KindRootLink:        "root-link",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind converts a configuration string to a Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown rule kind %q (want attribute-prefix, section-link or root-link)", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Rule is one relocation step.
//
// For KindAttributePrefix, From is the root-relative prefix to match and To
// replaces it. For KindSectionLink and KindRootLink, To is the deployment
// prefix (for example "/calculator") and From is unused.
type Rule struct {
	Kind     Kind     `yaml:"kind"`
	Attr     string   `yaml:"attr"`
	From     string   `yaml:"from,omitempty"`
	To       string   `yaml:"to"`
	Sections []string `yaml:"sections,omitempty"`
}

// Name identifies the rule in logs and statistics.
func (r Rule) Name() string {
	switch r.Kind {
	case KindSectionLink:
		return r.Attr + ":sections"
	case KindRootLink:
		return r.Attr + ":root"
	default:
		return r.Attr + ":" + r.From
	}
}

var attrNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)
var sectionPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

func (r Rule) validate() error {
	if !attrNamePattern.MatchString(r.Attr) {
		return fmt.Errorf("rule %s: invalid attribute name %q", r.Name(), r.Attr)
	}
	switch r.Kind {
	case KindAttributePrefix:
		if !strings.HasPrefix(r.From, "/") || r.From == "/" {
			return fmt.Errorf("rule %s: from must be a root-relative prefix longer than \"/\"", r.Name())
		}
		if !strings.HasPrefix(r.To, "/") {
			return fmt.Errorf("rule %s: to must start with \"/\"", r.Name())
		}
	case KindSectionLink:
		if len(r.Sections) == 0 {
			return fmt.Errorf("rule %s: at least one section is required", r.Name())
		}
		for _, s := range r.Sections {
			if !sectionPattern.MatchString(s) {
				return fmt.Errorf("rule %s: invalid section %q", r.Name(), s)
			}
		}
		if normalizePrefix(r.To) == "" {
			return fmt.Errorf("rule %s: to must be a non-root prefix", r.Name())
		}
	case KindRootLink:
		if normalizePrefix(r.To) == "" {
			return fmt.Errorf("rule %s: to must be a non-root prefix", r.Name())
		}
	default:
		return fmt.Errorf("rule %s: unknown kind %d", r.Name(), int(r.Kind))
	}
	return nil
}

// normalizePrefix returns "/x/y" for "x/y/", "/x/y/" and so on; "" for root.
func normalizePrefix(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return "/" + p
}

// attrPrefix is the shared head of every pattern: start of text or
// whitespace, attribute name, equals sign.
func attrPrefix(attr string) string {
	return `(?:^|\s)(?i:` + regexp.QuoteMeta(attr) + `)=`
}

// probe describes a value a rule can write: Value is either the complete
// attribute value or, when Open is true, a prefix of it.
type probe struct {
	attr  string
	value string
	open  bool
}

func (r Rule) outputs() []probe {
	switch r.Kind {
	case KindSectionLink:
		prefix := normalizePrefix(r.To)
		out := make([]probe, 0, len(r.Sections))
		for _, s := range r.Sections {
			out = append(out, probe{attr: r.Attr, value: prefix + "/" + s + "/", open: true})
		}
		return out
	case KindRootLink:
		return []probe{{attr: r.Attr, value: normalizePrefix(r.To) + "/"}}
	default:
		return []probe{{attr: r.Attr, value: r.To, open: true}}
	}
}

// couldMatch reports whether the rule can fire on a value described by p.
func (r Rule) couldMatch(p probe) bool {
	if !strings.EqualFold(r.Attr, p.attr) {
		return false
	}
	prefixHit := func(from string) bool {
		if strings.HasPrefix(p.value, from) {
			return true
		}
		return p.open && strings.HasPrefix(from, p.value)
	}
	switch r.Kind {
	case KindSectionLink:
		for _, s := range r.Sections {
			if prefixHit("/" + s + "/") {
				return true
			}
		}
		return false
	case KindRootLink:
		if p.open {
			return p.value == "" || p.value == "/"
		}
		return p.value == "/"
	default:
		return prefixHit(r.From)
	}
}
