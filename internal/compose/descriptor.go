package compose

import (
	"strings"
	"unicode"
)

// Descriptor holds the per-page values bound into a skeleton.
type Descriptor struct {
	Title       string            `yaml:"title"`
	Description string            `yaml:"description"`
	Tagline     string            `yaml:"tagline"`
	Content     string            `yaml:"content,omitempty"`
	Category    string            `yaml:"category"`
	Scripts     string            `yaml:"scripts,omitempty"`
	Extra       map[string]string `yaml:"extra,omitempty"`
}

// Fields returns the placeholder bindings for d: the named fields, one
// active flag per category and Extra. Named fields and flags take
// precedence over Extra entries with the same name.
func (d Descriptor) Fields(categories []string) map[string]string {
	fields := make(map[string]string, 6+len(categories)+len(d.Extra))
	for k, v := range d.Extra {
		fields[k] = v
	}
	for k, v := range ActiveFlags(d.Category, categories) {
		fields[k] = v
	}
	fields["title"] = d.Title
	fields["description"] = d.Description
	fields["tagline"] = d.Tagline
	fields["content"] = d.Content
	fields["category"] = d.Category
	fields["scripts"] = d.Scripts
	return fields
}

// ActiveValue is bound to the flag of the page's own category.
const ActiveValue = " active"

// FlagName returns the active-flag placeholder for a category:
// "date-time" becomes "datetime_active".
func FlagName(category string) string {
	var b strings.Builder
	for _, r := range category {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String() + "_active"
}

// ActiveFlags binds ActiveValue to the flag for category and "" to every
// other known category. An unknown category leaves all flags empty.
func ActiveFlags(category string, categories []string) map[string]string {
	flags := make(map[string]string, len(categories))
	for _, c := range categories {
		if c == category {
			flags[FlagName(c)] = ActiveValue
		} else if _, set := flags[FlagName(c)]; !set {
			flags[FlagName(c)] = ""
		}
	}
	return flags
}

// Compose binds d into sk.
func Compose(sk *Skeleton, d Descriptor, categories []string) (string, error) {
	return sk.Execute(d.Fields(categories))
}
