// Package structure detects pages that already follow the site layout and
// moves legacy pages onto it: body content wrapped in the container div,
// the shared stylesheet linked and the shared script loaded once.
package structure

import (
	"errors"
	"regexp"
	"strings"

	ferrors "git.home.luguber.info/inful/htmlnorm/internal/foundation/errors"
)

// ErrMissingStructure marks a document without a <body> element.
var ErrMissingStructure = errors.New("document has no <body> element")

// DefaultMarkers identify a page already in the current layout.
var DefaultMarkers = []string{`<div class="container">`, "nav-common.js"}

// Markers is a canonical-document predicate: a document is canonical when
// it contains every marker. An empty Markers matches nothing.
type Markers []string

// Canonical reports whether doc contains all markers.
func (m Markers) Canonical(doc string) bool {
	if len(m) == 0 {
		return false
	}
	for _, marker := range m {
		if !strings.Contains(doc, marker) {
			return false
		}
	}
	return true
}

// Normalizer rewrites legacy pages into the container layout.
type Normalizer struct {
	// Wrapper is the opening tag placed around the body content.
	Wrapper string
	// Stylesheet is linked after the versioned AnchorStylesheet when the
	// document does not mention it yet.
	Stylesheet       string
	AnchorStylesheet string
	// MainScript is loaded once before </body>.
	MainScript string
	// DropStylesheets and DropScripts are removed.
	DropStylesheets []string
	DropScripts     []string
	// Prefix is an optional deployment prefix already present on paths.
	Prefix string
}

// DefaultNormalizer returns the site's layout rules.
func DefaultNormalizer() *Normalizer {
	return &Normalizer{
		Wrapper:          `<div class="container">`,
		Stylesheet:       "/css/calculator.css",
		AnchorStylesheet: "/style.css",
		MainScript:       "/js/main.js",
		DropStylesheets:  []string{"/category.css"},
		DropScripts:      []string{"/nav-common.js", "/category.js"},
	}
}

var bodyPattern = regexp.MustCompile(`(?is)(<body\b[^>]*>)(.*?)(</body\s*>)`)

func (n *Normalizer) pathPattern(p string) string {
	prefix := strings.Trim(n.Prefix, "/")
	if prefix == "" {
		return regexp.QuoteMeta(p)
	}
	return `(?:/` + regexp.QuoteMeta(prefix) + `)?` + regexp.QuoteMeta(p)
}

func (n *Normalizer) stylesheetTag(p string) *regexp.Regexp {
	return regexp.MustCompile(`<link\s+rel=["']stylesheet["']\s+href=["']` + n.pathPattern(p) + `["']\s*/?>(?:\r?\n\s*)?`)
}

func (n *Normalizer) scriptTag(p string) *regexp.Regexp {
	return regexp.MustCompile(`<script\s+src=["']` + n.pathPattern(p) + `["']\s*>\s*</script>(?:\r?\n\s*)?`)
}

// Normalize returns doc in the container layout. changed is false when the
// body content already starts with the wrapper; the input is then returned
// untouched. A document without <body> yields a structure warning wrapping
// ErrMissingStructure.
func (n *Normalizer) Normalize(doc string) (out string, changed bool, err error) {
	m := bodyPattern.FindStringSubmatchIndex(doc)
	if m == nil {
		return doc, false, ferrors.StructureError("no <body> element").
			WithCause(ErrMissingStructure).
			Build()
	}
	body := strings.TrimSpace(doc[m[4]:m[5]])
	if strings.HasPrefix(body, n.Wrapper) {
		return doc, false, nil
	}

	var b strings.Builder
	b.WriteString(doc[:m[0]])
	b.WriteString(doc[m[2]:m[3]])
	b.WriteString("\n\n    ")
	b.WriteString(n.Wrapper)
	b.WriteString("\n")
	b.WriteString(body)
	b.WriteString("\n    </div>\n\n")
	b.WriteString(doc[m[6]:m[7]])
	b.WriteString(doc[m[1]:])
	out = b.String()

	for _, p := range n.DropStylesheets {
		out = n.stylesheetTag(p).ReplaceAllLiteralString(out, "")
	}
	for _, p := range n.DropScripts {
		out = n.scriptTag(p).ReplaceAllLiteralString(out, "")
	}
	out = n.linkStylesheet(out)
	out = n.appendMainScript(out)
	return out, true, nil
}

func (n *Normalizer) linkStylesheet(doc string) string {
	if n.Stylesheet == "" || strings.Contains(doc, n.Stylesheet) {
		return doc
	}
	anchor := regexp.MustCompile(`<link\s+rel=["']stylesheet["']\s+href=["']` + n.pathPattern(n.AnchorStylesheet) + `\?v=[^"']+["']\s*/?>`)
	loc := anchor.FindStringIndex(doc)
	if loc == nil {
		return doc
	}
	tag := "\n    " + `<link rel="stylesheet" href="` + n.Stylesheet + `">`
	return doc[:loc[1]] + tag + doc[loc[1]:]
}

func (n *Normalizer) appendMainScript(doc string) string {
	if n.MainScript == "" {
		return doc
	}
	tag := `<script src="` + n.MainScript + `"></script>`
	re := n.scriptTag(n.MainScript)
	if re.MatchString(doc) {
		return doc
	}
	m := bodyPattern.FindStringSubmatchIndex(doc)
	if m == nil {
		return doc
	}
	return doc[:m[6]] + "    " + tag + "\n" + doc[m[6]:]
}
