// Package audit reports what the rewriting pipeline would leave behind:
// root-relative references outside the site prefix, pages without a
// body and SSI directives that were never expanded. It never writes.
package audit

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/net/html"

	ferrors "git.home.luguber.info/inful/htmlnorm/internal/foundation/errors"
	"git.home.luguber.info/inful/htmlnorm/internal/include"
)

// Kind classifies a Finding.
type Kind string

const (
	KindUnprefixed  Kind = "unprefixed"
	KindMissingBody Kind = "missing_body"
	KindDirective   Kind = "ssi_directive"
)

// Finding is one reported problem.
type Finding struct {
	Path  string `json:"path"`
	Line  int    `json:"line"`
	Kind  Kind   `json:"kind"`
	Tag   string `json:"tag,omitempty"`
	Attr  string `json:"attr,omitempty"`
	Value string `json:"value,omitempty"`
}

// Report aggregates the findings of a Scan.
type Report struct {
	Files    int       `json:"files"`
	Findings []Finding `json:"findings"`
}

// Counts returns the number of findings per kind.
func (r *Report) Counts() map[Kind]int {
	counts := make(map[Kind]int)
	for _, f := range r.Findings {
		counts[f.Kind]++
	}
	return counts
}

// Auditor checks documents against a site prefix such as "/calculator".
type Auditor struct {
	prefix string
}

// New returns an Auditor for prefix.
func New(prefix string) *Auditor {
	p := strings.Trim(prefix, "/")
	if p != "" {
		p = "/" + p
	}
	return &Auditor{prefix: p}
}

// Unprefixed reports whether v is a root-relative reference that does not
// live under the prefix.
func (a *Auditor) Unprefixed(v string) bool {
	if !strings.HasPrefix(v, "/") || strings.HasPrefix(v, "//") {
		return false
	}
	if a.prefix == "" {
		return false
	}
	if v == a.prefix {
		return false
	}
	rest, ok := strings.CutPrefix(v, a.prefix)
	if !ok {
		return true
	}
	return !strings.HasPrefix(rest, "/") && !strings.HasPrefix(rest, "?") && !strings.HasPrefix(rest, "#")
}

// Document audits one document; rel labels the findings.
func (a *Auditor) Document(rel string, doc []byte) []Finding {
	var findings []Finding
	for _, d := range include.Scan(string(doc)) {
		findings = append(findings, Finding{
			Path: rel, Line: d.Line, Kind: KindDirective, Value: d.Path,
		})
	}

	z := html.NewTokenizer(bytes.NewReader(doc))
	line := 1
	hasBody := false
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		raw := z.Raw()
		tokLine := line
		line += bytes.Count(raw, []byte{'\n'})
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		tok := z.Token()
		if tok.Data == "body" {
			hasBody = true
		}
		for _, attr := range tok.Attr {
			if attr.Key != "href" && attr.Key != "src" {
				continue
			}
			if a.Unprefixed(attr.Val) {
				findings = append(findings, Finding{
					Path: rel, Line: tokLine, Kind: KindUnprefixed,
					Tag: tok.Data, Attr: attr.Key, Value: attr.Val,
				})
			}
		}
	}
	if !hasBody {
		findings = append(findings, Finding{Path: rel, Kind: KindMissingBody})
	}
	sort.SliceStable(findings, func(i, j int) bool { return findings[i].Line < findings[j].Line })
	return findings
}

// Scan audits the given root-relative slash paths under root.
func (a *Auditor) Scan(root string, rels []string) (*Report, error) {
	report := &Report{}
	for _, rel := range rels {
		f, err := os.Open(filepath.Join(root, filepath.FromSlash(rel))) // #nosec G304 -- rel comes from walking root
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to open HTML file").
				WithContext("path", rel).Build()
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to read HTML file").
				WithContext("path", rel).Build()
		}
		report.Files++
		report.Findings = append(report.Findings, a.Document(rel, data)...)
	}
	return report, nil
}
