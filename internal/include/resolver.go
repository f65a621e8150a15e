package include

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	ferrors "git.home.luguber.info/inful/htmlnorm/internal/foundation/errors"
	"git.home.luguber.info/inful/htmlnorm/internal/textedit"
)

// ErrUnresolvedReference marks a directive whose target could not be read.
var ErrUnresolvedReference = errors.New("unresolved include reference")

var directivePattern = regexp.MustCompile(`<!--#\s*include\s+(file|virtual)\s*=\s*(?:"([^"]*)"|'([^']*)')\s*-->`)

// Directive is one include occurrence in a document.
type Directive struct {
	Path    string
	Virtual bool
	Start   int
	End     int
	Line    int
}

// Text returns the directive exactly as written in doc.
func (d Directive) Text(doc string) string {
	return doc[d.Start:d.End]
}

// Scan returns the directives in doc in document order.
func Scan(doc string) []Directive {
	matches := directivePattern.FindAllStringSubmatchIndex(doc, -1)
	out := make([]Directive, 0, len(matches))
	for _, m := range matches {
		var p string
		if m[4] >= 0 {
			p = doc[m[4]:m[5]]
		} else {
			p = doc[m[6]:m[7]]
		}
		out = append(out, Directive{
			Path:    p,
			Virtual: doc[m[2]:m[3]] == "virtual",
			Start:   m[0],
			End:     m[1],
			Line:    textedit.LineAt(doc, m[0]),
		})
	}
	return out
}

// Result is the outcome of one Resolve call.
type Result struct {
	Content  string
	Resolved int
	// Unresolved holds one include warning per directive left in place.
	Unresolved []error
}

// Resolver reads include targets from a base directory.
type Resolver struct {
	fsys fs.FS
}

// NewResolver returns a Resolver reading from fsys, which is rooted at the
// include base directory.
func NewResolver(fsys fs.FS) *Resolver {
	return &Resolver{fsys: fsys}
}

// Target maps a directive path to a name inside the base. docPath is the
// including document's slash-separated path relative to the base; it is
// only consulted for paths without a leading "/". ok is false for paths
// that leave the base.
func Target(directivePath, docPath string) (name string, ok bool) {
	p := strings.TrimSpace(directivePath)
	if p == "" {
		return "", false
	}
	if strings.HasPrefix(p, "/") {
		name = path.Clean(strings.TrimLeft(p, "/"))
	} else {
		name = path.Join(path.Dir(filepath.ToSlash(docPath)), p)
	}
	if !fs.ValidPath(name) || name == "." {
		return "", false
	}
	return name, true
}

// Resolve replaces every directive in doc with the bytes of its target.
// Inserted content is not scanned again. Directives whose target is
// missing, unreadable or outside the base are kept verbatim.
func (r *Resolver) Resolve(doc, docPath string) Result {
	directives := Scan(doc)
	res := Result{Content: doc}
	if len(directives) == 0 {
		return res
	}

	edits := make([]textedit.Edit, 0, len(directives))
	for _, d := range directives {
		name, ok := Target(d.Path, docPath)
		if !ok {
			res.Unresolved = append(res.Unresolved, unresolved(d, docPath, fmt.Errorf("path %q leaves the include base", d.Path)))
			continue
		}
		data, err := fs.ReadFile(r.fsys, name)
		if err != nil {
			res.Unresolved = append(res.Unresolved, unresolved(d, docPath, err))
			continue
		}
		edits = append(edits, textedit.Edit{Start: d.Start, End: d.End, Replacement: string(data)})
	}
	if len(edits) == 0 {
		return res
	}

	out, err := textedit.Apply(doc, edits)
	if err != nil {
		// Regexp matches never overlap.
		panic(fmt.Sprintf("include: invalid edits: %v", err))
	}
	res.Content = out
	res.Resolved = len(edits)
	return res
}

func unresolved(d Directive, docPath string, cause error) error {
	return ferrors.IncludeError(fmt.Sprintf("include %q not found", d.Path)).
		WithCause(fmt.Errorf("%w: %w", ErrUnresolvedReference, cause)).
		WithContext("path", docPath).
		WithContext("directive", d.Path).
		WithContext("line", d.Line).
		Build()
}

// OutputPath returns the default destination for standalone processing of
// in: "page.html" becomes "page_processed.html".
func OutputPath(in string) string {
	ext := filepath.Ext(in)
	return strings.TrimSuffix(in, ext) + "_processed" + ext
}
