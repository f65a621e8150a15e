package include

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/htmlnorm/internal/foundation/errors"
)

func TestResolve_NavScenario(t *testing.T) {
	fsys := fstest.MapFS{
		"nav.html": {Data: []byte("<nav>X</nav>")},
	}
	r := NewResolver(fsys)

	res := r.Resolve("<body><!--#include file=\"/nav.html\" --></body>", "index.html")
	assert.Equal(t, "<body><nav>X</nav></body>", res.Content)
	assert.Equal(t, 1, res.Resolved)
	assert.Empty(t, res.Unresolved)
}

func TestResolve_DirectiveForms(t *testing.T) {
	fsys := fstest.MapFS{
		"partials/footer.html": {Data: []byte("<footer/>")},
		"health/side.html":     {Data: []byte("<aside/>")},
	}
	r := NewResolver(fsys)

	tests := []struct {
		name    string
		doc     string
		docPath string
		want    string
	}{
		{"compact", `<!--#include file="/partials/footer.html"-->`, "index.html", "<footer/>"},
		{"spaced", `<!--#   include   file = "/partials/footer.html"   -->`, "index.html", "<footer/>"},
		{"single quotes", `<!--# include file='/partials/footer.html' -->`, "index.html", "<footer/>"},
		{"virtual", `<!--# include virtual="/partials/footer.html" -->`, "index.html", "<footer/>"},
		{"document relative", `<!--# include file="side.html" -->`, "health/bmi.html", "<aside/>"},
		{"document relative parent", `<!--# include file="../partials/footer.html" -->`, "health/bmi.html", "<footer/>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Resolve(tt.doc, tt.docPath)
			assert.Equal(t, tt.want, res.Content)
			assert.Empty(t, res.Unresolved)
		})
	}
}

func TestResolve_MissingKeepsDirective(t *testing.T) {
	r := NewResolver(fstest.MapFS{"a.html": {Data: []byte("A")}})
	doc := "<p>\n<!--# include file=\"/missing.html\" -->\n<!--# include file=\"/a.html\" -->\n</p>"

	res := r.Resolve(doc, "index.html")
	assert.Equal(t, "<p>\n<!--# include file=\"/missing.html\" -->\nA\n</p>", res.Content)
	assert.Equal(t, 1, res.Resolved)
	require.Len(t, res.Unresolved, 1)

	err := res.Unresolved[0]
	assert.True(t, errors.Is(err, ErrUnresolvedReference))
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryInclude))
	assert.True(t, ferrors.HasSeverity(err, ferrors.SeverityWarning))
	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	line, _ := ce.Context().Get("line")
	assert.Equal(t, 2, line)
}

func TestResolve_EscapingPathIsMissing(t *testing.T) {
	r := NewResolver(fstest.MapFS{"secret": {Data: []byte("s3cr3t")}})
	doc := `<!--# include file="../../secret" -->`

	res := r.Resolve(doc, "index.html")
	assert.Equal(t, doc, res.Content)
	require.Len(t, res.Unresolved, 1)
	assert.ErrorIs(t, res.Unresolved[0], ErrUnresolvedReference)
}

func TestResolve_SinglePassIsCycleSafe(t *testing.T) {
	self := `<b><!--# include file="/self.html" --></b>`
	r := NewResolver(fstest.MapFS{"self.html": {Data: []byte(self)}})

	res := r.Resolve(self, "self.html")
	assert.Equal(t, `<b><b><!--# include file="/self.html" --></b></b>`, res.Content)
	assert.Equal(t, 1, res.Resolved)
}

func TestResolve_InsertsRawBytes(t *testing.T) {
	raw := []byte{0xff, 0xfe, 'x', 0x00}
	r := NewResolver(fstest.MapFS{"bin.html": {Data: raw}})

	res := r.Resolve(`[<!--#include file="/bin.html"-->]`, "index.html")
	assert.Equal(t, "["+string(raw)+"]", res.Content)
}

func TestResolve_NoDirectives(t *testing.T) {
	r := NewResolver(fstest.MapFS{})
	doc := "<!-- include file=\"/nav.html\" --><p>plain</p>"
	res := r.Resolve(doc, "index.html")
	assert.Equal(t, doc, res.Content)
	assert.Zero(t, res.Resolved)
	assert.Empty(t, res.Unresolved)
}

func TestTarget(t *testing.T) {
	tests := []struct {
		in, doc string
		want    string
		ok      bool
	}{
		{"/nav.html", "a/b/c.html", "nav.html", true},
		{"//nav.html", "c.html", "nav.html", true},
		{"nav.html", "a/b/c.html", "a/b/nav.html", true},
		{"./nav.html", "c.html", "nav.html", true},
		{"../nav.html", "c.html", "", false},
		{"/../nav.html", "c.html", "", false},
		{"", "c.html", "", false},
		{"/", "c.html", "", false},
	}
	for _, tt := range tests {
		got, ok := Target(tt.in, tt.doc)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, "dir/page_processed.html", OutputPath("dir/page.html"))
	assert.Equal(t, "README_processed", OutputPath("README"))
}
