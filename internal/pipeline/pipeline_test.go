package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/htmlnorm/internal/compose"
	"git.home.luguber.info/inful/htmlnorm/internal/history"
	"git.home.luguber.info/inful/htmlnorm/internal/include"
	"git.home.luguber.info/inful/htmlnorm/internal/metrics"
	"git.home.luguber.info/inful/htmlnorm/internal/rewrite"
	"git.home.luguber.info/inful/htmlnorm/internal/structure"
)

const legacyPage = `<!DOCTYPE html>
<html>
<head>
    <link rel="stylesheet" href="/style.css?v=7">
    <link rel="stylesheet" href="/category.css">
</head>
<body>
    <!--# include file="/partials/nav.html" -->
    <h1>BMI</h1>
    <a href="/">Home</a>
    <script src="/nav-common.js"></script>
</body>
</html>
`

const canonicalPage = `<html><body><div class="container"><a href="/">Home</a></div><script src="/nav-common.js"></script></body></html>`

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
	return root
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func siteProcessor(t *testing.T, includeBase string) *Processor {
	t.Helper()
	rs, err := rewrite.Compile(rewrite.DefaultRules("/calculator", rewrite.DefaultSections))
	require.NoError(t, err)
	return NewProcessor(structure.DefaultMarkers,
		StructureStage(structure.DefaultNormalizer()),
		IncludeStage(include.NewResolver(os.DirFS(includeBase)), includeBase),
		RewriteStage(rs),
	)
}

func TestProcessor_Outcomes(t *testing.T) {
	rs := rewrite.MustCompile(rewrite.DefaultRules("/calculator", rewrite.DefaultSections))
	pr := NewProcessor(structure.DefaultMarkers,
		StructureStage(structure.DefaultNormalizer()),
		IncludeStage(include.NewResolver(fstest.MapFS{"nav.html": {Data: []byte(`<nav><a href="/faq.html">FAQ</a></nav>`)}}), "."),
		RewriteStage(rs),
	)

	t.Run("canonical", func(t *testing.T) {
		p := &Page{Rel: "index.html", Original: canonicalPage}
		out, err := pr.Process(p)
		require.NoError(t, err)
		assert.Equal(t, OutcomeCanonical, out)
		assert.Equal(t, canonicalPage, p.Content)
	})

	t.Run("missing body", func(t *testing.T) {
		p := &Page{Rel: "frag.html", Original: `<a href="/">x</a>`}
		out, err := pr.Process(p)
		require.ErrorIs(t, err, structure.ErrMissingStructure)
		assert.Equal(t, OutcomeSkipped, out)
		assert.Equal(t, p.Original, p.Content)
	})

	t.Run("changed then stable", func(t *testing.T) {
		p := &Page{Rel: "a.html", Original: "<body>\n<!--#include file=\"/nav.html\"-->\n<a href=\"/\">H</a>\n</body>"}
		out, err := pr.Process(p)
		require.NoError(t, err)
		assert.Equal(t, OutcomeChanged, out)
		assert.Contains(t, p.Content, `<a href="/calculator/">H</a>`)
		// Included content is relocated with the rest of the page.
		assert.Contains(t, p.Content, `<nav><a href="/calculator/faq.html">FAQ</a></nav>`)
		assert.Equal(t, 1, p.Hits["href:root"])

		again := &Page{Rel: "a.html", Original: p.Content}
		out, err = pr.Process(again)
		require.NoError(t, err)
		assert.Equal(t, OutcomeUnchanged, out)
	})

	t.Run("unresolved include is a warning", func(t *testing.T) {
		p := &Page{Rel: "b.html", Original: "<body><div class=\"container\"><!--#include file=\"/gone.html\"--></div></body>"}
		out, err := pr.Process(p)
		require.NoError(t, err)
		assert.Equal(t, OutcomeUnchanged, out)
		require.Len(t, p.Warnings, 1)
		assert.ErrorIs(t, p.Warnings[0], include.ErrUnresolvedReference)
	})
}

func TestRunner_Run(t *testing.T) {
	root := writeTree(t, map[string]string{
		"health/bmi-calculator.html": legacyPage,
		"index.html":                 canonicalPage,
		"partials/nav.html":          `<nav>X</nav>`,
		"fragment.html":              `<a href="/css/x">no body</a>`,
		"notes.txt":                  `href="/css/x"`,
		"node_modules/pkg/a.html":    `<body><a href="/">x</a></body>`,
	})
	reg := prom.NewRegistry()
	store, err := history.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	runner := NewRunner(root, siteProcessor(t, root),
		WithPatterns([]string{"**/*.html"}, []string{"partials/**"}),
		WithWorkers(3),
		WithRecorder(metrics.NewPrometheusRecorder(reg)),
		WithHistory(store, "rewrite"),
	)

	report, err := runner.Run(t.Context())
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, map[Outcome]int{OutcomeChanged: 1, OutcomeCanonical: 1, OutcomeSkipped: 1}, report.Counts())
	assert.Equal(t, []string{"health/bmi-calculator.html"}, report.Changed())
	assert.False(t, report.Failed())

	got := readFile(t, root, "health/bmi-calculator.html")
	assert.Contains(t, got, "<nav>X</nav>")
	assert.Contains(t, got, `<div class="container">`)
	assert.Contains(t, got, `href="/calculator/style.css?v=7"`)
	assert.Contains(t, got, `href="/calculator/css/calculator.css"`)
	assert.Contains(t, got, `<a href="/calculator/">Home</a>`)
	assert.Contains(t, got, `<script src="/calculator/js/main.js"></script>`)
	assert.NotContains(t, got, "nav-common.js")
	assert.Equal(t, canonicalPage, readFile(t, root, "index.html"))
	assert.Equal(t, `<a href="/css/x">no body</a>`, readFile(t, root, "fragment.html"))

	second, err := runner.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, map[Outcome]int{OutcomeUnchanged: 1, OutcomeCanonical: 1, OutcomeSkipped: 1}, second.Counts())
	assert.Equal(t, got, readFile(t, root, "health/bmi-calculator.html"))

	last, err := store.LastRun(t.Context())
	require.NoError(t, err)
	assert.Equal(t, second.RunID, last.ID)
	assert.Equal(t, 1, last.Counts["unchanged"])
	files, err := store.Files(t.Context(), second.RunID)
	require.NoError(t, err)
	assert.Len(t, files, 3)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}

func TestRunner_DryRunWritesNothing(t *testing.T) {
	root := writeTree(t, map[string]string{"a.html": `<body><a href="/">x</a></body>`})
	rs := rewrite.MustCompile(rewrite.DefaultRules("/calculator", nil))
	runner := NewRunner(root, NewProcessor(nil, RewriteStage(rs)), WithDryRun(true))

	report, err := runner.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.html"}, report.Changed())
	assert.Equal(t, `<body><a href="/">x</a></body>`, readFile(t, root, "a.html"))
}

func TestRunner_Canceled(t *testing.T) {
	root := writeTree(t, map[string]string{"a.html": "<body></body>", "b.html": "<body></body>"})
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	runner := NewRunner(root, NewProcessor(nil))
	_, err := runner.Run(ctx)
	require.Error(t, err)
}

func TestRunner_Matches(t *testing.T) {
	r := NewRunner(".", NewProcessor(nil), WithPatterns([]string{"**/*.html"}, []string{"**/*_processed.html", "drafts/**"}))
	assert.True(t, r.Matches("index.html"))
	assert.True(t, r.Matches("health/bmi.html"))
	assert.False(t, r.Matches("index_processed.html"))
	assert.False(t, r.Matches("drafts/x.html"))
	assert.False(t, r.Matches("style.css"))
}

func TestDocPathIn(t *testing.T) {
	base := t.TempDir()
	p := &Page{Path: filepath.Join(base, "health", "bmi.html"), Rel: "x/bmi.html"}
	assert.Equal(t, "health/bmi.html", docPathIn(base, p))

	outside := &Page{Path: filepath.Join(t.TempDir(), "bmi.html"), Rel: "bmi.html"}
	assert.Equal(t, "bmi.html", docPathIn(base, outside))
}

func TestWriteFileAtomic_PreservesMode(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a.html")
	require.NoError(t, os.WriteFile(p, []byte("old"), 0o640))
	require.NoError(t, writeFileAtomic(p, []byte("new")))

	fi, err := os.Stat(p)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), fi.Mode().Perm())
	data, _ := os.ReadFile(p)
	assert.Equal(t, "new", string(data))

	entries, _ := os.ReadDir(filepath.Dir(p))
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestGenerator_Generate(t *testing.T) {
	out := t.TempDir()
	sk := compose.ParseSkeleton(`<title>{title}</title><a href="/health/" class="nav{health_active}">H</a><a href="/">Home</a>{footer}`)
	pages := []compose.Page{
		{Output: "health/bmi.html", Descriptor: compose.Descriptor{Title: "BMI", Category: "health", Extra: map[string]string{"footer": "<footer/>"}}, Fingerprint: "a"},
		{Output: "finance/loan.html", Descriptor: compose.Descriptor{Title: "Loan", Category: "finance"}, Fingerprint: "b"},
	}
	store, err := history.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	rs := rewrite.MustCompile(rewrite.DefaultRules("/calculator", rewrite.DefaultSections))

	gen := NewGenerator(sk, rewrite.DefaultSections, rs, out, WithWorkers(2), WithHistory(store, "generate"))
	report, err := gen.Generate(t.Context(), pages)
	require.NoError(t, err)
	assert.Equal(t, map[Outcome]int{OutcomeChanged: 1, OutcomeFailed: 1}, report.Counts())

	assert.Equal(t, `<title>BMI</title><a href="/calculator/health/" class="nav active">H</a><a href="/calculator/">Home</a><footer/>`,
		readFile(t, out, "health/bmi.html"))
	assert.NoFileExists(t, filepath.Join(out, "finance", "loan.html"))
	for _, f := range report.Files {
		if f.Outcome == OutcomeFailed {
			assert.Equal(t, []string{"footer"}, compose.UnboundNames(f.Err))
		}
	}

	again, err := gen.Generate(t.Context(), pages[:1])
	require.NoError(t, err)
	assert.Equal(t, map[Outcome]int{OutcomeUnchanged: 1}, again.Counts())

	forced := NewGenerator(sk, rewrite.DefaultSections, rs, out, WithForce(true), WithHistory(store, "generate"))
	report, err = forced.Generate(t.Context(), pages[:1])
	require.NoError(t, err)
	assert.Equal(t, map[Outcome]int{OutcomeUnchanged: 1}, report.Counts(), "identical output is not rewritten")
}

func TestReport_Summary(t *testing.T) {
	r := &Report{Files: []FileResult{{Outcome: OutcomeChanged}, {Outcome: OutcomeUnchanged}, {Outcome: OutcomeChanged}}}
	assert.Equal(t, "changed=2 unchanged=1", r.Summary())
	assert.True(t, strings.HasPrefix(r.Summary(), "changed"))
}
