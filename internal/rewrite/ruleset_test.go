package rewrite

import (
	"errors"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultRuleset(t *testing.T) *Ruleset {
	t.Helper()
	rs, err := Compile(DefaultRules("/calculator", DefaultSections))
	require.NoError(t, err)
	return rs
}

func TestApply_StylesheetScenario(t *testing.T) {
	rs, err := Compile([]Rule{{Kind: KindAttributePrefix, Attr: "href", From: "/css/", To: "/calculator/css/"}})
	require.NoError(t, err)

	out, stats := rs.Apply(`href="/css/calculator.css"`)
	assert.Equal(t, `href="/calculator/css/calculator.css"`, out)
	assert.Equal(t, 1, stats["href:/css/"])
}

func TestApply_DefaultRules(t *testing.T) {
	rs := defaultRuleset(t)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"versioned stylesheet", `<link rel="stylesheet" href="/style.css?v=20251101blur2">`, `<link rel="stylesheet" href="/calculator/style.css?v=20251101blur2">`},
		{"single quoted css", `<link rel='stylesheet' href='/css/calculator.css'>`, `<link rel='stylesheet' href='/calculator/css/calculator.css'>`},
		{"asset favicon", `<link rel="icon" href="/assets/favicon.svg" />`, `<link rel="icon" href="/calculator/assets/favicon.svg" />`},
		{"root favicon", `<link rel="shortcut icon" href="/favicon.ico" />`, `<link rel="shortcut icon" href="/calculator/assets/favicon.ico" />`},
		{"manifest", `<link rel="manifest" href="/manifest.json">`, `<link rel="manifest" href="/calculator/manifest.json">`},
		{"script", `<script src="/js/main.js"></script>`, `<script src="/calculator/js/main.js"></script>`},
		{"root script", `<script src="/nav-common.js"></script>`, `<script src="/calculator/nav-common.js"></script>`},
		{"image", `<img src='/assets/x.svg'>`, `<img src='/calculator/assets/x.svg'>`},
		{"home link", `<a href="/" class="nav-link">Home</a>`, `<a href="/calculator/" class="nav-link">Home</a>`},
		{"home link single quote", `<a href='/'>Home</a>`, `<a href='/calculator/'>Home</a>`},
		{"section link", `<a href="/health/bmi-calculator.html">BMI</a>`, `<a href="/calculator/health/bmi-calculator.html">BMI</a>`},
		{"hyphenated section", `<a href="/date-time/age-calculator.html">Age</a>`, `<a href="/calculator/date-time/age-calculator.html">Age</a>`},
		{"common page", `<a href="/faq.html" class="nav-link">FAQ</a>`, `<a href="/calculator/faq.html" class="nav-link">FAQ</a>`},
		{"unknown section", `<a href="/blog/post.html">Blog</a>`, `<a href="/blog/post.html">Blog</a>`},
		{"external url", `<link href="https://example.com/css/x">`, `<link href="https://example.com/css/x">`},
		{"cdn stylesheet", `<link rel="stylesheet" href="https://cdnjs.cloudflare.com/ajax/libs/font-awesome/6.4.0/css/all.min.css">`, `<link rel="stylesheet" href="https://cdnjs.cloudflare.com/ajax/libs/font-awesome/6.4.0/css/all.min.css">`},
		{"anchor", `<a href="#top">Top</a>`, `<a href="#top">Top</a>`},
		{"data attribute", `<a data-href="/css/x" data-src="/js/y">x</a>`, `<a data-href="/css/x" data-src="/js/y">x</a>`},
		{"wrong attribute for rule", `<img src="/css/sprite.png">`, `<img src="/css/sprite.png">`},
		{"section without trailing segment", `<a href="/health">Health</a>`, `<a href="/health">Health</a>`},
		{"uppercase attribute", `<A HREF="/css/a.css">`, `<A HREF="/calculator/css/a.css">`},
		{"language picker untouched", `<a href="#" data-lang="ko">한국어</a>`, `<a href="#" data-lang="ko">한국어</a>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Rewrite(tt.in, rs)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApply_QuotePreservation(t *testing.T) {
	rs := defaultRuleset(t)
	for _, q := range []string{`"`, `'`} {
		in := `<a href=` + q + `/finance/loan.html` + q + `><img src=` + q + `/assets/a.png` + q + `>`
		want := `<a href=` + q + `/calculator/finance/loan.html` + q + `><img src=` + q + `/calculator/assets/a.png` + q + `>`
		assert.Equal(t, want, Rewrite(in, rs), "quote %s", q)
	}
}

func TestApply_MixedQuotesRootLinkNeedsMatchingQuotes(t *testing.T) {
	rs := defaultRuleset(t)
	in := `<a href="/'>odd</a>`
	assert.Equal(t, in, Rewrite(in, rs))
}

func TestCompile_RejectsChainedRules(t *testing.T) {
	// The second rule would see the first rule's output.
	_, err := Compile([]Rule{
		{Kind: KindAttributePrefix, Attr: "href", From: "/old/", To: "/new/"},
		{Kind: KindAttributePrefix, Attr: "href", From: "/new/", To: "/site/new/"},
	})
	require.ErrorIs(t, err, ErrNotIdempotent)
}

func TestApply_Stats(t *testing.T) {
	rs := defaultRuleset(t)
	_, stats := rs.Apply(`<a href="/">H</a><a href="/faq.html">F</a><a href="/math/a.html">A</a><a href="/math/b.html">B</a>`)
	assert.Equal(t, 1, stats["href:root"])
	assert.Equal(t, 1, stats["href:/faq.html"])
	assert.Equal(t, 2, stats["href:sections"])
	assert.Equal(t, 4, stats.Total())
}

var corpusFragments = []string{
	`<link rel="stylesheet" href="/css/calculator.css">`,
	`<link rel='stylesheet' href='/style.css?v=1'>`,
	`<link rel="stylesheet" href="/category.css">`,
	`<script src="/js/calculators/bmi.js"></script>`,
	`<script src='/i18n.js'></script>`,
	`<script src="/locales.js"></script>`,
	`<script src="/category.js"></script>`,
	`<img src="/assets/x-twitter-footer.svg" alt="X">`,
	`<link rel="icon" href="/assets/favicon-96x96.png" sizes="96x96" />`,
	`<link rel="shortcut icon" href="/favicon.ico" />`,
	`<link rel="manifest" href="/manifest.json">`,
	`<a href="/" class="nav-link">Home</a>`,
	`<a href='/'>Home</a>`,
	`<a href="/how-to-use.html">How</a>`,
	`<a href="/sitemap.html">Map</a>`,
	`<a href="/api.html">API</a>`,
	`<a href="/conversion/length-converter.html">Length</a>`,
	`<a href="/construction/">Build</a>`,
	`<a href="https://x.com/8hqmx" target="_blank">X</a>`,
	`<a href="/unknown/page.html">?</a>`,
	`<a href="#" data-lang="zh-TW">繁體中文</a>`,
	"\n    ",
	`<div class="container">`,
}

func randomDocument(r *rand.Rand) string {
	var b strings.Builder
	n := 1 + r.IntN(30)
	for range n {
		b.WriteString(corpusFragments[r.IntN(len(corpusFragments))])
		b.WriteString("\n")
	}
	return b.String()
}

func TestApply_Idempotent(t *testing.T) {
	rs := defaultRuleset(t)
	r := rand.New(rand.NewPCG(1, 2))
	for i := range 500 {
		doc := randomDocument(r)
		once := Rewrite(doc, rs)
		twice := Rewrite(once, rs)
		require.Equal(t, once, twice, "document %d not a fixed point after one pass", i)
	}
}

func TestApply_NoMatchPassesThrough(t *testing.T) {
	rs := defaultRuleset(t)
	doc := "<p>plain text with /css/ and src=/js/ but no quoted attribute</p>"
	out, stats := rs.Apply(doc)
	assert.Equal(t, doc, out)
	assert.Zero(t, stats.Total())
}

func TestCompile_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		rules []Rule
		idem  bool
	}{
		{"self matching output", []Rule{{Kind: KindAttributePrefix, Attr: "href", From: "/css/", To: "/css/v2/"}}, true},
		{"section prefix is a section", []Rule{{Kind: KindSectionLink, Attr: "href", To: "/health", Sections: []string{"health"}}}, true},
		{"root prefix hit by attribute rule", []Rule{
			{Kind: KindRootLink, Attr: "href", To: "/calculator"},
			{Kind: KindAttributePrefix, Attr: "href", From: "/calc", To: "/x/calc"},
		}, true},
		{"bare root from", []Rule{{Kind: KindAttributePrefix, Attr: "href", From: "/", To: "/x/"}}, false},
		{"relative from", []Rule{{Kind: KindAttributePrefix, Attr: "href", From: "css/", To: "/x/css/"}}, false},
		{"empty attribute", []Rule{{Kind: KindAttributePrefix, From: "/css/", To: "/x/css/"}}, false},
		{"no sections", []Rule{{Kind: KindSectionLink, Attr: "href", To: "/x"}}, false},
		{"bad section", []Rule{{Kind: KindSectionLink, Attr: "href", To: "/x", Sections: []string{"a/b"}}}, false},
		{"root prefix", []Rule{{Kind: KindRootLink, Attr: "href", To: "/"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.rules)
			require.Error(t, err)
			assert.Equal(t, tt.idem, errors.Is(err, ErrNotIdempotent))
		})
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Section-Link ")
	require.NoError(t, err)
	assert.Equal(t, KindSectionLink, k)

	_, err = ParseKind("regex")
	require.Error(t, err)

	var kind Kind
	require.NoError(t, kind.UnmarshalText([]byte("root-link")))
	assert.Equal(t, KindRootLink, kind)
	text, _ := kind.MarshalText()
	assert.Equal(t, "root-link", string(text))
}

func TestDefaultRules_CompileForOtherPrefixes(t *testing.T) {
	for _, prefix := range []string{"/calculator", "calculator/", "/tools/calc"} {
		_, err := Compile(DefaultRules(prefix, DefaultSections))
		require.NoError(t, err, prefix)
	}
}
