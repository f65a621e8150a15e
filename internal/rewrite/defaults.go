package rewrite

// DefaultSections lists the calculator site's top-level sections.
var DefaultSections = []string{
	"general", "date-time", "finance", "health", "conversion", "math", "media", "construction",
}

// DefaultRules returns the site ruleset for a deployment prefix such as
// "/calculator". Order matters: the favicon rule runs after the generic
// /assets/ rule and targets the assets directory itself.
func DefaultRules(prefix string, sections []string) []Rule {
	p := normalizePrefix(prefix)
	attr := func(a, from, to string) Rule {
		return Rule{Kind: KindAttributePrefix, Attr: a, From: from, To: p + to}
	}
	rules := []Rule{
		attr("href", "/css/", "/css/"),
		attr("href", "/style.css", "/style.css"),
		attr("href", "/category.css", "/category.css"),

		attr("src", "/js/", "/js/"),
		attr("src", "/i18n.js", "/i18n.js"),
		attr("src", "/category.js", "/category.js"),
		attr("src", "/locales.js", "/locales.js"),
		attr("src", "/nav-common.js", "/nav-common.js"),

		attr("href", "/assets/", "/assets/"),
		attr("src", "/assets/", "/assets/"),

		attr("href", "/manifest.json", "/manifest.json"),
		attr("href", "/favicon", "/assets/favicon"),
	}
	if len(sections) > 0 {
		rules = append(rules, Rule{Kind: KindSectionLink, Attr: "href", To: p, Sections: append([]string(nil), sections...)})
	}
	rules = append(rules,
		attr("href", "/how-to-use.html", "/how-to-use.html"),
		attr("href", "/faq.html", "/faq.html"),
		attr("href", "/sitemap.html", "/sitemap.html"),
		attr("href", "/api.html", "/api.html"),
		Rule{Kind: KindRootLink, Attr: "href", To: p},
	)
	return rules
}
