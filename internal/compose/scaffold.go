package compose

import (
	"path"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/htmlnorm/internal/frontmatter"
)

// TitleFromPath derives a display title from a page path:
// "health/body-fat-calculator.html" becomes "Body Fat Calculator".
func TitleFromPath(p string) string {
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	words := strings.FieldsFunc(base, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
	return cases.Title(language.English).String(strings.Join(words, " "))
}

// CategoryFromPath returns the first path segment when it is one of
// categories, otherwise "".
func CategoryFromPath(p string, categories []string) string {
	first, _, found := strings.Cut(strings.TrimLeft(p, "/"), "/")
	if !found {
		return ""
	}
	for _, c := range categories {
		if c == first {
			return c
		}
	}
	return ""
}

// Scaffold returns a Markdown descriptor stub for the page at output.
func Scaffold(output string, categories []string) ([]byte, error) {
	title := TitleFromPath(output)
	h := fileHeader{
		Descriptor: Descriptor{
			Title:       title,
			Description: title + ".",
			Tagline:     title,
			Category:    CategoryFromPath(output, categories),
		},
		Output: strings.TrimLeft(path.Clean("/"+output), "/"),
	}
	return frontmatter.Encode(h, []byte("## "+title+"\n"))
}
