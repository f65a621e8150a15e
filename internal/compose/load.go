package compose

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/inful/mdfp"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/htmlnorm/internal/foundation/errors"
	"git.home.luguber.info/inful/htmlnorm/internal/frontmatter"
)

// Page is one page to generate.
type Page struct {
	// Output is the slash-separated path relative to the output directory.
	Output     string
	Source     string
	Descriptor Descriptor
	// Fingerprint identifies the descriptor's content; unchanged
	// fingerprints let the generator skip a page.
	Fingerprint string
}

var markdown = goldmark.New(
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(goldmarkhtml.WithUnsafe()),
)

// LoadManifest reads a YAML mapping of output path to descriptor.
func LoadManifest(path string) ([]Page, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- manifest path comes from config
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to read descriptor manifest").
			WithContext("path", path).Fatal().Build()
	}
	return ParseManifest(data, path)
}

// ParseManifest parses manifest bytes; source names the manifest in pages
// and errors.
func ParseManifest(data []byte, source string) ([]Page, error) {
	var entries map[string]Descriptor
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "invalid descriptor manifest").
			WithContext("path", source).Build()
	}

	pages := make([]Page, 0, len(entries))
	for out, d := range entries {
		name, err := cleanOutput(out)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryValidation, "invalid output path in manifest").
				WithContext("path", source).WithContext("output", out).Build()
		}
		fp, err := fingerprint(d)
		if err != nil {
			return nil, err
		}
		pages = append(pages, Page{Output: name, Source: source, Descriptor: d, Fingerprint: fp})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Output < pages[j].Output })
	return pages, nil
}

type fileHeader struct {
	Descriptor `yaml:",inline"`
	Output     string `yaml:"output,omitempty"`
}

// LoadDir reads every .md and .html descriptor file under dir. The YAML
// header supplies the fields; the body becomes Content, rendered from
// Markdown for .md files. Output defaults to the file's relative path with
// an .html extension.
func LoadDir(dir string) ([]Page, error) {
	var pages []Page
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(p))
		if ext != ".md" && ext != ".html" {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		page, err := loadFile(p, filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		pages = append(pages, page)
		return nil
	})
	if err != nil {
		if ferrors.IsClassified(err) {
			return nil, err
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to read descriptor directory").
			WithContext("path", dir).Fatal().Build()
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Output < pages[j].Output })
	return pages, nil
}

func loadFile(p, rel string) (Page, error) {
	data, err := os.ReadFile(p) // #nosec G304 -- walking the configured descriptor directory
	if err != nil {
		return Page{}, err
	}
	var h fileHeader
	body, _, err := frontmatter.Decode(data, &h)
	if err != nil {
		return Page{}, ferrors.WrapError(err, ferrors.CategoryValidation, "invalid descriptor header").
			WithContext("path", p).Build()
	}

	if strings.EqualFold(path.Ext(rel), ".md") {
		var buf bytes.Buffer
		if err := markdown.Convert(body, &buf); err != nil {
			return Page{}, ferrors.WrapError(err, ferrors.CategoryTemplate, "failed to render markdown descriptor").
				WithContext("path", p).Build()
		}
		body = buf.Bytes()
	}
	if len(bytes.TrimSpace(body)) > 0 {
		h.Content = string(body)
	}

	out := h.Output
	if out == "" {
		out = strings.TrimSuffix(rel, path.Ext(rel)) + ".html"
	}
	name, err := cleanOutput(out)
	if err != nil {
		return Page{}, ferrors.WrapError(err, ferrors.CategoryValidation, "invalid output path in descriptor").
			WithContext("path", p).WithContext("output", out).Build()
	}
	fp, err := fingerprint(h.Descriptor)
	if err != nil {
		return Page{}, err
	}
	return Page{Output: name, Source: p, Descriptor: h.Descriptor, Fingerprint: fp}, nil
}

func cleanOutput(out string) (string, error) {
	name := path.Clean(strings.TrimLeft(filepath.ToSlash(out), "/"))
	if !fs.ValidPath(name) || name == "." {
		return "", fmt.Errorf("output %q must stay inside the output directory", out)
	}
	return name, nil
}

// fingerprint hashes the descriptor's fields with Content as the body.
func fingerprint(d Descriptor) (string, error) {
	content := d.Content
	d.Content = ""
	header, err := yaml.Marshal(d)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryInternal, "failed to serialize descriptor").Build()
	}
	return mdfp.CalculateFingerprintFromParts(strings.TrimSuffix(string(header), "\n"), content), nil
}
