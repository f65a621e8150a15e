package compose

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	ferrors "git.home.luguber.info/inful/htmlnorm/internal/foundation/errors"
)

// ErrUnboundPlaceholder marks a skeleton placeholder with no value.
var ErrUnboundPlaceholder = errors.New("unbound placeholder")

type segment struct {
	text        string
	placeholder bool
}

// Skeleton is a parsed page template. It is immutable and safe for
// concurrent use.
type Skeleton struct {
	src      string
	segments []segment
	names    []string
}

// ParseSkeleton parses src. Parsing never fails: malformed placeholders are
// literal text.
func ParseSkeleton(src string) *Skeleton {
	sk := &Skeleton{src: src}
	seen := make(map[string]bool)
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			sk.segments = append(sk.segments, segment{text: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(src); {
		switch {
		case strings.HasPrefix(src[i:], "{{"):
			lit.WriteByte('{')
			i += 2
		case strings.HasPrefix(src[i:], "}}"):
			lit.WriteByte('}')
			i += 2
		case src[i] == '{':
			if n := identLen(src[i+1:]); n > 0 && i+1+n < len(src) && src[i+1+n] == '}' {
				name := src[i+1 : i+1+n]
				flush()
				sk.segments = append(sk.segments, segment{text: name, placeholder: true})
				if !seen[name] {
					seen[name] = true
					sk.names = append(sk.names, name)
				}
				i += n + 2
				continue
			}
			lit.WriteByte('{')
			i++
		default:
			lit.WriteByte(src[i])
			i++
		}
	}
	flush()
	return sk
}

// LoadSkeleton reads and parses a skeleton file.
func LoadSkeleton(path string) (*Skeleton, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- skeleton path comes from config
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to read skeleton").
			WithContext("path", path).
			Fatal().
			Build()
	}
	return ParseSkeleton(string(data)), nil
}

func identLen(s string) int {
	n := 0
	for n < len(s) {
		c := s[n]
		switch {
		case c == '_' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z'):
		case n > 0 && c >= '0' && c <= '9':
		default:
			return n
		}
		n++
	}
	return n
}

// Source returns the text the skeleton was parsed from.
func (s *Skeleton) Source() string {
	return s.src
}

// Placeholders returns the distinct placeholder names in first-use order.
func (s *Skeleton) Placeholders() []string {
	return append([]string(nil), s.names...)
}

// Execute substitutes fields into the skeleton. If any placeholder has no
// field, it returns a template error wrapping ErrUnboundPlaceholder that
// names every missing placeholder, and no output.
func (s *Skeleton) Execute(fields map[string]string) (string, error) {
	var missing []string
	for _, name := range s.names {
		if _, ok := fields[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", ferrors.TemplateError(fmt.Sprintf("skeleton has unbound placeholders: %s", strings.Join(missing, ", "))).
			WithCause(ErrUnboundPlaceholder).
			WithContext("placeholders", missing).
			Build()
	}

	var b strings.Builder
	for _, seg := range s.segments {
		if seg.placeholder {
			b.WriteString(fields[seg.text])
		} else {
			b.WriteString(seg.text)
		}
	}
	return b.String(), nil
}

// UnboundNames extracts the placeholder names from an error returned by
// Execute.
func UnboundNames(err error) []string {
	ce, ok := ferrors.AsClassified(err)
	if !ok || !errors.Is(err, ErrUnboundPlaceholder) {
		return nil
	}
	v, _ := ce.Context().Get("placeholders")
	names, _ := v.([]string)
	return names
}
