// Package frontmatter separates a YAML header (`---` delimited) from the
// body of a descriptor file.
package frontmatter

import (
	"bytes"
	"errors"

	"gopkg.in/yaml.v3"
)

// ErrMissingClosingDelimiter indicates the document opened a YAML header but
// never closed it.
var ErrMissingClosingDelimiter = errors.New("yaml frontmatter start delimiter found but closing delimiter is missing")

// Split separates the YAML header from the body. If content does not start
// with a delimiter line, had is false and body is the full input.
// CRLF files are handled; the detected newline is returned for Join.
func Split(content []byte) (header, body []byte, had bool, newline string, err error) {
	newline = detectNewline(content)
	open := []byte("---" + newline)
	if !bytes.HasPrefix(content, open) {
		return nil, content, false, newline, nil
	}

	rest := content[len(open):]
	if bytes.HasPrefix(rest, open) {
		return []byte{}, rest[len(open):], true, newline, nil
	}

	closeSeq := []byte(newline + "---" + newline)
	idx := bytes.Index(rest, closeSeq)
	if idx < 0 {
		// A header closed at end of file has no trailing newline.
		if bytes.HasSuffix(rest, []byte(newline+"---")) {
			return rest[:len(rest)-len("---")], []byte{}, true, newline, nil
		}
		return nil, nil, false, newline, ErrMissingClosingDelimiter
	}
	return rest[:idx+len(newline)], rest[idx+len(closeSeq):], true, newline, nil
}

// Decode splits content and unmarshals the header into out. A file without
// a header leaves out untouched.
func Decode(content []byte, out any) (body []byte, had bool, err error) {
	header, body, had, _, err := Split(content)
	if err != nil || !had {
		return body, had, err
	}
	if err := yaml.Unmarshal(header, out); err != nil {
		return nil, true, err
	}
	return body, true, nil
}

// Join reassembles a document from a raw header and body.
func Join(header, body []byte, newline string) []byte {
	if newline == "" {
		newline = "\n"
	}
	delim := []byte("---" + newline)
	out := make([]byte, 0, 2*len(delim)+len(header)+len(body))
	out = append(out, delim...)
	out = append(out, header...)
	if len(header) > 0 && !bytes.HasSuffix(header, []byte(newline)) {
		out = append(out, newline...)
	}
	out = append(out, delim...)
	return append(out, body...)
}

// Encode marshals v as a YAML header and joins it with body.
func Encode(v any, body []byte) ([]byte, error) {
	header, err := yaml.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Join(header, body, "\n"), nil
}

func detectNewline(content []byte) string {
	if i := bytes.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}
