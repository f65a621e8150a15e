// Package textedit applies byte-range replacements to document buffers.
package textedit

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Edit represents a targeted byte-range replacement.
//
// Start and End are byte offsets into the original source, with End exclusive.
// Replacement replaces source[Start:End].
type Edit struct {
	Start       int
	End         int
	Replacement string
}

// ErrOverlap is returned when two edits cover the same bytes.
var ErrOverlap = errors.New("invalid edits: overlapping ranges")

// Apply applies a set of byte-range edits to source and returns the updated text.
//
// Edits must be non-overlapping and refer to offsets in the original source.
// Bytes outside the edited ranges are copied verbatim.
func Apply(source string, edits []Edit) (string, error) {
	if len(edits) == 0 {
		return source, nil
	}

	sorted := make([]Edit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	grow := len(source)
	for i, e := range sorted {
		if e.Start < 0 || e.End < 0 {
			return "", fmt.Errorf("invalid edit[%d]: negative range", i)
		}
		if e.End < e.Start {
			return "", fmt.Errorf("invalid edit[%d]: end before start", i)
		}
		if e.End > len(source) {
			return "", fmt.Errorf("invalid edit[%d]: range out of bounds", i)
		}
		if i > 0 && e.Start < sorted[i-1].End {
			return "", ErrOverlap
		}
		grow += len(e.Replacement) - (e.End - e.Start)
	}

	var b strings.Builder
	b.Grow(max(grow, 0))
	pos := 0
	for _, e := range sorted {
		b.WriteString(source[pos:e.Start])
		b.WriteString(e.Replacement)
		pos = e.End
	}
	b.WriteString(source[pos:])
	return b.String(), nil
}

// LineAt returns the 1-based line number containing byte offset.
func LineAt(source string, offset int) int {
	if offset > len(source) {
		offset = len(source)
	}
	if offset < 0 {
		offset = 0
	}
	return strings.Count(source[:offset], "\n") + 1
}
