package errors

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCLIErrorAdapter_ExitCodes(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, nil)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain", errors.New("x"), 1},
		{"config", ConfigError("bad").Build(), 7},
		{"validation", ValidationError("bad").Build(), 2},
		{"vcs", VCSError("dirty").Build(), 8},
		{"template", TemplateError("unbound").Build(), 11},
		{"internal", InternalError("bug").Build(), 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, adapter.ExitCodeFor(tt.err))
		})
	}
}

func TestCLIErrorAdapter_Log(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	adapter := NewCLIErrorAdapter(false, logger)

	adapter.Log("page skipped", StructureError("no body tag").WithContext("path", "a.html").Build())

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "category=structure")
	assert.Contains(t, out, "path=a.html")
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	err := WrapError(errors.New("permission denied"), CategoryFileSystem, "write failed").Build()

	quiet := NewCLIErrorAdapter(false, nil)
	assert.Equal(t, "[filesystem] write failed", quiet.FormatError(err))

	verbose := NewCLIErrorAdapter(true, nil)
	assert.Contains(t, verbose.FormatError(err), "permission denied")
}
