package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	s := String()
	if !strings.HasPrefix(s, "htmlnorm ") {
		t.Fatalf("unexpected version line: %q", s)
	}
	if !strings.Contains(s, "built "+BuildTime) {
		t.Fatalf("build time missing from %q", s)
	}
}

func TestOverride(t *testing.T) {
	old := Version
	t.Cleanup(func() { Version = old })
	Version = "v9.9.9"
	if !strings.Contains(String(), "v9.9.9") {
		t.Fatalf("ldflags version not used: %q", String())
	}
}
