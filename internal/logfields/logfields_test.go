package logfields

import (
	"log/slog"
	"testing"
	"time"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"RunID", KeyRunID, "123", RunID("123")},
		{"Path", KeyPath, "health/bmi.html", Path("health/bmi.html")},
		{"Stage", KeyStage, "rewrite", Stage("rewrite")},
		{"Rule", KeyRule, "href:/css/", Rule("href:/css/")},
		{"Directive", KeyDirective, "/nav.html", Directive("/nav.html")},
		{"Placeholder", KeyPlaceholder, "title", Placeholder("title")},
		{"Outcome", KeyOutcome, "changed", Outcome("changed")},
	}

	for _, tc := range cases {
		if tc.attr.Key != tc.attrKey {
			// Key drift would break log ingestion schemas.
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, tc.attr.Key)
		}
		if got := tc.attr.Value.String(); got != tc.attrVal {
			t.Fatalf("%s: expected value %s, got %v", tc.name, tc.attrVal, got)
		}
	}
}

func TestNumericHelpers(t *testing.T) {
	if v := Count(5); v.Key != KeyCount || v.Value.Int64() != 5 {
		t.Fatalf("Count mismatch: %v", v)
	}
	if v := Duration(1500 * time.Microsecond); v.Key != KeyDurationMS || v.Value.Float64() != 1.5 {
		t.Fatalf("Duration mismatch: %v", v)
	}
}

// TestErrorHelper ensures Error() handles nil and non-nil errors predictably.
func TestErrorHelper(t *testing.T) {
	attr := Error(nil)
	if attr.Key != KeyError {
		t.Fatalf("Error key mismatch: %s", attr.Key)
	}
	if attr.Value.String() != "" {
		t.Fatalf("Expected empty error string, got %s", attr.Value.String())
	}
	attr = Error(errTest{})
	if attr.Value.String() != "err-test" {
		t.Fatalf("Expected 'err-test', got %s", attr.Value.String())
	}
}

type errTest struct{}

func (e errTest) Error() string { return "err-test" }
