package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID       = "run_id"
	KeyPath        = "path"
	KeyStage       = "stage"
	KeyRule        = "rule"
	KeyDirective   = "directive"
	KeyPlaceholder = "placeholder"
	KeyOutcome     = "outcome"
	KeyDurationMS  = "duration_ms"
	KeyCount       = "count"
	KeyError       = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr        { return slog.String(KeyRunID, id) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Stage(name string) slog.Attr      { return slog.String(KeyStage, name) }
func Rule(name string) slog.Attr       { return slog.String(KeyRule, name) }
func Directive(d string) slog.Attr     { return slog.String(KeyDirective, d) }
func Placeholder(n string) slog.Attr   { return slog.String(KeyPlaceholder, n) }
func Outcome(o string) slog.Attr       { return slog.String(KeyOutcome, o) }
func Count(n int) slog.Attr            { return slog.Int(KeyCount, n) }
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
