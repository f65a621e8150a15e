// Package history keeps a sqlite ledger of htmlnorm runs: one row per run,
// one row per processed file, and the last generated fingerprint of each
// composed page.
package history

import (
	"context"
	"time"
)

// Run is one batch invocation.
type Run struct {
	ID         string
	Command    string
	Root       string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
	Counts     map[string]int
}

// FileEvent is the outcome of one file within a run.
type FileEvent struct {
	Path     string
	Outcome  string
	Detail   string
	Duration time.Duration
}

// Store persists runs and fingerprints.
type Store interface {
	BeginRun(ctx context.Context, command, root string) (Run, error)
	RecordFile(ctx context.Context, runID string, ev FileEvent) error
	FinishRun(ctx context.Context, runID string, counts map[string]int) error
	LastRun(ctx context.Context) (Run, error)
	Files(ctx context.Context, runID string) ([]FileEvent, error)
	Fingerprint(ctx context.Context, output string) (string, bool, error)
	SetFingerprint(ctx context.Context, output, fingerprint string) error
	Close() error
}
