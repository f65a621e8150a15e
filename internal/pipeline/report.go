package pipeline

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// FileResult is the outcome of one file.
type FileResult struct {
	Rel      string
	Outcome  Outcome
	Err      error
	Warnings []error
	Hits     int
	Duration time.Duration
}

// Report summarizes a run.
type Report struct {
	RunID    string
	Files    []FileResult
	Duration time.Duration
}

// Counts returns the number of files per outcome.
func (r *Report) Counts() map[Outcome]int {
	counts := make(map[Outcome]int)
	for _, f := range r.Files {
		counts[f.Outcome]++
	}
	return counts
}

// Changed lists the relative paths that were (or in a dry run would be)
// rewritten.
func (r *Report) Changed() []string {
	var out []string
	for _, f := range r.Files {
		if f.Outcome == OutcomeChanged {
			out = append(out, f.Rel)
		}
	}
	return out
}

// WarningCount totals the recoverable conditions across files, including
// skipped files.
func (r *Report) WarningCount() int {
	n := 0
	for _, f := range r.Files {
		n += len(f.Warnings)
		if f.Outcome == OutcomeSkipped {
			n++
		}
	}
	return n
}

// Failed reports whether any file failed.
func (r *Report) Failed() bool {
	return r.Counts()[OutcomeFailed] > 0
}

// Summary renders "changed=2 unchanged=5" in stable order.
func (r *Report) Summary() string {
	counts := r.Counts()
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+strconv.Itoa(counts[Outcome(k)]))
	}
	return strings.Join(parts, " ")
}

func countsByName(counts map[Outcome]int) map[string]int {
	out := make(map[string]int, len(counts))
	for k, v := range counts {
		out[string(k)] = v
	}
	return out
}
