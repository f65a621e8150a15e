package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultChanged   ResultLabel = "changed"
	ResultUnchanged ResultLabel = "unchanged"
	ResultWarning   ResultLabel = "warning"
	ResultFailed    ResultLabel = "failed"
)

// Recorder defines observability hooks for runs, pages and stages.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveRunDuration(d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncFileOutcome(outcome string)
	AddRuleHits(rule string, n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveRunDuration(time.Duration)           {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) IncFileOutcome(string)                      {}
func (NoopRecorder) AddRuleHits(string, int)                    {}
