package metrics

import (
	"testing"
	"time"
)

var _ Recorder = NoopRecorder{}
var _ Recorder = (*PrometheusRecorder)(nil)

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveStageDuration("rewrite", time.Second)
	r.ObserveRunDuration(time.Second)
	r.IncStageResult("rewrite", ResultChanged)
	r.IncFileOutcome("changed")
	r.AddRuleHits("href:root", 1)
}
