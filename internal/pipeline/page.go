package pipeline

import (
	"path/filepath"
	"strings"
	"time"

	ferrors "git.home.luguber.info/inful/htmlnorm/internal/foundation/errors"
	"git.home.luguber.info/inful/htmlnorm/internal/include"
	"git.home.luguber.info/inful/htmlnorm/internal/metrics"
	"git.home.luguber.info/inful/htmlnorm/internal/rewrite"
	"git.home.luguber.info/inful/htmlnorm/internal/structure"
)

// Outcome is the final state of one file.
type Outcome string

const (
	OutcomeChanged   Outcome = "changed"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeCanonical Outcome = "canonical"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Page is the document buffer owned by one unit of work.
type Page struct {
	Path     string // OS path of the file
	Rel      string // slash path relative to the run root
	Original string
	Content  string
	// Warnings collects recoverable conditions raised by stages.
	Warnings []error
	Hits     rewrite.Stats
}

// Stage transforms a page in place. Returning a warning-severity error
// aborts the remaining stages and leaves the file unmodified.
type Stage struct {
	Name  string
	Apply func(p *Page) error
}

// StructureStage moves legacy pages onto the container layout.
func StructureStage(n *structure.Normalizer) Stage {
	return Stage{Name: "structure", Apply: func(p *Page) error {
		out, _, err := n.Normalize(p.Content)
		if err != nil {
			if ce, ok := ferrors.AsClassified(err); ok {
				return ce.WithContext("path", p.Rel)
			}
			return err
		}
		p.Content = out
		return nil
	}}
}

// RewriteStage applies the ruleset.
func RewriteStage(rs *rewrite.Ruleset) Stage {
	return Stage{Name: "rewrite", Apply: func(p *Page) error {
		out, stats := rs.Apply(p.Content)
		p.Content = out
		p.Hits = stats
		return nil
	}}
}

// IncludeStage expands include directives relative to baseDir. Unresolved
// directives become page warnings; the page still continues.
func IncludeStage(r *include.Resolver, baseDir string) Stage {
	return Stage{Name: "include", Apply: func(p *Page) error {
		res := r.Resolve(p.Content, docPathIn(baseDir, p))
		p.Content = res.Content
		p.Warnings = append(p.Warnings, res.Unresolved...)
		return nil
	}}
}

// docPathIn returns the page's slash path inside baseDir, falling back to
// its root-relative path when it lies outside.
func docPathIn(baseDir string, p *Page) string {
	absBase, err1 := filepath.Abs(baseDir)
	absPath, err2 := filepath.Abs(p.Path)
	if err1 != nil || err2 != nil {
		return p.Rel
	}
	rel, err := filepath.Rel(absBase, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return p.Rel
	}
	return filepath.ToSlash(rel)
}

// Processor runs stages over one page.
type Processor struct {
	stages    []Stage
	canonical structure.Markers
	recorder  metrics.Recorder
}

// NewProcessor returns a Processor. Documents matching canonical skip every
// stage.
func NewProcessor(canonical structure.Markers, stages ...Stage) *Processor {
	return &Processor{stages: stages, canonical: canonical, recorder: metrics.NoopRecorder{}}
}

// Process runs the stages in order. The returned error is non-nil for
// skipped and failed pages.
func (pr *Processor) Process(p *Page) (Outcome, error) {
	p.Content = p.Original
	if pr.canonical.Canonical(p.Content) {
		return OutcomeCanonical, nil
	}
	for _, st := range pr.stages {
		before := p.Content
		warnings := len(p.Warnings)
		start := time.Now()
		err := st.Apply(p)
		pr.recorder.ObserveStageDuration(st.Name, time.Since(start))
		switch {
		case err != nil && ferrors.HasSeverity(err, ferrors.SeverityWarning):
			pr.recorder.IncStageResult(st.Name, metrics.ResultWarning)
			p.Content = p.Original
			return OutcomeSkipped, err
		case err != nil:
			pr.recorder.IncStageResult(st.Name, metrics.ResultFailed)
			return OutcomeFailed, err
		case len(p.Warnings) > warnings:
			pr.recorder.IncStageResult(st.Name, metrics.ResultWarning)
		case p.Content != before:
			pr.recorder.IncStageResult(st.Name, metrics.ResultChanged)
		default:
			pr.recorder.IncStageResult(st.Name, metrics.ResultUnchanged)
		}
	}
	if p.Content == p.Original {
		return OutcomeUnchanged, nil
	}
	return OutcomeChanged, nil
}

// String renders stage names for logs.
func (pr *Processor) String() string {
	names := make([]string, len(pr.stages))
	for i, st := range pr.stages {
		names[i] = st.Name
	}
	return strings.Join(names, ",")
}
