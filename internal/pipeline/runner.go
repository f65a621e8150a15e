package pipeline

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	ferrors "git.home.luguber.info/inful/htmlnorm/internal/foundation/errors"
	"git.home.luguber.info/inful/htmlnorm/internal/history"
	"git.home.luguber.info/inful/htmlnorm/internal/logfields"
	"git.home.luguber.info/inful/htmlnorm/internal/metrics"
)

// skippedDirs are never descended into.
var skippedDirs = map[string]bool{".git": true, ".htmlnorm": true, "node_modules": true}

// Runner processes every matching file under a root directory.
type Runner struct {
	root      string
	include   []string
	exclude   []string
	workers   int
	dryRun    bool
	processor *Processor
	recorder  metrics.Recorder
	store     history.Store
	command   string
	logger    *slog.Logger
}

// Option configures a Runner or Generator.
type Option func(*options)

type options struct {
	include  []string
	exclude  []string
	workers  int
	dryRun   bool
	force    bool
	recorder metrics.Recorder
	store    history.Store
	command  string
	logger   *slog.Logger
}

// WithPatterns sets the doublestar include and exclude globs, matched
// against slash paths relative to the root.
func WithPatterns(include, exclude []string) Option {
	return func(o *options) {
		o.include = include
		o.exclude = exclude
	}
}

// WithWorkers bounds the number of files processed concurrently.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithDryRun computes outcomes without writing files.
func WithDryRun(dry bool) Option {
	return func(o *options) { o.dryRun = dry }
}

// WithForce makes the generator ignore stored fingerprints.
func WithForce(force bool) Option {
	return func(o *options) { o.force = force }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithHistory records the run and its file outcomes in store under command.
func WithHistory(store history.Store, command string) Option {
	return func(o *options) {
		o.store = store
		o.command = command
	}
}

// WithLogger sets the logger; slog.Default() otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		include:  []string{"**/*.html"},
		workers:  1,
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = 1
	}
	return o
}

// NewRunner returns a Runner applying processor to files under root.
func NewRunner(root string, processor *Processor, opts ...Option) *Runner {
	o := buildOptions(opts)
	processor.recorder = o.recorder
	return &Runner{
		root:      root,
		include:   o.include,
		exclude:   o.exclude,
		workers:   o.workers,
		dryRun:    o.dryRun,
		processor: processor,
		recorder:  o.recorder,
		store:     o.store,
		command:   o.command,
		logger:    o.logger,
	}
}

// Matches reports whether rel (slash-separated, relative to the root) is
// selected by the include and exclude patterns.
func (r *Runner) Matches(rel string) bool {
	included := false
	for _, p := range r.include {
		if ok, _ := doublestar.Match(p, rel); ok {
			included = true
			break
		}
	}
	if !included {
		return false
	}
	for _, p := range r.exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return false
		}
	}
	return true
}

// Discover lists the selected files under the root, sorted.
func (r *Runner) Discover() ([]string, error) {
	var rels []string
	err := filepath.WalkDir(r.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != r.root && skippedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(r.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if r.Matches(rel) {
			rels = append(rels, rel)
		}
		return nil
	})
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to walk root").
			WithContext("path", r.root).Fatal().Build()
	}
	sort.Strings(rels)
	return rels, nil
}

// Run processes every selected file under the root.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	rels, err := r.Discover()
	if err != nil {
		return nil, err
	}
	return r.RunFiles(ctx, rels)
}

// RunFiles processes the given root-relative slash paths.
func (r *Runner) RunFiles(ctx context.Context, rels []string) (*Report, error) {
	start := time.Now()
	report := &Report{Files: make([]FileResult, len(rels))}

	if r.store != nil {
		run, err := r.store.BeginRun(ctx, r.command, r.root)
		if err != nil {
			return nil, err
		}
		report.RunID = run.ID
	}
	log := r.logger.With(logfields.RunID(report.RunID))
	log.Debug("Starting run", logfields.Count(len(rels)), "workers", r.workers, "stages", r.processor.String())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, rel := range rels {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := r.processFile(rel)
			report.Files[i] = res
			r.observe(gctx, log, report.RunID, res)
			return nil
		})
	}
	waitErr := g.Wait()

	// Files never started after a cancellation have no outcome.
	done := report.Files[:0]
	for _, f := range report.Files {
		if f.Outcome != "" {
			done = append(done, f)
		}
	}
	report.Files = done
	report.Duration = time.Since(start)
	r.recorder.ObserveRunDuration(report.Duration)
	if r.store != nil {
		// Record what was processed even when canceled.
		if err := r.store.FinishRun(context.WithoutCancel(ctx), report.RunID, countsByName(report.Counts())); err != nil {
			log.Warn("Failed to finish history run", logfields.Error(err))
		}
	}
	if waitErr == nil {
		waitErr = ctx.Err()
	}
	if waitErr != nil {
		return report, ferrors.WrapError(waitErr, ferrors.CategoryInternal, "run canceled").Build()
	}
	log.Info("Run complete", "summary", report.Summary(), logfields.Duration(report.Duration))
	return report, nil
}

func (r *Runner) processFile(rel string) FileResult {
	start := time.Now()
	res := FileResult{Rel: rel}
	path := filepath.Join(r.root, filepath.FromSlash(rel))

	data, err := os.ReadFile(path) // #nosec G304 -- path comes from walking the configured root
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to read file").
			WithContext("path", rel).Build()
		res.Duration = time.Since(start)
		return res
	}

	page := &Page{Path: path, Rel: rel, Original: string(data)}
	res.Outcome, res.Err = r.processor.Process(page)
	res.Warnings = page.Warnings
	res.Hits = page.Hits.Total()

	if res.Outcome == OutcomeChanged && !r.dryRun {
		if err := writeFileAtomic(path, []byte(page.Content)); err != nil {
			res.Outcome = OutcomeFailed
			res.Err = ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to write file").
				WithContext("path", rel).Build()
		}
	}
	for rule, n := range page.Hits {
		r.recorder.AddRuleHits(rule, n)
	}
	res.Duration = time.Since(start)
	return res
}

func (r *Runner) observe(ctx context.Context, log *slog.Logger, runID string, res FileResult) {
	r.recorder.IncFileOutcome(string(res.Outcome))
	logFileResult(log, res, r.dryRun)
	if r.store == nil {
		return
	}
	detail := ""
	if res.Err != nil {
		detail = res.Err.Error()
	}
	if err := r.store.RecordFile(ctx, runID, history.FileEvent{
		Path: res.Rel, Outcome: string(res.Outcome), Detail: detail, Duration: res.Duration,
	}); err != nil {
		log.Warn("Failed to record file event", logfields.Path(res.Rel), logfields.Error(err))
	}
}

func logFileResult(log *slog.Logger, res FileResult, dryRun bool) {
	attrs := []any{logfields.Path(res.Rel), logfields.Outcome(string(res.Outcome))}
	for _, w := range res.Warnings {
		wattrs := append([]any{logfields.Path(res.Rel), logfields.Error(w)}, classifiedAttrs(w)...)
		log.Warn("Include left unresolved", wattrs...)
	}
	switch res.Outcome {
	case OutcomeChanged:
		msg := "Fixed"
		if dryRun {
			msg = "Would fix"
		}
		log.Info(msg, append(attrs, logfields.Count(res.Hits))...)
	case OutcomeSkipped:
		log.Warn("Skipped", append(append(attrs, logfields.Error(res.Err)), classifiedAttrs(res.Err)...)...)
	case OutcomeFailed:
		log.Error("Failed", append(append(attrs, logfields.Error(res.Err)), classifiedAttrs(res.Err)...)...)
	default:
		log.Debug("Unchanged", attrs...)
	}
}

func classifiedAttrs(err error) []any {
	if ce, ok := ferrors.AsClassified(err); ok {
		return ce.LogAttrs()
	}
	return nil
}
