package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/inful/mdfp"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/htmlnorm/internal/compose"
	ferrors "git.home.luguber.info/inful/htmlnorm/internal/foundation/errors"
	"git.home.luguber.info/inful/htmlnorm/internal/history"
	"git.home.luguber.info/inful/htmlnorm/internal/logfields"
	"git.home.luguber.info/inful/htmlnorm/internal/metrics"
	"git.home.luguber.info/inful/htmlnorm/internal/rewrite"
)

// Generator composes pages from descriptors, relocates their paths and
// writes them under an output directory.
type Generator struct {
	skeleton   *compose.Skeleton
	categories []string
	ruleset    *rewrite.Ruleset
	outputDir  string
	opts       options
	// salt covers everything besides the descriptor that shapes the output.
	salt string
}

// NewGenerator returns a Generator. A nil ruleset leaves composed paths as
// written in the skeleton.
func NewGenerator(sk *compose.Skeleton, categories []string, rs *rewrite.Ruleset, outputDir string, opts ...Option) *Generator {
	salt := sk.Source() + fmt.Sprint(categories)
	if rs != nil {
		salt += fmt.Sprint(rs.Rules())
	}
	return &Generator{
		skeleton:   sk,
		categories: categories,
		ruleset:    rs,
		outputDir:  outputDir,
		opts:       buildOptions(opts),
		salt:       salt,
	}
}

// Generate writes every page. Pages whose fingerprint matches the stored
// one and whose output exists are skipped unless forced. A page with
// unbound placeholders fails alone; nothing is written for it.
func (g *Generator) Generate(ctx context.Context, pages []compose.Page) (*Report, error) {
	start := time.Now()
	report := &Report{Files: make([]FileResult, len(pages))}
	store := g.opts.store

	if store != nil {
		run, err := store.BeginRun(ctx, g.opts.command, g.outputDir)
		if err != nil {
			return nil, err
		}
		report.RunID = run.ID
	}
	log := g.opts.logger.With(logfields.RunID(report.RunID))

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.opts.workers)
	for i, page := range pages {
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := g.generateOne(gctx, page)
			report.Files[i] = res
			g.opts.recorder.IncFileOutcome(string(res.Outcome))
			g.logResult(log, res, page)
			if store != nil {
				detail := ""
				if res.Err != nil {
					detail = res.Err.Error()
				}
				if err := store.RecordFile(gctx, report.RunID, history.FileEvent{
					Path: res.Rel, Outcome: string(res.Outcome), Detail: detail, Duration: res.Duration,
				}); err != nil {
					log.Warn("Failed to record file event", logfields.Path(res.Rel), logfields.Error(err))
				}
			}
			return nil
		})
	}
	waitErr := eg.Wait()

	done := report.Files[:0]
	for _, f := range report.Files {
		if f.Outcome != "" {
			done = append(done, f)
		}
	}
	report.Files = done
	report.Duration = time.Since(start)
	g.opts.recorder.ObserveRunDuration(report.Duration)
	if store != nil {
		if err := store.FinishRun(context.WithoutCancel(ctx), report.RunID, countsByName(report.Counts())); err != nil {
			log.Warn("Failed to finish history run", logfields.Error(err))
		}
	}
	if waitErr == nil {
		waitErr = ctx.Err()
	}
	if waitErr != nil {
		return report, ferrors.WrapError(waitErr, ferrors.CategoryInternal, "generation canceled").Build()
	}
	log.Info("Generation complete", "summary", report.Summary(), logfields.Duration(report.Duration))
	return report, nil
}

func (g *Generator) generateOne(ctx context.Context, page compose.Page) (res FileResult) {
	start := time.Now()
	res.Rel = page.Output
	defer func() { res.Duration = time.Since(start) }()
	path := filepath.Join(g.outputDir, filepath.FromSlash(page.Output))
	fingerprint := mdfp.CalculateFingerprintFromParts(g.salt, page.Fingerprint)

	if g.opts.store != nil && !g.opts.force {
		stored, ok, err := g.opts.store.Fingerprint(ctx, page.Output)
		if err != nil {
			g.opts.logger.Warn("Fingerprint lookup failed", logfields.Path(page.Output), logfields.Error(err))
		} else if ok && stored == fingerprint && fileExists(path) {
			res.Outcome = OutcomeUnchanged
			return res
		}
	}

	composeStart := time.Now()
	out, err := compose.Compose(g.skeleton, page.Descriptor, g.categories)
	g.opts.recorder.ObserveStageDuration("compose", time.Since(composeStart))
	if err != nil {
		g.opts.recorder.IncStageResult("compose", metrics.ResultFailed)
		res.Outcome = OutcomeFailed
		res.Err = err
		return res
	}
	g.opts.recorder.IncStageResult("compose", metrics.ResultChanged)

	if g.ruleset != nil {
		var stats rewrite.Stats
		rewriteStart := time.Now()
		out, stats = g.ruleset.Apply(out)
		g.opts.recorder.ObserveStageDuration("rewrite", time.Since(rewriteStart))
		res.Hits = stats.Total()
		for rule, n := range stats {
			g.opts.recorder.AddRuleHits(rule, n)
		}
	}

	existing, err := os.ReadFile(path) // #nosec G304 -- output path is validated by the descriptor loader
	switch {
	case err == nil && string(existing) == out:
		res.Outcome = OutcomeUnchanged
	case err != nil && !errors.Is(err, os.ErrNotExist):
		res.Outcome = OutcomeFailed
		res.Err = ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to read existing output").
			WithContext("path", page.Output).Build()
		return res
	case g.opts.dryRun:
		res.Outcome = OutcomeChanged
		return res
	default:
		if err := writeFileAtomic(path, []byte(out)); err != nil {
			res.Outcome = OutcomeFailed
			res.Err = ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to write page").
				WithContext("path", page.Output).Build()
			return res
		}
		res.Outcome = OutcomeChanged
	}

	if g.opts.store != nil {
		if err := g.opts.store.SetFingerprint(ctx, page.Output, fingerprint); err != nil {
			g.opts.logger.Warn("Failed to store fingerprint", logfields.Path(page.Output), logfields.Error(err))
		}
	}
	return res
}

func (g *Generator) logResult(log *slog.Logger, res FileResult, page compose.Page) {
	attrs := []any{logfields.Path(res.Rel), logfields.Outcome(string(res.Outcome)), "source", page.Source}
	switch res.Outcome {
	case OutcomeFailed:
		if names := compose.UnboundNames(res.Err); len(names) > 0 {
			attrs = append(attrs, logfields.Placeholder(strings.Join(names, ",")))
		}
		log.Error("Page not generated", append(attrs, logfields.Error(res.Err))...)
	case OutcomeChanged:
		log.Info("Generated", attrs...)
	default:
		log.Debug("Up to date", attrs...)
	}
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
