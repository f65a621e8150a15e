// Package commands implements the htmlnorm command line.
package commands

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/htmlnorm/internal/config"
	ferrors "git.home.luguber.info/inful/htmlnorm/internal/foundation/errors"
	"git.home.luguber.info/inful/htmlnorm/internal/history"
	"git.home.luguber.info/inful/htmlnorm/internal/include"
	"git.home.luguber.info/inful/htmlnorm/internal/logfields"
	"git.home.luguber.info/inful/htmlnorm/internal/metrics"
	"git.home.luguber.info/inful/htmlnorm/internal/pipeline"
)

// Global context passed to subcommands if we need to share global state later.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"htmlnorm.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Rewrite   RewriteCmd   `cmd:"" help:"Relocate root-relative paths under the site prefix, in place"`
	Structure StructureCmd `cmd:"" help:"Normalize page layout (container wrapper, stylesheet and script tags)"`
	SSI       SSICmd       `cmd:"" name:"ssi" help:"Expand server-side include directives in one file"`
	Generate  GenerateCmd  `cmd:"" help:"Compose pages from the skeleton and page descriptors"`
	Audit     AuditCmd     `cmd:"" help:"Report unprefixed references, pages without a body and leftover includes"`
	Watch     WatchCmd     `cmd:"" help:"Re-run the rewrite pipeline whenever pages change"`
	History   HistoryCmd   `cmd:"" help:"Show the last recorded run"`
	Init      InitCmd      `cmd:"" help:"Write an example configuration file"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// session holds what a pipeline command needs besides its stages.
type session struct {
	cfg      *config.Config
	registry *prom.Registry
	recorder metrics.Recorder
	store    history.Store
}

func openSession(root *CLI) (*session, error) {
	cfg, err := config.LoadOrDefault(root.Config)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, recorder: metrics.NoopRecorder{}}
	if cfg.Metrics.Textfile != "" || cfg.Metrics.Listen != "" {
		s.registry = prom.NewRegistry()
		s.recorder = metrics.NewPrometheusRecorder(s.registry)
	}
	if cfg.History.Path != "" {
		store, err := history.NewSQLiteStore(cfg.History.Path)
		if err != nil {
			return nil, err
		}
		s.store = store
	}
	return s, nil
}

func (s *session) options(command string) []pipeline.Option {
	opts := []pipeline.Option{
		pipeline.WithPatterns(s.cfg.Include, s.cfg.Exclude),
		pipeline.WithWorkers(s.cfg.Workers),
		pipeline.WithRecorder(s.recorder),
	}
	if s.store != nil {
		opts = append(opts, pipeline.WithHistory(s.store, command))
	}
	return opts
}

// close exports metrics and releases the history store.
func (s *session) close() {
	if s.registry != nil && s.cfg.Metrics.Textfile != "" {
		if err := metrics.WriteTextfile(s.registry, s.cfg.Metrics.Textfile); err != nil {
			slog.Warn("Failed to write metrics textfile", logfields.Path(s.cfg.Metrics.Textfile), logfields.Error(err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Warn("Failed to close history store", logfields.Error(err))
		}
	}
}

// stageSet selects the optional stages that run before the rewrite.
type stageSet struct {
	structure bool
	ssi       bool
	rewrite   bool
}

// processor assembles the stages in their fixed order: structure, include,
// rewrite. Included fragments pass through the rewrite with their host page.
func (s *session) processor(set stageSet) (*pipeline.Processor, error) {
	var stages []pipeline.Stage
	if set.structure {
		stages = append(stages, pipeline.StructureStage(s.cfg.Normalizer()))
	}
	if set.ssi {
		base := s.cfg.SSI.BaseDir
		stages = append(stages, pipeline.IncludeStage(include.NewResolver(os.DirFS(base)), base))
	}
	if set.rewrite {
		rs, err := s.cfg.Ruleset()
		if err != nil {
			return nil, err
		}
		stages = append(stages, pipeline.RewriteStage(rs))
	}
	return pipeline.NewProcessor(s.cfg.CanonicalMarkers(), stages...), nil
}

// reportError turns per-file failures into the command's error, carrying
// the category of the first failure.
func reportError(report *pipeline.Report) error {
	if report == nil || !report.Failed() {
		return nil
	}
	for _, f := range report.Files {
		if f.Outcome == pipeline.OutcomeFailed {
			return ferrors.WrapError(f.Err, ferrors.GetCategory(f.Err), "one or more files failed").
				WithContext("summary", report.Summary()).Build()
		}
	}
	return nil
}
