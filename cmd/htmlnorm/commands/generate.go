package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"syscall"

	"git.home.luguber.info/inful/htmlnorm/internal/compose"
	"git.home.luguber.info/inful/htmlnorm/internal/config"
	ferrors "git.home.luguber.info/inful/htmlnorm/internal/foundation/errors"
	"git.home.luguber.info/inful/htmlnorm/internal/pipeline"
)

// GenerateCmd implements the 'generate' command.
type GenerateCmd struct {
	Force    bool   `help:"Regenerate pages even when their descriptor is unchanged"`
	DryRun   bool   `help:"Report what would be written without writing"`
	Scaffold string `help:"Write a descriptor stub for the page at this output path instead of generating" placeholder:"PATH"`
}

func (g *GenerateCmd) Run(_ *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	s, err := openSession(root)
	if err != nil {
		return err
	}
	defer s.close()

	if g.Scaffold != "" {
		return g.scaffold(s.cfg)
	}

	if s.cfg.Compose.Skeleton == "" {
		return ferrors.ConfigError("compose.skeleton is not configured").Build()
	}
	sk, err := compose.LoadSkeleton(s.cfg.Compose.Skeleton)
	if err != nil {
		return err
	}
	pages, err := loadPages(s.cfg)
	if err != nil {
		return err
	}
	rs, err := s.cfg.Ruleset()
	if err != nil {
		return err
	}

	gen := pipeline.NewGenerator(sk, s.cfg.Sections, rs, s.cfg.Compose.OutputDir,
		append(s.options("generate"), pipeline.WithForce(g.Force), pipeline.WithDryRun(g.DryRun))...)
	report, err := gen.Generate(ctx, pages)
	if err != nil {
		return err
	}
	verb := "Generated"
	if g.DryRun {
		verb = "Would generate"
	}
	printReport(report, verb)
	return reportError(report)
}

func loadPages(cfg *config.Config) ([]compose.Page, error) {
	switch {
	case cfg.Compose.Manifest != "":
		return compose.LoadManifest(cfg.Compose.Manifest)
	case cfg.Compose.Descriptors != "":
		return compose.LoadDir(cfg.Compose.Descriptors)
	default:
		return nil, ferrors.ConfigError("neither compose.manifest nor compose.descriptors is configured").Build()
	}
}

// scaffold writes <descriptors>/<output without extension>.md.
func (g *GenerateCmd) scaffold(cfg *config.Config) error {
	if cfg.Compose.Descriptors == "" {
		return ferrors.ConfigError("compose.descriptors is not configured").Build()
	}
	out := strings.TrimLeft(path.Clean("/"+filepath.ToSlash(g.Scaffold)), "/")
	if out == "" {
		return ferrors.ValidationError("scaffold path is empty").Build()
	}
	stub, err := compose.Scaffold(out, cfg.Sections)
	if err != nil {
		return err
	}
	target := filepath.Join(cfg.Compose.Descriptors, filepath.FromSlash(strings.TrimSuffix(out, path.Ext(out))+".md"))
	if _, err := os.Stat(target); err == nil && !g.Force {
		return ferrors.ValidationError("descriptor already exists (use --force to overwrite)").
			WithContext("path", target).Build()
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to stat descriptor").
			WithContext("path", target).Build()
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to create descriptor directory").Build()
	}
	if err := os.WriteFile(target, stub, 0o600); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to write descriptor").
			WithContext("path", target).Build()
	}
	fmt.Printf("Wrote descriptor %s\n", target)
	return nil
}
