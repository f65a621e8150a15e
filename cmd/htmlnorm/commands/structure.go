package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/htmlnorm/internal/pipeline"
)

// StructureCmd implements the 'structure' command.
type StructureCmd struct {
	DryRun bool     `help:"Report what would change without writing"`
	Force  bool     `help:"Run even when the worktree has uncommitted changes"`
	Files  []string `arg:"" optional:"" help:"Files relative to the root; all matching files when omitted"`
}

func (c *StructureCmd) Run(_ *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	s, err := openSession(root)
	if err != nil {
		return err
	}
	defer s.close()

	proc, err := s.processor(stageSet{structure: true})
	if err != nil {
		return err
	}
	runner := pipeline.NewRunner(s.cfg.Root, proc,
		append(s.options("structure"), pipeline.WithDryRun(c.DryRun))...)
	if err := checkWorktree(s, runner, c.DryRun || c.Force); err != nil {
		return err
	}

	var report *pipeline.Report
	if len(c.Files) > 0 {
		report, err = runner.RunFiles(ctx, c.Files)
	} else {
		report, err = runner.Run(ctx)
	}
	if err != nil {
		return err
	}
	printReport(report, fixedVerb(c.DryRun))
	return reportError(report)
}
