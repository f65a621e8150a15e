package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	ferrors "git.home.luguber.info/inful/htmlnorm/internal/foundation/errors"
	"git.home.luguber.info/inful/htmlnorm/internal/pipeline"
	"git.home.luguber.info/inful/htmlnorm/internal/vcs"
)

// RewriteCmd implements the 'rewrite' command.
type RewriteCmd struct {
	DryRun    bool     `help:"Report what would change without writing"`
	Force     bool     `help:"Run even when the worktree has uncommitted changes"`
	Structure bool     `help:"Also normalize page structure (as if structure.enabled were set)"`
	SSI       bool     `name:"ssi" help:"Also expand include directives (as if ssi.enabled were set)"`
	Files     []string `arg:"" optional:"" help:"Files relative to the root; all matching files when omitted"`
}

func (r *RewriteCmd) Run(_ *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	s, err := openSession(root)
	if err != nil {
		return err
	}
	defer s.close()

	set := stageSet{
		structure: r.Structure || s.cfg.Structure.Enabled,
		ssi:       r.SSI || s.cfg.SSI.Enabled,
		rewrite:   true,
	}
	proc, err := s.processor(set)
	if err != nil {
		return err
	}
	runner := pipeline.NewRunner(s.cfg.Root, proc,
		append(s.options("rewrite"), pipeline.WithDryRun(r.DryRun))...)

	if err := checkWorktree(s, runner, r.DryRun || r.Force); err != nil {
		return err
	}

	var report *pipeline.Report
	if len(r.Files) > 0 {
		report, err = runner.RunFiles(ctx, r.Files)
	} else {
		report, err = runner.Run(ctx)
	}
	if err != nil {
		return err
	}
	printReport(report, fixedVerb(r.DryRun))
	return reportError(report)
}

// checkWorktree refuses in-place runs over uncommitted pages when
// vcs.require_clean is set.
func checkWorktree(s *session, runner *pipeline.Runner, skip bool) error {
	if skip || !s.cfg.VCS.RequireClean {
		return nil
	}
	st, err := vcs.CheckClean(s.cfg.Root, runner.Matches)
	if err != nil {
		return err
	}
	if !st.Clean() {
		return ferrors.VCSError("worktree has uncommitted changes (use --force to override)").
			WithContext("dirty", st.Dirty).Build()
	}
	return nil
}

func fixedVerb(dryRun bool) string {
	if dryRun {
		return "Would fix"
	}
	return "Fixed"
}

func printReport(report *pipeline.Report, verb string) {
	changed := report.Changed()
	for _, rel := range changed {
		fmt.Printf("%s: %s\n", verb, rel)
	}
	fmt.Printf("%s %d of %d files (%s)\n", verb, len(changed), len(report.Files), report.Summary())
}
