package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"git.home.luguber.info/inful/htmlnorm/internal/config"
	ferrors "git.home.luguber.info/inful/htmlnorm/internal/foundation/errors"
	"git.home.luguber.info/inful/htmlnorm/internal/history"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Files bool `help:"List the per-file outcomes of the run"`
}

func (h *HistoryCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.LoadOrDefault(root.Config)
	if err != nil {
		return err
	}
	if cfg.History.Path == "" {
		return ferrors.ConfigError("history.path is not configured").Build()
	}
	store, err := history.NewSQLiteStore(cfg.History.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	run, err := store.LastRun(ctx)
	if errors.Is(err, history.ErrNoRuns) {
		fmt.Println("No runs recorded")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("Run %s (%s) on %s\n", run.ID, run.Command, run.Root)
	fmt.Printf("  started:  %s\n", run.StartedAt.Format(time.RFC3339))
	if run.FinishedAt.IsZero() {
		fmt.Println("  finished: (incomplete)")
	} else {
		fmt.Printf("  finished: %s (%s)\n", run.FinishedAt.Format(time.RFC3339), run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	outcomes := make([]string, 0, len(run.Counts))
	for k := range run.Counts {
		outcomes = append(outcomes, k)
	}
	sort.Strings(outcomes)
	for _, k := range outcomes {
		fmt.Printf("  %-10s %d\n", k+":", run.Counts[k])
	}

	if !h.Files {
		return nil
	}
	files, err := store.Files(ctx, run.ID)
	if err != nil {
		return err
	}
	for _, f := range files {
		line := fmt.Sprintf("  %-9s %s", f.Outcome, f.Path)
		if f.Detail != "" {
			line += "  " + f.Detail
		}
		fmt.Println(line)
	}
	return nil
}
