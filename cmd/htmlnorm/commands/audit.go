package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"git.home.luguber.info/inful/htmlnorm/internal/audit"
	"git.home.luguber.info/inful/htmlnorm/internal/config"
	ferrors "git.home.luguber.info/inful/htmlnorm/internal/foundation/errors"
	"git.home.luguber.info/inful/htmlnorm/internal/pipeline"
)

// AuditCmd implements the 'audit' command.
type AuditCmd struct {
	Format string `short:"f" default:"text" help:"Output format (text or json)" enum:"text,json"`
	Strict bool   `help:"Exit non-zero when anything is reported"`
}

func (a *AuditCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.LoadOrDefault(root.Config)
	if err != nil {
		return err
	}
	runner := pipeline.NewRunner(cfg.Root, pipeline.NewProcessor(nil),
		pipeline.WithPatterns(cfg.Include, cfg.Exclude))
	rels, err := runner.Discover()
	if err != nil {
		return err
	}
	report, err := audit.New(cfg.Prefix).Scan(cfg.Root, rels)
	if err != nil {
		return err
	}

	if a.Format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryInternal, "failed to encode report").Build()
		}
	} else {
		for _, f := range report.Findings {
			switch f.Kind {
			case audit.KindMissingBody:
				fmt.Printf("%s: %s\n", f.Path, f.Kind)
			case audit.KindDirective:
				fmt.Printf("%s:%d: %s %s\n", f.Path, f.Line, f.Kind, f.Value)
			default:
				fmt.Printf("%s:%d: %s <%s %s=%q>\n", f.Path, f.Line, f.Kind, f.Tag, f.Attr, f.Value)
			}
		}
		fmt.Printf("%d findings in %d files\n", len(report.Findings), report.Files)
	}

	if a.Strict && len(report.Findings) > 0 {
		return ferrors.ValidationError("audit reported findings").
			WithContext("findings", len(report.Findings)).Build()
	}
	return nil
}
